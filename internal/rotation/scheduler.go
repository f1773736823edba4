package rotation

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/amass-me/locale-engine/internal/metrics"
)

// DefaultInterval is the auto-advance period when none is configured.
const DefaultInterval = 4 * time.Second

// State is the scheduler mode.
type State int

const (
	Idle State = iota
	Auto
	Paused
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Auto:
		return "auto"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Options configures a Scheduler.
type Options[T any] struct {
	Name        string
	PageSize    int
	Interval    time.Duration
	DisableAuto bool
	Clock       Clock
	Activator   Activator
	// OnChange runs after any index, ordering or state change, outside the scheduler lock.
	// Snapshots may arrive out of order under concurrency; Version orders them.
	OnChange func(Snapshot[T])
	Logger   *zap.Logger
}

// Snapshot is a consistent read of the scheduler.
type Snapshot[T any] struct {
	Page          []T       `json:"page"`
	Index         int       `json:"index"`
	PageCount     int       `json:"page_count"`
	Total         int       `json:"total"`
	State         State     `json:"state"`
	Paused        bool      `json:"paused"`
	Version       uint64    `json:"version"`
	LastAdvanceAt time.Time `json:"last_advance_at"`
}

// Scheduler pages through an ordered sequence, advancing on a timer until the user takes over.
// All state is guarded by mu; at most one timer is live and callbacks from replaced timers
// are dropped by generation.
type Scheduler[T any] struct {
	opts   Options[T]
	logger *zap.Logger

	mu            sync.Mutex
	items         []T
	index         int
	state         State
	lastAdvanceAt time.Time
	timer         Timer
	gen           uint64
	version       uint64
	active        bool
	closed        bool
}

// New creates an idle scheduler. Auto-advance starts once the activator fires.
func New[T any](opts Options[T]) *Scheduler[T] {
	if opts.PageSize < 1 {
		opts.PageSize = 1
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	if opts.Activator == nil {
		opts.Activator = Immediate
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &Scheduler[T]{opts: opts, logger: opts.Logger.With(zap.String("surface", opts.Name))}
	opts.Activator.OnBecomeVisible(s.activate)
	return s
}

func (s *Scheduler[T]) activate() {
	s.mu.Lock()
	if s.active || s.closed {
		s.mu.Unlock()
		return
	}
	s.active = true
	s.armLocked()
	s.mu.Unlock()
	s.logger.Debug("rotation.activated")
}

// SetItems replaces the ordering, resets to page 0 and re-enters Auto (or Idle when empty).
// A previous pause does not carry over.
func (s *Scheduler[T]) SetItems(items []T) Snapshot[T] {
	s.mu.Lock()
	s.cancelLocked()
	s.items = append([]T(nil), items...)
	s.index = 0
	s.lastAdvanceAt = s.opts.Clock.Now()
	switch {
	case len(s.items) == 0:
		s.state = Idle
	case s.opts.DisableAuto:
		s.state = Paused
	default:
		s.state = Auto
	}
	s.armLocked()
	snap := s.commitLocked()
	s.mu.Unlock()

	metrics.IncRotation(s.opts.Name, "reset")
	s.logger.Debug("rotation.items_set",
		zap.Int("total", snap.Total),
		zap.Int("pages", snap.PageCount),
		zap.Stringer("state", snap.State))
	s.notify(snap)
	return snap
}

// Next moves one page forward, wrapping, and pauses auto-advance.
func (s *Scheduler[T]) Next() Snapshot[T] {
	snap, _ := s.manual("next", func(index, pages int) (int, bool) { return (index + 1) % pages, true })
	return snap
}

// Previous moves one page back, wrapping, and pauses auto-advance.
func (s *Scheduler[T]) Previous() Snapshot[T] {
	snap, _ := s.manual("previous", func(index, pages int) (int, bool) { return (index - 1 + pages) % pages, true })
	return snap
}

// GoTo selects page index directly and pauses auto-advance.
// An out-of-range index leaves the scheduler untouched and reports false.
func (s *Scheduler[T]) GoTo(index int) (Snapshot[T], bool) {
	return s.manual("goto", func(_, pages int) (int, bool) { return index, index >= 0 && index < pages })
}

// Pause stops auto-advance without moving, as on hover or press.
func (s *Scheduler[T]) Pause() Snapshot[T] {
	snap, _ := s.manual("pause", func(index, _ int) (int, bool) { return index, true })
	return snap
}

func (s *Scheduler[T]) manual(cause string, move func(index, pages int) (int, bool)) (Snapshot[T], bool) {
	s.mu.Lock()
	pages := s.pageCountLocked()
	if pages == 0 {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, false
	}
	next, ok := move(s.index, pages)
	if !ok {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, false
	}

	s.cancelLocked()
	wasAuto := s.state == Auto
	s.state = Paused
	moved := next != s.index
	if moved {
		s.index = next
		s.lastAdvanceAt = s.opts.Clock.Now()
	}
	if !moved && !wasAuto {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, true
	}
	snap := s.commitLocked()
	s.mu.Unlock()

	if wasAuto {
		s.logger.Debug("rotation.paused", zap.String("cause", cause))
	}
	if moved {
		metrics.IncRotation(s.opts.Name, cause)
	}
	s.notify(snap)
	return snap, true
}

func (s *Scheduler[T]) tick(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.closed || s.state != Auto {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	pages := s.pageCountLocked()
	s.index = (s.index + 1) % pages
	s.lastAdvanceAt = s.opts.Clock.Now()
	snap := s.commitLocked()
	s.armLocked()
	s.mu.Unlock()

	metrics.IncRotation(s.opts.Name, "auto")
	s.notify(snap)
}

// Snapshot returns the current state.
func (s *Scheduler[T]) Snapshot() Snapshot[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// CurrentPage returns the visible items.
func (s *Scheduler[T]) CurrentPage() []T { return s.Snapshot().Page }

// IsPaused reports whether the user has taken over this ordering.
func (s *Scheduler[T]) IsPaused() bool { return s.Snapshot().Paused }

// State returns the current mode.
func (s *Scheduler[T]) State() State { return s.Snapshot().State }

// Close cancels any pending timer. The scheduler keeps answering reads but never ticks again.
func (s *Scheduler[T]) Close() {
	s.mu.Lock()
	s.closed = true
	s.cancelLocked()
	s.mu.Unlock()
}

func (s *Scheduler[T]) armLocked() {
	if s.closed || !s.active || s.state != Auto || s.pageCountLocked() < 2 {
		return
	}
	s.cancelLocked()
	gen := s.gen
	s.timer = s.opts.Clock.AfterFunc(s.opts.Interval, func() { s.tick(gen) })
}

func (s *Scheduler[T]) cancelLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

func (s *Scheduler[T]) commitLocked() Snapshot[T] {
	s.version++
	return s.snapshotLocked()
}

func (s *Scheduler[T]) pageCountLocked() int {
	return (len(s.items) + s.opts.PageSize - 1) / s.opts.PageSize
}

func (s *Scheduler[T]) snapshotLocked() Snapshot[T] {
	snap := Snapshot[T]{
		Index:         s.index,
		PageCount:     s.pageCountLocked(),
		Total:         len(s.items),
		State:         s.state,
		Paused:        s.state == Paused,
		Version:       s.version,
		LastAdvanceAt: s.lastAdvanceAt,
	}
	if snap.PageCount > 0 {
		start := s.index * s.opts.PageSize
		end := min(start+s.opts.PageSize, len(s.items))
		snap.Page = append([]T(nil), s.items[start:end]...)
	}
	return snap
}

func (s *Scheduler[T]) notify(snap Snapshot[T]) {
	if s.opts.OnChange != nil {
		s.opts.OnChange(snap)
	}
}
