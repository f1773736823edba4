package site

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/amass-me/locale-engine/internal/market"
	"github.com/amass-me/locale-engine/internal/rotation"
	"github.com/amass-me/locale-engine/pkg/model"
)

// notifyBuffer bounds rotation events waiting for the notifier; older pending events are
// kept and newer ones dropped when it is full.
const notifyBuffer = 32

// Item is one office tagged with its market.
type Item = model.CatalogEntry[model.Office]

// Notifier receives rotation changes, e.g. to fan them out over NATS.
type Notifier interface {
	PublishRotationChanged(ctx context.Context, ev model.RotationChangedEvent) error
}

// Config describes one surface.
type Config struct {
	Name        string
	PageSize    int
	Limit       int
	Interval    time.Duration
	DisableAuto bool
}

// View is what a surface currently shows.
type View struct {
	Surface  string                  `json:"surface"`
	Market   model.Market            `json:"market"`
	Source   market.Source           `json:"source"`
	Path     string                  `json:"path"`
	Rotation rotation.Snapshot[Item] `json:"rotation"`
}

// Surface keeps one market-prioritized rotation in sync with navigation.
type Surface struct {
	cfg      Config
	resolver *market.Resolver
	catalog  market.Catalog
	notifier Notifier
	logger   *zap.Logger
	sched    *rotation.Scheduler[Item]

	ctx    context.Context
	cancel context.CancelFunc
	events chan model.RotationChangedEvent

	mu       sync.Mutex
	path     string
	source   market.Source
	ordering []Item
	current  atomic.Pointer[model.Market]
}

// Deps are the collaborators shared by all surfaces.
type Deps struct {
	Resolver  *market.Resolver
	Catalog   market.Catalog
	Notifier  Notifier
	Clock     rotation.Clock
	Activator rotation.Activator
	Logger    *zap.Logger
}

func NewSurface(cfg Config, deps Deps) *Surface {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Surface{
		cfg:      cfg,
		resolver: deps.Resolver,
		catalog:  deps.Catalog,
		notifier: deps.Notifier,
		logger:   logger.With(zap.String("surface", cfg.Name)),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.sched = rotation.New(rotation.Options[Item]{
		Name:        cfg.Name,
		PageSize:    cfg.PageSize,
		Interval:    cfg.Interval,
		DisableAuto: cfg.DisableAuto,
		Clock:       deps.Clock,
		Activator:   deps.Activator,
		OnChange:    s.onChange,
		Logger:      logger,
	})
	if s.notifier != nil {
		s.events = make(chan model.RotationChangedEvent, notifyBuffer)
		go s.publishLoop()
	}
	return s
}

func (s *Surface) Name() string { return s.cfg.Name }

// Scheduler exposes the rotation for manual navigation.
func (s *Surface) Scheduler() *rotation.Scheduler[Item] { return s.sched }

// Navigate resolves urlPath and re-derives the ordering. The rotation resets only when the
// ordering actually changes, so a pause survives navigation within the same market.
// Paths without a market slug also start a background geo refresh that re-applies the path
// when it lands, unless the surface navigated elsewhere or closed in the meantime.
func (s *Surface) Navigate(urlPath string) View {
	view, src := s.apply(urlPath)
	if src != market.SourceSlug {
		s.resolver.Prefetch(s.ctx, func(model.Market) {
			s.mu.Lock()
			stale := s.path != urlPath
			s.mu.Unlock()
			if stale {
				s.logger.Debug("site.geo_result_discarded", zap.String("path", urlPath))
				return
			}
			s.apply(urlPath)
		})
	}
	return view
}

func (s *Surface) apply(urlPath string) (View, market.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, src := s.resolver.ResolveWithSource(urlPath)
	ordering := s.catalog.ForMarket(m, s.cfg.Limit)
	s.path = urlPath
	s.source = src
	s.current.Store(&m)

	var snap rotation.Snapshot[Item]
	if s.ordering == nil || !sameOrdering(s.ordering, ordering) {
		s.ordering = ordering
		snap = s.sched.SetItems(ordering)
		s.logger.Info("site.ordering_changed",
			zap.String("market", m.Code),
			zap.String("source", string(src)),
			zap.Int("items", len(ordering)))
	} else {
		snap = s.sched.Snapshot()
	}
	return View{Surface: s.cfg.Name, Market: m, Source: src, Path: urlPath, Rotation: snap}, src
}

// View returns the current state without navigating.
func (s *Surface) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked(s.sched.Snapshot())
}

// Next, Previous, GoTo and Pause forward user actions to the rotation.
func (s *Surface) Next() View { return s.withSnapshot(s.sched.Next()) }

func (s *Surface) Previous() View { return s.withSnapshot(s.sched.Previous()) }

func (s *Surface) GoTo(index int) (View, bool) {
	snap, ok := s.sched.GoTo(index)
	return s.withSnapshot(snap), ok
}

func (s *Surface) Pause() View { return s.withSnapshot(s.sched.Pause()) }

// Close stops the rotation and discards any geo refresh or notification still in flight.
func (s *Surface) Close() {
	s.cancel()
	s.sched.Close()
}

func (s *Surface) withSnapshot(snap rotation.Snapshot[Item]) View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked(snap)
}

func (s *Surface) viewLocked(snap rotation.Snapshot[Item]) View {
	v := View{Surface: s.cfg.Name, Source: s.source, Path: s.path, Rotation: snap}
	if m := s.current.Load(); m != nil {
		v.Market = *m
	}
	return v
}

func (s *Surface) onChange(snap rotation.Snapshot[Item]) {
	if s.notifier == nil {
		return
	}
	var code string
	if m := s.current.Load(); m != nil {
		code = m.Code
	}
	ev := model.RotationChangedEvent{
		Surface:   s.cfg.Name,
		Market:    code,
		State:     snap.State.String(),
		Index:     snap.Index,
		PageCount: snap.PageCount,
		Version:   snap.Version,
		Timestamp: time.Now().UTC(),
	}
	select {
	case s.events <- ev:
	default:
		s.logger.Warn("site.notify_dropped", zap.Uint64("version", ev.Version))
	}
}

// publishLoop delivers rotation events in order, off the navigation and timer paths.
func (s *Surface) publishLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-s.events:
			ctx, cancel := context.WithTimeout(s.ctx, 2*time.Second)
			if err := s.notifier.PublishRotationChanged(ctx, ev); err != nil {
				s.logger.Warn("site.notify_failed", zap.Error(err), zap.Uint64("version", ev.Version))
			}
			cancel()
		}
	}
}

func sameOrdering(a, b []Item) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Market.Equal(b[i].Market) || a[i].Payload.Name != b[i].Payload.Name {
			return false
		}
	}
	return true
}
