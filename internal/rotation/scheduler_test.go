package rotation

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const interval = 4 * time.Second

func newTestScheduler(t *testing.T, clock *fakeClock, pageSize int) *Scheduler[string] {
	t.Helper()
	s := New(Options[string]{Name: "test", PageSize: pageSize, Interval: interval, Clock: clock})
	t.Cleanup(s.Close)
	return s
}

func letters(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = string(rune('a' + i))
	}
	return out
}

// ─── State transitions ──────────────────────────────────

func TestScheduler_StartsIdle(t *testing.T) {
	s := newTestScheduler(t, newFakeClock(), 1)
	snap := s.Snapshot()
	assert.Equal(t, Idle, snap.State)
	assert.Empty(t, snap.Page)
	assert.Zero(t, snap.PageCount)
}

func TestScheduler_SetItemsEntersAuto(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock, 2)

	snap := s.SetItems(letters(5))
	assert.Equal(t, Auto, snap.State)
	assert.Equal(t, 3, snap.PageCount)
	assert.Equal(t, []string{"a", "b"}, snap.Page)
	assert.Equal(t, 1, clock.Live())
}

func TestScheduler_AutoAdvanceWraps(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock, 2)
	s.SetItems(letters(5))

	clock.Advance(interval)
	assert.Equal(t, []string{"c", "d"}, s.CurrentPage())
	clock.Advance(interval)
	assert.Equal(t, []string{"e"}, s.CurrentPage())
	clock.Advance(interval)
	assert.Equal(t, 0, s.Snapshot().Index)
	assert.Equal(t, []string{"a", "b"}, s.CurrentPage())
}

func TestScheduler_PAdvancesReturnToZero(t *testing.T) {
	for pages := 2; pages <= 7; pages++ {
		clock := newFakeClock()
		s := newTestScheduler(t, clock, 1)
		s.SetItems(letters(pages))

		for i := 1; i <= pages; i++ {
			clock.Advance(interval)
			assert.Equal(t, i%pages, s.Snapshot().Index)
		}
		assert.Equal(t, 0, s.Snapshot().Index)
	}
}

func TestScheduler_AdvanceOneIntervalAtATime(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock, 1)
	s.SetItems(letters(3))

	clock.Advance(interval - time.Millisecond)
	assert.Equal(t, 0, s.Snapshot().Index)
	clock.Advance(time.Millisecond)
	assert.Equal(t, 1, s.Snapshot().Index)

	// a long gap fires one tick per interval, never batched or skipped
	clock.Advance(2 * interval)
	assert.Equal(t, 0, s.Snapshot().Index)
}

func TestScheduler_SinglePageNeverArmsTimer(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock, 3)

	snap := s.SetItems(letters(3))
	assert.Equal(t, Auto, snap.State)
	assert.Equal(t, 1, snap.PageCount)
	assert.Zero(t, clock.Live())
}

func TestScheduler_NextPausesPermanently(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock, 1)
	s.SetItems(letters(4))

	snap := s.Next()
	assert.Equal(t, Paused, snap.State)
	assert.True(t, s.IsPaused())
	assert.Equal(t, 1, snap.Index)
	assert.Zero(t, clock.Live())

	clock.Advance(10 * interval)
	assert.Equal(t, 1, s.Snapshot().Index, "no auto-advance after a manual action")

	s.Next()
	s.Next()
	s.Next()
	assert.Equal(t, 0, s.Snapshot().Index)
	assert.Equal(t, Paused, s.State())
	assert.Zero(t, clock.Live())
}

func TestScheduler_PreviousWraps(t *testing.T) {
	s := newTestScheduler(t, newFakeClock(), 1)
	s.SetItems(letters(3))

	assert.Equal(t, 2, s.Previous().Index)
	assert.Equal(t, 1, s.Previous().Index)
}

func TestScheduler_GoTo(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock, 2)
	s.SetItems(letters(6))

	snap, ok := s.GoTo(2)
	require.True(t, ok)
	assert.Equal(t, []string{"e", "f"}, snap.Page)
	assert.Equal(t, Paused, snap.State)

	before := s.Snapshot()
	for _, bad := range []int{-1, 3, 100} {
		snap, ok = s.GoTo(bad)
		assert.False(t, ok)
		assert.Equal(t, before, snap)
	}
}

func TestScheduler_GoToOutOfRangeKeepsAuto(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock, 1)
	s.SetItems(letters(2))

	_, ok := s.GoTo(5)
	assert.False(t, ok)
	assert.Equal(t, Auto, s.State())
	assert.Equal(t, 1, clock.Live())
}

func TestScheduler_PauseWithoutMoving(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock, 1)
	s.SetItems(letters(3))
	clock.Advance(interval)

	snap := s.Pause()
	assert.Equal(t, 1, snap.Index)
	assert.Equal(t, Paused, snap.State)
	assert.Zero(t, clock.Live())
}

func TestScheduler_SetItemsResetsPause(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock, 1)
	s.SetItems(letters(4))
	s.GoTo(3)

	snap := s.SetItems(letters(5))
	assert.Equal(t, Auto, snap.State)
	assert.Equal(t, 0, snap.Index)
	assert.Equal(t, 1, clock.Live())

	clock.Advance(interval)
	assert.Equal(t, 1, s.Snapshot().Index)
}

func TestScheduler_EmptyGoesIdle(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock, 1)
	s.SetItems(letters(3))

	snap := s.SetItems(nil)
	assert.Equal(t, Idle, snap.State)
	assert.Zero(t, clock.Live())

	assert.Equal(t, Idle, s.Next().State)
	_, ok := s.GoTo(0)
	assert.False(t, ok)
	assert.Equal(t, Idle, s.Pause().State)
}

func TestScheduler_DisableAuto(t *testing.T) {
	clock := newFakeClock()
	s := New(Options[string]{Interval: interval, Clock: clock, DisableAuto: true})
	defer s.Close()

	snap := s.SetItems(letters(3))
	assert.Equal(t, Paused, snap.State)
	assert.Zero(t, clock.Live())
}

func TestScheduler_SetItemsCopiesInput(t *testing.T) {
	s := newTestScheduler(t, newFakeClock(), 1)
	in := letters(2)
	s.SetItems(in)
	in[0] = "z"
	assert.Equal(t, []string{"a"}, s.CurrentPage())
}

// ─── Timer hygiene ──────────────────────────────────────

func TestScheduler_AtMostOneLiveTimer(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock, 1)

	for i := 0; i < 10; i++ {
		s.SetItems(letters(3 + i%3))
		assert.LessOrEqual(t, clock.Live(), 1)
		clock.Advance(interval / 2)
		assert.LessOrEqual(t, clock.Live(), 1)
	}
	s.Next()
	assert.Zero(t, clock.Live())
}

func TestScheduler_StaleTimerCallbackDiscarded(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock, 1)
	s.SetItems(letters(3))
	s.SetItems(letters(4))

	clock.fireStale()
	assert.Equal(t, 0, s.Snapshot().Index, "a replaced timer must not advance the new ordering")

	clock.Advance(interval)
	assert.Equal(t, 1, s.Snapshot().Index)
}

func TestScheduler_CloseCancelsTimer(t *testing.T) {
	clock := newFakeClock()
	s := New(Options[string]{Interval: interval, Clock: clock})
	s.SetItems(letters(3))

	s.Close()
	assert.Zero(t, clock.Live())
	clock.fireStale()
	clock.Advance(5 * interval)
	assert.Equal(t, 0, s.Snapshot().Index)

	s.SetItems(letters(2))
	assert.Zero(t, clock.Live(), "closed scheduler never arms again")
}

// ─── Activation ─────────────────────────────────────────

func TestScheduler_WaitsForActivation(t *testing.T) {
	clock := newFakeClock()
	act := &ManualActivator{}
	s := New(Options[string]{Interval: interval, Clock: clock, Activator: act})
	defer s.Close()

	s.SetItems(letters(3))
	assert.Equal(t, Auto, s.State())
	assert.Zero(t, clock.Live())

	clock.Advance(3 * interval)
	assert.Equal(t, 0, s.Snapshot().Index)

	act.Activate()
	act.Activate()
	assert.True(t, act.Visible())
	assert.Equal(t, 1, clock.Live())
	clock.Advance(interval)
	assert.Equal(t, 1, s.Snapshot().Index)
}

func TestManualActivator_AfterVisibleRunsImmediately(t *testing.T) {
	act := &ManualActivator{}
	act.Activate()

	called := false
	act.OnBecomeVisible(func() { called = true })
	assert.True(t, called)
}

// ─── Notifications ──────────────────────────────────────

func TestScheduler_OnChange(t *testing.T) {
	clock := newFakeClock()
	var mu sync.Mutex
	var seen []Snapshot[string]
	s := New(Options[string]{
		Interval: interval,
		Clock:    clock,
		OnChange: func(snap Snapshot[string]) {
			mu.Lock()
			seen = append(seen, snap)
			mu.Unlock()
		},
	})
	defer s.Close()

	s.SetItems(letters(3))
	clock.Advance(interval)
	s.Next()
	s.Pause()
	s.GoTo(0)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 4, "pause while already paused is not a change")
	assert.Equal(t, []int{0, 1, 2, 0}, []int{seen[0].Index, seen[1].Index, seen[2].Index, seen[3].Index})
	for i := 1; i < len(seen); i++ {
		assert.Greater(t, seen[i].Version, seen[i-1].Version)
	}
	assert.Equal(t, Paused, seen[2].State)
}

func TestScheduler_OnChangeMayCallBack(t *testing.T) {
	clock := newFakeClock()
	var s *Scheduler[string]
	var paused bool
	s = New(Options[string]{
		Interval: interval,
		Clock:    clock,
		OnChange: func(Snapshot[string]) { paused = s.IsPaused() },
	})
	defer s.Close()

	s.SetItems(letters(2))
	s.Next()
	assert.True(t, paused)
}

func TestSnapshot_JSON(t *testing.T) {
	s := newTestScheduler(t, newFakeClock(), 1)
	s.SetItems(letters(2))

	data, err := json.Marshal(s.Snapshot())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"state":"auto"`)
	assert.Contains(t, string(data), `"page":["a"]`)
}

// ─── Real clock ─────────────────────────────────────────

func TestScheduler_SystemClockConcurrentUse(t *testing.T) {
	s := New(Options[string]{Interval: 5 * time.Millisecond})
	defer s.Close()
	s.SetItems(letters(3))

	require.Eventually(t, func() bool { return s.Snapshot().Version >= 3 }, time.Second, time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				switch (i + j) % 4 {
				case 0:
					s.SetItems(letters(1 + j%4))
				case 1:
					s.Next()
				case 2:
					s.GoTo(j % 3)
				default:
					_ = s.Snapshot()
				}
			}
		}(i)
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.GreaterOrEqual(t, snap.Index, 0)
	assert.Less(t, snap.Index, max(snap.PageCount, 1))
}
