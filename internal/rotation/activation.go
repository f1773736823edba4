package rotation

import "sync"

// Activator signals when a surface becomes visible. Rotation does not start before that.
type Activator interface {
	OnBecomeVisible(fn func())
}

type immediate struct{}

func (immediate) OnBecomeVisible(fn func()) { fn() }

// Immediate activates at once. Used for headless surfaces.
var Immediate Activator = immediate{}

// ManualActivator defers callbacks until Activate is called.
type ManualActivator struct {
	mu      sync.Mutex
	visible bool
	pending []func()
}

func (a *ManualActivator) OnBecomeVisible(fn func()) {
	a.mu.Lock()
	if !a.visible {
		a.pending = append(a.pending, fn)
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()
	fn()
}

// Activate marks the surface visible and runs queued callbacks once.
func (a *ManualActivator) Activate() {
	a.mu.Lock()
	if a.visible {
		a.mu.Unlock()
		return
	}
	a.visible = true
	pending := a.pending
	a.pending = nil
	a.mu.Unlock()

	for _, fn := range pending {
		fn()
	}
}

// Visible reports whether Activate has been called.
func (a *ManualActivator) Visible() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.visible
}
