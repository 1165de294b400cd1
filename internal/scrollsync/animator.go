package scrollsync

import (
	"sync"
	"time"

	"github.com/dshills/markview/internal/document"
)

// Animation timing defaults, in wall-clock milliseconds.
const (
	DefaultDuration = 120 * time.Millisecond
	DefaultTick     = 10 * time.Millisecond
	DefaultGuard    = 500 * time.Millisecond
)

// View is the scrollable view an animation drives.
type View interface {
	Viewport() document.Viewport
	SetScrollOffset(offset float64)
}

// Animator moves a view's scroll offset toward a target over a fixed
// duration. At most one animation runs at a time; starting a new one
// cancels the previous.
type Animator struct {
	mu sync.Mutex

	suppress *Suppression
	duration time.Duration
	tick     time.Duration
	guard    time.Duration

	cancel chan struct{}
}

// Option configures an Animator.
type Option func(*Animator)

// WithDuration sets the total animation duration.
func WithDuration(d time.Duration) Option {
	return func(a *Animator) {
		a.duration = d
	}
}

// WithTick sets the step interval.
func WithTick(d time.Duration) Option {
	return func(a *Animator) {
		a.tick = d
	}
}

// WithGuard sets the suppression window extended before each step.
func WithGuard(d time.Duration) Option {
	return func(a *Animator) {
		a.guard = d
	}
}

// NewAnimator creates an animator that extends the given suppression
// deadline ahead of every scroll step it performs.
func NewAnimator(suppress *Suppression, opts ...Option) *Animator {
	a := &Animator{
		suppress: suppress,
		duration: DefaultDuration,
		tick:     DefaultTick,
		guard:    DefaultGuard,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Center starts an animation that places row at the given viewport ratio.
func (a *Animator) Center(view View, row int, ratio float64) <-chan struct{} {
	vp := view.Viewport()
	return a.Start(view, ScrollOffset(row, vp.LineHeight, vp.Height, ratio))
}

// Start animates the view's scroll offset toward target. It cancels any
// in-flight animation, even when the view is already at the target, in
// which case it terminates immediately with no movement.
func (a *Animator) Start(view View, target float64) <-chan struct{} {
	done := make(chan struct{})

	a.mu.Lock()
	if a.cancel != nil {
		close(a.cancel)
		a.cancel = nil
	}
	if view.Viewport().ScrollOffset == target {
		a.mu.Unlock()
		close(done)
		return done
	}
	cancel := make(chan struct{})
	a.cancel = cancel
	a.mu.Unlock()

	go a.run(view, target, cancel, done)
	return done
}

// Stop cancels the in-flight animation, if any.
func (a *Animator) Stop() {
	a.mu.Lock()
	if a.cancel != nil {
		close(a.cancel)
		a.cancel = nil
	}
	a.mu.Unlock()
}

// run steps the offset by a proportional fraction of the remaining
// distance each tick, landing exactly on the target when the duration
// elapses.
func (a *Animator) run(view View, target float64, cancel chan struct{}, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(a.tick)
	defer ticker.Stop()

	remaining := a.duration
	for {
		select {
		case <-cancel:
			return
		case <-ticker.C:
			current := view.Viewport().ScrollOffset
			if current == target {
				return
			}

			// Guard against our own scroll events echoing back.
			a.suppress.Extend(a.guard)

			remaining -= a.tick
			if remaining <= 0 {
				view.SetScrollOffset(target)
				return
			}
			fraction := float64(a.tick) / float64(remaining+a.tick)
			view.SetScrollOffset(current + (target-current)*fraction)
		}
	}
}
