// Package overlay decides when UI overlays are shown or hidden based on user
// activity and playback state. It only tracks a boolean; the host animates
// its own views from the change notifications.
package overlay

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/stwalsh4118/playerctl/internal/clock"
	"github.com/stwalsh4118/playerctl/internal/logger"
	"github.com/stwalsh4118/playerctl/internal/playback"
	"github.com/stwalsh4118/playerctl/internal/timerange"
)

// DefaultHidingDelay is the auto-hide delay used when none is configured
const DefaultHidingDelay = 5 * time.Second

// State is a snapshot of the controller
type State struct {
	Visible        bool          `json:"visible"`
	HidingDelay    time.Duration `json:"hiding_delay"`
	LastActivityAt time.Time     `json:"last_activity_at"`
	Suspended      bool          `json:"suspended"`
}

// Controller is a two-state (visible, hidden) machine with a single pending
// hide timer. It is not safe for concurrent use: every method, and every timer
// callback, runs on the executor passed with WithExecutor.
type Controller struct {
	clock clock.Clock
	post  func(func())

	visible        bool
	hidingDelay    time.Duration
	lastActivityAt time.Time
	suspended      bool
	closed         bool

	// timer is the pending hide; epoch invalidates callbacks of replaced timers
	timer clock.Timer
	epoch uint64

	listeners []func(visible bool)
	log       zerolog.Logger
}

// Option configures a Controller
type Option func(*Controller)

// WithExecutor sets how timer callbacks are brought back onto the owner's
// sequential context. Without it callbacks run on the timer goroutine.
func WithExecutor(post func(func())) Option {
	return func(c *Controller) {
		c.post = post
	}
}

// WithHidingDelay sets the initial auto-hide delay
func WithHidingDelay(d time.Duration) Option {
	return func(c *Controller) {
		c.hidingDelay = timerange.ClampDuration(d)
	}
}

// New creates a controller with overlays visible and the hide timer armed
func New(clk clock.Clock, opts ...Option) *Controller {
	c := &Controller{
		clock:       clk,
		post:        func(f func()) { f() },
		visible:     true,
		hidingDelay: DefaultHidingDelay,
		log:         logger.Component("overlay"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.lastActivityAt = clk.Now()
	c.rearm()
	return c
}

// OnChange registers a listener called with the new visibility on every change
func (c *Controller) OnChange(fn func(visible bool)) {
	c.listeners = append(c.listeners, fn)
}

// Visible reports whether overlays are currently visible
func (c *Controller) Visible() bool {
	return c.visible
}

// HidingDelay returns the configured auto-hide delay, zero when disabled
func (c *Controller) HidingDelay() time.Duration {
	return c.hidingDelay
}

// State returns a snapshot of the controller
func (c *Controller) State() State {
	return State{
		Visible:        c.visible,
		HidingDelay:    c.hidingDelay,
		LastActivityAt: c.lastActivityAt,
		Suspended:      c.suspended,
	}
}

// RegisterActivity shows hidden overlays and restarts the hide timer
func (c *Controller) RegisterActivity() {
	if c.closed {
		return
	}
	c.lastActivityAt = c.clock.Now()
	c.setVisible(true)
	c.rearm()
}

// ToggleVisibility hides visible overlays, cancelling the timer, or shows
// hidden ones as RegisterActivity does.
func (c *Controller) ToggleVisibility() {
	if c.closed {
		return
	}
	if !c.visible {
		c.RegisterActivity()
		return
	}
	c.cancelTimer()
	c.setVisible(false)
}

// SetHidingDelay changes the auto-hide delay. A delay of zero or less disables
// auto-hide and cancels any pending hide. A positive delay applies from the
// next scheduled timer.
func (c *Controller) SetHidingDelay(d time.Duration) {
	c.hidingDelay = timerange.ClampDuration(d)
	if c.hidingDelay == 0 {
		c.cancelTimer()
	}
	c.log.Debug().Dur("hiding_delay", c.hidingDelay).Msg("Overlay hiding delay changed")
}

// SetPlaybackState suspends auto-hide while the user likely needs the
// controls and re-arms it once playback is back to Playing.
func (c *Controller) SetPlaybackState(s playback.State) {
	switch {
	case s.HoldsControls():
		if !c.suspended {
			c.suspended = true
			c.cancelTimer()
			c.log.Debug().Str("playback_state", s.String()).Msg("Overlay auto-hide suspended")
		}
	case s == playback.StatePlaying && c.suspended:
		c.suspended = false
		c.rearm()
		c.log.Debug().Msg("Overlay auto-hide resumed")
	}
}

// Reset shows the overlays for a new item and restarts the hide delay
func (c *Controller) Reset() {
	if c.closed {
		return
	}
	c.suspended = false
	c.setVisible(true)
	c.rearm()
}

// Close invalidates the pending hide; later timer callbacks are no-ops
func (c *Controller) Close() {
	c.closed = true
	c.cancelTimer()
}

func (c *Controller) setVisible(visible bool) {
	if c.visible == visible {
		return
	}
	c.visible = visible
	c.log.Debug().Bool("visible", visible).Msg("Overlay visibility changed")
	for _, fn := range c.listeners {
		fn(visible)
	}
}

// rearm replaces the pending hide with one due after the hiding delay
func (c *Controller) rearm() {
	c.cancelTimer()
	if c.closed || !c.visible || c.suspended || c.hidingDelay <= 0 {
		return
	}

	epoch := c.epoch
	c.timer = c.clock.AfterFunc(c.hidingDelay, func() {
		c.post(func() { c.fire(epoch) })
	})
}

func (c *Controller) cancelTimer() {
	c.epoch++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) fire(epoch uint64) {
	if epoch != c.epoch || c.closed || c.suspended || !c.visible {
		return
	}
	c.timer = nil
	c.setVisible(false)
}
