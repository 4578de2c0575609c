package player

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/mo"
	"github.com/stwalsh4118/playerctl/internal/clock"
	"github.com/stwalsh4118/playerctl/internal/logger"
	"github.com/stwalsh4118/playerctl/internal/overlay"
	"github.com/stwalsh4118/playerctl/internal/playback"
	"github.com/stwalsh4118/playerctl/internal/timerange"
)

// Common errors
var (
	ErrControllerClosed = errors.New("media player controller has been closed")
	ErrEmptyURL         = errors.New("media URL cannot be empty")
)

// Config holds the caller-mutable controller settings
type Config struct {
	Live               timerange.LiveConfiguration `json:"live"`
	OverlayHidingDelay time.Duration               `json:"overlay_hiding_delay"`
	AutoPlay           bool                        `json:"autoplay"`
}

// DefaultConfig returns the stock controller settings
func DefaultConfig() Config {
	return Config{
		Live:               timerange.DefaultLiveConfiguration(),
		OverlayHidingDelay: overlay.DefaultHidingDelay,
		AutoPlay:           true,
	}
}

// StateChange is delivered to playback state listeners on every transition
type StateChange struct {
	ItemID uuid.UUID
	From   playback.State
	To     playback.State
	// Err is set when To is Failed. Its Category tells data source failures
	// from playback failures.
	Err *playback.Error
}

// Controller is the media player controller. Its exported methods are safe to
// call from any goroutine except from inside a listener, which already runs
// on the controller loop.
type Controller struct {
	loop       *Loop
	ownsLoop   bool
	clock      clock.Clock
	engine     Engine
	dataSource DataSource

	machine *playback.Machine
	overlay *overlay.Controller

	// everything below is only touched on the loop
	ctx            context.Context
	cancel         context.CancelFunc
	cancelResolve  context.CancelFunc
	closed         bool
	itemID         uuid.UUID
	url            string
	live           timerange.LiveConfiguration
	autoPlay       bool
	timeRange      timerange.TimeRange
	currentTime    time.Duration
	classification timerange.Classification
	mediaType      timerange.MediaType
	gravity        VideoGravity
	surface        Surface
	activity       Surface
	overlays       []Surface
	pip            mo.Option[PictureInPictureController]

	stateListeners   []func(StateChange)
	overlayListeners []func(visible bool)

	log zerolog.Logger
}

type options struct {
	dataSource DataSource
	clock      clock.Clock
	loop       *Loop
	config     Config
}

// Option configures a Controller
type Option func(*options)

// WithDataSource makes PlayURL treat its argument as an identifier resolved through ds
func WithDataSource(ds DataSource) Option {
	return func(o *options) {
		o.dataSource = ds
	}
}

// WithClock sets the clock driving the overlay timer
func WithClock(clk clock.Clock) Option {
	return func(o *options) {
		o.clock = clk
	}
}

// WithLoop runs the controller on an existing loop. The caller keeps ownership.
func WithLoop(l *Loop) Option {
	return func(o *options) {
		o.loop = l
	}
}

// WithConfig sets the initial settings
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.config = cfg
	}
}

// New creates a controller around engine
func New(engine Engine, opts ...Option) *Controller {
	o := options{
		clock:  clock.RealClock{},
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Controller{
		loop:       o.loop,
		clock:      o.clock,
		engine:     engine,
		dataSource: o.dataSource,
		machine:    playback.NewMachine(),
		live:       o.config.Live.Normalized(),
		autoPlay:   o.config.AutoPlay,
		log:        logger.Component("player"),
	}
	if c.loop == nil {
		c.loop = NewLoop()
		c.ownsLoop = true
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())

	c.overlay = overlay.New(c.clock,
		overlay.WithHidingDelay(o.config.OverlayHidingDelay),
		overlay.WithExecutor(func(f func()) { c.loop.Post(f) }),
	)
	c.machine.OnTransition(c.handleTransition)
	c.overlay.OnChange(c.handleOverlayChange)
	return c
}

// do runs f on the loop and waits for it
func (c *Controller) do(f func() error) error {
	var err error
	if callErr := c.loop.Call(func() {
		if c.closed {
			err = ErrControllerClosed
			return
		}
		err = f()
	}); callErr != nil {
		return ErrControllerClosed
	}
	return err
}

// OnPlaybackStateChange registers a listener for playback state transitions
func (c *Controller) OnPlaybackStateChange(fn func(StateChange)) {
	_ = c.loop.Call(func() {
		c.stateListeners = append(c.stateListeners, fn)
	})
}

// OnOverlayVisibilityChange registers a listener for overlay visibility changes
func (c *Controller) OnOverlayVisibilityChange(fn func(visible bool)) {
	_ = c.loop.Call(func() {
		c.overlayListeners = append(c.overlayListeners, fn)
	})
}

// PlayURL starts playing a new item. With a data source configured the
// argument is an identifier resolved through it. Any seek, resolution or
// overlay timer tied to the previous item is invalidated first.
func (c *Controller) PlayURL(u string) error {
	if u == "" {
		return ErrEmptyURL
	}
	return c.do(func() error {
		c.playURL(u)
		return nil
	})
}

// Play starts or resumes playback of the current item
func (c *Controller) Play() error {
	return c.do(c.play)
}

// Pause pauses playback of the current item
func (c *Controller) Pause() error {
	return c.do(func() error {
		if err := c.machine.Pause(); err != nil {
			return err
		}
		c.engine.Pause()
		return nil
	})
}

// Seek moves the playhead, clamped to the seekable range
func (c *Controller) Seek(to time.Duration) error {
	return c.do(func() error {
		return c.seek(to)
	})
}

// AttachToSurface presents the player on surface. Picture in picture becomes
// available once attached, if the platform supports it.
func (c *Controller) AttachToSurface(surface Surface) error {
	return c.do(func() error {
		c.surface = surface
		c.pip = mo.None[PictureInPictureController]()

		support, ok := c.engine.(PictureInPictureSupport)
		if surface == nil || !ok || !support.PictureInPictureSupported() {
			return nil
		}
		pc, err := support.NewPictureInPictureController(surface)
		if err != nil {
			c.log.Warn().Err(err).Str("surface", surface.SurfaceID()).Msg("Picture in picture unavailable")
			return nil
		}
		c.pip = mo.Some(pc)
		return nil
	})
}

// SetOverlaySurfaces sets the surfaces the host shows and hides on visibility changes
func (c *Controller) SetOverlaySurfaces(surfaces []Surface) error {
	return c.do(func() error {
		c.overlays = append([]Surface(nil), surfaces...)
		return nil
	})
}

// SetActivitySurface sets the surface on which the host detects user activity
func (c *Controller) SetActivitySurface(surface Surface) error {
	return c.do(func() error {
		c.activity = surface
		return nil
	})
}

// RegisterActivity reports user interaction; overlays show and the hide timer restarts
func (c *Controller) RegisterActivity() error {
	return c.do(func() error {
		c.overlay.RegisterActivity()
		return nil
	})
}

// ToggleOverlays shows hidden overlays or hides visible ones
func (c *Controller) ToggleOverlays() error {
	return c.do(func() error {
		c.overlay.ToggleVisibility()
		return nil
	})
}

// HandleGesture applies a host gesture: a single tap toggles overlays, a
// double tap toggles the video gravity.
func (c *Controller) HandleGesture(g Gesture) error {
	return c.do(func() error {
		switch g {
		case GestureSingleTap:
			c.overlay.ToggleVisibility()
		case GestureDoubleTap:
			c.gravity = c.gravity.Toggled()
			c.log.Debug().Str("video_gravity", c.gravity.String()).Msg("Video gravity toggled")
		default:
			return fmt.Errorf("unsupported gesture: %d", g)
		}
		return nil
	})
}

// SetLiveConfiguration replaces the live detection settings. Negative values
// are clamped to zero. The new settings apply from the next classification.
func (c *Controller) SetLiveConfiguration(cfg timerange.LiveConfiguration) error {
	return c.do(func() error {
		c.live = cfg.Normalized()
		return nil
	})
}

// SetMinimumDVRWindowLength changes the minimum DVR window
func (c *Controller) SetMinimumDVRWindowLength(d time.Duration) error {
	return c.do(func() error {
		c.live.MinimumDVRWindowLength = timerange.ClampDuration(d)
		return nil
	})
}

// SetLiveTolerance changes the live tolerance
func (c *Controller) SetLiveTolerance(d time.Duration) error {
	return c.do(func() error {
		c.live.LiveTolerance = timerange.ClampDuration(d)
		return nil
	})
}

// SetOverlayHidingDelay changes the overlay auto-hide delay; zero or less disables it
func (c *Controller) SetOverlayHidingDelay(d time.Duration) error {
	return c.do(func() error {
		c.overlay.SetHidingDelay(d)
		return nil
	})
}

// SetAutoPlay controls whether items start playing as soon as they are ready
func (c *Controller) SetAutoPlay(enabled bool) error {
	return c.do(func() error {
		c.autoPlay = enabled
		return nil
	})
}

// ApplyConfig replaces all caller-mutable settings at once
func (c *Controller) ApplyConfig(cfg Config) error {
	return c.do(func() error {
		c.live = cfg.Live.Normalized()
		c.autoPlay = cfg.AutoPlay
		c.overlay.SetHidingDelay(cfg.OverlayHidingDelay)
		return nil
	})
}

// Config returns the current settings
func (c *Controller) Config() Config {
	var cfg Config
	_ = c.loop.Call(func() {
		cfg = c.config()
	})
	return cfg
}

// Close tears the controller down. The pending overlay timer and any in-flight
// resolution are invalidated and the engine item is unloaded.
func (c *Controller) Close() {
	_ = c.loop.Call(func() {
		if c.closed {
			return
		}
		c.closed = true
		c.cancelItem()
		c.cancel()
		c.overlay.Close()
		c.engine.Unload()
		c.log.Debug().Msg("Media player controller closed")
	})
	if c.ownsLoop {
		c.loop.Close()
	}
}

func (c *Controller) config() Config {
	return Config{
		Live:               c.live,
		OverlayHidingDelay: c.overlay.HidingDelay(),
		AutoPlay:           c.autoPlay,
	}
}

// cancelItem invalidates work tied to the current item
func (c *Controller) cancelItem() {
	if c.cancelResolve != nil {
		c.cancelResolve()
		c.cancelResolve = nil
	}
}

func (c *Controller) playURL(u string) {
	c.cancelItem()
	c.overlay.Reset()

	c.itemID = uuid.New()
	c.url = u
	c.timeRange = timerange.TimeRange{}
	c.currentTime = 0
	c.classification = timerange.Classification{}
	c.mediaType = timerange.MediaTypeUnknown

	gen := c.machine.Load()

	c.log.Info().
		Str("item_id", c.itemID.String()).
		Str("url", u).
		Bool("resolve", c.dataSource != nil).
		Msg("Loading media")

	if c.dataSource == nil {
		c.load(gen, u)
		return
	}

	ctx, cancel := context.WithCancel(c.ctx)
	c.cancelResolve = cancel
	ds := c.dataSource
	go func() {
		resolved, err := ds.ResolveURL(ctx, u)
		c.loop.Post(func() {
			c.handleResolved(gen, resolved, err)
		})
	}()
}

func (c *Controller) handleResolved(gen uint64, resolved string, err error) {
	if c.closed || gen != c.machine.Generation() {
		return
	}
	c.cancelItem()

	if err == nil && resolved == "" {
		err = ErrEmptyURL
	}
	if err != nil {
		c.fail(playback.NewDataSourceError(err))
		return
	}

	c.log.Debug().
		Str("item_id", c.itemID.String()).
		Str("identifier", c.url).
		Str("url", resolved).
		Msg("Media identifier resolved")
	c.load(gen, resolved)
}

func (c *Controller) load(gen uint64, u string) {
	listener := &itemListener{c: c, gen: gen}
	if err := c.engine.Load(c.ctx, u, listener); err != nil {
		c.fail(playback.NewPlaybackError(err))
	}
}

func (c *Controller) play() error {
	if err := c.machine.Play(); err != nil {
		return err
	}
	if c.machine.State() == playback.StatePlaying {
		c.engine.Play()
	}
	return nil
}

func (c *Controller) seek(to time.Duration) error {
	token, err := c.machine.BeginSeek()
	if err != nil {
		return err
	}

	if r := c.engine.SeekableRange(); !r.Empty() {
		to = min(max(to, r.Start), r.End)
	}

	gen := c.machine.Generation()
	c.engine.Seek(to, func(finished bool) {
		c.loop.Post(func() {
			if c.closed || gen != c.machine.Generation() {
				return
			}
			if err := c.machine.CompleteSeek(token); err != nil {
				return
			}
			// Play or Pause issued mid-seek only retargeted the machine
			switch c.machine.State() {
			case playback.StatePlaying:
				c.engine.Play()
			case playback.StatePaused:
				c.engine.Pause()
			}
			c.log.Debug().Dur("position", to).Bool("finished", finished).Msg("Seek completed")
			c.refresh()
		})
	})
	return nil
}

func (c *Controller) fail(err *playback.Error) {
	if ferr := c.machine.Fail(err); ferr != nil {
		c.log.Debug().Err(ferr).Msg("Ignoring failure signal")
	}
}

// refresh recomputes the time range, classification and media type from the engine
func (c *Controller) refresh() {
	c.timeRange = c.engine.SeekableRange()
	c.currentTime = c.engine.CurrentTime()
	c.classification = timerange.Classify(c.timeRange, c.engine.Duration(), c.currentTime, c.live)
	c.mediaType = timerange.MediaTypeFromTracks(c.engine.Tracks())
}

func (c *Controller) isLiveStream() bool {
	st := c.classification.StreamType
	return st == timerange.StreamTypeLive || st == timerange.StreamTypeDVR
}

func (c *Controller) handleTransition(t playback.Transition) {
	c.overlay.SetPlaybackState(t.To)

	event := c.log.Info()
	if t.Err != nil {
		event = c.log.Error().Err(t.Err).Str("category", t.Err.Category.String())
	}
	event.
		Str("item_id", c.itemID.String()).
		Str("from", t.From.String()).
		Str("to", t.To.String()).
		Msg("Playback state changed")

	change := StateChange{ItemID: c.itemID, From: t.From, To: t.To, Err: t.Err}
	for _, fn := range c.stateListeners {
		fn(change)
	}
}

func (c *Controller) handleOverlayChange(visible bool) {
	for _, fn := range c.overlayListeners {
		fn(visible)
	}
}

// itemListener forwards engine signals for one item generation onto the loop.
// Signals from a superseded item are dropped.
type itemListener struct {
	c   *Controller
	gen uint64
}

func (l *itemListener) post(f func(c *Controller)) {
	c := l.c
	c.loop.Post(func() {
		if c.closed || l.gen != c.machine.Generation() {
			return
		}
		f(c)
	})
}

func (l *itemListener) ItemReady() {
	l.post(func(c *Controller) {
		if err := c.machine.ItemReady(); err != nil {
			c.log.Debug().Err(err).Msg("Ignoring item ready signal")
			return
		}
		c.refresh()
		c.log.Info().
			Str("item_id", c.itemID.String()).
			Str("stream_type", c.classification.StreamType.String()).
			Str("media_type", c.mediaType.String()).
			Str("time_range", c.timeRange.String()).
			Msg("Media ready")
		if c.autoPlay {
			_ = c.play()
		}
	})
}

func (l *itemListener) ItemFailed(err error) {
	l.post(func(c *Controller) {
		c.fail(playback.NewPlaybackError(err))
	})
}

func (l *itemListener) Stalled() {
	l.post(func(c *Controller) {
		if err := c.machine.BufferEmpty(); err != nil {
			c.log.Debug().Err(err).Msg("Ignoring stall signal")
		}
	})
}

func (l *itemListener) Resumed() {
	l.post(func(c *Controller) {
		_ = c.machine.BufferReady()
	})
}

func (l *itemListener) Ended() {
	l.post(func(c *Controller) {
		c.refresh()
		if c.isLiveStream() {
			return
		}
		_ = c.machine.ReachedEnd()
	})
}

func (l *itemListener) TimeUpdate() {
	l.post(func(c *Controller) {
		c.refresh()
		if c.machine.State() != playback.StatePlaying || c.isLiveStream() {
			return
		}
		if !c.timeRange.Empty() && c.currentTime >= c.timeRange.End {
			_ = c.machine.ReachedEnd()
		}
	})
}
