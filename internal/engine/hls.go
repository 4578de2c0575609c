// Package engine provides an HLS playback engine for the media player
// controller. It decodes playlists and drives a virtual playhead from the
// clock; live playlists are reloaded every target duration.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/mo"
	"github.com/stwalsh4118/playerctl/internal/clock"
	"github.com/stwalsh4118/playerctl/internal/logger"
	"github.com/stwalsh4118/playerctl/internal/player"
	"github.com/stwalsh4118/playerctl/internal/timerange"
)

const (
	DefaultTimeUpdateInterval     = time.Second
	DefaultHTTPTimeout            = 10 * time.Second
	DefaultReloadFailureThreshold = 3
)

// Options configures an HLS engine
type Options struct {
	Clock                  clock.Clock
	HTTPTimeout            time.Duration
	TimeUpdateInterval     time.Duration
	ReloadFailureThreshold int
	// PictureInPicture advertises picture in picture support to the controller
	PictureInPicture bool
}

// HLS is a player.Engine backed by HLS playlists
type HLS struct {
	fetcher   *Fetcher
	clock     clock.Clock
	interval  time.Duration
	threshold int
	pip       bool
	log       zerolog.Logger

	mu   sync.Mutex
	item *item
}

// item is one loaded playlist and its playhead. All fields are guarded by HLS.mu.
type item struct {
	url      string
	listener player.EngineListener
	cancel   context.CancelFunc
	breaker  *Breaker

	playlist *Playlist
	playing  bool
	stalled  bool
	ended    bool
	// position is the playhead at anchor; while playing it advances with the clock
	position time.Duration
	anchor   time.Time

	ticker   clock.Timer
	reloader clock.Timer
}

var _ player.Engine = (*HLS)(nil)
var _ player.PictureInPictureSupport = (*HLS)(nil)

// New creates an HLS engine
func New(opts Options) *HLS {
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.HTTPTimeout <= 0 {
		opts.HTTPTimeout = DefaultHTTPTimeout
	}
	if opts.TimeUpdateInterval <= 0 {
		opts.TimeUpdateInterval = DefaultTimeUpdateInterval
	}
	if opts.ReloadFailureThreshold <= 0 {
		opts.ReloadFailureThreshold = DefaultReloadFailureThreshold
	}

	return &HLS{
		fetcher:   NewFetcher(opts.HTTPTimeout),
		clock:     opts.Clock,
		interval:  opts.TimeUpdateInterval,
		threshold: opts.ReloadFailureThreshold,
		pip:       opts.PictureInPicture,
		log:       logger.Component("engine"),
	}
}

// Load replaces the current item with url. The playlist is fetched in the
// background; listener receives ItemReady or ItemFailed.
func (e *HLS) Load(ctx context.Context, url string, listener player.EngineListener) error {
	if err := CheckURL(url); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	it := &item{
		url:      url,
		listener: listener,
		cancel:   cancel,
		breaker:  NewBreaker(e.clock, e.threshold, 30*time.Second),
	}

	e.mu.Lock()
	e.unloadLocked()
	e.item = it
	e.mu.Unlock()

	go e.fetchInitial(ctx, it)
	return nil
}

func (e *HLS) fetchInitial(ctx context.Context, it *item) {
	p, err := e.fetcher.Fetch(ctx, it.url)

	e.mu.Lock()
	if e.item != it {
		e.mu.Unlock()
		return
	}
	if err != nil {
		e.mu.Unlock()
		e.log.Error().Err(err).Str("url", it.url).Msg("Failed to load playlist")
		it.listener.ItemFailed(err)
		return
	}

	it.playlist = p
	it.position = p.Window.Start
	if p.Live {
		it.position = p.Window.End
		e.scheduleReloadLocked(ctx, it)
	}
	e.mu.Unlock()

	e.log.Info().
		Str("url", it.url).
		Str("media_playlist", p.URL).
		Bool("live", p.Live).
		Int("segments", p.Segments).
		Str("window", p.Window.String()).
		Msg("Playlist loaded")
	it.listener.ItemReady()
}

// Play starts advancing the playhead
func (e *HLS) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()

	it := e.item
	if it == nil || it.playlist == nil || it.playing || it.ended {
		return
	}
	it.playing = true
	it.anchor = e.clock.Now()
	e.scheduleTickLocked(it)
}

// Pause freezes the playhead
func (e *HLS) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()

	it := e.item
	if it == nil || !it.playing {
		return
	}
	it.position = e.positionLocked(it)
	it.playing = false
	stopTimer(&it.ticker)
}

// Seek moves the playhead within the current window
func (e *HLS) Seek(to time.Duration, done func(finished bool)) {
	e.mu.Lock()
	it := e.item
	finished := it != nil && it.playlist != nil
	if finished {
		w := it.playlist.Window
		it.position = min(max(to, w.Start), w.End)
		it.anchor = e.clock.Now()
		it.ended = false
	}
	e.mu.Unlock()

	go done(finished)
}

// Unload drops the current item
func (e *HLS) Unload() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.unloadLocked()
}

// CurrentTime returns the playhead
func (e *HLS) CurrentTime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.item == nil {
		return 0
	}
	return e.positionLocked(e.item)
}

// SeekableRange returns the playlist window, empty before the playlist is loaded
func (e *HLS) SeekableRange() timerange.TimeRange {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.item == nil || e.item.playlist == nil {
		return timerange.TimeRange{}
	}
	return e.item.playlist.Window
}

// Duration returns the bounded playlist duration, None for live playlists
func (e *HLS) Duration() mo.Option[time.Duration] {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.item == nil || e.item.playlist == nil {
		return mo.None[time.Duration]()
	}
	return e.item.playlist.Duration()
}

// Rate is 1 while the playhead advances, 0 otherwise
func (e *HLS) Rate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if it := e.item; it != nil && it.playing && !it.stalled {
		return 1
	}
	return 0
}

// Tracks returns the tracks advertised by the master playlist
func (e *HLS) Tracks() []timerange.Track {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.item == nil || e.item.playlist == nil {
		return nil
	}
	return append([]timerange.Track(nil), e.item.playlist.Tracks...)
}

// PictureInPictureSupported reports whether the engine was configured with picture in picture
func (e *HLS) PictureInPictureSupported() bool {
	return e.pip
}

// NewPictureInPictureController returns a controller presenting surface in picture in picture
func (e *HLS) NewPictureInPictureController(surface player.Surface) (player.PictureInPictureController, error) {
	if !e.pip {
		return nil, errors.New("picture in picture is not supported")
	}
	return &PictureInPicture{surface: surface.SurfaceID(), log: e.log}, nil
}

// positionLocked returns the playhead, advanced by the time played since anchor
func (e *HLS) positionLocked(it *item) time.Duration {
	pos := it.position
	if it.playing && !it.stalled {
		pos += e.clock.Now().Sub(it.anchor)
	}
	if it.playlist != nil {
		pos = min(pos, it.playlist.Window.End)
	}
	return pos
}

func (e *HLS) unloadLocked() {
	it := e.item
	if it == nil {
		return
	}
	it.cancel()
	stopTimer(&it.ticker)
	stopTimer(&it.reloader)
	e.item = nil
}

func (e *HLS) scheduleTickLocked(it *item) {
	stopTimer(&it.ticker)
	it.ticker = e.clock.AfterFunc(e.interval, func() { e.tick(it) })
}

func (e *HLS) tick(it *item) {
	e.mu.Lock()
	if e.item != it || !it.playing {
		e.mu.Unlock()
		return
	}

	pos := e.positionLocked(it)
	ended := !it.playlist.Live && pos >= it.playlist.Window.End
	if ended {
		it.position = it.playlist.Window.End
		it.playing = false
		it.ended = true
		it.ticker = nil
	} else {
		e.scheduleTickLocked(it)
	}
	e.mu.Unlock()

	it.listener.TimeUpdate()
	if ended {
		e.log.Debug().Str("url", it.url).Msg("Playlist ended")
		it.listener.Ended()
	}
}

func (e *HLS) scheduleReloadLocked(ctx context.Context, it *item) {
	delay := it.playlist.TargetDuration
	if delay <= 0 {
		delay = e.interval
	}
	it.reloader = e.clock.AfterFunc(delay, func() {
		go e.reload(ctx, it)
	})
}

// reload refreshes a live playlist. Failed reloads stall playback; once the
// breaker opens the item fails.
func (e *HLS) reload(ctx context.Context, it *item) {
	var p *Playlist
	err := it.breaker.Call(func() error {
		var ferr error
		p, ferr = e.fetcher.Fetch(ctx, it.url)
		return ferr
	})

	e.mu.Lock()
	if e.item != it {
		e.mu.Unlock()
		return
	}
	it.reloader = nil

	if err != nil {
		stalled := !it.stalled
		if stalled {
			it.position = e.positionLocked(it)
			it.stalled = true
		}
		failed := !it.breaker.CanAttempt()
		if !failed {
			e.scheduleReloadLocked(ctx, it)
		}
		e.mu.Unlock()

		e.log.Warn().Err(err).Str("url", it.url).Int("failures", it.breaker.Failures()).Msg("Playlist reload failed")
		if stalled {
			it.listener.Stalled()
		}
		if failed {
			it.listener.ItemFailed(fmt.Errorf("live playlist unavailable: %w", err))
		}
		return
	}

	p.Tracks = it.playlist.Tracks
	it.playlist = p
	resumed := it.stalled
	if resumed {
		it.stalled = false
		it.anchor = e.clock.Now()
	}
	if p.Live {
		e.scheduleReloadLocked(ctx, it)
	}
	e.mu.Unlock()

	if resumed {
		it.listener.Resumed()
	}
	it.listener.TimeUpdate()
}

func stopTimer(t *clock.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

// PictureInPicture tracks the picture in picture presentation of one surface
type PictureInPicture struct {
	surface string
	log     zerolog.Logger

	mu     sync.Mutex
	active bool
}

// Active reports whether the surface is presented in picture in picture
func (p *PictureInPicture) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Start presents the surface in picture in picture
func (p *PictureInPicture) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = true
	p.log.Debug().Str("surface", p.surface).Msg("Picture in picture started")
	return nil
}

// Stop returns the surface to its inline presentation
func (p *PictureInPicture) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = false
	p.log.Debug().Str("surface", p.surface).Msg("Picture in picture stopped")
	return nil
}
