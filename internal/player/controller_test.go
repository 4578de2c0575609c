package player

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/playerctl/internal/clock"
	"github.com/stwalsh4118/playerctl/internal/playback"
	"github.com/stwalsh4118/playerctl/internal/timerange"
	"go.uber.org/goleak"
)

// fakeEngine is a test helper that implements Engine with scripted state
type fakeEngine struct {
	mu sync.Mutex

	loadErr    error
	loads      []string
	listener   EngineListener
	playCalls  int
	pauseCalls int
	unloads    int
	seeks      []time.Duration
	seekDone   []func(bool)

	current  time.Duration
	seekable timerange.TimeRange
	duration mo.Option[time.Duration]
	tracks   []timerange.Track
}

func (e *fakeEngine) Load(_ context.Context, url string, l EngineListener) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loads = append(e.loads, url)
	if e.loadErr != nil {
		return e.loadErr
	}
	e.listener = l
	return nil
}

func (e *fakeEngine) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playCalls++
}

func (e *fakeEngine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pauseCalls++
}

func (e *fakeEngine) Seek(to time.Duration, done func(bool)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seeks = append(e.seeks, to)
	e.seekDone = append(e.seekDone, done)
}

func (e *fakeEngine) Unload() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.unloads++
}

func (e *fakeEngine) CurrentTime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

func (e *fakeEngine) SeekableRange() timerange.TimeRange {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seekable
}

func (e *fakeEngine) Duration() mo.Option[time.Duration] {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.duration
}

func (e *fakeEngine) Rate() float64 { return 1 }

func (e *fakeEngine) Tracks() []timerange.Track {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracks
}

func (e *fakeEngine) currentListener() EngineListener {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.listener
}

func (e *fakeEngine) setPosition(current time.Duration, seekable timerange.TimeRange, duration mo.Option[time.Duration]) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = current
	e.seekable = seekable
	e.duration = duration
}

func (e *fakeEngine) loadedURLs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.loads...)
}

// fakePiPEngine adds picture in picture support to fakeEngine
type fakePiPEngine struct {
	fakeEngine
	supported bool
}

type fakePiP struct{ surface string }

func (p *fakePiP) Active() bool { return false }
func (p *fakePiP) Start() error { return nil }
func (p *fakePiP) Stop() error  { return nil }

func (e *fakePiPEngine) PictureInPictureSupported() bool { return e.supported }

func (e *fakePiPEngine) NewPictureInPictureController(s Surface) (PictureInPictureController, error) {
	return &fakePiP{surface: s.SurfaceID()}, nil
}

var testStart = time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)

type harness struct {
	c       *Controller
	engine  *fakeEngine
	clock   *clock.FakeClock
	changes []StateChange
	mu      sync.Mutex
}

func newHarness(t *testing.T, engine Engine, opts ...Option) *harness {
	t.Helper()
	h := &harness{clock: clock.NewFakeClock(testStart)}
	switch e := engine.(type) {
	case *fakeEngine:
		h.engine = e
	case *fakePiPEngine:
		h.engine = &e.fakeEngine
	}

	opts = append([]Option{WithClock(h.clock)}, opts...)
	h.c = New(engine, opts...)
	h.c.OnPlaybackStateChange(func(sc StateChange) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.changes = append(h.changes, sc)
	})
	t.Cleanup(h.c.Close)
	return h
}

// flush waits until every task queued on the loop so far has run
func (h *harness) flush() {
	_ = h.c.loop.Call(func() {})
}

// advance moves the fake clock and lets fired timers run on the loop
func (h *harness) advance(d time.Duration) {
	h.clock.Advance(d)
	h.flush()
}

func (h *harness) states() []playback.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	states := make([]playback.State, 0, len(h.changes))
	for _, sc := range h.changes {
		states = append(states, sc.To)
	}
	return states
}

func (h *harness) lastChange() StateChange {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.changes[len(h.changes)-1]
}

// startVOD loads a two hour bounded item and lets it autoplay
func (h *harness) startVOD(t *testing.T) EngineListener {
	t.Helper()
	h.engine.setPosition(0, timerange.TimeRange{End: 2 * time.Hour}, mo.Some(2*time.Hour))
	require.NoError(t, h.c.PlayURL("https://example.com/movie.m3u8"))
	l := h.engine.currentListener()
	require.NotNil(t, l)
	l.ItemReady()
	h.flush()
	require.Equal(t, playback.StatePlaying, h.c.PlaybackState())
	return l
}

func TestController_PlayURLAutoplaysVOD(t *testing.T) {
	h := newHarness(t, &fakeEngine{tracks: []timerange.Track{timerange.TrackFromCodec("avc1.640028")}})
	h.startVOD(t)

	assert.Equal(t, []playback.State{playback.StatePreparing, playback.StateReady, playback.StatePlaying}, h.states())
	assert.Equal(t, []string{"https://example.com/movie.m3u8"}, h.engine.loadedURLs())
	assert.Equal(t, 1, h.engine.playCalls)

	snap := h.c.Snapshot()
	assert.Equal(t, timerange.StreamTypeVOD, snap.StreamType)
	assert.Equal(t, timerange.MediaTypeVideo, snap.MediaType)
	assert.False(t, snap.IsLive)
	assert.Equal(t, 2*time.Hour, snap.TimeRange.End)
	assert.Equal(t, "https://example.com/movie.m3u8", snap.URL)
	assert.NotEqual(t, snap.ItemID.String(), "00000000-0000-0000-0000-000000000000")
}

func TestController_NoAutoplayWaitsInReady(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutoPlay = false
	h := newHarness(t, &fakeEngine{}, WithConfig(cfg))

	require.NoError(t, h.c.PlayURL("https://example.com/a.m3u8"))
	h.engine.currentListener().ItemReady()
	h.flush()
	assert.Equal(t, playback.StateReady, h.c.PlaybackState())

	require.NoError(t, h.c.Play())
	assert.Equal(t, playback.StatePlaying, h.c.PlaybackState())
}

func TestController_EmptyURLRejected(t *testing.T) {
	h := newHarness(t, &fakeEngine{})
	assert.ErrorIs(t, h.c.PlayURL(""), ErrEmptyURL)
	assert.Equal(t, playback.StateIdle, h.c.PlaybackState())
}

func TestController_DVRLiveDetectionOnTimeUpdate(t *testing.T) {
	h := newHarness(t, &fakeEngine{})
	require.NoError(t, h.c.SetLiveConfiguration(timerange.LiveConfiguration{
		MinimumDVRWindowLength: 60 * time.Second,
		LiveTolerance:          30 * time.Second,
	}))

	window := timerange.TimeRange{Start: 0, End: 3600 * time.Second, Indefinite: true}
	h.engine.setPosition(window.End-10*time.Second, window, mo.None[time.Duration]())
	require.NoError(t, h.c.PlayURL("https://example.com/live.m3u8"))
	l := h.engine.currentListener()
	l.ItemReady()
	h.flush()

	assert.Equal(t, timerange.StreamTypeDVR, h.c.StreamType())
	assert.True(t, h.c.IsLive())

	h.engine.setPosition(window.End-45*time.Second, window, mo.None[time.Duration]())
	l.TimeUpdate()
	h.flush()
	assert.Equal(t, timerange.StreamTypeDVR, h.c.StreamType())
	assert.False(t, h.c.IsLive())

	narrow := timerange.TimeRange{Start: 100 * time.Second, End: 120 * time.Second, Indefinite: true}
	h.engine.setPosition(narrow.End, narrow, mo.None[time.Duration]())
	l.TimeUpdate()
	h.flush()
	assert.Equal(t, timerange.StreamTypeLive, h.c.StreamType())
	assert.True(t, h.c.IsLive())
	assert.Equal(t, playback.StatePlaying, h.c.PlaybackState(), "live streams never end on time updates")
}

func TestController_LiveConfigurationAppliesOnNextEvaluation(t *testing.T) {
	h := newHarness(t, &fakeEngine{})
	window := timerange.TimeRange{End: 600 * time.Second, Indefinite: true}
	h.engine.setPosition(window.End, window, mo.None[time.Duration]())

	require.NoError(t, h.c.PlayURL("https://example.com/live.m3u8"))
	l := h.engine.currentListener()
	l.ItemReady()
	h.flush()
	assert.Equal(t, timerange.StreamTypeDVR, h.c.StreamType())

	require.NoError(t, h.c.SetMinimumDVRWindowLength(time.Hour))
	assert.Equal(t, timerange.StreamTypeDVR, h.c.StreamType(), "no retroactive reclassification")

	l.TimeUpdate()
	h.flush()
	assert.Equal(t, timerange.StreamTypeLive, h.c.StreamType())
}

func TestController_EndDetectedForVOD(t *testing.T) {
	h := newHarness(t, &fakeEngine{})
	l := h.startVOD(t)

	h.engine.setPosition(2*time.Hour, timerange.TimeRange{End: 2 * time.Hour}, mo.Some(2*time.Hour))
	l.TimeUpdate()
	h.flush()
	assert.Equal(t, playback.StateEnded, h.c.PlaybackState())

	// A late engine end signal is harmless
	l.Ended()
	h.flush()
	assert.Equal(t, playback.StateEnded, h.c.PlaybackState())
}

func TestController_EngineEndIgnoredForLive(t *testing.T) {
	h := newHarness(t, &fakeEngine{})
	window := timerange.TimeRange{End: time.Hour, Indefinite: true}
	h.engine.setPosition(window.End, window, mo.None[time.Duration]())
	require.NoError(t, h.c.PlayURL("https://example.com/live.m3u8"))
	l := h.engine.currentListener()
	l.ItemReady()
	h.flush()

	l.Ended()
	h.flush()
	assert.Equal(t, playback.StatePlaying, h.c.PlaybackState())
}

func TestController_StallAndResume(t *testing.T) {
	h := newHarness(t, &fakeEngine{})
	l := h.startVOD(t)

	l.Stalled()
	h.flush()
	assert.Equal(t, playback.StateStalled, h.c.PlaybackState())

	l.Resumed()
	h.flush()
	assert.Equal(t, playback.StatePlaying, h.c.PlaybackState())

	require.NoError(t, h.c.Pause())
	l.Stalled()
	l.Resumed()
	h.flush()
	assert.Equal(t, playback.StatePaused, h.c.PlaybackState(), "paused content never auto-plays")
	assert.Equal(t, 1, h.engine.pauseCalls)
}

func TestController_SeekReturnsToPreviousState(t *testing.T) {
	h := newHarness(t, &fakeEngine{})
	h.startVOD(t)
	require.NoError(t, h.c.Pause())

	require.NoError(t, h.c.Seek(3*time.Hour))
	assert.Equal(t, playback.StateSeeking, h.c.PlaybackState())
	require.Len(t, h.engine.seeks, 1)
	assert.Equal(t, 2*time.Hour, h.engine.seeks[0], "seek target is clamped to the seekable range")

	h.engine.seekDone[0](true)
	h.flush()
	assert.Equal(t, playback.StatePaused, h.c.PlaybackState())
}

func TestController_PlayDuringSeekStartsEngine(t *testing.T) {
	h := newHarness(t, &fakeEngine{})
	h.startVOD(t)
	require.NoError(t, h.c.Pause())
	require.NoError(t, h.c.Seek(10*time.Second))

	require.NoError(t, h.c.Play())
	assert.Equal(t, playback.StateSeeking, h.c.PlaybackState())
	assert.Equal(t, 1, h.engine.playCalls)

	h.engine.seekDone[0](true)
	h.flush()
	assert.Equal(t, playback.StatePlaying, h.c.PlaybackState())
	assert.Equal(t, 2, h.engine.playCalls, "engine resumes when the seek lands in Playing")
}

func TestController_PauseDuringSeekPausesEngine(t *testing.T) {
	h := newHarness(t, &fakeEngine{})
	h.startVOD(t)
	require.NoError(t, h.c.Seek(10*time.Second))

	require.NoError(t, h.c.Pause())
	h.engine.seekDone[0](true)
	h.flush()
	assert.Equal(t, playback.StatePaused, h.c.PlaybackState())
	assert.GreaterOrEqual(t, h.engine.pauseCalls, 1)
}

func TestController_SeekFromReadyRejected(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutoPlay = false
	h := newHarness(t, &fakeEngine{}, WithConfig(cfg))
	require.NoError(t, h.c.PlayURL("https://example.com/a.m3u8"))
	h.engine.currentListener().ItemReady()
	h.flush()

	assert.ErrorIs(t, h.c.Seek(time.Minute), playback.ErrInvalidTransition)
}

func TestController_NewItemInvalidatesSeekAndSignals(t *testing.T) {
	h := newHarness(t, &fakeEngine{})
	old := h.startVOD(t)
	require.NoError(t, h.c.Seek(time.Minute))

	require.NoError(t, h.c.PlayURL("https://example.com/next.m3u8"))
	assert.Equal(t, playback.StatePreparing, h.c.PlaybackState())

	// Everything tied to the first item arrives late
	h.engine.seekDone[0](true)
	old.ItemFailed(errors.New("late failure"))
	old.ItemReady()
	h.flush()
	assert.Equal(t, playback.StatePreparing, h.c.PlaybackState())

	h.engine.currentListener().ItemReady()
	h.flush()
	assert.Equal(t, playback.StatePlaying, h.c.PlaybackState())
}

func TestController_EngineFailureSurfacesPlaybackError(t *testing.T) {
	h := newHarness(t, &fakeEngine{})
	l := h.startVOD(t)

	cause := errors.New("network unreachable")
	l.ItemFailed(cause)
	h.flush()

	assert.Equal(t, playback.StateFailed, h.c.PlaybackState())
	last := h.lastChange()
	assert.Equal(t, playback.StatePlaying, last.From)
	require.NotNil(t, last.Err)
	assert.Equal(t, playback.CategoryPlayback, last.Err.Category)
	assert.ErrorIs(t, last.Err, cause)
	assert.Equal(t, "playback", h.c.Snapshot().ErrorCategory)

	assert.ErrorIs(t, h.c.Play(), playback.ErrInvalidTransition, "failed items are not retried")
}

func TestController_EngineLoadErrorFailsItem(t *testing.T) {
	h := newHarness(t, &fakeEngine{loadErr: errors.New("unsupported scheme")})

	require.NoError(t, h.c.PlayURL("ftp://example.com/a"))
	assert.Equal(t, playback.StateFailed, h.c.PlaybackState())
	assert.True(t, playback.IsPlayback(h.c.Err()))
}

func TestController_DataSourceResolvesIdentifier(t *testing.T) {
	ds := DataSourceFunc(func(_ context.Context, id string) (string, error) {
		return "https://cdn.example.com/" + id + ".m3u8", nil
	})
	h := newHarness(t, &fakeEngine{}, WithDataSource(ds))

	require.NoError(t, h.c.PlayURL("urn:show:42"))
	require.Eventually(t, func() bool {
		return len(h.engine.loadedURLs()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "https://cdn.example.com/urn:show:42.m3u8", h.engine.loadedURLs()[0])
	assert.Equal(t, playback.StatePreparing, h.c.PlaybackState())
}

func TestController_DataSourceFailure(t *testing.T) {
	cause := errors.New("identifier not found")
	ds := DataSourceFunc(func(context.Context, string) (string, error) {
		return "", cause
	})
	h := newHarness(t, &fakeEngine{}, WithDataSource(ds))

	require.NoError(t, h.c.PlayURL("urn:missing"))
	require.Eventually(t, func() bool {
		return h.c.PlaybackState() == playback.StateFailed
	}, time.Second, 5*time.Millisecond)

	err := h.c.Err()
	require.NotNil(t, err)
	assert.Equal(t, playback.CategoryDataSource, err.Category)
	assert.ErrorIs(t, err, cause)
	assert.Empty(t, h.engine.loadedURLs())
}

func TestController_SupersededResolutionDropped(t *testing.T) {
	release := make(chan struct{})
	ds := DataSourceFunc(func(ctx context.Context, id string) (string, error) {
		if id == "slow" {
			<-release
			return "https://example.com/slow.m3u8", nil
		}
		return "https://example.com/" + id + ".m3u8", nil
	})
	h := newHarness(t, &fakeEngine{}, WithDataSource(ds))

	require.NoError(t, h.c.PlayURL("slow"))
	require.NoError(t, h.c.PlayURL("fast"))
	require.Eventually(t, func() bool {
		return len(h.engine.loadedURLs()) == 1
	}, time.Second, 5*time.Millisecond)

	close(release)
	time.Sleep(20 * time.Millisecond)
	h.flush()
	assert.Equal(t, []string{"https://example.com/fast.m3u8"}, h.engine.loadedURLs())
}

func TestController_OverlayHidesAfterDelayWhilePlaying(t *testing.T) {
	h := newHarness(t, &fakeEngine{})
	h.startVOD(t)

	var visibility []bool
	h.c.OnOverlayVisibilityChange(func(v bool) { visibility = append(visibility, v) })

	require.NoError(t, h.c.SetOverlayHidingDelay(5*time.Second))
	require.NoError(t, h.c.RegisterActivity())
	h.advance(4 * time.Second)
	assert.True(t, h.c.OverlaysVisible())

	h.advance(time.Second)
	assert.False(t, h.c.OverlaysVisible())

	require.NoError(t, h.c.RegisterActivity())
	assert.True(t, h.c.OverlaysVisible())
	h.flush()
	assert.Equal(t, []bool{false, true}, visibility)
}

func TestController_OverlayHeldWhilePaused(t *testing.T) {
	h := newHarness(t, &fakeEngine{})
	l := h.startVOD(t)

	require.NoError(t, h.c.Pause())
	h.advance(time.Minute)
	assert.True(t, h.c.OverlaysVisible())

	require.NoError(t, h.c.Play())
	l.Stalled()
	h.flush()
	h.advance(time.Minute)
	assert.True(t, h.c.OverlaysVisible())

	l.Resumed()
	h.flush()
	h.advance(DefaultConfig().OverlayHidingDelay)
	assert.False(t, h.c.OverlaysVisible())
}

func TestController_NewItemRestartsOverlayTimer(t *testing.T) {
	h := newHarness(t, &fakeEngine{})
	h.startVOD(t)

	h.advance(4 * time.Second)
	require.NoError(t, h.c.PlayURL("https://example.com/next.m3u8"))
	h.advance(2 * time.Second)
	assert.True(t, h.c.OverlaysVisible(), "timer from the previous item must not fire")

	h.advance(3 * time.Second)
	assert.False(t, h.c.OverlaysVisible())
}

func TestController_NewItemShowsHiddenOverlays(t *testing.T) {
	h := newHarness(t, &fakeEngine{})
	h.startVOD(t)

	require.NoError(t, h.c.ToggleOverlays())
	assert.False(t, h.c.OverlaysVisible())

	require.NoError(t, h.c.PlayURL("https://example.com/next.m3u8"))
	assert.True(t, h.c.OverlaysVisible())
}

func TestController_Gestures(t *testing.T) {
	h := newHarness(t, &fakeEngine{})

	require.NoError(t, h.c.HandleGesture(GestureSingleTap))
	assert.False(t, h.c.OverlaysVisible())
	require.NoError(t, h.c.HandleGesture(GestureSingleTap))
	assert.True(t, h.c.OverlaysVisible())

	assert.Equal(t, VideoGravityResizeAspect, h.c.VideoGravity())
	require.NoError(t, h.c.HandleGesture(GestureDoubleTap))
	assert.Equal(t, VideoGravityResizeAspectFill, h.c.VideoGravity())
	require.NoError(t, h.c.HandleGesture(GestureDoubleTap))
	assert.Equal(t, VideoGravityResizeAspect, h.c.VideoGravity())

	assert.Error(t, h.c.HandleGesture(Gesture(99)))
}

func TestController_Surfaces(t *testing.T) {
	h := newHarness(t, &fakeEngine{})

	require.NoError(t, h.c.SetOverlaySurfaces([]Surface{NamedSurface("controls"), NamedSurface("captions")}))
	require.NoError(t, h.c.SetActivitySurface(NamedSurface("player")))

	assert.Equal(t, []Surface{NamedSurface("controls"), NamedSurface("captions")}, h.c.OverlaySurfaces())
	assert.Equal(t, NamedSurface("player"), h.c.ActivitySurface())
	assert.Equal(t, []string{"controls", "captions"}, h.c.Snapshot().OverlaySurfaces)
}

func TestController_PictureInPicture(t *testing.T) {
	tests := []struct {
		name    string
		engine  Engine
		surface Surface
		want    bool
	}{
		{"engine without capability", &fakeEngine{}, NamedSurface("main"), false},
		{"platform without support", &fakePiPEngine{supported: false}, NamedSurface("main"), false},
		{"no surface attached", &fakePiPEngine{supported: true}, nil, false},
		{"supported and attached", &fakePiPEngine{supported: true}, NamedSurface("main"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.engine)
			assert.False(t, h.c.PictureInPictureController().IsPresent())

			require.NoError(t, h.c.AttachToSurface(tt.surface))
			pip := h.c.PictureInPictureController()
			assert.Equal(t, tt.want, pip.IsPresent())
			assert.Equal(t, tt.want, h.c.Snapshot().PictureInPictureAvailable)

			if pc, ok := pip.Get(); ok {
				assert.Equal(t, "main", pc.(*fakePiP).surface)
			}
		})
	}
}

func TestController_ConfigClampsNegativeValues(t *testing.T) {
	h := newHarness(t, &fakeEngine{})

	require.NoError(t, h.c.ApplyConfig(Config{
		Live:               timerange.LiveConfiguration{MinimumDVRWindowLength: -time.Second, LiveTolerance: -time.Second},
		OverlayHidingDelay: -time.Second,
		AutoPlay:           false,
	}))

	cfg := h.c.Config()
	assert.Equal(t, time.Duration(0), cfg.Live.MinimumDVRWindowLength)
	assert.Equal(t, time.Duration(0), cfg.Live.LiveTolerance)
	assert.Equal(t, time.Duration(0), cfg.OverlayHidingDelay)
	assert.False(t, cfg.AutoPlay)

	require.NoError(t, h.c.SetLiveTolerance(-time.Minute))
	assert.Equal(t, time.Duration(0), h.c.Config().Live.LiveTolerance)
}

func TestController_CloseRejectsCommands(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	engine := &fakeEngine{}
	c := New(engine, WithClock(clock.NewFakeClock(testStart)))
	require.NoError(t, c.PlayURL("https://example.com/a.m3u8"))

	c.Close()
	c.Close()

	assert.ErrorIs(t, c.PlayURL("https://example.com/b.m3u8"), ErrControllerClosed)
	assert.ErrorIs(t, c.Play(), ErrControllerClosed)
	assert.ErrorIs(t, c.RegisterActivity(), ErrControllerClosed)
	assert.Equal(t, 1, engine.unloads)
}

func TestController_SharedLoopSurvivesClose(t *testing.T) {
	loop := NewLoop()
	defer loop.Close()

	c := New(&fakeEngine{}, WithLoop(loop), WithClock(clock.NewFakeClock(testStart)))
	c.Close()

	ran := false
	require.NoError(t, loop.Call(func() { ran = true }))
	assert.True(t, ran)
	assert.ErrorIs(t, c.Pause(), ErrControllerClosed)
}
