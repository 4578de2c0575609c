package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/mo"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/playerctl/internal/catalog"
	"github.com/stwalsh4118/playerctl/internal/db"
	"github.com/stwalsh4118/playerctl/internal/player"
	"github.com/stwalsh4118/playerctl/internal/timerange"
)

// stubEngine becomes ready right after Load with a fixed VOD window
type stubEngine struct {
	mu       sync.Mutex
	playing  bool
	position time.Duration
	urls     []string
	pip      bool
}

func (e *stubEngine) Load(_ context.Context, url string, listener player.EngineListener) error {
	e.mu.Lock()
	e.urls = append(e.urls, url)
	e.position = 0
	e.mu.Unlock()
	go listener.ItemReady()
	return nil
}

func (e *stubEngine) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playing = true
}

func (e *stubEngine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playing = false
}

func (e *stubEngine) Seek(to time.Duration, done func(bool)) {
	e.mu.Lock()
	e.position = to
	e.mu.Unlock()
	go done(true)
}

func (e *stubEngine) Unload() {}

func (e *stubEngine) CurrentTime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position
}

func (e *stubEngine) SeekableRange() timerange.TimeRange {
	return timerange.TimeRange{End: time.Minute}
}

func (e *stubEngine) Duration() mo.Option[time.Duration] { return mo.Some(time.Minute) }

func (e *stubEngine) Rate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.playing {
		return 1
	}
	return 0
}

func (e *stubEngine) Tracks() []timerange.Track {
	return []timerange.Track{{Kind: timerange.TrackKindVideo}, {Kind: timerange.TrackKindAudio}}
}

func (e *stubEngine) PictureInPictureSupported() bool { return e.pip }

func (e *stubEngine) NewPictureInPictureController(player.Surface) (player.PictureInPictureController, error) {
	return &stubPiP{}, nil
}

func (e *stubEngine) loaded() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.urls...)
}

type stubPiP struct {
	mu     sync.Mutex
	active bool
}

func (p *stubPiP) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

func (p *stubPiP) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = true
	return nil
}

func (p *stubPiP) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = false
	return nil
}

// setupTestDB creates a migrated database in a temp dir
func setupTestDB(t *testing.T) (*db.DB, *db.Repositories) {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	sqlDB, err := database.SQLDB()
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(sqlDB))

	return database, db.NewRepositories(database)
}

type testEnv struct {
	router     *gin.Engine
	engine     *stubEngine
	controller *player.Controller
	repos      *db.Repositories
}

// setupTestRouter wires every route against a stub engine and a temp database
func setupTestRouter(t *testing.T, opts ...player.Option) *testEnv {
	t.Helper()

	database, repos := setupTestDB(t)
	engine := &stubEngine{pip: true}
	controller := player.New(engine, opts...)
	t.Cleanup(controller.Close)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	apiGroup := router.Group("/api")
	SetupHealthRoutes(apiGroup, database, controller)
	SetupPlayerRoutes(apiGroup, controller, repos.Settings)
	SetupCatalogRoutes(apiGroup, catalog.NewService(repos))

	return &testEnv{router: router, engine: engine, controller: controller, repos: repos}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// waitForState polls GET /api/player until the playback state matches
func (e *testEnv) waitForState(t *testing.T, want string) PlayerResponse {
	t.Helper()
	var resp PlayerResponse
	require.Eventually(t, func() bool {
		req := httptest.NewRequest(http.MethodGet, "/api/player", nil)
		w := httptest.NewRecorder()
		e.router.ServeHTTP(w, req)
		if w.Code != http.StatusOK || json.Unmarshal(w.Body.Bytes(), &resp) != nil {
			return false
		}
		return resp.PlaybackState == want
	}, 2*time.Second, 10*time.Millisecond)
	return resp
}
