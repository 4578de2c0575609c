//go:build integration
// +build integration

package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/playerctl/internal/api"
	"github.com/stwalsh4118/playerctl/internal/catalog"
	"github.com/stwalsh4118/playerctl/internal/config"
	"github.com/stwalsh4118/playerctl/internal/db"
	"github.com/stwalsh4118/playerctl/internal/engine"
	"github.com/stwalsh4118/playerctl/internal/metrics"
	"github.com/stwalsh4118/playerctl/internal/player"
	"github.com/stwalsh4118/playerctl/internal/server"
)

// setupTestDB creates a test database with migrations applied from the source tree
func setupTestDB(t *testing.T) (*db.DB, *db.Repositories) {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "integration.db"))
	require.NoError(t, err, "Failed to create database")
	t.Cleanup(func() { _ = database.Close() })

	sqlDB, err := database.SQLDB()
	require.NoError(t, err, "Failed to get SQL DB")

	// Resolve the migrations directory relative to this file so tests work
	// regardless of working directory
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok, "Failed to get current file path")

	rootDir := filepath.Dir(filepath.Dir(filepath.Dir(filename)))
	migrationsPath := "file://" + filepath.Join(rootDir, "internal", "db", "migrations")

	require.NoError(t, db.RunMigrationsFrom(sqlDB, migrationsPath), "Failed to run migrations")

	return database, db.NewRepositories(database)
}

// testService is a fully wired service: HLS engine, catalog data source,
// metrics and the HTTP router.
type testService struct {
	router     http.Handler
	controller *player.Controller
	metrics    *metrics.Metrics
}

func setupTestService(t *testing.T) *testService {
	t.Helper()

	database, repos := setupTestDB(t)

	cfg := &config.Config{
		Server: config.ServerConfig{
			Host:         "127.0.0.1",
			Port:         8080,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		},
		Logging: config.LoggingConfig{Level: "info"},
	}

	hls := engine.New(engine.Options{
		HTTPTimeout:            2 * time.Second,
		TimeUpdateInterval:     50 * time.Millisecond,
		ReloadFailureThreshold: 3,
	})
	controller := player.New(hls, player.WithDataSource(catalog.NewService(repos)))
	t.Cleanup(controller.Close)

	m := metrics.New()
	m.Observe(controller)

	srv := server.New(cfg, database, repos, controller, m)
	return &testService{router: srv.Router(), controller: controller, metrics: m}
}

func (s *testService) request(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) api.PlayerResponse {
	t.Helper()
	var resp api.PlayerResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// player reads the current player properties through the API
func (s *testService) player() (api.PlayerResponse, bool) {
	req := httptest.NewRequest(http.MethodGet, "/api/player", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp api.PlayerResponse
	if w.Code != http.StatusOK || json.Unmarshal(w.Body.Bytes(), &resp) != nil {
		return resp, false
	}
	return resp, true
}

// waitForState polls the API until the playback state matches
func (s *testService) waitForState(t *testing.T, want string, timeout time.Duration) api.PlayerResponse {
	t.Helper()

	var last api.PlayerResponse
	require.Eventually(t, func() bool {
		resp, ok := s.player()
		last = resp
		return ok && resp.PlaybackState == want
	}, timeout, 20*time.Millisecond, "playback state never became %s", want)
	return last
}

// cdn serves HLS playlists and can be taken offline. Live playlists slide by
// one segment on every request.
type cdn struct {
	server *httptest.Server

	mu      sync.Mutex
	offline bool
	seq     int
}

func newCDN(t *testing.T) *cdn {
	t.Helper()

	c := &cdn{}
	c.server = httptest.NewServer(http.HandlerFunc(c.serve))
	t.Cleanup(c.server.Close)
	return c
}

func (c *cdn) url(path string) string {
	return c.server.URL + path
}

func (c *cdn) setOffline(offline bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offline = offline
}

func (c *cdn) serve(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.offline {
		http.Error(w, "origin unavailable", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	switch r.URL.Path {
	case "/master.m3u8":
		_, _ = fmt.Fprint(w, "#EXTM3U\n"+
			"#EXT-X-STREAM-INF:BANDWIDTH=800000,CODECS=\"avc1.4d401f,mp4a.40.2\",RESOLUTION=640x360\nlow.m3u8\n"+
			"#EXT-X-STREAM-INF:BANDWIDTH=2500000,CODECS=\"avc1.640028,mp4a.40.2\",RESOLUTION=1280x720\nhigh.m3u8\n")
	case "/high.m3u8", "/low.m3u8":
		c.seq++
		_, _ = fmt.Fprint(w, livePlaylist(c.seq, 6))
	case "/radio.m3u8":
		_, _ = fmt.Fprint(w, "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=128000,CODECS=\"mp4a.40.2\"\naudio.m3u8\n")
	case "/audio.m3u8":
		_, _ = fmt.Fprint(w, livePlaylist(1, 1))
	case "/clip.m3u8":
		_, _ = fmt.Fprint(w, "#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:1\n#EXT-X-PLAYLIST-TYPE:VOD\n"+
			"#EXTINF:0.2,\nclip0.ts\n#EXTINF:0.2,\nclip1.ts\n#EXT-X-ENDLIST\n")
	default:
		http.NotFound(w, r)
	}
}

// livePlaylist renders a one second target duration sliding window
func livePlaylist(seq, segments int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:1\n#EXT-X-MEDIA-SEQUENCE:%d\n", seq)
	for i := range segments {
		fmt.Fprintf(&b, "#EXTINF:1.0,\nseg%d.ts\n", seq+i)
	}
	return b.String()
}
