package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/playerctl/internal/playback"
	"github.com/stwalsh4118/playerctl/internal/player"
)

func TestMetrics_ObserveTransition(t *testing.T) {
	m := New()

	m.ObserveTransition(player.StateChange{From: playback.StateIdle, To: playback.StatePreparing})
	m.ObserveTransition(player.StateChange{
		From: playback.StatePreparing,
		To:   playback.StateFailed,
		Err:  playback.NewDataSourceError(errors.New("not found")),
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitionsTotal.WithLabelValues("idle", "preparing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.itemsLoadedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failuresTotal.WithLabelValues("data_source")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.failuresTotal.WithLabelValues("playback")))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.playbackState.WithLabelValues("failed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.playbackState.WithLabelValues("preparing")))
}

func TestMetrics_ObserveOverlayVisibility(t *testing.T) {
	m := New()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.overlaysVisible))

	m.ObserveOverlayVisibility(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.overlaysVisible))
	m.ObserveOverlayVisibility(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.overlaysVisible))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.overlayToggles))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveRequest(http.MethodGet, http.StatusOK)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `playerctl_http_requests_total{method="GET",status="200"} 1`)
	assert.Contains(t, body, `playerctl_playback_state{state="idle"} 1`)
}
