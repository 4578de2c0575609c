// Package metrics exposes media player controller metrics to Prometheus.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stwalsh4118/playerctl/internal/playback"
	"github.com/stwalsh4118/playerctl/internal/player"
)

var allStates = []playback.State{
	playback.StateIdle,
	playback.StatePreparing,
	playback.StateReady,
	playback.StatePlaying,
	playback.StatePaused,
	playback.StateSeeking,
	playback.StateStalled,
	playback.StateEnded,
	playback.StateFailed,
}

// Metrics holds Prometheus counters and gauges for the player
type Metrics struct {
	registry         *prometheus.Registry
	transitionsTotal *prometheus.CounterVec
	failuresTotal    *prometheus.CounterVec
	itemsLoadedTotal prometheus.Counter
	playbackState    *prometheus.GaugeVec
	overlaysVisible  prometheus.Gauge
	overlayToggles   prometheus.Counter
	requestsTotal    *prometheus.CounterVec
}

// New creates and registers the player metrics on a private registry
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "playerctl_playback_transitions_total",
			Help: "Total number of playback state transitions",
		}, []string{"from", "to"}),
		failuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "playerctl_playback_failures_total",
			Help: "Total number of failed items by error category",
		}, []string{"category"}),
		itemsLoadedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "playerctl_items_loaded_total",
			Help: "Total number of items handed to the player",
		}),
		playbackState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "playerctl_playback_state",
			Help: "Current playback state, 1 for the active state",
		}, []string{"state"}),
		overlaysVisible: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "playerctl_overlays_visible",
			Help: "Whether overlays are currently visible",
		}),
		overlayToggles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "playerctl_overlay_visibility_changes_total",
			Help: "Total number of overlay visibility changes",
		}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "playerctl_http_requests_total",
			Help: "Total number of HTTP requests by method and status",
		}, []string{"method", "status"}),
	}

	registry.MustRegister(
		m.transitionsTotal,
		m.failuresTotal,
		m.itemsLoadedTotal,
		m.playbackState,
		m.overlaysVisible,
		m.overlayToggles,
		m.requestsTotal,
	)

	m.setState(playback.StateIdle)
	m.overlaysVisible.Set(1)
	return m
}

// Observe registers the metrics as listeners of c
func (m *Metrics) Observe(c *player.Controller) {
	c.OnPlaybackStateChange(m.ObserveTransition)
	c.OnOverlayVisibilityChange(m.ObserveOverlayVisibility)
}

// ObserveTransition records a playback state transition
func (m *Metrics) ObserveTransition(sc player.StateChange) {
	m.transitionsTotal.WithLabelValues(sc.From.String(), sc.To.String()).Inc()
	if sc.To == playback.StatePreparing {
		m.itemsLoadedTotal.Inc()
	}
	if sc.Err != nil {
		m.failuresTotal.WithLabelValues(sc.Err.Category.String()).Inc()
	}
	m.setState(sc.To)
}

// ObserveOverlayVisibility records an overlay visibility change
func (m *Metrics) ObserveOverlayVisibility(visible bool) {
	m.overlayToggles.Inc()
	if visible {
		m.overlaysVisible.Set(1)
	} else {
		m.overlaysVisible.Set(0)
	}
}

// ObserveRequest records one served HTTP request
func (m *Metrics) ObserveRequest(method string, status int) {
	m.requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// Registry returns the private registry, for tests and extra collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler that serves Prometheus metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) setState(current playback.State) {
	for _, s := range allStates {
		v := 0.0
		if s == current {
			v = 1
		}
		m.playbackState.WithLabelValues(s.String()).Set(v)
	}
}
