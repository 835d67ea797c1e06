package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"

	"smartbin-dashboard/internal/metrics"
	"smartbin-dashboard/internal/mw"
)

func TestNewUnavailableRouter(t *testing.T) {
	r := NewUnavailableRouter(errors.New("connect rtdb https://bin.example: dial failed"))

	for _, path := range []string{"/", "/api/status", "/charts/gauge", "/anything"} {
		w := do(r, http.MethodGet, path, "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
		assert.Contains(t, w.Body.String(), "dial failed")
	}
	w := do(r, http.MethodPost, "/api/lid/toggle", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRouter_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.IncUpdate(metrics.SliceStatus)

	r, _ := setupRouter(&fakeDashboard{}, nil, RouterOptions{Gatherer: reg})

	w := do(r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `binwatch_source_updates_total{slice="status"} 1`)
}

func TestRouter_RateLimit(t *testing.T) {
	r, _ := setupRouter(&fakeDashboard{}, nil, RouterOptions{RateLimit: rate.Limit(0.001), RateBurst: 1})

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/status", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodGet, "/api/status", "").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/", "").Code, "pages are not rate limited")
}

func TestRouter_SharedLimiter(t *testing.T) {
	limiter := mw.NewIPRateLimiter(rate.Limit(0.001), 1)
	r, _ := setupRouter(&fakeDashboard{}, nil, RouterOptions{Limiter: limiter})

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/status", "").Code)
	assert.Equal(t, 1, limiter.Len(), "requests are tracked by the injected limiter")
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodGet, "/api/status", "").Code)
}
