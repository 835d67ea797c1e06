package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"smartbin-dashboard/internal/model"
	"smartbin-dashboard/internal/render"
	"smartbin-dashboard/internal/store"
)

type fakeDashboard struct {
	mu      sync.Mutex
	snap    model.Snapshot
	err     error
	toggles int
}

func (d *fakeDashboard) Snapshot() model.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snap
}

func (d *fakeDashboard) ToggleLid() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.toggles++
	return nil
}

func (d *fakeDashboard) set(snap model.Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.snap = snap
}

type fakeStore struct {
	subs     map[string]model.PushSubscription
	readings []model.LevelReading
	limit    int
	err      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{subs: make(map[string]model.PushSubscription)}
}

func (s *fakeStore) ArchiveReadings(_ context.Context, records []model.HistoryRecord, _ time.Time) (int64, error) {
	return int64(len(records)), s.err
}

func (s *fakeStore) RecentReadings(_ context.Context, limit int) ([]model.LevelReading, error) {
	s.limit = limit
	if s.err != nil {
		return nil, s.err
	}
	if limit < len(s.readings) {
		return s.readings[:limit], nil
	}
	return s.readings, nil
}

func (s *fakeStore) UpsertSubscription(_ context.Context, sub model.PushSubscription) error {
	if s.err != nil {
		return s.err
	}
	s.subs[sub.Endpoint] = sub
	return nil
}

func (s *fakeStore) GetSubscription(_ context.Context, endpoint string) (model.PushSubscription, error) {
	if s.err != nil {
		return model.PushSubscription{}, s.err
	}
	sub, ok := s.subs[endpoint]
	if !ok {
		return model.PushSubscription{}, store.ErrNotFound
	}
	return sub, nil
}

func (s *fakeStore) ListSubscriptions(context.Context) ([]model.PushSubscription, error) {
	var out []model.PushSubscription
	for _, sub := range s.subs {
		out = append(out, sub)
	}
	return out, s.err
}

func (s *fakeStore) DeleteSubscription(_ context.Context, endpoint string) error {
	if s.err != nil {
		return s.err
	}
	delete(s.subs, endpoint)
	return nil
}

var errBoom = errors.New("boom")

func setupRouter(dash Dashboard, s store.Store, opts RouterOptions) (*gin.Engine, *render.Charts) {
	gin.SetMode(gin.TestMode)
	charts := render.NewCharts(time.UTC)
	if opts.RateLimit == 0 {
		opts.RateLimit = rate.Inf
		opts.RateBurst = 1
	}
	return NewRouter(NewHandler(dash, charts, s, nil), opts), charts
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req, _ = http.NewRequest(method, path, nil)
	} else {
		req, _ = http.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	r.ServeHTTP(w, req)
	return w
}
