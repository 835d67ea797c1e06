// Package source connects the dashboard to the remote real-time data store.
//
// A Source delivers full-value snapshots of a path to its subscribers and accepts
// writes of a single value. Callbacks of one subscription are never invoked
// concurrently, and none are invoked once Unsubscribe has returned. Callbacks must
// not call Unsubscribe on their own handle.
package source

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"smartbin-dashboard/config"
)

// ValueFunc receives the decoded JSON snapshot at a path. A missing value is nil.
type ValueFunc func(raw any)

// ErrorFunc receives read failures for a path, wrapped in a *ReadError.
type ErrorFunc func(err error)

// Handle identifies one subscription.
type Handle struct {
	ID   string
	Path string
}

// Source is the remote real-time data store.
type Source interface {
	Subscribe(path string, onValue ValueFunc, onError ErrorFunc) (Handle, error)
	Unsubscribe(h Handle)
	Set(ctx context.Context, path string, value any) error
	Close() error
}

// New creates the source selected by cfg.Kind and verifies it can reach the store.
func New(ctx context.Context, cfg config.SourceConfig) (Source, error) {
	switch cfg.Kind {
	case config.SourceRTDB:
		r, err := NewRTDB(ctx, cfg, nil)
		if err != nil {
			return nil, err
		}
		return r, nil
	case config.SourceMQTT:
		m, err := NewMQTT(cfg)
		if err != nil {
			return nil, err
		}
		return m, nil
	case config.SourceMemory:
		return NewMemory(), nil
	default:
		return nil, &ConnectionInitError{Kind: cfg.Kind, Endpoint: cfg.Endpoint, Err: fmt.Errorf("unknown source kind")}
	}
}

// normalizePath returns path with exactly one leading slash and no trailing slash.
func normalizePath(path string) string {
	return "/" + strings.Trim(path, "/")
}

// subscriber serializes the callbacks of one subscription and drops them once stopped.
type subscriber struct {
	mu      sync.Mutex
	active  bool
	path    string
	onValue ValueFunc
	onError ErrorFunc
}

func newSubscriber(path string, onValue ValueFunc, onError ErrorFunc) *subscriber {
	return &subscriber{active: true, path: path, onValue: onValue, onError: onError}
}

func (s *subscriber) value(v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active && s.onValue != nil {
		s.onValue(v)
	}
}

func (s *subscriber) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active && s.onError != nil {
		s.onError(&ReadError{Path: s.path, Err: err})
	}
}

// stop waits for a running callback to return and disables further ones.
func (s *subscriber) stop() {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
}
