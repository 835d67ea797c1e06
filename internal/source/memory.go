package source

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Write is a value written through Memory.Set.
type Write struct {
	Path  string
	Value any
}

// Memory is an in-process Source. Notifications run in the goroutine that changes the value.
type Memory struct {
	mu       sync.Mutex
	values   map[string]any
	subs     map[string]map[string]*subscriber
	writes   []Write
	writeErr error
	closed   bool
}

// NewMemory creates an empty in-memory source.
func NewMemory() *Memory {
	return &Memory{
		values: make(map[string]any),
		subs:   make(map[string]map[string]*subscriber),
	}
}

// Subscribe registers the callbacks and immediately delivers the current value.
func (m *Memory) Subscribe(path string, onValue ValueFunc, onError ErrorFunc) (Handle, error) {
	path = normalizePath(path)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return Handle{}, ErrClosed
	}
	h := Handle{ID: uuid.NewString(), Path: path}
	sub := newSubscriber(path, onValue, onError)
	if m.subs[path] == nil {
		m.subs[path] = make(map[string]*subscriber)
	}
	m.subs[path][h.ID] = sub
	current := m.values[path]
	m.mu.Unlock()

	sub.value(current)
	return h, nil
}

// Unsubscribe removes a subscription. Unknown handles are ignored.
func (m *Memory) Unsubscribe(h Handle) {
	m.mu.Lock()
	sub, ok := m.subs[h.Path][h.ID]
	if ok {
		delete(m.subs[h.Path], h.ID)
	}
	m.mu.Unlock()

	if ok {
		sub.stop()
	}
}

// Set stores value at path and notifies subscribers, unless FailWrites is active.
func (m *Memory) Set(ctx context.Context, path string, value any) error {
	path = normalizePath(path)
	if err := ctx.Err(); err != nil {
		return &WriteError{Path: path, Err: err}
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return &WriteError{Path: path, Err: ErrClosed}
	}
	if m.writeErr != nil {
		err := m.writeErr
		m.mu.Unlock()
		return &WriteError{Path: path, Err: err}
	}
	m.writes = append(m.writes, Write{Path: path, Value: value})
	m.mu.Unlock()

	m.Put(path, value)
	return nil
}

// Put replaces the value at path and pushes it to the path's subscribers.
func (m *Memory) Put(path string, value any) {
	path = normalizePath(path)

	m.mu.Lock()
	m.values[path] = value
	subs := m.snapshotSubs(path)
	m.mu.Unlock()

	for _, sub := range subs {
		sub.value(value)
	}
}

// Fail reports a read error to the path's subscribers.
func (m *Memory) Fail(path string, err error) {
	path = normalizePath(path)

	m.mu.Lock()
	subs := m.snapshotSubs(path)
	m.mu.Unlock()

	for _, sub := range subs {
		sub.fail(err)
	}
}

// FailWrites makes subsequent Set calls fail with err. A nil err restores writes.
func (m *Memory) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// Writes returns the successful writes in order.
func (m *Memory) Writes() []Write {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Write, len(m.writes))
	copy(out, m.writes)
	return out
}

// Subscribers returns the number of active subscriptions on path.
func (m *Memory) Subscribers(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs[normalizePath(path)])
}

// Close drops every subscription.
func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	var all []*subscriber
	for path := range m.subs {
		all = append(all, m.snapshotSubs(path)...)
	}
	m.subs = make(map[string]map[string]*subscriber)
	m.mu.Unlock()

	for _, sub := range all {
		sub.stop()
	}
	return nil
}

func (m *Memory) snapshotSubs(path string) []*subscriber {
	subs := make([]*subscriber, 0, len(m.subs[path]))
	for _, sub := range m.subs[path] {
		subs = append(subs, sub)
	}
	return subs
}
