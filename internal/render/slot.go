// Package render draws the dashboard's charts and pages.
package render

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

// Drawable is anything that renders itself as an HTML document. go-echarts charts and pages qualify.
type Drawable interface {
	Render(w io.Writer) error
}

// Slot owns the chart shown in one place of the dashboard. At most one chart is
// live per slot: the previous one is released before a new one is drawn, and
// Close releases it for good.
type Slot struct {
	name string

	mu        sync.RWMutex
	page      []byte
	live      bool
	closed    bool
	onDispose func()
	onAcquire func()
}

// NewSlot creates an empty slot.
func NewSlot(name string) *Slot {
	return &Slot{name: name}
}

// Replace releases the current chart and draws the one returned by acquire.
// A nil Drawable leaves the slot empty. Replace after Close does nothing.
func (s *Slot) Replace(acquire func() Drawable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.disposeLocked()

	if s.onAcquire != nil {
		s.onAcquire()
	}
	d := acquire()
	if d == nil {
		return nil
	}

	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return fmt.Errorf("failed to render %s chart: %w", s.name, err)
	}
	s.page = buf.Bytes()
	s.live = true
	return nil
}

// Page returns the rendered chart, if any.
func (s *Slot) Page() ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.page, s.live
}

// Close releases the chart.
func (s *Slot) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposeLocked()
	s.closed = true
}

func (s *Slot) disposeLocked() {
	if !s.live {
		return
	}
	s.page = nil
	s.live = false
	if s.onDispose != nil {
		s.onDispose()
	}
}
