package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"smartbin-dashboard/config"
)

const (
	defaultStreamRetry = 5 * time.Second
	maxEventSize       = 10 << 20
)

// RTDB reads and writes a Firebase Realtime Database through its REST API.
// Each subscription runs in its own goroutine, either following the path's event
// stream or polling it on a fixed interval.
type RTDB struct {
	base     *url.URL
	auth     string
	mode     string
	interval time.Duration
	retry    time.Duration
	client   *http.Client
	stream   *http.Client

	mu     sync.Mutex
	subs   map[string]*rtdbSub
	closed bool
}

type rtdbSub struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// delivery forwards results of one subscription while its context is live.
type delivery struct {
	ctx     context.Context
	path    string
	onValue ValueFunc
	onError ErrorFunc
}

func (d delivery) value(v any) {
	if d.ctx.Err() == nil && d.onValue != nil {
		d.onValue(v)
	}
}

func (d delivery) fail(err error) {
	if d.ctx.Err() == nil && d.onError != nil {
		d.onError(&ReadError{Path: d.path, Err: err})
	}
}

// NewRTDB validates the endpoint and probes the status path. A nil client gets a
// default one using cfg.Timeout.
func NewRTDB(ctx context.Context, cfg config.SourceConfig, client *http.Client) (*RTDB, error) {
	initErr := func(err error) error {
		return &ConnectionInitError{Kind: config.SourceRTDB, Endpoint: cfg.Endpoint, Err: err}
	}

	base, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, initErr(fmt.Errorf("invalid endpoint: %w", err))
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, initErr(fmt.Errorf("endpoint must be an http(s) URL"))
	}

	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	r := &RTDB{
		base:     base,
		auth:     cfg.Credentials,
		mode:     cfg.Mode,
		interval: interval,
		retry:    defaultStreamRetry,
		client:   client,
		// Streams stay open indefinitely, so they must not inherit the client timeout.
		stream: &http.Client{Transport: client.Transport},
		subs:   make(map[string]*rtdbSub),
	}

	if _, err := r.fetch(ctx, cfg.StatusPath, url.Values{"shallow": {"true"}}); err != nil {
		return nil, initErr(err)
	}
	log.WithFields(log.Fields{"endpoint": base.Host, "mode": r.mode}).Info("Connected to realtime database")
	return r, nil
}

// Subscribe starts following path.
func (r *RTDB) Subscribe(path string, onValue ValueFunc, onError ErrorFunc) (Handle, error) {
	path = normalizePath(path)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return Handle{}, ErrClosed
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := &rtdbSub{cancel: cancel, done: make(chan struct{})}
	h := Handle{ID: uuid.NewString(), Path: path}
	r.subs[h.ID] = sub

	d := delivery{ctx: ctx, path: path, onValue: onValue, onError: onError}
	go func() {
		defer close(sub.done)
		if r.mode == config.ModePoll {
			r.poll(d)
		} else {
			r.follow(d)
		}
	}()
	return h, nil
}

// Unsubscribe stops the subscription and waits for its goroutine to exit.
func (r *RTDB) Unsubscribe(h Handle) {
	r.mu.Lock()
	sub, ok := r.subs[h.ID]
	delete(r.subs, h.ID)
	r.mu.Unlock()

	if ok {
		sub.cancel()
		<-sub.done
	}
}

// Set writes value at path with a PUT.
func (r *RTDB) Set(ctx context.Context, path string, value any) error {
	path = normalizePath(path)

	body, err := json.Marshal(value)
	if err != nil {
		return &WriteError{Path: path, Err: fmt.Errorf("failed to marshal value: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, r.urlFor(path, nil), bytes.NewReader(body))
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return &WriteError{Path: path, Err: fmt.Errorf("http request failed: %w", err)}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &WriteError{Path: path, Err: fmt.Errorf("received status code %d", resp.StatusCode)}
	}
	return nil
}

// Close stops all subscriptions.
func (r *RTDB) Close() error {
	r.mu.Lock()
	r.closed = true
	subs := r.subs
	r.subs = make(map[string]*rtdbSub)
	r.mu.Unlock()

	for _, sub := range subs {
		sub.cancel()
		<-sub.done
	}
	return nil
}

func (r *RTDB) poll(d delivery) {
	r.pollOnce(d)

	timer := time.NewTimer(r.interval)
	defer timer.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-timer.C:
			r.pollOnce(d)
			timer.Reset(r.interval)
		}
	}
}

func (r *RTDB) pollOnce(d delivery) {
	v, err := r.fetch(d.ctx, d.path, nil)
	if err != nil {
		d.fail(err)
		return
	}
	d.value(v)
}

// follow keeps an event stream open on the path, reconnecting after failures.
func (r *RTDB) follow(d delivery) {
	for {
		err := r.streamOnce(d)
		if d.ctx.Err() != nil {
			return
		}
		log.WithFields(log.Fields{"path": d.path, "error": err}).Warn("Event stream dropped, reconnecting")
		d.fail(err)

		timer := time.NewTimer(r.retry)
		select {
		case <-d.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

type streamEvent struct {
	Path string `json:"path"`
	Data any    `json:"data"`
}

func (r *RTDB) streamOnce(d delivery) error {
	req, err := http.NewRequestWithContext(d.ctx, http.MethodGet, r.urlFor(d.path, nil), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := r.stream.Do(req)
	if err != nil {
		return fmt.Errorf("stream request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), maxEventSize)

	var event, data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		case line == "":
			if err := r.handleEvent(d, event, data); err != nil {
				return err
			}
			event, data = "", ""
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return errors.New("stream closed by server")
}

func (r *RTDB) handleEvent(d delivery, event, data string) error {
	switch event {
	case "put", "patch":
		var ev streamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return fmt.Errorf("malformed %s event: %w", event, err)
		}
		if event == "put" && ev.Path == "/" {
			d.value(ev.Data)
			return nil
		}
		// Partial change: read the whole snapshot again.
		r.pollOnce(d)
	case "keep-alive", "":
	case "cancel":
		return errors.New("stream cancelled by server")
	case "auth_revoked":
		return errors.New("credentials revoked")
	default:
		log.WithField("event", event).Debug("Ignoring unknown stream event")
	}
	return nil
}

func (r *RTDB) fetch(ctx context.Context, path string, q url.Values) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.urlFor(path, q), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	var v any
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return v, nil
}

func (r *RTDB) urlFor(path string, q url.Values) string {
	u := *r.base
	u.Path = strings.TrimRight(u.Path, "/") + normalizePath(path) + ".json"
	if q == nil {
		q = url.Values{}
	}
	if r.auth != "" {
		q.Set("auth", r.auth)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
