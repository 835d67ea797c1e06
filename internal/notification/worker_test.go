package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartbin-dashboard/internal/model"
)

type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

type fakeSubscriptions struct {
	mu      sync.Mutex
	subs    []model.PushSubscription
	listErr error
	deleted []string
	done    chan struct{}
}

func (f *fakeSubscriptions) ListSubscriptions(ctx context.Context) ([]model.PushSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs, f.listErr
}

func (f *fakeSubscriptions) DeleteSubscription(ctx context.Context, endpoint string) error {
	f.mu.Lock()
	f.deleted = append(f.deleted, endpoint)
	f.mu.Unlock()
	if f.done != nil {
		close(f.done)
	}
	return nil
}

func response(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewBufferString(""))}
}

func TestWorkerPool_Dispatch(t *testing.T) {
	wp := NewWorkerPool(1, &fakeSubscriptions{}, &webpush.Options{})

	assert.True(t, wp.Dispatch(Alert{Level: 96}))
	assert.False(t, wp.Dispatch(Alert{Level: 97}), "queue holds one job per worker")

	select {
	case job := <-wp.Jobs():
		assert.Equal(t, 96.0, job.Level)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
}

func TestWorkerPool_WorkerLogic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t.Run("sends alert to every subscription", func(t *testing.T) {
		subs := &fakeSubscriptions{subs: []model.PushSubscription{
			{Endpoint: "https://example.com/a", P256DH: "k1", Auth: "a1"},
			{Endpoint: "https://example.com/b", P256DH: "k2", Auth: "a2"},
		}}
		wp := NewWorkerPool(1, subs, &webpush.Options{TTL: 60})

		var wg sync.WaitGroup
		wg.Add(2)
		var mu sync.Mutex
		var endpoints []string
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				defer wg.Done()
				var msg Message
				require.NoError(t, json.Unmarshal(payload, &msg))
				assert.Equal(t, "Tacho lleno", msg.Title)
				assert.Contains(t, msg.Body, "97.50%")
				assert.Equal(t, int64(1_700_000_000), msg.At)
				assert.Equal(t, 60, options.TTL)
				mu.Lock()
				endpoints = append(endpoints, sub.Endpoint)
				mu.Unlock()
				return response(http.StatusCreated), nil
			},
		}
		wp.Start(ctx)

		wp.Dispatch(Alert{Level: 97.5, At: time.Unix(1_700_000_000, 0)})
		wg.Wait()
		assert.ElementsMatch(t, []string{"https://example.com/a", "https://example.com/b"}, endpoints)
		assert.Empty(t, subs.deleted)
	})

	t.Run("deletes expired subscription", func(t *testing.T) {
		subs := &fakeSubscriptions{
			subs: []model.PushSubscription{{Endpoint: "https://example.com/expired", P256DH: "k", Auth: "a"}},
			done: make(chan struct{}),
		}
		wp := NewWorkerPool(1, subs, &webpush.Options{})
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				return response(http.StatusGone), nil
			},
		}
		wp.Start(ctx)

		wp.Dispatch(Alert{Level: 99})
		select {
		case <-subs.done:
		case <-time.After(time.Second):
			t.Fatal("expired subscription was not deleted")
		}
		assert.Equal(t, []string{"https://example.com/expired"}, subs.deleted)
	})

	t.Run("skips sending when listing fails", func(t *testing.T) {
		subs := &fakeSubscriptions{listErr: errors.New("db down")}
		wp := NewWorkerPool(1, subs, &webpush.Options{})
		sent := false
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				sent = true
				return response(http.StatusCreated), nil
			},
		}

		wp.sendAlert(ctx, Alert{Level: 99})
		assert.False(t, sent)
	})
}
