package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"smartbin-dashboard/config"
)

const mqttQoS = 1

// pubSub is the part of mqtt.Client the source needs.
type pubSub interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTT maps each path to a topic carrying a retained JSON snapshot of the path.
type MQTT struct {
	client  pubSub
	prefix  string
	timeout time.Duration

	mu     sync.Mutex
	topics map[string]map[string]*subscriber
	last   map[string]any
	closed bool
}

// NewMQTT connects to the broker at cfg.Endpoint.
func NewMQTT(cfg config.SourceConfig) (*MQTT, error) {
	if cfg.Endpoint == "" {
		return nil, &ConnectionInitError{Kind: config.SourceMQTT, Err: errors.New("broker endpoint is empty")}
	}

	m := newMQTT(cfg, nil)

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Endpoint).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetOrderMatters(true).
		SetConnectTimeout(m.timeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) { m.connectionLost(err) }).
		SetOnConnectHandler(func(_ mqtt.Client) { m.resubscribe() })
	if user, pass, ok := strings.Cut(cfg.Credentials, ":"); ok {
		opts.SetUsername(user).SetPassword(pass)
	} else if cfg.Credentials != "" {
		opts.SetUsername(cfg.Credentials)
	}

	client := mqtt.NewClient(opts)
	m.client = client

	token := client.Connect()
	if !token.WaitTimeout(m.timeout) {
		return nil, &ConnectionInitError{Kind: config.SourceMQTT, Endpoint: cfg.Endpoint, Err: errors.New("connect timed out")}
	}
	if err := token.Error(); err != nil {
		return nil, &ConnectionInitError{Kind: config.SourceMQTT, Endpoint: cfg.Endpoint, Err: err}
	}
	log.WithFields(log.Fields{"broker": cfg.Endpoint, "client_id": cfg.ClientID}).Info("Connected to MQTT broker")
	return m, nil
}

func newMQTT(cfg config.SourceConfig, client pubSub) *MQTT {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MQTT{
		client:  client,
		prefix:  strings.Trim(cfg.TopicPrefix, "/"),
		timeout: timeout,
		topics:  make(map[string]map[string]*subscriber),
		last:    make(map[string]any),
	}
}

func (m *MQTT) topic(path string) string {
	t := strings.Trim(path, "/")
	if m.prefix == "" {
		return t
	}
	return m.prefix + "/" + t
}

// Subscribe subscribes to the path's topic. When the topic is already followed, the
// last received snapshot is delivered right away.
func (m *MQTT) Subscribe(path string, onValue ValueFunc, onError ErrorFunc) (Handle, error) {
	path = normalizePath(path)
	topic := m.topic(path)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return Handle{}, ErrClosed
	}
	h := Handle{ID: uuid.NewString(), Path: path}
	sub := newSubscriber(path, onValue, onError)
	first := len(m.topics[topic]) == 0
	if first {
		m.topics[topic] = make(map[string]*subscriber)
	}
	m.topics[topic][h.ID] = sub
	last, seen := m.last[topic]
	m.mu.Unlock()

	if !first {
		if seen {
			sub.value(last)
		}
		return h, nil
	}

	if err := m.wait(context.Background(), m.client.Subscribe(topic, mqttQoS, m.route)); err != nil {
		m.remove(topic, h.ID)
		return Handle{}, &ReadError{Path: path, Err: err}
	}
	return h, nil
}

// Unsubscribe drops the subscription and leaves the topic once nobody follows it.
func (m *MQTT) Unsubscribe(h Handle) {
	topic := m.topic(h.Path)
	sub, empty := m.remove(topic, h.ID)
	if sub == nil {
		return
	}
	sub.stop()

	if empty {
		if err := m.wait(context.Background(), m.client.Unsubscribe(topic)); err != nil {
			log.WithFields(log.Fields{"topic": topic, "error": err}).Warn("Failed to unsubscribe topic")
		}
	}
}

// Set publishes value as the retained snapshot of path.
func (m *MQTT) Set(ctx context.Context, path string, value any) error {
	path = normalizePath(path)

	payload, err := json.Marshal(value)
	if err != nil {
		return &WriteError{Path: path, Err: fmt.Errorf("failed to marshal value: %w", err)}
	}
	if err := m.wait(ctx, m.client.Publish(m.topic(path), mqttQoS, true, payload)); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

// Close stops every subscription and disconnects from the broker.
func (m *MQTT) Close() error {
	m.mu.Lock()
	m.closed = true
	var all []*subscriber
	for _, subs := range m.topics {
		for _, sub := range subs {
			all = append(all, sub)
		}
	}
	m.topics = make(map[string]map[string]*subscriber)
	m.mu.Unlock()

	for _, sub := range all {
		sub.stop()
	}
	m.client.Disconnect(250)
	return nil
}

func (m *MQTT) remove(topic, id string) (*subscriber, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.topics[topic][id]
	if !ok {
		return nil, false
	}
	delete(m.topics[topic], id)
	if len(m.topics[topic]) > 0 {
		return sub, false
	}
	delete(m.topics, topic)
	delete(m.last, topic)
	return sub, true
}

func (m *MQTT) route(_ mqtt.Client, msg mqtt.Message) {
	var v any
	if len(msg.Payload()) > 0 {
		if err := json.Unmarshal(msg.Payload(), &v); err != nil {
			log.WithFields(log.Fields{"topic": msg.Topic(), "error": err}).Warn("Discarding malformed payload")
			v = nil
		}
	}

	m.mu.Lock()
	subs := make([]*subscriber, 0, len(m.topics[msg.Topic()]))
	for _, sub := range m.topics[msg.Topic()] {
		subs = append(subs, sub)
	}
	if len(subs) > 0 {
		m.last[msg.Topic()] = v
	}
	m.mu.Unlock()

	for _, sub := range subs {
		sub.value(v)
	}
}

func (m *MQTT) connectionLost(err error) {
	log.WithError(err).Warn("MQTT connection lost")

	m.mu.Lock()
	var all []*subscriber
	for _, subs := range m.topics {
		for _, sub := range subs {
			all = append(all, sub)
		}
	}
	m.mu.Unlock()

	for _, sub := range all {
		sub.fail(fmt.Errorf("connection lost: %w", err))
	}
}

// resubscribe restores topic subscriptions after the client reconnects.
func (m *MQTT) resubscribe() {
	m.mu.Lock()
	topics := make([]string, 0, len(m.topics))
	for topic := range m.topics {
		topics = append(topics, topic)
	}
	m.mu.Unlock()

	for _, topic := range topics {
		token := m.client.Subscribe(topic, mqttQoS, m.route)
		go func(topic string) {
			if err := m.wait(context.Background(), token); err != nil {
				log.WithFields(log.Fields{"topic": topic, "error": err}).Error("Failed to resubscribe topic")
			}
		}(topic)
	}
}

func (m *MQTT) wait(ctx context.Context, token mqtt.Token) error {
	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errors.New("timed out waiting for broker")
	}
}
