// Package realtime fans out change events to interested parties. WebSocket
// clients and in-process callback subscriptions register on topics with a
// Hub; events reach the hub either directly from services or from a Postgres
// LISTEN channel.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event is a change delivered to subscribers.
type Event struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic"`
	Table     string          `json:"table"`
	RecordID  string          `json:"record_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Event types.
const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
)

// NotificationTopic is the topic carrying notification inserts for one
// recipient.
func NotificationTopic(recipientID string) string {
	return "notifications:" + recipientID
}

// Publisher publishes events to subscribers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Hub tracks WebSocket clients and callback subscriptions per topic. All
// operations are safe for concurrent use.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	all     map[*Client]struct{}
	subs    map[string]map[*Subscription]struct{}
	logger  zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
		subs:    make(map[string]map[*Subscription]struct{}),
		logger:  logger.With().Str("component", "realtime").Logger(),
	}
}

// ---------------------------------------------------------------------------
// WebSocket clients
// ---------------------------------------------------------------------------

// Register adds a client and subscribes it to its initial topics.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[client] = struct{}{}
	for _, topic := range client.Topics {
		h.addClient(topic, client)
	}
}

// Unregister removes a client from every topic and closes its Send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}
	for _, topic := range client.Topics {
		h.removeClient(topic, client)
	}
	delete(h.all, client)
	close(client.Send)
}

// SubscribeClient adds topics to a registered client.
func (h *Hub) SubscribeClient(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, topic := range topics {
		h.addClient(topic, client)
	}
	client.Topics = append(client.Topics, topics...)
}

// UnsubscribeClient removes topics from a registered client.
func (h *Hub) UnsubscribeClient(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	drop := make(map[string]struct{}, len(topics))
	for _, topic := range topics {
		drop[topic] = struct{}{}
		h.removeClient(topic, client)
	}

	remaining := make([]string, 0, len(client.Topics))
	for _, t := range client.Topics {
		if _, ok := drop[t]; !ok {
			remaining = append(remaining, t)
		}
	}
	client.Topics = remaining
}

func (h *Hub) addClient(topic string, client *Client) {
	if h.clients[topic] == nil {
		h.clients[topic] = make(map[*Client]struct{})
	}
	h.clients[topic][client] = struct{}{}
}

func (h *Hub) removeClient(topic string, client *Client) {
	if set, ok := h.clients[topic]; ok {
		delete(set, client)
		if len(set) == 0 {
			delete(h.clients, topic)
		}
	}
}

// ---------------------------------------------------------------------------
// Callback subscriptions
// ---------------------------------------------------------------------------

// Subscribe registers fn for every event published on topic. Events reach fn
// one at a time in publish order on a goroutine owned by the subscription.
// The caller must Close the subscription.
func (h *Hub) Subscribe(topic string, fn func(Event)) *Subscription {
	sub := newSubscription(h, topic, fn)

	h.mu.Lock()
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[*Subscription]struct{})
	}
	h.subs[topic][sub] = struct{}{}
	h.mu.Unlock()

	go sub.run()
	return sub
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if set, ok := h.subs[sub.topic]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.topic)
		}
	}
}

// ---------------------------------------------------------------------------
// Publishing
// ---------------------------------------------------------------------------

// Broadcast delivers an event to every client and subscription on topic.
// Callback subscriptions always receive it. WebSocket clients with a full
// send buffer are skipped.
func (h *Hub) Broadcast(topic string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Str("topic", topic).Msg("failed to marshal event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[topic] {
		sub.enqueue(event)
	}
	for client := range h.clients[topic] {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn().Str("client_id", client.ID).Str("topic", topic).Msg("client buffer full, event dropped")
		}
	}
}

// Publish implements Publisher.
func (h *Hub) Publish(_ context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	h.Broadcast(event.Topic, event)
	return nil
}

// ClientCount returns the number of connected WebSocket clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// TopicCount returns the number of clients and subscriptions on topic.
func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic]) + len(h.subs[topic])
}
