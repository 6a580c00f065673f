package realtime

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/net/websocket"

	"kost-service/pkg/jwtutil"
	"kost-service/pkg/logger"
	"kost-service/prometheus"
)

// Topics clients may subscribe to.
const (
	TopicProperties    = "properties"
	TopicNotifications = "notifications"
	TopicChat          = "chat"
)

// Event actions.
const (
	ActionInsert = "insert"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

const subscriberBuffer = 16

// Event is a typed change notification carrying the affected row, so
// subscribers can merge it into local state instead of re-fetching lists.
type Event struct {
	Topic   string      `json:"topic"`
	Action  string      `json:"action"`
	Payload interface{} `json:"payload"`
	SentAt  time.Time   `json:"sent_at"`
}

type subscriber struct {
	topics map[string]bool
	ch     chan Event
}

// Hub is an in-process publish/subscribe bus for change events. Mutating
// handlers publish after their transaction commits; websocket connections
// subscribe. Slow subscribers are skipped rather than blocked on.
type Hub struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{subs: make(map[*subscriber]struct{})}
}

// Publish delivers an event to every subscriber of its topic. Nil-safe so
// handlers constructed without a hub (tests) can publish unconditionally.
func (h *Hub) Publish(topic, action string, payload interface{}) {
	if h == nil {
		return
	}
	ev := Event{Topic: topic, Action: action, Payload: payload, SentAt: time.Now().UTC()}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		if !sub.topics[topic] {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			// Subscriber buffer full; drop the event for this connection.
		}
	}
}

// Subscribe registers a subscriber for the given topics and returns its
// event channel plus an unsubscribe function.
func (h *Hub) Subscribe(topics []string) (<-chan Event, func()) {
	sub := &subscriber{
		topics: make(map[string]bool, len(topics)),
		ch:     make(chan Event, subscriberBuffer),
	}
	for _, t := range topics {
		sub.topics[t] = true
	}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	prometheus.RealtimeClientsGauge.Inc()

	unsubscribe := func() {
		h.mu.Lock()
		if _, ok := h.subs[sub]; ok {
			delete(h.subs, sub)
			close(sub.ch)
			prometheus.RealtimeClientsGauge.Dec()
		}
		h.mu.Unlock()
	}
	return sub.ch, unsubscribe
}

// SubscriberCount returns the number of connected subscribers
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Handler returns an echo handler that upgrades the request to a websocket
// and streams JSON events for the requested topics. Auth uses the session
// token as a query parameter because browser websocket clients cannot set an
// Authorization header.
func (h *Hub) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromContext(c)

		token := c.QueryParam("token")
		claims, err := jwtutil.ValidateToken(token)
		if err != nil {
			log.Warn("Realtime connection rejected", zap.Error(err))
			prometheus.RecordAuthError("invalid_realtime_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
		}

		topics := parseTopics(c.QueryParam("topics"))
		if len(topics) == 0 {
			topics = []string{TopicProperties, TopicNotifications, TopicChat}
		}

		wsHandler := websocket.Handler(func(conn *websocket.Conn) {
			defer conn.Close()

			events, unsubscribe := h.Subscribe(topics)
			defer unsubscribe()

			log.Info("Realtime subscriber connected",
				zap.Uint("user_id", claims.UserID),
				zap.Strings("topics", topics))

			// Drain the read side so we notice the client going away.
			done := make(chan struct{})
			go func() {
				defer close(done)
				var discard string
				for {
					if err := websocket.Message.Receive(conn, &discard); err != nil {
						return
					}
				}
			}()

			for {
				select {
				case ev, ok := <-events:
					if !ok {
						return
					}
					data, err := json.Marshal(ev)
					if err != nil {
						log.Error("Failed to marshal realtime event", zap.Error(err))
						continue
					}
					if err := websocket.Message.Send(conn, string(data)); err != nil {
						return
					}
				case <-done:
					return
				}
			}
		})

		wsHandler.ServeHTTP(c.Response(), c.Request())
		return nil
	}
}

func parseTopics(raw string) []string {
	known := map[string]bool{
		TopicProperties:    true,
		TopicNotifications: true,
		TopicChat:          true,
	}
	var topics []string
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if known[t] {
			topics = append(topics, t)
		}
	}
	return topics
}
