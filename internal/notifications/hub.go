package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"

	"gatehouse/internal/middleware"
	"gatehouse/internal/models"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// Max connections per user
	maxConnsPerUser = 12
	// Max total connections
	maxTotalConns = 10000
)

// Hub maps userID -> live websocket clients and resolves each event's target
// selector against them. With Redis wired it also relays events to sibling
// replicas, tagging them with an origin id so its own events are not
// delivered twice.
type Hub struct {
	mu         sync.RWMutex
	conns      map[uint]map[*Client]struct{}
	totalConns int

	origin   string
	notifier *Notifier

	shutdown chan struct{}
	done     chan struct{}
	presence *ConnectionManager
}

// NewHub creates a Hub. A Redis client is optional; without one the hub
// serves a single replica with in-memory presence only.
func NewHub(redisClients ...*redis.Client) *Hub {
	var redisClient *redis.Client
	if len(redisClients) > 0 {
		redisClient = redisClients[0]
	}

	presence := NewConnectionManager(redisClient, ConnectionManagerConfig{})

	return &Hub{
		conns:    make(map[uint]map[*Client]struct{}),
		origin:   uuid.NewString(),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		presence: presence,
	}
}

// Register adds a connection for a user. The role is captured here, once, so
// fan-out never re-reads it. Returns an error when connection limits are hit.
func (h *Hub) Register(userID uint, role models.Role, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()

	if h.totalConns >= maxTotalConns {
		h.mu.Unlock()
		return nil, errors.New("server connection limit reached")
	}

	m, ok := h.conns[userID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[userID] = m
	}

	if len(m) >= maxConnsPerUser {
		h.mu.Unlock()
		return nil, errors.New("user connection limit reached")
	}

	client := NewClient(h, conn, userID, role)
	client.OnActivity = func(uid uint) {
		if h.presence != nil {
			h.presence.Touch(context.Background(), uid)
		}
	}

	m[client] = struct{}{}
	h.totalConns++
	h.mu.Unlock()

	middleware.ActiveWebSockets.Inc()

	if h.presence != nil {
		h.presence.Register(context.Background(), userID)
	}

	return client, nil
}

// UnregisterClient removes a connection. Unregistering a client that is
// already gone is a no-op.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	removedClient := false
	if m, ok := h.conns[client.UserID]; ok {
		if _, exists := m[client]; exists {
			delete(m, client)
			h.totalConns--
			removedClient = true
		}
		if len(m) == 0 {
			delete(h.conns, client.UserID)
		}
	}
	h.mu.Unlock()

	if removedClient {
		middleware.ActiveWebSockets.Dec()
		if h.presence != nil {
			h.presence.Unregister(context.Background(), client.UserID)
		}
	}
}

// Publish fans an event out to the local subscribers its target resolves to,
// bumps the author's unread counter when they are offline, and relays the
// event to sibling replicas when Redis is wired.
func (h *Hub) Publish(ctx context.Context, event models.NotificationEvent) {
	middleware.NotificationsPublished.WithLabelValues(string(event.Type), string(event.Target)).Inc()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("failed to marshal %s event for post %d: %v", event.Type, event.PostID, err)
		middleware.NotificationDrops.WithLabelValues("marshal").Inc()
		return
	}

	h.deliverLocal(event.Target, event.AuthorID, payload)

	if h.notifier == nil {
		return
	}

	if event.Target == models.TargetAuthorOnly && !h.IsOnline(event.AuthorID) {
		if err := h.notifier.IncrementUnread(ctx, event.AuthorID); err != nil {
			log.Printf("failed to bump unread counter for user %d: %v", event.AuthorID, err)
		}
	}

	env := envelope{Origin: h.origin, Target: event.Target, Event: event}
	if err := h.notifier.PublishEnvelope(ctx, env); err != nil {
		log.Printf("failed to relay %s event for post %d: %v", event.Type, event.PostID, err)
	}
}

// deliverLocal pushes payload to every local connection the target selects.
func (h *Hub) deliverLocal(target models.TargetSelector, authorID uint, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	switch target {
	case models.TargetAuthorOnly:
		for c := range h.conns[authorID] {
			c.TrySend(payload)
		}
	case models.TargetModeratorsAndAdmins:
		for _, clients := range h.conns {
			for c := range clients {
				if c.Role.CanModerate() {
					c.TrySend(payload)
				}
			}
		}
	case models.TargetBroadcast:
		for _, clients := range h.conns {
			for c := range clients {
				c.TrySend(payload)
			}
		}
	default:
		middleware.NotificationDrops.WithLabelValues("unknown_target").Inc()
	}
}

// StartWiring attaches the Notifier: outgoing events relay through Redis and
// incoming envelopes from sibling replicas are delivered locally, skipping
// the ones this hub published itself.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	h.notifier = n
	return n.StartRelay(ctx, func(channel, payload string) {
		var env envelope
		if err := json.Unmarshal([]byte(payload), &env); err != nil {
			log.Printf("invalid envelope on %s: %v", channel, err)
			return
		}
		if env.Origin == h.origin {
			return
		}
		body, err := json.Marshal(env.Event)
		if err != nil {
			return
		}
		h.deliverLocal(env.Target, env.Event.AuthorID, body)
	})
}

// SetPresenceCallbacks registers online/offline hooks on the presence tracker.
func (h *Hub) SetPresenceCallbacks(onOnline, onOffline func(userID uint)) {
	if h.presence == nil {
		return
	}
	h.presence.SetCallbacks(onOnline, onOffline)
}

// IsOnline reports whether a user has at least one active connection,
// consulting shared presence when Redis is available.
func (h *Hub) IsOnline(userID uint) bool {
	if h.presence != nil {
		return h.presence.IsOnline(context.Background(), userID)
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients, ok := h.conns[userID]
	return ok && len(clients) > 0
}

// Shutdown gracefully closes all websocket connections.
func (h *Hub) Shutdown(_ context.Context) error {
	close(h.shutdown)

	if h.presence != nil {
		h.presence.Stop()
	}

	h.mu.Lock()
	for userID, userConns := range h.conns {
		for client := range userConns {
			if client.Conn == nil {
				continue
			}
			if err := client.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")); err != nil {
				log.Printf("failed to write close message for user %d: %v", userID, err)
			}
			if err := client.Conn.Close(); err != nil {
				log.Printf("failed to close websocket for user %d: %v", userID, err)
			}
		}
	}
	h.conns = make(map[uint]map[*Client]struct{})
	h.mu.Unlock()

	close(h.done)

	return nil
}
