// Package sse provides Server-Sent Events fanout for board delta events.
package sse

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"funnelboard/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// EventType names the SSE event kinds pushed to connected boards.
type EventType string

const (
	EventLeadCreated  EventType = "lead_created"
	EventLeadUpdated  EventType = "lead_updated"
	EventLeadDeleted  EventType = "lead_deleted"
	EventStageChanged EventType = "stage_changed"
	EventTagsChanged  EventType = "tags_changed"
)

// Event is one SSE payload. Data carries the event-specific body.
type Event struct {
	Type     EventType `json:"type"`
	LeadID   uuid.UUID `json:"leadId,omitempty"`
	FunnelID uuid.UUID `json:"funnelId,omitempty"`
	Data     any       `json:"data,omitempty"`
}

// PresenceTracker marks agents online while they hold an SSE connection.
type PresenceTracker interface {
	Connected(ctx context.Context, tenantID, userID uuid.UUID)
	Disconnected(ctx context.Context, tenantID, userID uuid.UUID)
}

// events is never closed; teardown is signaled through done, which closes
// exactly once. closed is guarded by the service mutex.
type client struct {
	userID   uuid.UUID
	tenantID uuid.UUID
	events   chan Event
	done     chan struct{}
	closed   bool
}

// Service manages SSE connections and per-tenant broadcasting. Client send
// channels are buffered; a slow client drops events rather than blocking the
// broadcaster.
type Service struct {
	mu       sync.RWMutex
	clients  map[uuid.UUID][]*client // tenantID -> clients
	presence PresenceTracker
	log      *logger.Logger
}

// New creates the SSE service. presence may be nil.
func New(presence PresenceTracker, log *logger.Logger) *Service {
	return &Service{
		clients:  make(map[uuid.UUID][]*client),
		presence: presence,
		log:      log,
	}
}

func (s *Service) addClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.tenantID] = append(s.clients[c.tenantID], c)
}

func (s *Service) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clients := s.clients[c.tenantID]
	for i, cl := range clients {
		if cl == c {
			s.clients[c.tenantID] = append(clients[:i], clients[i+1:]...)
			break
		}
	}
	if len(s.clients[c.tenantID]) == 0 {
		delete(s.clients, c.tenantID)
	}
	signalDoneLocked(c)
}

// signalDoneLocked closes the client's done channel once. Both removeClient
// and Close reach it, in either order, under s.mu.
func signalDoneLocked(c *client) {
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}

// Broadcast sends an event to every client of a tenant.
func (s *Service) Broadcast(tenantID uuid.UUID, event Event) {
	s.mu.RLock()
	clients := make([]*client, len(s.clients[tenantID]))
	copy(clients, s.clients[tenantID])
	s.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.events <- event:
		default:
			s.log.Warn("sse buffer full, event dropped", "userId", c.userID, "event", string(event.Type))
		}
	}
}

// ClientCount reports how many clients a tenant has connected.
func (s *Service) ClientCount(tenantID uuid.UUID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients[tenantID])
}

// Handler returns the gin handler for the event stream. resolveTenant maps
// the authenticated user to the tenant whose events they receive.
func (s *Service) Handler(resolveTenant func(*gin.Context) (userID, tenantID uuid.UUID, ok bool)) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, tenantID, ok := resolveTenant(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")

		cl := &client{
			userID:   userID,
			tenantID: tenantID,
			events:   make(chan Event, 32),
			done:     make(chan struct{}),
		}
		s.addClient(cl)
		if s.presence != nil {
			s.presence.Connected(c.Request.Context(), tenantID, userID)
		}
		defer func() {
			s.removeClient(cl)
			if s.presence != nil {
				s.presence.Disconnected(context.Background(), tenantID, userID)
			}
		}()

		c.SSEvent("connected", gin.H{"userId": userID})
		c.Writer.Flush()
		s.log.Info("sse client connected", "userId", userID, "tenantId", tenantID)

		// The keepalive tick doubles as the presence TTL refresh.
		keepalive := time.NewTicker(30 * time.Second)
		defer keepalive.Stop()

		clientGone := c.Request.Context().Done()
		for {
			select {
			case <-clientGone:
				s.log.Info("sse client disconnected", "userId", userID)
				return
			case <-cl.done:
				return
			case <-keepalive.C:
				if s.presence != nil {
					s.presence.Connected(c.Request.Context(), tenantID, userID)
				}
				c.SSEvent("ping", "{}")
				c.Writer.Flush()
			case event := <-cl.events:
				data, _ := json.Marshal(event)
				c.SSEvent(string(event.Type), string(data))
				c.Writer.Flush()
			}
		}
	}
}

// Close disconnects every client. Handlers still draining their events
// channel see done close and return; their deferred removeClient is then a
// no-op for the already-signaled client.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, clients := range s.clients {
		for _, c := range clients {
			signalDoneLocked(c)
		}
	}
	s.clients = make(map[uuid.UUID][]*client)
}
