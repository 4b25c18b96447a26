package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/angeldelgado/deliverydash-backend/pkg/config"
	"github.com/angeldelgado/deliverydash-backend/pkg/logger"
)

// Conn is the subset of *websocket.Conn the hub needs.
type Conn interface {
	WriteJSON(v any) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// Session is one live WebSocket attachment for a driver. A driver may hold
// several sessions (phone and tablet); events fan out to all of them.
type Session struct {
	conn     Conn
	driverID uuid.UUID
	lastSeen time.Time
	mu       sync.Mutex
}

// Touch refreshes the session liveness stamp, called from the pong handler.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *Session) seen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Hub tracks live driver sessions and pushes dispatch events to them. It
// satisfies the dispatch executor's Pusher interface.
type Hub struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]map[*Session]struct{}

	cfg    config.RealtimeConfig
	logger *logger.Logger
}

// NewHub builds an empty hub.
func NewHub(cfg config.RealtimeConfig, logg *logger.Logger) *Hub {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &Hub{
		sessions: make(map[uuid.UUID]map[*Session]struct{}),
		cfg:      cfg,
		logger:   logg,
	}
}

// Attach registers a connection for a driver and returns its session.
func (h *Hub) Attach(driverID uuid.UUID, conn Conn) *Session {
	session := &Session{conn: conn, driverID: driverID, lastSeen: time.Now()}

	h.mu.Lock()
	if _, ok := h.sessions[driverID]; !ok {
		h.sessions[driverID] = make(map[*Session]struct{})
	}
	h.sessions[driverID][session] = struct{}{}
	count := len(h.sessions[driverID])
	h.mu.Unlock()

	ctx := h.logger.WithDriverID(context.Background(), driverID.String())
	h.logger.Info(h.logger.WithField(ctx, "sessions", count), "realtime session attached")
	return session
}

// Detach closes and forgets a session.
func (h *Hub) Detach(session *Session) {
	h.mu.Lock()
	if conns, ok := h.sessions[session.driverID]; ok {
		delete(conns, session)
		if len(conns) == 0 {
			delete(h.sessions, session.driverID)
		}
	}
	h.mu.Unlock()

	_ = session.conn.Close()
	ctx := h.logger.WithDriverID(context.Background(), session.driverID.String())
	h.logger.Info(ctx, "realtime session detached")
}

// Push writes the event to every live session of the driver. Dead sessions
// are detached as they surface.
func (h *Hub) Push(driverID uuid.UUID, event any) {
	h.mu.RLock()
	conns := make([]*Session, 0, 2)
	for session := range h.sessions[driverID] {
		conns = append(conns, session)
	}
	h.mu.RUnlock()

	for _, session := range conns {
		if err := session.conn.WriteJSON(event); err != nil {
			ctx := h.logger.WithDriverID(context.Background(), driverID.String())
			h.logger.Error(ctx, "realtime push failed, dropping session", err)
			h.Detach(session)
		}
	}
}

// Broadcast writes the event to every connected driver.
func (h *Hub) Broadcast(event any) {
	h.mu.RLock()
	conns := make([]*Session, 0, len(h.sessions))
	for _, sessions := range h.sessions {
		for session := range sessions {
			conns = append(conns, session)
		}
	}
	h.mu.RUnlock()

	for _, session := range conns {
		if err := session.conn.WriteJSON(event); err != nil {
			h.Detach(session)
		}
	}
}

// Connected reports whether the driver holds at least one live session.
func (h *Hub) Connected(driverID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[driverID]) > 0
}

// Run pings sessions on the configured interval and drops the ones that
// stopped answering. Blocks until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.sweep()
		}
	}
}

func (h *Hub) sweep() {
	stale := 2 * h.cfg.PingInterval

	h.mu.RLock()
	conns := make([]*Session, 0, len(h.sessions))
	for _, sessions := range h.sessions {
		for session := range sessions {
			conns = append(conns, session)
		}
	}
	h.mu.RUnlock()

	for _, session := range conns {
		if time.Since(session.seen()) > stale {
			h.Detach(session)
			continue
		}
		deadline := time.Now().Add(h.cfg.WriteTimeout)
		_ = session.conn.WriteControl(websocket.PingMessage, nil, deadline)
	}
}
