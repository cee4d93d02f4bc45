// Package push delivers match events to connected players over WebSocket.
// Delivery is best effort: a player with no live session simply misses the
// event and is expected to recover state through the HTTP endpoints.
package push

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/riskibarqy/duelhub/internal/platform/logging"
	"github.com/riskibarqy/duelhub/internal/usecase"
)

const defaultSendTimeout = 2 * time.Second

// Session is a single player connection owned by the hub. Writes go through
// the outbound channel so only the write pump touches the conn.
type Session struct {
	playerID string
	conn     *websocket.Conn
	outbound chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func newSession(playerID string, conn *websocket.Conn) *Session {
	return &Session{
		playerID: playerID,
		conn:     conn,
		outbound: make(chan []byte, 16),
		done:     make(chan struct{}),
	}
}

// Close tears the session down. Safe to call from any goroutine, repeatedly.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// Done is closed once the session has been torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// PlayerID returns the owner of this session.
func (s *Session) PlayerID() string {
	return s.playerID
}

// WritePump drains the outbound channel onto the connection. It returns when
// the session is closed or a write fails, and must run on its own goroutine.
func (s *Session) WritePump() {
	for {
		select {
		case <-s.done:
			return
		case payload := <-s.outbound:
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.Close()
				return
			}
		}
	}
}

// Hub tracks one live session per player. A new connection for a player that
// already has one replaces it, the newest connection always wins.
type Hub struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	sendTimeout time.Duration
	logger      *logging.Logger
}

var _ usecase.Notifier = (*Hub)(nil)

func NewHub(sendTimeout time.Duration, logger *logging.Logger) *Hub {
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &Hub{
		sessions:    make(map[string]*Session),
		sendTimeout: sendTimeout,
		logger:      logger,
	}
}

// Connect registers a session for the player, closing any previous one.
func (h *Hub) Connect(playerID string, conn *websocket.Conn) *Session {
	session := newSession(playerID, conn)

	h.mu.Lock()
	previous := h.sessions[playerID]
	h.sessions[playerID] = session
	h.mu.Unlock()

	if previous != nil {
		previous.Close()
		h.logger.Debug("replaced existing push session", "playerId", playerID)
	}

	return session
}

// Disconnect removes the session if it is still the player's current one.
// A session superseded by a newer connection leaves the newer one in place.
func (h *Hub) Disconnect(session *Session) {
	h.mu.Lock()
	if current, ok := h.sessions[session.playerID]; ok && current == session {
		delete(h.sessions, session.playerID)
	}
	h.mu.Unlock()

	session.Close()
}

// Notify sends the event to the player's live session, if any. A player
// without a session is not an error. A full outbound buffer past the send
// timeout drops the event and closes the session as unhealthy.
func (h *Hub) Notify(ctx context.Context, playerID string, event usecase.MatchEvent) error {
	h.mu.RLock()
	session, ok := h.sessions[playerID]
	h.mu.RUnlock()
	if !ok {
		return nil
	}

	payload, err := sonic.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal match event: %w", err)
	}

	timer := time.NewTimer(h.sendTimeout)
	defer timer.Stop()

	select {
	case session.outbound <- payload:
		return nil
	case <-session.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		h.logger.WarnContext(ctx, "push session stalled, dropping it",
			"playerId", playerID,
			"eventType", event.Type,
		)
		h.Disconnect(session)
		return nil
	}
}

// ConnectedCount reports the number of live sessions.
func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.sessions)
}

// Shutdown closes every live session.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.sessions = make(map[string]*Session)
	h.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
