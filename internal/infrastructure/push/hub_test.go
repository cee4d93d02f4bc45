package push

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/riskibarqy/duelhub/internal/platform/logging"
	"github.com/riskibarqy/duelhub/internal/usecase"
)

// dialTestConn builds a real server-side websocket conn backed by an
// in-process client, so session teardown exercises the actual conn.
func dialTestConn(t *testing.T) (server *websocket.Conn, client *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	connCh := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		connCh <- c
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial test websocket: %v", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { client.Close() })

	select {
	case server = <-connCh:
	case <-time.After(2 * time.Second):
		t.Fatalf("server side of test websocket never arrived")
	}
	t.Cleanup(func() { server.Close() })

	return server, client
}

func TestHub_Notify_DeliversToLiveSession(t *testing.T) {
	hub := NewHub(0, logging.NewNop())
	server, client := dialTestConn(t)

	session := hub.Connect("p1", server)
	go session.WritePump()
	defer hub.Disconnect(session)

	event := usecase.MatchEvent{
		Type:       usecase.EventMatchFound,
		MatchID:    "m1",
		OpponentID: "p2",
		Status:     "pending",
	}
	if err := hub.Notify(context.Background(), "p1", event); err != nil {
		t.Fatalf("notify: %v", err)
	}

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("read pushed event: %v", err)
	}

	var got usecase.MatchEvent
	if err := sonic.Unmarshal(payload, &got); err != nil {
		t.Fatalf("decode pushed event: %v", err)
	}
	if got.Type != usecase.EventMatchFound || got.MatchID != "m1" || got.OpponentID != "p2" {
		t.Fatalf("unexpected event: %+v", got)
	}
}

func TestHub_Notify_NoSessionIsNotAnError(t *testing.T) {
	hub := NewHub(0, logging.NewNop())

	err := hub.Notify(context.Background(), "offline", usecase.MatchEvent{Type: usecase.EventMatchFound})
	if err != nil {
		t.Fatalf("notify without session: %v", err)
	}
	if hub.ConnectedCount() != 0 {
		t.Fatalf("expected no sessions, got %d", hub.ConnectedCount())
	}
}

func TestHub_Connect_NewestConnectionWins(t *testing.T) {
	hub := NewHub(0, logging.NewNop())

	firstServer, _ := dialTestConn(t)
	secondServer, _ := dialTestConn(t)

	first := hub.Connect("p1", firstServer)
	second := hub.Connect("p1", secondServer)

	select {
	case <-first.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("expected the superseded session to be closed")
	}
	if hub.ConnectedCount() != 1 {
		t.Fatalf("expected a single live session, got %d", hub.ConnectedCount())
	}

	// Disconnecting the stale session must not evict the current one.
	hub.Disconnect(first)
	if hub.ConnectedCount() != 1 {
		t.Fatalf("expected current session to survive stale disconnect, got %d", hub.ConnectedCount())
	}

	hub.Disconnect(second)
	if hub.ConnectedCount() != 0 {
		t.Fatalf("expected empty hub, got %d", hub.ConnectedCount())
	}
}

func TestHub_Shutdown_ClosesAllSessions(t *testing.T) {
	hub := NewHub(0, logging.NewNop())

	serverA, _ := dialTestConn(t)
	serverB, _ := dialTestConn(t)
	sessionA := hub.Connect("p1", serverA)
	sessionB := hub.Connect("p2", serverB)

	hub.Shutdown()

	for _, session := range []*Session{sessionA, sessionB} {
		select {
		case <-session.Done():
		case <-time.After(2 * time.Second):
			t.Fatalf("expected session %s to be closed on shutdown", session.PlayerID())
		}
	}
	if hub.ConnectedCount() != 0 {
		t.Fatalf("expected empty hub after shutdown, got %d", hub.ConnectedCount())
	}
}

func TestHub_Notify_StalledSessionIsDropped(t *testing.T) {
	hub := NewHub(50*time.Millisecond, logging.NewNop())
	server, _ := dialTestConn(t)

	// No WritePump: the outbound buffer fills and the send times out.
	session := hub.Connect("p1", server)

	event := usecase.MatchEvent{Type: usecase.EventMatchFound, MatchID: "m1"}
	for i := 0; i < cap(session.outbound)+1; i++ {
		if err := hub.Notify(context.Background(), "p1", event); err != nil {
			t.Fatalf("notify %d: %v", i, err)
		}
	}

	if hub.ConnectedCount() != 0 {
		t.Fatalf("expected stalled session to be dropped, got %d live", hub.ConnectedCount())
	}
	select {
	case <-session.Done():
	case <-time.After(time.Second):
		t.Fatalf("expected stalled session to be closed")
	}
}
