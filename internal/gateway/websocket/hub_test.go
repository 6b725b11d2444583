package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bordumb/RadicleApp/internal/common/logger"
	"github.com/bordumb/RadicleApp/internal/events"
	"github.com/bordumb/RadicleApp/internal/events/bus"
)

type testServer struct {
	bus *bus.MemoryEventBus
	hub *Hub
	url string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	eventBus := bus.NewMemoryEventBus(logger.Nop())
	t.Cleanup(eventBus.Close)
	hub := NewHub(logger.Nop())
	require.NoError(t, hub.Listen(eventBus))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	router := gin.New()
	RegisterRoutes(router, hub, logger.Nop())
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{
		bus: eventBus,
		hub: hub,
		url: "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
	}
}

func (s *testServer) dial(t *testing.T) *gorillaws.Conn {
	t.Helper()
	conn, _, err := gorillaws.DefaultDialer.Dial(s.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (s *testServer) publish(t *testing.T, eventType, sessionID string, data map[string]interface{}) {
	t.Helper()
	event := bus.NewEvent(eventType, events.Source, sessionID, data)
	require.NoError(t, s.bus.Publish(context.Background(), events.BuildSubject(eventType, sessionID), event))
}

func send(t *testing.T, conn *gorillaws.Conn, req Request) Reply {
	t.Helper()
	require.NoError(t, conn.WriteJSON(req))
	var reply Reply
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&reply))
	return reply
}

func readNotification(t *testing.T, conn *gorillaws.Conn) Notification {
	t.Helper()
	var n Notification
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&n))
	return n
}

func TestHubRoutesBySession(t *testing.T) {
	s := newTestServer(t)
	alice := s.dial(t)
	bob := s.dial(t)

	reply := send(t, alice, Request{Action: ActionSubscribe, SessionID: "tree-1"})
	require.True(t, reply.Success)
	reply = send(t, bob, Request{Action: ActionSubscribe, SessionID: "diff-1"})
	require.True(t, reply.Success)

	s.publish(t, events.TreeNodeChanged, "tree-1", map[string]interface{}{"path": "src", "state": "loaded"})
	s.publish(t, events.DiffPageMerged, "diff-1", map[string]interface{}{"pages": 1})

	n := readNotification(t, alice)
	assert.Equal(t, events.TreeNodeChanged, n.Type)
	assert.Equal(t, "tree-1", n.SessionID)
	assert.Equal(t, "src", n.Data["path"])

	n = readNotification(t, bob)
	assert.Equal(t, events.DiffPageMerged, n.Type)
	assert.Equal(t, "diff-1", n.SessionID)
	assert.EqualValues(t, 1, n.Data["pages"])
}

func TestHubUnsubscribe(t *testing.T) {
	s := newTestServer(t)
	conn := s.dial(t)

	require.True(t, send(t, conn, Request{Action: ActionSubscribe, SessionID: "a"}).Success)
	require.True(t, send(t, conn, Request{Action: ActionSubscribe, SessionID: "b"}).Success)
	require.True(t, send(t, conn, Request{Action: ActionUnsubscribe, SessionID: "a"}).Success)

	s.publish(t, events.TreeNodeChanged, "a", map[string]interface{}{"path": "dropped"})
	s.publish(t, events.TreeNodeChanged, "b", map[string]interface{}{"path": "kept"})

	n := readNotification(t, conn)
	assert.Equal(t, "b", n.SessionID)
	assert.Equal(t, "kept", n.Data["path"])
}

func TestClientRejectsBadRequests(t *testing.T) {
	s := newTestServer(t)
	conn := s.dial(t)

	reply := send(t, conn, Request{Action: ActionSubscribe})
	assert.False(t, reply.Success)
	assert.Equal(t, "session_id is required", reply.Error)

	reply = send(t, conn, Request{Action: "explode", SessionID: "x"})
	assert.False(t, reply.Success)
	assert.Equal(t, "unknown action", reply.Error)

	require.NoError(t, conn.WriteMessage(gorillaws.TextMessage, []byte("{not json")))
	var r Reply
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&r))
	assert.Equal(t, "invalid message format", r.Error)
}

func TestHubDropsDisconnectedClients(t *testing.T) {
	s := newTestServer(t)
	conn := s.dial(t)
	require.True(t, send(t, conn, Request{Action: ActionSubscribe, SessionID: "tree-1"}).Success)
	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		s.hub.mu.RLock()
		defer s.hub.mu.RUnlock()
		return len(s.hub.clients) == 0 && len(s.hub.subscribers) == 0
	}, 2*time.Second, 10*time.Millisecond)

	s.publish(t, events.TreeNodeChanged, "tree-1", map[string]interface{}{"path": "src"})
}

func TestHubIgnoresEventsWithoutSession(t *testing.T) {
	hub := NewHub(logger.Nop())
	event := bus.NewEvent(events.TreeClosed, events.Source, "", map[string]interface{}{})
	assert.NoError(t, hub.handleEvent(context.Background(), event))
}
