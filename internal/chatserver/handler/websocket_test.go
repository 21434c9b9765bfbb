package handler

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/parleyhq/parley/internal/chatserver/database"
	"github.com/parleyhq/parley/internal/common/config"
	"github.com/parleyhq/parley/internal/relay"
)

type wireEnvelope struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

func newWSServer(t *testing.T, db database.Database) (*httptest.Server, *relay.Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := startHub(t)
	h := NewWebSocket(zap.NewNop(), hub, db, config.RelayConfig{})

	r := gin.New()
	r.GET("/ws/chat", h.HandleChat)
	r.GET("/ws/admin", h.HandleAdmin)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, hub
}

func dialWS(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readEnvelope(t *testing.T, ws *websocket.Conn) wireEnvelope {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env wireEnvelope
	require.NoError(t, ws.ReadJSON(&env))
	return env
}

func TestWebSocket_JoinAndMessage(t *testing.T) {
	db := newTestDB(t)
	srv, _ := newWSServer(t, db)

	ws := dialWS(t, srv, "/ws/chat")
	require.NoError(t, ws.WriteJSON(wireEnvelope{
		Event: "join-session",
		Data:  map[string]any{"sessionId": "s1", "displayName": "Ada"},
	}))

	env := readEnvelope(t, ws)
	assert.Equal(t, relay.EventSessionJoined, env.Event)
	assert.Equal(t, "s1", env.Data["sessionId"])
	assert.Equal(t, float64(1), env.Data["activeUsers"])

	// the session row is created asynchronously on join
	require.Eventually(t, func() bool {
		exists, err := db.SessionExists(context.Background(), "s1")
		return err == nil && exists
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, ws.WriteJSON(wireEnvelope{
		Event: "send-message",
		Data:  map[string]any{"sessionId": "s1", "message": "hi", "sender": "user", "messageId": "m1"},
	}))

	// the sender's echo is the delivery confirmation
	env = readEnvelope(t, ws)
	assert.Equal(t, relay.EventNewMessage, env.Event)
	assert.Equal(t, "hi", env.Data["message"])

	// and the durable write lands without blocking the fan-out
	require.Eventually(t, func() bool {
		msgs, err := db.GetMessages(context.Background(), "s1")
		return err == nil && len(msgs) == 1 && msgs[0].ID == "m1"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocket_MalformedFramesIgnored(t *testing.T) {
	db := newTestDB(t)
	srv, _ := newWSServer(t, db)

	ws := dialWS(t, srv, "/ws/chat")
	// neither frame gets a reply and neither kills the connection
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	require.NoError(t, ws.WriteJSON(wireEnvelope{Event: "no-such-event"}))

	require.NoError(t, ws.WriteJSON(wireEnvelope{
		Event: "join-session",
		Data:  map[string]any{"sessionId": "s1"},
	}))
	env := readEnvelope(t, ws)
	assert.Equal(t, relay.EventSessionJoined, env.Event)
}

func TestWebSocket_BlockedSessionMessagesNotSaved(t *testing.T) {
	db := newTestDB(t)
	srv, _ := newWSServer(t, db)

	seedSession(t, db, "s1")
	require.NoError(t, db.SetBlocked(context.Background(), "s1", true))

	ws := dialWS(t, srv, "/ws/chat")
	require.NoError(t, ws.WriteJSON(wireEnvelope{
		Event: "join-session",
		Data:  map[string]any{"sessionId": "s1", "displayName": "Ada"},
	}))
	env := readEnvelope(t, ws)
	require.Equal(t, relay.EventSessionJoined, env.Event)

	require.NoError(t, ws.WriteJSON(wireEnvelope{
		Event: "send-message",
		Data:  map[string]any{"sessionId": "s1", "message": "hi", "sender": "user"},
	}))

	// the durable write never lands while the session is blocked
	assert.Never(t, func() bool {
		msgs, err := db.GetMessages(context.Background(), "s1")
		return err == nil && len(msgs) > 1
	}, 500*time.Millisecond, 50*time.Millisecond)
}

func TestWebSocket_VisitorCannotClaimAdmin(t *testing.T) {
	db := newTestDB(t)
	srv, hub := newWSServer(t, db)

	// a visitor socket claiming admin-join must stay out of the broadcast set
	eavesdropper := dialWS(t, srv, "/ws/chat")
	require.NoError(t, eavesdropper.WriteJSON(wireEnvelope{Event: "admin-join"}))

	victim := dialWS(t, srv, "/ws/chat")
	require.NoError(t, victim.WriteJSON(wireEnvelope{
		Event: "join-session",
		Data:  map[string]any{"sessionId": "s1", "displayName": "Ada"},
	}))
	env := readEnvelope(t, victim)
	require.Equal(t, relay.EventSessionJoined, env.Event)

	require.Eventually(t, func() bool {
		return hub.Registry().Admins().Len() == 0 && hub.Registry().Presence().Size("s1") == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, victim.WriteJSON(wireEnvelope{
		Event: "send-message",
		Data:  map[string]any{"sessionId": "s1", "message": "secret", "sender": "user"},
	}))
	env = readEnvelope(t, victim)
	require.Equal(t, relay.EventNewMessage, env.Event)

	// nothing ever reaches the other visitor's socket
	require.NoError(t, eavesdropper.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	var leaked wireEnvelope
	assert.Error(t, eavesdropper.ReadJSON(&leaked))
}

func TestWebSocket_AdminReceivesActivity(t *testing.T) {
	db := newTestDB(t)
	srv, _ := newWSServer(t, db)

	admin := dialWS(t, srv, "/ws/admin")

	var mu sync.Mutex
	adminEvents := map[string]bool{}
	go func() {
		for {
			var env wireEnvelope
			if err := admin.ReadJSON(&env); err != nil {
				return
			}
			mu.Lock()
			adminEvents[env.Event] = true
			mu.Unlock()
		}
	}()

	visitor := dialWS(t, srv, "/ws/chat")
	require.NoError(t, visitor.WriteJSON(wireEnvelope{
		Event: "join-session",
		Data:  map[string]any{"sessionId": "s1", "displayName": "Ada"},
	}))
	env := readEnvelope(t, visitor)
	require.Equal(t, relay.EventSessionJoined, env.Event)

	// keep sending until the admin socket has seen the activity ping; the
	// admin attach and the visitor join race, so one message may predate the
	// admin's membership in the broadcast set
	require.Eventually(t, func() bool {
		_ = visitor.WriteJSON(wireEnvelope{
			Event: "send-message",
			Data:  map[string]any{"sessionId": "s1", "message": "ping", "sender": "user"},
		})
		mu.Lock()
		defer mu.Unlock()
		return adminEvents[relay.EventAdminNewMessage] && adminEvents[relay.EventNewMessage]
	}, 3*time.Second, 50*time.Millisecond)
}
