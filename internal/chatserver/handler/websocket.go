package handler

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/parleyhq/parley/internal/chatserver/database"
	"github.com/parleyhq/parley/internal/common/cnst"
	"github.com/parleyhq/parley/internal/common/config"
	"github.com/parleyhq/parley/internal/relay"
)

const (
	writeWait   = 10 * time.Second
	persistWait = 5 * time.Second
)

var (
	errConnClosed     = errors.New("connection closed")
	errSendBufferFull = errors.New("send buffer full")
)

// WebSocket upgrades visitor and admin connections and pumps frames between
// the sockets and the relay hub. Messages are persisted asynchronously; the
// fan-out never waits on the database.
type WebSocket struct {
	logger   *zap.Logger
	hub      *relay.Hub
	db       database.Database
	cfg      config.RelayConfig
	upgrader websocket.Upgrader
}

// NewWebSocket creates the websocket handler for both endpoints.
func NewWebSocket(logger *zap.Logger, hub *relay.Hub, db database.Database, cfg config.RelayConfig) *WebSocket {
	cfg.SetDefaults()
	return &WebSocket{
		logger: logger.Named("handler.ws"),
		hub:    hub,
		db:     db,
		cfg:    cfg,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: cfg.HandshakeTimeout,
			CheckOrigin: func(r *http.Request) bool {
				// The widget is embedded on third-party marketing pages, so
				// origin filtering happens at the proxy, not here.
				return true
			},
		},
	}
}

// wsConn adapts one gorilla socket to the hub's Conn interface. Send queues
// into a bounded channel drained by the write pump and fails fast when the
// buffer is full, so a slow reader only loses its own frames.
type wsConn struct {
	id   string
	sock *websocket.Conn
	send chan *relay.Envelope
	done chan struct{}
	once sync.Once
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Send(env *relay.Envelope) error {
	select {
	case <-c.done:
		return errConnClosed
	case c.send <- env:
		return nil
	default:
		return errSendBufferFull
	}
}

func (c *wsConn) Close() {
	c.once.Do(func() { close(c.done) })
}

// HandleChat handles visitor widget connections on /ws/chat.
func (w *WebSocket) HandleChat(c *gin.Context) {
	w.serve(c, false)
}

// HandleAdmin handles dashboard connections on /ws/admin. The JWT middleware
// has already vetted the token; every admin socket lands in the broadcast set
// as soon as it attaches.
func (w *WebSocket) HandleAdmin(c *gin.Context) {
	w.serve(c, true)
}

func (w *WebSocket) serve(c *gin.Context, admin bool) {
	sock, err := w.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		w.logger.Error("failed to upgrade websocket connection", zap.Error(err))
		return
	}

	conn := &wsConn{
		id:   uuid.NewString(),
		sock: sock,
		send: make(chan *relay.Envelope, w.cfg.SendBuffer),
		done: make(chan struct{}),
	}

	w.hub.Attach(conn, admin)
	if admin {
		w.hub.Post(relay.Event{Kind: relay.KindAdminJoin, ConnID: conn.id})
	}
	w.logger.Info("websocket client connected",
		zap.String("connId", conn.id),
		zap.Bool("admin", admin))

	go w.writePump(conn)
	w.readPump(conn)

	w.hub.Detach(conn.id)
	conn.Close()
	w.logger.Info("websocket client disconnected", zap.String("connId", conn.id))
}

// readPump reads frames until the socket dies. Malformed or unknown frames
// are dropped without a reply; valid events go to the hub after any
// persistence side effect is launched.
func (w *WebSocket) readPump(conn *wsConn) {
	conn.sock.SetReadLimit(w.cfg.MaxMessageSize)
	_ = conn.sock.SetReadDeadline(time.Now().Add(w.cfg.PongWait))
	conn.sock.SetPongHandler(func(string) error {
		return conn.sock.SetReadDeadline(time.Now().Add(w.cfg.PongWait))
	})

	for {
		_, raw, err := conn.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				w.logger.Warn("websocket read error",
					zap.String("connId", conn.id),
					zap.Error(err))
			}
			return
		}

		ev, err := relay.DecodeEvent(conn.id, raw)
		if err != nil {
			w.logger.Debug("ignoring bad websocket frame",
				zap.String("connId", conn.id),
				zap.Error(err))
			continue
		}

		w.persist(&ev)
		w.hub.Post(ev)
	}
}

// writePump drains the send buffer and keeps the connection alive with
// server-side pings. It owns all writes to the socket.
func (w *WebSocket) writePump(conn *wsConn) {
	ticker := time.NewTicker(w.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.sock.Close()
	}()

	for {
		select {
		case <-conn.done:
			_ = conn.sock.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.sock.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case env := <-conn.send:
			_ = conn.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.sock.WriteJSON(env); err != nil {
				w.logger.Debug("websocket write failed",
					zap.String("connId", conn.id),
					zap.Error(err))
				conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		}
	}
}

// persist launches the durable write for events that have one. The relay is
// told about the event regardless of whether the write succeeds: the live
// notification and the durable record are deliberately decoupled.
func (w *WebSocket) persist(ev *relay.Event) {
	switch ev.Kind {
	case relay.KindJoinSession:
		go w.ensureSession(ev.SessionID, ev.DisplayName)
	case relay.KindSendMessage, relay.KindAdminMessage:
		go w.saveMessage(ev)
	case relay.KindMarkRead:
		go w.markRead(ev.SessionID, ev.Sender)
	}
}

func (w *WebSocket) ensureSession(sessionID, displayName string) {
	ctx, cancel := context.WithTimeout(context.Background(), persistWait)
	defer cancel()

	exists, err := w.db.SessionExists(ctx, sessionID)
	if err != nil {
		w.logger.Error("failed to check session", zap.String("sessionId", sessionID), zap.Error(err))
		return
	}
	if exists {
		return
	}

	now := time.Now()
	err = w.db.CreateSession(ctx, &database.Session{
		ID:            sessionID,
		DisplayName:   displayName,
		Status:        cnst.SessionActive,
		CreatedAt:     now,
		LastMessageAt: now,
	})
	if err != nil {
		w.logger.Error("failed to create session", zap.String("sessionId", sessionID), zap.Error(err))
	}
}

func (w *WebSocket) saveMessage(ev *relay.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), persistWait)
	defer cancel()

	// A blocked visitor's messages are not persisted; admin notes still are.
	if ev.Sender == cnst.RoleUser {
		if sess, err := w.db.GetSession(ctx, ev.SessionID); err == nil && sess.Blocked {
			w.logger.Debug("dropping message from blocked session",
				zap.String("sessionId", ev.SessionID),
				zap.Error(cnst.ErrSessionBlocked))
			return
		}
	}

	id := ev.ClientMessageID
	if id == "" {
		id = uuid.NewString()
	}
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	err := w.db.SaveMessage(ctx, &database.Message{
		ID:        id,
		SessionID: ev.SessionID,
		Sender:    ev.Sender,
		Body:      ev.Body,
		Timestamp: ts,
	})
	if err != nil {
		w.logger.Error("failed to save message",
			zap.String("sessionId", ev.SessionID),
			zap.String("messageId", id),
			zap.Error(err))
	}
}

// markRead flips the read flag on the other side's messages: the event's
// sender is the one acknowledging.
func (w *WebSocket) markRead(sessionID string, sender cnst.SenderRole) {
	ctx, cancel := context.WithTimeout(context.Background(), persistWait)
	defer cancel()

	from := cnst.RoleUser
	if sender == cnst.RoleUser {
		from = cnst.RoleAdmin
	}
	if err := w.db.MarkRead(ctx, sessionID, from); err != nil {
		w.logger.Error("failed to mark messages read", zap.String("sessionId", sessionID), zap.Error(err))
	}
}
