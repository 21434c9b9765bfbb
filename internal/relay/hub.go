package relay

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parleyhq/parley/internal/common/config"
	"github.com/parleyhq/parley/pkg/metrics"
)

// Conn is one live transport connection attached to the hub. Send must not
// block: implementations queue into a bounded buffer and return an error
// when the buffer is full or the connection is gone.
type Conn interface {
	ID() string
	Send(env *Envelope) error
	Close()
}

// hubOp is one unit of work for the hub goroutine: exactly one of attach,
// detachID or event is set.
type hubOp struct {
	attach      Conn
	attachAdmin bool
	detachID    string
	event       *Event
}

// Hub owns all relay state. A single goroutine drains the op channel and
// handles each op to completion, so the registry, presence tracker and admin
// set are never mutated concurrently. Fan-out pushes envelopes into
// per-connection buffers drained by the transport's write pumps; a full
// buffer drops the envelope, it is never queued or retried.
type Hub struct {
	logger     *zap.Logger
	metrics    *metrics.Metrics
	instanceID string

	reg    *Registry
	router *Router
	conns  map[string]Conn
	ops    chan hubOp

	bridge *Bridge
}

// NewHub creates a hub with an empty registry.
func NewHub(logger *zap.Logger, cfg config.RelayConfig, m *metrics.Metrics) *Hub {
	cfg.SetDefaults()
	h := &Hub{
		logger:     logger.Named("relay.hub"),
		metrics:    m,
		instanceID: uuid.NewString(),
		reg:        NewRegistry(),
		conns:      make(map[string]Conn),
		ops:        make(chan hubOp, cfg.EventBuffer),
	}
	h.router = NewRouter(h.reg, h.deliver, logger, m)
	return h
}

// SetBridge attaches the optional cross-instance bridge. Must be called
// before Run.
func (h *Hub) SetBridge(b *Bridge) {
	h.bridge = b
}

// InstanceID identifies this hub across the bridge.
func (h *Hub) InstanceID() string {
	return h.instanceID
}

// Run drains ops until the context is cancelled, then closes every attached
// connection. Pending deliveries are not drained on shutdown.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("relay hub started", zap.String("instance", h.instanceID))
	for {
		select {
		case <-ctx.Done():
			for _, c := range h.conns {
				c.Close()
			}
			h.logger.Info("relay hub stopped")
			return
		case op := <-h.ops:
			h.dispatch(op)
		}
	}
}

// Attach registers a new transport connection. admin states whether the
// connection arrived over the authenticated admin route; only eligible
// connections may enter the admin broadcast set or send moderation events.
func (h *Hub) Attach(c Conn, admin bool) {
	h.ops <- hubOp{attach: c, attachAdmin: admin}
}

// Detach removes a connection after transport disconnect. Safe to call more
// than once for the same ID.
func (h *Hub) Detach(connID string) {
	h.ops <- hubOp{detachID: connID}
}

// Post submits an inbound event for routing. Events from the same
// connection are routed in submission order; there is no ordering guarantee
// across connections.
func (h *Hub) Post(ev Event) {
	h.ops <- hubOp{event: &ev}
}

// dispatch handles one op to completion. A panic while routing one event is
// contained so a bad event cannot take the relay down for everyone else.
func (h *Hub) dispatch(op hubOp) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("recovered from panic in relay dispatch", zap.Any("panic", rec))
		}
	}()

	switch {
	case op.attach != nil:
		h.conns[op.attach.ID()] = op.attach
		h.reg.Register(op.attach.ID(), op.attachAdmin)
		h.metrics.RelayConnections(len(h.conns))
	case op.detachID != "":
		if _, ok := h.conns[op.detachID]; !ok {
			return
		}
		delete(h.conns, op.detachID)
		h.router.Disconnect(op.detachID)
		h.metrics.RelayConnections(len(h.conns))
	case op.event != nil:
		h.routeEvent(op.event)
	}
}

func (h *Hub) routeEvent(ev *Event) {
	if ev.Origin != "" && ev.Origin != h.instanceID {
		h.routeRemote(ev)
		return
	}
	h.router.Route(ev)
	if h.bridge != nil && bridged(ev.Kind) {
		h.bridge.Publish(ev, h.instanceID)
	}
}

// routeRemote fans out an event that another instance accepted. Remote
// events never mutate local registries: the remote connection does not
// exist here, only its deliveries do.
func (h *Hub) routeRemote(ev *Event) {
	switch ev.Kind {
	case KindJoinSession:
		// Local rosters track local sockets only; remote joins surface to
		// the local admin dashboards.
		h.router.toAdmins(&Envelope{
			Event: EventNewSessionStarted,
			Data: SessionStartedData{
				SessionID:   ev.SessionID,
				DisplayName: ev.DisplayName,
				Timestamp:   eventTime(ev),
			},
		})
	default:
		h.router.Route(ev)
	}
}

// bridged reports whether an event kind is replicated across instances.
// Registry-mutating kinds stay local: each instance tracks its own sockets.
func bridged(k Kind) bool {
	switch k {
	case KindJoinSession, KindSendMessage, KindAdminMessage, KindTyping,
		KindAdminTyping, KindMarkRead, KindSessionDeleted, KindUserBlocked:
		return true
	}
	return false
}

// deliver hands one envelope to one local connection, dropping it when the
// connection is gone or its buffer is full.
func (h *Hub) deliver(connID string, env *Envelope) {
	c, ok := h.conns[connID]
	if !ok {
		return
	}
	if err := c.Send(env); err != nil {
		h.metrics.RelayDeliveryDropped()
		h.logger.Debug("dropping undeliverable envelope",
			zap.String("connId", connID),
			zap.String("event", env.Event),
			zap.Error(err))
	}
}

// Registry exposes the hub's registry for tests and diagnostics.
func (h *Hub) Registry() *Registry {
	return h.reg
}
