package relay

import (
	"time"

	"go.uber.org/zap"

	"github.com/parleyhq/parley/internal/common/cnst"
	"github.com/parleyhq/parley/pkg/metrics"
)

// DeliverFunc hands one envelope to one destination connection. Delivery is
// fire-and-forget: implementations drop the envelope when the destination is
// gone or its buffer is full.
type DeliverFunc func(connID string, env *Envelope)

// Router computes and executes the fan-out for each inbound event.
type Router struct {
	reg     *Registry
	deliver DeliverFunc
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewRouter wires a router over the given registry and delivery function.
func NewRouter(reg *Registry, deliver DeliverFunc, logger *zap.Logger, m *metrics.Metrics) *Router {
	return &Router{
		reg:     reg,
		deliver: deliver,
		logger:  logger.Named("relay.router"),
		metrics: m,
	}
}

// Outbound payload shapes.
type (
	// SessionJoinedData acknowledges a join to the joiner itself.
	SessionJoinedData struct {
		SessionID   string `json:"sessionId"`
		ActiveUsers int    `json:"activeUsers"`
	}

	// RoomMemberData announces a join or leave to the rest of the room.
	RoomMemberData struct {
		SessionID   string `json:"sessionId"`
		DisplayName string `json:"displayName,omitempty"`
		ActiveUsers int    `json:"activeUsers"`
	}

	// MessageData is the full message payload fanned out to a room.
	MessageData struct {
		SessionID string          `json:"sessionId"`
		Message   string          `json:"message"`
		Sender    cnst.SenderRole `json:"sender"`
		MessageID string          `json:"messageId,omitempty"`
		Timestamp time.Time       `json:"timestamp"`
	}

	// TypingData carries a typing indicator within a room.
	TypingData struct {
		SessionID   string          `json:"sessionId"`
		Sender      cnst.SenderRole `json:"sender"`
		DisplayName string          `json:"displayName,omitempty"`
		IsTyping    bool            `json:"isTyping"`
	}

	// ReadData is a coarse read receipt: all of the other side's messages
	// are now read. It names the acknowledging role, never message IDs.
	ReadData struct {
		SessionID string          `json:"sessionId"`
		Sender    cnst.SenderRole `json:"sender"`
	}

	// AdminStatusData flags admin presence in a session room.
	AdminStatusData struct {
		SessionID string `json:"sessionId"`
		Online    bool   `json:"online"`
	}

	// SessionRefData is a lightweight notification naming only a session.
	SessionRefData struct {
		SessionID string `json:"sessionId"`
	}

	// SessionStartedData announces a new conversation to every admin.
	SessionStartedData struct {
		SessionID   string    `json:"sessionId"`
		DisplayName string    `json:"displayName,omitempty"`
		Timestamp   time.Time `json:"timestamp"`
	}
)

// Route dispatches one inbound event to its destinations. It never returns
// an error: bad events are dropped, missing destinations are skipped.
func (r *Router) Route(ev *Event) {
	// Admin and moderation kinds are only honored from connections that
	// arrived over the authenticated admin route. Events with no local
	// connection (REST handlers, bridge replicas) pass: they were already
	// authorized upstream.
	switch ev.Kind {
	case KindAdminJoin, KindAdminLeave, KindAdminJoinSession, KindAdminLeaveSess,
		KindAdminMessage, KindAdminTyping, KindSessionDeleted, KindUserBlocked:
		if r.reg.Known(ev.ConnID) && !r.reg.AdminEligible(ev.ConnID) {
			r.logger.Warn("dropping admin event from non-admin connection",
				zap.String("connId", ev.ConnID),
				zap.String("kind", string(ev.Kind)))
			return
		}
	}

	r.metrics.RelayEventRouted(string(ev.Kind))

	switch ev.Kind {
	case KindJoinSession:
		r.routeJoinSession(ev)
	case KindSendMessage:
		r.routeMessage(ev)
	case KindAdminMessage:
		ev.Sender = cnst.RoleAdmin
		r.routeMessage(ev)
	case KindTyping:
		r.routeTyping(ev, cnst.RoleUser)
	case KindAdminTyping:
		r.routeTyping(ev, cnst.RoleAdmin)
	case KindMarkRead:
		r.toRoomExcept(ev.SessionID, ev.ConnID, &Envelope{
			Event: EventMessagesRead,
			Data:  ReadData{SessionID: ev.SessionID, Sender: ev.Sender},
		})
	case KindAdminJoin:
		r.reg.MarkAdmin(ev.ConnID)
	case KindAdminLeave:
		r.reg.UnmarkAdmin(ev.ConnID)
	case KindAdminJoinSession:
		if _, ok := r.reg.JoinSession(ev.ConnID, ev.SessionID, ""); ok {
			r.toRoomExcept(ev.SessionID, ev.ConnID, &Envelope{
				Event: EventAdminStatus,
				Data:  AdminStatusData{SessionID: ev.SessionID, Online: true},
			})
		}
	case KindAdminLeaveSess:
		if _, ok := r.reg.LeaveSession(ev.ConnID, ev.SessionID); ok {
			r.toRoomExcept(ev.SessionID, ev.ConnID, &Envelope{
				Event: EventAdminStatus,
				Data:  AdminStatusData{SessionID: ev.SessionID, Online: false},
			})
		}
	case KindSessionDeleted:
		// Kill notification: everyone in the room hears it, nobody is excluded.
		r.toRoom(ev.SessionID, &Envelope{
			Event: EventSessionDeleted,
			Data:  SessionRefData{SessionID: ev.SessionID},
		})
	case KindUserBlocked:
		r.toRoom(ev.SessionID, &Envelope{
			Event: EventUserBlocked,
			Data:  SessionRefData{SessionID: ev.SessionID},
		})
	default:
		r.logger.Debug("dropping event of unknown kind", zap.String("kind", string(ev.Kind)))
	}
}

// Disconnect routes the leave notifications after a connection is removed
// from every registry. Admin membership must be read before Unregister
// wipes it.
func (r *Router) Disconnect(connID string) {
	admin := r.reg.IsAdmin(connID)
	for _, dep := range r.reg.Unregister(connID) {
		if admin {
			r.toRoom(dep.SessionID, &Envelope{
				Event: EventAdminStatus,
				Data:  AdminStatusData{SessionID: dep.SessionID, Online: false},
			})
			continue
		}
		r.toRoom(dep.SessionID, &Envelope{
			Event: EventUserLeft,
			Data: RoomMemberData{
				SessionID:   dep.SessionID,
				DisplayName: dep.DisplayName,
				ActiveUsers: dep.Remaining,
			},
		})
	}
	r.metrics.RelayRooms(r.reg.Presence().Rooms())
}

func (r *Router) routeJoinSession(ev *Event) {
	occupancy, ok := r.reg.JoinSession(ev.ConnID, ev.SessionID, ev.DisplayName)
	if !ok {
		return
	}
	r.metrics.RelayRooms(r.reg.Presence().Rooms())

	r.deliver(ev.ConnID, &Envelope{
		Event: EventSessionJoined,
		Data:  SessionJoinedData{SessionID: ev.SessionID, ActiveUsers: occupancy},
	})
	r.toRoomExcept(ev.SessionID, ev.ConnID, &Envelope{
		Event: EventUserJoined,
		Data: RoomMemberData{
			SessionID:   ev.SessionID,
			DisplayName: ev.DisplayName,
			ActiveUsers: occupancy,
		},
	})
	r.toAdmins(&Envelope{
		Event: EventNewSessionStarted,
		Data: SessionStartedData{
			SessionID:   ev.SessionID,
			DisplayName: ev.DisplayName,
			Timestamp:   eventTime(ev),
		},
	})
}

func (r *Router) routeMessage(ev *Event) {
	msg := &Envelope{
		Event: EventNewMessage,
		Data: MessageData{
			SessionID: ev.SessionID,
			Message:   ev.Body,
			Sender:    ev.Sender,
			MessageID: ev.ClientMessageID,
			Timestamp: eventTime(ev),
		},
	}

	// The sender is part of the room and receives its own message back: the
	// echo is the delivery confirmation and keeps client state derived
	// entirely from server fan-out.
	r.toRoom(ev.SessionID, msg)

	if ev.Sender != cnst.RoleUser {
		return
	}

	// Every admin gets the lightweight activity ping. Admins outside the
	// room additionally get the full payload; admins inside the room already
	// received it through the room fan-out, so the two sets stay disjoint.
	r.reg.Admins().Each(func(adminID string) {
		r.deliver(adminID, &Envelope{
			Event: EventAdminNewMessage,
			Data:  SessionRefData{SessionID: ev.SessionID},
		})
		if !r.reg.InRoom(adminID, ev.SessionID) {
			r.deliver(adminID, msg)
		}
	})
}

func (r *Router) routeTyping(ev *Event, role cnst.SenderRole) {
	r.toRoomExcept(ev.SessionID, ev.ConnID, &Envelope{
		Event: EventTyping,
		Data: TypingData{
			SessionID:   ev.SessionID,
			Sender:      role,
			DisplayName: ev.DisplayName,
			IsTyping:    ev.typing(),
		},
	})

	// Only an active typing signal reaches the admin list; there is no
	// "stopped" broadcast, stale indicators expire in the consuming UI.
	if role == cnst.RoleUser && ev.typing() {
		r.toAdmins(&Envelope{
			Event: EventUserTyping,
			Data:  SessionRefData{SessionID: ev.SessionID},
		})
	}
}

func (r *Router) toRoom(sessionID string, env *Envelope) {
	r.reg.Presence().Each(sessionID, func(connID string) {
		r.deliver(connID, env)
	})
}

func (r *Router) toRoomExcept(sessionID, exceptID string, env *Envelope) {
	r.reg.Presence().Each(sessionID, func(connID string) {
		if connID != exceptID {
			r.deliver(connID, env)
		}
	})
}

func (r *Router) toAdmins(env *Envelope) {
	r.reg.Admins().Each(func(connID string) {
		r.deliver(connID, env)
	})
}

func eventTime(ev *Event) time.Time {
	if !ev.Timestamp.IsZero() {
		return ev.Timestamp
	}
	return time.Now().UTC()
}
