package relay

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/parleyhq/parley/internal/common/cnst"
)

// Kind identifies an inbound relay event. The set is closed: the router
// switches over every kind and unknown frames are dropped at decode time.
type Kind string

const (
	KindJoinSession      Kind = "join-session"
	KindSendMessage      Kind = "send-message"
	KindTyping           Kind = "typing"
	KindMarkRead         Kind = "mark-read"
	KindAdminJoin        Kind = "admin-join"
	KindAdminLeave       Kind = "admin-leave"
	KindAdminJoinSession Kind = "admin-join-session"
	KindAdminLeaveSess   Kind = "admin-leave-session"
	KindAdminMessage     Kind = "admin-message"
	KindAdminTyping      Kind = "admin-typing"
	KindSessionDeleted   Kind = "session-deleted"
	KindUserBlocked      Kind = "user-blocked"
)

// Outbound event names delivered to clients.
const (
	EventSessionJoined     = "session-joined"
	EventUserJoined        = "user-joined"
	EventUserLeft          = "user-left"
	EventNewMessage        = "new-message"
	EventTyping            = "typing"
	EventMessagesRead      = "messages-read"
	EventAdminStatus       = "admin-status"
	EventAdminNewMessage   = "admin:new-message"
	EventUserTyping        = "user:typing"
	EventNewSessionStarted = "new-session-started"
	EventSessionDeleted    = "session-deleted"
	EventUserBlocked       = "user-blocked"
)

// Event is a decoded inbound relay event. ConnID is filled in by the
// transport, never by the client.
type Event struct {
	Kind            Kind            `json:"kind"`
	ConnID          string          `json:"connId"`
	SessionID       string          `json:"sessionId,omitempty"`
	DisplayName     string          `json:"displayName,omitempty"`
	Body            string          `json:"body,omitempty"`
	Sender          cnst.SenderRole `json:"sender,omitempty"`
	IsTyping        *bool           `json:"isTyping,omitempty"`
	ClientMessageID string          `json:"messageId,omitempty"`
	Timestamp       time.Time       `json:"timestamp,omitempty"`
	// Origin is the instance that accepted the event; set only when the
	// event travels across the Redis bridge.
	Origin string `json:"origin,omitempty"`
}

// Envelope is an outbound frame as written to the websocket.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// frame is the raw inbound wire shape.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// eventPayload covers every inbound payload shape; per-kind validation
// decides which fields are required.
type eventPayload struct {
	SessionID   string          `json:"sessionId"`
	DisplayName string          `json:"displayName"`
	Message     string          `json:"message"`
	Sender      cnst.SenderRole `json:"sender"`
	IsTyping    *bool           `json:"isTyping"`
	MessageID   string          `json:"messageId"`
	Timestamp   *time.Time      `json:"timestamp"`
}

var (
	// ErrUnknownEvent is returned for frames whose event name is not in the inbound set.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrMalformedEvent is returned when a required payload field is missing.
	ErrMalformedEvent = errors.New("malformed event payload")
)

// DecodeEvent parses a raw websocket frame into an Event for the given
// connection. A non-nil error means the frame must be ignored: the relay
// never sends an error back over the socket.
func DecodeEvent(connID string, raw []byte) (Event, error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Event{}, ErrMalformedEvent
	}

	kind := Kind(f.Event)
	switch kind {
	case KindJoinSession, KindSendMessage, KindTyping, KindMarkRead,
		KindAdminJoin, KindAdminLeave, KindAdminJoinSession, KindAdminLeaveSess,
		KindAdminMessage, KindAdminTyping, KindSessionDeleted, KindUserBlocked:
	default:
		return Event{}, ErrUnknownEvent
	}

	var p eventPayload
	if len(f.Data) > 0 {
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return Event{}, ErrMalformedEvent
		}
	}

	ev := Event{
		Kind:            kind,
		ConnID:          connID,
		SessionID:       p.SessionID,
		DisplayName:     p.DisplayName,
		Body:            p.Message,
		Sender:          p.Sender,
		IsTyping:        p.IsTyping,
		ClientMessageID: p.MessageID,
	}
	if p.Timestamp != nil {
		ev.Timestamp = *p.Timestamp
	}

	if err := validate(&ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}

func validate(ev *Event) error {
	switch ev.Kind {
	case KindAdminJoin, KindAdminLeave:
		return nil
	case KindSendMessage:
		if ev.SessionID == "" || ev.Body == "" {
			return ErrMalformedEvent
		}
		if ev.Sender != cnst.RoleUser && ev.Sender != cnst.RoleAdmin {
			return ErrMalformedEvent
		}
	case KindAdminMessage:
		if ev.SessionID == "" || ev.Body == "" {
			return ErrMalformedEvent
		}
		ev.Sender = cnst.RoleAdmin
	case KindMarkRead:
		if ev.SessionID == "" {
			return ErrMalformedEvent
		}
		if ev.Sender != cnst.RoleUser && ev.Sender != cnst.RoleAdmin {
			return ErrMalformedEvent
		}
	case KindAdminTyping:
		if ev.SessionID == "" {
			return ErrMalformedEvent
		}
		ev.Sender = cnst.RoleAdmin
	default:
		if ev.SessionID == "" {
			return ErrMalformedEvent
		}
	}
	return nil
}

// typing reports the effective typing flag: admin typing defaults to true
// when the flag is omitted, everything else defaults to false.
func (ev *Event) typing() bool {
	if ev.IsTyping != nil {
		return *ev.IsTyping
	}
	return ev.Kind == KindAdminTyping
}
