package cnst

// SenderRole identifies which side of a conversation produced a message.
type SenderRole string

const (
	// RoleUser is a site visitor chatting through the widget
	RoleUser SenderRole = "user"
	// RoleAdmin is an operator replying from the dashboard
	RoleAdmin SenderRole = "admin"
)

// SessionStatus is the lifecycle state of a persisted chat session.
type SessionStatus string

const (
	// SessionActive is an open conversation
	SessionActive SessionStatus = "active"
	// SessionClosed is a conversation ended by either side
	SessionClosed SessionStatus = "closed"
	// SessionArchived is a conversation hidden from the default dashboard list
	SessionArchived SessionStatus = "archived"
)
