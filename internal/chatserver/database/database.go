package database

import (
	"context"

	"github.com/parleyhq/parley/internal/common/cnst"
)

// Database defines the persistence operations for chat sessions, messages
// and admin accounts. The relay never calls it on the fan-out path; the
// handlers and the websocket layer do.
type Database interface {
	// Close closes the database connection.
	Close() error

	// CreateSession creates a new chat session.
	CreateSession(ctx context.Context, session *Session) error

	// SessionExists checks if a session exists.
	SessionExists(ctx context.Context, sessionID string) (bool, error)

	// GetSession returns a single session.
	GetSession(ctx context.Context, sessionID string) (*Session, error)

	// GetSessions returns sessions ordered by most recent activity.
	GetSessions(ctx context.Context, page, pageSize int) ([]*Session, error)

	// UpdateSessionStatus moves a session through its lifecycle.
	UpdateSessionStatus(ctx context.Context, sessionID string, status cnst.SessionStatus) error

	// SetBlocked flips the moderation flag on a session.
	SetBlocked(ctx context.Context, sessionID string, blocked bool) error

	// DeleteSession removes a session and all of its messages.
	DeleteSession(ctx context.Context, sessionID string) error

	// SaveMessage appends a message and bumps the session's last activity.
	SaveMessage(ctx context.Context, message *Message) error

	// GetMessages gets all messages for a session in timestamp order.
	GetMessages(ctx context.Context, sessionID string) ([]*Message, error)

	// GetMessagesWithPagination gets a page of messages for a session.
	GetMessagesWithPagination(ctx context.Context, sessionID string, page, pageSize int) ([]*Message, error)

	// MarkRead marks every message from the given sender in the session as read.
	MarkRead(ctx context.Context, sessionID string, sender cnst.SenderRole) error

	// GetUserByUsername looks up an admin account.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// CreateUser creates an admin account.
	CreateUser(ctx context.Context, user *User) error

	// UpdateUserPassword replaces an admin account's password hash.
	UpdateUserPassword(ctx context.Context, username string, hashed string) error
}
