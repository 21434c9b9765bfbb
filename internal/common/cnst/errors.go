package cnst

import "errors"

var (
	// ErrSessionNotFound is returned when a chat session does not exist
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionBlocked is returned when a blocked visitor tries to send a message
	ErrSessionBlocked = errors.New("session is blocked")
	// ErrUserNotFound is returned when an admin account does not exist
	ErrUserNotFound = errors.New("user not found")
)
