package dto

// LoginRequest is the admin login payload.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ChangePasswordRequest is the admin password change payload.
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

// CreateSessionRequest opens a chat session ahead of the websocket.
type CreateSessionRequest struct {
	SessionID   string `json:"sessionId"`
	DisplayName string `json:"displayName"`
}

// PostMessageRequest appends a visitor message over plain HTTP.
type PostMessageRequest struct {
	Message   string `json:"message" binding:"required"`
	MessageID string `json:"messageId"`
}

// UserInfo is the admin identity returned on login.
type UserInfo struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}
