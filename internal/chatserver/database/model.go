package database

import (
	"time"

	"github.com/parleyhq/parley/internal/common/cnst"
)

// Session represents a persisted chat conversation.
type Session struct {
	ID            string             `json:"id" gorm:"primaryKey;type:varchar(64)"`
	DisplayName   string             `json:"displayName" gorm:"type:varchar(100)"`
	Status        cnst.SessionStatus `json:"status" gorm:"type:varchar(16);not null;default:'active';index"`
	Blocked       bool               `json:"blocked" gorm:"not null;default:false"`
	CreatedAt     time.Time          `json:"createdAt"`
	LastMessageAt time.Time          `json:"lastMessageAt" gorm:"index"`
}

// Message represents a persisted chat message.
type Message struct {
	ID        string          `json:"id" gorm:"primaryKey;type:varchar(64)"`
	SessionID string          `json:"sessionId" gorm:"type:varchar(64);index;not null"`
	Sender    cnst.SenderRole `json:"sender" gorm:"type:varchar(8);not null"`
	Body      string          `json:"message" gorm:"type:text;not null"`
	Read      bool            `json:"read" gorm:"column:is_read;not null;default:false"`
	Timestamp time.Time       `json:"timestamp" gorm:"index"`
}

// User represents an admin dashboard account.
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Username  string    `json:"username" gorm:"type:varchar(50);uniqueIndex"`
	Password  string    `json:"-" gorm:"not null"` // bcrypt hash, never exposed in JSON
	Role      string    `json:"role" gorm:"type:varchar(16);not null;default:'admin'"`
	IsActive  bool      `json:"isActive" gorm:"not null;default:true"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
