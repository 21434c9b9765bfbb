package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/parleyhq/parley/internal/common/cnst"
)

// gormStore implements Database on top of a gorm connection; the per-driver
// constructors only differ in how they open it.
type gormStore struct {
	db *gorm.DB
}

var _ Database = (*gormStore)(nil)

func newGormStore(db *gorm.DB) (*gormStore, error) {
	if err := db.AutoMigrate(&Session{}, &Message{}, &User{}); err != nil {
		return nil, err
	}
	return &gormStore{db: db}, nil
}

func (s *gormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *gormStore) CreateSession(ctx context.Context, session *Session) error {
	if session.Status == "" {
		session.Status = cnst.SessionActive
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	if session.LastMessageAt.IsZero() {
		session.LastMessageAt = session.CreatedAt
	}
	return s.db.WithContext(ctx).Create(session).Error
}

func (s *gormStore) SessionExists(ctx context.Context, sessionID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&Session{}).
		Where("id = ?", sessionID).
		Count(&count).Error
	return count > 0, err
}

func (s *gormStore) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	var session Session
	err := s.db.WithContext(ctx).First(&session, "id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, cnst.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *gormStore) GetSessions(ctx context.Context, page, pageSize int) ([]*Session, error) {
	var sessions []*Session
	offset := (page - 1) * pageSize
	err := s.db.WithContext(ctx).
		Order("last_message_at desc").
		Offset(offset).
		Limit(pageSize).
		Find(&sessions).Error
	return sessions, err
}

func (s *gormStore) UpdateSessionStatus(ctx context.Context, sessionID string, status cnst.SessionStatus) error {
	return s.updateSession(ctx, sessionID, map[string]any{"status": status})
}

func (s *gormStore) SetBlocked(ctx context.Context, sessionID string, blocked bool) error {
	return s.updateSession(ctx, sessionID, map[string]any{"blocked": blocked})
}

func (s *gormStore) updateSession(ctx context.Context, sessionID string, fields map[string]any) error {
	res := s.db.WithContext(ctx).
		Model(&Session{}).
		Where("id = ?", sessionID).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return cnst.ErrSessionNotFound
	}
	return nil
}

func (s *gormStore) DeleteSession(ctx context.Context, sessionID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&Message{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", sessionID).Delete(&Session{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return cnst.ErrSessionNotFound
		}
		return nil
	})
}

func (s *gormStore) SaveMessage(ctx context.Context, message *Message) error {
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now()
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		return tx.Model(&Session{}).
			Where("id = ?", message.SessionID).
			Update("last_message_at", message.Timestamp).Error
	})
}

func (s *gormStore) GetMessages(ctx context.Context, sessionID string) ([]*Message, error) {
	var messages []*Message
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("timestamp asc").
		Find(&messages).Error
	return messages, err
}

func (s *gormStore) GetMessagesWithPagination(ctx context.Context, sessionID string, page, pageSize int) ([]*Message, error) {
	var messages []*Message
	offset := (page - 1) * pageSize
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("timestamp asc").
		Offset(offset).
		Limit(pageSize).
		Find(&messages).Error
	return messages, err
}

func (s *gormStore) MarkRead(ctx context.Context, sessionID string, sender cnst.SenderRole) error {
	return s.db.WithContext(ctx).
		Model(&Message{}).
		Where("session_id = ? AND sender = ? AND is_read = ?", sessionID, sender, false).
		Update("is_read", true).Error
}

func (s *gormStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).First(&user, "username = ?", username).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, cnst.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *gormStore) CreateUser(ctx context.Context, user *User) error {
	return s.db.WithContext(ctx).Create(user).Error
}

func (s *gormStore) UpdateUserPassword(ctx context.Context, username string, hashed string) error {
	res := s.db.WithContext(ctx).
		Model(&User{}).
		Where("username = ?", username).
		Update("password", hashed)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return cnst.ErrUserNotFound
	}
	return nil
}
