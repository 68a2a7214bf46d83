package gormrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"newspaper/internal/domain/session"
)

// SessionSchema represents the database schema for the sessions table.
type SessionSchema struct {
	Key       string    `gorm:"column:session_key;primaryKey;size:64"`
	UserID    int64     `gorm:"not null;index"`
	AuthHash  string    `gorm:"size:64;not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

// TableName specifies the table name for the SessionSchema model.
func (SessionSchema) TableName() string {
	return "sessions"
}

// SessionRepo stores sessions in the database.
type SessionRepo struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time
}

// NewSessionRepo creates a database-backed session store.
func NewSessionRepo(db *gorm.DB, log *zap.Logger) *SessionRepo {
	return &SessionRepo{db: db, log: log, now: time.Now}
}

// Save inserts or replaces s.
func (r *SessionRepo) Save(ctx context.Context, s *session.Session) error {
	model := SessionSchema{
		Key:       s.Key,
		UserID:    s.UserID,
		AuthHash:  s.AuthHash,
		ExpiresAt: s.ExpiresAt.UTC(),
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "auth_hash", "expires_at"}),
	}).Create(&model).Error
	if err != nil {
		r.log.Error("failed to save session", zap.Error(err), zap.Int64("user_id", s.UserID))
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Get returns the live session for key, or nil when it is missing or expired.
func (r *SessionRepo) Get(ctx context.Context, key string) (*session.Session, error) {
	var model SessionSchema
	if err := r.db.WithContext(ctx).Where("session_key = ?", key).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.log.Error("failed to load session", zap.Error(err))
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	s := &session.Session{
		Key:       model.Key,
		UserID:    model.UserID,
		AuthHash:  model.AuthHash,
		ExpiresAt: model.ExpiresAt,
	}
	if s.Expired(r.now()) {
		return nil, r.Delete(ctx, key)
	}
	return s, nil
}

// Delete removes the session for key. Missing sessions are not an error.
func (r *SessionRepo) Delete(ctx context.Context, key string) error {
	if err := r.db.WithContext(ctx).Where("session_key = ?", key).Delete(&SessionSchema{}).Error; err != nil {
		r.log.Error("failed to delete session", zap.Error(err))
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired purges sessions past their expiry and returns how many
// were removed.
func (r *SessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", r.now().UTC()).Delete(&SessionSchema{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		r.log.Info("expired sessions removed", zap.Int64("count", res.RowsAffected))
	}
	return res.RowsAffected, nil
}
