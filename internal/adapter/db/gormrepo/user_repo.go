package gormrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"newspaper/internal/domain/user"
	apperrors "newspaper/pkg/errors"
	"newspaper/pkg/security"
)

// UserRepo implements the user repository with GORM. It runs against
// PostgreSQL in production and SQLite in development and tests.
type UserRepo struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewUserRepo creates a new instance of UserRepo.
func NewUserRepo(db *gorm.DB, log *zap.Logger) *UserRepo {
	return &UserRepo{db: db, log: log}
}

// UserSchema represents the database schema for the users table.
type UserSchema struct {
	ID          int64      `gorm:"primaryKey;autoIncrement"`
	Username    string     `gorm:"size:150;not null;uniqueIndex"`
	Email       string     `gorm:"size:254;not null;index"`
	Password    string     `gorm:"size:255;not null"`
	IsActive    bool       `gorm:"not null"`
	IsStaff     bool       `gorm:"not null"`
	IsSuperuser bool       `gorm:"not null"`
	DateJoined  time.Time  `gorm:"not null"`
	LastLogin   *time.Time `gorm:"index"`
}

// TableName specifies the table name for the UserSchema model.
func (UserSchema) TableName() string {
	return "users"
}

func (m *UserSchema) toDomain() *user.User {
	return &user.User{
		ID:           m.ID,
		Username:     m.Username,
		Email:        m.Email,
		PasswordHash: m.Password,
		IsActive:     m.IsActive,
		IsStaff:      m.IsStaff,
		IsSuperuser:  m.IsSuperuser,
		DateJoined:   m.DateJoined,
		LastLogin:    m.LastLogin,
	}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}

// Create inserts a new user into the database.
func (r *UserRepo) Create(ctx context.Context, u *user.User) (int64, error) {
	if u == nil {
		return 0, errors.New("user cannot be nil")
	}

	model := UserSchema{
		Username:    u.Username,
		Email:       u.Email,
		Password:    u.PasswordHash,
		IsActive:    u.IsActive,
		IsStaff:     u.IsStaff,
		IsSuperuser: u.IsSuperuser,
		DateJoined:  u.DateJoined,
		LastLogin:   u.LastLogin,
	}
	if model.DateJoined.IsZero() {
		model.DateJoined = time.Now().UTC()
	}

	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			r.log.Warn("username already taken", zap.String("username", u.Username))
			return 0, apperrors.NewAlreadyExistsError("user", "A user with that username already exists.")
		}
		r.log.Error("failed to create user in db", zap.Error(err), zap.String("username", u.Username))
		return 0, fmt.Errorf("failed to create user: %w", err)
	}

	r.log.Info("user created in db", zap.Int64("id", model.ID))
	return model.ID, nil
}

// GetByID retrieves a user by primary key.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*user.User, error) {
	var model UserSchema
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.log.Debug("user not found", zap.Int64("id", id))
			return nil, apperrors.NewNotFoundError("user", fmt.Sprintf("user not found: id=%d", id))
		}
		r.log.Error("failed to get user from db", zap.Error(err), zap.Int64("id", id))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return model.toDomain(), nil
}

// GetByUsername retrieves a user by exact username, or nil when none exists.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	var model UserSchema
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.log.Error("failed to get user by username from db", zap.Error(err), zap.String("username", username))
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}

	return model.toDomain(), nil
}

// ListActiveByEmail returns active users whose email matches case-insensitively.
func (r *UserRepo) ListActiveByEmail(ctx context.Context, email string) ([]user.User, error) {
	var models []UserSchema
	err := r.db.WithContext(ctx).
		Where("LOWER(email) = ? AND is_active = ?", strings.ToLower(email), true).
		Order("id").
		Find(&models).Error
	if err != nil {
		r.log.Error("failed to list users by email", zap.Error(err))
		return nil, fmt.Errorf("failed to list users by email: %w", err)
	}

	users := make([]user.User, len(models))
	for i := range models {
		users[i] = *models[i].toDomain()
	}
	return users, nil
}

// UpdatePassword stores a new password hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	return r.updateColumn(ctx, id, "password", passwordHash)
}

// UpdateLastLogin stamps the last successful login.
func (r *UserRepo) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	return r.updateColumn(ctx, id, "last_login", at.UTC())
}

func (r *UserRepo) updateColumn(ctx context.Context, id int64, column string, value any) error {
	res := r.db.WithContext(ctx).Model(&UserSchema{}).Where("id = ?", id).Update(column, value)
	if res.Error != nil {
		r.log.Error("failed to update user in db", zap.Error(res.Error), zap.Int64("id", id), zap.String("column", column))
		return fmt.Errorf("failed to update user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NewNotFoundError("user", fmt.Sprintf("user not found: id=%d", id))
	}

	r.log.Debug("user updated in db", zap.Int64("id", id), zap.String("column", column))
	return nil
}

// List retrieves a page of users ordered by id. A non-empty query matches
// username or email case-insensitively. The second result is the total
// number of matching rows.
func (r *UserRepo) List(ctx context.Context, query string, page, limit int64) ([]user.User, int64, error) {
	filter := func(tx *gorm.DB) *gorm.DB {
		if query == "" {
			return tx
		}
		pattern := "%" + security.EscapeLike(strings.ToLower(query)) + "%"
		return tx.Where(`LOWER(username) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\'`, pattern, pattern)
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&UserSchema{}).Scopes(filter).Count(&total).Error; err != nil {
		r.log.Error("failed to count users", zap.Error(err), zap.String("query", query))
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	// past the last page; also keeps (page-1)*limit from overflowing
	if page < 1 || limit < 1 || page-1 >= (total+limit-1)/limit {
		return []user.User{}, total, nil
	}

	var models []UserSchema
	err := r.db.WithContext(ctx).Scopes(filter).
		Order("id").
		Offset(int((page - 1) * limit)).
		Limit(int(limit)).
		Find(&models).Error
	if err != nil {
		r.log.Error("failed to list users from db", zap.Error(err), zap.String("query", query), zap.Int64("page", page), zap.Int64("limit", limit))
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]user.User, len(models))
	for i := range models {
		users[i] = *models[i].toDomain()
	}
	return users, total, nil
}

// Count returns the number of users.
func (r *UserRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&UserSchema{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}
