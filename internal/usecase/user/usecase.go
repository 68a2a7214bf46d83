package user

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"go.uber.org/zap"

	domain "newspaper/internal/domain/user"
	apperrors "newspaper/pkg/errors"
	"newspaper/pkg/security"

	"github.com/go-playground/validator/v10"
)

const (
	defaultPageSize = 25
	maxPageSize     = 100
)

// Repository defines the interface for user data access operations.
type Repository interface {
	Create(ctx context.Context, u *domain.User) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)                // NotFoundError when missing
	GetByUsername(ctx context.Context, username string) (*domain.User, error)  // nil, nil when missing
	ListActiveByEmail(ctx context.Context, email string) ([]domain.User, error) // case-insensitive email match
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
	List(ctx context.Context, query string, page, limit int64) ([]domain.User, int64, error)
	Count(ctx context.Context) (int64, error)
}

// Hasher encodes and verifies passwords.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) bool
}

// Service implements the business logic for user accounts.
type Service struct {
	repo     Repository
	hasher   Hasher
	log      *zap.Logger
	validate *validator.Validate
	now      func() time.Time
}

// New creates a new user Service.
func New(r Repository, h Hasher, log *zap.Logger) *Service {
	return &Service{
		repo:     r,
		hasher:   h,
		log:      log,
		validate: NewValidator(),
		now:      time.Now,
	}
}

// NewValidator returns a validator that reports form field names and knows
// the "username" tag.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return strings.ToLower(f.Name)
		}
		return name
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return security.ValidUsername(fl.Field().String())
	})
	return v
}

// formatValidationError converts validator.ValidationErrors into form field errors.
func formatValidationError(err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	fe := apperrors.FieldErrors{}
	for _, e := range validationErrors {
		switch e.Tag() {
		case "required":
			fe.Add(e.Field(), "This field is required.")
		case "email":
			fe.Add(e.Field(), "Enter a valid email address.")
		case "username":
			fe.Add(e.Field(), fmt.Sprintf("Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters, at most %d.", security.MaxUsernameLength))
		default:
			fe.Add(e.Field(), "Enter a valid value.")
		}
	}
	return fe
}

func usernameTaken() error {
	return apperrors.NewAlreadyExistsError("user", "A user with that username already exists.")
}

// CreateUser creates an ordinary account.
func (s *Service) CreateUser(ctx context.Context, in CreateUserRequest) (*CreateUserResponse, error) {
	return s.create(ctx, in, false)
}

// CreateSuperuser creates a staff account with every permission.
func (s *Service) CreateSuperuser(ctx context.Context, in CreateUserRequest) (*CreateUserResponse, error) {
	return s.create(ctx, in, true)
}

func (s *Service) create(ctx context.Context, in CreateUserRequest, superuser bool) (*CreateUserResponse, error) {
	s.log.Info("creating user", zap.String("username", in.Username), zap.Bool("superuser", superuser))

	if err := s.validate.Struct(in); err != nil {
		s.log.Warn("validate failed", zap.Error(err))
		return nil, formatValidationError(err)
	}

	existing, err := s.repo.GetByUsername(ctx, in.Username)
	if err != nil {
		s.log.Error("failed to check existing username", zap.String("username", in.Username), zap.Error(err))
		return nil, apperrors.NewInternalError("failed to validate username uniqueness", err)
	}
	if existing != nil {
		s.log.Warn("username already exists", zap.String("username", in.Username))
		return nil, usernameTaken()
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to hash password", err)
	}

	id, err := s.repo.Create(ctx, &domain.User{
		Username:     in.Username,
		Email:        security.NormalizeEmail(in.Email),
		PasswordHash: hash,
		IsActive:     true,
		IsStaff:      superuser,
		IsSuperuser:  superuser,
		DateJoined:   s.now().UTC(),
	})
	if err != nil {
		s.log.Error("failed to create user", zap.String("username", in.Username), zap.Error(err))
		return nil, err
	}

	return &CreateUserResponse{ID: id}, nil
}

// Register validates the signup form and creates the account.
// Form problems are returned as apperrors.FieldErrors.
func (s *Service) Register(ctx context.Context, in RegisterRequest) (*CreateUserResponse, error) {
	fe := apperrors.FieldErrors{}
	if err := s.validate.Struct(in); err != nil {
		ferr := formatValidationError(err)
		if asFields, ok := ferr.(apperrors.FieldErrors); ok {
			fe = asFields
		} else {
			return nil, ferr
		}
	}

	if in.Password1 != "" && in.Password2 != "" {
		if in.Password1 != in.Password2 {
			fe.Add("password2", "The two password fields didn't match.")
		} else {
			for _, msg := range security.ValidatePassword(in.Password2, in.Username, in.Email) {
				fe.Add("password2", msg)
			}
		}
	}

	if fe.Empty() {
		existing, err := s.repo.GetByUsername(ctx, in.Username)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to validate username uniqueness", err)
		}
		if existing != nil {
			fe.Add("username", usernameTaken().Error())
		}
	}

	if !fe.Empty() {
		s.log.Info("signup form rejected", zap.String("username", in.Username), zap.Error(fe))
		return nil, fe
	}

	resp, err := s.CreateUser(ctx, CreateUserRequest{
		Username: in.Username,
		Email:    in.Email,
		Password: in.Password1,
	})
	if err != nil {
		var exists *apperrors.AlreadyExistsError
		if apperrors.As(err, &exists) {
			return nil, apperrors.FieldErrors{"username": {exists.Error()}}
		}
		return nil, err
	}

	s.log.Info("user registered", zap.Int64("id", resp.ID), zap.String("username", in.Username))
	return resp, nil
}

// GetUser retrieves a user by ID.
func (s *Service) GetUser(ctx context.Context, in GetUserRequest) (*UserResponse, error) {
	if in.ID <= 0 {
		s.log.Warn("get user validation failed", zap.Int64("id", in.ID), zap.String("reason", "invalid id"))
		return nil, apperrors.NewValidationError("id", "invalid user id")
	}

	u, err := s.repo.GetByID(ctx, in.ID)
	if err != nil {
		return nil, err
	}

	resp := toResponse(u)
	return &resp, nil
}

// GetUserByUsername retrieves a user by username.
func (s *Service) GetUserByUsername(ctx context.Context, username string) (*UserResponse, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load user", err)
	}
	if u == nil {
		return nil, apperrors.NewNotFoundError("user", "user not found")
	}

	resp := toResponse(u)
	return &resp, nil
}

// ListUsers retrieves a page of users, optionally filtered by username or email.
func (s *Service) ListUsers(ctx context.Context, in ListUsersRequest) (*ListUsersResponse, error) {
	if in.Page <= 0 {
		in.Page = 1
	}
	if in.Limit <= 0 {
		in.Limit = defaultPageSize
	}
	if in.Limit > maxPageSize {
		in.Limit = maxPageSize
	}

	query, err := security.ValidateSearchQuery(in.Query)
	if err != nil {
		s.log.Warn("invalid search query", zap.String("query", in.Query), zap.Error(err))
		return nil, apperrors.NewValidationError("q", err.Error())
	}

	s.log.Debug("listing users", zap.String("query", query), zap.Int64("page", in.Page), zap.Int64("limit", in.Limit))

	domainUsers, total, err := s.repo.List(ctx, query, in.Page, in.Limit)
	if err != nil {
		s.log.Error("failed to list users", zap.String("query", query), zap.Error(err))
		return nil, err
	}

	// pages past the end show the last one
	if p := domain.NewPagination(total, in.Page, in.Limit); in.Page > 1 && in.Page > p.TotalPages {
		in.Page = max(p.TotalPages, 1)
		if total > 0 {
			domainUsers, total, err = s.repo.List(ctx, query, in.Page, in.Limit)
			if err != nil {
				s.log.Error("failed to list users", zap.String("query", query), zap.Error(err))
				return nil, err
			}
		}
	}

	users := make([]UserResponse, len(domainUsers))
	for i := range domainUsers {
		users[i] = toResponse(&domainUsers[i])
	}

	return &ListUsersResponse{
		Users:      users,
		Pagination: domain.NewPagination(total, in.Page, in.Limit),
	}, nil
}

// CountUsers returns the number of accounts.
func (s *Service) CountUsers(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

func toResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		IsActive:    u.IsActive,
		IsStaff:     u.IsStaff,
		IsSuperuser: u.IsSuperuser,
		DateJoined:  u.DateJoined,
		LastLogin:   u.LastLogin,
	}
}
