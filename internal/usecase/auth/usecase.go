package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"newspaper/internal/domain/session"
	domain "newspaper/internal/domain/user"
	userusecase "newspaper/internal/usecase/user"
	apperrors "newspaper/pkg/errors"
	"newspaper/pkg/security"
)

// ErrInvalidResetLink is returned when a reset link cannot be used.
var ErrInvalidResetLink = apperrors.NewValidationError("token",
	"The password reset link was invalid, possibly because it has already been used.")

// UserStore is the subset of the user repository authentication needs.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	ListActiveByEmail(ctx context.Context, email string) ([]domain.User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
}

// SessionStore persists sessions. Get returns nil, nil for unknown or
// expired keys.
type SessionStore interface {
	Save(ctx context.Context, s *session.Session) error
	Get(ctx context.Context, key string) (*session.Session, error)
	Delete(ctx context.Context, key string) error
}

// Mailer delivers outgoing email.
type Mailer interface {
	Send(ctx context.Context, msg Email) error
}

// TokenGenerator issues and checks password reset tokens.
type TokenGenerator interface {
	Make(userID int64, state string) (string, error)
	Check(token string, userID int64, state string) error
}

// Config holds the authentication settings.
type Config struct {
	SecretKey  string
	SessionTTL time.Duration
	FromEmail  string
}

// Service implements session authentication and password management.
type Service struct {
	users    UserStore
	sessions SessionStore
	hasher   userusecase.Hasher
	tokens   TokenGenerator
	mailer   Mailer
	cfg      Config
	log      *zap.Logger
	validate *validator.Validate
	now      func() time.Time

	dummyOnce sync.Once
	dummy     string
}

// New creates an authentication Service.
func New(users UserStore, sessions SessionStore, hasher userusecase.Hasher, tokens TokenGenerator, mailer Mailer, cfg Config, log *zap.Logger) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		tokens:   tokens,
		mailer:   mailer,
		cfg:      cfg,
		log:      log,
		validate: userusecase.NewValidator(),
		now:      time.Now,
	}
}

func (s *Service) formErrors(in any) apperrors.FieldErrors {
	fe := apperrors.FieldErrors{}
	err := s.validate.Struct(in)
	if err == nil {
		return fe
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		fe.Add(apperrors.NonFieldErrors, err.Error())
		return fe
	}
	for _, e := range verrs {
		switch e.Tag() {
		case "required":
			fe.Add(e.Field(), "This field is required.")
		case "email":
			fe.Add(e.Field(), "Enter a valid email address.")
		default:
			fe.Add(e.Field(), "Enter a valid value.")
		}
	}
	return fe
}

func (s *Service) authHash(u *domain.User) string {
	return security.SessionAuthHash(s.cfg.SecretKey, u.PasswordHash)
}

// Login checks the credentials and opens a new session.
func (s *Service) Login(ctx context.Context, in LoginRequest) (*LoginResponse, error) {
	if fe := s.formErrors(in); !fe.Empty() {
		return nil, fe
	}

	u, err := s.users.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load user", err)
	}
	if !s.checkPassword(u, in.Password) || !u.IsActive {
		s.log.Info("login rejected", zap.String("username", in.Username))
		return nil, apperrors.ErrInvalidCredentials
	}
	if in.StaffOnly && !u.IsStaff {
		s.log.Info("staff login rejected", zap.String("username", in.Username))
		return nil, apperrors.ErrInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, u.ID, now); err != nil {
		return nil, err
	}
	u.LastLogin = &now

	if in.PreviousSession != "" {
		if err := s.sessions.Delete(ctx, in.PreviousSession); err != nil {
			s.log.Warn("failed to drop previous session", zap.Error(err))
		}
	}

	sess := &session.Session{
		Key:       uuid.NewString(),
		UserID:    u.ID,
		AuthHash:  s.authHash(u),
		ExpiresAt: now.Add(s.cfg.SessionTTL),
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, apperrors.NewInternalError("failed to save session", err)
	}

	s.log.Info("user logged in", zap.Int64("user_id", u.ID))
	return &LoginResponse{SessionKey: sess.Key, UserID: u.ID, ExpiresAt: sess.ExpiresAt}, nil
}

// checkPassword verifies password against u. Unknown users and unusable
// passwords are checked against a throwaway hash so both paths cost the same.
func (s *Service) checkPassword(u *domain.User, password string) bool {
	if u == nil || !security.IsUsablePassword(u.PasswordHash) {
		s.hasher.Verify(password, s.dummyHash())
		return false
	}
	return s.hasher.Verify(password, u.PasswordHash)
}

func (s *Service) dummyHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(uuid.NewString())
		if err != nil {
			s.log.Warn("failed to build dummy password hash", zap.Error(err))
			return
		}
		s.dummy = hash
	})
	return s.dummy
}

// Authenticate resolves a session key to its user. Sessions whose user is
// gone, inactive or has changed password since login are discarded.
func (s *Service) Authenticate(ctx context.Context, sessionKey string) (*domain.User, error) {
	if sessionKey == "" {
		return nil, apperrors.ErrUnauthorized
	}

	sess, err := s.sessions.Get(ctx, sessionKey)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load session", err)
	}
	if sess == nil {
		return nil, apperrors.ErrUnauthorized
	}

	u, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		var nf *apperrors.NotFoundError
		if !apperrors.As(err, &nf) {
			return nil, err
		}
		u = nil
	}

	if u == nil || !u.IsActive || subtle.ConstantTimeCompare([]byte(sess.AuthHash), []byte(s.authHash(u))) != 1 {
		if err := s.sessions.Delete(ctx, sessionKey); err != nil {
			s.log.Warn("failed to drop stale session", zap.Error(err))
		}
		return nil, apperrors.ErrUnauthorized
	}
	return u, nil
}

// Logout ends the session. Unknown keys are ignored.
func (s *Service) Logout(ctx context.Context, sessionKey string) error {
	if sessionKey == "" {
		return nil
	}
	return s.sessions.Delete(ctx, sessionKey)
}

// ChangePassword replaces the password of the session's user and keeps that
// session valid. Other sessions of the user stop authenticating.
func (s *Service) ChangePassword(ctx context.Context, in ChangePasswordRequest) error {
	u, err := s.Authenticate(ctx, in.SessionKey)
	if err != nil {
		return err
	}

	fe := s.formErrors(in)
	if in.OldPassword != "" && !s.hasher.Verify(in.OldPassword, u.PasswordHash) {
		fe.Add("old_password", "Your old password was entered incorrectly. Please enter it again.")
	}
	s.checkNewPassword(fe, u, in.NewPassword1, in.NewPassword2)
	if !fe.Empty() {
		return fe
	}

	hash, err := s.setPassword(ctx, u, in.NewPassword1)
	if err != nil {
		return err
	}
	u.PasswordHash = hash

	sess, err := s.sessions.Get(ctx, in.SessionKey)
	if err != nil {
		return apperrors.NewInternalError("failed to load session", err)
	}
	if sess != nil {
		sess.AuthHash = s.authHash(u)
		if err := s.sessions.Save(ctx, sess); err != nil {
			return apperrors.NewInternalError("failed to save session", err)
		}
	}

	s.log.Info("password changed", zap.Int64("user_id", u.ID))
	return nil
}

func (s *Service) checkNewPassword(fe apperrors.FieldErrors, u *domain.User, p1, p2 string) {
	if p1 == "" || p2 == "" {
		return
	}
	if p1 != p2 {
		fe.Add("new_password2", "The two password fields didn't match.")
		return
	}
	for _, msg := range security.ValidatePassword(p2, u.Username, u.Email) {
		fe.Add("new_password2", msg)
	}
}

func (s *Service) setPassword(ctx context.Context, u *domain.User, password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return "", apperrors.NewInternalError("failed to hash password", err)
	}
	if err := s.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return "", err
	}
	return hash, nil
}

// RequestPasswordReset mails a reset link to every active account with a
// usable password registered under the address. The outcome is the same
// whether or not such an account exists.
func (s *Service) RequestPasswordReset(ctx context.Context, in PasswordResetRequest) error {
	if fe := s.formErrors(in); !fe.Empty() {
		return fe
	}

	users, err := s.users.ListActiveByEmail(ctx, security.NormalizeEmail(in.Email))
	if err != nil {
		return apperrors.NewInternalError("failed to look up accounts", err)
	}

	for i := range users {
		u := &users[i]
		if !security.IsUsablePassword(u.PasswordHash) {
			continue
		}

		token, err := s.tokens.Make(u.ID, u.ResetState())
		if err != nil {
			return apperrors.NewInternalError("failed to issue reset token", err)
		}

		link := ""
		if in.LinkFor != nil {
			link = in.LinkFor(security.EncodeUID(u.ID), token)
		}

		msg := Email{
			To:      u.Email,
			Subject: "Password reset on newspaper",
			Body: fmt.Sprintf("You're receiving this email because you requested a password reset for your user account.\n\n"+
				"Please go to the following page and choose a new password:\n%s\n\n"+
				"Your username, in case you've forgotten: %s\n", link, u.Username),
		}
		if err := s.mailer.Send(ctx, msg); err != nil {
			s.log.Error("failed to send reset email", zap.Int64("user_id", u.ID), zap.Error(err))
			return apperrors.NewInternalError("failed to send email", err)
		}
		s.log.Info("password reset requested", zap.Int64("user_id", u.ID))
	}
	return nil
}

// CheckResetToken returns the user a reset link belongs to, or
// ErrInvalidResetLink.
func (s *Service) CheckResetToken(ctx context.Context, uidb64, token string) (*domain.User, error) {
	id, err := security.DecodeUID(uidb64)
	if err != nil {
		return nil, ErrInvalidResetLink
	}

	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		var nf *apperrors.NotFoundError
		if apperrors.As(err, &nf) {
			return nil, ErrInvalidResetLink
		}
		return nil, err
	}

	if err := s.tokens.Check(token, u.ID, u.ResetState()); err != nil {
		s.log.Info("reset token rejected", zap.Int64("user_id", u.ID), zap.Error(err))
		return nil, ErrInvalidResetLink
	}
	return u, nil
}

// ConfirmPasswordReset sets a new password through a reset link. The link
// stops working afterwards because the account state it was bound to changes.
func (s *Service) ConfirmPasswordReset(ctx context.Context, in ConfirmPasswordResetRequest) error {
	u, err := s.CheckResetToken(ctx, in.UIDB64, in.Token)
	if err != nil {
		return err
	}

	fe := s.formErrors(in)
	s.checkNewPassword(fe, u, in.NewPassword1, in.NewPassword2)
	if !fe.Empty() {
		return fe
	}

	if _, err := s.setPassword(ctx, u, in.NewPassword1); err != nil {
		return err
	}
	s.log.Info("password reset completed", zap.Int64("user_id", u.ID))
	return nil
}
