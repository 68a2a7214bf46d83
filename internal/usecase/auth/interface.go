package auth

import (
	"context"

	domain "newspaper/internal/domain/user"
)

// Usecase defines the authentication operations used by the HTTP layer.
type Usecase interface {
	Login(ctx context.Context, in LoginRequest) (*LoginResponse, error)
	Authenticate(ctx context.Context, sessionKey string) (*domain.User, error)
	Logout(ctx context.Context, sessionKey string) error
	ChangePassword(ctx context.Context, in ChangePasswordRequest) error
	RequestPasswordReset(ctx context.Context, in PasswordResetRequest) error
	CheckResetToken(ctx context.Context, uidb64, token string) (*domain.User, error)
	ConfirmPasswordReset(ctx context.Context, in ConfirmPasswordResetRequest) error
}
