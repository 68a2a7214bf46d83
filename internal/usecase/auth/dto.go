package auth

import "time"

// LoginRequest is the login form.
type LoginRequest struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
	// PreviousSession is the caller's current session key, dropped on
	// successful login so a planted key cannot be reused.
	PreviousSession string `form:"-"`
	// StaffOnly rejects accounts without staff status before anything is
	// written.
	StaffOnly bool `form:"-"`
}

// LoginResponse carries the new session.
type LoginResponse struct {
	SessionKey string
	UserID     int64
	ExpiresAt  time.Time
}

// ChangePasswordRequest is the password change form.
type ChangePasswordRequest struct {
	SessionKey   string `form:"-"`
	OldPassword  string `form:"old_password" validate:"required"`
	NewPassword1 string `form:"new_password1" validate:"required"`
	NewPassword2 string `form:"new_password2" validate:"required"`
}

// PasswordResetRequest is the "forgot password" form. LinkFor builds the
// absolute confirm URL for an encoded uid and token.
type PasswordResetRequest struct {
	Email   string                             `form:"email" validate:"required,email"`
	LinkFor func(uidb64, token string) string `form:"-"`
}

// ConfirmPasswordResetRequest is the "set new password" form reached from
// the emailed link.
type ConfirmPasswordResetRequest struct {
	UIDB64       string `form:"-"`
	Token        string `form:"-"`
	NewPassword1 string `form:"new_password1" validate:"required"`
	NewPassword2 string `form:"new_password2" validate:"required"`
}

// Email is an outgoing message.
type Email struct {
	To      string
	Subject string
	Body    string
}
