package user

import "time"

// User represents an account of the newspaper site.
type User struct {
	ID           int64
	Username     string // unique login name
	Email        string
	PasswordHash string // encoded hash, or an unusable marker
	IsActive     bool
	IsStaff      bool // may use the admin pages
	IsSuperuser  bool
	DateJoined   time.Time
	LastLogin    *time.Time
}

// ResetState is the account state a password reset token is bound to.
// It changes when the password changes or the user logs in.
func (u *User) ResetState() string {
	var login int64
	if u.LastLogin != nil {
		login = u.LastLogin.UTC().Unix()
	}
	return u.PasswordHash + "|" + time.Unix(login, 0).UTC().Format(time.RFC3339)
}
