// Package urls holds the named route table and reverse resolution.
package urls

import (
	"fmt"
	"net/url"
	"strings"
)

// Route names.
const (
	Home                  = "home"
	Signup                = "signup"
	Login                 = "login"
	Logout                = "logout"
	PasswordChange        = "password_change"
	PasswordChangeDone    = "password_change_done"
	PasswordReset         = "password_reset"
	PasswordResetDone     = "password_reset_done"
	PasswordResetConfirm  = "password_reset_confirm"
	PasswordResetComplete = "password_reset_complete"
	AdminIndex            = "admin:index"
	AdminLogin            = "admin:login"
	AdminLogout           = "admin:logout"
	AdminUsers            = "admin:users"
	AdminUserDetail       = "admin:user_detail"
	Health                = "health"
	Metrics               = "metrics"
)

var patterns = map[string]string{
	Home:                  "/",
	Signup:                "/users/signup/",
	Login:                 "/users/login/",
	Logout:                "/users/logout/",
	PasswordChange:        "/users/password_change/",
	PasswordChangeDone:    "/users/password_change/done/",
	PasswordReset:         "/users/password_reset/",
	PasswordResetDone:     "/users/password_reset/done/",
	PasswordResetConfirm:  "/users/reset/:uidb64/:token/",
	PasswordResetComplete: "/users/reset/done/",
	AdminIndex:            "/admin/",
	AdminLogin:            "/admin/login/",
	AdminLogout:           "/admin/logout/",
	AdminUsers:            "/admin/users/",
	AdminUserDetail:       "/admin/users/:id/",
	Health:                "/health",
	Metrics:               "/metrics",
}

// Pattern returns the gin path pattern registered for name.
// It panics on unknown names so a typo fails at startup.
func Pattern(name string) string {
	p, ok := patterns[name]
	if !ok {
		panic(fmt.Sprintf("urls: no route named %q", name))
	}
	return p
}

// Reverse builds the path for the named route, filling its :params in order.
func Reverse(name string, args ...string) (string, error) {
	p, ok := patterns[name]
	if !ok {
		return "", fmt.Errorf("reverse for %q not found", name)
	}

	segments := strings.Split(p, "/")
	used := 0
	for i, seg := range segments {
		if !strings.HasPrefix(seg, ":") {
			continue
		}
		if used >= len(args) {
			return "", fmt.Errorf("reverse for %q expects more arguments, got %d", name, len(args))
		}
		if args[used] == "" {
			return "", fmt.Errorf("reverse for %q: empty value for %s", name, seg)
		}
		segments[i] = url.PathEscape(args[used])
		used++
	}
	if used != len(args) {
		return "", fmt.Errorf("reverse for %q takes %d arguments, got %d", name, used, len(args))
	}
	return strings.Join(segments, "/"), nil
}

// MustReverse is Reverse for names and arguments known to be valid.
func MustReverse(name string, args ...string) string {
	path, err := Reverse(name, args...)
	if err != nil {
		panic(err)
	}
	return path
}
