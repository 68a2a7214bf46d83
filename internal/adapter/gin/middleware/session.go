package middleware

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	domain "newspaper/internal/domain/user"
	"newspaper/pkg/logger"
)

// Authenticator resolves a session key to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, sessionKey string) (*domain.User, error)
}

// SessionCookie describes the session cookie.
type SessionCookie struct {
	Name   string
	MaxAge int // seconds
	Secure bool
}

// Set writes the cookie carrying key.
func (sc SessionCookie) Set(c *gin.Context, key string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     sc.Name,
		Value:    key,
		Path:     "/",
		MaxAge:   sc.MaxAge,
		HttpOnly: true,
		Secure:   sc.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear expires the cookie.
func (sc SessionCookie) Clear(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     sc.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   sc.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Session loads the user behind the session cookie. Requests without a
// valid session continue anonymously.
func Session(auth Authenticator, cookie SessionCookie, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, err := c.Cookie(cookie.Name)
		if err != nil || key == "" {
			c.Next()
			return
		}
		c.Set(ctxSessionKey, key)

		u, err := auth.Authenticate(c.Request.Context(), key)
		if err != nil {
			logger.WithContext(c.Request.Context(), log).Debug("session not authenticated", zap.Error(err))
			c.Next()
			return
		}

		c.Set(ctxUser, u)
		c.Request = c.Request.WithContext(logger.WithUserID(c.Request.Context(), strconv.FormatInt(u.ID, 10)))
		c.Next()
	}
}

// LoginRequired redirects anonymous requests to loginPath with a next
// parameter pointing back at the request.
func LoginRequired(loginPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			RedirectToLogin(c, loginPath)
			return
		}
		c.Next()
	}
}

// StaffRequired is LoginRequired for active staff accounts.
func StaffRequired(loginPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if u := CurrentUser(c); u == nil || !u.IsActive || !u.IsStaff {
			RedirectToLogin(c, loginPath)
			return
		}
		c.Next()
	}
}

// RedirectToLogin aborts with a redirect to loginPath?next=<current path>.
// Slashes in next are left unescaped.
func RedirectToLogin(c *gin.Context, loginPath string) {
	next := strings.ReplaceAll(url.QueryEscape(c.Request.URL.RequestURI()), "%2F", "/")
	c.Redirect(http.StatusFound, loginPath+"?next="+next)
	c.Abort()
}
