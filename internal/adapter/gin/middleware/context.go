package middleware

import (
	"github.com/gin-gonic/gin"

	domain "newspaper/internal/domain/user"
)

const (
	ctxRequestID  = "request_id"
	ctxUser       = "user"
	ctxSessionKey = "session_key"
	ctxCSRFToken  = "csrf_token"
)

// CurrentUser returns the authenticated user, or nil for anonymous requests.
func CurrentUser(c *gin.Context) *domain.User {
	if v, ok := c.Get(ctxUser); ok {
		if u, ok := v.(*domain.User); ok {
			return u
		}
	}
	return nil
}

// SessionKey returns the session key sent by the client, if any.
func SessionKey(c *gin.Context) string {
	return c.GetString(ctxSessionKey)
}

// CSRFToken returns the token forms must echo back.
func CSRFToken(c *gin.Context) string {
	return c.GetString(ctxCSRFToken)
}

// RequestID returns the id assigned to the request.
func RequestID(c *gin.Context) string {
	return c.GetString(ctxRequestID)
}

// ForgetUser makes the rest of the request anonymous.
func ForgetUser(c *gin.Context) {
	c.Set(ctxUser, (*domain.User)(nil))
}
