package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"newspaper/pkg/logger"
)

const (
	// CSRFCookieName holds the token; readable by scripts.
	CSRFCookieName = "csrftoken"
	// CSRFFormField is the hidden form input carrying the token.
	CSRFFormField = "csrfmiddlewaretoken"
	// CSRFHeaderName carries the token for scripted requests.
	CSRFHeaderName = "X-CSRFToken"

	csrfTokenBytes = 32
	csrfMaxAge     = 365 * 24 * 60 * 60
)

// CSRFConfig configures the CSRF middleware.
type CSRFConfig struct {
	CookieSecure bool
}

// CSRF implements the double-submit cookie check. Safe methods get a token
// cookie; unsafe methods must echo the cookie value in the form field or
// the header.
func CSRF(cfg CSRFConfig, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(CSRFCookieName)
		if !validCSRFToken(token) {
			token = ""
		}

		if isSafeMethod(c.Request.Method) {
			if token == "" {
				var err error
				token, err = generateCSRFToken()
				if err != nil {
					logger.WithContext(c.Request.Context(), log).Error("failed to generate CSRF token", zap.Error(err))
					c.AbortWithStatus(http.StatusInternalServerError)
					return
				}
				http.SetCookie(c.Writer, &http.Cookie{
					Name:     CSRFCookieName,
					Value:    token,
					Path:     "/",
					MaxAge:   csrfMaxAge,
					Secure:   cfg.CookieSecure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			c.Set(ctxCSRFToken, token)
			c.Next()
			return
		}

		reason := ""
		submitted := c.GetHeader(CSRFHeaderName)
		if submitted == "" {
			submitted = c.PostForm(CSRFFormField)
		}
		switch {
		case token == "":
			reason = "CSRF cookie not set."
		case submitted == "":
			reason = "CSRF token missing."
		case subtle.ConstantTimeCompare([]byte(token), []byte(submitted)) != 1:
			reason = "CSRF token incorrect."
		}

		if reason != "" {
			logger.WithContext(c.Request.Context(), log).Warn("CSRF verification failed",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.String("reason", reason),
			)
			c.String(http.StatusForbidden, "Forbidden (403)\nCSRF verification failed. Request aborted.\n%s", reason)
			c.Abort()
			return
		}

		c.Set(ctxCSRFToken, token)
		c.Next()
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}

func validCSRFToken(token string) bool {
	if len(token) != 2*csrfTokenBytes {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}

func generateCSRFToken() (string, error) {
	b := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
