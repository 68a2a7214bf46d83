package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"newspaper/internal/adapter/gin/middleware"
	apperrors "newspaper/pkg/errors"
	"newspaper/pkg/logger"
)

// render fills in the values every page expects and renders name.
func render(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["user"] = middleware.CurrentUser(c)
	data["csrf_token"] = middleware.CSRFToken(c)
	if _, ok := data["errors"]; !ok {
		data["errors"] = apperrors.FieldErrors{}
	}
	if _, ok := data["values"]; !ok {
		data["values"] = map[string]string{}
	}
	c.HTML(status, name, data)
}

// formErrors reports whether err is a form problem to show to the user.
func formErrors(err error) (apperrors.FieldErrors, bool) {
	var fe apperrors.FieldErrors
	if apperrors.As(err, &fe) {
		return fe, true
	}
	var ve *apperrors.ValidationError
	if apperrors.As(err, &ve) {
		field := ve.Field
		if field == "" {
			field = apperrors.NonFieldErrors
		}
		return apperrors.FieldErrors{field: {ve.Message}}, true
	}
	return nil, false
}

// fail answers with the status carried by err.
func fail(c *gin.Context, log *zap.Logger, err error) {
	status := apperrors.StatusCode(err)
	l := logger.WithContext(c.Request.Context(), log)
	if status >= http.StatusInternalServerError {
		l.Error("request failed", zap.Error(err))
	} else {
		l.Warn("request rejected", zap.Error(err))
	}
	c.String(status, http.StatusText(status))
	c.Abort()
}

// safeRedirect returns next when it is a path on this site, fallback otherwise.
func safeRedirect(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return next
}

// absoluteURL joins path onto the configured site URL. The request's Host
// header is never used, since it is chosen by the client.
func absoluteURL(siteURL, path string) string {
	return strings.TrimRight(siteURL, "/") + path
}
