package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"newspaper/internal/adapter/gin/middleware"
	"newspaper/internal/adapter/gin/urls"
	"newspaper/internal/metrics"
	"newspaper/internal/usecase/auth"
	apperrors "newspaper/pkg/errors"
)

const (
	msgInvalidLogin      = "Please enter a correct username and password. Note that both fields may be case-sensitive."
	msgInvalidStaffLogin = "Please enter the correct username and password for a staff account. Note that both fields may be case-sensitive."
)

// AuthHandler serves login, logout, password change and password reset.
type AuthHandler struct {
	auth          auth.Usecase
	cookie        middleware.SessionCookie
	loginRedirect string
	siteURL       string
	metrics       metrics.Recorder
	log           *zap.Logger
}

// NewAuthHandler creates an AuthHandler. loginRedirect is where a login
// without a next parameter lands; siteURL prefixes links sent by email.
func NewAuthHandler(a auth.Usecase, cookie middleware.SessionCookie, loginRedirect, siteURL string, rec metrics.Recorder, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		auth:          a,
		cookie:        cookie,
		loginRedirect: loginRedirect,
		siteURL:       siteURL,
		metrics:       rec,
		log:           log,
	}
}

type loginForm struct {
	Username string `form:"username"`
	Password string `form:"password"`
	Next     string `form:"next"`
}

// LoginPage handles GET /users/login/.
func (h *AuthHandler) LoginPage(c *gin.Context) {
	render(c, http.StatusOK, "registration/login.html", gin.H{
		"values": map[string]string{"next": c.Query("next")},
	})
}

// Login handles POST /users/login/.
func (h *AuthHandler) Login(c *gin.Context) {
	h.login(c, "registration/login.html", false, safeRedirect(h.loginRedirect, urls.MustReverse(urls.Home)))
}

// AdminLoginPage handles GET /admin/login/. Staff already logged in go
// straight to the index.
func (h *AuthHandler) AdminLoginPage(c *gin.Context) {
	next := safeRedirect(c.Query("next"), urls.MustReverse(urls.AdminIndex))
	if u := middleware.CurrentUser(c); u != nil && u.IsStaff {
		c.Redirect(http.StatusFound, next)
		return
	}
	render(c, http.StatusOK, "admin/login.html", gin.H{
		"values": map[string]string{"next": next},
	})
}

// AdminLogin handles POST /admin/login/. Only staff accounts may log in.
func (h *AuthHandler) AdminLogin(c *gin.Context) {
	h.login(c, "admin/login.html", true, urls.MustReverse(urls.AdminIndex))
}

func (h *AuthHandler) login(c *gin.Context, page string, staffOnly bool, fallback string) {
	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		fail(c, h.log, apperrors.NewValidationError("", err.Error()))
		return
	}
	values := map[string]string{"username": form.Username, "next": form.Next}

	invalid := msgInvalidLogin
	if staffOnly {
		invalid = msgInvalidStaffLogin
	}

	resp, err := h.auth.Login(c.Request.Context(), auth.LoginRequest{
		Username:        form.Username,
		Password:        form.Password,
		PreviousSession: middleware.SessionKey(c),
		StaffOnly:       staffOnly,
	})
	if err != nil {
		h.metrics.RecordLogin(false)

		var unauthorized *apperrors.UnauthorizedError
		if apperrors.As(err, &unauthorized) {
			render(c, http.StatusOK, page, gin.H{
				"errors": apperrors.FieldErrors{apperrors.NonFieldErrors: {invalid}},
				"values": values,
			})
			return
		}
		if fe, ok := formErrors(err); ok {
			render(c, http.StatusOK, page, gin.H{"errors": fe, "values": values})
			return
		}
		fail(c, h.log, err)
		return
	}

	h.metrics.RecordLogin(true)
	h.cookie.Set(c, resp.SessionKey)
	c.Redirect(http.StatusFound, safeRedirect(form.Next, fallback))
}

// Logout handles POST /users/logout/. Logging out changes state, so it
// goes through the CSRF check like any other form.
func (h *AuthHandler) Logout(c *gin.Context) {
	if !h.endSession(c) {
		return
	}
	render(c, http.StatusOK, "registration/logged_out.html", nil)
}

// AdminLogout handles POST /admin/logout/.
func (h *AuthHandler) AdminLogout(c *gin.Context) {
	if !h.endSession(c) {
		return
	}
	c.Redirect(http.StatusFound, urls.MustReverse(urls.AdminLogin))
}

func (h *AuthHandler) endSession(c *gin.Context) bool {
	if err := h.auth.Logout(c.Request.Context(), middleware.SessionKey(c)); err != nil {
		fail(c, h.log, err)
		return false
	}
	h.cookie.Clear(c)
	middleware.ForgetUser(c)
	return true
}

// PasswordChangePage handles GET /users/password_change/.
func (h *AuthHandler) PasswordChangePage(c *gin.Context) {
	render(c, http.StatusOK, "registration/password_change_form.html", nil)
}

// PasswordChange handles POST /users/password_change/.
func (h *AuthHandler) PasswordChange(c *gin.Context) {
	var req auth.ChangePasswordRequest
	if err := c.ShouldBind(&req); err != nil {
		fail(c, h.log, apperrors.NewValidationError("", err.Error()))
		return
	}
	req.SessionKey = middleware.SessionKey(c)

	if err := h.auth.ChangePassword(c.Request.Context(), req); err != nil {
		if fe, ok := formErrors(err); ok {
			render(c, http.StatusOK, "registration/password_change_form.html", gin.H{"errors": fe})
			return
		}
		var unauthorized *apperrors.UnauthorizedError
		if apperrors.As(err, &unauthorized) {
			middleware.RedirectToLogin(c, urls.MustReverse(urls.Login))
			return
		}
		fail(c, h.log, err)
		return
	}

	c.Redirect(http.StatusFound, urls.MustReverse(urls.PasswordChangeDone))
}

// PasswordChangeDone handles GET /users/password_change/done/.
func (h *AuthHandler) PasswordChangeDone(c *gin.Context) {
	render(c, http.StatusOK, "registration/password_change_done.html", nil)
}

// PasswordResetPage handles GET /users/password_reset/.
func (h *AuthHandler) PasswordResetPage(c *gin.Context) {
	render(c, http.StatusOK, "registration/password_reset_form.html", nil)
}

// PasswordReset handles POST /users/password_reset/. The response does not
// reveal whether the address belongs to an account.
func (h *AuthHandler) PasswordReset(c *gin.Context) {
	var req auth.PasswordResetRequest
	if err := c.ShouldBind(&req); err != nil {
		fail(c, h.log, apperrors.NewValidationError("", err.Error()))
		return
	}
	req.LinkFor = func(uidb64, token string) string {
		return absoluteURL(h.siteURL, urls.MustReverse(urls.PasswordResetConfirm, uidb64, token))
	}

	if err := h.auth.RequestPasswordReset(c.Request.Context(), req); err != nil {
		if fe, ok := formErrors(err); ok {
			render(c, http.StatusOK, "registration/password_reset_form.html", gin.H{
				"errors": fe,
				"values": map[string]string{"email": req.Email},
			})
			return
		}
		fail(c, h.log, err)
		return
	}

	c.Redirect(http.StatusFound, urls.MustReverse(urls.PasswordResetDone))
}

// PasswordResetDone handles GET /users/password_reset/done/.
func (h *AuthHandler) PasswordResetDone(c *gin.Context) {
	render(c, http.StatusOK, "registration/password_reset_done.html", nil)
}

// PasswordResetConfirmPage handles GET /users/reset/:uidb64/:token/.
func (h *AuthHandler) PasswordResetConfirmPage(c *gin.Context) {
	_, err := h.auth.CheckResetToken(c.Request.Context(), c.Param("uidb64"), c.Param("token"))
	if err != nil && !apperrors.Is(err, auth.ErrInvalidResetLink) {
		fail(c, h.log, err)
		return
	}
	render(c, http.StatusOK, "registration/password_reset_confirm.html", gin.H{"validlink": err == nil})
}

// PasswordResetConfirm handles POST /users/reset/:uidb64/:token/.
func (h *AuthHandler) PasswordResetConfirm(c *gin.Context) {
	var req auth.ConfirmPasswordResetRequest
	if err := c.ShouldBind(&req); err != nil {
		fail(c, h.log, apperrors.NewValidationError("", err.Error()))
		return
	}
	req.UIDB64 = c.Param("uidb64")
	req.Token = c.Param("token")

	err := h.auth.ConfirmPasswordReset(c.Request.Context(), req)
	switch {
	case err == nil:
		c.Redirect(http.StatusFound, urls.MustReverse(urls.PasswordResetComplete))
	case apperrors.Is(err, auth.ErrInvalidResetLink):
		render(c, http.StatusOK, "registration/password_reset_confirm.html", gin.H{"validlink": false})
	default:
		if fe, ok := formErrors(err); ok {
			render(c, http.StatusOK, "registration/password_reset_confirm.html", gin.H{"validlink": true, "errors": fe})
			return
		}
		fail(c, h.log, err)
	}
}

// PasswordResetComplete handles GET /users/reset/done/.
func (h *AuthHandler) PasswordResetComplete(c *gin.Context) {
	render(c, http.StatusOK, "registration/password_reset_complete.html", nil)
}
