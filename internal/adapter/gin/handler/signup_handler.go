package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"newspaper/internal/adapter/gin/urls"
	"newspaper/internal/metrics"
	"newspaper/internal/usecase/user"
	apperrors "newspaper/pkg/errors"
)

// SignupHandler serves the signup form.
type SignupHandler struct {
	uc      user.Usecase
	metrics metrics.Recorder
	log     *zap.Logger
}

// NewSignupHandler creates a SignupHandler.
func NewSignupHandler(uc user.Usecase, rec metrics.Recorder, log *zap.Logger) *SignupHandler {
	return &SignupHandler{uc: uc, metrics: rec, log: log}
}

// Show handles GET /users/signup/.
func (h *SignupHandler) Show(c *gin.Context) {
	render(c, http.StatusOK, "signup.html", nil)
}

// Submit handles POST /users/signup/. Invalid forms are shown again with
// their errors; a created account is sent on to the login page.
func (h *SignupHandler) Submit(c *gin.Context) {
	var req user.RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		fail(c, h.log, apperrors.NewValidationError("", err.Error()))
		return
	}

	resp, err := h.uc.Register(c.Request.Context(), req)
	if err != nil {
		if fe, ok := formErrors(err); ok {
			render(c, http.StatusOK, "signup.html", gin.H{
				"errors": fe,
				"values": map[string]string{"username": req.Username, "email": req.Email},
			})
			return
		}
		fail(c, h.log, err)
		return
	}

	h.metrics.RecordSignup()
	h.log.Info("signup completed", zap.Int64("user_id", resp.ID))
	c.Redirect(http.StatusFound, urls.MustReverse(urls.Login))
}
