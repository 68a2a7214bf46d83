package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"newspaper/internal/usecase/user"
	apperrors "newspaper/pkg/errors"
)

// AdminHandler serves the staff pages under /admin/.
type AdminHandler struct {
	users user.Usecase
	log   *zap.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(users user.Usecase, log *zap.Logger) *AdminHandler {
	return &AdminHandler{users: users, log: log}
}

// Index handles GET /admin/.
func (h *AdminHandler) Index(c *gin.Context) {
	n, err := h.users.CountUsers(c.Request.Context())
	if err != nil {
		fail(c, h.log, err)
		return
	}
	render(c, http.StatusOK, "admin/index.html", gin.H{"user_count": n})
}

// Users handles GET /admin/users/?q=&page=.
func (h *AdminHandler) Users(c *gin.Context) {
	query := c.Query("q")
	page, _ := strconv.ParseInt(c.DefaultQuery("page", "1"), 10, 64)

	resp, err := h.users.ListUsers(c.Request.Context(), user.ListUsersRequest{
		Query: query,
		Page:  page,
	})
	if err != nil {
		if fe, ok := formErrors(err); ok {
			render(c, http.StatusOK, "admin/user_list.html", gin.H{
				"errors": fe,
				"query":  query,
				"users":  []user.UserResponse{},
			})
			return
		}
		fail(c, h.log, err)
		return
	}

	render(c, http.StatusOK, "admin/user_list.html", gin.H{
		"query":      query,
		"users":      resp.Users,
		"pagination": resp.Pagination,
	})
}

// UserDetail handles GET /admin/users/:id/.
func (h *AdminHandler) UserDetail(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, h.log, apperrors.NewNotFoundError("user", "user not found"))
		return
	}

	u, err := h.users.GetUser(c.Request.Context(), user.GetUserRequest{ID: id})
	if err != nil {
		fail(c, h.log, err)
		return
	}
	render(c, http.StatusOK, "admin/user_detail.html", gin.H{"account": u})
}
