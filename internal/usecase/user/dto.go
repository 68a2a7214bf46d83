package user

import (
	"time"

	domain "newspaper/internal/domain/user"
)

// CreateUserRequest is the input for creating an account directly.
// An empty Password creates the account with an unusable password.
type CreateUserRequest struct {
	Username string `form:"username" validate:"required,username"`
	Email    string `form:"email" validate:"omitempty,email"`
	Password string `form:"password"`
}

// CreateUserResponse represents the response payload after creating a user.
type CreateUserResponse struct {
	ID int64
}

// RegisterRequest is the signup form.
type RegisterRequest struct {
	Username  string `form:"username" validate:"required,username"`
	Email     string `form:"email" validate:"omitempty,email"`
	Password1 string `form:"password1" validate:"required"`
	Password2 string `form:"password2" validate:"required"`
}

// GetUserRequest represents the request payload for retrieving a user.
type GetUserRequest struct {
	ID int64
}

// ListUsersRequest represents the request payload for listing users.
// It supports pagination and search functionality.
type ListUsersRequest struct {
	Query string
	Page  int64
	Limit int64
}

// ListUsersResponse represents the response payload for user listing.
type ListUsersResponse struct {
	Users      []UserResponse
	Pagination *Pagination
}

// Pagination represents pagination information for list responses.
type Pagination = domain.Pagination

// UserResponse is the read model handed to the transport layer.
type UserResponse struct {
	ID          int64
	Username    string
	Email       string
	IsActive    bool
	IsStaff     bool
	IsSuperuser bool
	DateJoined  time.Time
	LastLogin   *time.Time
}
