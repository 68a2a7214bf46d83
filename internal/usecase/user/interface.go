package user

import "context"

// Usecase defines the interface for user business logic operations.
type Usecase interface {
	CreateUser(ctx context.Context, in CreateUserRequest) (*CreateUserResponse, error)
	CreateSuperuser(ctx context.Context, in CreateUserRequest) (*CreateUserResponse, error)
	Register(ctx context.Context, in RegisterRequest) (*CreateUserResponse, error)
	GetUser(ctx context.Context, in GetUserRequest) (*UserResponse, error)
	GetUserByUsername(ctx context.Context, username string) (*UserResponse, error)
	ListUsers(ctx context.Context, in ListUsersRequest) (*ListUsersResponse, error)
	CountUsers(ctx context.Context) (int64, error)
}
