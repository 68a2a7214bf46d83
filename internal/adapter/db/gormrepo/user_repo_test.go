package gormrepo

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"newspaper/internal/domain/user"
	apperrors "newspaper/pkg/errors"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, AutoMigrate(db))
	return db
}

func seedUsers(t *testing.T, repo *UserRepo, names ...string) []int64 {
	ids := make([]int64, 0, len(names))
	for _, name := range names {
		id, err := repo.Create(context.Background(), &user.User{
			Username:     name,
			Email:        name + "@example.com",
			PasswordHash: "hash",
			IsActive:     true,
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestUserRepo_CreateAndGet(t *testing.T) {
	repo := NewUserRepo(setupTestDB(t), zaptest.NewLogger(t))
	ctx := context.Background()

	id, err := repo.Create(ctx, &user.User{
		Username:     "new_user",
		Email:        "newuser@email.com",
		PasswordHash: "hash",
		IsActive:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "new_user", got.Username)
	assert.Equal(t, "newuser@email.com", got.Email)
	assert.True(t, got.IsActive)
	assert.False(t, got.IsStaff)
	assert.False(t, got.DateJoined.IsZero())
	assert.Nil(t, got.LastLogin)

	byName, err := repo.GetByUsername(ctx, "new_user")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, id, byName.ID)
}

func TestUserRepo_CreateInactive(t *testing.T) {
	repo := NewUserRepo(setupTestDB(t), zaptest.NewLogger(t))
	ctx := context.Background()

	id, err := repo.Create(ctx, &user.User{Username: "dormant", PasswordHash: "hash"})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}

func TestUserRepo_Create_DuplicateUsername(t *testing.T) {
	repo := NewUserRepo(setupTestDB(t), zaptest.NewLogger(t))
	seedUsers(t, repo, "new_user")

	_, err := repo.Create(context.Background(), &user.User{Username: "new_user", PasswordHash: "hash"})

	var exists *apperrors.AlreadyExistsError
	assert.ErrorAs(t, err, &exists)
}

func TestUserRepo_Create_Nil(t *testing.T) {
	repo := NewUserRepo(setupTestDB(t), zaptest.NewLogger(t))

	_, err := repo.Create(context.Background(), nil)
	assert.Error(t, err)
}

func TestUserRepo_GetByID_NotFound(t *testing.T) {
	repo := NewUserRepo(setupTestDB(t), zaptest.NewLogger(t))

	_, err := repo.GetByID(context.Background(), 999)

	var nf *apperrors.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestUserRepo_GetByUsername_Missing(t *testing.T) {
	repo := NewUserRepo(setupTestDB(t), zaptest.NewLogger(t))

	got, err := repo.GetByUsername(context.Background(), "nobody")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestUserRepo_ListActiveByEmail(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepo(db, zaptest.NewLogger(t))
	ctx := context.Background()

	_, err := repo.Create(ctx, &user.User{Username: "a", Email: "Shared@example.com", PasswordHash: "h", IsActive: true})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &user.User{Username: "b", Email: "shared@example.com", PasswordHash: "h", IsActive: true})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &user.User{Username: "c", Email: "shared@example.com", PasswordHash: "h", IsActive: false})
	require.NoError(t, err)

	users, err := repo.ListActiveByEmail(ctx, "SHARED@example.com")
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "a", users[0].Username)
	assert.Equal(t, "b", users[1].Username)
}

func TestUserRepo_UpdatePasswordAndLastLogin(t *testing.T) {
	repo := NewUserRepo(setupTestDB(t), zaptest.NewLogger(t))
	ctx := context.Background()
	ids := seedUsers(t, repo, "new_user")

	require.NoError(t, repo.UpdatePassword(ctx, ids[0], "new-hash"))

	at := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	require.NoError(t, repo.UpdateLastLogin(ctx, ids[0], at))

	got, err := repo.GetByID(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "new-hash", got.PasswordHash)
	require.NotNil(t, got.LastLogin)
	assert.True(t, at.Equal(*got.LastLogin))

	err = repo.UpdatePassword(ctx, 999, "x")
	var nf *apperrors.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestUserRepo_List(t *testing.T) {
	repo := NewUserRepo(setupTestDB(t), zaptest.NewLogger(t))
	ctx := context.Background()
	seedUsers(t, repo, "alice", "bob", "carol", "new_user", "newsdesk")

	tests := []struct {
		name      string
		query     string
		page      int64
		limit     int64
		wantNames []string
		wantTotal int64
	}{
		{name: "all", page: 1, limit: 10, wantNames: []string{"alice", "bob", "carol", "new_user", "newsdesk"}, wantTotal: 5},
		{name: "second page", page: 2, limit: 2, wantNames: []string{"carol", "new_user"}, wantTotal: 5},
		{name: "prefix", query: "new", page: 1, limit: 10, wantNames: []string{"new_user", "newsdesk"}, wantTotal: 2},
		{name: "case insensitive", query: "ALICE", page: 1, limit: 10, wantNames: []string{"alice"}, wantTotal: 1},
		{name: "underscore is literal", query: "w_u", page: 1, limit: 10, wantNames: []string{"new_user"}, wantTotal: 1},
		{name: "by email", query: "bob@example", page: 1, limit: 10, wantNames: []string{"bob"}, wantTotal: 1},
		{name: "no match", query: "zzz", page: 1, limit: 10, wantNames: []string{}, wantTotal: 0},
		{name: "past the end", page: 4, limit: 2, wantNames: []string{}, wantTotal: 5},
		{name: "huge page", page: math.MaxInt64, limit: 25, wantNames: []string{}, wantTotal: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, total, err := repo.List(ctx, tt.query, tt.page, tt.limit)
			require.NoError(t, err)

			names := make([]string, 0, len(users))
			for _, u := range users {
				names = append(names, u.Username)
			}
			assert.Equal(t, tt.wantNames, names)
			assert.Equal(t, tt.wantTotal, total)
		})
	}
}

func TestUserRepo_Count(t *testing.T) {
	repo := NewUserRepo(setupTestDB(t), zaptest.NewLogger(t))
	ctx := context.Background()

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	seedUsers(t, repo, "new_user")

	n, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
