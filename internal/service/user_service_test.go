package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunho/webservice-hw2/internal/auth"
	"github.com/tunho/webservice-hw2/internal/config"
	"github.com/tunho/webservice-hw2/internal/datamodels/user"
	"github.com/tunho/webservice-hw2/internal/repository/mysql"
)

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	jwtCfg := &config.JWTConfig{Secret: "test", TTL: time.Hour}
	users := NewUserService(mysql.NewUserRepository(f.db), jwtCfg)
	ctx := context.Background()

	_, err := users.Register(ctx, "not-an-email", "Kim", "password123")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = users.Register(ctx, "kim@example.com", "Kim", "short")
	assert.ErrorIs(t, err, ErrValidation)

	u, err := users.Register(ctx, "Kim@Example.com", "Kim", "password123")
	require.NoError(t, err)
	assert.Equal(t, "kim@example.com", u.Email)
	assert.Equal(t, user.RoleUser, u.Role)
	assert.NotEqual(t, "password123", u.Password)

	_, err = users.Register(ctx, "kim@example.com", "Kim again", "password123")
	assert.ErrorIs(t, err, ErrValidation)

	tok, err := users.Login(ctx, "kim@example.com", "password123")
	require.NoError(t, err)
	claims, err := auth.ParseToken(jwtCfg, tok)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)

	_, err = users.Login(ctx, "kim@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = users.Login(ctx, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, f.db.Model(&user.User{}).Where("id = ?", u.ID).Update("status", user.StatusBanned).Error)
	_, err = users.Login(ctx, "kim@example.com", "password123")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSetUserStatus(t *testing.T) {
	f := newFixture(t)
	jwtCfg := &config.JWTConfig{Secret: "test", TTL: time.Hour}
	users := NewUserService(mysql.NewUserRepository(f.db), jwtCfg)
	ctx := context.Background()

	u, err := users.Register(ctx, "lee@example.com", "Lee", "password123")
	require.NoError(t, err)
	root := auth.Principal{UserID: u.ID + 100, Role: user.RoleAdmin}

	got, err := users.SetStatus(ctx, root, u.ID, user.StatusInactive)
	require.NoError(t, err)
	assert.Equal(t, user.StatusInactive, got.Status)
	_, err = users.Login(ctx, "lee@example.com", "password123")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = users.SetStatus(ctx, root, u.ID, user.StatusActive)
	require.NoError(t, err)
	_, err = users.Login(ctx, "lee@example.com", "password123")
	require.NoError(t, err)

	_, err = users.SetStatus(ctx, root, u.ID, "SUSPENDED")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = users.SetStatus(ctx, auth.Principal{UserID: u.ID, Role: user.RoleAdmin}, u.ID, user.StatusBanned)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = users.SetStatus(ctx, root, 9999, user.StatusBanned)
	assert.ErrorIs(t, err, ErrNotFound)

	page, err := users.List(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.TotalElements)
	require.Len(t, page.Content, 1)
	assert.Equal(t, "lee@example.com", page.Content[0].Email)
}
