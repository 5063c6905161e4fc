package auth

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/tunho/webservice-hw2/internal/config"
	"github.com/tunho/webservice-hw2/internal/datamodels/user"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
	ErrInactiveUser = errors.New("inactive user")
)

// Principal 当前请求的操作者
type Principal struct {
	UserID int64     `json:"user_id"`
	Role   user.Role `json:"role"`
}

func (p Principal) IsAdmin() bool { return p.Role == user.RoleAdmin }

// PrincipalResolver 把 Authorization 头解析成 Principal。
// 角色以数据库为准，非 ACTIVE 用户被拒绝。
type PrincipalResolver struct {
	jwt   *config.JWTConfig
	users user.Repository
	cache *PrincipalCache
	log   *zap.Logger
}

func NewPrincipalResolver(jwtCfg *config.JWTConfig, users user.Repository, cache *PrincipalCache, log *zap.Logger) *PrincipalResolver {
	return &PrincipalResolver{jwt: jwtCfg, users: users, cache: cache, log: log}
}

func (r *PrincipalResolver) Resolve(ctx context.Context, token string) (Principal, error) {
	if token == "" {
		return Principal{}, ErrMissingToken
	}
	if p, ok, err := r.cache.Get(ctx, token); err != nil {
		r.log.Warn("principal cache get failed", zap.Error(err))
	} else if ok {
		return p, nil
	}

	claims, err := ParseToken(r.jwt, token)
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	u, err := r.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	if u.Status != user.StatusActive {
		return Principal{}, ErrInactiveUser
	}

	p := Principal{UserID: u.ID, Role: u.Role}
	if err := r.cache.Set(ctx, token, p); err != nil {
		r.log.Warn("principal cache set failed", zap.Error(err))
	}
	return p, nil
}
