package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tunho/webservice-hw2/internal/auth"
	"github.com/tunho/webservice-hw2/internal/config"
	"github.com/tunho/webservice-hw2/internal/datamodels/user"
)

var validate = validator.New()

type UserService struct {
	repo user.Repository
	jwt  *config.JWTConfig
}

func NewUserService(repo user.Repository, jwt *config.JWTConfig) *UserService {
	return &UserService{repo: repo, jwt: jwt}
}

// Register 注册普通用户
func (s *UserService) Register(ctx context.Context, email, name, password string) (*user.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validate.Var(email, "required,email"); err != nil {
		return nil, Validation("invalid email %q", email)
	}
	if strings.TrimSpace(name) == "" {
		return nil, Validation("name is required")
	}
	if len(password) < 8 {
		return nil, Validation("password must be at least 8 characters")
	}
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, Validation("email %s is already registered", email)
	} else if !isNotFound(err) {
		return nil, wrapStorage("get user", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &user.User{
		Email:    email,
		Name:     strings.TrimSpace(name),
		Password: string(hash),
		Role:     user.RoleUser,
		Status:   user.StatusActive,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, Validation("email %s is already registered", email)
		}
		return nil, wrapStorage("create user", err)
	}
	return u, nil
}

// Login 登录并返回 JWT
func (s *UserService) Login(ctx context.Context, email, password string) (string, error) {
	u, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if isNotFound(err) {
			return "", ErrUnauthorized
		}
		return "", wrapStorage("get user", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		return "", ErrUnauthorized
	}
	if u.Status != user.StatusActive {
		return "", &ForbiddenError{Reason: "user is not active"}
	}
	return auth.GenerateToken(s.jwt, u.ID, u.Role)
}

// UserPage 用户分页结果
type UserPage struct {
	Content       []*user.User `json:"content"`
	Page          int          `json:"page"`
	Size          int          `json:"size"`
	TotalElements int64        `json:"totalElements"`
}

func (s *UserService) List(ctx context.Context, page, size int) (*UserPage, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	list, total, err := s.repo.List(ctx, page*size, size)
	if err != nil {
		return nil, wrapStorage("list users", err)
	}
	return &UserPage{Content: list, Page: page, Size: size, TotalElements: total}, nil
}

// SetStatus 管理员停用/封禁/恢复账号。不能修改自己的状态。
// 已缓存的身份在 principal_cache_ttl 内仍可能生效。
func (s *UserService) SetStatus(ctx context.Context, actor auth.Principal, id int64, status user.Status) (*user.User, error) {
	if !status.Valid() {
		return nil, Validation("unknown user status %q", status)
	}
	if actor.UserID == id {
		return nil, Validation("cannot change own status")
	}
	if err := s.repo.SetStatus(ctx, id, status); err != nil {
		if isNotFound(err) {
			return nil, NotFound("user %d not found", id)
		}
		return nil, wrapStorage("set user status", err)
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, wrapStorage("get user", err)
	}
	return u, nil
}
