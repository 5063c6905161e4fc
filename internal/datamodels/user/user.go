package user

import (
	"context"
	"time"
)

// Role 用户角色
type Role string

const (
	RoleUser   Role = "USER"
	RoleSeller Role = "SELLER"
	RoleAdmin  Role = "ADMIN"
)

// Status 账号状态
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
	StatusBanned   Status = "BANNED"
)

// Valid 判断是否为已知状态
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusBanned:
		return true
	}
	return false
}

// User 用户模型
type User struct {
	ID        int64     `gorm:"primaryKey" json:"user_id"`
	Email     string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Password  string    `gorm:"size:255;not null" json:"-"` // bcrypt 哈希
	Role      Role      `gorm:"size:16;not null;default:USER" json:"role"`
	Status    Status    `gorm:"size:16;not null;default:ACTIVE" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repository 用户仓储接口
type Repository interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, u *User) error
	List(ctx context.Context, offset, limit int) ([]*User, int64, error)
	SetStatus(ctx context.Context, id int64, status Status) error
}
