package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/tunho/webservice-hw2/internal/datamodels/user"
)

type userRepo struct {
	db *gorm.DB
}

// NewUserRepository 创建用户仓储
func NewUserRepository(db *gorm.DB) user.Repository {
	return &userRepo{db: db}
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*user.User, error) {
	var u user.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail 邮箱在写入前已统一为小写
func (r *userRepo) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	var u user.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// Create 邮箱重复时返回 gorm.ErrDuplicatedKey（需开启 TranslateError）
func (r *userRepo) Create(ctx context.Context, u *user.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

// List 按注册时间倒序分页
func (r *userRepo) List(ctx context.Context, offset, limit int) ([]*user.User, int64, error) {
	query := r.db.WithContext(ctx).Model(&user.User{})
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 20
	}
	var list []*user.User
	if err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// SetStatus 修改账号状态，用户不存在时返回 gorm.ErrRecordNotFound
func (r *userRepo) SetStatus(ctx context.Context, id int64, status user.Status) error {
	res := r.db.WithContext(ctx).Model(&user.User{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
