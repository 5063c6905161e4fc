package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/tunho/webservice-hw2/internal/datamodels/order"
)

type orderRepo struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓储
func NewOrderRepository(db *gorm.DB) order.Repository {
	return &orderRepo{db: db}
}

func (r *orderRepo) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	var o order.Order
	if err := r.db.WithContext(ctx).Preload("Lines").First(&o, id).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) GetByIdempotencyKey(ctx context.Context, userID int64, key string) (*order.Order, error) {
	var o order.Order
	if err := r.db.WithContext(ctx).Preload("Lines").
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) ListByUser(ctx context.Context, userID int64, offset, limit int) ([]*order.Order, int64, error) {
	return r.page(r.db.WithContext(ctx).Model(&order.Order{}).Where("user_id = ?", userID), offset, limit)
}

func (r *orderRepo) ListAll(ctx context.Context, offset, limit int) ([]*order.Order, int64, error) {
	return r.page(r.db.WithContext(ctx).Model(&order.Order{}), offset, limit)
}

func (r *orderRepo) page(q *gorm.DB, offset, limit int) ([]*order.Order, int64, error) {
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 20
	}
	var list []*order.Order
	if err := q.Preload("Lines").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}
