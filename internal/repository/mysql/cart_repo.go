package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tunho/webservice-hw2/internal/datamodels/cart"
)

type cartRepo struct {
	db *gorm.DB
}

// NewCartRepository 创建购物车仓储；传入事务句柄即可在事务内使用
func NewCartRepository(db *gorm.DB) cart.Repository {
	return &cartRepo{db: db}
}

func (r *cartRepo) GetActive(ctx context.Context, userID int64) (*cart.Cart, error) {
	var c cart.Cart
	if err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("user_id = ? AND status = ?", userID, cart.StatusActive).
		First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetOrCreateActive 没有 ACTIVE 购物车时创建一个。
// 并发创建时唯一索引 uq_cart_active_user 只放行一个，落败方加锁读回胜者的购物车。
func (r *cartRepo) GetOrCreateActive(ctx context.Context, userID int64) (*cart.Cart, error) {
	c, err := r.GetActive(ctx, userID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	c = &cart.Cart{UserID: userID, ActiveUserID: &userID, Status: cart.StatusActive}
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, err
		}
		// 加锁读读取最新提交版本，不受事务快照影响
		var winner cart.Cart
		if err := r.db.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
			Where("active_user_id = ?", userID).
			First(&winner).Error; err != nil {
			return nil, err
		}
		return &winner, nil
	}
	return c, nil
}

// MarkOrdered 结算后把 ACTIVE 购物车置为 ORDERED 并释放 active_user_id；
// 购物车已不是 ACTIVE 时返回 gorm.ErrRecordNotFound
func (r *cartRepo) MarkOrdered(ctx context.Context, cartID int64) error {
	res := r.db.WithContext(ctx).Model(&cart.Cart{}).
		Where("id = ? AND status = ?", cartID, cart.StatusActive).
		Updates(map[string]any{"status": cart.StatusOrdered, "active_user_id": nil})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *cartRepo) GetItem(ctx context.Context, cartID, bookID int64) (*cart.CartItem, error) {
	var it cart.CartItem
	if err := r.db.WithContext(ctx).
		Where("cart_id = ? AND book_id = ?", cartID, bookID).
		First(&it).Error; err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *cartRepo) SaveItem(ctx context.Context, item *cart.CartItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

func (r *cartRepo) DeleteItem(ctx context.Context, cartID, bookID int64) error {
	res := r.db.WithContext(ctx).
		Where("cart_id = ? AND book_id = ?", cartID, bookID).
		Delete(&cart.CartItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *cartRepo) ClearItems(ctx context.Context, cartID int64) error {
	return r.db.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&cart.CartItem{}).Error
}

func (r *cartRepo) UpdateTotal(ctx context.Context, cartID, total int64) error {
	return r.db.WithContext(ctx).Model(&cart.Cart{}).
		Where("id = ?", cartID).
		Update("total_amount", total).Error
}
