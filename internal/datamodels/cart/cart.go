package cart

import (
	"context"
	"errors"
	"math"
	"time"
)

// Status 购物车状态，每个用户最多一个 ACTIVE 购物车
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusOrdered Status = "ORDERED"
	StatusDeleted Status = "DELETED"
)

// Cart 购物车
type Cart struct {
	ID     int64 `gorm:"primaryKey" json:"cart_id"`
	UserID int64 `gorm:"index;not null" json:"user_id"`
	// ActiveUserID 仅 ACTIVE 时等于 UserID，离开 ACTIVE 置 NULL；唯一索引保证每个用户最多一个 ACTIVE 购物车
	ActiveUserID *int64      `gorm:"uniqueIndex:uq_cart_active_user" json:"-"`
	Status       Status      `gorm:"size:16;index;not null" json:"status"`
	TotalAmount  int64       `gorm:"not null;default:0" json:"total_amount"`
	Items        []*CartItem `gorm:"foreignKey:CartID" json:"items"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// CartItem 购物车条目，(cart_id, book_id) 唯一；小计由服务端计算
type CartItem struct {
	ID        int64     `gorm:"primaryKey" json:"cart_item_id"`
	CartID    int64     `gorm:"not null;uniqueIndex:uq_cart_item_book" json:"cart_id"`
	BookID    int64     `gorm:"not null;uniqueIndex:uq_cart_item_book" json:"book_id"`
	Quantity  int64     `gorm:"not null" json:"quantity"`
	UnitPrice int64     `gorm:"not null" json:"unit_price"`
	Subtotal  int64     `gorm:"not null" json:"subtotal"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Recalculate 按单价重算小计
func (i *CartItem) Recalculate() {
	i.Subtotal = i.Quantity * i.UnitPrice
}

// ErrTotalOverflow 购物车金额超出 int64
var ErrTotalOverflow = errors.New("cart total overflows")

// Total 条目小计之和
func (c *Cart) Total() (int64, error) {
	var sum int64
	for _, it := range c.Items {
		if it.Subtotal < 0 || sum > math.MaxInt64-it.Subtotal {
			return 0, ErrTotalOverflow
		}
		sum += it.Subtotal
	}
	return sum, nil
}

// Repository 购物车仓储接口
type Repository interface {
	GetActive(ctx context.Context, userID int64) (*Cart, error)
	GetOrCreateActive(ctx context.Context, userID int64) (*Cart, error)
	GetItem(ctx context.Context, cartID, bookID int64) (*CartItem, error)
	SaveItem(ctx context.Context, item *CartItem) error
	DeleteItem(ctx context.Context, cartID, bookID int64) error
	ClearItems(ctx context.Context, cartID int64) error
	MarkOrdered(ctx context.Context, cartID int64) error
	UpdateTotal(ctx context.Context, cartID, total int64) error
}
