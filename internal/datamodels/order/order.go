package order

import (
	"context"
	"errors"
	"math"
	"time"
)

// PaymentMethod 支付方式，只做记录，不做实际扣款
type PaymentMethod string

const (
	PaymentCard    PaymentMethod = "CARD"
	PaymentAccount PaymentMethod = "ACCOUNT"
	PaymentPoint   PaymentMethod = "POINT"
)

// Valid 判断是否为已知支付方式
func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentCard, PaymentAccount, PaymentPoint:
		return true
	}
	return false
}

// Order 订单头。创建后只通过状态流转修改，从不物理删除。
type Order struct {
	ID              int64         `gorm:"primaryKey" json:"order_id"`
	UserID          int64         `gorm:"not null;uniqueIndex:uq_order_user_idem,priority:1" json:"user_id"`
	IdempotencyKey  *string       `gorm:"size:64;uniqueIndex:uq_order_user_idem,priority:2" json:"-"`
	PaymentMethod   PaymentMethod `gorm:"size:16;not null" json:"payment_method"`
	ReceiverName    string        `gorm:"size:100;not null" json:"receiver_name"`
	ReceiverPhone   string        `gorm:"size:20;not null" json:"receiver_phone"`
	ShippingAddress string        `gorm:"size:255;not null" json:"shipping_address"`
	TotalPrice      int64         `gorm:"not null" json:"total_price"`
	DiscountAmount  int64         `gorm:"not null;default:0" json:"discount_amount"`
	FinalPrice      int64         `gorm:"not null" json:"final_price"`
	Status          Status        `gorm:"size:16;index;not null" json:"status"`
	Lines           []*Line       `gorm:"foreignKey:OrderID" json:"items"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	PaidAt          *time.Time    `json:"paid_at,omitempty"`
	ShippedAt       *time.Time    `json:"shipped_at,omitempty"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
	CanceledAt      *time.Time    `json:"canceled_at,omitempty"`
}

// Line 订单行。单价在下单时从图书价格快照，之后不再变化。
type Line struct {
	ID        int64     `gorm:"primaryKey" json:"order_item_id"`
	OrderID   int64     `gorm:"index;not null" json:"order_id"`
	BookID    int64     `gorm:"index;not null" json:"book_id"`
	Quantity  int64     `gorm:"not null" json:"quantity"`
	UnitPrice int64     `gorm:"not null" json:"unit_price"`
	Subtotal  int64     `gorm:"not null" json:"subtotal"`
	CreatedAt time.Time `json:"created_at"`
}

func (Line) TableName() string { return "order_lines" }

// ErrTotalOverflow 订单行小计之和超出 int64
var ErrTotalOverflow = errors.New("order total overflows")

// ApplyTotals 由订单行汇总金额；折扣目前恒为 0，final_price == total_price。
// 求和溢出时返回 ErrTotalOverflow，订单金额保持不变。
func (o *Order) ApplyTotals() error {
	var total int64
	for _, l := range o.Lines {
		if l.Subtotal < 0 || total > math.MaxInt64-l.Subtotal {
			return ErrTotalOverflow
		}
		total += l.Subtotal
	}
	o.TotalPrice = total
	o.DiscountAmount = 0
	o.FinalPrice = total - o.DiscountAmount
	return nil
}

// Header 下单时由客户端提供的收货/支付信息
type Header struct {
	PaymentMethod   PaymentMethod `json:"payment_method"`
	ReceiverName    string        `json:"receiver_name"`
	ReceiverPhone   string        `json:"receiver_phone"`
	ShippingAddress string        `json:"shipping_address"`
}

// LineRequest 下单请求中的一行
type LineRequest struct {
	BookID   int64 `json:"book_id"`
	Quantity int64 `json:"quantity"`
}

// Repository 订单只读仓储；写入由下单/状态流转在事务内完成
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Order, error)
	GetByIdempotencyKey(ctx context.Context, userID int64, key string) (*Order, error)
	ListByUser(ctx context.Context, userID int64, offset, limit int) ([]*Order, int64, error)
	ListAll(ctx context.Context, offset, limit int) ([]*Order, int64, error)
}
