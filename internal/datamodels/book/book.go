package book

import (
	"context"
	"time"
)

// Status 图书生命周期状态
type Status string

const (
	StatusAvailable    Status = "AVAILABLE"
	StatusSoldOut      Status = "SOLD_OUT"
	StatusDiscontinued Status = "DISCONTINUED"
	StatusDeleted      Status = "DELETED"
)

// Valid 判断是否为已知状态
func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusSoldOut, StatusDiscontinued, StatusDeleted:
		return true
	}
	return false
}

// Book 图书模型。Stock 只允许通过库存台账（InventoryLedger）修改。
type Book struct {
	ID        int64     `gorm:"primaryKey" json:"book_id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	Authors   string    `gorm:"size:512" json:"authors"`
	Publisher string    `gorm:"size:150" json:"publisher"`
	ISBN      string    `gorm:"size:13;index" json:"isbn"`
	Price     int64     `gorm:"not null" json:"price"` // 最小货币单位
	Stock     int64     `gorm:"not null;default:0" json:"stock"`
	Status    Status    `gorm:"size:16;index;not null;default:AVAILABLE" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Query 列表查询条件
type Query struct {
	Keyword string
	Offset  int
	Limit   int
}

// Repository 图书仓储接口（目录侧的普通读写，不包含库存变更）
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Book, error)
	List(ctx context.Context, q Query) ([]*Book, int64, error)
	ListAll(ctx context.Context) ([]*Book, error)
	Create(ctx context.Context, b *Book) error
	UpdateDetails(ctx context.Context, b *Book) error
	MarkDeleted(ctx context.Context, id int64) error
}
