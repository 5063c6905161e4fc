package service

import (
	"math"

	"github.com/tunho/webservice-hw2/internal/datamodels/book"
)

// PricedLine 下单时刻的价格快照
type PricedLine struct {
	UnitPrice int64
	Subtotal  int64
}

// PriceLine 单价取图书当前价格，小计 = 单价 * 数量；行级不做折扣
func PriceLine(b *book.Book, quantity int64) (PricedLine, error) {
	if quantity <= 0 {
		return PricedLine{}, Validation("quantity for book %d must be positive, got %d", b.ID, quantity)
	}
	if b.Price < 0 {
		return PricedLine{}, Validation("book %d has a negative price", b.ID)
	}
	if b.Price > 0 && quantity > math.MaxInt64/b.Price {
		return PricedLine{}, Validation("quantity %d for book %d is too large", quantity, b.ID)
	}
	return PricedLine{UnitPrice: b.Price, Subtotal: b.Price * quantity}, nil
}
