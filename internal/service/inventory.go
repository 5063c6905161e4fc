package service

import (
	"gorm.io/gorm"

	"github.com/tunho/webservice-hw2/internal/datamodels/book"
)

// InventoryLedger 图书库存台账，库存只在这里变更。
// 所有操作都使用调用方的事务，回滚即撤销本次的全部扣减。
type InventoryLedger struct{}

// Reserve 原子地检查并扣减库存：UPDATE ... SET stock = stock - q WHERE stock >= q。
// 受影响行数为 0 时不做任何修改，返回 InsufficientStockError。
func (InventoryLedger) Reserve(tx *gorm.DB, bookID, quantity int64) error {
	if quantity <= 0 {
		return Validation("quantity for book %d must be positive, got %d", bookID, quantity)
	}
	res := tx.Model(&book.Book{}).
		Where("id = ? AND stock >= ? AND status <> ?", bookID, quantity, book.StatusDeleted).
		Update("stock", gorm.Expr("stock - ?", quantity))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var cur book.Book
		if err := tx.Select("id", "title", "stock", "status").First(&cur, bookID).Error; err != nil {
			if isNotFound(err) {
				return NotFound("book %d not found", bookID)
			}
			return err
		}
		if cur.Status == book.StatusDeleted {
			return NotFound("book %d not found", bookID)
		}
		return &InsufficientStockError{
			BookID:    bookID,
			Title:     cur.Title,
			Requested: quantity,
			Available: cur.Stock,
		}
	}

	// 扣到 0 时标记售罄
	return tx.Model(&book.Book{}).
		Where("id = ? AND stock = 0 AND status = ?", bookID, book.StatusAvailable).
		Update("status", book.StatusSoldOut).Error
}

// Restore 把数量加回库存（取消订单、补货），是 Reserve 的逆操作
func (InventoryLedger) Restore(tx *gorm.DB, bookID, quantity int64) error {
	if quantity <= 0 {
		return Validation("quantity for book %d must be positive, got %d", bookID, quantity)
	}
	res := tx.Model(&book.Book{}).
		Where("id = ?", bookID).
		Update("stock", gorm.Expr("stock + ?", quantity))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return NotFound("book %d not found", bookID)
	}

	// 有货后恢复可售
	return tx.Model(&book.Book{}).
		Where("id = ? AND stock > 0 AND status = ?", bookID, book.StatusSoldOut).
		Update("status", book.StatusAvailable).Error
}
