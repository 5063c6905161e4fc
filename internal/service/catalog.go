package service

import (
	"gorm.io/gorm"

	"github.com/tunho/webservice-hw2/internal/datamodels/book"
)

// CatalogLookup 在调用方事务内解析图书的价格、库存与状态
type CatalogLookup struct{}

// Resolve 不存在或已删除的图书返回 ErrNotFound；售罄图书可以解析，库存不足由台账判定
func (CatalogLookup) Resolve(tx *gorm.DB, bookID int64) (*book.Book, error) {
	var b book.Book
	if err := tx.Select("id", "title", "price", "stock", "status").First(&b, bookID).Error; err != nil {
		if isNotFound(err) {
			return nil, NotFound("book %d not found", bookID)
		}
		return nil, err
	}
	if b.Status == book.StatusDeleted {
		return nil, NotFound("book %d not found", bookID)
	}
	return &b, nil
}
