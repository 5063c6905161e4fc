package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/tunho/webservice-hw2/internal/datamodels/book"
)

type bookRepo struct {
	db *gorm.DB
}

// NewBookRepository 创建图书仓储
func NewBookRepository(db *gorm.DB) book.Repository {
	return &bookRepo{db: db}
}

func (r *bookRepo) GetByID(ctx context.Context, id int64) (*book.Book, error) {
	var b book.Book
	if err := r.db.WithContext(ctx).First(&b, id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// List 分页查询未删除的图书，keyword 按书名模糊匹配
func (r *bookRepo) List(ctx context.Context, q book.Query) ([]*book.Book, int64, error) {
	query := r.db.WithContext(ctx).Model(&book.Book{}).Where("status <> ?", book.StatusDeleted)
	if q.Keyword != "" {
		query = query.Where("title LIKE ?", "%"+q.Keyword+"%")
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if q.Limit <= 0 {
		q.Limit = 20
	}
	var list []*book.Book
	if err := query.Order("id DESC").Offset(q.Offset).Limit(q.Limit).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *bookRepo) ListAll(ctx context.Context) ([]*book.Book, error) {
	var list []*book.Book
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *bookRepo) Create(ctx context.Context, b *book.Book) error {
	return r.db.WithContext(ctx).Create(b).Error
}

// UpdateDetails 只更新目录字段，库存不在这里改
func (r *bookRepo) UpdateDetails(ctx context.Context, b *book.Book) error {
	return r.db.WithContext(ctx).Model(b).
		Select("title", "authors", "publisher", "isbn", "price", "status").
		Updates(b).Error
}

// MarkDeleted 软删除
func (r *bookRepo) MarkDeleted(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&book.Book{}).
		Where("id = ?", id).
		Update("status", book.StatusDeleted).Error
}
