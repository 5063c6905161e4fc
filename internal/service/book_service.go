package service

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tunho/webservice-hw2/internal/datamodels/book"
	"github.com/tunho/webservice-hw2/internal/repository/mysql"
)

// StockSnapshot 库存快照缓存（Redis），只用于展示，不参与下单判断
type StockSnapshot interface {
	Get(ctx context.Context, bookID int64) (int64, bool, error)
	Set(ctx context.Context, bookID, stock int64) error
}

// BookService 目录查询与后台维护
type BookService struct {
	db     *gorm.DB
	repo   book.Repository
	ledger InventoryLedger
	stock  StockSnapshot
	log    *zap.Logger
}

func NewBookService(db *gorm.DB, stock StockSnapshot, log *zap.Logger) *BookService {
	if log == nil {
		log = zap.L()
	}
	return &BookService{
		db:    db,
		repo:  mysql.NewBookRepository(db),
		stock: stock,
		log:   log.Named("book"),
	}
}

// BookPage 图书分页结果
type BookPage struct {
	Content       []*book.Book `json:"content"`
	Page          int          `json:"page"`
	Size          int          `json:"size"`
	TotalElements int64        `json:"totalElements"`
}

func (s *BookService) List(ctx context.Context, keyword string, page, size int) (*BookPage, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	list, total, err := s.repo.List(ctx, book.Query{Keyword: strings.TrimSpace(keyword), Offset: page * size, Limit: size})
	if err != nil {
		return nil, wrapStorage("list books", err)
	}
	return &BookPage{Content: list, Page: page, Size: size, TotalElements: total}, nil
}

// GetByID 已删除的图书对外视为不存在
func (s *BookService) GetByID(ctx context.Context, id int64) (*book.Book, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, NotFound("book %d not found", id)
		}
		return nil, wrapStorage("get book", err)
	}
	if b.Status == book.StatusDeleted {
		return nil, NotFound("book %d not found", id)
	}
	return b, nil
}

// Stock 优先读 Redis 快照，未命中回源数据库并回填
func (s *BookService) Stock(ctx context.Context, id int64) (int64, error) {
	if s.stock != nil {
		if v, ok, err := s.stock.Get(ctx, id); err != nil {
			s.log.Warn("stock snapshot get failed", zap.Int64("book_id", id), zap.Error(err))
		} else if ok {
			return v, nil
		}
	}
	b, err := s.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if s.stock != nil {
		if err := s.stock.Set(ctx, id, b.Stock); err != nil {
			s.log.Warn("stock snapshot set failed", zap.Int64("book_id", id), zap.Error(err))
		}
	}
	return b.Stock, nil
}

// BookInput 后台创建/修改图书
type BookInput struct {
	Title     string      `json:"title"`
	Authors   string      `json:"authors"`
	Publisher string      `json:"publisher"`
	ISBN      string      `json:"isbn"`
	Price     int64       `json:"price"`
	Stock     int64       `json:"stock"`
	Status    book.Status `json:"status"`
}

func (in *BookInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return Validation("title is required")
	}
	if in.Price < 0 {
		return Validation("price must not be negative")
	}
	if in.Stock < 0 {
		return Validation("stock must not be negative")
	}
	if in.Status != "" && !in.Status.Valid() {
		return Validation("unknown book status %q", in.Status)
	}
	return nil
}

// Create 新书的初始库存在这里一次性写入，此后只经由库存台账变化
func (s *BookService) Create(ctx context.Context, in BookInput) (*book.Book, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	b := &book.Book{
		Title:     strings.TrimSpace(in.Title),
		Authors:   in.Authors,
		Publisher: in.Publisher,
		ISBN:      in.ISBN,
		Price:     in.Price,
		Stock:     in.Stock,
		Status:    in.Status,
	}
	if b.Status == "" {
		b.Status = book.StatusAvailable
		if b.Stock == 0 {
			b.Status = book.StatusSoldOut
		}
	}
	if err := s.repo.Create(ctx, b); err != nil {
		return nil, wrapStorage("create book", err)
	}
	return b, nil
}

// Update 修改目录信息（含价格）；已下单的订单行价格不受影响。库存字段被忽略，补货走 Restock。
func (s *BookService) Update(ctx context.Context, id int64, in BookInput) (*book.Book, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	b, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	b.Title = strings.TrimSpace(in.Title)
	b.Authors = in.Authors
	b.Publisher = in.Publisher
	b.ISBN = in.ISBN
	b.Price = in.Price
	if in.Status != "" {
		b.Status = in.Status
	}
	if err := s.repo.UpdateDetails(ctx, b); err != nil {
		return nil, wrapStorage("update book", err)
	}
	return b, nil
}

// Delete 软删除
func (s *BookService) Delete(ctx context.Context, id int64) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	return wrapStorage("delete book", s.repo.MarkDeleted(ctx, id))
}

// Restock 补货，经由库存台账加回库存
func (s *BookService) Restock(ctx context.Context, id, quantity int64) (*book.Book, error) {
	if quantity <= 0 {
		return nil, Validation("restock quantity must be positive, got %d", quantity)
	}
	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.ledger.Restore(tx, id, quantity)
	})
	if err != nil {
		return nil, wrapStorage("restock book", err)
	}
	b, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.stock != nil {
		if err := s.stock.Set(ctx, id, b.Stock); err != nil {
			s.log.Warn("stock snapshot set failed", zap.Int64("book_id", id), zap.Error(err))
		}
	}
	s.log.Info("book restocked", zap.Int64("book_id", id), zap.Int64("quantity", quantity), zap.Int64("stock", b.Stock))
	return b, nil
}

// RefreshStock 用数据库中的库存刷新快照（MQ 消费者与定时同步使用）
func (s *BookService) RefreshStock(ctx context.Context, ids ...int64) error {
	if s.stock == nil {
		return nil
	}
	for _, id := range ids {
		b, err := s.repo.GetByID(ctx, id)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return wrapStorage("refresh stock", err)
		}
		if err := s.stock.Set(ctx, id, b.Stock); err != nil {
			return err
		}
	}
	return nil
}

// SyncAllStock 全量比对并修正快照，返回修正的条数
func (s *BookService) SyncAllStock(ctx context.Context) (int, error) {
	if s.stock == nil {
		return 0, nil
	}
	list, err := s.repo.ListAll(ctx)
	if err != nil {
		return 0, wrapStorage("list books", err)
	}
	fixed := 0
	for _, b := range list {
		cached, ok, err := s.stock.Get(ctx, b.ID)
		if err != nil {
			return fixed, err
		}
		if ok && cached == b.Stock {
			continue
		}
		if err := s.stock.Set(ctx, b.ID, b.Stock); err != nil {
			return fixed, err
		}
		fixed++
	}
	return fixed, nil
}
