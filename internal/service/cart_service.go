package service

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tunho/webservice-hw2/internal/datamodels/book"
	"github.com/tunho/webservice-hw2/internal/datamodels/cart"
	"github.com/tunho/webservice-hw2/internal/repository/mysql"
)

// CartService 购物车维护。购物车不占库存，库存只在结算下单时扣减。
type CartService struct {
	db      *gorm.DB
	catalog CatalogLookup
	log     *zap.Logger
}

func NewCartService(db *gorm.DB, log *zap.Logger) *CartService {
	if log == nil {
		log = zap.L()
	}
	return &CartService{db: db, log: log.Named("cart")}
}

// Get 返回当前 ACTIVE 购物车，不存在时返回一个空购物车（不落库）
func (s *CartService) Get(ctx context.Context, userID int64) (*cart.Cart, error) {
	c, err := mysql.NewCartRepository(s.db).GetActive(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return &cart.Cart{UserID: userID, Status: cart.StatusActive, Items: []*cart.CartItem{}}, nil
		}
		return nil, wrapStorage("get cart", err)
	}
	return c, nil
}

// AddItem 加入购物车；同一本书再次加入时数量累加，单价沿用首次加入时的价格
func (s *CartService) AddItem(ctx context.Context, userID, bookID, quantity int64) (*cart.Cart, error) {
	if quantity <= 0 {
		return nil, Validation("quantity must be positive, got %d", quantity)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := mysql.NewCartRepository(tx)
		b, err := s.catalog.Resolve(tx, bookID)
		if err != nil {
			return err
		}
		c, err := repo.GetOrCreateActive(ctx, userID)
		if err != nil {
			return err
		}
		it, err := repo.GetItem(ctx, c.ID, bookID)
		switch {
		case err == nil:
			it.Quantity += quantity
		case isNotFound(err):
			it = &cart.CartItem{CartID: c.ID, BookID: b.ID, Quantity: quantity, UnitPrice: b.Price}
		default:
			return err
		}
		if _, err := PriceLine(b, it.Quantity); err != nil {
			return err
		}
		it.Recalculate()
		if err := repo.SaveItem(ctx, it); err != nil {
			return err
		}
		return s.refreshTotal(ctx, tx, c.ID)
	})
	if err != nil {
		return nil, wrapStorage("add cart item", err)
	}
	return s.Get(ctx, userID)
}

// UpdateItem 修改条目数量
func (s *CartService) UpdateItem(ctx context.Context, userID, bookID, quantity int64) (*cart.Cart, error) {
	if quantity <= 0 {
		return nil, Validation("quantity must be positive, got %d", quantity)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := mysql.NewCartRepository(tx)
		c, err := repo.GetActive(ctx, userID)
		if err != nil {
			if isNotFound(err) {
				return NotFound("book %d is not in cart", bookID)
			}
			return err
		}
		it, err := repo.GetItem(ctx, c.ID, bookID)
		if err != nil {
			if isNotFound(err) {
				return NotFound("book %d is not in cart", bookID)
			}
			return err
		}
		// 沿用加入时快照的单价做同样的溢出校验
		if _, err := PriceLine(&book.Book{ID: bookID, Price: it.UnitPrice}, quantity); err != nil {
			return err
		}
		it.Quantity = quantity
		it.Recalculate()
		if err := repo.SaveItem(ctx, it); err != nil {
			return err
		}
		return s.refreshTotal(ctx, tx, c.ID)
	})
	if err != nil {
		return nil, wrapStorage("update cart item", err)
	}
	return s.Get(ctx, userID)
}

// RemoveItem 移除条目
func (s *CartService) RemoveItem(ctx context.Context, userID, bookID int64) (*cart.Cart, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := mysql.NewCartRepository(tx)
		c, err := repo.GetActive(ctx, userID)
		if err != nil {
			if isNotFound(err) {
				return NotFound("book %d is not in cart", bookID)
			}
			return err
		}
		if err := repo.DeleteItem(ctx, c.ID, bookID); err != nil {
			if isNotFound(err) {
				return NotFound("book %d is not in cart", bookID)
			}
			return err
		}
		return s.refreshTotal(ctx, tx, c.ID)
	})
	if err != nil {
		return nil, wrapStorage("remove cart item", err)
	}
	return s.Get(ctx, userID)
}

// Clear 清空购物车
func (s *CartService) Clear(ctx context.Context, userID int64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := mysql.NewCartRepository(tx)
		c, err := repo.GetActive(ctx, userID)
		if err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}
		if err := repo.ClearItems(ctx, c.ID); err != nil {
			return err
		}
		return repo.UpdateTotal(ctx, c.ID, 0)
	})
	return wrapStorage("clear cart", err)
}

// refreshTotal 重新汇总购物车金额，溢出时拒绝本次修改（事务回滚）
func (s *CartService) refreshTotal(ctx context.Context, tx *gorm.DB, cartID int64) error {
	var items []*cart.CartItem
	if err := tx.WithContext(ctx).Select("id", "subtotal").Where("cart_id = ?", cartID).Find(&items).Error; err != nil {
		return err
	}
	total, err := (&cart.Cart{Items: items}).Total()
	if err != nil {
		return invalid(err)
	}
	return mysql.NewCartRepository(tx).UpdateTotal(ctx, cartID, total)
}
