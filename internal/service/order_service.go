package service

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tunho/webservice-hw2/internal/auth"
	"github.com/tunho/webservice-hw2/internal/config"
	"github.com/tunho/webservice-hw2/internal/datamodels/cart"
	"github.com/tunho/webservice-hw2/internal/datamodels/order"
	"github.com/tunho/webservice-hw2/internal/repository/mysql"
)

// EventPublisher 订单事件发布，事务提交之后调用
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, evt *order.Event) error
}

// OrderService 下单（组装 + 扣库存）与订单状态机
type OrderService struct {
	db        *gorm.DB
	orderRepo order.Repository
	cartRepo  cart.Repository
	catalog   CatalogLookup
	ledger    InventoryLedger
	gate      *auth.Gate
	events    EventPublisher
	monitor   *Monitor
	log       *zap.Logger
	cfg       config.OrderConfig
	now       func() time.Time
}

// NewOrderService 创建订单服务，events 可以为 nil（不发布事件）
func NewOrderService(db *gorm.DB, cfg config.OrderConfig, events EventPublisher, monitor *Monitor, log *zap.Logger) *OrderService {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if monitor == nil {
		monitor = GetMonitor()
	}
	if log == nil {
		log = zap.L()
	}
	return &OrderService{
		db:        db,
		orderRepo: mysql.NewOrderRepository(db),
		cartRepo:  mysql.NewCartRepository(db),
		gate:      auth.NewGate(),
		events:    events,
		monitor:   monitor,
		log:       log.Named("order"),
		cfg:       cfg,
		now:       time.Now,
	}
}

// CreateOrder 下单：所有行都扣库存成功才提交，任何一行失败整单回滚，不留下部分订单。
// idemKey 非空时同一用户重复提交返回已有订单。
func (s *OrderService) CreateOrder(ctx context.Context, p auth.Principal, idemKey string, h order.Header, lines []order.LineRequest) (*order.Order, error) {
	if err := validateOrderInput(h, lines); err != nil {
		s.monitor.RecordOrderRejected(false)
		return nil, err
	}
	idemKey, existing, err := s.replay(ctx, p.UserID, idemKey)
	if err != nil || existing != nil {
		return existing, err
	}

	start := s.now()
	var created *order.Order
	err = s.transact(ctx, "create order", func(tx *gorm.DB) error {
		o, err := s.assemble(tx, p.UserID, idemKey, h, lines)
		if err != nil {
			return err
		}
		created = o
		return nil
	})
	if err != nil {
		if o := s.raced(ctx, p.UserID, idemKey, err); o != nil {
			return o, nil
		}
		s.recordCreateFailure(p.UserID, err)
		return nil, err
	}

	s.monitor.RecordOrderCreated(s.now().Sub(start))
	s.log.Info("order created",
		zap.Int64("order_id", created.ID),
		zap.Int64("user_id", created.UserID),
		zap.Int("lines", len(created.Lines)),
		zap.Int64("final_price", created.FinalPrice))
	s.publish(ctx, order.EventCreated, created)
	return created, nil
}

// CheckoutCart 把用户的 ACTIVE 购物车转成订单，并在同一事务里把购物车标记为 ORDERED
func (s *OrderService) CheckoutCart(ctx context.Context, p auth.Principal, idemKey string, h order.Header) (*order.Order, error) {
	idemKey, existing, err := s.replay(ctx, p.UserID, idemKey)
	if err != nil || existing != nil {
		return existing, err
	}
	c, err := s.cartRepo.GetActive(ctx, p.UserID)
	if err != nil && !isNotFound(err) {
		return nil, wrapStorage("load cart", err)
	}
	if c == nil || len(c.Items) == 0 {
		s.monitor.RecordOrderRejected(false)
		return nil, Validation("cart is empty")
	}
	if err := validateOrderInput(h, cartLines(c)); err != nil {
		s.monitor.RecordOrderRejected(false)
		return nil, err
	}

	start := s.now()
	var created *order.Order
	err = s.transact(ctx, "checkout cart", func(tx *gorm.DB) error {
		// 事务内重新读取条目，以提交时的购物车为准
		var items []*cart.CartItem
		if err := tx.Where("cart_id = ?", c.ID).Order("id ASC").Find(&items).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return Validation("cart is empty")
		}
		o, err := s.assemble(tx, p.UserID, idemKey, h, cartLines(&cart.Cart{Items: items}))
		if err != nil {
			return err
		}
		if err := mysql.NewCartRepository(tx).MarkOrdered(ctx, c.ID); err != nil {
			if isNotFound(err) {
				return Validation("cart %d is no longer active", c.ID)
			}
			return err
		}
		created = o
		return nil
	})
	if err != nil {
		if o := s.raced(ctx, p.UserID, idemKey, err); o != nil {
			return o, nil
		}
		s.recordCreateFailure(p.UserID, err)
		return nil, err
	}

	s.monitor.RecordOrderCreated(s.now().Sub(start))
	s.log.Info("cart checked out",
		zap.Int64("order_id", created.ID),
		zap.Int64("cart_id", c.ID),
		zap.Int64("user_id", created.UserID))
	s.publish(ctx, order.EventCreated, created)
	return created, nil
}

// replay 规范化幂等 key；该 key 已有订单时直接返回
func (s *OrderService) replay(ctx context.Context, userID int64, idemKey string) (string, *order.Order, error) {
	idemKey = strings.TrimSpace(idemKey)
	if idemKey == "" {
		return "", nil, nil
	}
	if len(idemKey) > 64 {
		return "", nil, Validation("idempotency key is too long")
	}
	o, err := s.orderRepo.GetByIdempotencyKey(ctx, userID, idemKey)
	if err == nil {
		return idemKey, o, nil
	}
	if !isNotFound(err) {
		return "", nil, wrapStorage("lookup idempotency key", err)
	}
	return idemKey, nil, nil
}

// raced 同 key 的并发请求已经先提交时，唯一索引冲突，返回先提交的那一单
func (s *OrderService) raced(ctx context.Context, userID int64, idemKey string, err error) *order.Order {
	if idemKey == "" || !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil
	}
	o, lookupErr := s.orderRepo.GetByIdempotencyKey(ctx, userID, idemKey)
	if lookupErr != nil {
		return nil
	}
	return o
}

// assemble 在 tx 内逐行：解析图书 -> 计价 -> 扣库存 -> 生成订单行，最后汇总金额并写入订单头和订单行
func (s *OrderService) assemble(tx *gorm.DB, userID int64, idemKey string, h order.Header, lines []order.LineRequest) (*order.Order, error) {
	o := &order.Order{
		UserID:          userID,
		PaymentMethod:   h.PaymentMethod,
		ReceiverName:    strings.TrimSpace(h.ReceiverName),
		ReceiverPhone:   strings.TrimSpace(h.ReceiverPhone),
		ShippingAddress: strings.TrimSpace(h.ShippingAddress),
		Status:          order.StatusCreated,
		Lines:           make([]*order.Line, len(lines)),
	}
	if idemKey != "" {
		o.IdempotencyKey = &idemKey
	}

	for _, i := range reservationOrder(lines) {
		req := lines[i]
		b, err := s.catalog.Resolve(tx, req.BookID)
		if err != nil {
			return nil, err
		}
		priced, err := PriceLine(b, req.Quantity)
		if err != nil {
			return nil, err
		}
		if err := s.ledger.Reserve(tx, b.ID, req.Quantity); err != nil {
			return nil, err
		}
		o.Lines[i] = &order.Line{
			BookID:    b.ID,
			Quantity:  req.Quantity,
			UnitPrice: priced.UnitPrice,
			Subtotal:  priced.Subtotal,
		}
	}

	if err := o.ApplyTotals(); err != nil {
		return nil, invalid(err)
	}
	if err := tx.Create(o).Error; err != nil {
		return nil, err
	}
	return o, nil
}

// reservationOrder 按 book_id 升序扣库存，避免多本书的订单之间互相死锁；订单行仍保持请求顺序
func reservationOrder(lines []order.LineRequest) []int {
	idx := make([]int, len(lines))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return lines[idx[a]].BookID < lines[idx[b]].BookID })
	return idx
}

func validateOrderInput(h order.Header, lines []order.LineRequest) error {
	if len(lines) == 0 {
		return Validation("order must contain at least one item")
	}
	if !h.PaymentMethod.Valid() {
		return Validation("unknown payment method %q", h.PaymentMethod)
	}
	if strings.TrimSpace(h.ReceiverName) == "" {
		return Validation("receiver_name is required")
	}
	if strings.TrimSpace(h.ReceiverPhone) == "" {
		return Validation("receiver_phone is required")
	}
	if strings.TrimSpace(h.ShippingAddress) == "" {
		return Validation("shipping_address is required")
	}
	for _, l := range lines {
		if l.Quantity <= 0 {
			return Validation("quantity for book %d must be positive, got %d", l.BookID, l.Quantity)
		}
	}
	return nil
}

func cartLines(c *cart.Cart) []order.LineRequest {
	out := make([]order.LineRequest, 0, len(c.Items))
	for _, it := range c.Items {
		out = append(out, order.LineRequest{BookID: it.BookID, Quantity: it.Quantity})
	}
	return out
}

// Cancel 取消订单：仅本人或管理员，仅 CREATED/PAID 可取消，同一事务内把库存加回
func (s *OrderService) Cancel(ctx context.Context, p auth.Principal, orderID int64) (*order.Order, error) {
	return s.Transition(ctx, p, orderID, order.ActionCancel)
}

// Transition 执行一次状态流转。状态写入是以期望状态为条件的更新，
// 并发下输掉的一方得到 StateConflictError 而不是覆盖写。
func (s *OrderService) Transition(ctx context.Context, p auth.Principal, orderID int64, action order.Action) (*order.Order, error) {
	if !action.Valid() {
		return nil, Validation("unknown order action %q", action)
	}

	var result *order.Order
	err := s.transact(ctx, string(action)+" order", func(tx *gorm.DB) error {
		var o order.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Lines").
			First(&o, orderID).Error; err != nil {
			if isNotFound(err) {
				return NotFound("order %d not found", orderID)
			}
			return err
		}
		if d := s.gate.CanActOnOrder(p, &o); !d.Allowed {
			return &ForbiddenError{Reason: d.Reason}
		}
		to, ok := order.Next(o.Status, action)
		if !ok {
			return &StateConflictError{OrderID: o.ID, Current: o.Status, Action: action}
		}

		now := s.now()
		res := tx.Model(&order.Order{}).
			Where("id = ? AND status IN ?", o.ID, statusStrings(action.Sources())).
			Updates(map[string]any{
				"status":            string(to),
				timestampColumn(to): now,
				"updated_at":        now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var cur order.Order
			if err := tx.Select("status").First(&cur, o.ID).Error; err != nil {
				return err
			}
			return &StateConflictError{OrderID: o.ID, Current: cur.Status, Action: action}
		}

		if action == order.ActionCancel {
			for _, l := range o.Lines {
				if err := s.ledger.Restore(tx, l.BookID, l.Quantity); err != nil {
					return err
				}
			}
		}

		o.Status = to
		o.UpdatedAt = now
		setTimestamp(&o, to, now)
		result = &o
		return nil
	})
	if err != nil {
		s.recordTransitionFailure(action, orderID, p, err)
		return nil, err
	}

	s.monitor.RecordTransition(string(action), "ok")
	s.log.Info("order transitioned",
		zap.Int64("order_id", result.ID),
		zap.String("action", string(action)),
		zap.String("status", string(result.Status)),
		zap.Int64("actor", p.UserID))
	evt := order.EventStatusChanged
	if action == order.ActionCancel {
		evt = order.EventCanceled
	}
	s.publish(ctx, evt, result)
	return result, nil
}

// GetOrder 查看订单：本人或管理员
func (s *OrderService) GetOrder(ctx context.Context, p auth.Principal, orderID int64) (*order.Order, error) {
	o, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		if isNotFound(err) {
			return nil, NotFound("order %d not found", orderID)
		}
		return nil, wrapStorage("get order", err)
	}
	if d := s.gate.CanActOnOrder(p, o); !d.Allowed {
		return nil, &ForbiddenError{Reason: d.Reason}
	}
	return o, nil
}

// OrderPage 订单分页结果
type OrderPage struct {
	Content       []*order.Order `json:"content"`
	Page          int            `json:"page"`
	Size          int            `json:"size"`
	TotalElements int64          `json:"totalElements"`
	TotalPages    int            `json:"totalPages"`
}

// ListOrders 普通用户只看自己的订单，管理员看全部
func (s *OrderService) ListOrders(ctx context.Context, p auth.Principal, page, size int) (*OrderPage, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	var (
		list  []*order.Order
		total int64
		err   error
	)
	if p.IsAdmin() {
		list, total, err = s.orderRepo.ListAll(ctx, page*size, size)
	} else {
		list, total, err = s.orderRepo.ListByUser(ctx, p.UserID, page*size, size)
	}
	if err != nil {
		return nil, wrapStorage("list orders", err)
	}
	return &OrderPage{
		Content:       list,
		Page:          page,
		Size:          size,
		TotalElements: total,
		TotalPages:    int(math.Ceil(float64(total) / float64(size))),
	}, nil
}

// transact 在一个事务中执行 fn；只有可重试的存储层失败才整单重试，
// 因为失败的事务已经整体回滚，重试不会叠加副作用。
func (s *OrderService) transact(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	eb := backoff.NewExponentialBackOff()
	if s.cfg.InitialBackoff > 0 {
		eb.InitialInterval = s.cfg.InitialBackoff
	}
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(s.cfg.MaxAttempts-1)), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := wrapStorage(op, s.db.WithContext(ctx).Transaction(fn))
		if err == nil {
			return nil
		}
		if !Retryable(err) || attempt >= s.cfg.MaxAttempts {
			return backoff.Permanent(err)
		}
		s.monitor.RecordRetry()
		s.log.Warn("transaction failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Error(err))
		return err
	}, policy)
	return wrapStorage(op, err)
}

func (s *OrderService) publish(ctx context.Context, t order.EventType, o *order.Order) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, order.NewEvent(t, o)); err != nil {
		s.monitor.RecordPublishError()
		s.log.Error("publish order event failed",
			zap.String("type", string(t)),
			zap.Int64("order_id", o.ID),
			zap.Error(err))
	}
}

func (s *OrderService) recordCreateFailure(userID int64, err error) {
	var stockErr *InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		s.monitor.RecordOrderRejected(true)
		s.log.Warn("order rejected: insufficient stock",
			zap.Int64("user_id", userID),
			zap.Int64("book_id", stockErr.BookID),
			zap.Int64("requested", stockErr.Requested),
			zap.Int64("available", stockErr.Available))
	case errors.Is(err, ErrStorage):
		s.monitor.RecordStorageError()
		s.log.Error("order creation failed", zap.Int64("user_id", userID), zap.Error(err))
	default:
		s.monitor.RecordOrderRejected(false)
	}
}

func (s *OrderService) recordTransitionFailure(action order.Action, orderID int64, p auth.Principal, err error) {
	switch {
	case errors.Is(err, ErrStateConflict):
		s.monitor.RecordTransition(string(action), "conflict")
		s.log.Warn("order transition conflict",
			zap.Int64("order_id", orderID),
			zap.String("action", string(action)),
			zap.Error(err))
	case errors.Is(err, ErrStorage):
		s.monitor.RecordTransition(string(action), "error")
		s.monitor.RecordStorageError()
		s.log.Error("order transition failed", zap.Int64("order_id", orderID), zap.Error(err))
	default:
		s.monitor.RecordTransition(string(action), "rejected")
		s.log.Debug("order transition rejected",
			zap.Int64("order_id", orderID),
			zap.Int64("actor", p.UserID),
			zap.Error(err))
	}
}

func statusStrings(in []order.Status) []string {
	out := make([]string, len(in))
	for i, st := range in {
		out[i] = string(st)
	}
	return out
}

func timestampColumn(to order.Status) string {
	switch to {
	case order.StatusPaid:
		return "paid_at"
	case order.StatusShipped:
		return "shipped_at"
	case order.StatusCompleted:
		return "completed_at"
	case order.StatusCanceled:
		return "canceled_at"
	}
	return "updated_at"
}

func setTimestamp(o *order.Order, to order.Status, now time.Time) {
	switch to {
	case order.StatusPaid:
		o.PaidAt = &now
	case order.StatusShipped:
		o.ShippedAt = &now
	case order.StatusCompleted:
		o.CompletedAt = &now
	case order.StatusCanceled:
		o.CanceledAt = &now
	}
}
