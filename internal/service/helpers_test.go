package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tunho/webservice-hw2/internal/auth"
	"github.com/tunho/webservice-hw2/internal/config"
	"github.com/tunho/webservice-hw2/internal/datamodels/book"
	"github.com/tunho/webservice-hw2/internal/datamodels/order"
	"github.com/tunho/webservice-hw2/internal/datamodels/user"
	"github.com/tunho/webservice-hw2/internal/repository/mysql/dbtest"
)

var (
	alice = auth.Principal{UserID: 1, Role: user.RoleUser}
	bob   = auth.Principal{UserID: 2, Role: user.RoleUser}
	admin = auth.Principal{UserID: 99, Role: user.RoleAdmin}

	header = order.Header{
		PaymentMethod:   order.PaymentCard,
		ReceiverName:    "Alice",
		ReceiverPhone:   "010-1234-5678",
		ShippingAddress: "1 Main St",
	}
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*order.Event
	err    error
}

func (p *recordingPublisher) PublishOrderEvent(_ context.Context, evt *order.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) types() []order.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]order.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	db      *gorm.DB
	orders  *OrderService
	monitor *Monitor
	events  *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	m := NewMonitor(nil)
	pub := &recordingPublisher{}
	cfg := config.OrderConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond}
	return &fixture{
		db:      db,
		orders:  NewOrderService(db, cfg, pub, m, zap.NewNop()),
		monitor: m,
		events:  pub,
	}
}

func (f *fixture) seedBook(t *testing.T, title string, price, stock int64) *book.Book {
	t.Helper()
	b := &book.Book{Title: title, Price: price, Stock: stock, Status: book.StatusAvailable}
	require.NoError(t, f.db.Create(b).Error)
	return b
}

func (f *fixture) reload(t *testing.T, id int64) *book.Book {
	t.Helper()
	var b book.Book
	require.NoError(t, f.db.First(&b, id).Error)
	return &b
}

func (f *fixture) orderCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&order.Order{}).Count(&n).Error)
	return n
}

func lines(pairs ...int64) []order.LineRequest {
	out := make([]order.LineRequest, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, order.LineRequest{BookID: pairs[i], Quantity: pairs[i+1]})
	}
	return out
}

type memSnapshot struct {
	mu    sync.Mutex
	stock map[int64]int64
	err   error
}

func newMemSnapshot() *memSnapshot { return &memSnapshot{stock: map[int64]int64{}} }

func (m *memSnapshot) Get(_ context.Context, id int64) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, false, m.err
	}
	v, ok := m.stock[id]
	return v, ok, nil
}

func (m *memSnapshot) Set(_ context.Context, id, stock int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.stock[id] = stock
	return nil
}

var errBoom = errors.New("boom")
