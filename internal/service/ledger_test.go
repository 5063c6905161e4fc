package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tunho/webservice-hw2/internal/datamodels/book"
)

func TestPriceLine(t *testing.T) {
	b := &book.Book{ID: 1, Price: 1250}

	p, err := PriceLine(b, 4)
	require.NoError(t, err)
	assert.Equal(t, PricedLine{UnitPrice: 1250, Subtotal: 5000}, p)

	_, err = PriceLine(b, 0)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = PriceLine(&book.Book{ID: 2, Price: -1}, 1)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = PriceLine(b, math.MaxInt64/1000)
	assert.ErrorIs(t, err, ErrValidation)

	free, err := PriceLine(&book.Book{ID: 3}, 10)
	require.NoError(t, err)
	assert.Zero(t, free.Subtotal)
}

func TestLedgerReserveAndRestore(t *testing.T) {
	f := newFixture(t)
	var ledger InventoryLedger
	b := f.seedBook(t, "Ledger", 100, 2)

	err := f.db.Transaction(func(tx *gorm.DB) error { return ledger.Reserve(tx, b.ID, 3) })
	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, int64(2), stockErr.Available)
	assert.Equal(t, "Ledger", stockErr.Title)

	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error { return ledger.Reserve(tx, b.ID, 2) }))
	assert.Equal(t, book.StatusSoldOut, f.reload(t, b.ID).Status)

	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error { return ledger.Restore(tx, b.ID, 1) }))
	got := f.reload(t, b.ID)
	assert.Equal(t, int64(1), got.Stock)
	assert.Equal(t, book.StatusAvailable, got.Status)

	err = f.db.Transaction(func(tx *gorm.DB) error { return ledger.Restore(tx, 404, 1) })
	assert.ErrorIs(t, err, ErrNotFound)
	err = f.db.Transaction(func(tx *gorm.DB) error { return ledger.Reserve(tx, b.ID, -1) })
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLedgerRefusesStaleQuantity(t *testing.T) {
	f := newFixture(t)
	var ledger InventoryLedger
	b := f.seedBook(t, "Contended", 100, 5)

	// 调用方先看到 5 本
	seen := f.reload(t, b.ID).Stock
	require.Equal(t, int64(5), seen)

	// 另一笔订单扣减 4 本并提交
	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error { return ledger.Reserve(tx, b.ID, 4) }))

	// 记录扣减语句本身的受影响行数
	var affected []int64
	require.NoError(t, f.db.Callback().Update().After("gorm:update").Register("test:stock_rows", func(tx *gorm.DB) {
		if tx.Statement.Table == "books" {
			affected = append(affected, tx.RowsAffected)
		}
	}))

	// 按旧读数 3 <= 5 本应可扣，条件更新必须拒绝
	err := f.db.Transaction(func(tx *gorm.DB) error { return ledger.Reserve(tx, b.ID, 3) })
	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, int64(3), stockErr.Requested)
	assert.Equal(t, int64(1), stockErr.Available)
	assert.Equal(t, []int64{0}, affected)

	got := f.reload(t, b.ID)
	assert.Equal(t, int64(1), got.Stock)
	assert.Equal(t, book.StatusAvailable, got.Status)
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"plain storage", wrapStorage("op", errBoom), true},
		{"deadlock", wrapStorage("op", &mysqldriver.MySQLError{Number: 1213}), true},
		{"lock wait timeout", wrapStorage("op", &mysqldriver.MySQLError{Number: 1205}), true},
		{"syntax error", wrapStorage("op", &mysqldriver.MySQLError{Number: 1064}), false},
		{"duplicate key", wrapStorage("op", gorm.ErrDuplicatedKey), false},
		{"deadline", wrapStorage("op", fmt.Errorf("commit: %w", context.DeadlineExceeded)), false},
		{"insufficient stock", &InsufficientStockError{BookID: 1}, false},
		{"not found", NotFound("book %d", 1), false},
		{"unclassified", errBoom, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Retryable(tc.err))
		})
	}
}

func TestWrapStorageKeepsClassifiedErrors(t *testing.T) {
	conflict := &StateConflictError{OrderID: 1}
	assert.Same(t, conflict, wrapStorage("op", conflict))
	assert.Nil(t, wrapStorage("op", nil))

	var se *StorageError
	require.True(t, errors.As(wrapStorage("load", errBoom), &se))
	assert.Equal(t, "load", se.Op)
}
