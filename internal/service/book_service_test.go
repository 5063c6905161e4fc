package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tunho/webservice-hw2/internal/datamodels/book"
)

func TestBookCatalogMaintenance(t *testing.T) {
	f := newFixture(t)
	books := NewBookService(f.db, nil, zap.NewNop())
	ctx := context.Background()

	_, err := books.Create(ctx, BookInput{Title: " ", Price: 100})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = books.Create(ctx, BookInput{Title: "Neg", Price: -1})
	assert.ErrorIs(t, err, ErrValidation)

	b, err := books.Create(ctx, BookInput{Title: "Go in Action", ISBN: "9781617291784", Price: 28000, Stock: 3})
	require.NoError(t, err)
	assert.Equal(t, book.StatusAvailable, b.Status)

	empty, err := books.Create(ctx, BookInput{Title: "Out of print", Price: 1000})
	require.NoError(t, err)
	assert.Equal(t, book.StatusSoldOut, empty.Status)

	// 修改忽略库存字段
	updated, err := books.Update(ctx, b.ID, BookInput{Title: "Go in Action 2e", Price: 30000, Stock: 999})
	require.NoError(t, err)
	assert.Equal(t, int64(30000), updated.Price)
	assert.Equal(t, int64(3), f.reload(t, b.ID).Stock)

	page, err := books.List(ctx, "action", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.TotalElements)

	require.NoError(t, books.Delete(ctx, b.ID))
	_, err = books.GetByID(ctx, b.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, books.Delete(ctx, b.ID), ErrNotFound)

	page, err = books.List(ctx, "", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.TotalElements)
}

func TestRestockGoesThroughLedger(t *testing.T) {
	f := newFixture(t)
	snap := newMemSnapshot()
	books := NewBookService(f.db, snap, zap.NewNop())
	ctx := context.Background()
	b := f.seedBook(t, "Restock me", 1000, 1)

	_, err := f.orders.CreateOrder(ctx, alice, "", header, lines(b.ID, 1))
	require.NoError(t, err)
	assert.Equal(t, book.StatusSoldOut, f.reload(t, b.ID).Status)

	_, err = books.Restock(ctx, b.ID, 0)
	assert.ErrorIs(t, err, ErrValidation)

	got, err := books.Restock(ctx, b.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.Stock)
	assert.Equal(t, book.StatusAvailable, got.Status)

	stock, ok, _ := snap.Get(ctx, b.ID)
	assert.True(t, ok)
	assert.Equal(t, int64(4), stock)

	_, err = books.Restock(ctx, 777, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStockReadsSnapshotThenDatabase(t *testing.T) {
	f := newFixture(t)
	snap := newMemSnapshot()
	books := NewBookService(f.db, snap, zap.NewNop())
	ctx := context.Background()
	b := f.seedBook(t, "Snap", 1000, 7)

	n, err := books.Stock(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	cached, ok, _ := snap.Get(ctx, b.ID)
	require.True(t, ok)
	assert.Equal(t, int64(7), cached)

	// 快照是展示用的，可能短暂落后
	_, err = f.orders.CreateOrder(ctx, alice, "", header, lines(b.ID, 2))
	require.NoError(t, err)
	n, err = books.Stock(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	require.NoError(t, books.RefreshStock(ctx, b.ID))
	n, err = books.Stock(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	// Redis 不可用时回源数据库
	snap.err = errBoom
	n, err = books.Stock(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestSyncAllStock(t *testing.T) {
	f := newFixture(t)
	snap := newMemSnapshot()
	books := NewBookService(f.db, snap, zap.NewNop())
	ctx := context.Background()
	a := f.seedBook(t, "A", 100, 3)
	b := f.seedBook(t, "B", 100, 4)
	require.NoError(t, snap.Set(ctx, a.ID, 3))
	require.NoError(t, snap.Set(ctx, b.ID, 9))

	fixed, err := books.SyncAllStock(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fixed)
	stock, _, _ := snap.Get(ctx, b.ID)
	assert.Equal(t, int64(4), stock)

	fixed, err = books.SyncAllStock(ctx)
	require.NoError(t, err)
	assert.Zero(t, fixed)
}
