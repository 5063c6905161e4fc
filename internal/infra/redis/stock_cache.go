package redis

import (
	"context"
	"fmt"
	"time"

	radix "github.com/mediocregopher/radix/v3"
)

const stockKey = "book:stock:%d" // bookID

// StockCache 图书库存快照。只供展示读取，下单永远以数据库为准。
type StockCache struct {
	client radix.Client
	ttl    time.Duration
}

// NewStockCache ttl 为 0 时不过期
func NewStockCache(client radix.Client, ttl time.Duration) *StockCache {
	return &StockCache{client: client, ttl: ttl}
}

func (c *StockCache) Get(_ context.Context, bookID int64) (int64, bool, error) {
	var stock int64
	mn := radix.MaybeNil{Rcv: &stock}
	if err := c.client.Do(radix.Cmd(&mn, "GET", fmt.Sprintf(stockKey, bookID))); err != nil {
		return 0, false, err
	}
	if mn.Nil {
		return 0, false, nil
	}
	return stock, true, nil
}

func (c *StockCache) Set(_ context.Context, bookID, stock int64) error {
	key := fmt.Sprintf(stockKey, bookID)
	if c.ttl > 0 {
		return c.client.Do(radix.FlatCmd(nil, "SETEX", key, int64(c.ttl/time.Second), stock))
	}
	return c.client.Do(radix.FlatCmd(nil, "SET", key, stock))
}

// Invalidate 删除快照，下次读取回源
func (c *StockCache) Invalidate(_ context.Context, bookIDs ...int64) error {
	if len(bookIDs) == 0 {
		return nil
	}
	keys := make([]string, len(bookIDs))
	for i, id := range bookIDs {
		keys[i] = fmt.Sprintf(stockKey, id)
	}
	return c.client.Do(radix.Cmd(nil, "DEL", keys...))
}
