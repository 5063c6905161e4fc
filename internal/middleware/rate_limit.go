package middleware

import (
	"sync"
	"time"

	"github.com/kataras/iris/v12"

	"github.com/tunho/webservice-hw2/internal/config"
)

// TokenBucket 令牌桶限流器
type TokenBucket struct {
	capacity   float64   // 桶容量
	tokens     float64   // 当前令牌数
	refillRate float64   // 每秒补充的令牌数
	lastRefill time.Time // 上次补充时间
	now        func() time.Time
	mu         sync.Mutex
}

// NewTokenBucket 创建令牌桶，初始为满
func NewTokenBucket(capacity, refillRate int64) *TokenBucket {
	if capacity <= 0 {
		capacity = 1
	}
	tb := &TokenBucket{
		capacity:   float64(capacity),
		tokens:     float64(capacity),
		refillRate: float64(refillRate),
		now:        time.Now,
	}
	tb.lastRefill = tb.now()
	return tb
}

// Allow 检查是否允许请求
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	// 按经过的时间补充，不足一个的部分累积到下次
	now := tb.now()
	if elapsed := now.Sub(tb.lastRefill).Seconds(); elapsed > 0 {
		tb.tokens += elapsed * tb.refillRate
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastRefill = now
	}

	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

// RateLimitMiddleware 限流中间件
func RateLimitMiddleware(bucket *TokenBucket) iris.Handler {
	return func(ctx iris.Context) {
		if !bucket.Allow() {
			ctx.StopWithJSON(iris.StatusTooManyRequests, iris.Map{
				"code": iris.StatusTooManyRequests,
				"msg":  "too many requests, please retry later",
			})
			return
		}
		ctx.Next()
	}
}

// OrderRateLimit 下单接口限流，每次调用创建独立的桶
func OrderRateLimit(cfg *config.OrderConfig) iris.Handler {
	return RateLimitMiddleware(NewTokenBucket(cfg.RateCapacity, cfg.RateRefill))
}
