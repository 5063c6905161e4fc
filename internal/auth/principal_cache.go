package auth

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"time"

	radix "github.com/mediocregopher/radix/v3"
)

// PrincipalCache 把 token -> 已解析身份缓存在 Redis，减少每次请求的 JWT 校验与查库
type PrincipalCache struct {
	redis radix.Client
	ttl   time.Duration
}

// NewPrincipalCache 构建缓存器；redis 为 nil 时缓存关闭
func NewPrincipalCache(redis radix.Client, ttl time.Duration) *PrincipalCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &PrincipalCache{redis: redis, ttl: ttl}
}

func (c *PrincipalCache) cacheKey(token string) string {
	sum := sha1.Sum([]byte(token))
	return "auth:principal:" + hex.EncodeToString(sum[:])
}

// Get 尝试命中缓存
func (c *PrincipalCache) Get(ctx context.Context, token string) (Principal, bool, error) {
	if c == nil || c.redis == nil {
		return Principal{}, false, nil
	}
	key := c.cacheKey(token)
	var raw string
	if err := c.redis.Do(radix.Cmd(&raw, "GET", key)); err != nil {
		return Principal{}, false, err
	}
	if raw == "" {
		return Principal{}, false, nil
	}
	var p Principal
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		// 数据损坏，清理后走正常解析
		_ = c.redis.Do(radix.Cmd(nil, "DEL", key))
		return Principal{}, false, nil
	}
	return p, true, nil
}

// Set 缓存解析结果
func (c *PrincipalCache) Set(ctx context.Context, token string, p Principal) error {
	if c == nil || c.redis == nil {
		return nil
	}
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.redis.Do(radix.FlatCmd(nil, "SETEX", c.cacheKey(token), int64(c.ttl/time.Second), body))
}
