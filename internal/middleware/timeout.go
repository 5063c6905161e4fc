package middleware

import (
	"context"
	"time"

	"github.com/kataras/iris/v12"
)

// Timeout 给请求的 context 加上截止时间，下游事务随之取消
func Timeout(d time.Duration) iris.Handler {
	return func(ctx iris.Context) {
		if d <= 0 {
			ctx.Next()
			return
		}
		c, cancel := context.WithTimeout(ctx.Request().Context(), d)
		defer cancel()
		ctx.ResetRequest(ctx.Request().WithContext(c))
		ctx.Next()
	}
}
