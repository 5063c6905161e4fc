package middleware

import (
	"errors"

	"github.com/kataras/iris/v12"

	"github.com/tunho/webservice-hw2/internal/auth"
	"github.com/tunho/webservice-hw2/internal/datamodels/user"
)

const principalKey = "principal"

// Authenticate 解析 Authorization 头，把 Principal 放进请求上下文
func Authenticate(r *auth.PrincipalResolver) iris.Handler {
	return func(ctx iris.Context) {
		p, err := r.Resolve(ctx.Request().Context(), ctx.GetHeader("Authorization"))
		if err != nil {
			status := iris.StatusUnauthorized
			if errors.Is(err, auth.ErrInactiveUser) {
				status = iris.StatusForbidden
			}
			ctx.StopWithJSON(status, iris.Map{"code": status, "msg": err.Error()})
			return
		}
		ctx.Values().Set(principalKey, p)
		ctx.Next()
	}
}

// RequireRole 要求已认证用户具备其中一个角色，需挂在 Authenticate 之后
func RequireRole(roles ...user.Role) iris.Handler {
	gate := auth.NewGate()
	return func(ctx iris.Context) {
		if d := gate.RequireRole(PrincipalFrom(ctx), roles...); !d.Allowed {
			ctx.StopWithJSON(iris.StatusForbidden, iris.Map{"code": iris.StatusForbidden, "msg": d.Reason})
			return
		}
		ctx.Next()
	}
}

// PrincipalFrom 取出当前请求的 Principal，未认证时为零值
func PrincipalFrom(ctx iris.Context) auth.Principal {
	p, _ := ctx.Values().Get(principalKey).(auth.Principal)
	return p
}
