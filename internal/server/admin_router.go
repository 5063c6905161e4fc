package server

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kataras/iris/v12"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tunho/webservice-hw2/internal/datamodels/order"
	"github.com/tunho/webservice-hw2/internal/datamodels/user"
	"github.com/tunho/webservice-hw2/internal/middleware"
	"github.com/tunho/webservice-hw2/internal/service"
)

// RegisterAdminRoutes 注册后台管理端的 HTTP 路由
// 端口通常是 8081，与前台 Web 服务分离。gatherer 为 nil 时使用默认 Registry。
func RegisterAdminRoutes(app *iris.Application, d Deps, gatherer prometheus.Gatherer) {
	log := d.Log
	if log == nil {
		log = zap.L()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if app.Validator == nil {
		app.Validator = validator.New()
	}

	app.Get("/metrics", iris.FromStd(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := app.Party("/admin/api", middleware.Authenticate(d.Resolver), middleware.RequireRole(user.RoleAdmin))

	// ---------- 图书管理 ----------

	api.Get("/books", func(ctx iris.Context) {
		page, size := pageParams(ctx)
		res, err := d.Books.List(ctx.Request().Context(), ctx.URLParam("keyword"), page, size)
		if err != nil {
			writeError(ctx, log, err)
			return
		}
		ok(ctx, res)
	})

	api.Post("/books", func(ctx iris.Context) {
		var req service.BookInput
		if err := ctx.ReadJSON(&req); err != nil {
			badRequest(ctx, err.Error())
			return
		}
		b, err := d.Books.Create(ctx.Request().Context(), req)
		if err != nil {
			writeError(ctx, log, err)
			return
		}
		created(ctx, b)
	})

	api.Put("/books/{id:int64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		var req service.BookInput
		if err := ctx.ReadJSON(&req); err != nil {
			badRequest(ctx, err.Error())
			return
		}
		b, err := d.Books.Update(ctx.Request().Context(), id, req)
		if err != nil {
			writeError(ctx, log, err)
			return
		}
		ok(ctx, b)
	})

	// 软删除
	api.Delete("/books/{id:int64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		if err := d.Books.Delete(ctx.Request().Context(), id); err != nil {
			writeError(ctx, log, err)
			return
		}
		ok(ctx, nil)
	})

	// 补货
	api.Post("/books/{id:int64}/restock", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		var req struct {
			Quantity int64 `json:"quantity" validate:"gt=0"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			badRequest(ctx, err.Error())
			return
		}
		b, err := d.Books.Restock(ctx.Request().Context(), id, req.Quantity)
		if err != nil {
			writeError(ctx, log, err)
			return
		}
		ok(ctx, b)
	})

	// ---------- 订单管理 ----------

	// 最近订单列表
	api.Get("/orders", func(ctx iris.Context) {
		page, size := pageParams(ctx)
		res, err := d.Orders.ListOrders(ctx.Request().Context(), middleware.PrincipalFrom(ctx), page, size)
		if err != nil {
			writeError(ctx, log, err)
			return
		}
		ok(ctx, res)
	})

	api.Get("/orders/{id:int64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		o, err := d.Orders.GetOrder(ctx.Request().Context(), middleware.PrincipalFrom(ctx), id)
		if err != nil {
			writeError(ctx, log, err)
			return
		}
		ok(ctx, o)
	})

	api.Post("/orders/{id:int64}/{action:string}", middleware.Timeout(d.Config.Order.RequestTimeout), func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		transition(ctx, d, log, id, order.Action(strings.ToLower(ctx.Params().Get("action"))))
	})

	// ---------- 用户管理 ----------

	api.Get("/users", func(ctx iris.Context) {
		page, size := pageParams(ctx)
		res, err := d.Users.List(ctx.Request().Context(), page, size)
		if err != nil {
			writeError(ctx, log, err)
			return
		}
		ok(ctx, res)
	})

	// 停用/封禁后该用户的请求被鉴权中间件拒绝（403）
	api.Patch("/users/{id:int64}/status", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		var req struct {
			Status user.Status `json:"status" validate:"required"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			badRequest(ctx, err.Error())
			return
		}
		u, err := d.Users.SetStatus(ctx.Request().Context(), middleware.PrincipalFrom(ctx), id, user.Status(strings.ToUpper(string(req.Status))))
		if err != nil {
			writeError(ctx, log, err)
			return
		}
		ok(ctx, u)
	})

	// ---------- 监控 ----------

	api.Get("/stats", func(ctx iris.Context) {
		ok(ctx, d.Monitor.GetStats())
	})
}
