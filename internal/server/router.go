package server

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kataras/iris/v12"
	"go.uber.org/zap"

	"github.com/tunho/webservice-hw2/internal/auth"
	"github.com/tunho/webservice-hw2/internal/config"
	"github.com/tunho/webservice-hw2/internal/datamodels/order"
	"github.com/tunho/webservice-hw2/internal/middleware"
	"github.com/tunho/webservice-hw2/internal/service"
)

// Deps 路由依赖，由 cmd 组装
type Deps struct {
	Config   *config.Config
	Resolver *auth.PrincipalResolver
	Users    *service.UserService
	Books    *service.BookService
	Carts    *service.CartService
	Orders   *service.OrderService
	Monitor  *service.Monitor
	Log      *zap.Logger
}

type createOrderRequest struct {
	PaymentMethod   order.PaymentMethod `json:"payment_method"`
	ReceiverName    string              `json:"receiver_name"`
	ReceiverPhone   string              `json:"receiver_phone"`
	ShippingAddress string              `json:"shipping_address"`
	Items           []order.LineRequest `json:"items"`
}

func (r createOrderRequest) header() order.Header {
	return order.Header{
		PaymentMethod:   r.PaymentMethod,
		ReceiverName:    r.ReceiverName,
		ReceiverPhone:   r.ReceiverPhone,
		ShippingAddress: r.ShippingAddress,
	}
}

type cartItemRequest struct {
	BookID   int64 `json:"book_id" validate:"gt=0"`
	Quantity int64 `json:"quantity" validate:"gt=0"`
}

// RegisterRoutes 注册前台 HTTP 路由
func RegisterRoutes(app *iris.Application, d Deps) {
	log := d.Log
	if log == nil {
		log = zap.L()
	}
	if app.Validator == nil {
		// ReadJSON 解码后按 validate 标签校验请求体
		app.Validator = validator.New()
	}
	orderTimeout := middleware.Timeout(d.Config.Order.RequestTimeout)

	api := app.Party("/api")

	// 健康检查
	api.Get("/health", func(ctx iris.Context) {
		ok(ctx, nil)
	})

	api.Post("/register", func(ctx iris.Context) {
		var req struct {
			Email    string `json:"email" validate:"required,email"`
			Name     string `json:"name" validate:"required"`
			Password string `json:"password" validate:"required,min=8"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			badRequest(ctx, err.Error())
			return
		}
		u, err := d.Users.Register(ctx.Request().Context(), req.Email, req.Name, req.Password)
		if err != nil {
			writeError(ctx, log, err)
			return
		}
		created(ctx, u)
	})

	api.Post("/login", func(ctx iris.Context) {
		var req struct {
			Email    string `json:"email" validate:"required"`
			Password string `json:"password" validate:"required"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			badRequest(ctx, err.Error())
			return
		}
		token, err := d.Users.Login(ctx.Request().Context(), req.Email, req.Password)
		if err != nil {
			writeError(ctx, log, err)
			return
		}
		ok(ctx, iris.Map{"token": token})
	})

	// ---------- 图书目录（无需登录） ----------

	api.Get("/books", func(ctx iris.Context) {
		page, size := pageParams(ctx)
		res, err := d.Books.List(ctx.Request().Context(), ctx.URLParam("keyword"), page, size)
		if err != nil {
			writeError(ctx, log, err)
			return
		}
		ok(ctx, res)
	})

	api.Get("/books/{id:int64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		b, err := d.Books.GetByID(ctx.Request().Context(), id)
		if err != nil {
			writeError(ctx, log, err)
			return
		}
		ok(ctx, b)
	})

	api.Get("/books/{id:int64}/stock", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		stock, err := d.Books.Stock(ctx.Request().Context(), id)
		if err != nil {
			writeError(ctx, log, err)
			return
		}
		ok(ctx, iris.Map{"book_id": id, "stock": stock})
	})

	// ---------- 需要登录的接口 ----------
	authAPI := api.Party("/", middleware.Authenticate(d.Resolver))

	authAPI.Get("/orders", func(ctx iris.Context) {
		page, size := pageParams(ctx)
		res, err := d.Orders.ListOrders(ctx.Request().Context(), middleware.PrincipalFrom(ctx), page, size)
		if err != nil {
			writeError(ctx, log, err)
			return
		}
		ok(ctx, res)
	})

	authAPI.Get("/orders/{id:int64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		o, err := d.Orders.GetOrder(ctx.Request().Context(), middleware.PrincipalFrom(ctx), id)
		if err != nil {
			writeError(ctx, log, err)
			return
		}
		ok(ctx, o)
	})

	// 下单
	authAPI.Post("/orders", middleware.OrderRateLimit(&d.Config.Order), orderTimeout, func(ctx iris.Context) {
		var req createOrderRequest
		if err := ctx.ReadJSON(&req); err != nil {
			badRequest(ctx, err.Error())
			return
		}
		o, err := d.Orders.CreateOrder(ctx.Request().Context(), middleware.PrincipalFrom(ctx),
			ctx.GetHeader("Idempotency-Key"), req.header(), req.Items)
		if err != nil {
			writeError(ctx, log, err)
			return
		}
		created(ctx, o)
	})

	// 状态流转：cancel / pay 允许本人，ship / complete 只允许管理员
	authAPI.Post("/orders/{id:int64}/{action:string}", orderTimeout, func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		transition(ctx, d, log, id, order.Action(strings.ToLower(ctx.Params().Get("action"))))
	})

	// 兼容按目标状态修改：PATCH /orders/{id}?status=CANCELED
	authAPI.Patch("/orders/{id:int64}", orderTimeout, func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		action, found := order.ActionFor(order.Status(strings.ToUpper(ctx.URLParam("status"))))
		if !found {
			badRequest(ctx, "unsupported target status "+ctx.URLParam("status"))
			return
		}
		transition(ctx, d, log, id, action)
	})

	// ---------- 购物车 ----------

	authAPI.Get("/cart", func(ctx iris.Context) {
		c, err := d.Carts.Get(ctx.Request().Context(), middleware.PrincipalFrom(ctx).UserID)
		if err != nil {
			writeError(ctx, log, err)
			return
		}
		ok(ctx, c)
	})

	authAPI.Post("/cart/items", func(ctx iris.Context) {
		var req cartItemRequest
		if err := ctx.ReadJSON(&req); err != nil {
			badRequest(ctx, err.Error())
			return
		}
		c, err := d.Carts.AddItem(ctx.Request().Context(), middleware.PrincipalFrom(ctx).UserID, req.BookID, req.Quantity)
		if err != nil {
			writeError(ctx, log, err)
			return
		}
		ok(ctx, c)
	})

	authAPI.Put("/cart/items", func(ctx iris.Context) {
		var req cartItemRequest
		if err := ctx.ReadJSON(&req); err != nil {
			badRequest(ctx, err.Error())
			return
		}
		c, err := d.Carts.UpdateItem(ctx.Request().Context(), middleware.PrincipalFrom(ctx).UserID, req.BookID, req.Quantity)
		if err != nil {
			writeError(ctx, log, err)
			return
		}
		ok(ctx, c)
	})

	authAPI.Delete("/cart/items/{book_id:int64}", func(ctx iris.Context) {
		bookID, _ := ctx.Params().GetInt64("book_id")
		c, err := d.Carts.RemoveItem(ctx.Request().Context(), middleware.PrincipalFrom(ctx).UserID, bookID)
		if err != nil {
			writeError(ctx, log, err)
			return
		}
		ok(ctx, c)
	})

	authAPI.Delete("/cart", func(ctx iris.Context) {
		if err := d.Carts.Clear(ctx.Request().Context(), middleware.PrincipalFrom(ctx).UserID); err != nil {
			writeError(ctx, log, err)
			return
		}
		ok(ctx, nil)
	})

	authAPI.Post("/cart/checkout", middleware.OrderRateLimit(&d.Config.Order), orderTimeout, func(ctx iris.Context) {
		var req createOrderRequest
		if err := ctx.ReadJSON(&req); err != nil {
			badRequest(ctx, err.Error())
			return
		}
		o, err := d.Orders.CheckoutCart(ctx.Request().Context(), middleware.PrincipalFrom(ctx),
			ctx.GetHeader("Idempotency-Key"), req.header())
		if err != nil {
			writeError(ctx, log, err)
			return
		}
		created(ctx, o)
	})
}

func transition(ctx iris.Context, d Deps, log *zap.Logger, id int64, action order.Action) {
	p := middleware.PrincipalFrom(ctx)
	if (action == order.ActionShip || action == order.ActionComplete) && !p.IsAdmin() {
		ctx.StopWithJSON(iris.StatusForbidden, iris.Map{"code": iris.StatusForbidden, "msg": "only admins can " + string(action) + " orders"})
		return
	}
	o, err := d.Orders.Transition(ctx.Request().Context(), p, id, action)
	if err != nil {
		writeError(ctx, log, err)
		return
	}
	ok(ctx, o)
}
