package server

import (
	"context"
	"errors"

	"github.com/kataras/iris/v12"
	"go.uber.org/zap"

	"github.com/tunho/webservice-hw2/internal/service"
)

func ok(ctx iris.Context, data any) {
	_ = ctx.JSON(iris.Map{"code": 0, "msg": "ok", "data": data})
}

func created(ctx iris.Context, data any) {
	ctx.StatusCode(iris.StatusCreated)
	_ = ctx.JSON(iris.Map{"code": 0, "msg": "created", "data": data})
}

func badRequest(ctx iris.Context, msg string) {
	ctx.StopWithJSON(iris.StatusBadRequest, iris.Map{"code": iris.StatusBadRequest, "msg": msg})
}

// writeError 把服务层错误分类映射为 HTTP 状态码
func writeError(ctx iris.Context, log *zap.Logger, err error) {
	var (
		stockErr    *service.InsufficientStockError
		conflictErr *service.StateConflictError
	)
	status := iris.StatusInternalServerError
	msg := err.Error()
	var data any

	switch {
	case errors.As(err, &stockErr):
		status = iris.StatusBadRequest
		data = iris.Map{
			"book_id":   stockErr.BookID,
			"title":     stockErr.Title,
			"requested": stockErr.Requested,
			"available": stockErr.Available,
		}
	case errors.As(err, &conflictErr):
		status = iris.StatusConflict
		data = iris.Map{
			"order_id":       conflictErr.OrderID,
			"current_status": conflictErr.Current,
			"action":         conflictErr.Action,
		}
	case errors.Is(err, service.ErrValidation):
		status = iris.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		status = iris.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		status = iris.StatusForbidden
	case errors.Is(err, service.ErrUnauthorized):
		status = iris.StatusUnauthorized
	case errors.Is(err, context.DeadlineExceeded):
		status = iris.StatusGatewayTimeout
		msg = "request timed out"
	default:
		log.Error("request failed",
			zap.String("method", ctx.Method()),
			zap.String("path", ctx.Path()),
			zap.Error(err))
		msg = "internal error"
	}

	body := iris.Map{"code": status, "msg": msg}
	if data != nil {
		body["data"] = data
	}
	ctx.StopWithJSON(status, body)
}

func pageParams(ctx iris.Context) (int, int) {
	return ctx.URLParamIntDefault("page", 0), ctx.URLParamIntDefault("size", 20)
}
