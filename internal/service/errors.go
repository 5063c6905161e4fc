package service

import (
	"context"
	"errors"
	"fmt"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"github.com/tunho/webservice-hw2/internal/datamodels/order"
)

// 错误分类。除 ErrStorage 外都是请求终态，不做自动重试。
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrForbidden         = errors.New("forbidden")
	ErrStateConflict     = errors.New("state conflict")
	ErrStorage           = errors.New("storage failure")
	ErrUnauthorized      = errors.New("unauthorized")
)

// Validation 构造输入校验错误
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// invalid 把领域层的校验错误归入 ErrValidation，保留原错误链
func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

// NotFound 构造资源不存在错误
func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// InsufficientStockError 库存不足，携带请求量与可用量
type InsufficientStockError struct {
	BookID    int64
	Title     string
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for book %q (id=%d): requested %d, available %d",
		e.Title, e.BookID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// ForbiddenError 鉴权拒绝
type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string { return "forbidden: " + e.Reason }

func (e *ForbiddenError) Is(target error) bool { return target == ErrForbidden }

// StateConflictError 非法状态流转，Current 为冲突发生时订单的实际状态
type StateConflictError struct {
	OrderID int64
	Current order.Status
	Action  order.Action
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("order %d cannot %s from status %s", e.OrderID, e.Action, e.Current)
}

func (e *StateConflictError) Is(target error) bool { return target == ErrStateConflict }

// StorageError 事务无法提交等存储层故障
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// wrapStorage 把未分类的底层错误包装成 ErrStorage，已分类的原样返回
func wrapStorage(op string, err error) error {
	if err == nil || isClassified(err) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func isClassified(err error) bool {
	for _, target := range []error{ErrValidation, ErrNotFound, ErrInsufficientStock, ErrForbidden, ErrStateConflict, ErrStorage, ErrUnauthorized} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// isNotFound GORM 未找到记录
func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// Retryable 只有存储层的瞬时故障可以整单重试；请求超时/取消不重试
func Retryable(err error) bool {
	if !errors.Is(err, ErrStorage) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return false
	}
	var me *mysqldriver.MySQLError
	if errors.As(err, &me) {
		// 1205 锁等待超时，1213 死锁
		return me.Number == 1205 || me.Number == 1213
	}
	return true
}
