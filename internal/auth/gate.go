package auth

import (
	"fmt"

	"github.com/tunho/webservice-hw2/internal/datamodels/order"
	"github.com/tunho/webservice-hw2/internal/datamodels/user"
)

// Decision 鉴权结果
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(format string, args ...any) Decision {
	return Decision{Reason: fmt.Sprintf(format, args...)}
}

// Gate 统一的鉴权入口，业务代码不再各自写角色判断
type Gate struct{}

func NewGate() *Gate { return &Gate{} }

// CanActOnOrder 订单的查看与状态流转：本人或管理员
func (g *Gate) CanActOnOrder(p Principal, o *order.Order) Decision {
	if p.IsAdmin() {
		return allow()
	}
	if p.UserID != 0 && p.UserID == o.UserID {
		return allow()
	}
	return deny("user %d is not the owner of order %d", p.UserID, o.ID)
}

// RequireRole 要求操作者具备其中一个角色
func (g *Gate) RequireRole(p Principal, roles ...user.Role) Decision {
	for _, r := range roles {
		if p.Role == r {
			return allow()
		}
	}
	return deny("role %s is not permitted", p.Role)
}
