package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tunho/webservice-hw2/internal/datamodels/order"
	"github.com/tunho/webservice-hw2/internal/datamodels/user"
)

func TestCanActOnOrder(t *testing.T) {
	g := NewGate()
	o := &order.Order{ID: 7, UserID: 1}

	assert.True(t, g.CanActOnOrder(Principal{UserID: 1, Role: user.RoleUser}, o).Allowed)
	assert.True(t, g.CanActOnOrder(Principal{UserID: 99, Role: user.RoleAdmin}, o).Allowed)

	d := g.CanActOnOrder(Principal{UserID: 2, Role: user.RoleUser}, o)
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "not the owner")

	// 卖家身份不等于订单所有者
	assert.False(t, g.CanActOnOrder(Principal{UserID: 3, Role: user.RoleSeller}, o).Allowed)
	assert.False(t, g.CanActOnOrder(Principal{}, &order.Order{ID: 8}).Allowed)
}

func TestRequireRole(t *testing.T) {
	g := NewGate()
	assert.True(t, g.RequireRole(Principal{Role: user.RoleAdmin}, user.RoleAdmin).Allowed)
	assert.True(t, g.RequireRole(Principal{Role: user.RoleSeller}, user.RoleAdmin, user.RoleSeller).Allowed)
	assert.False(t, g.RequireRole(Principal{Role: user.RoleUser}, user.RoleAdmin).Allowed)
}
