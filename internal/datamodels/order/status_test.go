package order

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNext(t *testing.T) {
	cases := []struct {
		from Status
		act  Action
		to   Status
		ok   bool
	}{
		{StatusCreated, ActionCancel, StatusCanceled, true},
		{StatusPaid, ActionCancel, StatusCanceled, true},
		{StatusShipped, ActionCancel, "", false},
		{StatusCompleted, ActionCancel, "", false},
		{StatusCanceled, ActionCancel, "", false},
		{StatusCreated, ActionPay, StatusPaid, true},
		{StatusPaid, ActionShip, StatusShipped, true},
		{StatusShipped, ActionComplete, StatusCompleted, true},
		{StatusCreated, ActionShip, "", false},
		{StatusCanceled, ActionPay, "", false},
	}
	for _, c := range cases {
		to, ok := Next(c.from, c.act)
		assert.Equal(t, c.ok, ok, "%s --%s-->", c.from, c.act)
		assert.Equal(t, c.to, to, "%s --%s-->", c.from, c.act)
	}
}

func TestSources(t *testing.T) {
	assert.ElementsMatch(t, []Status{StatusCreated, StatusPaid}, ActionCancel.Sources())
	assert.Equal(t, []Status{StatusShipped}, ActionComplete.Sources())
}

func TestActionFor(t *testing.T) {
	a, ok := ActionFor(StatusCanceled)
	assert.True(t, ok)
	assert.Equal(t, ActionCancel, a)

	_, ok = ActionFor(StatusCreated)
	assert.False(t, ok)
}

func TestApplyTotals(t *testing.T) {
	o := &Order{Lines: []*Line{
		{Quantity: 2, UnitPrice: 10000, Subtotal: 20000},
		{Quantity: 1, UnitPrice: 15500, Subtotal: 15500},
	}}
	assert.NoError(t, o.ApplyTotals())
	assert.Equal(t, int64(35500), o.TotalPrice)
	assert.Equal(t, int64(0), o.DiscountAmount)
	assert.Equal(t, o.TotalPrice, o.FinalPrice)
}

func TestApplyTotalsOverflow(t *testing.T) {
	half := int64(math.MaxInt64/2 + 1)
	o := &Order{Lines: []*Line{
		{Quantity: 1, UnitPrice: half, Subtotal: half},
		{Quantity: 1, UnitPrice: half, Subtotal: half},
	}}
	assert.ErrorIs(t, o.ApplyTotals(), ErrTotalOverflow)
	assert.Zero(t, o.TotalPrice)
	assert.Zero(t, o.FinalPrice)

	o.Lines = o.Lines[:1]
	assert.NoError(t, o.ApplyTotals())
	assert.Equal(t, half, o.FinalPrice)
}
