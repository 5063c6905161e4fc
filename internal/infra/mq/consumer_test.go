package mq

import (
	"context"
	"encoding/json"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tunho/webservice-hw2/internal/datamodels/order"
)

type ackRecorder struct {
	acked    int
	nacked   int
	requeued bool
}

func (a *ackRecorder) Ack(uint64, bool) error { a.acked++; return nil }

func (a *ackRecorder) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked++
	a.requeued = requeue
	return nil
}

func (a *ackRecorder) Reject(_ uint64, requeue bool) error {
	a.nacked++
	a.requeued = requeue
	return nil
}

func delivery(t *testing.T, ack amqp.Acknowledger, evt *order.Event) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(evt)
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: ack, Body: body, MessageId: evt.ID}
}

func TestConsumerHandle(t *testing.T) {
	evt := order.NewEvent(order.EventCreated, &order.Order{ID: 5, UserID: 1, Status: order.StatusCreated,
		Lines: []*order.Line{{BookID: 3, Quantity: 1}, {BookID: 3, Quantity: 2}, {BookID: 4, Quantity: 1}}})

	var got *order.Event
	c := NewConsumer(nil, "q", 0, func(_ context.Context, e *order.Event) error {
		got = e
		return nil
	}, zap.NewNop())
	ack := &ackRecorder{}
	c.handle(context.Background(), delivery(t, ack, evt))
	assert.Equal(t, 1, ack.acked)
	require.NotNil(t, got)
	assert.Equal(t, evt.ID, got.ID)
	assert.Equal(t, []int64{3, 4}, got.BookIDs())
}

func TestConsumerHandleFailures(t *testing.T) {
	evt := order.NewEvent(order.EventCanceled, &order.Order{ID: 6})
	ctx := context.Background()

	failing := NewConsumer(nil, "q", 1, func(context.Context, *order.Event) error {
		return assert.AnError
	}, zap.NewNop())
	ack := &ackRecorder{}
	failing.handle(ctx, delivery(t, ack, evt))
	assert.Equal(t, 1, ack.nacked)
	assert.True(t, ack.requeued)

	// 重投递仍失败则不再入队
	ack = &ackRecorder{}
	d := delivery(t, ack, evt)
	d.Redelivered = true
	failing.handle(ctx, d)
	assert.False(t, ack.requeued)

	dropping := NewConsumer(nil, "q", 1, func(context.Context, *order.Event) error {
		return ErrDrop
	}, zap.NewNop())
	ack = &ackRecorder{}
	dropping.handle(ctx, delivery(t, ack, evt))
	assert.False(t, ack.requeued)

	ack = &ackRecorder{}
	failing.handle(ctx, amqp.Delivery{Acknowledger: ack, Body: []byte("{not json")})
	assert.Equal(t, 1, ack.nacked)
	assert.False(t, ack.requeued)
	assert.Zero(t, ack.acked)
}
