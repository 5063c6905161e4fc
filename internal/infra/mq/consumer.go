package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/tunho/webservice-hw2/internal/datamodels/order"
)

// ErrDrop 处理器返回该错误时消息被丢弃而不是重新入队
var ErrDrop = errors.New("drop message")

// Handler 处理一条订单事件
type Handler func(ctx context.Context, evt *order.Event) error

// Consumer 手动确认模式的订单事件消费者
type Consumer struct {
	conn     *amqp.Connection
	queue    string
	prefetch int
	handler  Handler
	log      *zap.Logger
}

func NewConsumer(conn *amqp.Connection, queue string, prefetch int, handler Handler, log *zap.Logger) *Consumer {
	if prefetch <= 0 {
		prefetch = 1
	}
	return &Consumer{conn: conn, queue: queue, prefetch: prefetch, handler: handler, log: log}
}

// Run 阻塞消费直到 ctx 结束或连接断开
func (c *Consumer) Run(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := declare(ch, c.queue); err != nil {
		return fmt.Errorf("declare queue %s: %w", c.queue, err)
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	c.log.Info("consumer started", zap.String("queue", c.queue))
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

// handle 成功 ack；格式错误或 ErrDrop 丢弃；其余错误重新入队
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	var evt order.Event
	if err := json.Unmarshal(d.Body, &evt); err != nil {
		c.log.Warn("invalid message", zap.String("message_id", d.MessageId), zap.Error(err))
		_ = d.Nack(false, false)
		return
	}
	if err := c.handler(ctx, &evt); err != nil {
		requeue := !errors.Is(err, ErrDrop) && !d.Redelivered
		c.log.Error("handle order event failed",
			zap.String("event_id", evt.ID),
			zap.Int64("order_id", evt.OrderID),
			zap.Bool("requeue", requeue),
			zap.Error(err))
		_ = d.Nack(false, requeue)
		return
	}
	if err := d.Ack(false); err != nil {
		c.log.Warn("ack failed", zap.String("event_id", evt.ID), zap.Error(err))
	}
}
