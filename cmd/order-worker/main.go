package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/tunho/webservice-hw2/internal/config"
	"github.com/tunho/webservice-hw2/internal/datamodels/order"
	"github.com/tunho/webservice-hw2/internal/infra/mq"
	"github.com/tunho/webservice-hw2/internal/infra/redis"
	"github.com/tunho/webservice-hw2/internal/logger"
	"github.com/tunho/webservice-hw2/internal/repository/mysql"
	"github.com/tunho/webservice-hw2/internal/service"
)

// 订单事件消费者：根据事件涉及的图书刷新 Redis 库存快照
func main() {
	configDir := flag.String("config", ".", "directory containing config.yaml")
	prefetch := flag.Int("prefetch", 10, "unacked deliveries per consumer")
	flag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	l, err := logger.Init(&cfg.Log)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = l.Sync() }()

	db := mysql.Init(&cfg.MySQL)
	stock := redis.NewStockCache(redis.Init(&cfg.Redis), cfg.Redis.StockTTL)
	books := service.NewBookService(db, stock, l)

	handler := func(ctx context.Context, evt *order.Event) error {
		ids := evt.BookIDs()
		if len(ids) == 0 {
			return mq.ErrDrop
		}
		if err := books.RefreshStock(ctx, ids...); err != nil {
			return err
		}
		l.Debug("stock snapshot refreshed",
			zap.String("event_id", evt.ID),
			zap.String("type", string(evt.Type)),
			zap.Int64s("book_ids", ids))
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer := mq.NewConsumer(mq.Init(&cfg.RabbitMQ), cfg.RabbitMQ.Queue, *prefetch, handler, l.Named("order-worker"))
	if err := consumer.Run(ctx); err != nil {
		l.Fatal("order worker stopped", zap.Error(err))
	}
	l.Info("order worker stopped")
}
