package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tunho/webservice-hw2/internal/config"
	"github.com/tunho/webservice-hw2/internal/infra/redis"
	"github.com/tunho/webservice-hw2/internal/logger"
	"github.com/tunho/webservice-hw2/internal/repository/mysql"
	"github.com/tunho/webservice-hw2/internal/service"
)

// 库存快照一致性检查：定期以 MySQL 为准修正 Redis
func main() {
	configDir := flag.String("config", ".", "directory containing config.yaml")
	interval := flag.Duration("interval", 5*time.Minute, "check interval")
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l.Info("stock sync started", zap.Duration("interval", *interval))
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		fixed, err := books.SyncAllStock(ctx)
		if err != nil {
			l.Error("stock sync failed", zap.Error(err))
		} else {
			l.Info("stock sync finished", zap.Int("fixed", fixed))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
