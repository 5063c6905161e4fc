package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/kataras/iris/v12"
	"go.uber.org/zap"

	"github.com/tunho/webservice-hw2/internal/config"
	"github.com/tunho/webservice-hw2/internal/infra/mq"
	"github.com/tunho/webservice-hw2/internal/infra/redis"
	"github.com/tunho/webservice-hw2/internal/logger"
	"github.com/tunho/webservice-hw2/internal/repository/mysql"
	"github.com/tunho/webservice-hw2/internal/server"
)

func main() {
	configDir := flag.String("config", ".", "directory containing config.yaml")
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
	redisClient := redis.Init(&cfg.Redis)
	publisher := mq.NewPublisher(mq.Init(&cfg.RabbitMQ), cfg.RabbitMQ.Queue)
	defer publisher.Close()

	app := iris.New()
	server.RegisterRoutes(app, server.NewDeps(cfg, db, redisClient, publisher, l))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = app.Shutdown(shutdown)
	}()

	addr := cfg.Server.Addr()
	l.Info("web server listening", zap.String("addr", addr))
	if err := app.Listen(addr, iris.WithoutInterruptHandler, iris.WithoutServerError(iris.ErrServerClosed)); err != nil {
		l.Fatal("web server stopped", zap.Error(err))
	}
}
