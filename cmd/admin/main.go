package main

import (
	"flag"
	"log"

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
	server.RegisterAdminRoutes(app, server.NewDeps(cfg, db, redisClient, publisher, l), nil)

	addr := cfg.AdminServer.Addr()
	l.Info("admin server listening", zap.String("addr", addr))
	if err := app.Listen(addr, iris.WithoutServerError(iris.ErrServerClosed)); err != nil {
		l.Fatal("admin server stopped", zap.Error(err))
	}
}
