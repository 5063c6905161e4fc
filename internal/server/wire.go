package server

import (
	radix "github.com/mediocregopher/radix/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tunho/webservice-hw2/internal/auth"
	"github.com/tunho/webservice-hw2/internal/config"
	"github.com/tunho/webservice-hw2/internal/infra/redis"
	"github.com/tunho/webservice-hw2/internal/repository/mysql"
	"github.com/tunho/webservice-hw2/internal/service"
)

// NewDeps 用已初始化的基础设施组装服务；events 为 nil 时不发布订单事件
func NewDeps(cfg *config.Config, db *gorm.DB, redisClient radix.Client, events service.EventPublisher, log *zap.Logger) Deps {
	userRepo := mysql.NewUserRepository(db)
	monitor := service.GetMonitor()

	var stock service.StockSnapshot
	if redisClient != nil {
		stock = redis.NewStockCache(redisClient, cfg.Redis.StockTTL)
	}

	return Deps{
		Config:   cfg,
		Resolver: auth.NewPrincipalResolver(&cfg.JWT, userRepo, auth.NewPrincipalCache(redisClient, cfg.Auth.PrincipalCacheTTL), log),
		Users:    service.NewUserService(userRepo, &cfg.JWT),
		Books:    service.NewBookService(db, stock, log),
		Carts:    service.NewCartService(db, log),
		Orders:   service.NewOrderService(db, cfg.Order, events, monitor, log),
		Monitor:  monitor,
		Log:      log,
	}
}
