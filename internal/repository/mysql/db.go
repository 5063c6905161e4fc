package mysql

import (
	"sync"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tunho/webservice-hw2/internal/config"
	"github.com/tunho/webservice-hw2/internal/datamodels/book"
	"github.com/tunho/webservice-hw2/internal/datamodels/cart"
	"github.com/tunho/webservice-hw2/internal/datamodels/order"
	"github.com/tunho/webservice-hw2/internal/datamodels/user"
)

var (
	db   *gorm.DB
	once sync.Once
)

// Init 初始化全局 GORM 实例并自动迁移表结构
func Init(cfg *config.MySQLConfig) *gorm.DB {
	once.Do(func() {
		var err error
		db, err = gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{TranslateError: true})
		if err != nil {
			zap.L().Fatal("failed to connect mysql", zap.Error(err))
		}

		sqlDB, err := db.DB()
		if err != nil {
			zap.L().Fatal("failed to get sql.DB", zap.Error(err))
		}
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}

		if err = Migrate(db); err != nil {
			zap.L().Fatal("auto migrate failed", zap.Error(err))
		}
	})
	return db
}

// Migrate 自动迁移全部表结构
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&user.User{},
		&book.Book{},
		&order.Order{},
		&order.Line{},
		&cart.Cart{},
		&cart.CartItem{},
	)
}

// DB 获取全局 DB
func DB() *gorm.DB {
	return db
}
