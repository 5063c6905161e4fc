package main

import (
	"context"
	"errors"
	"flag"
	"log"

	"go.uber.org/zap"

	"github.com/tunho/webservice-hw2/internal/config"
	"github.com/tunho/webservice-hw2/internal/datamodels/user"
	"github.com/tunho/webservice-hw2/internal/logger"
	"github.com/tunho/webservice-hw2/internal/repository/mysql"
	"github.com/tunho/webservice-hw2/internal/service"
)

var sampleBooks = []service.BookInput{
	{Title: "The Go Programming Language", Authors: "Alan A. A. Donovan, Brian W. Kernighan", Publisher: "Addison-Wesley", ISBN: "9780134190440", Price: 32000, Stock: 20},
	{Title: "Designing Data-Intensive Applications", Authors: "Martin Kleppmann", Publisher: "O'Reilly", ISBN: "9781449373320", Price: 42000, Stock: 10},
	{Title: "Concurrency in Go", Authors: "Katherine Cox-Buday", Publisher: "O'Reilly", ISBN: "9781491941195", Price: 28000, Stock: 15},
	{Title: "Database Internals", Authors: "Alex Petrov", Publisher: "O'Reilly", ISBN: "9781492040347", Price: 38000, Stock: 5},
}

// 初始化管理员账号和示例图书，重复执行时跳过已存在的管理员
func main() {
	configDir := flag.String("config", ".", "directory containing config.yaml")
	email := flag.String("admin-email", "admin@bookstore.local", "admin account email")
	password := flag.String("admin-password", "admin12345", "admin account password")
	withBooks := flag.Bool("books", true, "insert sample books")
	flag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	l, err := logger.Init(&cfg.Log)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	ctx := context.Background()
	db := mysql.Init(&cfg.MySQL)

	users := service.NewUserService(mysql.NewUserRepository(db), &cfg.JWT)
	u, err := users.Register(ctx, *email, "admin", *password)
	switch {
	case err == nil:
		if err := db.Model(&user.User{}).Where("id = ?", u.ID).Update("role", user.RoleAdmin).Error; err != nil {
			l.Fatal("promote admin failed", zap.Error(err))
		}
		l.Info("admin created", zap.String("email", u.Email))
	case errors.Is(err, service.ErrValidation):
		l.Warn("admin not created", zap.Error(err))
	default:
		l.Fatal("create admin failed", zap.Error(err))
	}

	if !*withBooks {
		return
	}
	books := service.NewBookService(db, nil, l)
	for _, in := range sampleBooks {
		b, err := books.Create(ctx, in)
		if err != nil {
			l.Error("create book failed", zap.String("title", in.Title), zap.Error(err))
			continue
		}
		l.Info("book created", zap.Int64("book_id", b.ID), zap.String("title", b.Title))
	}
}
