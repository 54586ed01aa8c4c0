package db

import (
	"context"
	"fmt"

	"storefront/internal/config"
	"storefront/internal/domain/model"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect はDBに接続して *gorm.DB を返す。
// DB_DRIVER=sqlite なら SQLITE_PATH、postgres なら DATABASE_URL か POSTGRES_*。
func Connect(cfg config.Config) (*gorm.DB, error) {
	gcfg := &gorm.Config{TranslateError: true}
	if cfg.IsProd() {
		gcfg.Logger = logger.Default.LogMode(logger.Silent)
	}

	switch cfg.DBDriver {
	case config.DriverSQLite:
		db, err := gorm.Open(sqlite.Open(cfg.SQLitePath), gcfg)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		// sqliteは書き込みが1本なので接続も1本にする
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	default:
		db, err := gorm.Open(postgres.Open(cfg.PostgresDSN()), gcfg)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return db, nil
	}
}

// Migrate はサーバーで使うテーブルを作る
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.RefreshToken{},
		&model.Product{},
		&model.Cart{},
		&model.CartItem{},
		&model.WishlistItem{},
	)
}

// デモ用の商品。商品が1件も無いときだけ入れる。
var demoProducts = []model.Product{
	{Name: "ASUS FHD Gaming Laptop", Description: "15.6inch / RTX", Price: 9600, ImageURL: "/images/laptop.jpg", Stock: 20, IsActive: true},
	{Name: "Wireless Bluetooth Headphones", Description: "noise cancelling", Price: 1200, ImageURL: "/images/headphones.jpg", Stock: 50, IsActive: true},
	{Name: "Smart Watch Series 7", Description: "GPS + cellular", Price: 3200, ImageURL: "/images/smartwatch.jpg", Stock: 30, IsActive: true},
	{Name: "Smartphone 13 Pro", Description: "256GB", Price: 8500, ImageURL: "/images/smartphone.jpg", Stock: 15, IsActive: true},
	{Name: "Mechanical Keyboard", Description: "tenkeyless", Price: 1500, ImageURL: "", Stock: 40, IsActive: true},
	{Name: "USB-C Hub", Description: "7 in 1", Price: 450, ImageURL: "", Stock: 100, IsActive: true},
}

// Seed はデモ商品を入れる（既にあれば何もしない）
func Seed(ctx context.Context, db *gorm.DB) (int, error) {
	var count int64
	if err := db.WithContext(ctx).Model(&model.Product{}).Count(&count).Error; err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}

	products := make([]model.Product, len(demoProducts))
	copy(products, demoProducts)
	if err := db.WithContext(ctx).Create(&products).Error; err != nil {
		return 0, err
	}
	return len(products), nil
}
