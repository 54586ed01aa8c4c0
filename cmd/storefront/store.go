package main

import (
	"fmt"
	"os"
	"path/filepath"

	"storefront/internal/config"
	"storefront/internal/localstore"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// sqlite で path がディレクトリのときのファイル名
const sqliteFileName = "local.db"

// openStore は設定に合わせてローカルストアを開く。closeは必ず呼ぶ。
func openStore(cfg config.StoreConfig) (localstore.Store, func(), error) {
	noop := func() {}

	switch cfg.Driver {
	case config.StoreMemory:
		return localstore.NewMemoryStore(), noop, nil

	case config.StoreFile:
		fs, err := localstore.NewFileStore(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return fs, noop, nil

	case config.StoreSQLite:
		path := cfg.Path
		if fi, err := os.Stat(path); err == nil && fi.IsDir() {
			path = filepath.Join(path, sqliteFileName)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create store dir: %w", err)
		}
		gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store %s: %w", path, err)
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, nil, err
		}
		s, err := localstore.NewGormStore(gdb)
		if err != nil {
			_ = sqlDB.Close()
			return nil, nil, err
		}
		return s, func() { _ = sqlDB.Close() }, nil

	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return localstore.NewRedisStore(client, cfg.RedisPrefix), func() { _ = client.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
