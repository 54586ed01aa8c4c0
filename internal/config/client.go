package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// ClientConfig は storefront CLI の設定（YAML）
type ClientConfig struct {
	APIURL   string      `yaml:"api_url"`
	LogLevel string      `yaml:"log_level"`
	Store    StoreConfig `yaml:"store"`
}

// StoreConfig はローカル保存先
type StoreConfig struct {
	Driver string `yaml:"driver"` // memory / file / sqlite / redis
	Path   string `yaml:"path"`   // file: ディレクトリ, sqlite: DBファイル

	RedisAddr   string `yaml:"redis_addr"`
	RedisPrefix string `yaml:"redis_prefix"`
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		APIURL:   "http://localhost:8080",
		LogLevel: "warn",
		Store: StoreConfig{
			Driver:      StoreFile,
			Path:        defaultStoreDir(),
			RedisAddr:   "localhost:6379",
			RedisPrefix: "storefront:",
		},
	}
}

func defaultStoreDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".storefront"
	}
	return filepath.Join(home, ".storefront")
}

// DefaultClientConfigPath は ~/.storefront/config.yaml
func DefaultClientConfigPath() string {
	return filepath.Join(defaultStoreDir(), "config.yaml")
}

// LoadClient はYAMLを読み、環境変数で上書きする。
// ファイルが無い場合は既定値のまま。
func LoadClient(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return ClientConfig{}, fmt.Errorf("read client config: %w", err)
		default:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return ClientConfig{}, fmt.Errorf("parse client config %s: %w", path, err)
			}
		}
	}

	if v := os.Getenv("STOREFRONT_API_URL"); v != "" {
		cfg.APIURL = v
	}
	if v := os.Getenv("STOREFRONT_STORE"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Store.RedisAddr = v
	}

	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	cfg.Store.Driver = strings.ToLower(cfg.Store.Driver)

	if err := cfg.validate(); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

func (c ClientConfig) validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("api_url is required")
	}
	switch c.Store.Driver {
	case StoreMemory:
	case StoreFile, StoreSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for %s", c.Store.Driver)
		}
	case StoreRedis:
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("store.redis_addr is required")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	return nil
}

// Save は現在の設定をYAMLで書き出す
func (c ClientConfig) Save(path string) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
