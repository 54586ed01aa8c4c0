package main

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/config"
	"storefront/internal/logging"
	"storefront/internal/storefront"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// cli はフラグと、PersistentPreRunE で決まる設定を持つ
type cli struct {
	configPath  string
	apiURL      string
	storeDriver string
	storePath   string
	verbose     bool
	timeout     time.Duration

	cfg    config.ClientConfig
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "storefront",
		Short: "Local-first storefront client",
		Long: `Keeps a cart, a wishlist and a recently-viewed list on this machine and
syncs them with the storefront API once you log in.

As a guest everything is stored locally. Logging in merges the guest cart
and wishlist into your account.

Example:
  storefront cart add 2 --qty 3
  storefront login you@example.com --password '...'
  storefront wishlist move-all`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&c.configPath, "config", "c", config.DefaultClientConfigPath(), "Config file (YAML)")
	pf.StringVar(&c.apiURL, "api-url", "", "Storefront API base URL (overrides config)")
	pf.StringVar(&c.storeDriver, "store", "", "Local store: memory, file, sqlite or redis (overrides config)")
	pf.StringVar(&c.storePath, "store-path", "", "Directory (file) or database file (sqlite) for the local store")
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "Enable debug logging")
	pf.DurationVar(&c.timeout, "timeout", 30*time.Second, "Timeout for a single command")

	root.AddCommand(
		c.registerCmd(),
		c.loginCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.cartCmd(),
		c.wishlistCmd(),
		c.recommendationsCmd(),
		c.viewCmd(),
		c.viewedCmd(),
		c.configCmd(),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadClient(c.configPath)
	if err != nil {
		return err
	}
	if c.apiURL != "" {
		cfg.APIURL = c.apiURL
	}
	if c.storeDriver != "" {
		cfg.Store.Driver = c.storeDriver
	}
	if c.storePath != "" {
		cfg.Store.Path = c.storePath
	}
	c.cfg = cfg

	level := cfg.LogLevel
	if c.verbose {
		level = "debug"
	}
	logger, err := logging.New("dev", level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	c.logger = logger
	return nil
}

// withProvider はローカルストアを開いて Provider を作り、fn の後で片付ける。
// コマンド1回ごとに作るので定期更新は使わない。
func (c *cli) withProvider(cmd *cobra.Command, fn func(ctx context.Context, p *storefront.Provider) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
	defer cancel()
	return c.runProvider(ctx, fn)
}

func (c *cli) runProvider(ctx context.Context, fn func(ctx context.Context, p *storefront.Provider) error) error {
	store, closeStore, err := openStore(c.cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	p, err := storefront.New(ctx, storefront.Options{
		APIURL:          c.cfg.APIURL,
		Store:           store,
		Logger:          c.logger,
		RefreshInterval: -1,
	})
	if err != nil {
		return err
	}
	defer p.Close()
	defer func() { _ = c.logger.Sync() }()

	return fn(ctx, p)
}
