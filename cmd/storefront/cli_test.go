package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"storefront/internal/config"
	"storefront/internal/infra/db"
	"storefront/internal/server"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const cliPassword = "a very long cli password"

func startAPI(t *testing.T) string {
	t.Helper()

	cfg := config.Config{
		DBDriver:   config.DriverSQLite,
		SQLitePath: ":memory:",
		JWTSecret:  "cli-test",
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
		FEURL:      "*",
	}
	gdb, err := db.Connect(cfg)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	_, err = db.Seed(context.Background(), gdb)
	require.NoError(t, err)

	srv := httptest.NewServer(server.New(cfg, gdb, zap.NewNop()))
	t.Cleanup(srv.Close)
	return srv.URL
}

// baseArgs は一時ディレクトリの設定とファイルストアを使う
func baseArgs(t *testing.T, apiURL, driver string) []string {
	t.Helper()
	t.Setenv("STOREFRONT_API_URL", "")
	t.Setenv("STOREFRONT_STORE", "")
	t.Setenv("STOREFRONT_PASSWORD", "")

	dir := t.TempDir()
	storePath := filepath.Join(dir, "store")
	if driver == config.StoreSQLite {
		storePath = filepath.Join(dir, "local.db")
	}
	return []string{
		"--config", filepath.Join(dir, "config.yaml"),
		"--api-url", apiURL,
		"--store", driver,
		"--store-path", storePath,
	}
}

func execute(base []string, args ...string) (string, error) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(append([]string{}, base...), args...))
	err := cmd.Execute()
	return out.String(), err
}

func run(t *testing.T, base []string, args ...string) string {
	t.Helper()
	out, err := execute(base, args...)
	require.NoError(t, err, out)
	return out
}

func TestCLI_GuestThenLoginMerge(t *testing.T) {
	base := baseArgs(t, startAPI(t), config.StoreFile)

	out := run(t, base, "cart", "add", "2", "--qty", "2")
	assert.Contains(t, out, "Wireless Bluetooth Headphones")
	assert.Contains(t, out, "total: 2400.00")

	out = run(t, base, "wishlist", "add", "3")
	assert.Contains(t, out, "Smart Watch Series 7")

	assert.Contains(t, run(t, base, "whoami"), "guest")

	run(t, base, "register", "cli@example.com", "--password", cliPassword)
	out = run(t, base, "login", "cli@example.com", "--password", cliPassword)
	assert.Contains(t, out, "logged in as cli@example.com")
	assert.Contains(t, out, "merged 1/1 guest cart items")
	assert.Contains(t, out, "merged 1/1 guest wishlist items")

	assert.Contains(t, run(t, base, "whoami"), "cli@example.com")

	out = run(t, base, "wishlist", "move-all")
	assert.Contains(t, out, "moved 1/1 products to the cart")

	out = run(t, base, "cart", "--refresh")
	assert.Contains(t, out, "Wireless Bluetooth Headphones")
	assert.Contains(t, out, "Smart Watch Series 7")
	assert.Contains(t, out, "total: 5600.00")

	assert.Contains(t, run(t, base, "wishlist"), "wishlist is empty")

	assert.Contains(t, run(t, base, "logout"), "logged out")
	assert.Contains(t, run(t, base, "whoami"), "guest")
	assert.Contains(t, run(t, base, "logout"), "not logged in")
}

func TestCLI_LoginRequiresPassword(t *testing.T) {
	base := baseArgs(t, startAPI(t), config.StoreMemory)

	_, err := execute(base, "login", "cli@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password")
}

func TestCLI_SQLiteStoreUpdateAndRemove(t *testing.T) {
	base := baseArgs(t, startAPI(t), config.StoreSQLite)

	run(t, base, "cart", "add", "1")
	out := run(t, base, "cart", "list")
	require.Contains(t, out, "ASUS FHD Gaming Laptop")

	// ゲストの行IDは local- で始まる
	itemID := firstItemID(t, out)
	out = run(t, base, "cart", "update", itemID, "3")
	assert.Contains(t, out, "total: 28800.00")

	_, err := execute(base, "cart", "update", itemID, "three")
	require.Error(t, err)

	out = run(t, base, "cart", "remove", itemID)
	assert.Contains(t, out, "cart is empty")
}

func TestCLI_ViewAndViewed(t *testing.T) {
	base := baseArgs(t, startAPI(t), config.StoreFile)

	assert.Contains(t, run(t, base, "viewed"), "nothing viewed yet")

	out := run(t, base, "view", "1")
	assert.Contains(t, out, "ASUS FHD Gaming Laptop")
	assert.Contains(t, out, "price: 9600.00")
	run(t, base, "view", "4")

	out = run(t, base, "viewed")
	assert.Contains(t, out, "ASUS FHD Gaming Laptop")
	assert.Contains(t, out, "Smartphone 13 Pro")
	assert.Less(t, bytes.Index([]byte(out), []byte("Smartphone")), bytes.Index([]byte(out), []byte("ASUS")))

	_, err := execute(base, "view", "9999")
	require.Error(t, err)
}

func TestCLI_FollowNeedsFileStore(t *testing.T) {
	base := baseArgs(t, startAPI(t), config.StoreMemory)
	_, err := execute(base, "viewed", "--follow")
	require.Error(t, err)
}

func TestCLI_Recommendations(t *testing.T) {
	base := baseArgs(t, startAPI(t), config.StoreMemory)
	out := run(t, base, "recommendations")
	assert.Contains(t, out, "NEW")
	assert.Contains(t, out, "USB-C Hub")
}

func TestCLI_ConfigInitAndShow(t *testing.T) {
	apiURL := startAPI(t)
	base := baseArgs(t, apiURL, config.StoreFile)
	path := base[1]

	out := run(t, base, "config", "init")
	assert.Contains(t, out, "wrote")
	_, err := os.Stat(path)
	require.NoError(t, err)

	_, err = execute(base, "config", "init")
	require.Error(t, err)
	run(t, base, "config", "init", "--force")

	out = run(t, base, "config", "show")
	assert.Contains(t, out, "api_url: "+apiURL)
	assert.Contains(t, out, "driver: file")
}

func TestCLI_UnknownStore(t *testing.T) {
	base := baseArgs(t, "http://127.0.0.1:1", "floppy")
	_, err := execute(base, "cart")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store driver")
}

// 表の2行目の先頭列
func firstItemID(t *testing.T, table string) string {
	t.Helper()
	lines := bytes.Split([]byte(table), []byte("\n"))
	require.GreaterOrEqual(t, len(lines), 2)
	fields := bytes.Fields(lines[1])
	require.NotEmpty(t, fields)
	return string(fields[0])
}
