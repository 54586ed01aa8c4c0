package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"storefront/internal/config"
	"storefront/internal/infra/db"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testAPI struct {
	t *testing.T
	e *echo.Echo
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	cfg := config.Config{
		DBDriver:   config.DriverSQLite,
		SQLitePath: ":memory:",
		JWTSecret:  "test-secret",
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
		FEURL:      "*",
	}
	gdb, err := db.Connect(cfg)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	_, err = db.Seed(context.Background(), gdb)
	require.NoError(t, err)

	return &testAPI{t: t, e: New(cfg, gdb, zap.NewNop())}
}

func (a *testAPI) do(method, path string, body interface{}, bearer string) *httptest.ResponseRecorder {
	a.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type loginBody struct {
	User struct {
		ID    int64  `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

type lineBody struct {
	ItemID    string `json:"item_id"`
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
	ImageURL  string `json:"image_url"`
}

func (a *testAPI) login() loginBody {
	a.t.Helper()
	creds := map[string]string{"email": "shopper@example.com", "password": "a long enough password"}

	rec := a.do(http.MethodPost, "/auth/register", creds, "")
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(http.MethodPost, "/auth/login", creds, "")
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[loginBody](a.t, rec)
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t)
	rec := a.do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth_RegisterLoginRefresh(t *testing.T) {
	a := newTestAPI(t)
	lb := a.login()

	assert.Equal(t, "shopper@example.com", lb.User.Email)
	assert.Equal(t, 60, lb.ExpiresIn)
	require.NotEmpty(t, lb.AccessToken)
	require.NotEmpty(t, lb.RefreshToken)

	// 重複登録は409
	rec := a.do(http.MethodPost, "/auth/register", map[string]string{"email": "shopper@example.com", "password": "a long enough password"}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	// パスワード違いは401
	rec = a.do(http.MethodPost, "/auth/login", map[string]string{"email": "shopper@example.com", "password": "wrong password!!"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Bearerのリフレッシュトークンでローテーション
	rec = a.do(http.MethodPost, "/auth/refresh", nil, lb.RefreshToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rotated := decode[loginBody](t, rec)
	assert.NotEqual(t, lb.RefreshToken, rotated.RefreshToken)

	// 古いトークンの再利用は401、さらに新しい方も無効になる
	rec = a.do(http.MethodPost, "/auth/refresh", nil, lb.RefreshToken)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = a.do(http.MethodPost, "/auth/refresh", nil, rotated.RefreshToken)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCart_RequiresAuth(t *testing.T) {
	a := newTestAPI(t)
	rec := a.do(http.MethodGet, "/cart", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCart_Flow(t *testing.T) {
	a := newTestAPI(t)
	tok := a.login().AccessToken

	rec := a.do(http.MethodGet, "/cart", nil, tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]lineBody](t, rec))

	rec = a.do(http.MethodPost, "/cart", map[string]int64{"product_id": 2, "quantity": 1}, tok)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = a.do(http.MethodPost, "/cart", map[string]int64{"product_id": 2, "quantity": 2}, tok)
	require.Equal(t, http.StatusOK, rec.Code)

	lines := decode[[]lineBody](t, rec)
	require.Len(t, lines, 1)
	assert.Equal(t, int64(3), lines[0].Quantity)
	assert.Equal(t, int64(1200), lines[0].Price)
	assert.Equal(t, "Wireless Bluetooth Headphones", lines[0].Name)

	itemID := lines[0].ItemID
	_, err := strconv.ParseInt(itemID, 10, 64)
	require.NoError(t, err)

	rec = a.do(http.MethodPost, "/cart/"+itemID, map[string]int64{"quantity": 5}, tok)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(5), decode[[]lineBody](t, rec)[0].Quantity)

	// ゲストのローカルIDはサーバーに無い
	rec = a.do(http.MethodPost, "/cart/local-1-abc", map[string]int64{"quantity": 1}, tok)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(http.MethodPost, "/cart", map[string]int64{"product_id": 9999, "quantity": 1}, tok)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(http.MethodDelete, "/cart/"+itemID, nil, tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]lineBody](t, rec))
}

func TestWishlist_Flow(t *testing.T) {
	a := newTestAPI(t)
	tok := a.login().AccessToken

	rec := a.do(http.MethodPost, "/wishlist", map[string]int64{"product_id": 3}, tok)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	// 2回目も成功（重複しない）
	rec = a.do(http.MethodPost, "/wishlist", map[string]int64{"product_id": 3}, tok)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(http.MethodGet, "/wishlist", nil, tok)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]struct {
		ProductID int64     `json:"product_id"`
		Name      string    `json:"name"`
		AddedAt   time.Time `json:"added_at"`
	}](t, rec)
	require.Len(t, entries, 1)
	assert.Equal(t, "Smart Watch Series 7", entries[0].Name)
	assert.False(t, entries[0].AddedAt.IsZero())

	rec = a.do(http.MethodDelete, "/wishlist/3", nil, tok)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = a.do(http.MethodDelete, "/wishlist/3", nil, tok)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecommendationsAndProducts(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(http.MethodGet, "/recommendations?limit=3", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	recs := decode[[]struct {
		ID    int64 `json:"id"`
		IsNew bool  `json:"isNew"`
	}](t, rec)
	assert.Len(t, recs, 3)
	assert.True(t, recs[0].IsNew)

	rec = a.do(http.MethodGet, "/recommendations?limit=abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodGet, "/products?q=smart", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Total int64 `json:"total"`
	}](t, rec)
	assert.Equal(t, int64(2), list.Total)

	rec = a.do(http.MethodGet, "/products/1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(http.MethodGet, "/products/9999", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
