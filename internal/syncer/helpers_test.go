package syncer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/localstore"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// =====================
// mocks
// =====================

type mockCartAPI struct{ mock.Mock }

func (m *mockCartAPI) GetCart(ctx context.Context) ([]model.CartLine, error) {
	args := m.Called(ctx)
	lines, _ := args.Get(0).([]model.CartLine)
	return lines, args.Error(1)
}

func (m *mockCartAPI) AddCartItem(ctx context.Context, productID model.ProductID, quantity int) error {
	return m.Called(ctx, productID, quantity).Error(0)
}

func (m *mockCartAPI) UpdateCartItem(ctx context.Context, itemID string, quantity int) error {
	return m.Called(ctx, itemID, quantity).Error(0)
}

func (m *mockCartAPI) DeleteCartItem(ctx context.Context, itemID string) error {
	return m.Called(ctx, itemID).Error(0)
}

type mockWishlistAPI struct{ mock.Mock }

func (m *mockWishlistAPI) GetWishlist(ctx context.Context) ([]model.WishlistEntry, error) {
	args := m.Called(ctx)
	entries, _ := args.Get(0).([]model.WishlistEntry)
	return entries, args.Error(1)
}

func (m *mockWishlistAPI) AddWishlistItem(ctx context.Context, productID model.ProductID) error {
	return m.Called(ctx, productID).Error(0)
}

func (m *mockWishlistAPI) DeleteWishlistItem(ctx context.Context, productID model.ProductID) error {
	return m.Called(ctx, productID).Error(0)
}

func (m *mockWishlistAPI) Recommendations(ctx context.Context, limit int) ([]model.RecommendedProduct, error) {
	args := m.Called(ctx, limit)
	items, _ := args.Get(0).([]model.RecommendedProduct)
	return items, args.Error(1)
}

// =====================
// fakes
// =====================

// サーバーが応答して断った失敗（apiclient.StatusError 相当）
type serverReject int

func (s serverReject) Error() string   { return fmt.Sprintf("status %d", int(s)) }
func (s serverReject) HTTPStatus() int { return int(s) }

type fakeAuth struct{ v atomic.Bool }

func newAuth(authenticated bool) *fakeAuth {
	a := &fakeAuth{}
	a.v.Store(authenticated)
	return a
}

func (a *fakeAuth) IsAuthenticated() bool { return a.v.Load() }
func (a *fakeAuth) set(v bool)            { a.v.Store(v) }

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// =====================
// builders
// =====================

func newLocal() *localstore.Local {
	return localstore.New(localstore.NewMemoryStore(), nil)
}

// 読み込みに時間がかかるストア（ファイルやredisの代わり）
type slowStore struct {
	*localstore.MemoryStore
	delay time.Duration
}

func (s slowStore) Get(ctx context.Context, key string) ([]byte, error) {
	time.Sleep(s.delay)
	b, err := s.MemoryStore.Get(ctx, key)
	time.Sleep(s.delay / 2)
	return b, err
}

func newSlowLocal() *localstore.Local {
	return localstore.New(slowStore{MemoryStore: localstore.NewMemoryStore(), delay: 2 * time.Millisecond}, nil)
}

func line(itemID string, pid model.ProductID, qty int, price int64) model.CartLine {
	return model.NewCartLine(itemID, pid, qty, &model.ProductSnapshot{Name: "item " + pid.String(), Price: decimal.NewFromInt(price)})
}

func entry(pid model.ProductID, price int64) model.WishlistEntry {
	return model.WishlistEntry{ProductID: pid, Name: "item " + pid.String(), Price: decimal.NewFromInt(price)}
}

func newCartSyncer(api CartAPI, auth Auth, local *localstore.Local, clock *fakeClock) *CartSyncer {
	return NewCartSyncer(api, auth, local, NewEnvelope[[]model.CartLine](DefaultTTL, clock.Now), nil)
}
