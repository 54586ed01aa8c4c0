package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"storefront/internal/domain/model"

	"go.uber.org/zap"
)

// 永続キー
const (
	KeyCart           = "cart"
	KeyWishlist       = "wishlist"
	KeyRecentlyViewed = "recentlyViewed"
	KeyAccessToken    = "access_token"
	KeyRefreshToken   = "refresh_token"
	KeyUser           = "user"
)

// recentlyViewedの最大件数
const MaxRecentlyViewed = 10

// Local はStoreの上にカート/ほしい物リスト/トークン用の型付きヘルパーを載せたもの。
// 読み込み失敗は既定値で返す（ログだけ残す）。
type Local struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	watchers map[int]func([]model.ViewedProduct)
	nextID   int
}

func New(store Store, logger *zap.Logger) *Local {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Local{
		store:    store,
		logger:   logger,
		now:      time.Now,
		watchers: map[int]func([]model.ViewedProduct){},
	}
}

// テスト用に時計を差し替える
func (l *Local) WithClock(now func() time.Time) *Local {
	l.now = now
	return l
}

// JSONで読み込む。無い/壊れている場合はfalse。
func (l *Local) LoadJSON(ctx context.Context, key string, dst interface{}) bool {
	b, err := l.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false
	}
	if err != nil {
		l.logger.Warn("local store read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if err := json.Unmarshal(b, dst); err != nil {
		l.logger.Warn("local store value is not valid json", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (l *Local) SaveJSON(ctx context.Context, key string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := l.store.Set(ctx, key, b); err != nil {
		l.logger.Warn("local store write failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

func (l *Local) Remove(ctx context.Context, key string) error {
	if err := l.store.Remove(ctx, key); err != nil {
		l.logger.Warn("local store remove failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// 全キー削除
func (l *Local) ClearAll(ctx context.Context) error {
	return l.store.Clear(ctx)
}

// =====================
// cart / wishlist
// =====================

func (l *Local) LoadCart(ctx context.Context) []model.CartLine {
	var lines []model.CartLine
	if !l.LoadJSON(ctx, KeyCart, &lines) {
		return []model.CartLine{}
	}
	return lines
}

func (l *Local) SaveCart(ctx context.Context, lines []model.CartLine) error {
	if lines == nil {
		lines = []model.CartLine{}
	}
	return l.SaveJSON(ctx, KeyCart, lines)
}

func (l *Local) LoadWishlist(ctx context.Context) []model.WishlistEntry {
	var entries []model.WishlistEntry
	if !l.LoadJSON(ctx, KeyWishlist, &entries) {
		return []model.WishlistEntry{}
	}
	return entries
}

func (l *Local) SaveWishlist(ctx context.Context, entries []model.WishlistEntry) error {
	if entries == nil {
		entries = []model.WishlistEntry{}
	}
	return l.SaveJSON(ctx, KeyWishlist, entries)
}

// =====================
// tokens / user
// =====================

func (l *Local) GetString(ctx context.Context, key string) string {
	var s string
	if !l.LoadJSON(ctx, key, &s) {
		return ""
	}
	return s
}

func (l *Local) SetString(ctx context.Context, key string, v string) error {
	return l.SaveJSON(ctx, key, v)
}

// =====================
// recentlyViewed
// =====================

// 先頭に追加（同じ商品は前に移動）し、最大10件に切る。
func (l *Local) AddRecentlyViewed(ctx context.Context, p model.ViewedProduct) []model.ViewedProduct {
	current := l.RecentlyViewed(ctx)

	p.ViewedAt = l.now()
	next := make([]model.ViewedProduct, 0, len(current)+1)
	next = append(next, p)
	for _, v := range current {
		if v.ProductID == p.ProductID {
			continue
		}
		next = append(next, v)
	}
	if len(next) > MaxRecentlyViewed {
		next = next[:MaxRecentlyViewed]
	}

	if err := l.SaveJSON(ctx, KeyRecentlyViewed, next); err != nil {
		return []model.ViewedProduct{}
	}
	l.notifyViewed(next)
	return next
}

func (l *Local) RecentlyViewed(ctx context.Context) []model.ViewedProduct {
	var items []model.ViewedProduct
	if !l.LoadJSON(ctx, KeyRecentlyViewed, &items) {
		return []model.ViewedProduct{}
	}
	return items
}

// recentlyViewed の変更通知。cart/wishlist には通知しない。
func (l *Local) OnRecentlyViewedChange(fn func([]model.ViewedProduct)) (cancel func()) {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.watchers[id] = fn
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.watchers, id)
		l.mu.Unlock()
	}
}

func (l *Local) notifyViewed(items []model.ViewedProduct) {
	l.mu.Lock()
	fns := make([]func([]model.ViewedProduct), 0, len(l.watchers))
	for _, fn := range l.watchers {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		out := make([]model.ViewedProduct, len(items))
		copy(out, items)
		fn(out)
	}
}

// Watcher は外部からのキー変更を通知できるStore（FileStore）。
type Watcher interface {
	Watch(ctx context.Context, key string, fn func(), logger *zap.Logger) (stop func(), err error)
}

// FollowExternal は他プロセスが書いた recentlyViewed を拾って通知する。
func (l *Local) FollowExternal(ctx context.Context, w Watcher) (stop func(), err error) {
	return w.Watch(ctx, KeyRecentlyViewed, func() {
		l.notifyViewed(l.RecentlyViewed(ctx))
	}, l.logger)
}
