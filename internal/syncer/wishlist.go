package syncer

import (
	"context"
	"sync"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/localstore"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	RecommendationLimit    = 8
	RecommendationDebounce = 300 * time.Millisecond
)

// WishlistAPI はリモートのほしい物リスト/おすすめAPI（*apiclient.Client が満たす）
type WishlistAPI interface {
	GetWishlist(ctx context.Context) ([]model.WishlistEntry, error)
	AddWishlistItem(ctx context.Context, productID model.ProductID) error
	DeleteWishlistItem(ctx context.Context, productID model.ProductID) error
	Recommendations(ctx context.Context, limit int) ([]model.RecommendedProduct, error)
}

// WishlistCaches は Provider が持つキャッシュ
type WishlistCaches struct {
	Entries         *Envelope[[]model.WishlistEntry]
	Recommendations *Envelope[[]model.RecommendedProduct]
}

// WishlistSyncer はカートと同じ構成で、一覧が変わるとおすすめを更新する。
type WishlistSyncer struct {
	api    WishlistAPI
	auth   Auth
	local  *localstore.Local
	cart   *CartSyncer
	cache  *Envelope[[]model.WishlistEntry]
	recs   *Envelope[[]model.RecommendedProduct]
	logger *zap.Logger
	now    func() time.Time

	mu        sync.Mutex
	mirror    []model.WishlistEntry
	recMirror []model.RecommendedProduct

	debounce *Debouncer
	localMu  sync.Mutex // ゲストの local 読み書き
	mergeMu  sync.Mutex

	// 非同期のおすすめ更新
	bgCtx    context.Context
	bgCancel context.CancelFunc
	bgMu     sync.Mutex
	closed   bool
	wg       sync.WaitGroup
}

func NewWishlistSyncer(api WishlistAPI, auth Auth, local *localstore.Local, cart *CartSyncer, caches WishlistCaches, logger *zap.Logger) *WishlistSyncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if caches.Entries == nil {
		caches.Entries = NewEnvelope[[]model.WishlistEntry](DefaultTTL, nil)
	}
	if caches.Recommendations == nil {
		caches.Recommendations = NewEnvelope[[]model.RecommendedProduct](DefaultTTL, nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &WishlistSyncer{
		api:      api,
		auth:     auth,
		local:    local,
		cart:     cart,
		cache:    caches.Entries,
		recs:     caches.Recommendations,
		logger:   logger,
		now:      time.Now,
		mirror:   []model.WishlistEntry{},
		bgCtx:    ctx,
		bgCancel: cancel,
	}
	w.debounce = NewDebouncer(RecommendationDebounce, func() {
		w.goBackground(func(ctx context.Context) {
			w.FetchRecommendations(ctx, false)
		})
	})
	return w
}

// Close は保留中のおすすめ更新を止め、実行中のものを待つ
func (w *WishlistSyncer) Close() {
	w.bgMu.Lock()
	w.closed = true
	w.bgMu.Unlock()

	w.debounce.Stop()
	w.bgCancel()
	w.wg.Wait()
}

// =====================
// read
// =====================

func (w *WishlistSyncer) FetchEntries(ctx context.Context, force bool) []model.WishlistEntry {
	if !w.auth.IsAuthenticated() {
		entries := w.local.LoadWishlist(ctx)
		w.warnConflicts(entries)
		w.setMirror(entries)
		return cloneEntries(entries)
	}

	if !force {
		if data, ok := w.cache.Get(); ok {
			w.setMirror(data)
			return cloneEntries(data)
		}
	}

	entries, err := w.fetchRemote(ctx)
	if err != nil {
		w.logger.Warn("wishlist fetch failed, falling back to local snapshot", zap.Error(err))
		entries = w.local.LoadWishlist(ctx)
		w.setMirror(entries)
		return cloneEntries(entries)
	}
	return entries
}

func (w *WishlistSyncer) fetchRemote(ctx context.Context) ([]model.WishlistEntry, error) {
	gen := w.cache.Begin()
	entries, err := w.api.GetWishlist(ctx)
	if err != nil {
		return nil, err
	}
	w.warnConflicts(entries)

	w.mu.Lock()
	if !w.cache.Commit(gen, entries) {
		out := cloneEntries(w.mirror)
		w.mu.Unlock()
		w.logger.Debug("discarding stale wishlist response", zap.Uint64("generation", gen))
		return out, nil
	}
	w.mirror = cloneEntries(entries)
	w.mu.Unlock()

	w.onEntriesChanged(entries)
	return cloneEntries(entries), nil
}

func (w *WishlistSyncer) Entries() []model.WishlistEntry {
	w.mu.Lock()
	defer w.mu.Unlock()
	return cloneEntries(w.mirror)
}

func (w *WishlistSyncer) IsInWishlist(productID model.ProductID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := findEntry(w.mirror, productID)
	return ok
}

// FetchRecommendations は GET /recommendations?limit=8。
// 失敗時は固定の4件を返す（空にはしない）。
func (w *WishlistSyncer) FetchRecommendations(ctx context.Context, force bool) []model.RecommendedProduct {
	if !force {
		if data, ok := w.recs.Get(); ok {
			w.setRecommendations(data)
			return append([]model.RecommendedProduct(nil), data...)
		}
	}

	gen := w.recs.Begin()
	items, err := w.api.Recommendations(ctx, RecommendationLimit)
	if err != nil {
		w.logger.Warn("recommendations fetch failed, using fallback list", zap.Error(err))
		fallback := model.FallbackRecommendations()
		w.setRecommendations(fallback)
		return fallback
	}
	if items == nil {
		items = []model.RecommendedProduct{}
	}
	if w.recs.Commit(gen, items) {
		w.setRecommendations(items)
	}
	return append([]model.RecommendedProduct(nil), items...)
}

func (w *WishlistSyncer) Recommendations() []model.RecommendedProduct {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]model.RecommendedProduct(nil), w.recMirror...)
}

// =====================
// mutations
// =====================

func (w *WishlistSyncer) Add(ctx context.Context, productID model.ProductID, details *model.ProductSnapshot) Result {
	if productID.IsZero() {
		return rejected(ErrInvalidProduct)
	}

	if !w.auth.IsAuthenticated() {
		w.localMu.Lock()
		entries := w.local.LoadWishlist(ctx)
		if _, ok := findEntry(entries, productID); ok {
			w.localMu.Unlock()
			w.setMirror(entries)
			return confirmed()
		}
		res := w.saveLocal(ctx, withEntry(entries, model.NewWishlistEntry(productID, details, w.now())))
		w.localMu.Unlock()
		w.refreshRecommendationsAsync()
		return res
	}

	if err := w.api.AddWishlistItem(ctx, productID); err != nil {
		w.logger.Warn("add to wishlist failed", zap.String("product_id", productID.String()), zap.Error(err))
		return rejected(err)
	}

	// 商品情報があればキャッシュに足すだけ、無ければ取り直す
	applied := false
	if details != nil {
		entry := model.NewWishlistEntry(productID, details, w.now())
		applied = w.applyToCache(func(entries []model.WishlistEntry) []model.WishlistEntry {
			return withEntry(entries, entry)
		})
	}
	if !applied {
		if _, err := w.fetchRemote(ctx); err != nil {
			w.logger.Warn("wishlist refetch failed", zap.Error(err))
		}
	}

	w.refreshRecommendationsAsync()
	return confirmed()
}

func (w *WishlistSyncer) Remove(ctx context.Context, productID model.ProductID) Result {
	if !w.auth.IsAuthenticated() {
		w.localMu.Lock()
		res := w.saveLocal(ctx, withoutEntry(w.local.LoadWishlist(ctx), productID))
		w.localMu.Unlock()
		w.refreshRecommendationsAsync()
		return res
	}

	if err := w.api.DeleteWishlistItem(ctx, productID); err != nil {
		w.logger.Warn("remove from wishlist failed", zap.String("product_id", productID.String()), zap.Error(err))
		return rejected(err)
	}

	applied := w.applyToCache(func(entries []model.WishlistEntry) []model.WishlistEntry {
		return withoutEntry(entries, productID)
	})
	if !applied {
		if _, err := w.fetchRemote(ctx); err != nil {
			w.logger.Warn("wishlist refetch failed", zap.Error(err))
		}
	}

	w.refreshRecommendationsAsync()
	return confirmed()
}

// MoveToCart はほしい物リストから外してカートに数量1で入れる。
// カート追加後にリストの削除が失敗した場合は再取得で整合させる（両方に残ることは許容）。
func (w *WishlistSyncer) MoveToCart(ctx context.Context, productID model.ProductID) Result {
	w.mu.Lock()
	entry, ok := findEntry(w.mirror, productID)
	w.mu.Unlock()
	if !ok {
		return rejected(ErrNotInWishlist)
	}

	w.removeOptimistic(productID)

	if res := w.cart.AddLine(ctx, productID, 1, entry.Snapshot()); !res.OK {
		return w.rollback(ctx, res.Err)
	}

	if err := w.deleteBackend(ctx, productID); err != nil {
		w.logger.Warn("wishlist delete after move failed", zap.String("product_id", productID.String()), zap.Error(err))
		return w.rollback(ctx, err)
	}
	return confirmed()
}

// MoveAllToCart は全件をカートへ移し、成功した分だけリストから消す。
// 認証済みはカート追加を並行に、ゲストは同じ local の cart を書くので1件ずつ。
func (w *WishlistSyncer) MoveAllToCart(ctx context.Context) BatchResult {
	w.mu.Lock()
	entries := cloneEntries(w.mirror)
	w.mu.Unlock()
	if len(entries) == 0 {
		return BatchResult{Err: ErrWishlistEmpty}
	}

	w.mu.Lock()
	w.mirror = []model.WishlistEntry{}
	w.cache.Replace([]model.WishlistEntry{})
	w.mu.Unlock()
	w.onEntriesChanged(nil)

	authenticated := w.auth.IsAuthenticated()
	results := make([]ItemResult, len(entries))
	var g errgroup.Group
	for i, e := range entries {
		i, e := i, e
		add := func() error {
			res := w.cart.AddLine(ctx, e.ProductID, 1, e.Snapshot())
			results[i] = ItemResult{ProductID: e.ProductID, Err: res.Err}
			return nil
		}
		if !authenticated {
			_ = add()
			continue
		}
		g.Go(add)
	}
	_ = g.Wait()

	moved := make([]model.ProductID, 0, len(entries))
	for _, r := range results {
		if r.Err == nil {
			moved = append(moved, r.ProductID)
		}
	}

	if authenticated {
		var dg errgroup.Group
		for i := range results {
			i := i
			if results[i].Err != nil {
				continue
			}
			dg.Go(func() error {
				if err := w.api.DeleteWishlistItem(ctx, results[i].ProductID); err != nil {
					results[i].Err = err
				}
				return nil
			})
		}
		_ = dg.Wait()
	} else {
		w.localMu.Lock()
		remaining := w.local.LoadWishlist(ctx)
		for _, pid := range moved {
			remaining = withoutEntry(remaining, pid)
		}
		err := w.local.SaveWishlist(ctx, remaining)
		w.localMu.Unlock()
		if err != nil {
			for i := range results {
				if results[i].Err == nil {
					results[i].Err = err
				}
			}
		}
	}

	batch := BatchResult{Items: results}
	if !batch.OK() {
		for _, f := range batch.Failed() {
			w.logger.Warn("move to cart failed", zap.String("product_id", f.ProductID.String()), zap.Error(f.Err))
		}
		w.FetchEntries(ctx, true)
	}
	return batch
}

// Reset はログアウト時にキャッシュと一覧を捨てる
func (w *WishlistSyncer) Reset() {
	w.debounce.Stop()
	w.mu.Lock()
	defer w.mu.Unlock()
	w.mirror = []model.WishlistEntry{}
	w.cache.Reset()
}

// =====================
// internal
// =====================

func (w *WishlistSyncer) deleteBackend(ctx context.Context, productID model.ProductID) error {
	if w.auth.IsAuthenticated() {
		return w.api.DeleteWishlistItem(ctx, productID)
	}
	w.localMu.Lock()
	defer w.localMu.Unlock()
	return w.local.SaveWishlist(ctx, withoutEntry(w.local.LoadWishlist(ctx), productID))
}

func (w *WishlistSyncer) removeOptimistic(productID model.ProductID) {
	w.mu.Lock()
	w.cache.Mutate(func(entries []model.WishlistEntry) []model.WishlistEntry {
		return withoutEntry(entries, productID)
	})
	w.mirror = withoutEntry(w.mirror, productID)
	entries := cloneEntries(w.mirror)
	w.mu.Unlock()
	w.onEntriesChanged(entries)
}

// キャッシュにデータがあるときだけ適用する
func (w *WishlistSyncer) applyToCache(fn func([]model.WishlistEntry) []model.WishlistEntry) bool {
	w.mu.Lock()
	if !w.cache.Mutate(fn) {
		w.mu.Unlock()
		return false
	}
	data, _ := w.cache.Data()
	w.mirror = cloneEntries(data)
	w.mu.Unlock()

	w.onEntriesChanged(data)
	return true
}

func (w *WishlistSyncer) rollback(ctx context.Context, cause error) Result {
	w.FetchEntries(ctx, true)
	return rolledBack(cause)
}

func (w *WishlistSyncer) saveLocal(ctx context.Context, entries []model.WishlistEntry) Result {
	if err := w.local.SaveWishlist(ctx, entries); err != nil {
		return rejected(err)
	}
	w.setMirror(entries)
	return confirmed()
}

func (w *WishlistSyncer) setMirror(entries []model.WishlistEntry) {
	w.mu.Lock()
	w.mirror = cloneEntries(entries)
	w.mu.Unlock()
	w.onEntriesChanged(entries)
}

func (w *WishlistSyncer) setRecommendations(items []model.RecommendedProduct) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.recMirror = append([]model.RecommendedProduct(nil), items...)
}

// 一覧が変わるたびに呼ぶ。空でなければデバウンスしておすすめを更新する。
func (w *WishlistSyncer) onEntriesChanged(entries []model.WishlistEntry) {
	if len(entries) == 0 {
		w.debounce.Stop()
		return
	}
	w.debounce.Trigger()
}

func (w *WishlistSyncer) refreshRecommendationsAsync() {
	w.goBackground(func(ctx context.Context) {
		w.FetchRecommendations(ctx, true)
	})
}

func (w *WishlistSyncer) goBackground(fn func(ctx context.Context)) {
	w.bgMu.Lock()
	defer w.bgMu.Unlock()
	if w.closed {
		return
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		fn(w.bgCtx)
	}()
}

func (w *WishlistSyncer) warnConflicts(entries []model.WishlistEntry) {
	for _, e := range entries {
		if e.IdentityConflict {
			w.logger.Warn("wishlist entry has conflicting product_id and id, using product_id",
				zap.String("product_id", e.ProductID.String()))
		}
	}
}
