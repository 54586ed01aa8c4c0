package syncer

import (
	"context"
	"sync"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/localstore"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// 認証済みのとき、この間隔でカートを強制再取得する
const BackgroundRefreshInterval = 5 * time.Minute

// CartAPI はリモートのカートAPI（*apiclient.Client が満たす）
type CartAPI interface {
	GetCart(ctx context.Context) ([]model.CartLine, error)
	AddCartItem(ctx context.Context, productID model.ProductID, quantity int) error
	UpdateCartItem(ctx context.Context, itemID string, quantity int) error
	DeleteCartItem(ctx context.Context, itemID string) error
}

// Auth はゲストか認証済みかを返す（*session.Session が満たす）
type Auth interface {
	IsAuthenticated() bool
}

// CartSyncer は「今カートに何が入っているか」の唯一の窓口。
// ゲストは local、認証済みはキャッシュ→リモート。
type CartSyncer struct {
	api    CartAPI
	auth   Auth
	local  *localstore.Local
	cache  *Envelope[[]model.CartLine]
	logger *zap.Logger
	now    func() time.Time

	// mirror は画面に見せる一覧。cache と一緒に mu で守る。
	mu     sync.Mutex
	mirror []model.CartLine

	// ゲストの local の読み→変更→書きを1本にする
	localMu sync.Mutex
	mergeMu sync.Mutex
}

func NewCartSyncer(api CartAPI, auth Auth, local *localstore.Local, cache *Envelope[[]model.CartLine], logger *zap.Logger) *CartSyncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cache == nil {
		cache = NewEnvelope[[]model.CartLine](DefaultTTL, nil)
	}
	return &CartSyncer{
		api:    api,
		auth:   auth,
		local:  local,
		cache:  cache,
		logger: logger,
		now:    time.Now,
		mirror: []model.CartLine{},
	}
}

// =====================
// read
// =====================

// FetchLines は現在のカートを返す。エラーは返さない（失敗時はローカルの内容）。
func (c *CartSyncer) FetchLines(ctx context.Context, force bool) []model.CartLine {
	if !c.auth.IsAuthenticated() {
		lines := normalizeLines(c.local.LoadCart(ctx))
		c.warnConflicts(lines)
		c.setMirror(lines)
		return cloneLines(lines)
	}

	if !force {
		if data, ok := c.cache.Get(); ok {
			c.setMirror(data)
			return cloneLines(data)
		}
	}

	lines, err := c.fetchRemote(ctx)
	if err != nil {
		c.logger.Warn("cart fetch failed, falling back to local snapshot", zap.Error(err))
		return normalizeLines(c.local.LoadCart(ctx))
	}
	return lines
}

// fetchRemote は GET /cart してキャッシュを差し替える。
// 取得中に新しい取得/更新があった場合はレスポンスを捨てて今のキャッシュを返す。
func (c *CartSyncer) fetchRemote(ctx context.Context) ([]model.CartLine, error) {
	gen := c.cache.Begin()
	lines, err := c.api.GetCart(ctx)
	if err != nil {
		return nil, err
	}
	c.warnConflicts(lines)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.cache.Commit(gen, lines) {
		c.logger.Debug("discarding stale cart response", zap.Uint64("generation", gen))
		return cloneLines(c.mirror), nil
	}
	c.mirror = cloneLines(lines)
	return cloneLines(lines), nil
}

func (c *CartSyncer) Lines() []model.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneLines(c.mirror)
}

func (c *CartSyncer) Total() decimal.Decimal {
	return ComputeTotal(c.Lines())
}

// IsInCart は画面の一覧だけを見る（I/Oなし）
func (c *CartSyncer) IsInCart(productID model.ProductID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return indexOfProduct(c.mirror, productID) >= 0
}

// =====================
// mutations
// =====================

func (c *CartSyncer) AddLine(ctx context.Context, productID model.ProductID, quantity int, details *model.ProductSnapshot) Result {
	if productID.IsZero() {
		return rejected(ErrInvalidProduct)
	}
	quantity = clampQuantity(quantity)

	if !c.auth.IsAuthenticated() {
		c.localMu.Lock()
		defer c.localMu.Unlock()
		lines := addOrIncrement(c.local.LoadCart(ctx), productID, quantity, details, newItemID("local", c.now()))
		return c.saveLocal(ctx, lines)
	}

	tempID := newItemID("temp", c.now())
	prev := c.applyOptimistic(func(lines []model.CartLine) []model.CartLine {
		return addOrIncrement(lines, productID, quantity, details, tempID)
	})

	if err := c.api.AddCartItem(ctx, productID, quantity); err != nil {
		c.logger.Warn("add to cart failed", zap.String("product_id", productID.String()), zap.Error(err))
		return c.rollback(ctx, prev, err)
	}

	// サーバー側の価格などで置き換える
	if _, err := c.fetchRemote(ctx); err != nil {
		c.logger.Warn("cart reconcile failed", zap.Error(err))
	}
	return confirmed()
}

func (c *CartSyncer) UpdateQuantity(ctx context.Context, itemID string, quantity int) Result {
	quantity = clampQuantity(quantity)

	if !c.auth.IsAuthenticated() {
		c.localMu.Lock()
		defer c.localMu.Unlock()
		lines, found := setQuantity(c.local.LoadCart(ctx), itemID, quantity)
		if !found {
			return rejected(ErrLineNotFound)
		}
		return c.saveLocal(ctx, lines)
	}

	prev := c.applyOptimistic(func(lines []model.CartLine) []model.CartLine {
		out, _ := setQuantity(lines, itemID, quantity)
		return out
	})

	if err := c.api.UpdateCartItem(ctx, itemID, quantity); err != nil {
		c.logger.Warn("update cart item failed", zap.String("item_id", itemID), zap.Error(err))
		return c.rollback(ctx, prev, err)
	}
	return confirmed()
}

func (c *CartSyncer) RemoveLine(ctx context.Context, itemID string) Result {
	if !c.auth.IsAuthenticated() {
		c.localMu.Lock()
		defer c.localMu.Unlock()
		lines, found := removeItem(c.local.LoadCart(ctx), itemID)
		if !found {
			return rejected(ErrLineNotFound)
		}
		return c.saveLocal(ctx, lines)
	}

	prev := c.applyOptimistic(func(lines []model.CartLine) []model.CartLine {
		out, _ := removeItem(lines, itemID)
		return out
	})

	if err := c.api.DeleteCartItem(ctx, itemID); err != nil {
		c.logger.Warn("remove cart item failed", zap.String("item_id", itemID), zap.Error(err))
		return c.rollback(ctx, prev, err)
	}
	return confirmed()
}

// Clear は注文確定後に呼ぶ。リモートの削除APIは呼ばない。
func (c *CartSyncer) Clear(ctx context.Context) {
	c.mu.Lock()
	c.mirror = []model.CartLine{}
	c.cache.Reset()
	c.mu.Unlock()

	c.localMu.Lock()
	defer c.localMu.Unlock()
	if err := c.local.SaveCart(ctx, nil); err != nil {
		c.logger.Warn("failed to clear local cart", zap.Error(err))
	}
}

// Reset はログアウト時にキャッシュと一覧を捨てる。ローカルは触らない。
func (c *CartSyncer) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mirror = []model.CartLine{}
	c.cache.Reset()
}

// StartBackgroundRefresh は認証済みの間 every ごとに強制再取得する。
// stop は実行中の取得が終わるまで待つ。
func (c *CartSyncer) StartBackgroundRefresh(ctx context.Context, every time.Duration) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !c.auth.IsAuthenticated() {
					continue
				}
				if _, err := c.fetchRemote(ctx); err != nil && ctx.Err() == nil {
					c.logger.Warn("background cart refresh failed", zap.Error(err))
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// =====================
// internal
// =====================

type cartSnapshot struct {
	mirror []model.CartLine
}

// applyOptimistic はネットワーク前にキャッシュと一覧へ反映する
func (c *CartSyncer) applyOptimistic(fn func([]model.CartLine) []model.CartLine) cartSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := cartSnapshot{mirror: cloneLines(c.mirror)}
	c.cache.Mutate(fn)
	c.mirror = fn(c.mirror)
	return prev
}

// rollback は強制再取得で楽観的更新を捨てる。
// 再取得も失敗したら更新前の一覧に戻し、キャッシュは無効にする。
func (c *CartSyncer) rollback(ctx context.Context, prev cartSnapshot, cause error) Result {
	if _, err := c.fetchRemote(ctx); err != nil {
		c.logger.Warn("cart refetch after failure failed, restoring previous state", zap.Error(err))
		c.mu.Lock()
		c.mirror = prev.mirror
		c.cache.Reset()
		c.mu.Unlock()
	}
	return rolledBack(cause)
}

func (c *CartSyncer) saveLocal(ctx context.Context, lines []model.CartLine) Result {
	lines = normalizeLines(lines)
	if err := c.local.SaveCart(ctx, lines); err != nil {
		return rejected(err)
	}
	c.setMirror(lines)
	return confirmed()
}

func (c *CartSyncer) setMirror(lines []model.CartLine) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mirror = cloneLines(lines)
}

func (c *CartSyncer) warnConflicts(lines []model.CartLine) {
	for _, l := range lines {
		if l.IdentityConflict {
			c.logger.Warn("cart line has conflicting product_id and id, using product_id",
				zap.String("item_id", l.ItemID), zap.String("product_id", l.ProductID.String()))
		}
	}
}
