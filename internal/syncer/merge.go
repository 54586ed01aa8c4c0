package syncer

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
	"storefront/internal/localstore"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MergeGuest はゲスト時のカートをリモートへ流し込む（ログイン直後と、残りがある状態でセッションを復元したとき）。
// 全件並行に送り、サーバーに断られた分は結果に残して捨てる。全件片付けばローカルの cart を消す。
// ctx の終了、セッション切れ、通信失敗の分はローカルに残して次回に回す。
func (c *CartSyncer) MergeGuest(ctx context.Context) BatchResult {
	c.mergeMu.Lock()
	defer c.mergeMu.Unlock()

	lines := c.local.LoadCart(ctx)
	if len(lines) == 0 {
		return BatchResult{}
	}
	if !c.auth.IsAuthenticated() {
		return BatchResult{Err: ErrNotAuthenticated}
	}

	results := make([]ItemResult, len(lines))
	attempted := make([]bool, len(lines))

	var g errgroup.Group
	for i, l := range lines {
		i, l := i, l
		results[i] = ItemResult{ProductID: l.ProductID, Err: ErrMergeInterrupted}
		if ctx.Err() != nil || !c.auth.IsAuthenticated() {
			continue
		}
		attempted[i] = true
		g.Go(func() error {
			results[i].Err = c.api.AddCartItem(ctx, l.ProductID, clampQuantity(l.Quantity))
			return nil
		})
	}
	_ = g.Wait()

	sessionLost := !c.auth.IsAuthenticated()
	leftover := make([]model.CartLine, 0)
	for i, l := range lines {
		if !attempted[i] || (results[i].Err != nil && (retryLater(ctx, results[i].Err) || sessionLost)) {
			leftover = append(leftover, l)
			continue
		}
		if results[i].Err != nil {
			c.logger.Warn("guest cart item merge failed",
				zap.String("product_id", l.ProductID.String()), zap.Error(results[i].Err))
		}
	}

	// キャンセルされていても書き戻しは行う
	storeCtx := context.WithoutCancel(ctx)
	batch := BatchResult{Items: results}
	if len(leftover) == 0 {
		if err := c.local.Remove(storeCtx, localstore.KeyCart); err != nil {
			c.logger.Warn("failed to clear local cart after merge", zap.Error(err))
		}
	} else {
		if err := c.local.SaveCart(storeCtx, leftover); err != nil {
			c.logger.Warn("failed to keep unmerged cart items", zap.Error(err))
		}
		batch.Err = ErrMergeInterrupted
		c.logger.Info("guest cart merge interrupted", zap.Int("remaining", len(leftover)))
		return batch
	}

	c.FetchLines(ctx, true)
	return batch
}

// MergeGuest はゲスト時のほしい物リストを1件ずつ順番に送る。
func (w *WishlistSyncer) MergeGuest(ctx context.Context) BatchResult {
	w.mergeMu.Lock()
	defer w.mergeMu.Unlock()

	entries := w.local.LoadWishlist(ctx)
	if len(entries) == 0 {
		return BatchResult{}
	}
	if !w.auth.IsAuthenticated() {
		return BatchResult{Err: ErrNotAuthenticated}
	}

	results := make([]ItemResult, 0, len(entries))
	leftover := make([]model.WishlistEntry, 0)
	for i, e := range entries {
		if ctx.Err() != nil || !w.auth.IsAuthenticated() {
			for _, rest := range entries[i:] {
				results = append(results, ItemResult{ProductID: rest.ProductID, Err: ErrMergeInterrupted})
				leftover = append(leftover, rest)
			}
			break
		}

		err := w.api.AddWishlistItem(ctx, e.ProductID)
		results = append(results, ItemResult{ProductID: e.ProductID, Err: err})
		if err == nil {
			continue
		}
		if retryLater(ctx, err) || !w.auth.IsAuthenticated() {
			leftover = append(leftover, e)
			continue
		}
		w.logger.Warn("guest wishlist item merge failed",
			zap.String("product_id", e.ProductID.String()), zap.Error(err))
	}

	storeCtx := context.WithoutCancel(ctx)
	batch := BatchResult{Items: results}
	if len(leftover) == 0 {
		if err := w.local.Remove(storeCtx, localstore.KeyWishlist); err != nil {
			w.logger.Warn("failed to clear local wishlist after merge", zap.Error(err))
		}
	} else {
		if err := w.local.SaveWishlist(storeCtx, leftover); err != nil {
			w.logger.Warn("failed to keep unmerged wishlist items", zap.Error(err))
		}
		batch.Err = ErrMergeInterrupted
		w.logger.Info("guest wishlist merge interrupted", zap.Int("remaining", len(leftover)))
		return batch
	}

	w.FetchEntries(ctx, true)
	return batch
}

// StatusError など、サーバーが応答したうえでの失敗が満たす
type statusCoder interface {
	HTTPStatus() int
}

// 次回のマージに回すべき失敗か。
// ctx の終了と、サーバーまで届かなかった失敗（ステータスが無い）は残す。
func retryLater(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var sc statusCoder
	return !errors.As(err, &sc)
}
