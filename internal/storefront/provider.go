package storefront

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"storefront/internal/apiclient"
	"storefront/internal/domain/model"
	"storefront/internal/localstore"
	"storefront/internal/session"
	"storefront/internal/syncer"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Options は Provider の組み立て設定
type Options struct {
	APIURL string
	Store  localstore.Store

	HTTPClient *http.Client
	Logger     *zap.Logger

	// 0なら syncer.DefaultTTL
	CacheTTL time.Duration
	// 0なら syncer.BackgroundRefreshInterval、負なら定期更新しない
	RefreshInterval time.Duration
}

// MergeReport はログイン直後のゲストデータ取り込み結果
type MergeReport struct {
	Cart     syncer.BatchResult
	Wishlist syncer.BatchResult
}

func (r MergeReport) OK() bool {
	return r.Cart.OK() && r.Wishlist.OK()
}

// Provider は1つのセッションの間、キャッシュと同期処理をまとめて持つ。
// 認証状態の遷移を購読し、ログアウトでキャッシュを捨てる。
type Provider struct {
	Local    *localstore.Local
	Session  *session.Session
	API      *apiclient.Client
	Cart     *syncer.CartSyncer
	Wishlist *syncer.WishlistSyncer

	logger          *zap.Logger
	refreshInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	stopRefresh func()
	unsubscribe func()
	closed      bool
	wg          sync.WaitGroup
}

func New(ctx context.Context, opts Options) (*Provider, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("storefront: store is required")
	}
	if opts.APIURL == "" {
		return nil, fmt.Errorf("storefront: api url is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = syncer.DefaultTTL
	}
	interval := opts.RefreshInterval
	if interval == 0 {
		interval = syncer.BackgroundRefreshInterval
	}

	local := localstore.New(opts.Store, logger.Named("local"))
	sess := session.New(ctx, local, logger.Named("session"))

	clientOpts := []apiclient.Option{apiclient.WithLogger(logger.Named("api"))}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, apiclient.WithHTTPClient(opts.HTTPClient))
	}
	api := apiclient.New(opts.APIURL, sess, clientOpts...)

	cart := syncer.NewCartSyncer(api, sess, local,
		syncer.NewEnvelope[[]model.CartLine](ttl, nil), logger.Named("cart"))
	wishlist := syncer.NewWishlistSyncer(api, sess, local, cart, syncer.WishlistCaches{
		Entries:         syncer.NewEnvelope[[]model.WishlistEntry](ttl, nil),
		Recommendations: syncer.NewEnvelope[[]model.RecommendedProduct](ttl, nil),
	}, logger.Named("wishlist"))

	pctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p := &Provider{
		Local:           local,
		Session:         sess,
		API:             api,
		Cart:            cart,
		Wishlist:        wishlist,
		logger:          logger,
		refreshInterval: interval,
		ctx:             pctx,
		cancel:          cancel,
	}
	p.unsubscribe = sess.Subscribe(p.onAuthChange)

	// 前回のトークンが残っていれば認証済みで始まる。
	// 前回の取り込みが途中で止まっていれば、残りをここで送り直す。
	if sess.IsAuthenticated() {
		if p.hasGuestData(ctx) {
			logger.Info("resuming guest data merge for restored session")
			p.MergeGuest(ctx)
		}
		// 取り込み中のリフレッシュ失敗でゲストに戻っていることがある
		if sess.IsAuthenticated() {
			p.startRefresh()
		}
	}
	return p, nil
}

func (p *Provider) hasGuestData(ctx context.Context) bool {
	return len(p.Local.LoadCart(ctx)) > 0 || len(p.Local.LoadWishlist(ctx)) > 0
}

// Register はアカウントを作るだけ（ログインはしない）
func (p *Provider) Register(ctx context.Context, email, password string) (session.Profile, error) {
	return p.API.Register(ctx, email, password)
}

// Login は認証してセッションを切り替え、ゲストのカート/ほしい物リストを取り込む。
func (p *Provider) Login(ctx context.Context, email, password string) (MergeReport, error) {
	res, err := p.API.Login(ctx, email, password)
	if err != nil {
		return MergeReport{}, err
	}
	if err := p.Session.Login(ctx, res.Tokens(), res.User); err != nil {
		return MergeReport{}, fmt.Errorf("save session: %w", err)
	}
	return p.MergeGuest(ctx), nil
}

// MergeGuest はカートとほしい物リストを並行に取り込む。
// カートは内部で並行、ほしい物リストは順番に送る。
func (p *Provider) MergeGuest(ctx context.Context) MergeReport {
	var report MergeReport
	var g errgroup.Group
	g.Go(func() error {
		report.Cart = p.Cart.MergeGuest(ctx)
		return nil
	})
	g.Go(func() error {
		report.Wishlist = p.Wishlist.MergeGuest(ctx)
		return nil
	})
	_ = g.Wait()

	if !report.OK() {
		p.logger.Warn("guest data merge incomplete",
			zap.Int("cart_failed", len(report.Cart.Failed())),
			zap.Int("wishlist_failed", len(report.Wishlist.Failed())))
	}
	return report
}

// Logout はユーザー操作によるログアウト。ローカルのカート等は残る。
func (p *Provider) Logout(ctx context.Context) {
	p.Session.Logout(ctx, session.ReasonUser)
}

// ViewProduct は商品詳細を取り、recentlyViewed に積む
func (p *Provider) ViewProduct(ctx context.Context, id model.ProductID) (model.RecommendedProduct, error) {
	prod, err := p.API.Product(ctx, id)
	if err != nil {
		return model.RecommendedProduct{}, err
	}
	if prod.ID.IsZero() {
		prod.ID = id
	}
	p.Local.AddRecentlyViewed(ctx, model.ViewedProduct{
		ProductID: prod.ID,
		Name:      prod.Name,
		Price:     prod.Price,
		ImageURL:  prod.ImageURL,
	})
	return prod, nil
}

// Close は購読と定期更新を止め、実行中のバックグラウンド処理を待つ
func (p *Provider) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	stop := p.stopRefresh
	p.stopRefresh = nil
	unsubscribe := p.unsubscribe
	p.mu.Unlock()

	unsubscribe()
	if stop != nil {
		stop()
	}
	p.Wishlist.Close()
	p.cancel()
	p.wg.Wait()
}

func (p *Provider) onAuthChange(ev session.Event) {
	switch ev.To {
	case session.Authenticated:
		p.startRefresh()
	case session.Guest:
		p.logger.Info("signed out, dropping cached data", zap.String("reason", string(ev.Reason)))
		p.Cart.Reset()
		p.Wishlist.Reset()

		// 定期更新中の401から来ることがあるので、ここでは待たない
		p.mu.Lock()
		stop := p.stopRefresh
		p.stopRefresh = nil
		p.mu.Unlock()
		if stop != nil {
			p.wg.Add(1)
			go func() {
				defer p.wg.Done()
				stop()
			}()
		}
	}
}

func (p *Provider) startRefresh() {
	if p.refreshInterval < 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.stopRefresh != nil {
		return
	}
	p.stopRefresh = p.Cart.StartBackgroundRefresh(p.ctx, p.refreshInterval)
}
