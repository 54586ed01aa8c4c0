package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"storefront/internal/domain/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// =====================
// guest
// =====================

func TestCart_Guest_AddSameProductSumsQuantities(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(1))

	for round := 0; round < 20; round++ {
		local := newLocal()
		c := newCartSyncer(&mockCartAPI{}, newAuth(false), local, newClock())

		want := 0
		n := 1 + rng.Intn(6)
		for i := 0; i < n; i++ {
			q := 1 + rng.Intn(5)
			want += q
			res := c.AddLine(ctx, "P1", q, nil)
			require.True(t, res.OK)
			assert.Equal(t, Confirmed, res.State)
		}

		lines := local.LoadCart(ctx)
		require.Len(t, lines, 1, "round %d", round)
		assert.Equal(t, want, lines[0].Quantity)
	}
}

func TestCart_Guest_ExampleTotal(t *testing.T) {
	ctx := context.Background()
	local := newLocal()
	require.NoError(t, local.SaveCart(ctx, []model.CartLine{line("local-1", "P1", 2, 100)}))

	c := newCartSyncer(&mockCartAPI{}, newAuth(false), local, newClock())
	res := c.AddLine(ctx, "P1", 3, nil)
	require.True(t, res.OK)

	lines := c.FetchLines(ctx, false)
	require.Len(t, lines, 1)
	assert.Equal(t, model.ProductID("P1"), lines[0].ProductID)
	assert.Equal(t, 5, lines[0].Quantity)
	assert.True(t, decimal.NewFromInt(100).Equal(lines[0].Price))
	assert.True(t, decimal.NewFromInt(500).Equal(ComputeTotal(lines)))
	assert.True(t, decimal.NewFromInt(500).Equal(c.Total()))
}

func TestCart_Guest_NewLineUsesPlaceholderAndLocalID(t *testing.T) {
	ctx := context.Background()
	c := newCartSyncer(&mockCartAPI{}, newAuth(false), newLocal(), newClock())

	require.True(t, c.AddLine(ctx, "P9", 0, nil).OK)

	lines := c.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 1, lines[0].Quantity)
	assert.Equal(t, model.PlaceholderName, lines[0].Name)
	assert.Equal(t, model.PlaceholderImageURL, lines[0].ImageURL)
	assert.Regexp(t, `^local-\d+-[0-9a-f]{8}$`, lines[0].ItemID)
	assert.True(t, c.IsInCart("P9"))
}

func TestCart_Guest_BrokenStoredQuantityCoercesToZeroBeforeAdd(t *testing.T) {
	ctx := context.Background()
	local := newLocal()
	require.NoError(t, local.SaveJSON(ctx, "cart", json.RawMessage(`[{"item_id":"local-1","product_id":"P1","price":"x","quantity":"abc"}]`)))

	c := newCartSyncer(&mockCartAPI{}, newAuth(false), local, newClock())
	require.True(t, c.AddLine(ctx, "P1", 2, nil).OK)

	lines := local.LoadCart(ctx)
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.True(t, lines[0].Price.IsZero())
}

func TestCart_Guest_UpdateAndRemove(t *testing.T) {
	ctx := context.Background()
	local := newLocal()
	require.NoError(t, local.SaveCart(ctx, []model.CartLine{line("local-1", "P1", 2, 100), line("local-2", "P2", 1, 50)}))
	c := newCartSyncer(&mockCartAPI{}, newAuth(false), local, newClock())

	res := c.UpdateQuantity(ctx, "local-1", -3)
	require.True(t, res.OK)
	assert.Equal(t, 1, local.LoadCart(ctx)[0].Quantity)

	require.True(t, c.RemoveLine(ctx, "local-2").OK)
	assert.False(t, c.IsInCart("P2"))
	assert.Len(t, local.LoadCart(ctx), 1)

	res = c.RemoveLine(ctx, "nope")
	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Err, ErrLineNotFound)
}

func TestCart_Guest_BrokenQuantityIsNeverSavedOrShownBelowOne(t *testing.T) {
	ctx := context.Background()
	local := newLocal()
	require.NoError(t, local.SaveJSON(ctx, "cart", json.RawMessage(`[{"item_id":"local-1","product_id":"P1","price":"5","quantity":"abc"}]`)))

	c := newCartSyncer(&mockCartAPI{}, newAuth(false), local, newClock())

	lines := c.FetchLines(ctx, false)
	require.Len(t, lines, 1)
	assert.Equal(t, 1, lines[0].Quantity)

	// 別の商品を足すと壊れた行も書き戻される
	require.True(t, c.AddLine(ctx, "P2", 1, nil).OK)
	stored := local.LoadCart(ctx)
	require.Len(t, stored, 2)
	assert.Equal(t, 1, stored[0].Quantity)
	for _, l := range c.Lines() {
		assert.GreaterOrEqual(t, l.Quantity, 1)
	}
}

func TestCart_Guest_ConcurrentAddsKeepEveryLine(t *testing.T) {
	ctx := context.Background()
	local := newSlowLocal()
	c := newCartSyncer(&mockCartAPI{}, newAuth(false), local, newClock())

	pids := []model.ProductID{"1", "2", "3", "4", "5"}
	var wg sync.WaitGroup
	for _, pid := range pids {
		pid := pid
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, c.AddLine(ctx, pid, 1, nil).OK)
		}()
	}
	wg.Wait()

	lines := local.LoadCart(ctx)
	require.Len(t, lines, len(pids))
	for _, pid := range pids {
		assert.True(t, c.IsInCart(pid), "missing %s", pid)
	}
}

func TestComputeTotal_OrderIndependentAndCoerces(t *testing.T) {
	var lines []model.CartLine
	raw := `[
		{"product_id":"A","price":"100","quantity":2},
		{"product_id":"B","price":"abc","quantity":4},
		{"product_id":"C","price":"12.5","quantity":"x"},
		{"product_id":"D","price":7,"quantity":3}
	]`
	require.NoError(t, json.Unmarshal([]byte(raw), &lines))

	want := decimal.NewFromInt(221)
	assert.True(t, want.Equal(ComputeTotal(lines)))

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 10; i++ {
		shuffled := cloneLines(lines)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.True(t, want.Equal(ComputeTotal(shuffled)))
	}
}

// =====================
// authenticated
// =====================

func TestCart_Auth_CacheHitWithinTTL(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	api := &mockCartAPI{}
	api.On("GetCart", mock.Anything).Return([]model.CartLine{line("1", "P1", 1, 10)}, nil)

	c := newCartSyncer(api, newAuth(true), newLocal(), clock)

	c.FetchLines(ctx, false)
	api.AssertNumberOfCalls(t, "GetCart", 1)

	clock.Advance(DefaultTTL - time.Second)
	c.FetchLines(ctx, false)
	api.AssertNumberOfCalls(t, "GetCart", 1)

	c.FetchLines(ctx, true)
	api.AssertNumberOfCalls(t, "GetCart", 2)

	clock.Advance(DefaultTTL)
	c.FetchLines(ctx, false)
	api.AssertNumberOfCalls(t, "GetCart", 3)
}

func TestCart_Auth_FetchFailureFallsBackToLocal(t *testing.T) {
	ctx := context.Background()
	local := newLocal()
	require.NoError(t, local.SaveCart(ctx, []model.CartLine{line("local-1", "P1", 1, 10)}))

	api := &mockCartAPI{}
	api.On("GetCart", mock.Anything).Return(nil, errors.New("network down"))

	c := newCartSyncer(api, newAuth(true), local, newClock())
	lines := c.FetchLines(ctx, false)
	require.Len(t, lines, 1)
	assert.Equal(t, model.ProductID("P1"), lines[0].ProductID)
}

func TestCart_Auth_RemoveIsVisibleBeforeResponse(t *testing.T) {
	ctx := context.Background()
	api := &mockCartAPI{}
	api.On("GetCart", mock.Anything).Return([]model.CartLine{line("11", "P1", 1, 10)}, nil).Once()

	started := make(chan struct{})
	release := make(chan struct{})
	api.On("DeleteCartItem", mock.Anything, "11").Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return(nil)

	c := newCartSyncer(api, newAuth(true), newLocal(), newClock())
	c.FetchLines(ctx, false)
	require.True(t, c.IsInCart("P1"))

	done := make(chan Result)
	go func() { done <- c.RemoveLine(ctx, "11") }()

	<-started
	assert.False(t, c.IsInCart("P1"))

	close(release)
	res := <-done
	assert.True(t, res.OK)
	assert.Equal(t, Confirmed, res.State)
	assert.False(t, c.IsInCart("P1"))
}

func TestCart_Auth_AddIsOptimisticThenReconciled(t *testing.T) {
	ctx := context.Background()
	api := &mockCartAPI{}
	api.On("GetCart", mock.Anything).Return([]model.CartLine{}, nil).Once()

	started := make(chan struct{})
	release := make(chan struct{})
	api.On("AddCartItem", mock.Anything, model.ProductID("5"), 2).Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return(nil)
	api.On("GetCart", mock.Anything).Return([]model.CartLine{line("77", "5", 2, 300)}, nil).Once()

	c := newCartSyncer(api, newAuth(true), newLocal(), newClock())
	c.FetchLines(ctx, false)

	done := make(chan Result)
	go func() {
		done <- c.AddLine(ctx, "5", 2, &model.ProductSnapshot{Name: "Beans", Price: decimal.NewFromInt(250)})
	}()

	<-started
	lines := c.Lines()
	require.Len(t, lines, 1)
	assert.Regexp(t, `^temp-`, lines[0].ItemID)
	assert.True(t, decimal.NewFromInt(250).Equal(lines[0].Price))

	close(release)
	res := <-done
	require.True(t, res.OK)

	// サーバーの値で置き換わる
	lines = c.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "77", lines[0].ItemID)
	assert.True(t, decimal.NewFromInt(300).Equal(lines[0].Price))
	api.AssertExpectations(t)
}

func TestCart_Auth_UpdateFailureRollsBackByRefetch(t *testing.T) {
	ctx := context.Background()
	api := &mockCartAPI{}
	api.On("GetCart", mock.Anything).Return([]model.CartLine{line("1", "P1", 2, 10)}, nil)
	api.On("UpdateCartItem", mock.Anything, "1", 9).Return(errors.New("boom"))

	c := newCartSyncer(api, newAuth(true), newLocal(), newClock())
	c.FetchLines(ctx, false)

	res := c.UpdateQuantity(ctx, "1", 9)
	assert.False(t, res.OK)
	assert.Equal(t, RolledBack, res.State)
	assert.EqualError(t, res.Err, "boom")

	assert.Equal(t, 2, c.Lines()[0].Quantity)
	api.AssertNumberOfCalls(t, "GetCart", 2)
}

func TestCart_Auth_RollbackRestoresPreviousWhenRefetchFails(t *testing.T) {
	ctx := context.Background()
	api := &mockCartAPI{}
	api.On("GetCart", mock.Anything).Return([]model.CartLine{line("1", "P1", 2, 10)}, nil).Once()
	api.On("DeleteCartItem", mock.Anything, "1").Return(errors.New("boom"))
	api.On("GetCart", mock.Anything).Return(nil, errors.New("offline"))

	c := newCartSyncer(api, newAuth(true), newLocal(), newClock())
	c.FetchLines(ctx, false)

	res := c.RemoveLine(ctx, "1")
	assert.Equal(t, RolledBack, res.State)
	assert.True(t, c.IsInCart("P1"))
}

func TestCart_Auth_StaleFetchDoesNotOverwriteNewerState(t *testing.T) {
	ctx := context.Background()
	api := &mockCartAPI{}

	slowStarted := make(chan struct{})
	releaseSlow := make(chan struct{})
	api.On("GetCart", mock.Anything).Run(func(mock.Arguments) {
		close(slowStarted)
		<-releaseSlow
	}).Return([]model.CartLine{line("1", "OLD", 1, 10)}, nil).Once()
	api.On("GetCart", mock.Anything).Return([]model.CartLine{line("2", "NEW", 1, 10)}, nil).Once()

	c := newCartSyncer(api, newAuth(true), newLocal(), newClock())

	done := make(chan []model.CartLine)
	go func() { done <- c.FetchLines(ctx, true) }()
	<-slowStarted

	fresh := c.FetchLines(ctx, true)
	require.Len(t, fresh, 1)
	assert.Equal(t, model.ProductID("NEW"), fresh[0].ProductID)

	close(releaseSlow)
	stale := <-done
	require.Len(t, stale, 1)
	assert.Equal(t, model.ProductID("NEW"), stale[0].ProductID)
	assert.True(t, c.IsInCart("NEW"))
	assert.False(t, c.IsInCart("OLD"))
}

func TestCart_Auth_IdentityConflictIsLogged(t *testing.T) {
	ctx := context.Background()
	var lines []model.CartLine
	require.NoError(t, json.Unmarshal([]byte(`[{"item_id":"1","product_id":"P1","id":"P2","quantity":1}]`), &lines))

	api := &mockCartAPI{}
	api.On("GetCart", mock.Anything).Return(lines, nil)

	core, logs := observer.New(zap.WarnLevel)
	c := NewCartSyncer(api, newAuth(true), newLocal(), nil, zap.New(core))
	c.FetchLines(ctx, false)

	assert.True(t, c.IsInCart("P1"))
	assert.False(t, c.IsInCart("P2"))
	assert.Equal(t, 1, logs.FilterMessageSnippet("conflicting product_id").Len())
}

func TestCart_Clear(t *testing.T) {
	ctx := context.Background()
	local := newLocal()
	api := &mockCartAPI{}
	api.On("GetCart", mock.Anything).Return([]model.CartLine{line("1", "P1", 1, 10)}, nil)

	c := newCartSyncer(api, newAuth(true), local, newClock())
	c.FetchLines(ctx, false)
	require.NoError(t, local.SaveCart(ctx, []model.CartLine{line("local-1", "P2", 1, 1)}))

	c.Clear(ctx)
	assert.Empty(t, c.Lines())
	assert.Empty(t, local.LoadCart(ctx))
	assert.True(t, c.Total().IsZero())

	// キャッシュも破棄されている
	c.FetchLines(ctx, false)
	api.AssertNumberOfCalls(t, "GetCart", 2)
	api.AssertNotCalled(t, "DeleteCartItem", mock.Anything, mock.Anything)
}

func TestCart_BackgroundRefresh(t *testing.T) {
	api := &mockCartAPI{}
	api.On("GetCart", mock.Anything).Return([]model.CartLine{line("1", "P1", 1, 10)}, nil)

	c := newCartSyncer(api, newAuth(true), newLocal(), newClock())
	stop := c.StartBackgroundRefresh(context.Background(), 10*time.Millisecond)

	assert.Eventually(t, func() bool { return c.IsInCart("P1") }, time.Second, 5*time.Millisecond)
	stop()
}
