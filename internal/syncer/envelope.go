package syncer

import (
	"sync"
	"time"
)

// キャッシュの有効期間（cart / wishlist / recommendations 共通）
const DefaultTTL = 2 * time.Minute

// Envelope は1リソース分のキャッシュ。
// 世代番号は取得・更新のたびに増え、古い世代のレスポンスは Commit で捨てる。
type Envelope[T any] struct {
	mu        sync.Mutex
	data      T
	has       bool
	fetchedAt time.Time
	ttl       time.Duration
	now       func() time.Time
	latest    uint64
}

func NewEnvelope[T any](ttl time.Duration, now func() time.Time) *Envelope[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Envelope[T]{ttl: ttl, now: now}
}

// Get はTTL内ならデータとtrueを返す
func (e *Envelope[T]) Get() (T, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.freshLocked() {
		var zero T
		return zero, false
	}
	return e.data, true
}

// Data は期限に関係なく最後のデータを返す
func (e *Envelope[T]) Data() (T, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.data, e.has
}

func (e *Envelope[T]) Fresh() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.freshLocked()
}

func (e *Envelope[T]) freshLocked() bool {
	return e.has && e.now().Sub(e.fetchedAt) < e.ttl
}

// Begin は取得開始時に世代を発行する
func (e *Envelope[T]) Begin() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.latest++
	return e.latest
}

// Commit は gen が最新のときだけ反映する。古ければfalse。
func (e *Envelope[T]) Commit(gen uint64, data T) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.latest {
		return false
	}
	e.data = data
	e.has = true
	e.fetchedAt = e.now()
	return true
}

// Mutate は楽観的更新。データがあるときだけ適用し、実行中の取得は無効にする。
func (e *Envelope[T]) Mutate(fn func(T) T) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.latest++
	if !e.has {
		return false
	}
	e.data = fn(e.data)
	e.fetchedAt = e.now()
	return true
}

// Replace はデータを丸ごと差し替える
func (e *Envelope[T]) Replace(data T) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.latest++
	e.data = data
	e.has = true
	e.fetchedAt = e.now()
}

// Reset は破棄。次の読み込みは必ず取得しにいく。
func (e *Envelope[T]) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	var zero T
	e.latest++
	e.data = zero
	e.has = false
	e.fetchedAt = time.Time{}
}
