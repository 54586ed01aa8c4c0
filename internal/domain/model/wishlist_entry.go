package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// WishlistEntry はクライアント側のほしい物リスト1件。
// ゲスト表示用に商品情報を非正規化して持つ。ProductIDはリスト内で一意。
type WishlistEntry struct {
	ProductID ProductID
	Name      string
	Price     decimal.Decimal
	ImageURL  string
	AddedAt   time.Time

	IdentityConflict bool
}

func NewWishlistEntry(productID ProductID, snap *ProductSnapshot, now time.Time) WishlistEntry {
	s := PlaceholderSnapshot()
	if snap != nil {
		s = *snap
	}
	return WishlistEntry{
		ProductID: productID,
		Name:      s.Name,
		Price:     s.Price,
		ImageURL:  s.ImageURL,
		AddedAt:   now,
	}
}

// カートへ移すときの商品情報
func (e WishlistEntry) Snapshot() *ProductSnapshot {
	return &ProductSnapshot{Name: e.Name, Price: e.Price, ImageURL: e.ImageURL}
}

type wishlistEntryWire struct {
	ProductID json.RawMessage `json:"product_id"`
	ID        json.RawMessage `json:"id"`
	Name      json.RawMessage `json:"name"`
	Price     json.RawMessage `json:"price"`
	ImageURL  json.RawMessage `json:"image_url"`
	AddedAt   json.RawMessage `json:"added_at"`
}

func (e *WishlistEntry) UnmarshalJSON(b []byte) error {
	var w wishlistEntryWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}

	pid, conflict := resolveIdentity(w.ProductID, w.ID)
	*e = WishlistEntry{
		ProductID:        pid,
		Name:             rawScalar(w.Name),
		Price:            CoerceDecimal(w.Price),
		ImageURL:         rawScalar(w.ImageURL),
		AddedAt:          parseTime(rawScalar(w.AddedAt)),
		IdentityConflict: conflict,
	}
	return nil
}

func (e WishlistEntry) MarshalJSON() ([]byte, error) {
	var addedAt *time.Time
	if !e.AddedAt.IsZero() {
		addedAt = &e.AddedAt
	}
	return json.Marshal(struct {
		ProductID ProductID   `json:"product_id"`
		Name      string      `json:"name"`
		Price     json.Number `json:"price"`
		ImageURL  string      `json:"image_url,omitempty"`
		AddedAt   *time.Time  `json:"added_at,omitempty"`
	}{
		ProductID: e.ProductID,
		Name:      e.Name,
		Price:     json.Number(e.Price.String()),
		ImageURL:  e.ImageURL,
		AddedAt:   addedAt,
	})
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
