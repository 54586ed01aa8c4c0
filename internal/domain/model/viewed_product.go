package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// 最近見た商品（recentlyViewed）
type ViewedProduct struct {
	ProductID ProductID
	Name      string
	Price     decimal.Decimal
	ImageURL  string
	ViewedAt  time.Time
}

func (v *ViewedProduct) UnmarshalJSON(b []byte) error {
	var w wishlistEntryWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	var at struct {
		ViewedAt string `json:"viewedAt"`
	}
	_ = json.Unmarshal(b, &at)

	pid, _ := resolveIdentity(w.ProductID, w.ID)
	*v = ViewedProduct{
		ProductID: pid,
		Name:      rawScalar(w.Name),
		Price:     CoerceDecimal(w.Price),
		ImageURL:  rawScalar(w.ImageURL),
		ViewedAt:  parseTime(at.ViewedAt),
	}
	return nil
}

func (v ViewedProduct) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ProductID ProductID   `json:"product_id"`
		Name      string      `json:"name"`
		Price     json.Number `json:"price"`
		ImageURL  string      `json:"image_url,omitempty"`
		ViewedAt  time.Time   `json:"viewedAt"`
	}{
		ProductID: v.ProductID,
		Name:      v.Name,
		Price:     json.Number(v.Price.String()),
		ImageURL:  v.ImageURL,
		ViewedAt:  v.ViewedAt,
	})
}
