package model

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// GET /recommendations の1件
type RecommendedProduct struct {
	ID       ProductID
	Name     string
	Price    decimal.Decimal
	OldPrice decimal.Decimal
	Discount string
	Rating   int
	IsNew    bool
	ImageURL string
}

type recommendedWire struct {
	ID       json.RawMessage `json:"id"`
	Product  json.RawMessage `json:"product_id"`
	Name     json.RawMessage `json:"name"`
	Price    json.RawMessage `json:"price"`
	OldPrice json.RawMessage `json:"oldPrice"`
	Discount json.RawMessage `json:"discount"`
	Rating   json.RawMessage `json:"rating"`
	IsNew    bool            `json:"isNew"`
	ImageURL json.RawMessage `json:"image_url"`
}

func (p *RecommendedProduct) UnmarshalJSON(b []byte) error {
	var w recommendedWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}

	id, _ := resolveIdentity(w.Product, w.ID)
	*p = RecommendedProduct{
		ID:       id,
		Name:     rawScalar(w.Name),
		Price:    CoerceDecimal(w.Price),
		OldPrice: CoerceDecimal(w.OldPrice),
		Discount: rawScalar(w.Discount),
		Rating:   CoerceInt(w.Rating),
		IsNew:    w.IsNew,
		ImageURL: rawScalar(w.ImageURL),
	}
	return nil
}

// APIが落ちていても空表示にしないための固定4件
func FallbackRecommendations() []RecommendedProduct {
	return []RecommendedProduct{
		{
			ID:       "1",
			Name:     "ASUS FHD Gaming Laptop",
			Price:    decimal.NewFromInt(9600),
			OldPrice: decimal.NewFromInt(11600),
			Discount: "-35%",
			Rating:   5,
			ImageURL: "/images/laptop.jpg",
		},
		{
			ID:       "2",
			Name:     "Wireless Bluetooth Headphones",
			Price:    decimal.NewFromInt(1200),
			Rating:   4,
			ImageURL: "/images/headphones.jpg",
		},
		{
			ID:       "3",
			Name:     "Smart Watch Series 7",
			Price:    decimal.NewFromInt(3200),
			IsNew:    true,
			Rating:   4,
			ImageURL: "/images/smartwatch.jpg",
		},
		{
			ID:       "4",
			Name:     "Smartphone 13 Pro",
			Price:    decimal.NewFromInt(8500),
			Rating:   5,
			ImageURL: "/images/smartphone.jpg",
		},
	}
}
