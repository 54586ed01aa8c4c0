package model

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

const (
	PlaceholderName     = "Product"
	PlaceholderImageURL = "/images/placeholder.png"
)

// ProductSnapshot は追加時点の商品表示情報。
// ゲストモードでは商品APIを引けないので、カート/ほしい物リストにそのまま持たせる。
type ProductSnapshot struct {
	Name     string
	Price    decimal.Decimal
	ImageURL string
}

func PlaceholderSnapshot() ProductSnapshot {
	return ProductSnapshot{
		Name:     PlaceholderName,
		Price:    decimal.Zero,
		ImageURL: PlaceholderImageURL,
	}
}

// CartLine はクライアントが扱うカート明細。
type CartLine struct {
	ItemID    string
	ProductID ProductID
	Name      string
	Price     decimal.Decimal
	Quantity  int
	ImageURL  string

	// product_id と id が食い違っていた
	IdentityConflict bool
}

// snapshotがnilならプレースホルダで作る
func NewCartLine(itemID string, productID ProductID, quantity int, snap *ProductSnapshot) CartLine {
	s := PlaceholderSnapshot()
	if snap != nil {
		s = *snap
	}
	return CartLine{
		ItemID:    itemID,
		ProductID: productID,
		Name:      s.Name,
		Price:     s.Price,
		Quantity:  quantity,
		ImageURL:  s.ImageURL,
	}
}

// price × quantity。負の数量は0扱い。
func (l CartLine) Subtotal() decimal.Decimal {
	if l.Quantity <= 0 {
		return decimal.Zero
	}
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func (l CartLine) Snapshot() *ProductSnapshot {
	return &ProductSnapshot{Name: l.Name, Price: l.Price, ImageURL: l.ImageURL}
}

type cartLineWire struct {
	ItemID    json.RawMessage `json:"item_id"`
	ProductID json.RawMessage `json:"product_id"`
	ID        json.RawMessage `json:"id"`
	Name      json.RawMessage `json:"name"`
	Price     json.RawMessage `json:"price"`
	Quantity  json.RawMessage `json:"quantity"`
	ImageURL  json.RawMessage `json:"image_url"`
}

func (l *CartLine) UnmarshalJSON(b []byte) error {
	var w cartLineWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}

	pid, conflict := resolveIdentity(w.ProductID, w.ID)
	*l = CartLine{
		ItemID:           rawScalar(w.ItemID),
		ProductID:        pid,
		Name:             rawScalar(w.Name),
		Price:            CoerceDecimal(w.Price),
		Quantity:         CoerceInt(w.Quantity),
		ImageURL:         rawScalar(w.ImageURL),
		IdentityConflict: conflict,
	}
	return nil
}

// 書き出しは product_id のみ（id は書かない）
func (l CartLine) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ItemID    string      `json:"item_id"`
		ProductID ProductID   `json:"product_id"`
		Name      string      `json:"name"`
		Price     json.Number `json:"price"`
		Quantity  int         `json:"quantity"`
		ImageURL  string      `json:"image_url,omitempty"`
	}{
		ItemID:    l.ItemID,
		ProductID: l.ProductID,
		Name:      l.Name,
		Price:     json.Number(l.Price.String()),
		Quantity:  l.Quantity,
		ImageURL:  l.ImageURL,
	})
}
