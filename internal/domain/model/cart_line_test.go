package model

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartLine_Unmarshal_CoercesBrokenNumbers(t *testing.T) {
	raw := `[
		{"item_id":"local-1","product_id":"P1","name":"A","price":"abc","quantity":2},
		{"item_id":12,"product_id":7,"name":"B","price":"19.5","quantity":"3"},
		{"item_id":"x","id":"P3","name":"C","price":100,"quantity":null},
		{"item_id":"y","product_id":"P4","price":10,"quantity":2.9}
	]`

	var lines []CartLine
	require.NoError(t, json.Unmarshal([]byte(raw), &lines))
	require.Len(t, lines, 4)

	assert.Equal(t, ProductID("P1"), lines[0].ProductID)
	assert.True(t, lines[0].Price.IsZero())
	assert.Equal(t, 2, lines[0].Quantity)

	assert.Equal(t, "12", lines[1].ItemID)
	assert.Equal(t, ProductID("7"), lines[1].ProductID)
	assert.True(t, decimal.RequireFromString("19.5").Equal(lines[1].Price))
	assert.Equal(t, 3, lines[1].Quantity)

	assert.Equal(t, ProductID("P3"), lines[2].ProductID)
	assert.Equal(t, 0, lines[2].Quantity)

	assert.Equal(t, 2, lines[3].Quantity)
}

func TestCartLine_Unmarshal_FlagsIdentityConflict(t *testing.T) {
	var l CartLine
	require.NoError(t, json.Unmarshal([]byte(`{"product_id":"P1","id":"P9","quantity":1}`), &l))

	assert.Equal(t, ProductID("P1"), l.ProductID)
	assert.True(t, l.IdentityConflict)

	require.NoError(t, json.Unmarshal([]byte(`{"product_id":5,"id":"5","quantity":1}`), &l))
	assert.False(t, l.IdentityConflict)
}

func TestCartLine_Marshal_WritesCanonicalProductID(t *testing.T) {
	l := NewCartLine("local-1", ProductID("42"), 2, &ProductSnapshot{Name: "Beans", Price: decimal.NewFromInt(100)})

	b, err := json.Marshal(l)
	require.NoError(t, err)
	assert.JSONEq(t, `{"item_id":"local-1","product_id":42,"name":"Beans","price":100,"quantity":2}`, string(b))

	var back CartLine
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, l.ProductID, back.ProductID)
	assert.True(t, l.Price.Equal(back.Price))
}

func TestCartLine_PlaceholderWhenNoSnapshot(t *testing.T) {
	l := NewCartLine("local-1", ProductID("P1"), 1, nil)

	assert.Equal(t, PlaceholderName, l.Name)
	assert.True(t, l.Price.IsZero())
	assert.Equal(t, PlaceholderImageURL, l.ImageURL)
}

func TestCartLine_Subtotal(t *testing.T) {
	l := CartLine{Price: decimal.NewFromInt(100), Quantity: 5}
	assert.True(t, decimal.NewFromInt(500).Equal(l.Subtotal()))

	l.Quantity = -1
	assert.True(t, l.Subtotal().IsZero())
}

func TestProductID_MarshalJSON(t *testing.T) {
	cases := []struct {
		id   ProductID
		want string
	}{
		{"12", `12`},
		{"P1", `"P1"`},
		{"007", `"007"`},
		{"0", `0`},
	}
	for _, tc := range cases {
		b, err := json.Marshal(tc.id)
		require.NoError(t, err)
		assert.Equal(t, tc.want, string(b))
	}
}

func TestWishlistEntry_Unmarshal_DualKeyed(t *testing.T) {
	var entries []WishlistEntry
	raw := `[{"id":3,"name":"X","price":"12"},{"product_id":"P2","name":"Y","price":5,"added_at":"2026-01-02T03:04:05Z"}]`
	require.NoError(t, json.Unmarshal([]byte(raw), &entries))

	assert.Equal(t, ProductID("3"), entries[0].ProductID)
	assert.True(t, decimal.NewFromInt(12).Equal(entries[0].Price))
	assert.Equal(t, ProductID("P2"), entries[1].ProductID)
	assert.Equal(t, 2026, entries[1].AddedAt.Year())
}

func TestFallbackRecommendations_FourItems(t *testing.T) {
	items := FallbackRecommendations()
	assert.Len(t, items, 4)
	for _, it := range items {
		assert.False(t, it.ID.IsZero())
		assert.NotEmpty(t, it.Name)
	}
}
