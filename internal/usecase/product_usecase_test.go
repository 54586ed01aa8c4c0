package usecase

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestProductUsecase_ListPublicProducts_Validation(t *testing.T) {
	uc := NewProductUsecase(&productRepoMock{})
	ctx := context.Background()

	neg := int64(-1)
	lo, hi := int64(500), int64(100)

	cases := []struct {
		name string
		in   ListProductsInput
	}{
		{"page", ListProductsInput{Page: 0, Limit: 10}},
		{"limit", ListProductsInput{Page: 1, Limit: 101}},
		{"q", ListProductsInput{Page: 1, Limit: 10, Q: strings.Repeat("a", 101)}},
		{"min", ListProductsInput{Page: 1, Limit: 10, MinPrice: &neg}},
		{"range", ListProductsInput{Page: 1, Limit: 10, MinPrice: &lo, MaxPrice: &hi}},
		{"sort", ListProductsInput{Page: 1, Limit: 10, Sort: "random"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := uc.ListPublicProducts(ctx, tc.in)
			assertStatus(t, err, http.StatusBadRequest)
		})
	}
}

func TestProductUsecase_ListPublicProducts_TrimsQuery(t *testing.T) {
	products := &productRepoMock{}
	uc := NewProductUsecase(products)
	ctx := context.Background()

	products.On("ListPublic", ctx, mock.MatchedBy(func(q repo.ProductListQuery) bool {
		return q.Q == "mug" && q.Page == 2 && q.Limit == 5
	})).Return([]model.Product{{ID: 1}}, int64(6), nil)

	out, err := uc.ListPublicProducts(ctx, ListProductsInput{Page: 2, Limit: 5, Q: "  mug "})
	require.NoError(t, err)
	assert.Equal(t, int64(6), out.Total)
	assert.Len(t, out.Items, 1)
}

func TestProductUsecase_GetProductDetail(t *testing.T) {
	products := &productRepoMock{}
	uc := NewProductUsecase(products)
	ctx := context.Background()

	products.On("FindByID", ctx, int64(1)).Return(model.Product{ID: 1, IsActive: true}, nil)
	products.On("FindByID", ctx, int64(2)).Return(model.Product{ID: 2, IsActive: false}, nil)
	products.On("FindByID", ctx, int64(3)).Return(model.Product{}, repo.ErrNotFound)

	p, err := uc.GetProductDetail(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.PlaceholderImageURL, p.ImageURL)

	_, err = uc.GetProductDetail(ctx, 2)
	assertStatus(t, err, http.StatusNotFound)
	_, err = uc.GetProductDetail(ctx, 3)
	assertStatus(t, err, http.StatusNotFound)
	_, err = uc.GetProductDetail(ctx, 0)
	assertStatus(t, err, http.StatusBadRequest)
}

func TestProductUsecase_Recommendations(t *testing.T) {
	products := &productRepoMock{}
	uc := NewProductUsecase(products)
	fixed := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	uc.now = func() time.Time { return fixed }
	ctx := context.Background()

	products.On("ListNewest", ctx, DefaultRecommendationLimit).Return([]model.Product{
		{ID: 2, Name: "New", Price: 100, CreatedAt: fixed.Add(-24 * time.Hour)},
		{ID: 1, Name: "Old", Price: 200, ImageURL: "/o.jpg", CreatedAt: fixed.Add(-60 * 24 * time.Hour)},
	}, nil)

	out, err := uc.Recommendations(ctx, 0)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.True(t, out[0].IsNew)
	assert.False(t, out[1].IsNew)
	assert.Equal(t, "/o.jpg", out[1].ImageURL)

	_, err = uc.Recommendations(ctx, MaxRecommendationLimit+1)
	assertStatus(t, err, http.StatusBadRequest)
}
