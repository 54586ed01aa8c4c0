package repository

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

// 一覧検索
type ProductListQuery struct {
	Page     int
	Limit    int
	Q        string
	MinPrice *int64
	MaxPrice *int64
	Sort     string
}

// 商品の永続化（保存・取得）だけを約束。
type ProductRepository interface {
	ListPublic(ctx context.Context, q ProductListQuery) ([]model.Product, int64, error)
	FindByID(ctx context.Context, id int64) (model.Product, error)
	// 公開中のものだけ。見つからないIDは結果に入らない。
	FindByIDs(ctx context.Context, ids []int64) (map[int64]model.Product, error)
	// おすすめ用。公開中の新しい順。
	ListNewest(ctx context.Context, limit int) ([]model.Product, error)
}
