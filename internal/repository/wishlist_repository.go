package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// ほしい物リストの保存・取得
type WishlistRepository interface {
	// 追加日時の新しい順
	ListByUserID(ctx context.Context, userID int64) ([]model.WishlistItem, error)
	// 既にあれば何もしない（created=false）
	Add(ctx context.Context, userID int64, productID int64) (created bool, err error)
	// 無ければ ErrNotFound
	Delete(ctx context.Context, userID int64, productID int64) error
}
