package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// 1ユーザーにつきACTIVEカートは1つ
type CartRepository interface {
	GetOrCreateActiveByUserID(ctx context.Context, userID int64) (model.Cart, error)
	FindActiveByUserID(ctx context.Context, userID int64) (model.Cart, error)
}
