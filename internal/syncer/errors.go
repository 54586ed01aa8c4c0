package syncer

import "errors"

var (
	ErrLineNotFound     = errors.New("syncer: cart line not found")
	ErrNotInWishlist    = errors.New("syncer: item not found in wishlist")
	ErrWishlistEmpty    = errors.New("syncer: wishlist is empty")
	ErrInvalidProduct   = errors.New("syncer: product id is required")
	ErrNotAuthenticated = errors.New("syncer: not authenticated")
	// ログイン時のマージが途中で止まった（残りはローカルに残す）
	ErrMergeInterrupted = errors.New("syncer: guest merge interrupted")
)
