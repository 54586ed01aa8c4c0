package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"storefront/internal/domain/model"
	"storefront/internal/session"
)

// =====================
// cart
// =====================

func (c *Client) GetCart(ctx context.Context) ([]model.CartLine, error) {
	var lines []model.CartLine
	if err := c.do(ctx, http.MethodGet, "/cart", nil, &lines, true); err != nil {
		return nil, err
	}
	if lines == nil {
		lines = []model.CartLine{}
	}
	return lines, nil
}

type addCartItemRequest struct {
	ProductID model.ProductID `json:"product_id"`
	Quantity  int             `json:"quantity"`
}

func (c *Client) AddCartItem(ctx context.Context, productID model.ProductID, quantity int) error {
	return c.do(ctx, http.MethodPost, "/cart", addCartItemRequest{ProductID: productID, Quantity: quantity}, nil, true)
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

func (c *Client) UpdateCartItem(ctx context.Context, itemID string, quantity int) error {
	return c.do(ctx, http.MethodPost, "/cart/"+url.PathEscape(itemID), updateCartItemRequest{Quantity: quantity}, nil, true)
}

func (c *Client) DeleteCartItem(ctx context.Context, itemID string) error {
	return c.do(ctx, http.MethodDelete, "/cart/"+url.PathEscape(itemID), nil, nil, true)
}

// =====================
// wishlist
// =====================

func (c *Client) GetWishlist(ctx context.Context) ([]model.WishlistEntry, error) {
	var entries []model.WishlistEntry
	if err := c.do(ctx, http.MethodGet, "/wishlist", nil, &entries, true); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []model.WishlistEntry{}
	}
	return entries, nil
}

type addWishlistItemRequest struct {
	ProductID model.ProductID `json:"product_id"`
}

func (c *Client) AddWishlistItem(ctx context.Context, productID model.ProductID) error {
	return c.do(ctx, http.MethodPost, "/wishlist", addWishlistItemRequest{ProductID: productID}, nil, true)
}

func (c *Client) DeleteWishlistItem(ctx context.Context, productID model.ProductID) error {
	return c.do(ctx, http.MethodDelete, "/wishlist/"+url.PathEscape(productID.String()), nil, nil, true)
}

// =====================
// catalog (public)
// =====================

func (c *Client) Recommendations(ctx context.Context, limit int) ([]model.RecommendedProduct, error) {
	var items []model.RecommendedProduct
	path := "/recommendations?limit=" + strconv.Itoa(limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &items, false); err != nil {
		return nil, err
	}
	return items, nil
}

// 商品詳細（recentlyViewed 用に RecommendedProduct と同じ形で読む）
func (c *Client) Product(ctx context.Context, id model.ProductID) (model.RecommendedProduct, error) {
	var p model.RecommendedProduct
	err := c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(id.String()), nil, &p, false)
	return p, err
}

// =====================
// auth
// =====================

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResult struct {
	User         session.Profile `json:"user"`
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	ExpiresIn    int             `json:"expires_in"`
}

func (r LoginResult) Tokens() session.Tokens {
	return session.Tokens{AccessToken: r.AccessToken, RefreshToken: r.RefreshToken}
}

func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	var out LoginResult
	err := c.do(ctx, http.MethodPost, "/auth/login", credentials{Email: email, Password: password}, &out, false)
	return out, err
}

func (c *Client) Register(ctx context.Context, email, password string) (session.Profile, error) {
	var out session.Profile
	err := c.do(ctx, http.MethodPost, "/auth/register", credentials{Email: email, Password: password}, &out, false)
	return out, err
}
