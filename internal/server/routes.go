package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo, h Handlers) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})

	// 公開
	h.Auth.RegisterRoutes(e)
	h.Product.RegisterRoutes(e)

	// 要ログイン
	h.Cart.RegisterRoutes(e, h.RequireAuth...)
	h.Wishlist.RegisterRoutes(e, h.RequireAuth...)
}
