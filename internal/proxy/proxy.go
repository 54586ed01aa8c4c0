package proxy

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storefront/internal/config"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

const (
	// この前置きのパスだけ上流の /api/v1/products に流す
	productsPrefix = "/api/products"
	upstreamPrefix = "/api/v1/products"

	upstreamTimeout = 30 * time.Second
)

var (
	corsAllowHeaders = strings.Join([]string{"Origin", "X-Requested-With", echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization}, ", ")
	corsAllowMethods = strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}, ", ")
)

// New は商品APIへのリバースプロキシを作る。
// /health 以外は /api/products* だけを転送する。
func New(cfg config.ProxyConfig, logger *zap.Logger) (*echo.Echo, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	target, err := url.Parse(cfg.ProductsUpstream)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid PRODUCTS_UPSTREAM %q", cfg.ProductsUpstream)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(allowAll)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy", "service": "simple-proxy"})
	})

	e.Use(echomw.ProxyWithConfig(echomw.ProxyConfig{
		Skipper: func(c echo.Context) bool {
			return !strings.HasPrefix(c.Request().URL.Path, productsPrefix)
		},
		Balancer: echomw.NewRoundRobinBalancer([]*echomw.ProxyTarget{{Name: "products", URL: target}}),
		Rewrite: map[string]string{
			productsPrefix + "*": upstreamPrefix + "$1",
		},
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: upstreamTimeout,
			IdleConnTimeout:       90 * time.Second,
		},
		ErrorHandler: func(c echo.Context, err error) error {
			logger.Warn("proxy error", zap.String("path", c.Request().URL.Path), zap.Error(err))
			return c.JSON(http.StatusInternalServerError, map[string]string{
				"error":   "Proxy error",
				"message": err.Error(),
			})
		},
	}))
	// 上流のHostで送る
	e.Pre(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if strings.HasPrefix(c.Request().URL.Path, productsPrefix) {
				logger.Info("proxying request",
					zap.String("method", c.Request().Method),
					zap.String("target", cfg.ProductsUpstream+upstreamPrefix+strings.TrimPrefix(c.Request().URL.RequestURI(), productsPrefix)))
				c.Request().Host = target.Host
			}
			return next(c)
		}
	})

	return e, nil
}

// allowAll は全オリジン許可。プリフライトは200で返す。
func allowAll(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		h := c.Response().Header()
		h.Set(echo.HeaderAccessControlAllowOrigin, "*")
		h.Set(echo.HeaderAccessControlAllowHeaders, corsAllowHeaders)
		h.Set(echo.HeaderAccessControlAllowMethods, corsAllowMethods)

		if c.Request().Method == http.MethodOptions {
			return c.NoContent(http.StatusOK)
		}
		return next(c)
	}
}
