package server

import (
	"net/http"
	"time"

	"storefront/internal/config"
	"storefront/internal/handler"
	infraRepo "storefront/internal/infra/repository"
	"storefront/internal/middleware"
	"storefront/internal/usecase"
	auth "storefront/internal/usecase/auth_usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// bcryptのコスト
const passwordHashCost = 12

type uuidGenerator struct{}

func (uuidGenerator) NewID() string {
	return uuid.NewString()
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

// Handlers はルーティングに必要なもの一式
type Handlers struct {
	Auth     *handler.AuthHandler
	Cart     *handler.CartHandler
	Wishlist *handler.WishlistHandler
	Product  *handler.ProductHandler

	// /cart, /wishlist に付ける認証
	RequireAuth []echo.MiddlewareFunc
}

// Wire はRepository→Usecase→Handlerを組み立てる
func Wire(cfg config.Config, db *gorm.DB) Handlers {
	//Repository（GORM実装）
	userRepo := infraRepo.NewUserGormRepository(db)
	rtRepo := infraRepo.NewRefreshTokenRepository(db)
	cartRepo := infraRepo.NewCartGormRepository(db)
	productRepo := infraRepo.NewProductGormRepository(db)
	wishlistRepo := infraRepo.NewWishlistGormRepository(db)

	//usecaseに渡す部品
	idGen := uuidGenerator{}
	clock := realClock{}
	hasher := auth.NewBcryptPasswordHasher(passwordHashCost)
	verifier := auth.NewBcryptPasswordVerifier()
	issuer := auth.NewJWTIssuer(cfg.JWTSecret, cfg.AccessTTL)

	//Usecase
	registerUC := auth.NewRegisterUserUsecase(userRepo, hasher)
	loginUC := auth.NewLoginUsecase(userRepo, rtRepo, verifier, issuer, idGen, clock, cfg.RefreshTTL)
	refreshUC := auth.NewRefreshUsecase(userRepo, rtRepo, issuer, idGen, clock, cfg.RefreshTTL)
	cartUC := usecase.NewCartUsecase(cartRepo, cartRepo, productRepo)
	wishlistUC := usecase.NewWishlistUsecase(wishlistRepo, productRepo)
	productUC := usecase.NewProductUsecase(productRepo)

	return Handlers{
		Auth:     handler.NewAuthHandler(registerUC, loginUC, refreshUC, cfg.RefreshTTL, cfg.IsProd()),
		Cart:     handler.NewCartHandler(cartUC),
		Wishlist: handler.NewWishlistHandler(wishlistUC),
		Product:  handler.NewProductHandler(productUC),
		RequireAuth: []echo.MiddlewareFunc{
			middleware.AuthJWT(cfg.JWTSecret),
			middleware.TokenVersionGuard(userRepo),
		},
	}
}

// New はechoを作ってミドルウェアとルートを載せる
func New(cfg config.Config, db *gorm.DB, logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{cfg.FEURL},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))

	RegisterRoutes(e, Wire(cfg, db))
	return e
}
