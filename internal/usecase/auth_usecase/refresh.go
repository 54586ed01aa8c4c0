package auth

import (
	"context"
	"errors"
	"time"

	"storefront/internal/repository"
)

type RefreshInput struct {
	RefreshToken string
	UserAgent    string
}

// RefreshUsecase はリフレッシュトークンのローテーション。
// 一度使ったトークンがもう一度来たら漏洩とみなし、そのユーザーのトークンを全部消す。
type RefreshUsecase struct {
	userRepo repository.UserRepository
	rtRepo   repository.RefreshTokenRepository
	clock    Clock
	minter   tokenMinter
}

func NewRefreshUsecase(
	userRepo repository.UserRepository,
	rtRepo repository.RefreshTokenRepository,
	issuer AccessTokenIssuer,
	idGen IDGenerator,
	clock Clock,
	refreshTTL time.Duration,
) *RefreshUsecase {
	return &RefreshUsecase{
		userRepo: userRepo,
		rtRepo:   rtRepo,
		clock:    clock,
		minter: tokenMinter{
			rtRepo:     rtRepo,
			issuer:     issuer,
			idGen:      idGen,
			refreshTTL: refreshTTL,
		},
	}
}

func (u *RefreshUsecase) Execute(ctx context.Context, in RefreshInput) (TokenPair, error) {
	if in.RefreshToken == "" {
		return TokenPair{}, ErrInvalidRefreshToken
	}

	rt, err := u.rtRepo.FindByTokenHash(ctx, hashToken(in.RefreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return TokenPair{}, ErrInvalidRefreshToken
		}
		return TokenPair{}, err
	}

	now := u.clock.Now()

	//期限切れは消して401
	if rt.IsExpired(now) {
		_ = u.rtRepo.DeleteByID(ctx, rt.ID)
		return TokenPair{}, ErrInvalidRefreshToken
	}
	if rt.RevokedAt != nil {
		return TokenPair{}, ErrInvalidRefreshToken
	}

	//used済みが来たら replay → 全削除
	if rt.UsedAt != nil {
		_ = u.rtRepo.DeleteAllByUserID(ctx, rt.UserID)
		return TokenPair{}, ErrRefreshTokenReused
	}

	user, err := u.userRepo.FindByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return TokenPair{}, ErrInvalidRefreshToken
		}
		return TokenPair{}, err
	}
	if !user.IsActive {
		return TokenPair{}, ErrUserInactive
	}

	//旧tokenをusedにする。同時に来た別リクエストが先に使っていたらreplay扱い
	if err := u.rtRepo.MarkUsed(ctx, rt.ID, now); err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			_ = u.rtRepo.DeleteAllByUserID(ctx, rt.UserID)
			return TokenPair{}, ErrRefreshTokenReused
		}
		return TokenPair{}, err
	}

	userAgent := in.UserAgent
	if userAgent == "" {
		userAgent = rt.UserAgent
	}
	return u.minter.mint(ctx, user, userAgent, now)
}
