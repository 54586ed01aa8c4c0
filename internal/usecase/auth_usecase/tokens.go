package auth

import (
	"context"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/repository"
)

// ログインとリフレッシュで共通のトークン発行
type tokenMinter struct {
	rtRepo     repository.RefreshTokenRepository
	issuer     AccessTokenIssuer
	idGen      IDGenerator
	refreshTTL time.Duration
}

func (m tokenMinter) mint(ctx context.Context, user *model.User, userAgent string, now time.Time) (TokenPair, error) {
	accessToken, accessExp, err := m.issuer.Issue(user.ID, user.Role, user.TokenVersion, now)
	if err != nil {
		return TokenPair{}, err
	}

	plainRefresh, err := generateSecureToken(32)
	if err != nil {
		return TokenPair{}, err
	}

	refresh := &model.RefreshToken{
		ID:        m.idGen.NewID(),
		UserID:    user.ID,
		TokenHash: hashToken(plainRefresh),
		UserAgent: userAgent,
		ExpiresAt: now.Add(m.refreshTTL),
	}
	if err := m.rtRepo.Create(ctx, refresh); err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: plainRefresh,
		ExpiresIn:    int(accessExp.Sub(now).Seconds()),
		TokenVersion: user.TokenVersion,
	}, nil
}
