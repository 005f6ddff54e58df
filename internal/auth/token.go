package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/invoiceapi/internal/model"
)

// トークンの固定パラメータ
const (
	// TokenValidity はトークンの有効期間。
	TokenValidity = 24 * time.Hour
	// TokenValidityLabel はログインレスポンスのexpiresInに返す表記。
	TokenValidityLabel = "24h"
	// FallbackSecret はJWT_SECRET未設定時に使う署名鍵。本番環境では必ずJWT_SECRETを設定すること。
	FallbackSecret = "fallback-secret"
)

var (
	// ErrTokenRevoked はログアウト済みのトークン。
	ErrTokenRevoked = errors.New("token revoked")
	// ErrTokenInvalid は署名不正・形式不正・期限切れのトークン。
	ErrTokenInvalid = errors.New("invalid or expired token")
)

// Claims はトークンに埋め込むクレーム。
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService はHS256署名トークンの発行・検証・失効を行う。
type TokenService struct {
	secret   []byte
	validity time.Duration
	store    RevocationStore
	now      func() time.Time
}

// NewTokenService はTokenServiceを生成する。
// secretが空の場合はFallbackSecretを使用し、WARNログを出力する。
func NewTokenService(secret string, store RevocationStore) *TokenService {
	if secret == "" {
		slog.Warn("JWT_SECRET is not set, using fallback secret",
			slog.String("component", "auth"),
		)
		secret = FallbackSecret
	}
	return &TokenService{
		secret:   []byte(secret),
		validity: TokenValidity,
		store:    store,
		now:      time.Now,
	}
}

// Issue は認証済み主体のトークンを発行する。有効期限は発行から24時間。
func (s *TokenService) Issue(identity model.Identity) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: identity.UserID,
		Email:  identity.Email,
		Name:   identity.Name,
		Role:   string(model.ParseRole(string(identity.Role))),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.validity)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify はトークンを検証し、埋め込まれた主体を返す。
// 失効済みの場合はErrTokenRevoked、それ以外の検証失敗はErrTokenInvalidを返す。
func (s *TokenService) Verify(ctx context.Context, token string) (*model.Identity, error) {
	revoked, err := s.store.Contains(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to check revocation: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	claims := &Claims{}
	_, err = jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.UserID == "" {
		return nil, ErrTokenInvalid
	}

	return &model.Identity{
		UserID: claims.UserID,
		Email:  claims.Email,
		Name:   claims.Name,
		Role:   model.ParseRole(claims.Role),
	}, nil
}

// Revoke はトークンを失効させる。同じトークンを複数回失効させても結果は変わらない。
func (s *TokenService) Revoke(ctx context.Context, token string) error {
	if err := s.store.Add(ctx, token, s.expiryOf(token)); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// expiryOf はトークンのexpを返す。読み取れない場合は最大有効期間後とする。
func (s *TokenService) expiryOf(token string) time.Time {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	return s.now().Add(s.validity)
}
