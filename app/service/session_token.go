package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/vibast-solutions/ms-go-accounts/app/entity"
	"github.com/vibast-solutions/ms-go-accounts/app/repository"
	"github.com/vibast-solutions/ms-go-accounts/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

type Claims struct {
	UserID     uint64 `json:"user_id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	IsVerified bool   `json:"is_verified"`
	TokenType  string `json:"token_type"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	Access           string
	Refresh          string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

type blacklistedTokenRepository interface {
	Create(ctx context.Context, token *entity.BlacklistedToken) error
	ExistsByJTI(ctx context.Context, jti string) (bool, error)
}

// SessionIssuer mints access/refresh pairs and revokes refresh tokens by jti.
type SessionIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	blacklist  blacklistedTokenRepository
	now        func() time.Time
}

func NewSessionIssuer(cfg config.JWTConfig, blacklist blacklistedTokenRepository, now func() time.Time) *SessionIssuer {
	if now == nil {
		now = time.Now
	}
	return &SessionIssuer{
		secret:     []byte(cfg.Secret),
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		blacklist:  blacklist,
		now:        now,
	}
}

func (s *SessionIssuer) IssuePair(user *entity.User) (*TokenPair, error) {
	now := s.now()

	access, accessExp, err := s.sign(user, TokenTypeAccess, now, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.sign(user, TokenTypeRefresh, now, s.refreshTTL)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		Access:           access,
		Refresh:          refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *SessionIssuer) ValidateAccess(token string) (*Claims, error) {
	return s.parse(token, TokenTypeAccess)
}

// Redeem consumes a refresh token. The token's jti is blacklisted before the
// claims are handed back, so two concurrent redemptions cannot both succeed.
func (s *SessionIssuer) Redeem(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.parse(token, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	blacklisted, err := s.blacklist.ExistsByJTI(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if blacklisted {
		return nil, ErrInvalidToken
	}

	if err = s.revoke(ctx, claims); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	return claims, nil
}

// Blacklist revokes a refresh token. Tokens that are malformed, expired or
// already revoked need no record and report success.
func (s *SessionIssuer) Blacklist(ctx context.Context, token string) error {
	claims, err := s.parse(token, TokenTypeRefresh)
	if err != nil {
		return nil
	}

	if err = s.revoke(ctx, claims); err != nil && !errors.Is(err, repository.ErrDuplicate) {
		return err
	}
	return nil
}

func (s *SessionIssuer) revoke(ctx context.Context, claims *Claims) error {
	record := &entity.BlacklistedToken{
		JTI:           claims.ID,
		UserID:        claims.UserID,
		BlacklistedAt: s.now(),
	}
	if claims.ExpiresAt != nil {
		record.ExpiresAt = claims.ExpiresAt.Time
	}
	return s.blacklist.Create(ctx, record)
}

func (s *SessionIssuer) sign(user *entity.User, tokenType string, now time.Time, ttl time.Duration) (string, time.Time, error) {
	expiresAt := now.Add(ttl)
	claims := Claims{
		UserID:     user.ID,
		Username:   user.Username,
		Email:      user.Email,
		IsVerified: user.IsVerified,
		TokenType:  tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatUint(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (s *SessionIssuer) parse(tokenString, tokenType string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.TokenType != tokenType || claims.ID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
