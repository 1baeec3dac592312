package firebase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vibast-solutions/ms-go-accounts/app/entity"
	"github.com/vibast-solutions/ms-go-accounts/config"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

const issuerPrefix = "https://securetoken.google.com/"

var (
	ErrInvalidIDToken = errors.New("invalid firebase ID token")
	ErrNotConfigured  = errors.New("firebase project id is not configured")
)

type idTokenClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	AuthTime      int64  `json:"auth_time"`
	jwt.RegisteredClaims
}

type Option func(*Verifier)

// WithKeyfunc bypasses the JWKS download and resolves signing keys with kf.
func WithKeyfunc(kf jwt.Keyfunc) Option {
	return func(v *Verifier) {
		v.keyFunc = kf
	}
}

func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

// Verifier checks Firebase ID tokens against Google's published signing keys.
// The key set is fetched on first use and shared by every later call.
type Verifier struct {
	projectID string
	jwksURL   string
	now       func() time.Time

	mu      sync.Mutex
	jwks    *keyfunc.JWKS
	keyFunc jwt.Keyfunc
}

func NewVerifier(cfg config.FirebaseConfig, opts ...Option) *Verifier {
	v := &Verifier{
		projectID: cfg.ProjectID,
		jwksURL:   cfg.JWKSURL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify returns the identity asserted by rawToken. Errors wrapping
// ErrInvalidIDToken mean the token was rejected; anything else is a failure
// to reach or configure the provider.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (*entity.IdentityClaim, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if v.projectID == "" {
		return nil, ErrNotConfigured
	}

	kf, err := v.keys()
	if err != nil {
		return nil, err
	}

	claims := &idTokenClaims{}
	_, err = jwt.ParseWithClaims(rawToken, claims, kf,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.projectID),
		jwt.WithIssuer(issuerPrefix+v.projectID),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidIDToken, err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidIDToken)
	}
	if claims.AuthTime > v.now().Unix() {
		return nil, fmt.Errorf("%w: auth_time is in the future", ErrInvalidIDToken)
	}

	return &entity.IdentityClaim{
		UID:           claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		Picture:       claims.Picture,
	}, nil
}

// Close stops the background key refresh, if one was started.
func (v *Verifier) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

// keys builds the key set once. A failed fetch is not cached so the next call retries.
func (v *Verifier) keys() (jwt.Keyfunc, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.keyFunc != nil {
		return v.keyFunc, nil
	}

	jwks, err := keyfunc.Get(v.jwksURL, keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			logrus.WithError(err).Warn("Failed to refresh firebase signing keys")
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching firebase signing keys: %w", err)
	}

	logrus.WithField("url", v.jwksURL).Info("Loaded firebase signing keys")
	v.jwks = jwks
	v.keyFunc = jwks.Keyfunc
	return v.keyFunc, nil
}
