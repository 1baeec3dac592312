package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"strconv"
	"time"

	"github.com/vibast-solutions/ms-go-accounts/app/entity"

	"github.com/golang-jwt/jwt/v5"
)

const ResetTokenTimeout = 10 * time.Minute

// ResetTokenStatus is the outcome of checking a password-reset token.
type ResetTokenStatus int

const (
	ResetTokenValid ResetTokenStatus = iota
	ResetTokenInvalid
	ResetTokenExpired
)

func (s ResetTokenStatus) String() string {
	switch s {
	case ResetTokenValid:
		return "valid"
	case ResetTokenExpired:
		return "expired"
	default:
		return "invalid"
	}
}

// Err maps the status onto the service error taxonomy.
func (s ResetTokenStatus) Err() error {
	switch s {
	case ResetTokenValid:
		return nil
	case ResetTokenExpired:
		return ErrTokenExpired
	default:
		return ErrInvalidToken
	}
}

type resetClaims struct {
	Timeout int64 `json:"tmo"`
	jwt.RegisteredClaims
}

// ResetTokenCodec issues stateless password-reset tokens. The signing key is
// derived from the user's current password hash, so a password change voids
// every token issued before it.
type ResetTokenCodec struct {
	secret  []byte
	timeout time.Duration
	now     func() time.Time
}

func NewResetTokenCodec(secret string, now func() time.Time) *ResetTokenCodec {
	if now == nil {
		now = time.Now
	}
	return &ResetTokenCodec{
		secret:  []byte(secret),
		timeout: ResetTokenTimeout,
		now:     now,
	}
}

func (c *ResetTokenCodec) Issue(user *entity.User) (string, error) {
	issuedAt := c.now()
	claims := resetClaims{
		Timeout: int64(c.timeout / time.Second),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(c.timeout)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.signingKey(user))
}

// Verify checks the signature against user's current state and then the
// validity window. A bad signature always wins over expiry.
func (c *ResetTokenCodec) Verify(user *entity.User, token string) ResetTokenStatus {
	if user == nil || token == "" {
		return ResetTokenInvalid
	}

	claims := &resetClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return c.signingKey(user), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return ResetTokenInvalid
	}

	if claims.Subject != strconv.FormatUint(user.ID, 10) || claims.IssuedAt == nil || claims.Timeout <= 0 {
		return ResetTokenInvalid
	}

	deadline := claims.IssuedAt.Time.Add(time.Duration(claims.Timeout) * time.Second)
	if c.now().After(deadline) {
		return ResetTokenExpired
	}

	return ResetTokenValid
}

func (c *ResetTokenCodec) signingKey(user *entity.User) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte("reset|" + strconv.FormatUint(user.ID, 10) + "|" + user.PasswordHash))
	return mac.Sum(nil)
}
