package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"time"

	"github.com/vibast-solutions/ms-go-accounts/app/entity"
	"github.com/vibast-solutions/ms-go-accounts/app/repository"

	"golang.org/x/crypto/bcrypt"
)

const (
	maxUsernameBaseLength = 140
	maxCreateAttempts     = 5
	randomPasswordLength  = 12
	randomPasswordCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*()"
)

type userRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindByID(ctx context.Context, id uint64) (*entity.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	Update(ctx context.Context, user *entity.User) error
}

// IdentityBridge maps identities asserted by an external provider onto local users.
type IdentityBridge struct {
	users      userRepository
	bcryptCost int
	now        func() time.Time
	random     io.Reader
}

func NewIdentityBridge(users userRepository, bcryptCost int, now func() time.Time) *IdentityBridge {
	if now == nil {
		now = time.Now
	}
	return &IdentityBridge{
		users:      users,
		bcryptCost: bcryptCost,
		now:        now,
		random:     rand.Reader,
	}
}

// Resolve returns the local user for claim, creating one on first sight.
// Existing users are only ever upgraded to verified, never downgraded.
func (b *IdentityBridge) Resolve(ctx context.Context, claim *entity.IdentityClaim) (*entity.User, error) {
	if claim == nil {
		return nil, ErrMissingEmail
	}
	email := NormalizeEmail(claim.Email)
	if email == "" {
		return nil, ErrMissingEmail
	}

	user, err := b.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return b.upgrade(ctx, user, claim)
	}

	return b.create(ctx, email, claim)
}

func (b *IdentityBridge) upgrade(ctx context.Context, user *entity.User, claim *entity.IdentityClaim) (*entity.User, error) {
	if !claim.EmailVerified || user.IsVerified {
		return user, nil
	}

	user.IsVerified = true
	if err := b.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (b *IdentityBridge) create(ctx context.Context, email string, claim *entity.IdentityClaim) (*entity.User, error) {
	password, err := randomPassword(b.random, randomPasswordLength)
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.bcryptCost)
	if err != nil {
		return nil, err
	}

	base := usernameBase(email)
	suffix := 0
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		var username string
		username, suffix, err = b.freeUsername(ctx, base, suffix)
		if err != nil {
			return nil, err
		}

		now := b.now()
		user := &entity.User{
			Email:        email,
			Username:     username,
			PasswordHash: string(hash),
			IsVerified:   claim.EmailVerified,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if claim.Picture != "" {
			user.Image = sql.NullString{String: claim.Picture, Valid: true}
		}

		err = b.users.Create(ctx, user)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, err
		}

		// Lost a race: either the email appeared or the username was taken.
		existing, findErr := b.users.FindByEmail(ctx, email)
		if findErr != nil {
			return nil, findErr
		}
		if existing != nil {
			return b.upgrade(ctx, existing, claim)
		}
		suffix++
	}

	return nil, fmt.Errorf("allocate username for %s: %w", email, ErrUsernameTaken)
}

// freeUsername walks base, base1, base2... starting at suffix and returns the
// first candidate not in use together with the suffix it used.
func (b *IdentityBridge) freeUsername(ctx context.Context, base string, suffix int) (string, int, error) {
	for {
		candidate := base
		if suffix > 0 {
			candidate = base + strconv.Itoa(suffix)
		}

		exists, err := b.users.ExistsByUsername(ctx, candidate)
		if err != nil {
			return "", 0, err
		}
		if !exists {
			return candidate, suffix, nil
		}
		suffix++
	}
}

func randomPassword(r io.Reader, length int) (string, error) {
	charsetSize := big.NewInt(int64(len(randomPasswordCharset)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(r, charsetSize)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		buf[i] = randomPasswordCharset[n.Int64()]
	}
	return string(buf), nil
}
