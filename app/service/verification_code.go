package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/vibast-solutions/ms-go-accounts/app/entity"
	"github.com/vibast-solutions/ms-go-accounts/app/repository"
)

const (
	VerificationCodeTTL    = 10 * time.Minute
	verificationCodeDigits = 6
	maxCodeAttempts        = 2
)

var verificationCodeSpace = big.NewInt(1_000_000)

type verificationCodeWriter interface {
	DeleteByUserID(ctx context.Context, userID uint64) (int64, error)
	Create(ctx context.Context, code *entity.VerificationCode) error
}

// CodeGenerator issues the numeric one-time codes that prove email ownership.
type CodeGenerator struct {
	now    func() time.Time
	random io.Reader
}

func NewCodeGenerator(now func() time.Time) *CodeGenerator {
	if now == nil {
		now = time.Now
	}
	return &CodeGenerator{now: now, random: rand.Reader}
}

// Generate replaces whatever code userID currently holds with a fresh one.
// Callers pass a transaction-bound writer so the delete and the insert commit together.
// A concurrent insert for the same user is cleared and retried once, so the
// later writer wins.
func (g *CodeGenerator) Generate(ctx context.Context, codes verificationCodeWriter, userID uint64) (*entity.VerificationCode, error) {
	value, err := randomDigits(g.random)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		if _, err = codes.DeleteByUserID(ctx, userID); err != nil {
			return nil, err
		}

		now := g.now()
		code := &entity.VerificationCode{
			UserID:    userID,
			Code:      value,
			CreatedAt: now,
			ExpiresAt: now.Add(VerificationCodeTTL),
		}
		err = codes.Create(ctx, code)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, err
		}
	}

	return nil, ErrCodeConflict
}

func randomDigits(r io.Reader) (string, error) {
	n, err := rand.Int(r, verificationCodeSpace)
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	return fmt.Sprintf("%0*d", verificationCodeDigits, n.Int64()), nil
}
