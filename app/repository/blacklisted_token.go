package repository

import (
	"context"

	"github.com/vibast-solutions/ms-go-accounts/app/entity"
)

type BlacklistedTokenRepository struct {
	db DBTX
}

func NewBlacklistedTokenRepository(db DBTX) *BlacklistedTokenRepository {
	return &BlacklistedTokenRepository{db: db}
}

// Create appends a blacklist entry. A jti that is already present yields ErrDuplicate.
func (r *BlacklistedTokenRepository) Create(ctx context.Context, token *entity.BlacklistedToken) error {
	query := `
		INSERT INTO blacklisted_tokens (jti, user_id, expires_at, blacklisted_at)
		VALUES (?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		token.JTI,
		token.UserID,
		token.ExpiresAt,
		token.BlacklistedAt,
	)
	if err != nil {
		return translateError(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	token.ID = uint64(id)
	return nil
}

func (r *BlacklistedTokenRepository) ExistsByJTI(ctx context.Context, jti string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM blacklisted_tokens WHERE jti = ?)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, jti).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
