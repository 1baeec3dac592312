package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-accounts/app/entity"
)

type VerificationCodeRepository struct {
	db DBTX
}

func NewVerificationCodeRepository(db DBTX) *VerificationCodeRepository {
	return &VerificationCodeRepository{db: db}
}

func (r *VerificationCodeRepository) Create(ctx context.Context, code *entity.VerificationCode) error {
	query := `
		INSERT INTO verification_codes (user_id, code, created_at, expires_at)
		VALUES (?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		code.UserID,
		code.Code,
		code.CreatedAt,
		code.ExpiresAt,
	)
	if err != nil {
		return translateError(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	code.ID = uint64(id)
	return nil
}

func (r *VerificationCodeRepository) FindByUserID(ctx context.Context, userID uint64) (*entity.VerificationCode, error) {
	query := `
		SELECT id, user_id, code, created_at, expires_at
		FROM verification_codes WHERE user_id = ?
	`
	code := &entity.VerificationCode{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&code.ID,
		&code.UserID,
		&code.Code,
		&code.CreatedAt,
		&code.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return code, nil
}

func (r *VerificationCodeRepository) DeleteByUserID(ctx context.Context, userID uint64) (int64, error) {
	query := `DELETE FROM verification_codes WHERE user_id = ?`
	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *VerificationCodeRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM verification_codes WHERE expires_at < ?`
	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
