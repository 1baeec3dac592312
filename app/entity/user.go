package entity

import (
	"database/sql"
	"time"
)

type User struct {
	ID           uint64
	Email        string
	Username     string
	PasswordHash string
	IsVerified   bool
	IsActive     bool
	Image        sql.NullString
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type VerificationCode struct {
	ID        uint64
	UserID    uint64
	Code      string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsValid reports whether the code is still inside its validity window at now.
func (c *VerificationCode) IsValid(now time.Time) bool {
	return now.Before(c.ExpiresAt)
}

type BlacklistedToken struct {
	ID            uint64
	JTI           string
	UserID        uint64
	ExpiresAt     time.Time
	BlacklistedAt time.Time
}
