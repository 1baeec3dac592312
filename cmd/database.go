package cmd

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"

	"github.com/vibast-solutions/ms-go-accounts/app/database"

	"github.com/joho/godotenv"
)

// openDatabaseFromEnv only needs MYSQL_DSN, so operator commands run without the service secrets.
func openDatabaseFromEnv(ctx context.Context) (*sql.DB, error) {
	_ = godotenv.Load()

	dsn := strings.TrimSpace(os.Getenv("MYSQL_DSN"))
	if dsn == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	return database.Open(ctx, dsn)
}
