package database

import (
	"database/sql"
	"embed"

	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const migrationsDir = "migrations"

func prepare() error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(logrus.StandardLogger())
	return goose.SetDialect("mysql")
}

// MigrateUp applies every pending migration.
func MigrateUp(db *sql.DB) error {
	if err := prepare(); err != nil {
		return err
	}
	return goose.Up(db, migrationsDir)
}

// MigrateDown rolls back the last applied migration.
func MigrateDown(db *sql.DB) error {
	if err := prepare(); err != nil {
		return err
	}
	return goose.Down(db, migrationsDir)
}

// MigrateStatus logs the state of each migration.
func MigrateStatus(db *sql.DB) error {
	if err := prepare(); err != nil {
		return err
	}
	return goose.Status(db, migrationsDir)
}
