// Package database handles database connections and migrations.
package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"vibefeed/internal/config"
	"vibefeed/internal/middleware"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// PostgresDSN builds the libpq style connection string for cfg.
func PostgresDSN(cfg *config.Config) string {
	sslMode := cfg.DBSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBName,
		sslMode,
	)
}

// SQLiteDSN turns a file path (or ":memory:") into a DSN with foreign keys enabled.
func SQLiteDSN(path string) string {
	if path == "" || path == ":memory:" {
		path = "file::memory:"
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on"
}

// Connect opens the database named by cfg.DBDriver and tunes its pool.
// Outside production the schema is auto-migrated on the way up.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	dialector := postgres.Open(PostgresDSN(cfg))
	if cfg.DBDriver == "sqlite" {
		dialector = sqlite.Open(SQLiteDSN(cfg.SQLitePath))
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: newQueryLogger(gormLevel(cfg.LogLevel))})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBDriver, err)
	}
	if err := configurePool(db, cfg.DBDriver); err != nil {
		return nil, err
	}
	middleware.Logger.Info("database connected", "driver", cfg.DBDriver)

	if cfg.IsProduction() {
		return db, nil
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	middleware.Logger.Info("database schema migrated")
	return db, nil
}

// OpenSQLite opens a migrated SQLite database at path. Used by tests and the seed tool.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(SQLiteDSN(path)), &gorm.Config{Logger: newQueryLogger(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := configurePool(db, "sqlite"); err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func configurePool(db *gorm.DB, driver string) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("sql.DB handle: %w", err)
	}
	if driver == "sqlite" {
		// One connection keeps in-memory databases and PRAGMAs consistent
		sqlDB.SetMaxOpenConns(1)
		return nil
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	return nil
}

// Ping checks that the database answers within ctx.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
