package store

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Connect opens the metadata database with a bounded retry loop —
// containers and the database frequently start in either order —
// ported from billing-app/internal/db/migrate.go's ConnectAndMigrate.
func Connect(dsn string) (*gorm.DB, error) {
	dsn = NormalizeDSN(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("store: metadata DSN is empty")
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	var db *gorm.DB
	var err error
	for i := 0; i < 10; i++ {
		db, err = gorm.Open(postgres.Open(dsn), cfg)
		if err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("store: connect after retries: %w", err)
	}
	if err := db.Exec("SELECT 1").Error; err != nil {
		return nil, fmt.Errorf("store: ping failed: %w", err)
	}
	return db, nil
}

// RunMigrations applies SQL migrations from migrationsPath (a
// "file://" source URL) using golang-migrate, the same tool
// billing-app uses for its production schema path.
func RunMigrations(dsn, migrationsPath string) error {
	dsn = NormalizeDSN(dsn)
	m, err := migrate.New(migrationsPath, toMigratePostgresURL(dsn))
	if err != nil {
		return fmt.Errorf("store: migrate.New: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("store: migrate up: %w", err)
	}
	return nil
}

func toMigratePostgresURL(dsn string) string {
	if len(dsn) >= 11 && dsn[:11] == "postgres://" {
		return dsn
	}
	return "postgres://" + dsn
}
