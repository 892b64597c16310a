package audit

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// OpenDev opens a file-backed sqlite database for local/dev deployments,
// mirroring the teacher's dev-mode database bootstrap.
func OpenDev(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("audit: open sqlite: %w", err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("audit: migrate sqlite: %w", err)
	}
	return db, nil
}

// OpenProd opens a postgres database for production deployments.
func OpenProd(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("audit: open postgres: %w", err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("audit: migrate postgres: %w", err)
	}
	return db, nil
}
