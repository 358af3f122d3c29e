package common

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Init opens the sqlite database at path.
func Init(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	// SQLite allows a single writer; serialize through one connection so the
	// volunteer fan-out does not trip over "database is locked".
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

// TestDBInit opens a fresh in-memory database for tests.
func TestDBInit() *gorm.DB {
	db, err := Init("file::memory:")
	if err != nil {
		panic(err)
	}
	return db
}
