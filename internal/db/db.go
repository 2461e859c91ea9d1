package db

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/oggyb/edublin-connect/internal/config"
)

// NewDB opens the backend database selected by BACKEND_DRIVER and migrates
// the schema. Callers must check cfg.BackendConfigured first.
func NewDB(cfg *config.Config) (*gorm.DB, error) {
	dialector, err := Dialector(cfg.Backend.Driver, cfg.Backend.DSN)
	if err != nil {
		return nil, err
	}

	level := logger.Warn
	if cfg.Log.Level == "debug" {
		level = logger.Info // log SQL queries
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.Default.LogMode(level),
		SkipDefaultTransaction: true,
		TranslateError:         true,
		// page cursors carry millisecond timestamps
		NowFunc:                NowMillis,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Dialector maps a driver name to its gorm dialector.
func Dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "postgres", "postgresql", "":
		return postgres.Open(dsn), nil
	case "mysql":
		return mysql.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported backend driver %q", driver)
	}
}

// Migrate keeps the schema in sync with the models.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(All()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// NowMillis is the gorm clock: UTC truncated to the resolution of page
// cursors.
func NowMillis() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
