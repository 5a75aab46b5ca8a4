package repository

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/timmy/tenderkg/internal/config"
	"github.com/timmy/tenderkg/internal/domain"
	"github.com/timmy/tenderkg/internal/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// InitDB initializes the database connection based on configuration and runs migrations.
// Parameters:
//   - cfg: database configuration including driver and connection settings.
// Returns:
//   - *gorm.DB: initialized database handle.
//   - error: non-nil if connection or migration fails.
func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	logMode := gormlogger.Silent
	if cfg.LogSQL {
		logMode = gormlogger.Info
	}
	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(logMode),
	}

	log := logger.GetDefault().WithField(logger.FieldComponent, "db")
	log.Infof("Initializing database with driver %q", cfg.Driver)

	var db *gorm.DB
	var err error
	switch cfg.Driver {
	case "postgres":
		db, err = initPostgres(cfg, gormConfig)
	case "sqlite", "":
		db, err = initSQLite(cfg, gormConfig)
	default:
		log.Warnf("Unknown driver %q, defaulting to SQLite", cfg.Driver)
		db, err = initSQLite(cfg, gormConfig)
	}
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get sql.DB instance")
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if cfg.AutoMigrate {
		log.Info("Running auto-migration")
		if err := db.AutoMigrate(&domain.EpisodeRecord{}, &domain.IngestJob{}); err != nil {
			return nil, errors.Wrap(err, "failed to migrate database")
		}
	}

	return db, nil
}

// initPostgres disables implicit prepared statements so transaction poolers
// (pgbouncer, Supabase port 6543) work.
func initPostgres(cfg *config.DatabaseConfig, gormConfig *gorm.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: true,
	}), gormConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to PostgreSQL")
	}
	return db, nil
}

func initSQLite(cfg *config.DatabaseConfig, gormConfig *gorm.Config) (*gorm.DB, error) {
	if cfg.Path != "" && !isMemoryPath(cfg.Path) {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, errors.Wrap(err, "failed to create database directory")
		}
	}

	db, err := gorm.Open(sqlite.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to SQLite")
	}

	if !isMemoryPath(cfg.Path) {
		db.Exec("PRAGMA journal_mode=WAL")
	}
	db.Exec("PRAGMA foreign_keys=ON")

	return db, nil
}

func isMemoryPath(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}
