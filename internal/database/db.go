// Package database opens the identity store's gorm handle for sqlite,
// postgres or mysql and owns the schema migration.
package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Canonical driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Config contains database connection options.
type Config struct {
	Driver string
	Path   string // sqlite file; empty or ":memory:" selects a shared in-memory database
	DSN    string // overrides every other connection field

	Host     string
	Port     int
	Name     string
	User     string
	Password string
	Options  map[string]string

	Pool PoolConfig

	// LogSQL routes every statement to Logger at debug level.
	LogSQL bool
	Logger *zap.Logger
}

// PoolConfig bounds the underlying database/sql pool. Zero values keep the
// driver defaults. In-memory sqlite always uses a single connection.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NormalizeDriver maps driver aliases to their canonical name. Unknown names
// are returned lower-cased so Open can reject them.
func NormalizeDriver(driver string) string {
	switch d := strings.ToLower(strings.TrimSpace(driver)); d {
	case "", "sqlite", "sqlite3":
		return DriverSQLite
	case "postgres", "postgresql", "pg":
		return DriverPostgres
	case "mysql", "mariadb":
		return DriverMySQL
	default:
		return d
	}
}

// Open initialises a gorm.DB using the provided configuration.
func Open(cfg Config) (*gorm.DB, error) {
	cfg.Driver = NormalizeDriver(cfg.Driver)

	dialector, memory, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newGormLogger(cfg.Logger, cfg.LogSQL),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	pool := cfg.Pool
	if memory {
		// An in-memory database vanishes with its last connection.
		pool = PoolConfig{MaxOpenConns: 1, MaxIdleConns: 1}
	}
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	if cfg.Driver == DriverSQLite {
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
		}
	}

	return db, nil
}

// Migrate brings the schema up to date. It is safe to call on every start.
func Migrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("database: nil handle")
	}
	if err := AutoMigrate(db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func dialectorFor(cfg Config) (gorm.Dialector, bool, error) {
	switch cfg.Driver {
	case DriverSQLite:
		dsn, memory, err := sqliteDSN(cfg)
		if err != nil {
			return nil, false, err
		}
		return sqlite.Open(dsn), memory, nil
	case DriverPostgres:
		dsn, err := postgresDSN(cfg)
		if err != nil {
			return nil, false, err
		}
		return postgres.Open(dsn), false, nil
	case DriverMySQL:
		dsn, err := mysqlDSN(cfg)
		if err != nil {
			return nil, false, err
		}
		return mysql.Open(dsn), false, nil
	default:
		return nil, false, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o750)
}
