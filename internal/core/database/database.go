package database

import (
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"barebones/internal/core/config"
	"barebones/internal/core/logger"
)

var db *sqlx.DB

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Init Initialize database connection
func Init(cfg *config.DatabaseConfig) error {
	var err error

	db, err = Open(cfg)
	if err != nil {
		logger.Error("failed to connect database", logger.String("error", err.Error()))
		return err
	}

	logger.Info("database initialized successfully",
		logger.String("driver", cfg.Driver),
		logger.String("host", cfg.Host),
		logger.Int("port", cfg.Port),
		logger.String("database", cfg.Name))

	return nil
}

// Open connects and configures the pool without touching the package handle.
func Open(cfg *config.DatabaseConfig) (*sqlx.DB, error) {
	conn, err := sqlx.Connect(driverName(cfg), cfg.GetDSN())
	if err != nil {
		return nil, err
	}

	if cfg.Driver == "sqlite" {
		// one writer; transactions would otherwise fail with SQLITE_BUSY
		conn.SetMaxOpenConns(1)
		if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
			conn.Close()
			return nil, err
		}
		return conn, nil
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	return conn, nil
}

func driverName(cfg *config.DatabaseConfig) string {
	if cfg.Driver == "sqlite" {
		return "sqlite"
	}
	return "mysql"
}

// Get Get database instance
func Get() *sqlx.DB {
	return db
}

// Close Close database connection
func Close() error {
	if db != nil {
		return db.Close()
	}
	return nil
}

// Ping Check database connection
func Ping() error {
	if db == nil {
		return nil
	}
	return db.Ping()
}
