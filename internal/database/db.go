package database

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is the global database instance
var DB *gorm.DB

// Supported drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	connectMaxElapsed = 30 * time.Second
	connectMaxRetries = 6
)

// Dialector returns the gorm dialector for a driver name
func Dialector(driver, dsn string) (gorm.Dialector, error) {
	switch strings.ToLower(driver) {
	case "", DriverPostgres:
		return postgres.Open(dsn), nil
	case DriverSQLite:
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Connect establishes the database connection, retrying with exponential backoff
// while the database comes up.
func Connect(driver, dsn string, logLevel logger.LogLevel) error {
	dialector, err := Dialector(driver, dsn)
	if err != nil {
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = connectMaxElapsed

	var db *gorm.DB
	err = backoff.Retry(func() error {
		var openErr error
		db, openErr = gorm.Open(dialector, &gorm.Config{
			Logger: logger.Default.LogMode(logLevel),
		})
		if openErr != nil {
			log.Printf("Database: connect failed, retrying: %v", openErr)
			return openErr
		}
		sqlDB, openErr := db.DB()
		if openErr != nil {
			return backoff.Permanent(openErr)
		}
		if strings.EqualFold(driver, DriverSQLite) {
			// sqlite allows one writer; a single connection avoids "database is locked"
			sqlDB.SetMaxOpenConns(1)
		}
		if openErr = sqlDB.Ping(); openErr != nil {
			log.Printf("Database: ping failed, retrying: %v", openErr)
			return openErr
		}
		return nil
	}, backoff.WithMaxRetries(bo, connectMaxRetries))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	DB = db
	log.Printf("Database connection established (driver: %s)", strings.ToLower(driver))
	return nil
}

// ParseLogLevel maps silent|error|warn|info to a gorm log level, defaulting to warn
func ParseLogLevel(s string) logger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// AutoMigrate runs database migrations on the global connection
func AutoMigrate() error {
	log.Println("Running database migrations...")
	if err := Migrate(DB); err != nil {
		return err
	}
	log.Println("Database migrations completed successfully")
	return nil
}

// Migrate creates or updates the schema on db
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&Site{},
		&Observation{},
		&Alert{},
		&Recommendation{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// Close closes the database connection
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
