package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"matatu-feedback/config"

	"github.com/apex/log"
	_ "github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a row does not exist
var ErrNotFound = errors.New("not found")

// Database handles all report store operations
type Database struct {
	db *sql.DB
}

// NewDatabase opens the MySQL connection, retrying the first ping with
// exponential backoff until ctx is done
func NewDatabase(ctx context.Context, cfg *config.Config) (*Database, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&loc=UTC",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	waitInterval := 1 * time.Second
	for {
		err := db.PingContext(ctx)
		if err == nil {
			break
		}
		log.WithError(err).Warnf("Database connection failed, retrying in %v", waitInterval)
		select {
		case <-ctx.Done():
			db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		case <-time.After(waitInterval):
		}
		if waitInterval < 30*time.Second {
			waitInterval *= 2
		}
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	log.Infof("Database connected successfully to %s:%s/%s", cfg.DBHost, cfg.DBPort, cfg.DBName)

	return &Database{db: db}, nil
}

// New wraps an existing connection pool
func New(db *sql.DB) *Database {
	return &Database{db: db}
}

// Ping checks that the database is reachable
func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}
