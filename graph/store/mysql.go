package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a Store backed by MySQL or MariaDB, for audit trails shared
// by several draftloop processes.
//
// The DSN format is the go-sql-driver one:
//
//	user:password@tcp(localhost:3306)/draftloop
//
// Never hardcode credentials; read the DSN from the environment.
type MySQLStore struct {
	sqlStore
}

// NewMySQLStore connects to dsn and creates the schema if needed.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	table := `
		CREATE TABLE IF NOT EXISTS run_events (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			run_id VARCHAR(255) NOT NULL,
			step INT NOT NULL,
			stage VARCHAR(255) NOT NULL,
			msg VARCHAR(64) NOT NULL,
			ts BIGINT NOT NULL,
			meta JSON NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_run_id (run_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`
	if err := execAll(ctx, db, table); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &MySQLStore{sqlStore: sqlStore{db: db}}, nil
}
