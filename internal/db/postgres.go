package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tamj/config"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// PostgresDB keeps entitlement slots in a single key/value table.
type PostgresDB struct {
	pool *pgxpool.Pool
}

const schema = `
	CREATE TABLE IF NOT EXISTS entitlement_slots (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

func NewPostgresDB(cfg config.DBConfig) (*PostgresDB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode, cfg.MaxOpenConns,
	)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DB connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.ConnLifetime
	poolConfig.MaxConnIdleTime = 15 * time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create slot table: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

func (db *PostgresDB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

func (db *PostgresDB) Get(ctx context.Context, key string) (string, bool, error) {
	query := `
        SELECT value
        FROM entitlement_slots
        WHERE key = $1
    `

	var value string
	err := db.pool.QueryRow(ctx, query, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get slot %q: %w", key, err)
	}
	return value, true, nil
}

func (db *PostgresDB) Set(ctx context.Context, key, value string) error {
	query := `
        INSERT INTO entitlement_slots (key, value)
        VALUES ($1, $2)
        ON CONFLICT (key) DO UPDATE
        SET value = $2, updated_at = NOW()
    `

	if _, err := db.pool.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to set slot %q: %w", key, err)
	}
	return nil
}

func (db *PostgresDB) Delete(ctx context.Context, key string) error {
	query := `
        DELETE FROM entitlement_slots
        WHERE key = $1
    `

	if _, err := db.pool.Exec(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete slot %q: %w", key, err)
	}
	return nil
}
