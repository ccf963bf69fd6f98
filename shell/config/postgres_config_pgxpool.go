package config

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultHealthCheckPeriod = time.Minute

// PGXPoolConfig creates a pgxpool.Config for the given DSN with the configured pool settings.
func PGXPoolConfig(cfg DatabaseConfig, dsn string) (*pgxpool.Config, error) {
	dbConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pgx pool config: %w", err)
	}

	dbConfig.MaxConns = cfg.MaxConns
	dbConfig.MinConns = cfg.MinConns
	dbConfig.MaxConnLifetime = cfg.MaxConnLifetime
	dbConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	dbConfig.HealthCheckPeriod = defaultHealthCheckPeriod
	dbConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	return dbConfig, nil
}

// NewPGXPool opens and pings the primary pool.
func NewPGXPool(ctx context.Context, cfg DatabaseConfig) (*pgxpool.Pool, error) {
	return newPGXPool(ctx, cfg, cfg.DSN)
}

// NewPGXReplicaPool opens the replica pool, or returns nil if no replica is configured.
func NewPGXReplicaPool(ctx context.Context, cfg DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.ReplicaDSN == "" {
		return nil, nil //nolint:nilnil // no replica is a valid setup
	}

	return newPGXPool(ctx, cfg, cfg.ReplicaDSN)
}

func newPGXPool(ctx context.Context, cfg DatabaseConfig, dsn string) (*pgxpool.Pool, error) {
	poolConfig, err := PGXPoolConfig(cfg, dsn)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	if pingErr := pool.Ping(ctx); pingErr != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", pingErr)
	}

	return pool, nil
}
