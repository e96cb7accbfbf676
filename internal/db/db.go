package db

import (
	"context"
	"fmt"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sudo-init-do/worldbank/internal/logger"
)

// Connect opens the pool, verifies connectivity and ensures the schema.
// The caller owns the returned pool and closes it on shutdown.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	// Rates and amounts are NUMERIC columns read into decimal.Decimal.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.L().Info("connected to Postgres")

	if err = ensureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// ensureSchema creates the tables this service owns if they don't exist.
func ensureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	ensure := []struct {
		name string
		stmt string
	}{
		{"economies", `
			CREATE TABLE IF NOT EXISTS economies (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				currency_name TEXT NOT NULL,
				currency_symbol TEXT NOT NULL,
				rate_usd NUMERIC NOT NULL CHECK (rate_usd > 0),
				status TEXT NOT NULL DEFAULT 'pending'
					CHECK (status IN ('pending', 'approved', 'rejected')),
				note TEXT,
				applied_by TEXT NOT NULL,
				applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP,
				approved_by TEXT,
				approved_at TIMESTAMP WITH TIME ZONE
			);
			CREATE INDEX IF NOT EXISTS idx_economies_status_applied
				ON economies(status, applied_at DESC);
		`},
		{"transfers", `
			CREATE TABLE IF NOT EXISTS transfers (
				id UUID PRIMARY KEY,
				user_id TEXT NOT NULL,
				from_economy TEXT NOT NULL,
				to_economy TEXT NOT NULL,
				amount_source NUMERIC NOT NULL,
				amount_target NUMERIC NOT NULL,
				rate_used NUMERIC NOT NULL,
				wallet TEXT NOT NULL CHECK (wallet IN ('cash', 'bank')),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_transfers_user_created
				ON transfers(user_id, created_at DESC);
		`},
		{"officers", `
			CREATE TABLE IF NOT EXISTS officers (
				user_id TEXT PRIMARY KEY,
				granted_by TEXT NOT NULL,
				granted_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
		`},
		{"audit_log", `
			CREATE TABLE IF NOT EXISTS audit_log (
				id BIGSERIAL PRIMARY KEY,
				action TEXT NOT NULL,
				user_id TEXT NOT NULL,
				economy_id TEXT,
				details TEXT,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
		`},
	}

	for _, e := range ensure {
		if _, err := pool.Exec(ctx, e.stmt); err != nil {
			return fmt.Errorf("ensure %s schema: %w", e.name, err)
		}
	}
	return nil
}
