package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sudo-init-do/worldbank/internal/audit"
)

// History reads the transfer log that the audit worker writes. The engine
// itself never reads it; this exists for users reviewing their own activity
// and for officers pruning old records.
type History struct {
	pool *pgxpool.Pool
}

func NewHistory(pool *pgxpool.Pool) *History {
	return &History{pool: pool}
}

// ListByUser returns a user's transfers, most recent first.
func (h *History) ListByUser(ctx context.Context, userID string, limit int) ([]audit.TransferRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	rows, err := h.pool.Query(ctx, `
		SELECT id, user_id, from_economy, to_economy, amount_source, amount_target, rate_used, wallet, created_at
		FROM transfers
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	var out []audit.TransferRecord
	for rows.Next() {
		var r audit.TransferRecord
		if err := rows.Scan(&r.ID, &r.UserID, &r.FromEconomy, &r.ToEconomy,
			&r.AmountSource, &r.AmountTarget, &r.RateUsed, &r.Wallet, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CleanupOlderThan deletes transfer records older than the given number of
// days and reports how many went away.
func (h *History) CleanupOlderThan(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	tag, err := h.pool.Exec(ctx, `DELETE FROM transfers WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup transfers: %w", err)
	}
	return tag.RowsAffected(), nil
}
