package economy

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const economyColumns = `id, name, currency_name, currency_symbol, rate_usd, status,
	COALESCE(note, ''), applied_by, applied_at, approved_by, approved_at`

// Store owns the economies table. All registry access goes through it; no
// other component touches the table directly.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Register inserts a new application with status pending.
func (s *Store) Register(ctx context.Context, e *Economy) (*Economy, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO economies (id, name, currency_name, currency_symbol, rate_usd, note, applied_by)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
		RETURNING `+economyColumns,
		e.ID, e.Name, e.CurrencyName, e.CurrencySymbol, e.RateUSD, e.Note, e.AppliedBy,
	)

	created, err := scanEconomy(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("%w: %s", ErrDuplicate, e.ID)
		}
		return nil, fmt.Errorf("register economy: %w", err)
	}
	return created, nil
}

// Lookup fetches one economy by id.
func (s *Store) Lookup(ctx context.Context, id string) (*Economy, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+economyColumns+` FROM economies WHERE id = $1`, id)

	e, err := scanEconomy(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("lookup economy: %w", err)
	}
	return e, nil
}

// List returns economies most recently applied first, optionally filtered by
// status. An empty filter returns everything.
func (s *Store) List(ctx context.Context, filter Status) ([]Economy, error) {
	query := `SELECT ` + economyColumns + ` FROM economies`
	args := []any{}
	if filter != "" {
		query += ` WHERE status = $1`
		args = append(args, filter)
	}
	query += ` ORDER BY applied_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list economies: %w", err)
	}
	defer rows.Close()

	var out []Economy
	for rows.Next() {
		e, err := scanEconomy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan economy: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// Transition moves a pending application to approved or rejected. Approver
// identity and time are only recorded on approval. A non-pending current
// status fails with ErrInvalidTransition regardless of the requested target.
func (s *Store) Transition(ctx context.Context, id string, newStatus Status, actingOfficer string) (*Economy, error) {
	if newStatus != StatusApproved && newStatus != StatusRejected {
		return nil, fmt.Errorf("%w: target %q", ErrInvalidTransition, newStatus)
	}

	var tag pgconn.CommandTag
	var err error
	if newStatus == StatusApproved {
		tag, err = s.pool.Exec(ctx, `
			UPDATE economies
			SET status = 'approved', approved_by = $2, approved_at = NOW()
			WHERE id = $1 AND status = 'pending'`,
			id, actingOfficer)
	} else {
		tag, err = s.pool.Exec(ctx, `
			UPDATE economies SET status = 'rejected'
			WHERE id = $1 AND status = 'pending'`,
			id)
	}
	if err != nil {
		return nil, fmt.Errorf("transition economy: %w", err)
	}

	if tag.RowsAffected() == 0 {
		// Either the id is unknown or the application already left pending.
		if _, lerr := s.Lookup(ctx, id); lerr != nil {
			return nil, lerr
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidTransition, id)
	}

	return s.Lookup(ctx, id)
}

// Remove deletes the record. A missing id is reported, not swallowed;
// callers wanting idempotent semantics can ignore ErrNotFound themselves.
func (s *Store) Remove(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM economies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("remove economy: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func scanEconomy(row pgx.Row) (*Economy, error) {
	var e Economy
	err := row.Scan(&e.ID, &e.Name, &e.CurrencyName, &e.CurrencySymbol, &e.RateUSD,
		&e.Status, &e.Note, &e.AppliedBy, &e.AppliedAt, &e.ApprovedBy, &e.ApprovedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
