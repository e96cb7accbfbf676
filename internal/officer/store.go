// Package officer holds the authorization data for administrative actions:
// a designated owner identity plus a persisted set of officers. The owner is
// always authorized and is never stored in the set.
package officer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrAlreadyOfficer = errors.New("officer: user already in the officer set")
	ErrNotOfficer     = errors.New("officer: user not in the officer set")
	ErrOwnerReserved  = errors.New("officer: the owner is implicit and cannot be added")
)

// Officer is one member of the officer set.
type Officer struct {
	UserID    string    `json:"user_id"`
	GrantedBy string    `json:"granted_by"`
	GrantedAt time.Time `json:"granted_at"`
}

// Store owns the officers table and the gate checks built on it.
type Store struct {
	pool    *pgxpool.Pool
	ownerID string
}

func NewStore(pool *pgxpool.Pool, ownerID string) *Store {
	return &Store{pool: pool, ownerID: ownerID}
}

// IsOwner reports whether userID is the designated owner.
func (s *Store) IsOwner(userID string) bool {
	return userID == s.ownerID
}

// IsAuthorized reports whether userID may perform administrative actions:
// the owner always may, officers may.
func (s *Store) IsAuthorized(ctx context.Context, userID string) (bool, error) {
	if s.IsOwner(userID) {
		return true, nil
	}
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM officers WHERE user_id = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check officer: %w", err)
	}
	return exists, nil
}

// Add grants officer status. Adding the owner is rejected so the implicit
// authority never shadows a stored row.
func (s *Store) Add(ctx context.Context, userID, grantedBy string) (*Officer, error) {
	if s.IsOwner(userID) {
		return nil, ErrOwnerReserved
	}

	var o Officer
	err := s.pool.QueryRow(ctx, `
		INSERT INTO officers (user_id, granted_by)
		VALUES ($1, $2)
		RETURNING user_id, granted_by, granted_at`,
		userID, grantedBy,
	).Scan(&o.UserID, &o.GrantedBy, &o.GrantedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyOfficer, userID)
		}
		return nil, fmt.Errorf("add officer: %w", err)
	}
	return &o, nil
}

// Remove revokes officer status. A missing user is reported.
func (s *Store) Remove(ctx context.Context, userID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM officers WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("remove officer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotOfficer, userID)
	}
	return nil
}

// List returns the officer set, most recently granted first.
func (s *Store) List(ctx context.Context) ([]Officer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, granted_by, granted_at
		FROM officers
		ORDER BY granted_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list officers: %w", err)
	}
	defer rows.Close()

	var out []Officer
	for rows.Next() {
		var o Officer
		if err := rows.Scan(&o.UserID, &o.GrantedBy, &o.GrantedAt); err != nil {
			return nil, fmt.Errorf("scan officer: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
