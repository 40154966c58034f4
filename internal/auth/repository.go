package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/staffdesk/staffdesk/internal/shared"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (Account, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByUsername fetches an account, matching the username case-insensitively.
func (r *PGRepository) FindByUsername(ctx context.Context, username string) (Account, error) {
	var a Account
	err := r.pool.QueryRow(ctx, `SELECT id, username, password_hash, is_active, updated_at FROM users WHERE LOWER(username) = LOWER($1)`, username).
		Scan(&a.ID, &a.Username, &a.PasswordHash, &a.IsActive, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrNotFound
		}
		return Account{}, err
	}
	return a, nil
}

var _ Repository = (*PGRepository)(nil)
