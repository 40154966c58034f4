package dynamic

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/staffdesk/staffdesk/internal/platform/db"
	"github.com/staffdesk/staffdesk/internal/shared"
)

// Repository defines persistence for dynamic definitions.
type Repository interface {
	ListEntities(ctx context.Context, activeOnly bool) ([]Entity, error)
	ListPages(ctx context.Context, activeOnly bool) ([]Page, error)
	InsertEntity(ctx context.Context, e Entity) (Entity, error)
	InsertPage(ctx context.Context, p Page) (Page, error)
	SetEntityActive(ctx context.Context, id int64, active bool) (Entity, error)
	SetPageActive(ctx context.Context, id int64, active bool) (Page, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const (
	entityColumns = `id, name, slug, icon, display_order, is_active`
	pageColumns   = `id, title, slug, category, icon, display_order, is_active`
)

func scanEntity(row pgx.Row) (Entity, error) {
	var e Entity
	err := row.Scan(&e.ID, &e.Name, &e.Slug, &e.Icon, &e.DisplayOrder, &e.IsActive)
	return e, err
}

func scanPage(row pgx.Row) (Page, error) {
	var p Page
	err := row.Scan(&p.ID, &p.Title, &p.Slug, &p.Category, &p.Icon, &p.DisplayOrder, &p.IsActive)
	return p, err
}

// ListEntities returns entity definitions ordered by display order.
func (r *PGRepository) ListEntities(ctx context.Context, activeOnly bool) ([]Entity, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+entityColumns+` FROM dynamic_entities
		WHERE (NOT $1 OR is_active) ORDER BY display_order, name, id`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListPages returns page definitions ordered by category then display order.
func (r *PGRepository) ListPages(ctx context.Context, activeOnly bool) ([]Page, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+pageColumns+` FROM dynamic_pages
		WHERE (NOT $1 OR is_active) ORDER BY category, display_order, title, id`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// InsertEntity stores a new entity definition.
func (r *PGRepository) InsertEntity(ctx context.Context, e Entity) (Entity, error) {
	created, err := scanEntity(r.pool.QueryRow(ctx, `
		INSERT INTO dynamic_entities (name, slug, icon, display_order, is_active) VALUES ($1, $2, $3, $4, $5)
		RETURNING `+entityColumns, e.Name, e.Slug, e.Icon, e.DisplayOrder, e.IsActive))
	if _, dup := db.UniqueViolation(err); dup {
		return Entity{}, shared.NewFieldError("slug", "slug already in use")
	}
	return created, err
}

// InsertPage stores a new page definition.
func (r *PGRepository) InsertPage(ctx context.Context, p Page) (Page, error) {
	created, err := scanPage(r.pool.QueryRow(ctx, `
		INSERT INTO dynamic_pages (title, slug, category, icon, display_order, is_active) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+pageColumns, p.Title, p.Slug, p.Category, p.Icon, p.DisplayOrder, p.IsActive))
	if _, dup := db.UniqueViolation(err); dup {
		return Page{}, shared.NewFieldError("slug", "slug already in use")
	}
	return created, err
}

// SetEntityActive flips an entity definition on or off.
func (r *PGRepository) SetEntityActive(ctx context.Context, id int64, active bool) (Entity, error) {
	e, err := scanEntity(r.pool.QueryRow(ctx, `UPDATE dynamic_entities SET is_active = $2 WHERE id = $1 RETURNING `+entityColumns, id, active))
	if errors.Is(err, pgx.ErrNoRows) {
		return Entity{}, fmt.Errorf("dynamic entity %d: %w", id, shared.ErrNotFound)
	}
	return e, err
}

// SetPageActive flips a page definition on or off.
func (r *PGRepository) SetPageActive(ctx context.Context, id int64, active bool) (Page, error) {
	p, err := scanPage(r.pool.QueryRow(ctx, `UPDATE dynamic_pages SET is_active = $2 WHERE id = $1 RETURNING `+pageColumns, id, active))
	if errors.Is(err, pgx.ErrNoRows) {
		return Page{}, fmt.Errorf("dynamic page %d: %w", id, shared.ErrNotFound)
	}
	return p, err
}

var _ Repository = (*PGRepository)(nil)
