package menu

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/staffdesk/staffdesk/internal/platform/db"
	"github.com/staffdesk/staffdesk/internal/shared"
)

// Repository defines the read operations and the transaction boundary used by Service.
type Repository interface {
	ListNodes(ctx context.Context) ([]Node, error)
	GetNode(ctx context.Context, id int64) (Node, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the operations that run inside one transaction.
type TxRepository interface {
	GetNode(ctx context.Context, id int64) (Node, error)
	Siblings(ctx context.Context, parentID *int64) ([]Node, error)
	Children(ctx context.Context, parentID int64) ([]Node, error)
	MaxSiblingOrder(ctx context.Context, parentID *int64) (int, error)
	InsertNode(ctx context.Context, n Node) (Node, error)
	UpdateNode(ctx context.Context, n Node) (Node, error)
	SetOrder(ctx context.Context, id int64, order int) error
	DeleteNode(ctx context.Context, id int64) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

type pgQueries struct {
	q db.Querier
}

const siblingOrderConstraint = "uq_menu_nodes_sibling_order"

// WithTx wraps callback in a repeatable-read transaction. A commit rejected
// by the deferred sibling-order constraint yields ErrOrderContention.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, pgQueries{q: tx})
	})
	if name, dup := db.UniqueViolation(err); dup && name == siblingOrderConstraint {
		return fmt.Errorf("%w: %w", ErrOrderContention, err)
	}
	return err
}

const nodeColumns = `id, parent_id, name, url, icon, is_visible, display_order, kind`

func scanNode(row pgx.Row) (Node, error) {
	var n Node
	err := row.Scan(&n.ID, &n.ParentID, &n.Name, &n.URL, &n.Icon, &n.IsVisible, &n.DisplayOrder, &n.Kind)
	return n, err
}

func collectNodes(rows pgx.Rows, err error) ([]Node, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// ListNodes returns every node ordered by parent then display order.
func (r *PGRepository) ListNodes(ctx context.Context) ([]Node, error) {
	return collectNodes(r.pool.Query(ctx, `SELECT `+nodeColumns+` FROM menu_nodes ORDER BY parent_id NULLS FIRST, display_order, id`))
}

// GetNode fetches a node by ID.
func (r *PGRepository) GetNode(ctx context.Context, id int64) (Node, error) {
	return pgQueries{q: r.pool}.GetNode(ctx, id)
}

func (q pgQueries) GetNode(ctx context.Context, id int64) (Node, error) {
	n, err := scanNode(q.q.QueryRow(ctx, `SELECT `+nodeColumns+` FROM menu_nodes WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Node{}, fmt.Errorf("menu node %d: %w", id, shared.ErrNotFound)
		}
		return Node{}, err
	}
	return n, nil
}

func (q pgQueries) Siblings(ctx context.Context, parentID *int64) ([]Node, error) {
	return collectNodes(q.q.Query(ctx, `SELECT `+nodeColumns+` FROM menu_nodes
		WHERE parent_id IS NOT DISTINCT FROM $1 ORDER BY display_order, id`, parentID))
}

func (q pgQueries) Children(ctx context.Context, parentID int64) ([]Node, error) {
	return collectNodes(q.q.Query(ctx, `SELECT `+nodeColumns+` FROM menu_nodes WHERE parent_id = $1 ORDER BY display_order, id`, parentID))
}

func (q pgQueries) MaxSiblingOrder(ctx context.Context, parentID *int64) (int, error) {
	var max int
	err := q.q.QueryRow(ctx, `SELECT COALESCE(MAX(display_order), 0) FROM menu_nodes WHERE parent_id IS NOT DISTINCT FROM $1`, parentID).Scan(&max)
	return max, err
}

func (q pgQueries) InsertNode(ctx context.Context, n Node) (Node, error) {
	return scanNode(q.q.QueryRow(ctx, `
		INSERT INTO menu_nodes (parent_id, name, url, icon, is_visible, display_order, kind)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+nodeColumns,
		n.ParentID, n.Name, n.URL, n.Icon, n.IsVisible, n.DisplayOrder, n.Kind))
}

func (q pgQueries) UpdateNode(ctx context.Context, n Node) (Node, error) {
	updated, err := scanNode(q.q.QueryRow(ctx, `
		UPDATE menu_nodes SET name = $2, url = $3, icon = $4, is_visible = $5
		WHERE id = $1
		RETURNING `+nodeColumns,
		n.ID, n.Name, n.URL, n.Icon, n.IsVisible))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Node{}, fmt.Errorf("menu node %d: %w", n.ID, shared.ErrNotFound)
		}
		return Node{}, err
	}
	return updated, nil
}

func (q pgQueries) SetOrder(ctx context.Context, id int64, order int) error {
	_, err := q.q.Exec(ctx, `UPDATE menu_nodes SET display_order = $2 WHERE id = $1`, id, order)
	return err
}

func (q pgQueries) DeleteNode(ctx context.Context, id int64) error {
	tag, err := q.q.Exec(ctx, `DELETE FROM menu_nodes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("menu node %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
