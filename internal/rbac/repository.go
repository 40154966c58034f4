package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/staffdesk/staffdesk/internal/platform/db"
	"github.com/staffdesk/staffdesk/internal/shared"
)

// Repository defines the persistence operations used by Service.
type Repository interface {
	RightsFor(ctx context.Context, username, pageURL string) (Rights, bool, error)
	UserRights(ctx context.Context, userID int64) ([]UserRight, error)
	GetRights(ctx context.Context, userID, pageID int64) (Rights, bool, error)
	ListPages(ctx context.Context) ([]Page, error)
	GetPage(ctx context.Context, id int64) (Page, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the operations that must run inside one transaction.
type TxRepository interface {
	GetUsername(ctx context.Context, userID int64) (string, error)
	GetPage(ctx context.Context, id int64) (Page, error)
	FindPageByURL(ctx context.Context, url string) (Page, bool, error)
	InsertPage(ctx context.Context, input PageInput) (Page, error)
	UpdatePage(ctx context.Context, id int64, input PageInput) (Page, error)
	DeletePage(ctx context.Context, id int64) error
	UpsertRights(ctx context.Context, userID, pageID int64, rights Rights) error
	DeleteRights(ctx context.Context, userID, pageID int64) error
	ClearUserRights(ctx context.Context, userID int64) error
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

// WithTx wraps callback in a repeatable-read transaction.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, pgQueries{q: tx})
	})
}

// RightsFor looks up the active user's rights on the page, matching both
// username and URL case-insensitively.
func (r *PGRepository) RightsFor(ctx context.Context, username, pageURL string) (Rights, bool, error) {
	const query = `
		SELECT up.can_view, up.can_edit, up.can_create, up.can_delete
		FROM user_permissions up
		JOIN users u ON u.id = up.user_id
		JOIN permissions p ON p.id = up.permission_id
		WHERE LOWER(u.username) = LOWER($1) AND u.is_active AND LOWER(p.url) = LOWER($2)`
	var rights Rights
	err := r.pool.QueryRow(ctx, query, username, pageURL).Scan(&rights.View, &rights.Edit, &rights.Create, &rights.Delete)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Rights{}, false, nil
		}
		return Rights{}, false, err
	}
	return rights, true, nil
}

// UserRights lists stored assignments for a user ordered like the catalog.
func (r *PGRepository) UserRights(ctx context.Context, userID int64) ([]UserRight, error) {
	const query = `
		SELECT p.id, p.url, p.name, p.icon, p.display_order, p.created_at, p.updated_at,
		       up.can_view, up.can_edit, up.can_create, up.can_delete
		FROM user_permissions up
		JOIN permissions p ON p.id = up.permission_id
		WHERE up.user_id = $1
		ORDER BY p.display_order, p.name`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []UserRight
	for rows.Next() {
		var ur UserRight
		if err := rows.Scan(&ur.Page.ID, &ur.Page.URL, &ur.Page.Name, &ur.Page.Icon, &ur.Page.DisplayOrder,
			&ur.Page.CreatedAt, &ur.Page.UpdatedAt, &ur.Rights.View, &ur.Rights.Edit, &ur.Rights.Create, &ur.Rights.Delete); err != nil {
			return nil, err
		}
		out = append(out, ur)
	}
	return out, rows.Err()
}

// GetRights returns the stored rights for one (user, page) pair.
func (r *PGRepository) GetRights(ctx context.Context, userID, pageID int64) (Rights, bool, error) {
	var rights Rights
	err := r.pool.QueryRow(ctx, `SELECT can_view, can_edit, can_create, can_delete FROM user_permissions WHERE user_id = $1 AND permission_id = $2`, userID, pageID).
		Scan(&rights.View, &rights.Edit, &rights.Create, &rights.Delete)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Rights{}, false, nil
		}
		return Rights{}, false, err
	}
	return rights, true, nil
}

// ListPages returns the catalog ordered by display order then name.
func (r *PGRepository) ListPages(ctx context.Context) ([]Page, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, url, name, icon, display_order, created_at, updated_at FROM permissions ORDER BY display_order, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var pages []Page
	for rows.Next() {
		var p Page
		if err := rows.Scan(&p.ID, &p.URL, &p.Name, &p.Icon, &p.DisplayOrder, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// GetPage fetches a page descriptor by ID.
func (r *PGRepository) GetPage(ctx context.Context, id int64) (Page, error) {
	return pgQueries{q: r.pool}.GetPage(ctx, id)
}

func (q pgQueries) GetUsername(ctx context.Context, userID int64) (string, error) {
	var username string
	if err := q.q.QueryRow(ctx, `SELECT username FROM users WHERE id = $1`, userID).Scan(&username); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("user %d: %w", userID, shared.ErrNotFound)
		}
		return "", err
	}
	return username, nil
}

func (q pgQueries) GetPage(ctx context.Context, id int64) (Page, error) {
	var p Page
	err := q.q.QueryRow(ctx, `SELECT id, url, name, icon, display_order, created_at, updated_at FROM permissions WHERE id = $1`, id).
		Scan(&p.ID, &p.URL, &p.Name, &p.Icon, &p.DisplayOrder, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Page{}, fmt.Errorf("page %d: %w", id, shared.ErrNotFound)
		}
		return Page{}, err
	}
	return p, nil
}

func (q pgQueries) FindPageByURL(ctx context.Context, url string) (Page, bool, error) {
	var p Page
	err := q.q.QueryRow(ctx, `SELECT id, url, name, icon, display_order, created_at, updated_at FROM permissions WHERE LOWER(url) = LOWER($1)`, url).
		Scan(&p.ID, &p.URL, &p.Name, &p.Icon, &p.DisplayOrder, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Page{}, false, nil
		}
		return Page{}, false, err
	}
	return p, true, nil
}

func (q pgQueries) InsertPage(ctx context.Context, input PageInput) (Page, error) {
	var p Page
	err := q.q.QueryRow(ctx, `
		INSERT INTO permissions (url, name, icon, display_order) VALUES ($1, $2, $3, $4)
		RETURNING id, url, name, icon, display_order, created_at, updated_at`,
		input.URL, input.Name, input.Icon, input.DisplayOrder).
		Scan(&p.ID, &p.URL, &p.Name, &p.Icon, &p.DisplayOrder, &p.CreatedAt, &p.UpdatedAt)
	if _, dup := db.UniqueViolation(err); dup {
		return Page{}, shared.NewFieldError("url", "page URL already exists")
	}
	return p, err
}

func (q pgQueries) UpdatePage(ctx context.Context, id int64, input PageInput) (Page, error) {
	var p Page
	err := q.q.QueryRow(ctx, `
		UPDATE permissions SET url = $2, name = $3, icon = $4, display_order = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING id, url, name, icon, display_order, created_at, updated_at`,
		id, input.URL, input.Name, input.Icon, input.DisplayOrder).
		Scan(&p.ID, &p.URL, &p.Name, &p.Icon, &p.DisplayOrder, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Page{}, fmt.Errorf("page %d: %w", id, shared.ErrNotFound)
		}
		if _, dup := db.UniqueViolation(err); dup {
			return Page{}, shared.NewFieldError("url", "page URL already exists")
		}
		return Page{}, err
	}
	return p, nil
}

func (q pgQueries) DeletePage(ctx context.Context, id int64) error {
	if _, err := q.q.Exec(ctx, `DELETE FROM user_permissions WHERE permission_id = $1`, id); err != nil {
		return err
	}
	tag, err := q.q.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("page %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (q pgQueries) UpsertRights(ctx context.Context, userID, pageID int64, rights Rights) error {
	_, err := q.q.Exec(ctx, `
		INSERT INTO user_permissions (user_id, permission_id, can_view, can_edit, can_create, can_delete)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, permission_id) DO UPDATE
		SET can_view = EXCLUDED.can_view, can_edit = EXCLUDED.can_edit,
		    can_create = EXCLUDED.can_create, can_delete = EXCLUDED.can_delete`,
		userID, pageID, rights.View, rights.Edit, rights.Create, rights.Delete)
	return err
}

func (q pgQueries) DeleteRights(ctx context.Context, userID, pageID int64) error {
	_, err := q.q.Exec(ctx, `DELETE FROM user_permissions WHERE user_id = $1 AND permission_id = $2`, userID, pageID)
	return err
}

func (q pgQueries) ClearUserRights(ctx context.Context, userID int64) error {
	_, err := q.q.Exec(ctx, `DELETE FROM user_permissions WHERE user_id = $1`, userID)
	return err
}

var _ Repository = (*PGRepository)(nil)
