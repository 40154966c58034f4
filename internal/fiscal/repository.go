package fiscal

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
	ListYears(ctx context.Context) ([]FiscalYear, error)
	GetYear(ctx context.Context, id int64) (FiscalYear, error)
	CurrentYear(ctx context.Context) (FiscalYear, bool, error)
	ListActivities(ctx context.Context, yearID int64, activeOnly bool) ([]Activity, error)
	ListClientLinks(ctx context.Context, activityID int64) ([]ClientLink, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the operations that run inside one transaction.
type TxRepository interface {
	GetYear(ctx context.Context, id int64) (FiscalYear, error)
	FindYear(ctx context.Context, year int) (FiscalYear, bool, error)
	PriorYear(ctx context.Context, year int) (FiscalYear, bool, error)
	InsertYear(ctx context.Context, fy FiscalYear) (FiscalYear, error)
	UpdateYear(ctx context.Context, fy FiscalYear) (FiscalYear, error)
	ClearCurrent(ctx context.Context, exceptID int64) error
	DeleteYear(ctx context.Context, id int64) error

	ActivityTypeExists(ctx context.Context, typeID int64) (bool, error)
	ClientExists(ctx context.Context, clientID int64) (bool, error)
	GetActivity(ctx context.Context, id int64) (Activity, error)
	ListActivities(ctx context.Context, yearID int64, activeOnly bool) ([]Activity, error)
	ActivityExists(ctx context.Context, typeID, yearID int64) (bool, error)
	InsertActivity(ctx context.Context, a Activity) (Activity, error)
	ListClientLinks(ctx context.Context, activityID int64) ([]ClientLink, error)
	InsertClientLink(ctx context.Context, link ClientLink) (ClientLink, error)
	UpdateLinkStatus(ctx context.Context, linkID int64, status LinkStatus) (ClientLink, error)
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

const yearColumns = `id, year, is_active, is_current, created_at, updated_at`

func scanYear(row pgx.Row) (FiscalYear, error) {
	var fy FiscalYear
	err := row.Scan(&fy.ID, &fy.Year, &fy.IsActive, &fy.IsCurrent, &fy.CreatedAt, &fy.UpdatedAt)
	return fy, err
}

// ListYears returns fiscal years, newest first.
func (r *PGRepository) ListYears(ctx context.Context) ([]FiscalYear, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+yearColumns+` FROM fiscal_years ORDER BY year DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var years []FiscalYear
	for rows.Next() {
		fy, err := scanYear(rows)
		if err != nil {
			return nil, err
		}
		years = append(years, fy)
	}
	return years, rows.Err()
}

// GetYear fetches a fiscal year by ID.
func (r *PGRepository) GetYear(ctx context.Context, id int64) (FiscalYear, error) {
	return pgQueries{q: r.pool}.GetYear(ctx, id)
}

// CurrentYear returns the year flagged current, if any.
func (r *PGRepository) CurrentYear(ctx context.Context) (FiscalYear, bool, error) {
	fy, err := scanYear(r.pool.QueryRow(ctx, `SELECT `+yearColumns+` FROM fiscal_years WHERE is_current`))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FiscalYear{}, false, nil
		}
		return FiscalYear{}, false, err
	}
	return fy, true, nil
}

// ListActivities lists a year's activities ordered by activity-type display order.
func (r *PGRepository) ListActivities(ctx context.Context, yearID int64, activeOnly bool) ([]Activity, error) {
	return pgQueries{q: r.pool}.ListActivities(ctx, yearID, activeOnly)
}

// ListClientLinks lists the clients linked to an activity.
func (r *PGRepository) ListClientLinks(ctx context.Context, activityID int64) ([]ClientLink, error) {
	return pgQueries{q: r.pool}.ListClientLinks(ctx, activityID)
}

func (q pgQueries) GetYear(ctx context.Context, id int64) (FiscalYear, error) {
	fy, err := scanYear(q.q.QueryRow(ctx, `SELECT `+yearColumns+` FROM fiscal_years WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FiscalYear{}, fmt.Errorf("fiscal year %d: %w", id, shared.ErrNotFound)
		}
		return FiscalYear{}, err
	}
	return fy, nil
}

func (q pgQueries) FindYear(ctx context.Context, year int) (FiscalYear, bool, error) {
	return q.findOne(ctx, `SELECT `+yearColumns+` FROM fiscal_years WHERE year = $1`, year)
}

func (q pgQueries) PriorYear(ctx context.Context, year int) (FiscalYear, bool, error) {
	return q.findOne(ctx, `SELECT `+yearColumns+` FROM fiscal_years WHERE year < $1 ORDER BY year DESC LIMIT 1`, year)
}

func (q pgQueries) findOne(ctx context.Context, query string, args ...any) (FiscalYear, bool, error) {
	fy, err := scanYear(q.q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FiscalYear{}, false, nil
		}
		return FiscalYear{}, false, err
	}
	return fy, true, nil
}

func (q pgQueries) InsertYear(ctx context.Context, fy FiscalYear) (FiscalYear, error) {
	created, err := scanYear(q.q.QueryRow(ctx, `
		INSERT INTO fiscal_years (year, is_active, is_current) VALUES ($1, $2, $3)
		RETURNING `+yearColumns, fy.Year, fy.IsActive, fy.IsCurrent))
	if _, dup := db.UniqueViolation(err); dup {
		return FiscalYear{}, shared.NewFieldError("year", "fiscal year already exists")
	}
	return created, err
}

func (q pgQueries) UpdateYear(ctx context.Context, fy FiscalYear) (FiscalYear, error) {
	updated, err := scanYear(q.q.QueryRow(ctx, `
		UPDATE fiscal_years SET year = $2, is_active = $3, is_current = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING `+yearColumns, fy.ID, fy.Year, fy.IsActive, fy.IsCurrent))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FiscalYear{}, fmt.Errorf("fiscal year %d: %w", fy.ID, shared.ErrNotFound)
		}
		if _, dup := db.UniqueViolation(err); dup {
			return FiscalYear{}, shared.NewFieldError("year", "fiscal year already exists")
		}
		return FiscalYear{}, err
	}
	return updated, nil
}

// ClearCurrent must run before the target is flagged so the partial unique
// index on is_current never sees two rows.
func (q pgQueries) ClearCurrent(ctx context.Context, exceptID int64) error {
	_, err := q.q.Exec(ctx, `UPDATE fiscal_years SET is_current = FALSE, updated_at = NOW() WHERE is_current AND id <> $1`, exceptID)
	return err
}

func (q pgQueries) DeleteYear(ctx context.Context, id int64) error {
	tag, err := q.q.Exec(ctx, `DELETE FROM fiscal_years WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("fiscal year %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (q pgQueries) ActivityTypeExists(ctx context.Context, typeID int64) (bool, error) {
	var ok bool
	err := q.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM activity_types WHERE id = $1)`, typeID).Scan(&ok)
	return ok, err
}

func (q pgQueries) ClientExists(ctx context.Context, clientID int64) (bool, error) {
	var ok bool
	err := q.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM clients WHERE id = $1)`, clientID).Scan(&ok)
	return ok, err
}

const activitySelect = `
	SELECT ya.id, ya.fiscal_year_id, ya.activity_type_id, at.name, at.display_order,
	       ya.is_active, ya.due_date, ya.created_at
	FROM year_activities ya
	JOIN activity_types at ON at.id = ya.activity_type_id`

func scanActivity(row pgx.Row) (Activity, error) {
	var a Activity
	err := row.Scan(&a.ID, &a.FiscalYearID, &a.ActivityTypeID, &a.ActivityTypeName, &a.DisplayOrder,
		&a.IsActive, &a.DueDate, &a.CreatedAt)
	return a, err
}

func (q pgQueries) GetActivity(ctx context.Context, id int64) (Activity, error) {
	a, err := scanActivity(q.q.QueryRow(ctx, activitySelect+` WHERE ya.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Activity{}, fmt.Errorf("activity %d: %w", id, shared.ErrNotFound)
		}
		return Activity{}, err
	}
	return a, nil
}

func (q pgQueries) ListActivities(ctx context.Context, yearID int64, activeOnly bool) ([]Activity, error) {
	rows, err := q.q.Query(ctx, activitySelect+`
		WHERE ya.fiscal_year_id = $1 AND (NOT $2 OR ya.is_active)
		ORDER BY at.display_order, at.name, ya.id`, yearID, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (q pgQueries) ActivityExists(ctx context.Context, typeID, yearID int64) (bool, error) {
	var ok bool
	err := q.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM year_activities WHERE activity_type_id = $1 AND fiscal_year_id = $2)`,
		typeID, yearID).Scan(&ok)
	return ok, err
}

func (q pgQueries) InsertActivity(ctx context.Context, a Activity) (Activity, error) {
	var id int64
	err := q.q.QueryRow(ctx, `
		INSERT INTO year_activities (fiscal_year_id, activity_type_id, is_active, due_date)
		VALUES ($1, $2, $3, $4) RETURNING id`,
		a.FiscalYearID, a.ActivityTypeID, a.IsActive, a.DueDate).Scan(&id)
	if err != nil {
		if _, dup := db.UniqueViolation(err); dup {
			return Activity{}, shared.NewFieldError("activity_type_id", "activity already exists for this fiscal year")
		}
		return Activity{}, err
	}
	return q.GetActivity(ctx, id)
}

const linkColumns = `id, activity_id, client_id, status, updated_at`

func scanLink(row pgx.Row) (ClientLink, error) {
	var l ClientLink
	err := row.Scan(&l.ID, &l.ActivityID, &l.ClientID, &l.Status, &l.UpdatedAt)
	return l, err
}

func (q pgQueries) ListClientLinks(ctx context.Context, activityID int64) ([]ClientLink, error) {
	rows, err := q.q.Query(ctx, `SELECT `+linkColumns+` FROM client_activities WHERE activity_id = $1 ORDER BY client_id`, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ClientLink
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (q pgQueries) InsertClientLink(ctx context.Context, link ClientLink) (ClientLink, error) {
	created, err := scanLink(q.q.QueryRow(ctx, `
		INSERT INTO client_activities (activity_id, client_id, status) VALUES ($1, $2, $3)
		RETURNING `+linkColumns, link.ActivityID, link.ClientID, link.Status))
	if _, dup := db.UniqueViolation(err); dup {
		return ClientLink{}, shared.NewFieldError("client_id", "client already linked to this activity")
	}
	return created, err
}

func (q pgQueries) UpdateLinkStatus(ctx context.Context, linkID int64, status LinkStatus) (ClientLink, error) {
	updated, err := scanLink(q.q.QueryRow(ctx, `
		UPDATE client_activities SET status = $2, updated_at = NOW() WHERE id = $1
		RETURNING `+linkColumns, linkID, status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ClientLink{}, fmt.Errorf("client link %d: %w", linkID, shared.ErrNotFound)
		}
		return ClientLink{}, err
	}
	return updated, nil
}

var _ Repository = (*PGRepository)(nil)
