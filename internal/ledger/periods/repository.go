package periods

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saldoku/saldoku/internal/platform/db"
)

// Repository exposes period persistence. Mutations run inside WithTx so
// the status check and the write cannot be interleaved with a posting
// transaction reading the same row.
type Repository interface {
	FindByDate(ctx context.Context, businessID int64, date time.Time) (Period, error)
	List(ctx context.Context, businessID int64, limit, offset int) ([]Period, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	Ensure(ctx context.Context, tenantID, businessID int64, start, end time.Time) (Period, error)
	GetForUpdate(ctx context.Context, periodID int64) (Period, error)
	EntryTotals(ctx context.Context, periodID int64) (debit, credit float64, err error)
	SetStatus(ctx context.Context, periodID int64, status Status, closedAt *time.Time, closedBy *int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const periodColumns = `id, tenant_id, business_id, start_date, end_date, status, closed_at, closed_by, created_at, updated_at`

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.TenantID, &p.BusinessID, &p.StartDate, &p.EndDate, &p.Status, &p.ClosedAt, &p.ClosedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, ErrNotFound
		}
		return Period{}, err
	}
	return p, nil
}

func (r *repository) FindByDate(ctx context.Context, businessID int64, date time.Time) (Period, error) {
	start, _ := MonthBounds(date)
	row := r.db.QueryRow(ctx, `SELECT `+periodColumns+` FROM accounting_periods WHERE business_id=$1 AND start_date=$2`, businessID, start)
	return scanPeriod(row)
}

func (r *repository) List(ctx context.Context, businessID int64, limit, offset int) ([]Period, error) {
	rows, err := r.db.Query(ctx, `SELECT `+periodColumns+` FROM accounting_periods WHERE business_id=$1 ORDER BY start_date DESC LIMIT $2 OFFSET $3`, businessID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Period
	for rows.Next() {
		var p Period
		if err := rows.Scan(&p.ID, &p.TenantID, &p.BusinessID, &p.StartDate, &p.EndDate, &p.Status, &p.ClosedAt, &p.ClosedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

// Ensure performs the unique-constraint-backed find-or-create and
// returns the surviving row, locked until commit by the DO UPDATE arm.
// Two callers racing on the first event of a month converge on one row:
// the loser waits on the winner's insert, then updates and returns the
// committed row.
func (r *txRepository) Ensure(ctx context.Context, tenantID, businessID int64, start, end time.Time) (Period, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO accounting_periods (tenant_id, business_id, start_date, end_date, status)
VALUES ($1,$2,$3,$4,'OPEN')
ON CONFLICT (business_id, start_date) DO UPDATE SET updated_at = now()
RETURNING `+periodColumns, tenantID, businessID, start, end)
	return scanPeriod(row)
}

func (r *txRepository) GetForUpdate(ctx context.Context, periodID int64) (Period, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM accounting_periods WHERE id=$1 FOR UPDATE`, periodID)
	return scanPeriod(row)
}

// EntryTotals sums debit and credit amounts across every line posted
// into the period, the aggregate gate for closing.
func (r *txRepository) EntryTotals(ctx context.Context, periodID int64) (float64, float64, error) {
	var debit, credit float64
	err := r.tx.QueryRow(ctx, `SELECT
COALESCE(SUM(l.amount) FILTER (WHERE l.direction='DEBIT'), 0),
COALESCE(SUM(l.amount) FILTER (WHERE l.direction='CREDIT'), 0)
FROM journal_lines l
JOIN journal_entries e ON e.id = l.entry_id
WHERE e.period_id=$1`, periodID).Scan(&debit, &credit)
	if err != nil {
		return 0, 0, err
	}
	return debit, credit, nil
}

func (r *txRepository) SetStatus(ctx context.Context, periodID int64, status Status, closedAt *time.Time, closedBy *int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounting_periods SET status=$2, closed_at=$3, closed_by=$4, updated_at=NOW() WHERE id=$1`, periodID, status, closedAt, closedBy)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
