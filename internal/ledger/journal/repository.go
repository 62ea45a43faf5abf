package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saldoku/saldoku/internal/ledger/periods"
	"github.com/saldoku/saldoku/internal/platform/db"
)

// Repository encapsulates DB operations for journal entries.
type Repository interface {
	GetWithLines(ctx context.Context, entryID int64) (Entry, error)
	ListByPeriod(ctx context.Context, periodID int64, limit, offset int) ([]Entry, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within an emit transaction.
// It carries the period find-or-create as well: the period row must be
// resolved and locked inside the same transaction that writes lines,
// or a concurrent close could slip between check and commit.
type TxRepository interface {
	EnsurePeriod(ctx context.Context, tenantID, businessID int64, start, end time.Time) (periods.Period, error)
	InsertEntry(ctx context.Context, draft EntryDraft) (Entry, error)
	InsertLines(ctx context.Context, entryID int64, lines []LineDraft) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const entryColumns = `id, entry_number, tenant_id, business_id, period_id, source_type, source_id, event_code, entry_date, description, context, created_at`

func (r *repository) GetWithLines(ctx context.Context, entryID int64) (Entry, error) {
	row := r.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1`, entryID)
	entry, err := scanEntry(row)
	if err != nil {
		return Entry{}, err
	}
	rows, err := r.db.Query(ctx, `SELECT id, entry_id, account_id, direction, amount, channel_type, channel_id, finance_user_id, customer_id, created_at
FROM journal_lines WHERE entry_id=$1 ORDER BY id ASC`, entryID)
	if err != nil {
		return Entry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.EntryID, &line.AccountID, &line.Direction, &line.Amount, &line.ChannelType, &line.ChannelID, &line.FinanceUserID, &line.CustomerID, &line.CreatedAt); err != nil {
			return Entry{}, err
		}
		entry.Lines = append(entry.Lines, line)
	}
	return entry, rows.Err()
}

func (r *repository) ListByPeriod(ctx context.Context, periodID int64, limit, offset int) ([]Entry, error) {
	rows, err := r.db.Query(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE period_id=$1 ORDER BY entry_number DESC LIMIT $2 OFFSET $3`, periodID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
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

// EnsurePeriod duplicates the periods repository upsert, needed here so
// the lock lives inside the emit transaction. The DO UPDATE arm makes
// concurrent first-writers converge on one row: the loser waits on the
// winner's insert, then updates and returns the committed row, holding
// its lock until commit.
func (r *txRepository) EnsurePeriod(ctx context.Context, tenantID, businessID int64, start, end time.Time) (periods.Period, error) {
	var p periods.Period
	err := r.tx.QueryRow(ctx, `INSERT INTO accounting_periods (tenant_id, business_id, start_date, end_date, status)
VALUES ($1,$2,$3,$4,'OPEN')
ON CONFLICT (business_id, start_date) DO UPDATE SET updated_at = now()
RETURNING id, tenant_id, business_id, start_date, end_date, status, closed_at, closed_by, created_at, updated_at`, tenantID, businessID, start, end).
		Scan(&p.ID, &p.TenantID, &p.BusinessID, &p.StartDate, &p.EndDate, &p.Status, &p.ClosedAt, &p.ClosedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return periods.Period{}, periods.ErrNotFound
		}
		return periods.Period{}, err
	}
	return p, nil
}

func (r *txRepository) InsertEntry(ctx context.Context, draft EntryDraft) (Entry, error) {
	contextJSON, err := json.Marshal(draft.Context)
	if err != nil {
		return Entry{}, err
	}
	number, err := r.nextEntryNumber(ctx, draft.BusinessID)
	if err != nil {
		return Entry{}, err
	}
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (entry_number, tenant_id, business_id, period_id, source_type, source_id, event_code, entry_date, description, context)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id, entry_number, created_at`,
		number, draft.TenantID, draft.BusinessID, draft.PeriodID, draft.SourceType, draft.SourceID, draft.EventCode, draft.Date, draft.Description, contextJSON)
	entry := Entry{
		TenantID:    draft.TenantID,
		BusinessID:  draft.BusinessID,
		PeriodID:    draft.PeriodID,
		SourceType:  draft.SourceType,
		SourceID:    draft.SourceID,
		EventCode:   draft.EventCode,
		Date:        draft.Date,
		Description: draft.Description,
		Context:     draft.Context,
	}
	if err := row.Scan(&entry.ID, &entry.Number, &entry.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "uq_journal_entries_source" {
			return Entry{}, ErrDuplicateSource
		}
		return Entry{}, err
	}
	return entry, nil
}

// nextEntryNumber bumps the per-business counter row and holds its lock
// until commit, serializing numbering across every period of the
// business. The increment rolls back with a failed emit, so committed
// numbers stay gapless.
func (r *txRepository) nextEntryNumber(ctx context.Context, businessID int64) (int64, error) {
	var number int64
	err := r.tx.QueryRow(ctx, `INSERT INTO journal_entry_counters (business_id, last_number)
VALUES ($1, 1)
ON CONFLICT (business_id) DO UPDATE SET last_number = journal_entry_counters.last_number + 1
RETURNING last_number`, businessID).Scan(&number)
	if err != nil {
		return 0, fmt.Errorf("journal: next entry number: %w", err)
	}
	return number, nil
}

func (r *txRepository) InsertLines(ctx context.Context, entryID int64, lines []LineDraft) error {
	for idx, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO journal_lines (entry_id, account_id, direction, amount, channel_type, channel_id, finance_user_id, customer_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			entryID, line.AccountID, line.Direction, toNumeric(line.Amount), line.ChannelType, line.ChannelID, line.FinanceUserID, line.CustomerID); err != nil {
			return fmt.Errorf("journal: insert line %d: %w", idx, err)
		}
	}
	return nil
}

func scanEntry(row pgx.Row) (Entry, error) {
	var (
		entry      Entry
		contextRaw []byte
	)
	err := row.Scan(&entry.ID, &entry.Number, &entry.TenantID, &entry.BusinessID, &entry.PeriodID, &entry.SourceType, &entry.SourceID, &entry.EventCode, &entry.Date, &entry.Description, &contextRaw, &entry.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrEntryNotFound
		}
		return Entry{}, err
	}
	if len(contextRaw) > 0 {
		if err := json.Unmarshal(contextRaw, &entry.Context); err != nil {
			return Entry{}, err
		}
	}
	return entry, nil
}

func toNumeric(v float64) any {
	return fmt.Sprintf("%.2f", v)
}
