package jobs

import (
	"context"
	"log/slog"
	"math"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TaskTypeIntegrityScan is the nightly ledger balance scan.
const TaskTypeIntegrityScan = "ledger:integrity:scan"

// NewIntegrityScanTask constructs the scan task for the scheduler.
func NewIntegrityScanTask() *asynq.Task {
	return asynq.NewTask(TaskTypeIntegrityScan, nil, asynq.Queue(QueueDefault))
}

// NewIntegrityScanHandler scans every period for aggregate debit/credit
// drift. Per-entry balance is enforced at posting time, so a hit here
// means manual interference or corruption and is worth waking someone up.
func NewIntegrityScanHandler(logger *slog.Logger, pool *pgxpool.Pool) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		rows, err := pool.Query(ctx, `SELECT p.id, p.business_id,
COALESCE(SUM(l.amount) FILTER (WHERE l.direction = 'DEBIT'), 0),
COALESCE(SUM(l.amount) FILTER (WHERE l.direction = 'CREDIT'), 0)
FROM accounting_periods p
LEFT JOIN journal_entries e ON e.period_id = p.id
LEFT JOIN journal_lines l ON l.entry_id = e.id
GROUP BY p.id, p.business_id`)
		if err != nil {
			return err
		}
		defer rows.Close()

		flagged := 0
		for rows.Next() {
			var periodID, businessID int64
			var debit, credit float64
			if err := rows.Scan(&periodID, &businessID, &debit, &credit); err != nil {
				return err
			}
			if math.Abs(debit-credit) > 0.01 {
				flagged++
				logger.Error("period balance drift",
					slog.Int64("period_id", periodID),
					slog.Int64("business_id", businessID),
					slog.Float64("debit", debit),
					slog.Float64("credit", credit),
				)
			}
		}
		if err := rows.Err(); err != nil {
			return err
		}
		logger.Info("integrity scan finished", slog.Int("flagged", flagged))
		return nil
	}
}
