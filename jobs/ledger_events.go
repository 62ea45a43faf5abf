package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/saldoku/saldoku/internal/ledger/engine"
	"github.com/saldoku/saldoku/internal/ledger/journal"
	"github.com/saldoku/saldoku/internal/ledger/payload"
)

const (
	// QueueLedger carries posting traffic, weighted above default.
	QueueLedger = "ledger"
	// TaskTypeLedgerEmit is the task type for posting a business event.
	TaskTypeLedgerEmit = "ledger:event:emit"
)

// LedgerEmitPayload mirrors the HTTP emit request so producers on either
// transport serialize the same shape.
type LedgerEmitPayload struct {
	TraceID     string         `json:"trace_id"`
	TenantID    int64          `json:"tenant_id"`
	BusinessID  int64          `json:"business_id"`
	EventCode   string         `json:"event_code"`
	SourceType  string         `json:"source_type"`
	SourceID    int64          `json:"source_id"`
	OccurredAt  time.Time      `json:"occurred_at"`
	UserID      *int64         `json:"user_id,omitempty"`
	ChannelType string         `json:"channel_type"`
	ChannelID   *int64         `json:"channel_id,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
	Description string         `json:"description,omitempty"`
}

func (p LedgerEmitPayload) toEvent() engine.Event {
	return engine.Event{
		TenantID:   p.TenantID,
		BusinessID: p.BusinessID,
		EventCode:  p.EventCode,
		SourceType: p.SourceType,
		SourceID:   p.SourceID,
		OccurredAt: p.OccurredAt,
		Actor: engine.Actor{
			UserID:      p.UserID,
			ChannelType: p.ChannelType,
			ChannelID:   p.ChannelID,
		},
		Payload:     payload.Map(p.Payload),
		Description: p.Description,
	}
}

// NewLedgerEmitTask constructs an emit task. The task ID is derived from
// the source identity so a producer retrying its publish collapses onto
// one queued task; the database unique constraint remains the final
// idempotency guard.
func NewLedgerEmitTask(p LedgerEmitPayload) (*asynq.Task, error) {
	if p.TraceID == "" {
		p.TraceID = uuid.NewString()
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	taskID := fmt.Sprintf("%s:%s:%d:%s", TaskTypeLedgerEmit, p.SourceType, p.SourceID, p.EventCode)
	return asynq.NewTask(TaskTypeLedgerEmit, data, asynq.TaskID(taskID), asynq.Queue(QueueLedger)), nil
}

// Emitter is the slice of the posting engine the worker needs.
type Emitter interface {
	Emit(ctx context.Context, ev engine.Event) (journal.Entry, error)
}

// NewLedgerEmitHandler returns the asynq handler for TaskTypeLedgerEmit.
// Rejections that re-delivery cannot fix skip retry; transient failures
// bubble up for asynq's backoff.
func NewLedgerEmitHandler(logger *slog.Logger, emitter Emitter) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var p LedgerEmitPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			logger.Error("ledger emit task: bad payload", slog.Any("error", err))
			return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
		}

		entry, err := emitter.Emit(ctx, p.toEvent())
		if err != nil {
			if errors.Is(err, journal.ErrDuplicateSource) {
				// Redelivery of an already-posted event is success.
				logger.Info("ledger emit task: source already posted",
					slog.String("trace_id", p.TraceID),
					slog.String("source_type", p.SourceType),
					slog.Int64("source_id", p.SourceID),
				)
				return nil
			}
			if isPermanentEmitError(err) {
				logger.Warn("ledger emit task: rejected",
					slog.String("trace_id", p.TraceID),
					slog.String("event_code", p.EventCode),
					slog.String("error", err.Error()),
				)
				return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
			}
			return err
		}

		logger.Info("ledger emit task: posted",
			slog.String("trace_id", p.TraceID),
			slog.String("event_code", p.EventCode),
			slog.Int64("entry_id", entry.ID),
		)
		return nil
	}
}

// isPermanentEmitError reports whether the rejection is one no retry can
// resolve. A closed period is deliberately treated as permanent: reopening
// is a manual act, and the producer should re-emit after it.
func isPermanentEmitError(err error) bool {
	var notOpen *engine.PeriodNotOpenError
	var noRules *engine.NoMatchingRulesError
	var amountErr *engine.AmountResolutionError
	var unbalanced *journal.UnbalancedEntryError
	switch {
	case errors.Is(err, engine.ErrFutureDate),
		errors.Is(err, engine.ErrNoLines),
		errors.Is(err, journal.ErrCollectorMissing),
		errors.As(err, &notOpen),
		errors.As(err, &noRules),
		errors.As(err, &amountErr),
		errors.As(err, &unbalanced):
		return true
	}
	return false
}
