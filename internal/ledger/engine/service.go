package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/saldoku/saldoku/internal/ledger/journal"
	"github.com/saldoku/saldoku/internal/ledger/periods"
	"github.com/saldoku/saldoku/internal/ledger/rules"
	"github.com/saldoku/saldoku/internal/shared"
)

// RuleSource supplies the active rule set for an event code.
type RuleSource interface {
	ActiveRules(ctx context.Context, tenantID, businessID int64, eventCode string) ([]rules.Rule, error)
}

// PeriodSource resolves existing periods without creating them, used
// only by the non-persisting preview path.
type PeriodSource interface {
	FindByDate(ctx context.Context, businessID int64, date time.Time) (periods.Period, error)
}

// AuditPort records emissions after they commit.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort receives posting outcomes. Nil-safe at the call sites so
// tests can omit it.
type MetricsPort interface {
	EntryPosted(eventCode string)
	EmitFailed(reason string)
	ObserveEmit(d time.Duration)
}

// Service is the event coordinator: it wraps period resolution, rule
// matching, line construction and balance validation into one atomic
// unit of work per event.
type Service struct {
	journals    journal.Repository
	ruleSource  RuleSource
	periodsRead PeriodSource
	builder     *journal.Builder
	audit       AuditPort
	metrics     MetricsPort
	now         func() time.Time
}

func NewService(journals journal.Repository, ruleSource RuleSource, periodsRead PeriodSource, audit AuditPort) *Service {
	return &Service{
		journals:    journals,
		ruleSource:  ruleSource,
		periodsRead: periodsRead,
		builder:     journal.NewBuilder(),
		audit:       audit,
		now:         time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithMetrics attaches a metrics recorder.
func (s *Service) WithMetrics(m MetricsPort) {
	s.metrics = m
}

// WithBuilder swaps the journal builder, used to install custom
// description templates.
func (s *Service) WithBuilder(b *journal.Builder) {
	if b != nil {
		s.builder = b
	}
}

// Emit converts the event into one persisted, balanced journal entry.
// Every step from period resolution to line insertion runs in a single
// transaction; any failure rolls the whole unit back.
func (s *Service) Emit(ctx context.Context, ev Event) (journal.Entry, error) {
	started := s.now()
	entry, err := s.emit(ctx, ev)
	if err != nil {
		s.countFailure(err)
		return journal.Entry{}, err
	}
	if s.metrics != nil {
		s.metrics.EntryPosted(ev.EventCode)
		s.metrics.ObserveEmit(s.now().Sub(started))
	}
	s.recordAudit(ctx, ev, entry)
	return entry, nil
}

func (s *Service) emit(ctx context.Context, ev Event) (journal.Entry, error) {
	if err := ev.Validate(); err != nil {
		return journal.Entry{}, err
	}
	if ev.OccurredAt.After(s.now()) {
		return journal.Entry{}, ErrFutureDate
	}
	candidates, err := s.ruleSource.ActiveRules(ctx, ev.TenantID, ev.BusinessID, ev.EventCode)
	if err != nil {
		return journal.Entry{}, err
	}

	evCtx := ev.context()
	var entry journal.Entry
	err = s.journals.WithTx(ctx, func(ctx context.Context, tx journal.TxRepository) error {
		start, end := periods.MonthBounds(ev.OccurredAt)
		period, err := tx.EnsurePeriod(ctx, ev.TenantID, ev.BusinessID, start, end)
		if err != nil {
			return err
		}
		if period.Status != periods.StatusOpen {
			return &PeriodNotOpenError{Status: period.Status}
		}

		// The period gate comes first: an event aimed at a closed month
		// is rejected for the period, not for its rule set.
		matched, err := rules.Match(candidates, ev.Payload)
		if err != nil {
			return err
		}
		if len(matched) == 0 {
			return &NoMatchingRulesError{EventCode: ev.EventCode}
		}

		draft := s.builder.Header(evCtx, period)
		lines := make([]journal.LineDraft, 0, len(matched))
		for _, rule := range matched {
			line, err := s.builder.Line(rule, evCtx)
			if err != nil {
				return &AmountResolutionError{RuleID: rule.ID, Err: err}
			}
			if line == nil {
				continue
			}
			lines = append(lines, *line)
		}
		if len(lines) == 0 {
			return ErrNoLines
		}
		if err := journal.ValidateBalance(lines); err != nil {
			return err
		}

		inserted, err := tx.InsertEntry(ctx, draft)
		if err != nil {
			return err
		}
		if err := tx.InsertLines(ctx, inserted.ID, lines); err != nil {
			return err
		}
		inserted.Lines = materialize(inserted.ID, lines)
		entry = inserted
		return nil
	})
	if err != nil {
		return journal.Entry{}, err
	}
	return entry, nil
}

func (s *Service) matchedRules(ctx context.Context, ev Event) ([]rules.Rule, error) {
	candidates, err := s.ruleSource.ActiveRules(ctx, ev.TenantID, ev.BusinessID, ev.EventCode)
	if err != nil {
		return nil, err
	}
	matched, err := rules.Match(candidates, ev.Payload)
	if err != nil {
		return nil, err
	}
	if len(matched) == 0 {
		return nil, &NoMatchingRulesError{EventCode: ev.EventCode}
	}
	return matched, nil
}

// GetRulesForEvent is a read-only inspection call for callers building
// rule-authoring UIs.
func (s *Service) GetRulesForEvent(ctx context.Context, tenantID, businessID int64, eventCode string) ([]rules.Rule, error) {
	return s.ruleSource.ActiveRules(ctx, tenantID, businessID, eventCode)
}

func (s *Service) recordAudit(ctx context.Context, ev Event, entry journal.Entry) {
	if s.audit == nil {
		return
	}
	var actorID int64
	if ev.Actor.UserID != nil {
		actorID = *ev.Actor.UserID
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "journal.emit",
		Entity:   "journal_entry",
		EntityID: fmt.Sprintf("%d", entry.ID),
		Meta: map[string]any{
			"event_code":  ev.EventCode,
			"source_type": ev.SourceType,
			"source_id":   ev.SourceID,
			"lines":       len(entry.Lines),
		},
		At: s.now(),
	})
}

func (s *Service) countFailure(err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.EmitFailed(failureReason(err))
}

func materialize(entryID int64, drafts []journal.LineDraft) []journal.Line {
	out := make([]journal.Line, 0, len(drafts))
	for _, draft := range drafts {
		out = append(out, journal.Line{
			EntryID:       entryID,
			AccountID:     draft.AccountID,
			Direction:     draft.Direction,
			Amount:        draft.Amount,
			ChannelType:   draft.ChannelType,
			ChannelID:     draft.ChannelID,
			FinanceUserID: draft.FinanceUserID,
			CustomerID:    draft.CustomerID,
		})
	}
	return out
}
