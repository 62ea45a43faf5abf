package periods

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/saldoku/saldoku/internal/shared"
)

// BalanceTolerance is the absolute difference allowed between the
// period's aggregate debit and credit sums when closing.
const BalanceTolerance = 0.01

// AuditPort records lifecycle changes after they commit.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service drives the period lifecycle: lazy creation, close, reopen.
type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Resolve finds or creates the calendar-month period covering the date.
func (s *Service) Resolve(ctx context.Context, tenantID, businessID int64, date time.Time) (Period, error) {
	start, end := MonthBounds(date)
	var period Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var e error
		period, e = tx.Ensure(ctx, tenantID, businessID, start, end)
		return e
	})
	if err != nil {
		return Period{}, err
	}
	return period, nil
}

// FindByDate returns the existing period covering the date without
// creating one. Used by preview, which must not write.
func (s *Service) FindByDate(ctx context.Context, businessID int64, date time.Time) (Period, error) {
	return s.repo.FindByDate(ctx, businessID, date)
}

// List returns periods for a business, newest first.
func (s *Service) List(ctx context.Context, businessID int64, page shared.Pagination) ([]Period, error) {
	return s.repo.List(ctx, businessID, page.PerPage, (page.Page-1)*page.PerPage)
}

// Close transitions OPEN -> CLOSED after verifying the period has
// started and its entries balance in aggregate.
func (s *Service) Close(ctx context.Context, periodID, actorID int64) (Period, error) {
	if actorID == 0 {
		return Period{}, errors.New("periods: actor required")
	}
	var period Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, periodID)
		if err != nil {
			return err
		}
		switch current.Status {
		case StatusLocked:
			return ErrLocked
		case StatusClosed:
			return ErrAlreadyClosed
		}
		if current.StartDate.After(s.now().UTC()) {
			return ErrFuturePeriod
		}
		debit, credit, err := tx.EntryTotals(ctx, periodID)
		if err != nil {
			return err
		}
		if math.Abs(debit-credit) > BalanceTolerance {
			return fmt.Errorf("%w: debit %.2f credit %.2f", ErrUnbalanced, debit, credit)
		}
		closedAt := s.now()
		if err := tx.SetStatus(ctx, periodID, StatusClosed, &closedAt, &actorID); err != nil {
			return err
		}
		period = current
		period.Status = StatusClosed
		period.ClosedAt = &closedAt
		period.ClosedBy = &actorID
		return nil
	})
	if err != nil {
		return Period{}, err
	}
	s.recordAudit(ctx, actorID, "period.close", period)
	return period, nil
}

// Reopen transitions CLOSED -> OPEN. LOCKED periods stay locked; the
// unlock path is administrative and lives outside the engine.
func (s *Service) Reopen(ctx context.Context, periodID, actorID int64) (Period, error) {
	if actorID == 0 {
		return Period{}, errors.New("periods: actor required")
	}
	var period Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, periodID)
		if err != nil {
			return err
		}
		switch current.Status {
		case StatusLocked:
			return ErrLocked
		case StatusOpen:
			return ErrAlreadyOpen
		}
		if err := tx.SetStatus(ctx, periodID, StatusOpen, nil, nil); err != nil {
			return err
		}
		period = current
		period.Status = StatusOpen
		period.ClosedAt = nil
		period.ClosedBy = nil
		return nil
	})
	if err != nil {
		return Period{}, err
	}
	s.recordAudit(ctx, actorID, "period.reopen", period)
	return period, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, period Period) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "accounting_period",
		EntityID: fmt.Sprintf("%d", period.ID),
		Meta: map[string]any{
			"business_id": period.BusinessID,
			"start_date":  period.StartDate.Format("2006-01-02"),
			"status":      string(period.Status),
		},
		At: s.now(),
	})
}
