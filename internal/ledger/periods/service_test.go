package periods

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryPeriodRepo struct {
	byID    map[int64]*Period
	byStart map[string]*Period
	totals  map[int64][2]float64
	nextID  int64
}

func newMemoryPeriodRepo() *memoryPeriodRepo {
	return &memoryPeriodRepo{
		byID:    make(map[int64]*Period),
		byStart: make(map[string]*Period),
		totals:  make(map[int64][2]float64),
	}
}

func (r *memoryPeriodRepo) startKey(businessID int64, start time.Time) string {
	return fmt.Sprintf("%d:%s", businessID, start.Format("2006-01-02"))
}

func (r *memoryPeriodRepo) FindByDate(ctx context.Context, businessID int64, date time.Time) (Period, error) {
	start, _ := MonthBounds(date)
	if p, ok := r.byStart[r.startKey(businessID, start)]; ok {
		return *p, nil
	}
	return Period{}, ErrNotFound
}

func (r *memoryPeriodRepo) List(ctx context.Context, businessID int64, limit, offset int) ([]Period, error) {
	var out []Period
	for _, p := range r.byID {
		if p.BusinessID == businessID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *memoryPeriodRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryPeriodTx{repo: r})
}

type memoryPeriodTx struct {
	repo *memoryPeriodRepo
}

func (tx *memoryPeriodTx) Ensure(ctx context.Context, tenantID, businessID int64, start, end time.Time) (Period, error) {
	key := tx.repo.startKey(businessID, start)
	if p, ok := tx.repo.byStart[key]; ok {
		return *p, nil
	}
	tx.repo.nextID++
	p := &Period{
		ID: tx.repo.nextID, TenantID: tenantID, BusinessID: businessID,
		StartDate: start, EndDate: end, Status: StatusOpen,
	}
	tx.repo.byID[p.ID] = p
	tx.repo.byStart[key] = p
	return *p, nil
}

func (tx *memoryPeriodTx) GetForUpdate(ctx context.Context, periodID int64) (Period, error) {
	if p, ok := tx.repo.byID[periodID]; ok {
		return *p, nil
	}
	return Period{}, ErrNotFound
}

func (tx *memoryPeriodTx) EntryTotals(ctx context.Context, periodID int64) (float64, float64, error) {
	totals := tx.repo.totals[periodID]
	return totals[0], totals[1], nil
}

func (tx *memoryPeriodTx) SetStatus(ctx context.Context, periodID int64, status Status, closedAt *time.Time, closedBy *int64) error {
	p, ok := tx.repo.byID[periodID]
	if !ok {
		return ErrNotFound
	}
	p.Status = status
	p.ClosedAt = closedAt
	p.ClosedBy = closedBy
	return nil
}

var clock = time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

func newTestService(repo Repository) *Service {
	svc := NewService(repo, nil)
	svc.WithNow(func() time.Time { return clock })
	return svc
}

func TestResolveSameMonthYieldsSamePeriod(t *testing.T) {
	repo := newMemoryPeriodRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	first, err := svc.Resolve(ctx, 1, 10, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	second, err := svc.Resolve(ctx, 1, 10, time.Date(2026, 8, 31, 23, 59, 0, 0, time.UTC))
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
	require.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), first.StartDate)
	require.Equal(t, time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC), first.EndDate)
	require.Equal(t, StatusOpen, first.Status)
}

func TestResolveDistinctMonths(t *testing.T) {
	repo := newMemoryPeriodRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	aug, err := svc.Resolve(ctx, 1, 10, time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	jul, err := svc.Resolve(ctx, 1, 10, time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotEqual(t, aug.ID, jul.ID)
}

func TestCloseBalancedPeriod(t *testing.T) {
	repo := newMemoryPeriodRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	period, err := svc.Resolve(ctx, 1, 10, clock.AddDate(0, -1, 0))
	require.NoError(t, err)
	repo.totals[period.ID] = [2]float64{150000, 150000}

	closed, err := svc.Close(ctx, period.ID, 99)
	require.NoError(t, err)
	require.Equal(t, StatusClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)
	require.Equal(t, clock, *closed.ClosedAt)
	require.Equal(t, int64(99), *closed.ClosedBy)
}

func TestCloseUnbalancedPeriodFails(t *testing.T) {
	repo := newMemoryPeriodRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	period, err := svc.Resolve(ctx, 1, 10, clock.AddDate(0, -1, 0))
	require.NoError(t, err)
	repo.totals[period.ID] = [2]float64{150000, 149000}

	_, err = svc.Close(ctx, period.ID, 99)
	require.ErrorIs(t, err, ErrUnbalanced)
	require.Equal(t, StatusOpen, repo.byID[period.ID].Status)
}

func TestCloseFuturePeriodFails(t *testing.T) {
	repo := newMemoryPeriodRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	period, err := svc.Resolve(ctx, 1, 10, clock.AddDate(0, 1, 0))
	require.NoError(t, err)

	_, err = svc.Close(ctx, period.ID, 99)
	require.ErrorIs(t, err, ErrFuturePeriod)
	require.Equal(t, StatusOpen, repo.byID[period.ID].Status)
}

func TestCloseTwiceFails(t *testing.T) {
	repo := newMemoryPeriodRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	period, err := svc.Resolve(ctx, 1, 10, clock.AddDate(0, -1, 0))
	require.NoError(t, err)
	_, err = svc.Close(ctx, period.ID, 99)
	require.NoError(t, err)

	_, err = svc.Close(ctx, period.ID, 99)
	require.ErrorIs(t, err, ErrAlreadyClosed)
}

func TestReopenCycle(t *testing.T) {
	repo := newMemoryPeriodRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	period, err := svc.Resolve(ctx, 1, 10, clock.AddDate(0, -1, 0))
	require.NoError(t, err)
	_, err = svc.Close(ctx, period.ID, 99)
	require.NoError(t, err)

	reopened, err := svc.Reopen(ctx, period.ID, 99)
	require.NoError(t, err)
	require.Equal(t, StatusOpen, reopened.Status)
	require.Nil(t, reopened.ClosedAt)
	require.Nil(t, reopened.ClosedBy)

	// a second close is allowed again
	repo.totals[period.ID] = [2]float64{0, 0}
	_, err = svc.Close(ctx, period.ID, 99)
	require.NoError(t, err)
}

func TestReopenOpenPeriodFails(t *testing.T) {
	repo := newMemoryPeriodRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	period, err := svc.Resolve(ctx, 1, 10, clock.AddDate(0, -1, 0))
	require.NoError(t, err)

	_, err = svc.Reopen(ctx, period.ID, 99)
	require.ErrorIs(t, err, ErrAlreadyOpen)
}

func TestLockedPeriodIsTerminal(t *testing.T) {
	repo := newMemoryPeriodRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	period, err := svc.Resolve(ctx, 1, 10, clock.AddDate(0, -1, 0))
	require.NoError(t, err)
	repo.byID[period.ID].Status = StatusLocked

	_, err = svc.Reopen(ctx, period.ID, 99)
	require.ErrorIs(t, err, ErrLocked)
	_, err = svc.Close(ctx, period.ID, 99)
	require.ErrorIs(t, err, ErrLocked)
}

func TestCanTransitionTable(t *testing.T) {
	require.True(t, CanTransition(StatusOpen, StatusClosed))
	require.True(t, CanTransition(StatusClosed, StatusOpen))
	require.False(t, CanTransition(StatusOpen, StatusLocked))
	require.False(t, CanTransition(StatusLocked, StatusOpen))
	require.False(t, CanTransition(StatusLocked, StatusClosed))
}

func TestMonthBounds(t *testing.T) {
	start, end := MonthBounds(time.Date(2026, 2, 14, 18, 30, 0, 0, time.FixedZone("WIB", 7*3600)))
	require.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), start)
	require.Equal(t, time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), end)
}
