package periods

import (
	"errors"
	"time"
)

// Status enumerates valid period states.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
	StatusLocked Status = "LOCKED"
)

// Period is a calendar-month posting window for one business. Rows are
// created lazily on the first event of the month and never deleted.
type Period struct {
	ID         int64
	TenantID   int64
	BusinessID int64
	StartDate  time.Time
	EndDate    time.Time
	Status     Status
	ClosedAt   *time.Time
	ClosedBy   *int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Contains reports whether the date falls inside the period window.
func (p Period) Contains(date time.Time) bool {
	day := date.UTC().Truncate(24 * time.Hour)
	return !day.Before(p.StartDate) && !day.After(p.EndDate)
}

var (
	// ErrNotFound indicates the period row does not exist.
	ErrNotFound = errors.New("periods: period not found")
	// ErrAlreadyClosed indicates close on a CLOSED period.
	ErrAlreadyClosed = errors.New("periods: period already closed")
	// ErrLocked indicates the period is administratively locked.
	ErrLocked = errors.New("periods: period locked")
	// ErrAlreadyOpen indicates reopen on an OPEN period.
	ErrAlreadyOpen = errors.New("periods: period already open")
	// ErrFuturePeriod indicates close on a period that has not started.
	ErrFuturePeriod = errors.New("periods: period starts in the future")
	// ErrUnbalanced indicates aggregate debits and credits diverge.
	ErrUnbalanced = errors.New("periods: period entries do not balance")
	// ErrInvalidTransition indicates a status change outside the table.
	ErrInvalidTransition = errors.New("periods: invalid status transition")
)

// CanTransition reports whether the status change is allowed from this
// component. CLOSED -> LOCKED exists but only through an administrative
// path outside the engine; LOCKED is terminal here.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusOpen:
		return to == StatusClosed
	case StatusClosed:
		return to == StatusOpen
	default:
		return false
	}
}

// MonthBounds returns the first and last day of the calendar month
// containing the date, normalized to UTC midnight.
func MonthBounds(date time.Time) (time.Time, time.Time) {
	utc := date.UTC()
	start := time.Date(utc.Year(), utc.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	return start, end
}
