package engine

import (
	"errors"
	"fmt"

	"github.com/saldoku/saldoku/internal/ledger/journal"
	"github.com/saldoku/saldoku/internal/ledger/periods"
)

var (
	// ErrFutureDate rejects events dated after now.
	ErrFutureDate = errors.New("engine: event occurred_at is in the future")
	// ErrNoLines rejects entries with every line suppressed.
	ErrNoLines = errors.New("engine: no lines remain after suppression")
)

// PeriodNotOpenError indicates the target period does not accept
// postings, carrying the status for the caller's message.
type PeriodNotOpenError struct {
	Status periods.Status
}

func (e *PeriodNotOpenError) Error() string {
	return fmt.Sprintf("engine: period is %s, not OPEN", e.Status)
}

// NoMatchingRulesError indicates no active rule covered the event.
type NoMatchingRulesError struct {
	EventCode string
}

func (e *NoMatchingRulesError) Error() string {
	return fmt.Sprintf("engine: no matching rules for event %q", e.EventCode)
}

// AmountResolutionError wraps a per-rule amount failure. Fatal in Emit,
// downgraded to a skipped rule in Preview.
type AmountResolutionError struct {
	RuleID int64
	Err    error
}

func (e *AmountResolutionError) Error() string {
	return fmt.Sprintf("engine: rule %d amount resolution: %v", e.RuleID, e.Err)
}

func (e *AmountResolutionError) Unwrap() error { return e.Err }

// failureReason buckets errors for the emit-failure metric label.
func failureReason(err error) string {
	var (
		notOpen    *PeriodNotOpenError
		noRules    *NoMatchingRulesError
		resolution *AmountResolutionError
		unbalanced *journal.UnbalancedEntryError
	)
	switch {
	case errors.Is(err, ErrFutureDate):
		return "future_date"
	case errors.As(err, &notOpen):
		return "period_not_open"
	case errors.As(err, &noRules):
		return "no_matching_rules"
	case errors.As(err, &resolution):
		return "amount_resolution"
	case errors.As(err, &unbalanced):
		return "unbalanced"
	case errors.Is(err, ErrNoLines):
		return "no_lines"
	case errors.Is(err, journal.ErrDuplicateSource):
		return "duplicate_source"
	default:
		return "internal"
	}
}
