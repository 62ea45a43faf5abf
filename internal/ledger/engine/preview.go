package engine

import (
	"context"
	"errors"
	"math"

	"github.com/saldoku/saldoku/internal/ledger/journal"
	"github.com/saldoku/saldoku/internal/ledger/periods"
)

// SkippedRule notes a rule the preview dropped and why.
type SkippedRule struct {
	RuleID int64
	Reason string
}

// PreviewResult is the non-persisting dry run of an emission, meant for
// rule-authoring feedback rather than production posting.
type PreviewResult struct {
	Description string
	Lines       []journal.LineDraft
	TotalDebit  float64
	TotalCredit float64
	IsBalanced  bool
	Skipped     []SkippedRule
}

// Preview mirrors Emit without locks or writes. Per-rule amount
// failures become skipped rules instead of aborting, so authors can
// see the partial, possibly unbalanced draft their rule set produces.
func (s *Service) Preview(ctx context.Context, ev Event) (PreviewResult, error) {
	if err := ev.Validate(); err != nil {
		return PreviewResult{}, err
	}
	if ev.OccurredAt.After(s.now()) {
		return PreviewResult{}, ErrFutureDate
	}

	// A period row that does not exist yet would be created OPEN by
	// Emit, so only an existing non-open row blocks the preview.
	period, err := s.periodsRead.FindByDate(ctx, ev.BusinessID, ev.OccurredAt)
	if err != nil && !errors.Is(err, periods.ErrNotFound) {
		return PreviewResult{}, err
	}
	if err == nil && period.Status != periods.StatusOpen {
		return PreviewResult{}, &PeriodNotOpenError{Status: period.Status}
	}

	matched, err := s.matchedRules(ctx, ev)
	if err != nil {
		return PreviewResult{}, err
	}

	evCtx := ev.context()
	result := PreviewResult{Description: s.builder.Header(evCtx, period).Description}
	for _, rule := range matched {
		line, err := s.builder.Line(rule, evCtx)
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedRule{RuleID: rule.ID, Reason: err.Error()})
			continue
		}
		if line == nil {
			result.Skipped = append(result.Skipped, SkippedRule{RuleID: rule.ID, Reason: "amount resolved to zero or less"})
			continue
		}
		result.Lines = append(result.Lines, *line)
	}
	result.TotalDebit, result.TotalCredit = journal.Totals(result.Lines)
	result.IsBalanced = math.Abs(result.TotalDebit-result.TotalCredit) <= journal.BalanceTolerance
	return result, nil
}
