package journal

import (
	"fmt"
	"math"

	"github.com/saldoku/saldoku/internal/ledger/rules"
)

// BalanceTolerance is the absolute difference allowed between an
// entry's debit and credit sums.
const BalanceTolerance = 0.01

// UnbalancedEntryError carries both sums so callers can render a
// precise message without re-querying.
type UnbalancedEntryError struct {
	Debit  float64
	Credit float64
}

func (e *UnbalancedEntryError) Error() string {
	return fmt.Sprintf("journal: entry unbalanced, debit %.2f credit %.2f", e.Debit, e.Credit)
}

// Totals sums the draft lines by direction.
func Totals(lines []LineDraft) (debit, credit float64) {
	for _, line := range lines {
		switch line.Direction {
		case rules.DirectionDebit:
			debit += line.Amount
		case rules.DirectionCredit:
			credit += line.Amount
		}
	}
	return debit, credit
}

// ValidateBalance enforces double-entry conservation over the drafts.
func ValidateBalance(lines []LineDraft) error {
	debit, credit := Totals(lines)
	if math.Abs(debit-credit) > BalanceTolerance {
		return &UnbalancedEntryError{Debit: debit, Credit: credit}
	}
	return nil
}
