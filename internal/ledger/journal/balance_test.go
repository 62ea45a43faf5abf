package journal

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/saldoku/saldoku/internal/ledger/rules"
)

func TestValidateBalance(t *testing.T) {
	lines := []LineDraft{
		{Direction: rules.DirectionDebit, Amount: 100000},
		{Direction: rules.DirectionCredit, Amount: 75000},
		{Direction: rules.DirectionCredit, Amount: 25000},
	}
	require.NoError(t, ValidateBalance(lines))
}

func TestValidateBalanceWithinTolerance(t *testing.T) {
	lines := []LineDraft{
		{Direction: rules.DirectionDebit, Amount: 100.005},
		{Direction: rules.DirectionCredit, Amount: 100.00},
	}
	require.NoError(t, ValidateBalance(lines))
}

func TestValidateBalanceFailure(t *testing.T) {
	lines := []LineDraft{
		{Direction: rules.DirectionDebit, Amount: 100000},
		{Direction: rules.DirectionCredit, Amount: 90000},
	}
	err := ValidateBalance(lines)
	require.Error(t, err)

	var unbalanced *UnbalancedEntryError
	require.ErrorAs(t, err, &unbalanced)
	require.Equal(t, float64(100000), unbalanced.Debit)
	require.Equal(t, float64(90000), unbalanced.Credit)
}

func TestTotalsIgnoreNothing(t *testing.T) {
	debit, credit := Totals([]LineDraft{
		{Direction: rules.DirectionDebit, Amount: 10},
		{Direction: rules.DirectionDebit, Amount: 5},
		{Direction: rules.DirectionCredit, Amount: 15},
	})
	require.Equal(t, float64(15), debit)
	require.Equal(t, float64(15), credit)
}
