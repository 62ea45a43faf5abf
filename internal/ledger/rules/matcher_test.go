package rules

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/saldoku/saldoku/internal/ledger/payload"
)

func TestMatchOrdersByPriorityAndKeepsAllMatches(t *testing.T) {
	candidates := []Rule{
		{ID: 3, Active: true, Priority: 30, Direction: DirectionCredit},
		{ID: 1, Active: true, Priority: 10, Direction: DirectionDebit},
		{ID: 2, Active: true, Priority: 20, Direction: DirectionCredit},
	}

	matched, err := Match(candidates, payload.Map{})
	require.NoError(t, err)
	require.Len(t, matched, 3)
	require.Equal(t, []int64{1, 2, 3}, []int64{matched[0].ID, matched[1].ID, matched[2].ID})
}

func TestMatchSkipsInactiveAndNonMatching(t *testing.T) {
	candidates := []Rule{
		{ID: 1, Active: false, Priority: 1},
		{ID: 2, Active: true, Priority: 2, Condition: &Condition{Op: OpEq, Field: "channel", Value: "outlet"}},
		{ID: 3, Active: true, Priority: 3, Condition: &Condition{Op: OpEq, Field: "channel", Value: "reseller"}},
	}

	matched, err := Match(candidates, payload.Map{"channel": "outlet"})
	require.NoError(t, err)
	require.Len(t, matched, 1)
	require.Equal(t, int64(2), matched[0].ID)
}

func TestMatchIsStableForEqualPriority(t *testing.T) {
	candidates := []Rule{
		{ID: 7, Active: true, Priority: 5},
		{ID: 8, Active: true, Priority: 5},
	}

	matched, err := Match(candidates, payload.Map{})
	require.NoError(t, err)
	require.Equal(t, int64(7), matched[0].ID)
	require.Equal(t, int64(8), matched[1].ID)
}

func TestMatchSurfacesConditionErrors(t *testing.T) {
	candidates := []Rule{
		{ID: 9, Active: true, Condition: &Condition{Op: "regex", Field: "channel"}},
	}

	_, err := Match(candidates, payload.Map{"channel": "outlet"})
	require.Error(t, err)
}
