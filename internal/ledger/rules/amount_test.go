package rules

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/saldoku/saldoku/internal/ledger/payload"
)

func TestResolveFixed(t *testing.T) {
	amount, err := AmountSpec{Type: AmountFixed, Value: 2500}.Resolve(payload.Map{})
	require.NoError(t, err)
	require.Equal(t, float64(2500), amount)
}

func TestResolveField(t *testing.T) {
	p := payload.Map{"cash_amount": float64(100000)}

	amount, err := AmountSpec{Type: AmountField, Field: "cash_amount"}.Resolve(p)
	require.NoError(t, err)
	require.Equal(t, float64(100000), amount)

	_, err = AmountSpec{Type: AmountField, Field: "transfer_amount"}.Resolve(p)
	require.ErrorIs(t, err, payload.ErrFieldMissing)
}

func TestResolveFieldDefault(t *testing.T) {
	fallback := float64(0)
	spec := AmountSpec{Type: AmountField, Field: "discount", Default: &fallback}

	amount, err := spec.Resolve(payload.Map{})
	require.NoError(t, err)
	require.Equal(t, float64(0), amount)

	// default covers missing fields only, a mistyped value still fails
	_, err = spec.Resolve(payload.Map{"discount": "n/a"})
	require.ErrorIs(t, err, payload.ErrFieldType)
}

func TestResolvePercent(t *testing.T) {
	p := payload.Map{"total_amount": float64(200000)}
	spec := AmountSpec{Type: AmountPercent, Field: "total_amount", Percent: 10}

	amount, err := spec.Resolve(p)
	require.NoError(t, err)
	require.Equal(t, float64(20000), amount)
}

func TestResolveRejectsMalformedSpec(t *testing.T) {
	_, err := AmountSpec{Type: "formula"}.Resolve(payload.Map{})
	require.ErrorIs(t, err, ErrAmountSpec)

	_, err = AmountSpec{Type: AmountField}.Resolve(payload.Map{})
	require.ErrorIs(t, err, ErrAmountSpec)
}
