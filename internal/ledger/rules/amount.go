package rules

import (
	"errors"
	"fmt"

	"github.com/saldoku/saldoku/internal/ledger/payload"
)

// Amount spec kinds.
const (
	AmountFixed   = "fixed"
	AmountField   = "field"
	AmountPercent = "percent"
)

// AmountSpec describes how a rule computes its monetary amount from
// the event payload: a literal, a payload-field reference, or a
// percentage of a payload field. Stored as JSONB on the rule row.
type AmountSpec struct {
	Type    string   `json:"type"`
	Value   float64  `json:"value,omitempty"`
	Field   string   `json:"field,omitempty"`
	Percent float64  `json:"percent,omitempty"`
	Default *float64 `json:"default,omitempty"`
}

// ErrAmountSpec indicates a malformed amount specification.
var ErrAmountSpec = errors.New("rules: invalid amount spec")

// Resolve computes the amount for the payload. A missing referenced
// field is an error unless the spec carries a default; a result <= 0
// is a valid outcome meaning the line is suppressed, which callers
// must distinguish from a resolution failure.
func (s AmountSpec) Resolve(p payload.Map) (float64, error) {
	switch s.Type {
	case AmountFixed:
		return s.Value, nil
	case AmountField:
		return s.fieldValue(p)
	case AmountPercent:
		base, err := s.fieldValue(p)
		if err != nil {
			return 0, err
		}
		return base * s.Percent / 100, nil
	default:
		return 0, fmt.Errorf("%w: unknown type %q", ErrAmountSpec, s.Type)
	}
}

func (s AmountSpec) fieldValue(p payload.Map) (float64, error) {
	if s.Field == "" {
		return 0, fmt.Errorf("%w: type %q requires a field", ErrAmountSpec, s.Type)
	}
	val, err := p.Float(s.Field)
	if err != nil {
		if s.Default != nil && errors.Is(err, payload.ErrFieldMissing) {
			return *s.Default, nil
		}
		return 0, err
	}
	return val, nil
}
