package rules

import (
	"fmt"

	"github.com/saldoku/saldoku/internal/ledger/payload"
)

// Condition is a serializable predicate over payload fields. Leaves
// compare one field against a value; AND/OR nodes combine children.
// Keeping conditions as data rather than code lets rule authors store
// them in the rules table and test them in isolation.
type Condition struct {
	Op     string       `json:"op"`
	Field  string       `json:"field,omitempty"`
	Value  any          `json:"value,omitempty"`
	Values []any        `json:"values,omitempty"`
	Conds  []*Condition `json:"conds,omitempty"`
}

const (
	OpEq  = "eq"
	OpNe  = "ne"
	OpGt  = "gt"
	OpGte = "gte"
	OpLt  = "lt"
	OpLte = "lte"
	OpIn  = "in"
	OpAnd = "and"
	OpOr  = "or"
)

// Matches evaluates the condition against the payload. A nil condition
// always matches. A leaf referencing a missing payload field is a
// no-match, not an error: rules routinely scope themselves by optional
// fields. An unknown operator is malformed configuration and errors.
func (c *Condition) Matches(p payload.Map) (bool, error) {
	if c == nil {
		return true, nil
	}
	switch c.Op {
	case OpAnd:
		for _, child := range c.Conds {
			ok, err := child.Matches(p)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case OpOr:
		for _, child := range c.Conds {
			ok, err := child.Matches(p)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpIn:
		return c.matchLeaf(p)
	default:
		return false, fmt.Errorf("rules: unknown condition op %q", c.Op)
	}
}

func (c *Condition) matchLeaf(p payload.Map) (bool, error) {
	if c.Field == "" {
		return false, fmt.Errorf("rules: condition op %q requires a field", c.Op)
	}
	raw, ok := p[c.Field]
	if !ok {
		return false, nil
	}
	switch c.Op {
	case OpEq:
		return valuesEqual(raw, c.Value), nil
	case OpNe:
		return !valuesEqual(raw, c.Value), nil
	case OpIn:
		for _, candidate := range c.Values {
			if valuesEqual(raw, candidate) {
				return true, nil
			}
		}
		return false, nil
	}
	// remaining operators are numeric comparisons
	left, err := p.Float(c.Field)
	if err != nil {
		return false, nil
	}
	right, ok := toComparable(c.Value)
	if !ok {
		return false, fmt.Errorf("rules: condition op %q on %q needs a numeric value", c.Op, c.Field)
	}
	switch c.Op {
	case OpGt:
		return left > right, nil
	case OpGte:
		return left >= right, nil
	case OpLt:
		return left < right, nil
	default:
		return left <= right, nil
	}
}

// valuesEqual compares payload values against configured ones. Numbers
// compare numerically so that 100 (int) equals 100.0 (JSON float);
// everything else falls back to string representation equality.
func valuesEqual(a, b any) bool {
	af, aok := toComparable(a)
	bf, bok := toComparable(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func toComparable(raw any) (float64, bool) {
	m := payload.Map{"v": raw}
	val, err := m.Float("v")
	if err != nil {
		return 0, false
	}
	return val, true
}
