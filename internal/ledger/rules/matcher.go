package rules

import (
	"fmt"
	"sort"

	"github.com/saldoku/saldoku/internal/ledger/payload"
)

// Match filters the candidate rules by their condition and returns the
// survivors ordered by ascending priority. Every match applies: one
// event fans out into one line per matching rule, priority controls
// ordering, never exclusivity.
func Match(candidates []Rule, p payload.Map) ([]Rule, error) {
	matched := make([]Rule, 0, len(candidates))
	for _, rule := range candidates {
		if !rule.Active {
			continue
		}
		ok, err := rule.Condition.Matches(p)
		if err != nil {
			return nil, fmt.Errorf("rules: rule %d condition: %w", rule.ID, err)
		}
		if ok {
			matched = append(matched, rule)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Priority < matched[j].Priority
	})
	return matched, nil
}
