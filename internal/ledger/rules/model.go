package rules

import "time"

// Direction marks which side of the entry a rule posts to.
type Direction string

const (
	DirectionDebit  Direction = "DEBIT"
	DirectionCredit Direction = "CREDIT"
)

// Rule maps an event code plus an optional condition to a posting
// against a single account. Rules are configuration data authored
// outside this engine; the engine only reads them.
type Rule struct {
	ID                int64
	TenantID          int64
	BusinessID        *int64 // nil applies tenant-wide
	EventCode         string
	Active            bool
	Priority          int
	AccountID         int64
	Direction         Direction
	Amount            AmountSpec
	Condition         *Condition
	CollectorRequired bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// AppliesTo reports whether the rule is scoped to the given business.
func (r Rule) AppliesTo(businessID int64) bool {
	return r.BusinessID == nil || *r.BusinessID == businessID
}
