package rules

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository loads rule configuration. The engine never writes rules;
// authoring happens in the dashboard outside this module.
type Repository interface {
	ListActive(ctx context.Context, tenantID, businessID int64, eventCode string) ([]Rule, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

// ListActive returns active rules for the event code, merging rules
// scoped to the business with tenant-wide rules (business_id IS NULL),
// ordered by ascending priority.
func (r *repository) ListActive(ctx context.Context, tenantID, businessID int64, eventCode string) ([]Rule, error) {
	rows, err := r.db.Query(ctx, `SELECT id, tenant_id, business_id, event_code, active, priority, account_id, direction, amount_spec, condition, collector_required, created_at, updated_at
FROM accounting_rules
WHERE tenant_id=$1 AND event_code=$2 AND active AND (business_id=$3 OR business_id IS NULL)
ORDER BY priority ASC, id ASC`, tenantID, eventCode, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Rule
	for rows.Next() {
		var (
			rule         Rule
			amountRaw    []byte
			conditionRaw []byte
		)
		if err := rows.Scan(&rule.ID, &rule.TenantID, &rule.BusinessID, &rule.EventCode, &rule.Active, &rule.Priority, &rule.AccountID, &rule.Direction, &amountRaw, &conditionRaw, &rule.CollectorRequired, &rule.CreatedAt, &rule.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(amountRaw, &rule.Amount); err != nil {
			return nil, fmt.Errorf("rules: rule %d amount spec: %w", rule.ID, err)
		}
		if len(conditionRaw) > 0 {
			if err := json.Unmarshal(conditionRaw, &rule.Condition); err != nil {
				return nil, fmt.Errorf("rules: rule %d condition: %w", rule.ID, err)
			}
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}
