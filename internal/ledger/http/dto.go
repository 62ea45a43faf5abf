package ledgerhttp

import (
	"time"

	"github.com/saldoku/saldoku/internal/ledger/engine"
	"github.com/saldoku/saldoku/internal/ledger/journal"
	"github.com/saldoku/saldoku/internal/ledger/payload"
	"github.com/saldoku/saldoku/internal/ledger/periods"
	"github.com/saldoku/saldoku/internal/ledger/rules"
)

type emitRequest struct {
	TenantID    int64          `json:"tenant_id" validate:"required"`
	BusinessID  int64          `json:"business_id" validate:"required"`
	EventCode   string         `json:"event_code" validate:"required"`
	SourceType  string         `json:"source_type" validate:"required"`
	SourceID    int64          `json:"source_id" validate:"required"`
	OccurredAt  time.Time      `json:"occurred_at" validate:"required"`
	UserID      *int64         `json:"user_id"`
	ChannelType string         `json:"channel_type" validate:"required"`
	ChannelID   *int64         `json:"channel_id"`
	Payload     map[string]any `json:"payload"`
	Description string         `json:"description"`
}

func (req emitRequest) toEvent() engine.Event {
	return engine.Event{
		TenantID:   req.TenantID,
		BusinessID: req.BusinessID,
		EventCode:  req.EventCode,
		SourceType: req.SourceType,
		SourceID:   req.SourceID,
		OccurredAt: req.OccurredAt,
		Actor: engine.Actor{
			UserID:      req.UserID,
			ChannelType: req.ChannelType,
			ChannelID:   req.ChannelID,
		},
		Payload:     payload.Map(req.Payload),
		Description: req.Description,
	}
}

type lineResponse struct {
	ID            int64   `json:"id,omitempty"`
	AccountID     int64   `json:"account_id"`
	Direction     string  `json:"direction"`
	Amount        float64 `json:"amount"`
	ChannelType   string  `json:"channel_type,omitempty"`
	ChannelID     *int64  `json:"channel_id,omitempty"`
	FinanceUserID *int64  `json:"finance_user_id,omitempty"`
	CustomerID    *int64  `json:"customer_id,omitempty"`
}

type entryResponse struct {
	ID          int64          `json:"id"`
	Number      int64          `json:"number"`
	TenantID    int64          `json:"tenant_id"`
	BusinessID  int64          `json:"business_id"`
	PeriodID    int64          `json:"period_id"`
	SourceType  string         `json:"source_type"`
	SourceID    int64          `json:"source_id"`
	EventCode   string         `json:"event_code"`
	Date        time.Time      `json:"date"`
	Description string         `json:"description"`
	Context     map[string]any `json:"context,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	Lines       []lineResponse `json:"lines"`
}

func toEntryResponse(e journal.Entry) entryResponse {
	resp := entryResponse{
		ID:          e.ID,
		Number:      e.Number,
		TenantID:    e.TenantID,
		BusinessID:  e.BusinessID,
		PeriodID:    e.PeriodID,
		SourceType:  e.SourceType,
		SourceID:    e.SourceID,
		EventCode:   e.EventCode,
		Date:        e.Date,
		Description: e.Description,
		Context:     e.Context,
		CreatedAt:   e.CreatedAt,
		Lines:       make([]lineResponse, 0, len(e.Lines)),
	}
	for _, ln := range e.Lines {
		resp.Lines = append(resp.Lines, lineResponse{
			ID:            ln.ID,
			AccountID:     ln.AccountID,
			Direction:     string(ln.Direction),
			Amount:        ln.Amount,
			ChannelType:   ln.ChannelType,
			ChannelID:     ln.ChannelID,
			FinanceUserID: ln.FinanceUserID,
			CustomerID:    ln.CustomerID,
		})
	}
	return resp
}

type skippedRuleResponse struct {
	RuleID int64  `json:"rule_id"`
	Reason string `json:"reason"`
}

type previewResponse struct {
	Description string                `json:"description"`
	Lines       []lineResponse        `json:"lines"`
	TotalDebit  float64               `json:"total_debit"`
	TotalCredit float64               `json:"total_credit"`
	IsBalanced  bool                  `json:"is_balanced"`
	Skipped     []skippedRuleResponse `json:"skipped_rules"`
}

func toPreviewResponse(res engine.PreviewResult) previewResponse {
	resp := previewResponse{
		Description: res.Description,
		Lines:       make([]lineResponse, 0, len(res.Lines)),
		TotalDebit:  res.TotalDebit,
		TotalCredit: res.TotalCredit,
		IsBalanced:  res.IsBalanced,
		Skipped:     make([]skippedRuleResponse, 0, len(res.Skipped)),
	}
	for _, ln := range res.Lines {
		resp.Lines = append(resp.Lines, lineResponse{
			AccountID:     ln.AccountID,
			Direction:     string(ln.Direction),
			Amount:        ln.Amount,
			ChannelType:   ln.ChannelType,
			ChannelID:     ln.ChannelID,
			FinanceUserID: ln.FinanceUserID,
			CustomerID:    ln.CustomerID,
		})
	}
	for _, sk := range res.Skipped {
		resp.Skipped = append(resp.Skipped, skippedRuleResponse{RuleID: sk.RuleID, Reason: sk.Reason})
	}
	return resp
}

type ruleResponse struct {
	ID                int64            `json:"id"`
	TenantID          int64            `json:"tenant_id"`
	BusinessID        *int64           `json:"business_id,omitempty"`
	EventCode         string           `json:"event_code"`
	Active            bool             `json:"active"`
	Priority          int              `json:"priority"`
	AccountID         int64            `json:"account_id"`
	Direction         string           `json:"direction"`
	Amount            rules.AmountSpec `json:"amount"`
	Condition         *rules.Condition `json:"condition,omitempty"`
	CollectorRequired bool             `json:"collector_required"`
}

func toRuleResponse(r rules.Rule) ruleResponse {
	return ruleResponse{
		ID:                r.ID,
		TenantID:          r.TenantID,
		BusinessID:        r.BusinessID,
		EventCode:         r.EventCode,
		Active:            r.Active,
		Priority:          r.Priority,
		AccountID:         r.AccountID,
		Direction:         string(r.Direction),
		Amount:            r.Amount,
		Condition:         r.Condition,
		CollectorRequired: r.CollectorRequired,
	}
}

type periodResponse struct {
	ID         int64      `json:"id"`
	TenantID   int64      `json:"tenant_id"`
	BusinessID int64      `json:"business_id"`
	StartDate  string     `json:"start_date"`
	EndDate    string     `json:"end_date"`
	Status     string     `json:"status"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
	ClosedBy   *int64     `json:"closed_by,omitempty"`
}

func toPeriodResponse(p periods.Period) periodResponse {
	return periodResponse{
		ID:         p.ID,
		TenantID:   p.TenantID,
		BusinessID: p.BusinessID,
		StartDate:  p.StartDate.Format("2006-01-02"),
		EndDate:    p.EndDate.Format("2006-01-02"),
		Status:     string(p.Status),
		ClosedAt:   p.ClosedAt,
		ClosedBy:   p.ClosedBy,
	}
}

type accountResponse struct {
	ID       int64  `json:"id"`
	TenantID int64  `json:"tenant_id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	ParentID *int64 `json:"parent_id,omitempty"`
	IsActive bool   `json:"is_active"`
}

type periodActionRequest struct {
	ActorID int64 `json:"actor_id" validate:"required"`
}
