package journal

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/saldoku/saldoku/internal/ledger/payload"
	"github.com/saldoku/saldoku/internal/ledger/periods"
	"github.com/saldoku/saldoku/internal/ledger/rules"
)

// EventContext carries the event fields the builder consumes. The
// coordinator maps its inbound event onto this before building.
type EventContext struct {
	TenantID    int64
	BusinessID  int64
	SourceType  string
	SourceID    int64
	EventCode   string
	OccurredAt  time.Time
	Description string // optional caller override
	ActorUserID *int64
	ChannelType string
	ChannelID   *int64
	Payload     payload.Map
}

// Well-known payload keys for line attribution.
const (
	KeyCollector  = "collector"
	KeySales      = "sales"
	KeyTechnician = "technician"
	KeyCustomer   = "customer"
)

// Builder turns an event and its matched rules into entry and line
// drafts. Descriptions come from per-event-code templates unless the
// caller supplies one.
type Builder struct {
	templates map[string]string
	printer   *message.Printer
}

// NewBuilder returns a builder with the default description templates.
// The printer formats amounts with Indonesian digit grouping, matching
// how the dashboard renders money.
func NewBuilder() *Builder {
	return &Builder{
		templates: defaultTemplates,
		printer:   message.NewPrinter(language.Indonesian),
	}
}

// WithTemplate registers or overrides a description template for an
// event code. The template receives the total payload amount when the
// payload carries total_amount.
func (b *Builder) WithTemplate(eventCode, template string) *Builder {
	if b.templates == nil {
		b.templates = map[string]string{}
	}
	b.templates[eventCode] = template
	return b
}

var defaultTemplates = map[string]string{
	"EVT_VOUCHER_SOLD":      "Penjualan voucher %s",
	"EVT_PURCHASE_MADE":     "Pembelian %s",
	"EVT_COMMISSION_EARNED": "Komisi %s",
	"EVT_TICKET_SETTLED":    "Penyelesaian tiket %s",
	"EVT_EXPENSE_RECORDED":  "Pengeluaran %s",
	"EVT_DEPOSIT_TOPUP":     "Top up saldo %s",
}

// Header builds the entry draft, stamping attribution and a payload
// snapshot for audit.
func (b *Builder) Header(ev EventContext, period periods.Period) EntryDraft {
	return EntryDraft{
		TenantID:    ev.TenantID,
		BusinessID:  ev.BusinessID,
		PeriodID:    period.ID,
		SourceType:  ev.SourceType,
		SourceID:    ev.SourceID,
		EventCode:   ev.EventCode,
		Date:        ev.OccurredAt,
		Description: b.description(ev),
		Context:     ev.Payload.Clone(),
	}
}

func (b *Builder) description(ev EventContext) string {
	if ev.Description != "" {
		return ev.Description
	}
	ref := fmt.Sprintf("%s#%d", ev.SourceType, ev.SourceID)
	if total, err := ev.Payload.Float("total_amount"); err == nil {
		ref = b.printer.Sprintf("%s (Rp%.2f)", ref, total)
	}
	if tpl, ok := b.templates[ev.EventCode]; ok {
		return fmt.Sprintf(tpl, ref)
	}
	return fmt.Sprintf("%s %s", ev.EventCode, ref)
}

// Line builds one line draft for a matched rule. A resolved amount
// <= 0 suppresses the line and returns nil. Resolution failures and a
// missing mandatory collector are errors.
func (b *Builder) Line(rule rules.Rule, ev EventContext) (*LineDraft, error) {
	amount, err := rule.Amount.Resolve(ev.Payload)
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, nil
	}
	line := LineDraft{
		AccountID:   rule.AccountID,
		Direction:   rule.Direction,
		Amount:      amount,
		ChannelType: ev.ChannelType,
		ChannelID:   ev.ChannelID,
	}
	if rule.CollectorRequired {
		collector, ok := ev.Payload.OptionalInt(KeyCollector)
		if !ok {
			return nil, fmt.Errorf("%w: rule %d", ErrCollectorMissing, rule.ID)
		}
		line.FinanceUserID = &collector
	} else {
		line.FinanceUserID = firstBackRef(ev.Payload, KeyCollector, KeySales, KeyTechnician)
	}
	if customer, ok := ev.Payload.OptionalInt(KeyCustomer); ok {
		line.CustomerID = &customer
	}
	return &line, nil
}

func firstBackRef(p payload.Map, keys ...string) *int64 {
	for _, key := range keys {
		if id, ok := p.OptionalInt(key); ok {
			return &id
		}
	}
	return nil
}
