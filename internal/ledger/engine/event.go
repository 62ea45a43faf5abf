package engine

import (
	"errors"
	"time"

	"github.com/saldoku/saldoku/internal/ledger/journal"
	"github.com/saldoku/saldoku/internal/ledger/payload"
)

// Actor identifies who or what emitted the event.
type Actor struct {
	UserID      *int64
	ChannelType string
	ChannelID   *int64
}

// Event is an inbound business event: a voucher sold, a purchase made,
// a commission approved. The coordinator turns it into one balanced
// journal entry according to the configured rules.
type Event struct {
	TenantID    int64
	BusinessID  int64
	EventCode   string
	SourceType  string
	SourceID    int64
	OccurredAt  time.Time
	Actor       Actor
	Payload     payload.Map
	Description string // optional override for the entry description
}

// Validate ensures required fields are present.
func (ev Event) Validate() error {
	switch {
	case ev.TenantID == 0:
		return errors.New("engine: tenant required")
	case ev.BusinessID == 0:
		return errors.New("engine: business required")
	case ev.EventCode == "":
		return errors.New("engine: event code required")
	case ev.SourceType == "" || ev.SourceID == 0:
		return errors.New("engine: source reference required")
	case ev.OccurredAt.IsZero():
		return errors.New("engine: occurred_at required")
	case ev.Actor.ChannelType == "":
		return errors.New("engine: actor channel required")
	}
	return nil
}

func (ev Event) context() journal.EventContext {
	return journal.EventContext{
		TenantID:    ev.TenantID,
		BusinessID:  ev.BusinessID,
		SourceType:  ev.SourceType,
		SourceID:    ev.SourceID,
		EventCode:   ev.EventCode,
		OccurredAt:  ev.OccurredAt,
		Description: ev.Description,
		ActorUserID: ev.Actor.UserID,
		ChannelType: ev.Actor.ChannelType,
		ChannelID:   ev.Actor.ChannelID,
		Payload:     ev.Payload,
	}
}
