package journal

import (
	"errors"
	"time"

	"github.com/saldoku/saldoku/internal/ledger/payload"
	"github.com/saldoku/saldoku/internal/ledger/rules"
)

// Entry is a posted journal header. Immutable once created; corrections
// happen through new reversing entries, never in place.
type Entry struct {
	ID          int64
	Number      int64
	TenantID    int64
	BusinessID  int64
	PeriodID    int64
	SourceType  string
	SourceID    int64
	EventCode   string
	Date        time.Time
	Description string
	Context     payload.Map
	CreatedAt   time.Time
	Lines       []Line
}

// Line is one debit or credit row of an entry.
type Line struct {
	ID            int64
	EntryID       int64
	AccountID     int64
	Direction     rules.Direction
	Amount        float64
	ChannelType   string
	ChannelID     *int64
	FinanceUserID *int64
	CustomerID    *int64
	CreatedAt     time.Time
}

// EntryDraft is a header awaiting persistence.
type EntryDraft struct {
	TenantID    int64
	BusinessID  int64
	PeriodID    int64
	SourceType  string
	SourceID    int64
	EventCode   string
	Date        time.Time
	Description string
	Context     payload.Map
}

// LineDraft is a line awaiting persistence.
type LineDraft struct {
	AccountID     int64
	Direction     rules.Direction
	Amount        float64
	ChannelType   string
	ChannelID     *int64
	FinanceUserID *int64
	CustomerID    *int64
}

var (
	// ErrDuplicateSource indicates the source record was already posted.
	ErrDuplicateSource = errors.New("journal: source already posted")
	// ErrEntryNotFound indicates a missing entry.
	ErrEntryNotFound = errors.New("journal: entry not found")
	// ErrCollectorMissing indicates a rule demands a collector the
	// payload does not carry.
	ErrCollectorMissing = errors.New("journal: collector required by rule")
)
