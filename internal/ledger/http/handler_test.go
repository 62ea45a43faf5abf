package ledgerhttp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/saldoku/saldoku/internal/ledger/accounts"
	"github.com/saldoku/saldoku/internal/ledger/engine"
	"github.com/saldoku/saldoku/internal/ledger/journal"
	"github.com/saldoku/saldoku/internal/ledger/periods"
	"github.com/saldoku/saldoku/internal/ledger/rules"
	"github.com/saldoku/saldoku/internal/shared"
)

type stubEngine struct {
	entry     journal.Entry
	preview   engine.PreviewResult
	rules     []rules.Rule
	emitErr   error
	lastEvent engine.Event
}

func (s *stubEngine) Emit(ctx context.Context, ev engine.Event) (journal.Entry, error) {
	s.lastEvent = ev
	if s.emitErr != nil {
		return journal.Entry{}, s.emitErr
	}
	return s.entry, nil
}

func (s *stubEngine) Preview(ctx context.Context, ev engine.Event) (engine.PreviewResult, error) {
	s.lastEvent = ev
	return s.preview, nil
}

func (s *stubEngine) GetRulesForEvent(ctx context.Context, tenantID, businessID int64, eventCode string) ([]rules.Rule, error) {
	return s.rules, nil
}

type stubPeriods struct {
	period   periods.Period
	list     []periods.Period
	closeErr error
	lastID   int64
}

func (s *stubPeriods) List(ctx context.Context, businessID int64, page shared.Pagination) ([]periods.Period, error) {
	return s.list, nil
}

func (s *stubPeriods) Close(ctx context.Context, periodID, actorID int64) (periods.Period, error) {
	s.lastID = periodID
	if s.closeErr != nil {
		return periods.Period{}, s.closeErr
	}
	return s.period, nil
}

func (s *stubPeriods) Reopen(ctx context.Context, periodID, actorID int64) (periods.Period, error) {
	s.lastID = periodID
	return s.period, nil
}

type stubEntries struct {
	entry journal.Entry
	err   error
}

func (s *stubEntries) GetWithLines(ctx context.Context, entryID int64) (journal.Entry, error) {
	if s.err != nil {
		return journal.Entry{}, s.err
	}
	return s.entry, nil
}

type stubAccounts struct {
	list []accounts.Account
}

func (s *stubAccounts) List(ctx context.Context, tenantID int64) ([]accounts.Account, error) {
	return s.list, nil
}

func newTestRouter(eng *stubEngine, per *stubPeriods, ent *stubEntries, acc *stubAccounts) chi.Router {
	logger := slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
	handler := NewHandler(logger, eng, per, ent, acc)
	r := chi.NewRouter()
	handler.MountRoutes(r)
	return r
}

const emitBody = `{
	"tenant_id": 1,
	"business_id": 7,
	"event_code": "EVT_VOUCHER_SOLD",
	"source_type": "voucher_sale",
	"source_id": 42,
	"occurred_at": "2025-06-10T09:30:00Z",
	"channel_type": "pos",
	"payload": {"amount": 100000, "collector": 9}
}`

func TestEmitReturnsCreatedEntry(t *testing.T) {
	eng := &stubEngine{entry: journal.Entry{
		ID:        11,
		Number:    3,
		PeriodID:  5,
		EventCode: "EVT_VOUCHER_SOLD",
		Lines: []journal.Line{
			{ID: 1, AccountID: 100, Direction: rules.DirectionDebit, Amount: 100000},
			{ID: 2, AccountID: 400, Direction: rules.DirectionCredit, Amount: 100000},
		},
	}}
	router := newTestRouter(eng, &stubPeriods{}, &stubEntries{}, &stubAccounts{})

	req := httptest.NewRequest(http.MethodPost, "/ledger/events", strings.NewReader(emitBody))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if eng.lastEvent.EventCode != "EVT_VOUCHER_SOLD" {
		t.Fatalf("expected event code forwarded, got %q", eng.lastEvent.EventCode)
	}
	if eng.lastEvent.Payload.Has("collector") != true {
		t.Fatal("expected payload forwarded")
	}
	var resp entryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != 11 || len(resp.Lines) != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestEmitRejectsMissingFields(t *testing.T) {
	router := newTestRouter(&stubEngine{}, &stubPeriods{}, &stubEntries{}, &stubAccounts{})

	req := httptest.NewRequest(http.MethodPost, "/ledger/events", strings.NewReader(`{"tenant_id":1}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "EventCode") {
		t.Fatalf("expected field errors in body, got %s", rr.Body.String())
	}
}

func TestEmitRejectsMalformedBody(t *testing.T) {
	router := newTestRouter(&stubEngine{}, &stubPeriods{}, &stubEntries{}, &stubAccounts{})

	req := httptest.NewRequest(http.MethodPost, "/ledger/events", strings.NewReader(`{"tenant_id":`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Bad Request") {
		t.Fatalf("expected bad request problem, got %s", rr.Body.String())
	}
}

func TestEmitUnknownErrorHidden(t *testing.T) {
	router := newTestRouter(&stubEngine{emitErr: errors.New("pool exhausted")}, &stubPeriods{}, &stubEntries{}, &stubAccounts{})

	req := httptest.NewRequest(http.MethodPost, "/ledger/events", strings.NewReader(emitBody))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "pool exhausted") {
		t.Fatalf("internal detail leaked: %s", rr.Body.String())
	}
}

func TestEmitMapsDomainErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"duplicate source", journal.ErrDuplicateSource, http.StatusConflict},
		{"period closed", &engine.PeriodNotOpenError{Status: periods.StatusClosed}, http.StatusConflict},
		{"future date", engine.ErrFutureDate, http.StatusUnprocessableEntity},
		{"no rules", &engine.NoMatchingRulesError{EventCode: "EVT_X"}, http.StatusUnprocessableEntity},
		{"unbalanced", &journal.UnbalancedEntryError{Debit: 10, Credit: 5}, http.StatusUnprocessableEntity},
		{"collector missing", journal.ErrCollectorMissing, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(&stubEngine{emitErr: tc.err}, &stubPeriods{}, &stubEntries{}, &stubAccounts{})
			req := httptest.NewRequest(http.MethodPost, "/ledger/events", strings.NewReader(emitBody))
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			if rr.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestPreviewReturnsDraft(t *testing.T) {
	eng := &stubEngine{preview: engine.PreviewResult{
		Description: "Penjualan voucher V-42",
		Lines: []journal.LineDraft{
			{AccountID: 100, Direction: rules.DirectionDebit, Amount: 100000},
		},
		TotalDebit:  100000,
		TotalCredit: 0,
		IsBalanced:  false,
		Skipped:     []engine.SkippedRule{{RuleID: 4, Reason: "field missing"}},
	}}
	router := newTestRouter(eng, &stubPeriods{}, &stubEntries{}, &stubAccounts{})

	req := httptest.NewRequest(http.MethodPost, "/ledger/events/preview", strings.NewReader(emitBody))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp previewResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.IsBalanced {
		t.Fatal("expected unbalanced preview")
	}
	if len(resp.Skipped) != 1 || resp.Skipped[0].RuleID != 4 {
		t.Fatalf("unexpected skipped rules %+v", resp.Skipped)
	}
}

func TestClosePeriod(t *testing.T) {
	closedAt := time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)
	per := &stubPeriods{period: periods.Period{
		ID:        5,
		StartDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
		Status:    periods.StatusClosed,
		ClosedAt:  &closedAt,
	}}
	router := newTestRouter(&stubEngine{}, per, &stubEntries{}, &stubAccounts{})

	req := httptest.NewRequest(http.MethodPost, "/ledger/periods/5/close", strings.NewReader(`{"actor_id": 3}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if per.lastID != 5 {
		t.Fatalf("expected period 5, got %d", per.lastID)
	}
	if !strings.Contains(rr.Body.String(), `"CLOSED"`) {
		t.Fatalf("expected CLOSED status in body, got %s", rr.Body.String())
	}
}

func TestClosePeriodLocked(t *testing.T) {
	per := &stubPeriods{closeErr: periods.ErrLocked}
	router := newTestRouter(&stubEngine{}, per, &stubEntries{}, &stubAccounts{})

	req := httptest.NewRequest(http.MethodPost, "/ledger/periods/5/close", strings.NewReader(`{"actor_id": 3}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestListRulesRequiresParams(t *testing.T) {
	router := newTestRouter(&stubEngine{}, &stubPeriods{}, &stubEntries{}, &stubAccounts{})

	req := httptest.NewRequest(http.MethodGet, "/ledger/rules?tenant_id=1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestGetEntryNotFound(t *testing.T) {
	router := newTestRouter(&stubEngine{}, &stubPeriods{}, &stubEntries{err: journal.ErrEntryNotFound}, &stubAccounts{})

	req := httptest.NewRequest(http.MethodGet, "/ledger/entries/99", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestListAccounts(t *testing.T) {
	acc := &stubAccounts{list: []accounts.Account{
		{ID: 100, TenantID: 1, Code: "1000", Name: "Kas", Type: accounts.AccountTypeAsset, IsActive: true},
	}}
	router := newTestRouter(&stubEngine{}, &stubPeriods{}, &stubEntries{}, acc)

	req := httptest.NewRequest(http.MethodGet, "/ledger/accounts?tenant_id=1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"Kas"`) {
		t.Fatalf("expected account in body, got %s", rr.Body.String())
	}
}
