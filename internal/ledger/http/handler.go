// Package ledgerhttp exposes the event-to-ledger API over HTTP.
package ledgerhttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/saldoku/saldoku/internal/ledger/accounts"
	"github.com/saldoku/saldoku/internal/ledger/engine"
	"github.com/saldoku/saldoku/internal/ledger/journal"
	"github.com/saldoku/saldoku/internal/ledger/periods"
	"github.com/saldoku/saldoku/internal/ledger/rules"
	"github.com/saldoku/saldoku/internal/platform/httpx"
	"github.com/saldoku/saldoku/internal/shared"
)

type emitService interface {
	Emit(ctx context.Context, ev engine.Event) (journal.Entry, error)
	Preview(ctx context.Context, ev engine.Event) (engine.PreviewResult, error)
	GetRulesForEvent(ctx context.Context, tenantID, businessID int64, eventCode string) ([]rules.Rule, error)
}

type periodService interface {
	List(ctx context.Context, businessID int64, page shared.Pagination) ([]periods.Period, error)
	Close(ctx context.Context, periodID, actorID int64) (periods.Period, error)
	Reopen(ctx context.Context, periodID, actorID int64) (periods.Period, error)
}

type entrySource interface {
	GetWithLines(ctx context.Context, entryID int64) (journal.Entry, error)
}

type accountSource interface {
	List(ctx context.Context, tenantID int64) ([]accounts.Account, error)
}

// Handler wires the ledger API endpoints.
type Handler struct {
	logger   *slog.Logger
	engine   emitService
	periods  periodService
	entries  entrySource
	accounts accountSource
	validate *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, eng emitService, per periodService, entries entrySource, acc accountSource) *Handler {
	return &Handler{
		logger:   logger,
		engine:   eng,
		periods:  per,
		entries:  entries,
		accounts: acc,
		validate: validator.New(),
	}
}

func (h *Handler) handleEmit(w http.ResponseWriter, r *http.Request) {
	var req emitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	entry, err := h.engine.Emit(r.Context(), req.toEvent())
	if err != nil {
		h.respondLedgerError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(entry))
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req emitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	res, err := h.engine.Preview(r.Context(), req.toEvent())
	if err != nil {
		h.respondLedgerError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPreviewResponse(res))
}

func (h *Handler) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	entryID, err := strconv.ParseInt(chi.URLParam(r, "entryID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "entry id must be numeric")
		return
	}
	entry, err := h.entries.GetWithLines(r.Context(), entryID)
	if err != nil {
		h.respondLedgerError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(entry))
}

func (h *Handler) handleListRules(w http.ResponseWriter, r *http.Request) {
	tenantID := queryInt64(r, "tenant_id")
	businessID := queryInt64(r, "business_id")
	eventCode := r.URL.Query().Get("event_code")
	if tenantID == 0 || businessID == 0 || eventCode == "" {
		httpx.Problem(w, http.StatusBadRequest, "Missing Parameters", "tenant_id, business_id and event_code are required")
		return
	}
	ruleSet, err := h.engine.GetRulesForEvent(r.Context(), tenantID, businessID, eventCode)
	if err != nil {
		h.respondLedgerError(w, r, err)
		return
	}
	out := make([]ruleResponse, 0, len(ruleSet))
	for _, rl := range ruleSet {
		out = append(out, toRuleResponse(rl))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rules": out})
}

func (h *Handler) handleListPeriods(w http.ResponseWriter, r *http.Request) {
	businessID := queryInt64(r, "business_id")
	if businessID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Missing Parameters", "business_id is required")
		return
	}
	page := shared.NewPagination(int(queryInt64(r, "page")), int(queryInt64(r, "per_page")), 0)
	list, err := h.periods.List(r.Context(), businessID, page)
	if err != nil {
		h.respondLedgerError(w, r, err)
		return
	}
	out := make([]periodResponse, 0, len(list))
	for _, p := range list {
		out = append(out, toPeriodResponse(p))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"periods": out})
}

func (h *Handler) handleClosePeriod(w http.ResponseWriter, r *http.Request) {
	h.handlePeriodAction(w, r, h.periods.Close)
}

func (h *Handler) handleReopenPeriod(w http.ResponseWriter, r *http.Request) {
	h.handlePeriodAction(w, r, h.periods.Reopen)
}

func (h *Handler) handlePeriodAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, periodID, actorID int64) (periods.Period, error)) {
	periodID, err := strconv.ParseInt(chi.URLParam(r, "periodID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "period id must be numeric")
		return
	}
	var req periodActionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	period, err := action(r.Context(), periodID, req.ActorID)
	if err != nil {
		h.respondLedgerError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPeriodResponse(period))
}

func (h *Handler) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	tenantID := queryInt64(r, "tenant_id")
	if tenantID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Missing Parameters", "tenant_id is required")
		return
	}
	list, err := h.accounts.List(r.Context(), tenantID)
	if err != nil {
		h.respondLedgerError(w, r, err)
		return
	}
	out := make([]accountResponse, 0, len(list))
	for _, a := range list {
		out = append(out, accountResponse{
			ID:       a.ID,
			TenantID: a.TenantID,
			Code:     a.Code,
			Name:     a.Name,
			Type:     string(a.Type),
			ParentID: a.ParentID,
			IsActive: a.IsActive,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": out})
}

// respondLedgerError maps domain errors to problem responses. Rejections that
// indicate a broken event or rule set come back as 422 so emitters can tell
// them apart from malformed requests.
func (h *Handler) respondLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	var notOpen *engine.PeriodNotOpenError
	var noRules *engine.NoMatchingRulesError
	var amountErr *engine.AmountResolutionError
	var unbalanced *journal.UnbalancedEntryError
	switch {
	case errors.Is(err, journal.ErrDuplicateSource):
		httpx.Problem(w, http.StatusConflict, "Duplicate Source", err.Error())
	case errors.As(err, &notOpen):
		httpx.Problem(w, http.StatusConflict, "Period Not Open", err.Error())
	case errors.Is(err, periods.ErrLocked):
		httpx.Problem(w, http.StatusConflict, "Period Locked", err.Error())
	case errors.Is(err, periods.ErrAlreadyClosed), errors.Is(err, periods.ErrAlreadyOpen):
		httpx.Problem(w, http.StatusConflict, "Invalid Period State", err.Error())
	case errors.Is(err, periods.ErrUnbalanced):
		httpx.Problem(w, http.StatusConflict, "Period Unbalanced", err.Error())
	case errors.Is(err, engine.ErrFutureDate), errors.Is(err, periods.ErrFuturePeriod):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Future Date", err.Error())
	case errors.As(err, &noRules):
		httpx.Problem(w, http.StatusUnprocessableEntity, "No Matching Rules", err.Error())
	case errors.As(err, &amountErr):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Amount Resolution Failed", err.Error())
	case errors.As(err, &unbalanced):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unbalanced Entry", err.Error())
	case errors.Is(err, engine.ErrNoLines):
		httpx.Problem(w, http.StatusUnprocessableEntity, "No Lines", err.Error())
	case errors.Is(err, journal.ErrCollectorMissing):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Collector Missing", err.Error())
	case errors.Is(err, periods.ErrNotFound), errors.Is(err, journal.ErrEntryNotFound), errors.Is(err, accounts.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		httpx.RespondError(w, r, h.logger, err)
	}
}

func queryInt64(r *http.Request, key string) int64 {
	v, err := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
