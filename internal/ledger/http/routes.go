package ledgerhttp

import "github.com/go-chi/chi/v5"

// MountRoutes registers the ledger API under the given router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/ledger", func(r chi.Router) {
		r.Post("/events", h.handleEmit)
		r.Post("/events/preview", h.handlePreview)
		r.Get("/entries/{entryID}", h.handleGetEntry)
		r.Get("/rules", h.handleListRules)
		r.Get("/accounts", h.handleListAccounts)
		r.Route("/periods", func(r chi.Router) {
			r.Get("/", h.handleListPeriods)
			r.Post("/{periodID}/close", h.handleClosePeriod)
			r.Post("/{periodID}/reopen", h.handleReopenPeriod)
		})
	})
}
