package handlers

import "github.com/go-chi/chi/v5"

// RegisterRoutes registers all tax report routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/wallets/{walletId}/tax-report", h.HandleGenerate)
	r.Post("/wallets/{walletId}/tax-report/csv", h.HandleExportCSV)
	r.Get("/wallets/{walletId}/tax-reports", h.HandleListReports)

	r.Route("/tax-reports", func(r chi.Router) {
		r.Get("/templates", h.HandleTemplates)
		r.Get("/methods", h.HandleMethods)
		r.Get("/{reportId}", h.HandleGetReport)
	})
}
