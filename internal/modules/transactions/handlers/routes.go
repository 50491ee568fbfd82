package handlers

import "github.com/go-chi/chi/v5"

// RegisterRoutes registers all transaction routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/wallets/{walletId}/transactions", h.HandleList)
	r.Post("/wallets/{walletId}/transactions/sync", h.HandleSync)

	r.Route("/transactions/{id}", func(r chi.Router) {
		r.Get("/", h.HandleGet)
		r.Patch("/category", h.HandleUpdateCategory)
		r.Patch("/notes", h.HandleUpdateNotes)
		r.Patch("/valuation", h.HandleUpdateValuation)
	})
}
