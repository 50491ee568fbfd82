package handlers

import "github.com/go-chi/chi/v5"

// RegisterRoutes registers all wallet routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/wallets", h.HandleList)
	r.Post("/wallets", h.HandleCreate)
	r.Get("/wallets/{walletId}", h.HandleGet)
	r.Put("/wallets/{walletId}", h.HandleUpdate)
	r.Delete("/wallets/{walletId}", h.HandleDelete)
}
