package handlers

import "github.com/go-chi/chi/v5"

// RegisterPublicRoutes registers the routes reachable without a token
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/auth/register", h.HandleRegister)
	r.Post("/auth/login", h.HandleLogin)
}

// RegisterRoutes registers the account routes; r must apply auth.Middleware
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/auth/profile", h.HandleGetProfile)
	r.Put("/auth/profile", h.HandleUpdateProfile)
	r.Post("/auth/change-password", h.HandleChangePassword)
}
