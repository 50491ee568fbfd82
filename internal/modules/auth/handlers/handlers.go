// Package handlers provides HTTP handlers for registration, login and
// account management.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aristath/cointax/internal/modules/auth"
	"github.com/rs/zerolog"
)

// AccountService is the auth behaviour the handlers need
type AccountService interface {
	Register(email, password, name string) (*auth.User, error)
	Login(email, password string) (string, *auth.User, error)
	GetUser(id string) (*auth.User, error)
	UpdateProfile(id, email, name string) (*auth.User, error)
	ChangePassword(id, current, next string) error
}

// Handler handles auth HTTP requests
type Handler struct {
	service AccountService
	log     zerolog.Logger
}

// NewHandler creates a new auth handler
func NewHandler(service AccountService, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "auth").Logger(),
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// HandleRegister handles POST /api/auth/register
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.service.Register(req.Email, req.Password, req.Name)
	if err != nil {
		h.writeServiceError(w, err, "Failed to register user")
		return
	}
	h.writeJSON(w, http.StatusCreated, user)
}

// HandleLogin handles POST /api/auth/login
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		h.writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	token, user, err := h.service.Login(req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, err, "Failed to log in")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

// HandleGetProfile handles GET /api/auth/profile
func (h *Handler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	user, err := h.service.GetUser(userID)
	if err != nil {
		h.writeServiceError(w, err, "Failed to get profile")
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

// HandleUpdateProfile handles PUT /api/auth/profile
func (h *Handler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	userID, _ := auth.UserIDFromContext(r.Context())
	user, err := h.service.UpdateProfile(userID, req.Email, req.Name)
	if err != nil {
		h.writeServiceError(w, err, "Failed to update profile")
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

// HandleChangePassword handles POST /api/auth/change-password
func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	userID, _ := auth.UserIDFromContext(r.Context())
	if err := h.service.ChangePassword(userID, req.CurrentPassword, req.NewPassword); err != nil {
		h.writeServiceError(w, err, "Failed to change password")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully"})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrDuplicate):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		h.writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "User not found")
	default:
		h.log.Error().Err(err).Msg(msg)
		h.writeError(w, http.StatusInternalServerError, msg)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
