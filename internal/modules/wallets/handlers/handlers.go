// Package handlers provides HTTP handlers for wallet management.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aristath/cointax/internal/modules/wallets"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// WalletStore is the persistence the handlers need
type WalletStore interface {
	Create(address, label, network string) (*wallets.Wallet, error)
	GetByID(id string) (*wallets.Wallet, error)
	List() ([]wallets.Wallet, error)
	Update(id, label, network string) (*wallets.Wallet, error)
	Delete(id string) error
}

// ReportInvalidator drops cached tax reports for a wallet
type ReportInvalidator interface {
	Invalidate(walletID string)
}

// Handler handles wallet HTTP requests
type Handler struct {
	store       WalletStore
	invalidator ReportInvalidator
	log         zerolog.Logger
}

// NewHandler creates a new wallet handler
func NewHandler(store WalletStore, log zerolog.Logger) *Handler {
	return &Handler{
		store: store,
		log:   log.With().Str("handler", "wallets").Logger(),
	}
}

// SetReportInvalidator sets the report cache to clear on wallet changes
func (h *Handler) SetReportInvalidator(invalidator ReportInvalidator) {
	h.invalidator = invalidator
}

type walletRequest struct {
	Address string `json:"address"`
	Label   string `json:"label"`
	Network string `json:"network"`
}

// HandleList handles GET /api/wallets
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.List()
	if err != nil {
		h.writeStoreError(w, err, "Failed to list wallets")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"wallets": list,
		"count":   len(list),
	})
}

// HandleCreate handles POST /api/wallets
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req walletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Address == "" || req.Label == "" {
		h.writeError(w, http.StatusBadRequest, "Address and label are required")
		return
	}

	wallet, err := h.store.Create(req.Address, req.Label, req.Network)
	if err != nil {
		h.writeStoreError(w, err, "Failed to create wallet")
		return
	}
	h.writeJSON(w, http.StatusCreated, wallet)
}

// HandleGet handles GET /api/wallets/{walletId}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	wallet, err := h.store.GetByID(chi.URLParam(r, "walletId"))
	if err != nil {
		h.writeStoreError(w, err, "Failed to get wallet")
		return
	}
	h.writeJSON(w, http.StatusOK, wallet)
}

// HandleUpdate handles PUT /api/wallets/{walletId}
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req walletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	wallet, err := h.store.Update(chi.URLParam(r, "walletId"), req.Label, req.Network)
	if err != nil {
		h.writeStoreError(w, err, "Failed to update wallet")
		return
	}
	h.writeJSON(w, http.StatusOK, wallet)
}

// HandleDelete handles DELETE /api/wallets/{walletId}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	walletID := chi.URLParam(r, "walletId")
	if err := h.store.Delete(walletID); err != nil {
		h.writeStoreError(w, err, "Failed to delete wallet")
		return
	}
	if h.invalidator != nil {
		h.invalidator.Invalidate(walletID)
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Wallet deleted successfully"})
}

func (h *Handler) writeStoreError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, wallets.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "Wallet not found")
	case errors.Is(err, wallets.ErrDuplicate):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, wallets.ErrInvalidInput):
		h.writeError(w, http.StatusBadRequest, err.Error())
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
