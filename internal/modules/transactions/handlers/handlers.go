// Package handlers provides HTTP handlers for wallet transaction history.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/aristath/cointax/internal/modules/transactions"
	"github.com/aristath/cointax/internal/modules/wallets"
	"github.com/aristath/cointax/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// TransactionStore is the persistence the handlers need
type TransactionStore interface {
	List(walletID string, filter transactions.Filter) (*transactions.Page, error)
	GetByID(id int64) (*transactions.Transaction, error)
	UpdateCategory(id int64, category string) (*transactions.Transaction, error)
	UpdateNotes(id int64, notes string) (*transactions.Transaction, error)
	SetFiatValue(id int64, value *decimal.Decimal) (*transactions.Transaction, error)
}

// WalletLookup resolves wallets named in the URL
type WalletLookup interface {
	GetByID(id string) (*wallets.Wallet, error)
}

// Syncer pulls a wallet's history from the chain
type Syncer interface {
	SyncWallet(ctx context.Context, walletID string) (transactions.SyncResult, error)
}

// ReportInvalidator drops cached tax reports for a wallet
type ReportInvalidator interface {
	Invalidate(walletID string)
}

// Handler handles transaction HTTP requests
type Handler struct {
	store       TransactionStore
	wallets     WalletLookup
	syncer      Syncer
	invalidator ReportInvalidator
	log         zerolog.Logger
}

// NewHandler creates a new transaction handler
func NewHandler(store TransactionStore, walletLookup WalletLookup, syncer Syncer, log zerolog.Logger) *Handler {
	return &Handler{
		store:   store,
		wallets: walletLookup,
		syncer:  syncer,
		log:     log.With().Str("handler", "transactions").Logger(),
	}
}

// SetReportInvalidator sets the report cache to clear on edits
func (h *Handler) SetReportInvalidator(invalidator ReportInvalidator) {
	h.invalidator = invalidator
}

// HandleList handles GET /api/wallets/{walletId}/transactions
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	walletID := chi.URLParam(r, "walletId")
	if _, err := h.wallets.GetByID(walletID); err != nil {
		h.writeLookupError(w, err)
		return
	}

	q := r.URL.Query()
	filter := transactions.Filter{
		Types:      utils.ParseCSV(q.Get("type")),
		Categories: utils.ParseCSV(q.Get("category")),
		Asset:      q.Get("asset"),
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))

	if s := q.Get("startDate"); s != "" {
		start, err := utils.ParseDate(s, false)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.StartDate = &start
	}
	if s := q.Get("endDate"); s != "" {
		end, err := utils.ParseDate(s, true)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.EndDate = &end
	}

	page, err := h.store.List(walletID, filter)
	if err != nil {
		h.writeStoreError(w, err, "Failed to fetch transactions")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": page.Transactions,
		"pagination": map[string]int{
			"total": page.Total,
			"page":  page.Page,
			"limit": page.Limit,
			"pages": page.Pages,
		},
	})
}

// HandleSync handles POST /api/wallets/{walletId}/transactions/sync
func (h *Handler) HandleSync(w http.ResponseWriter, r *http.Request) {
	result, err := h.syncer.SyncWallet(r.Context(), chi.URLParam(r, "walletId"))
	if err != nil {
		if errors.Is(err, wallets.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "Wallet not found")
			return
		}
		h.log.Error().Err(err).Msg("Failed to sync transactions")
		h.writeError(w, http.StatusBadGateway, "Failed to sync transactions")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "Wallet transactions synchronized successfully",
		"added":    result.Added,
		"existing": result.Existing,
		"skipped":  result.Skipped,
	})
}

// HandleGet handles GET /api/transactions/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	tx, err := h.store.GetByID(id)
	if err != nil {
		h.writeStoreError(w, err, "Failed to fetch transaction")
		return
	}
	h.writeJSON(w, http.StatusOK, tx)
}

// HandleUpdateCategory handles PATCH /api/transactions/{id}/category
func (h *Handler) HandleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req struct {
		Category string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tx, err := h.store.UpdateCategory(id, req.Category)
	h.respondUpdated(w, tx, err, "Failed to update transaction category")
}

// HandleUpdateNotes handles PATCH /api/transactions/{id}/notes
func (h *Handler) HandleUpdateNotes(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req struct {
		Notes string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tx, err := h.store.UpdateNotes(id, req.Notes)
	if err != nil {
		h.writeStoreError(w, err, "Failed to update transaction notes")
		return
	}
	h.writeJSON(w, http.StatusOK, tx)
}

// HandleUpdateValuation handles PATCH /api/transactions/{id}/valuation.
// A null fiatValue clears the valuation.
func (h *Handler) HandleUpdateValuation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req struct {
		FiatValue *string `json:"fiatValue"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var value *decimal.Decimal
	if req.FiatValue != nil {
		parsed, err := decimal.NewFromString(*req.FiatValue)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "fiatValue must be a decimal string")
			return
		}
		value = &parsed
	}

	tx, err := h.store.SetFiatValue(id, value)
	h.respondUpdated(w, tx, err, "Failed to update transaction valuation")
}

// respondUpdated writes the result of an edit that affects tax reports
func (h *Handler) respondUpdated(w http.ResponseWriter, tx *transactions.Transaction, err error, msg string) {
	if err != nil {
		h.writeStoreError(w, err, msg)
		return
	}
	if h.invalidator != nil {
		h.invalidator.Invalidate(tx.WalletID)
	}
	h.writeJSON(w, http.StatusOK, tx)
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "Invalid transaction ID format")
		return 0, false
	}
	return id, true
}

func (h *Handler) writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, wallets.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "Wallet not found")
		return
	}
	h.log.Error().Err(err).Msg("Failed to look up wallet")
	h.writeError(w, http.StatusInternalServerError, "Failed to look up wallet")
}

func (h *Handler) writeStoreError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, transactions.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "Transaction not found")
	case errors.Is(err, transactions.ErrInvalidInput):
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
