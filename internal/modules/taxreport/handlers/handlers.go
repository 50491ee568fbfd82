// Package handlers provides HTTP handlers for tax report generation and export.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/cointax/internal/modules/taxlots"
	"github.com/aristath/cointax/internal/modules/taxreport"
	"github.com/aristath/cointax/internal/modules/wallets"
	"github.com/aristath/cointax/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// ReportGenerator builds and retrieves reports
type ReportGenerator interface {
	Generate(ctx context.Context, req taxreport.Request) (*taxreport.Report, error)
	GetSnapshot(id string) (*taxreport.Report, error)
}

// SnapshotLister lists stored reports of a wallet
type SnapshotLister interface {
	ListByWallet(walletID string, limit int) ([]taxreport.SnapshotInfo, error)
}

// Handler handles tax report HTTP requests
type Handler struct {
	reports   ReportGenerator
	snapshots SnapshotLister
	log       zerolog.Logger
}

// NewHandler creates a new tax report handler
func NewHandler(reports ReportGenerator, snapshots SnapshotLister, log zerolog.Logger) *Handler {
	return &Handler{
		reports:   reports,
		snapshots: snapshots,
		log:       log.With().Str("handler", "taxreport").Logger(),
	}
}

type reportRequest struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Method    string `json:"method"`
	Template  string `json:"template"`
}

func (req reportRequest) toRequest(walletID string) (taxreport.Request, error) {
	if req.StartDate == "" || req.EndDate == "" {
		return taxreport.Request{}, errors.New("Start date and end date are required")
	}
	start, err := utils.ParseDate(req.StartDate, false)
	if err != nil {
		return taxreport.Request{}, err
	}
	end, err := utils.ParseDate(req.EndDate, true)
	if err != nil {
		return taxreport.Request{}, err
	}

	method := taxlots.FIFO
	if req.Method != "" {
		if method, err = taxlots.ParseMethod(req.Method); err != nil {
			return taxreport.Request{}, errors.New("Invalid tax calculation method")
		}
	}

	return taxreport.Request{WalletID: walletID, StartDate: start, EndDate: end, Method: method}, nil
}

func (h *Handler) decodeRequest(w http.ResponseWriter, r *http.Request) (reportRequest, taxreport.Request, bool) {
	var body reportRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return body, taxreport.Request{}, false
	}
	req, err := body.toRequest(chi.URLParam(r, "walletId"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return body, taxreport.Request{}, false
	}
	return body, req, true
}

// HandleGenerate handles POST /api/wallets/{walletId}/tax-report
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	_, req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	report, err := h.reports.Generate(r.Context(), req)
	if err != nil {
		h.writeReportError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// HandleExportCSV handles POST /api/wallets/{walletId}/tax-report/csv
func (h *Handler) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	body, req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	report, err := h.reports.Generate(r.Context(), req)
	if err != nil {
		h.writeReportError(w, err)
		return
	}

	// Render before writing headers so a bad template still gets a JSON error
	var buf bytes.Buffer
	if err := taxreport.WriteCSV(&buf, report, body.Template); err != nil {
		h.writeReportError(w, err)
		return
	}

	filename := fmt.Sprintf("tax_report_%s_%s_%s.csv", req.WalletID, req.Method, utils.FormatDate(time.Now()))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.log.Error().Err(err).Msg("Failed to write CSV response")
	}
}

// HandleGetReport handles GET /api/tax-reports/{reportId}
func (h *Handler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.reports.GetSnapshot(chi.URLParam(r, "reportId"))
	if err != nil {
		h.writeReportError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// HandleListReports handles GET /api/wallets/{walletId}/tax-reports
func (h *Handler) HandleListReports(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	list, err := h.snapshots.ListByWallet(chi.URLParam(r, "walletId"), limit)
	if err != nil {
		h.writeReportError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"reports": list,
		"count":   len(list),
	})
}

// HandleTemplates handles GET /api/tax-reports/templates
func (h *Handler) HandleTemplates(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"templates": taxreport.Templates()})
}

// HandleMethods handles GET /api/tax-reports/methods
func (h *Handler) HandleMethods(w http.ResponseWriter, r *http.Request) {
	type method struct {
		ID          taxlots.Method `json:"id"`
		Name        string         `json:"name"`
		Description string         `json:"description"`
	}
	descriptions := map[taxlots.Method][2]string{
		taxlots.FIFO: {"First In, First Out", "Sells the oldest acquired units first"},
		taxlots.LIFO: {"Last In, First Out", "Sells the most recently acquired units first"},
		taxlots.HIFO: {"Highest In, First Out", "Sells the units with the highest cost basis first"},
	}

	methods := make([]method, 0, len(taxlots.Methods()))
	for _, m := range taxlots.Methods() {
		d := descriptions[m]
		methods = append(methods, method{ID: m, Name: d[0], Description: d[1]})
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"methods": methods})
}

func (h *Handler) writeReportError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, wallets.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "Wallet not found")
	case errors.Is(err, taxreport.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "Report not found")
	case errors.Is(err, taxreport.ErrInvalidRequest),
		errors.Is(err, taxreport.ErrUnknownTemplate),
		errors.Is(err, taxlots.ErrInvalidInput):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error().Err(err).Msg("Failed to generate tax report")
		h.writeError(w, http.StatusInternalServerError, "Failed to generate tax report")
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
