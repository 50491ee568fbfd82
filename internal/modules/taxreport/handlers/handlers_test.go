package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aristath/cointax/internal/modules/taxreport"
	"github.com/aristath/cointax/internal/modules/transactions"
	"github.com/aristath/cointax/internal/modules/wallets"
	testingpkg "github.com/aristath/cointax/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const address = "0x00000000000000000000000000000000000000aa"

func setupRouter(t *testing.T) (chi.Router, *wallets.Wallet) {
	ledger := testingpkg.NewTestDB(t, "ledger")
	cacheDB := testingpkg.NewTestDB(t, "cache")

	walletRepo := wallets.NewRepository(ledger.Conn(), zerolog.Nop())
	wallet, err := walletRepo.Create(address, "main", "")
	require.NoError(t, err)

	txRepo := transactions.NewRepository(ledger.Conn(), zerolog.Nop())
	for _, tx := range []transactions.Transaction{
		{TxHash: "0x01", Type: transactions.TypeReceive, Value: "2000000000000000000", Timestamp: testingpkg.Date(2023, 1, 1), FiatValue: ptr("2000")},
		{TxHash: "0x02", Type: transactions.TypeSend, Value: "1000000000000000000", Timestamp: testingpkg.Date(2024, 5, 1), FiatValue: ptr("3000")},
	} {
		tx.WalletID = wallet.ID
		tx.Decimals = transactions.NativeDecimals
		tx.Status = true
		_, err := txRepo.Create(&tx)
		require.NoError(t, err)
	}

	snapshots := taxreport.NewSnapshotRepository(cacheDB.Conn(), zerolog.Nop())
	service := taxreport.NewService(walletRepo, txRepo, snapshots, time.Minute, 2, zerolog.Nop())

	router := chi.NewRouter()
	NewHandler(service, snapshots, zerolog.Nop()).RegisterRoutes(router)
	return router, wallet
}

func ptr(s string) *decimal.Decimal {
	v := testingpkg.D(s)
	return &v
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleGenerate(t *testing.T) {
	router, wallet := setupRouter(t)

	w := do(router, "POST", "/wallets/"+wallet.ID+"/tax-report",
		`{"startDate":"2024-01-01","endDate":"2024-12-31","method":"FIFO"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report taxreport.Report
	require.NoError(t, json.NewDecoder(w.Body).Decode(&report))
	assert.Equal(t, wallet.ID, report.WalletID)
	assert.Equal(t, "fifo", report.Method.String())
	assert.True(t, testingpkg.D("2000").Equal(report.TotalGains), report.TotalGains.String())
	assert.True(t, testingpkg.D("2000").Equal(report.LongTermGains))
	require.Len(t, report.Transactions.Gains, 1)
	assert.Equal(t, 2024, report.EndDate.Year())
	assert.Equal(t, 23, report.EndDate.Hour())

	// The stored copy is retrievable by id
	w = do(router, "GET", "/tax-reports/"+report.ID, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(router, "GET", "/wallets/"+wallet.ID+"/tax-reports", "")
	require.Equal(t, http.StatusOK, w.Code)
	var listed struct {
		Reports []taxreport.SnapshotInfo `json:"reports"`
		Count   int                      `json:"count"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&listed))
	assert.Equal(t, 1, listed.Count)
	assert.Equal(t, report.ID, listed.Reports[0].ID)
}

func TestHandleGenerate_Errors(t *testing.T) {
	router, wallet := setupRouter(t)
	path := "/wallets/" + wallet.ID + "/tax-report"

	testCases := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"malformed body", path, `{`, http.StatusBadRequest},
		{"missing dates", path, `{"method":"fifo"}`, http.StatusBadRequest},
		{"bad date", path, `{"startDate":"01/01/2024","endDate":"2024-12-31"}`, http.StatusBadRequest},
		{"reversed dates", path, `{"startDate":"2024-12-31","endDate":"2024-01-01"}`, http.StatusBadRequest},
		{"unknown method", path, `{"startDate":"2024-01-01","endDate":"2024-12-31","method":"average"}`, http.StatusBadRequest},
		{"unknown wallet", "/wallets/missing/tax-report", `{"startDate":"2024-01-01","endDate":"2024-12-31"}`, http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(router, "POST", tc.path, tc.body)
			assert.Equal(t, tc.status, w.Code, w.Body.String())

			var body map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestHandleExportCSV(t *testing.T) {
	router, wallet := setupRouter(t)

	w := do(router, "POST", "/wallets/"+wallet.ID+"/tax-report/csv",
		`{"startDate":"2024-01-01","endDate":"2024-12-31","method":"hifo","template":"turbotax"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	disposition := w.Header().Get("Content-Disposition")
	assert.True(t, strings.HasPrefix(disposition, "attachment; filename=tax_report_"+wallet.ID+"_hifo_"), disposition)

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "Description,"))
	assert.Contains(t, lines[1], "1.00000000 ETH,2023-01-01,2024-05-01,3000.00,1000.00")
}

func TestHandleExportCSV_UnknownTemplate(t *testing.T) {
	router, wallet := setupRouter(t)

	w := do(router, "POST", "/wallets/"+wallet.ID+"/tax-report/csv",
		`{"startDate":"2024-01-01","endDate":"2024-12-31","template":"quicken"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

func TestHandleGetReport_NotFound(t *testing.T) {
	router, _ := setupRouter(t)

	w := do(router, "GET", "/tax-reports/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleListReports_BadLimit(t *testing.T) {
	router, wallet := setupRouter(t)

	w := do(router, "GET", "/wallets/"+wallet.ID+"/tax-reports?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleCatalogs(t *testing.T) {
	router, _ := setupRouter(t)

	w := do(router, "GET", "/tax-reports/templates", "")
	require.Equal(t, http.StatusOK, w.Code)
	var templates struct {
		Templates []taxreport.Template `json:"templates"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&templates))
	assert.Len(t, templates.Templates, 6)

	w = do(router, "GET", "/tax-reports/methods", "")
	require.Equal(t, http.StatusOK, w.Code)
	var methods struct {
		Methods []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"methods"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&methods))
	require.Len(t, methods.Methods, 3)
	assert.Equal(t, "fifo", methods.Methods[0].ID)
	assert.Equal(t, "First In, First Out", methods.Methods[0].Name)
}
