package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/aristath/cointax/internal/modules/transactions"
	"github.com/aristath/cointax/internal/modules/wallets"
	testingpkg "github.com/aristath/cointax/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSyncer struct {
	mock.Mock
}

func (m *mockSyncer) SyncWallet(ctx context.Context, walletID string) (transactions.SyncResult, error) {
	args := m.Called(walletID)
	return args.Get(0).(transactions.SyncResult), args.Error(1)
}

type mockInvalidator struct {
	mock.Mock
}

func (m *mockInvalidator) Invalidate(walletID string) {
	m.Called(walletID)
}

type env struct {
	router      chi.Router
	repo        *transactions.Repository
	wallet      *wallets.Wallet
	syncer      *mockSyncer
	invalidator *mockInvalidator
}

func setup(t *testing.T) *env {
	db := testingpkg.NewTestDB(t, "ledger")
	walletRepo := wallets.NewRepository(db.Conn(), zerolog.Nop())
	wallet, err := walletRepo.Create("0x00000000000000000000000000000000000000aa", "main", "")
	require.NoError(t, err)

	repo := transactions.NewRepository(db.Conn(), zerolog.Nop())
	syncer := &mockSyncer{}
	invalidator := &mockInvalidator{}

	handler := NewHandler(repo, walletRepo, syncer, zerolog.Nop())
	handler.SetReportInvalidator(invalidator)

	router := chi.NewRouter()
	handler.RegisterRoutes(router)

	return &env{router: router, repo: repo, wallet: wallet, syncer: syncer, invalidator: invalidator}
}

func (e *env) seed(t *testing.T, hash string, day int, txType string) *transactions.Transaction {
	tx := &transactions.Transaction{
		WalletID:  e.wallet.ID,
		TxHash:    hash,
		Timestamp: testingpkg.Date(2024, 1, day),
		From:      e.wallet.Address,
		Value:     "1000000000000000000",
		Decimals:  transactions.NativeDecimals,
		Status:    true,
		Type:      txType,
	}
	_, err := e.repo.Create(tx)
	require.NoError(t, err)
	return tx
}

func (e *env) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestHandleList(t *testing.T) {
	e := setup(t)
	e.seed(t, "0x1", 1, transactions.TypeReceive)
	e.seed(t, "0x2", 2, transactions.TypeSend)
	e.seed(t, "0x3", 3, transactions.TypeSend)

	w := e.do("GET", "/wallets/"+e.wallet.ID+"/transactions?type=send&limit=1&page=2", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var response struct {
		Transactions []transactions.Transaction `json:"transactions"`
		Pagination   map[string]int             `json:"pagination"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	require.Len(t, response.Transactions, 1)
	assert.Equal(t, "0x2", response.Transactions[0].TxHash)
	assert.Equal(t, 2, response.Pagination["total"])
	assert.Equal(t, 2, response.Pagination["pages"])

	w = e.do("GET", "/wallets/"+e.wallet.ID+"/transactions?startDate=2024-01-02&endDate=2024-01-02", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, 1, response.Pagination["total"])

	w = e.do("GET", "/wallets/"+e.wallet.ID+"/transactions?startDate=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do("GET", "/wallets/"+e.wallet.ID+"/transactions?type=mint", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do("GET", "/wallets/unknown/transactions", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleSync(t *testing.T) {
	e := setup(t)
	e.syncer.On("SyncWallet", e.wallet.ID).Return(transactions.SyncResult{Added: 3, Existing: 1}, nil)
	e.syncer.On("SyncWallet", "gone").Return(transactions.SyncResult{}, wallets.ErrNotFound)
	e.syncer.On("SyncWallet", "flaky").Return(transactions.SyncResult{}, errors.New("subgraph down"))

	w := e.do("POST", "/wallets/"+e.wallet.ID+"/transactions/sync", "")
	require.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, float64(3), response["added"])
	assert.Equal(t, float64(1), response["existing"])

	assert.Equal(t, http.StatusNotFound, e.do("POST", "/wallets/gone/transactions/sync", "").Code)
	assert.Equal(t, http.StatusBadGateway, e.do("POST", "/wallets/flaky/transactions/sync", "").Code)
}

func TestHandleGet(t *testing.T) {
	e := setup(t)
	tx := e.seed(t, "0x1", 1, transactions.TypeReceive)

	w := e.do("GET", "/transactions/"+strconv.FormatInt(tx.ID, 10), "")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusBadRequest, e.do("GET", "/transactions/abc", "").Code)
	assert.Equal(t, http.StatusNotFound, e.do("GET", "/transactions/999", "").Code)
}

func TestHandleUpdates(t *testing.T) {
	e := setup(t)
	tx := e.seed(t, "0x1", 1, transactions.TypeReceive)
	path := "/transactions/" + strconv.FormatInt(tx.ID, 10)

	e.invalidator.On("Invalidate", e.wallet.ID).Return()

	w := e.do("PATCH", path+"/category", `{"category":"income"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var updated transactions.Transaction
	require.NoError(t, json.NewDecoder(w.Body).Decode(&updated))
	assert.Equal(t, "income", updated.Category)

	assert.Equal(t, http.StatusBadRequest, e.do("PATCH", path+"/category", `{"category":"gift"}`).Code)

	w = e.do("PATCH", path+"/notes", `{"notes":"salary"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do("PATCH", path+"/valuation", `{"fiatValue":"2500.10"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&updated))
	require.NotNil(t, updated.FiatValue)
	assert.Equal(t, "2500.1", updated.FiatValue.String())

	assert.Equal(t, http.StatusBadRequest, e.do("PATCH", path+"/valuation", `{"fiatValue":"lots"}`).Code)
	assert.Equal(t, http.StatusBadRequest, e.do("PATCH", path+"/valuation", `{"fiatValue":"-1"}`).Code)

	w = e.do("PATCH", path+"/valuation", `{"fiatValue":null}`)
	require.Equal(t, http.StatusOK, w.Code)

	// category and both successful valuation edits invalidate; notes do not
	e.invalidator.AssertNumberOfCalls(t, "Invalidate", 3)
}
