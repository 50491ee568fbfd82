package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aristath/cointax/internal/modules/wallets"
	testingpkg "github.com/aristath/cointax/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const address = "0x1111111111111111111111111111111111111111"

type mockInvalidator struct {
	mock.Mock
}

func (m *mockInvalidator) Invalidate(walletID string) {
	m.Called(walletID)
}

func setupRouter(t *testing.T) (chi.Router, *wallets.Repository, *mockInvalidator) {
	db := testingpkg.NewTestDB(t, "ledger")
	repo := wallets.NewRepository(db.Conn(), zerolog.Nop())

	invalidator := &mockInvalidator{}
	handler := NewHandler(repo, zerolog.Nop())
	handler.SetReportInvalidator(invalidator)

	router := chi.NewRouter()
	handler.RegisterRoutes(router)
	return router, repo, invalidator
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleCreate(t *testing.T) {
	router, _, _ := setupRouter(t)

	w := do(router, "POST", "/wallets", `{"address":"`+address+`","label":"Main"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var wallet wallets.Wallet
	require.NoError(t, json.NewDecoder(w.Body).Decode(&wallet))
	assert.Equal(t, address, wallet.Address)
	assert.Equal(t, wallets.DefaultNetwork, wallet.Network)

	w = do(router, "POST", "/wallets", `{"address":"`+address+`","label":"Again"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandleCreate_BadRequests(t *testing.T) {
	router, _, _ := setupRouter(t)

	testCases := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"missing label", `{"address":"` + address + `"}`},
		{"bad address", `{"address":"0x12","label":"x"}`},
		{"bad network", `{"address":"` + address + `","label":"x","network":"bitcoin"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(router, "POST", "/wallets", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var response map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.NotEmpty(t, response["error"])
		})
	}
}

func TestHandleGetUpdateList(t *testing.T) {
	router, repo, _ := setupRouter(t)

	wallet, err := repo.Create(address, "Main", "")
	require.NoError(t, err)

	w := do(router, "GET", "/wallets/"+wallet.ID, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(router, "PUT", "/wallets/"+wallet.ID, `{"label":"Cold storage"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var updated wallets.Wallet
	require.NoError(t, json.NewDecoder(w.Body).Decode(&updated))
	assert.Equal(t, "Cold storage", updated.Label)

	w = do(router, "GET", "/wallets", "")
	require.Equal(t, http.StatusOK, w.Code)
	var response struct {
		Wallets []wallets.Wallet `json:"wallets"`
		Count   int              `json:"count"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, 1, response.Count)
	assert.Equal(t, "Cold storage", response.Wallets[0].Label)

	w = do(router, "GET", "/wallets/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleDelete_InvalidatesReports(t *testing.T) {
	router, repo, invalidator := setupRouter(t)

	wallet, err := repo.Create(address, "Main", "")
	require.NoError(t, err)
	invalidator.On("Invalidate", wallet.ID).Return().Once()

	w := do(router, "DELETE", "/wallets/"+wallet.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	invalidator.AssertExpectations(t)

	w = do(router, "DELETE", "/wallets/"+wallet.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	invalidator.AssertNumberOfCalls(t, "Invalidate", 1)
}
