package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/stablepay/vault-indexer/internal/application/services"
	"github.com/stablepay/vault-indexer/internal/testutil"
)

func setupDepositHandlerTest() (chi.Router, *testutil.MockDepositEventRepository) {
	eventRepo := testutil.NewMockDepositEventRepository()
	logger := zap.NewNop()

	service := services.NewDepositService(eventRepo, nil, logger)
	handler := NewDepositHandler(service, logger)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, eventRepo
}

func TestDepositHandler_GetDeposits(t *testing.T) {
	router, eventRepo := setupDepositHandlerTest()

	eventRepo.AddEvent(testutil.CreateTestDepositEvent())
	eventRepo.AddEvent(testutil.CreateTestDepositEvent(
		testutil.WithEventChain("aptos"),
		testutil.WithEventTxID("9912"),
	))

	req := httptest.NewRequest(http.MethodGet, "/deposits", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var response services.DepositResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Total != 2 {
		t.Errorf("expected total 2, got %d", response.Total)
	}
}

func TestDepositHandler_GetDeposits_ChainFilter(t *testing.T) {
	router, eventRepo := setupDepositHandlerTest()

	eventRepo.AddEvent(testutil.CreateTestDepositEvent())
	eventRepo.AddEvent(testutil.CreateTestDepositEvent(
		testutil.WithEventChain("aptos"),
		testutil.WithEventTxID("9912"),
	))

	req := httptest.NewRequest(http.MethodGet, "/deposits?chain=aptos", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var response services.DepositResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Total != 1 {
		t.Errorf("expected total 1, got %d", response.Total)
	}
	if len(response.Deposits) != 1 || response.Deposits[0].ChainID != "aptos" {
		t.Errorf("expected one aptos deposit, got %+v", response.Deposits)
	}
}

func TestDepositHandler_GetDepositsByOrder(t *testing.T) {
	router, eventRepo := setupDepositHandlerTest()

	eventRepo.AddEvent(testutil.CreateTestDepositEvent())

	req := httptest.NewRequest(http.MethodGet, "/orders/"+testutil.TestOrderID(1)+"/deposits", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var response services.DepositResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Total != 1 {
		t.Errorf("expected total 1, got %d", response.Total)
	}
}

func TestDepositHandler_GetDepositsByOrder_InvalidID(t *testing.T) {
	router, _ := setupDepositHandlerTest()

	req := httptest.NewRequest(http.MethodGet, "/orders/zzz/deposits", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
}

func TestIsValidOrderID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{testutil.TestOrderID(1), true},
		{"0x" + string(make([]byte, 64)), false},
		{"8c0bdceee60a2841a04f19ecf4c0a5a4864d0d96d15f2c55e52e3dda19da647b", false},
		{"0x8c0b", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := isValidOrderID(tt.id); got != tt.valid {
			t.Errorf("isValidOrderID(%q) = %v, want %v", tt.id, got, tt.valid)
		}
	}
}
