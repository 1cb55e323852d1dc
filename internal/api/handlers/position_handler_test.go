package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"sentinel/internal/models"
)

// ============ PositionHandler Tests ============

func TestPositionHandler_GetPositions(t *testing.T) {
	t.Run("returns empty list when no positions", func(t *testing.T) {
		mockSvc := NewMockPositionService()
		handler := NewPositionHandler(mockSvc)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/positions", nil)
		w := httptest.NewRecorder()

		handler.GetPositions(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		var response GetPositionsResponse
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}

		if response.Total != 0 {
			t.Errorf("expected total 0, got %d", response.Total)
		}
		if response.Positions == nil {
			t.Error("expected empty array, got null")
		}
	})

	t.Run("returns tracked positions with pnl percent", func(t *testing.T) {
		mockSvc := NewMockPositionService()
		handler := NewPositionHandler(mockSvc)

		mockSvc.AddPosition("BTC_USDT", models.SideLong, -4.5)
		mockSvc.AddPosition("ETH_USDT", models.SideShort, 12.0)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/positions", nil)
		w := httptest.NewRecorder()

		handler.GetPositions(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		var response GetPositionsResponse
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}

		if response.Total != 2 {
			t.Errorf("expected total 2, got %d", response.Total)
		}
		for _, p := range response.Positions {
			if p.Symbol == "BTC_USDT" && p.PnlPercent != -4.5 {
				t.Errorf("expected pnl -4.5 for BTC_USDT, got %v", p.PnlPercent)
			}
		}
	})

	t.Run("returns 500 on service error", func(t *testing.T) {
		mockSvc := NewMockPositionService()
		handler := NewPositionHandler(mockSvc)

		mockSvc.SetError(ErrMockDatabase)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/positions", nil)
		w := httptest.NewRecorder()

		handler.GetPositions(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
	})
}

func TestPositionHandler_GetPosition(t *testing.T) {
	t.Run("returns position by symbol", func(t *testing.T) {
		mockSvc := NewMockPositionService()
		handler := NewPositionHandler(mockSvc)

		mockSvc.AddPosition("BTC_USDT", models.SideLong, -6.0)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/positions/BTC_USDT", nil)
		req = mux.SetURLVars(req, map[string]string{"symbol": "BTC_USDT"})
		w := httptest.NewRecorder()

		handler.GetPosition(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		var response struct {
			Symbol     string  `json:"symbol"`
			PnlPercent float64 `json:"pnl_percent"`
		}
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}

		if response.Symbol != "BTC_USDT" {
			t.Errorf("expected symbol BTC_USDT, got %s", response.Symbol)
		}
		if response.PnlPercent != -6.0 {
			t.Errorf("expected pnl -6.0, got %v", response.PnlPercent)
		}
	})

	t.Run("normalizes symbol case", func(t *testing.T) {
		mockSvc := NewMockPositionService()
		handler := NewPositionHandler(mockSvc)

		mockSvc.AddPosition("BTC_USDT", models.SideLong, 1.0)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/positions/btc_usdt", nil)
		req = mux.SetURLVars(req, map[string]string{"symbol": "btc_usdt"})
		w := httptest.NewRecorder()

		handler.GetPosition(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}
	})

	t.Run("returns 400 for invalid symbol", func(t *testing.T) {
		mockSvc := NewMockPositionService()
		handler := NewPositionHandler(mockSvc)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/positions/not-a-contract", nil)
		req = mux.SetURLVars(req, map[string]string{"symbol": "not-a-contract"})
		w := httptest.NewRecorder()

		handler.GetPosition(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
	})

	t.Run("returns 404 for unknown symbol", func(t *testing.T) {
		mockSvc := NewMockPositionService()
		handler := NewPositionHandler(mockSvc)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/positions/XRP_USDT", nil)
		req = mux.SetURLVars(req, map[string]string{"symbol": "XRP_USDT"})
		w := httptest.NewRecorder()

		handler.GetPosition(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
		}
	})

	t.Run("returns 500 on service error", func(t *testing.T) {
		mockSvc := NewMockPositionService()
		handler := NewPositionHandler(mockSvc)

		mockSvc.SetError(ErrMockDatabase)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/positions/BTC_USDT", nil)
		req = mux.SetURLVars(req, map[string]string{"symbol": "BTC_USDT"})
		w := httptest.NewRecorder()

		handler.GetPosition(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
	})
}
