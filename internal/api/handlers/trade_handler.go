package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"sentinel/internal/models"
	"sentinel/internal/service"
	"sentinel/pkg/utils"
)

// TradeHandler обрабатывает HTTP запросы для журнала сделок и статистики
//
// Endpoints:
// - GET /api/v1/trades - последние записи журнала сделок
// - GET /api/v1/trades/{symbol} - сделки по символу
// - GET /api/v1/stats - агрегированная статистика закрытий
//
// Журнал append-only: открытие и закрытие позиции это две отдельные
// записи. Закрывающие записи со статусом pending ожидают сверки.
type TradeHandler struct {
	tradeService service.TradeServiceInterface
}

// NewTradeHandler создает новый TradeHandler с внедрением зависимости
func NewTradeHandler(tradeService service.TradeServiceInterface) *TradeHandler {
	return &TradeHandler{
		tradeService: tradeService,
	}
}

// GetTradesResponse представляет ответ списка сделок
type GetTradesResponse struct {
	Trades []*models.TradeRecord `json:"trades"`
	Total  int                   `json:"total"`
}

// GetTrades возвращает последние записи журнала сделок
//
// GET /api/v1/trades
//
// Query параметры:
// - limit (int): количество записей (по умолчанию 100, максимум 500)
//
// HTTP коды:
// - 200 OK: успешно, возвращает массив сделок
// - 500 Internal Server Error: ошибка сервера
func (h *TradeHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	limit := parseLimitParam(r)

	trades, err := h.tradeService.GetRecentTrades(limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to get trades", err.Error())
		return
	}

	if trades == nil {
		trades = []*models.TradeRecord{}
	}

	respondWithJSON(w, http.StatusOK, GetTradesResponse{
		Trades: trades,
		Total:  len(trades),
	})
}

// GetTradesBySymbol возвращает записи журнала по символу контракта
//
// GET /api/v1/trades/{symbol}
//
// Query параметры:
// - limit (int): количество записей (по умолчанию 100, максимум 500)
//
// HTTP коды:
// - 200 OK: успешно, возвращает массив сделок (возможно пустой)
// - 400 Bad Request: невалидный формат символа
// - 500 Internal Server Error: ошибка сервера
func (h *TradeHandler) GetTradesBySymbol(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	symbol := strings.ToUpper(strings.TrimSpace(vars["symbol"]))

	if err := utils.ValidateContract(symbol); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid symbol", err.Error())
		return
	}

	limit := parseLimitParam(r)

	trades, err := h.tradeService.GetTradesBySymbol(symbol, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to get trades", err.Error())
		return
	}

	if trades == nil {
		trades = []*models.TradeRecord{}
	}

	respondWithJSON(w, http.StatusOK, GetTradesResponse{
		Trades: trades,
		Total:  len(trades),
	})
}

// GetStats возвращает агрегированную статистику закрытий
//
// GET /api/v1/stats
//
// Response 200 OK:
//
//	{
//	  "total_trades": 42,
//	  "total_pnl": -310.50,
//	  "total_fees": 96.10,
//	  "today_trades": 2,
//	  "today_pnl": -55.20,
//	  "week_trades": 9,
//	  "week_pnl": -120.75,
//	  "month_trades": 30,
//	  "month_pnl": -260.30,
//	  "pending_closes": 1
//	}
//
// HTTP коды:
// - 200 OK: успешно
// - 500 Internal Server Error: ошибка сервера
func (h *TradeHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.tradeService.GetStats()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to get stats", err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, stats)
}
