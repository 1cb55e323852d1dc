package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"sentinel/internal/models"
	"sentinel/internal/monitor"
	"sentinel/pkg/utils"
)

// MonitorStatusSource отдает состояние цикла мониторинга
type MonitorStatusSource interface {
	Status() models.MonitorStatus
}

// RepairRunner запускает сверку закрывающей записи по символу
type RepairRunner interface {
	Repair(ctx context.Context, symbol string) string
}

// Проверяем соответствие реальных типов
var _ MonitorStatusSource = (*monitor.Monitor)(nil)
var _ RepairRunner = (*monitor.Repairer)(nil)

// MonitorHandler обрабатывает HTTP запросы состояния монитора
//
// Endpoints:
// - GET /api/v1/monitor/status - состояние цикла мониторинга
// - POST /api/v1/monitor/reconcile/{symbol} - ручной запуск сверки
type MonitorHandler struct {
	monitor  MonitorStatusSource
	repairer RepairRunner
}

// NewMonitorHandler создает новый MonitorHandler с внедрением зависимостей
func NewMonitorHandler(statusSource MonitorStatusSource, repairer RepairRunner) *MonitorHandler {
	return &MonitorHandler{
		monitor:  statusSource,
		repairer: repairer,
	}
}

// GetStatus возвращает состояние цикла мониторинга
//
// GET /api/v1/monitor/status
//
// Response 200 OK:
//
//	{
//	  "running": true,
//	  "mode": "dynamic",
//	  "tick_count": 1240,
//	  "skipped_ticks": 3,
//	  "last_tick_at": "2026-08-21T12:00:15Z",
//	  "last_tick_took": "218ms",
//	  "records": [
//	    {"symbol": "BTC_USDT", "check_count": 57, ...}
//	  ]
//	}
func (h *MonitorHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status := h.monitor.Status()

	// Пустой список сериализуется как [], а не null
	if status.Records == nil {
		status.Records = []models.MonitorRecord{}
	}

	respondWithJSON(w, http.StatusOK, status)
}

// ReconcileResponse представляет результат ручной сверки
type ReconcileResponse struct {
	Symbol  string `json:"symbol"`
	Outcome string `json:"outcome"` // corrected, clean, cannot_fix, no_record, error
}

// Reconcile запускает сверку последней закрывающей записи по символу
//
// POST /api/v1/monitor/reconcile/{symbol}
//
// Сверка идемпотентна: повторный запуск по исправленной записи
// возвращает clean. Исход error означает, что биржа не ответила
// и запись осталась как была.
//
// HTTP коды:
// - 200 OK: сверка выполнена, исход в теле ответа
// - 400 Bad Request: невалидный формат символа
// - 500 Internal Server Error: сверка не смогла опросить биржу
func (h *MonitorHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	symbol := strings.ToUpper(strings.TrimSpace(vars["symbol"]))

	if err := utils.ValidateContract(symbol); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid symbol", err.Error())
		return
	}

	outcome := h.repairer.Repair(r.Context(), symbol)

	code := http.StatusOK
	if outcome == monitor.RepairError {
		code = http.StatusInternalServerError
	}

	respondWithJSON(w, code, ReconcileResponse{
		Symbol:  symbol,
		Outcome: outcome,
	})
}
