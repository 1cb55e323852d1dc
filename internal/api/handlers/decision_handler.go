package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"sentinel/internal/models"
	"sentinel/internal/repository"
	"sentinel/internal/service"
)

// DecisionHandler обрабатывает HTTP запросы для журнала решений
//
// Endpoints:
// - GET /api/v1/decisions - последние записи аудита
// - GET /api/v1/decisions/{id} - запись по идентификатору
//
// Каждое защитное закрытие оставляет запись с контекстом рынка
// и списком выполненных действий. Журнал append-only.
type DecisionHandler struct {
	decisionService service.DecisionServiceInterface
}

// NewDecisionHandler создает новый DecisionHandler с внедрением зависимости
func NewDecisionHandler(decisionService service.DecisionServiceInterface) *DecisionHandler {
	return &DecisionHandler{
		decisionService: decisionService,
	}
}

// GetDecisionsResponse представляет ответ списка решений
type GetDecisionsResponse struct {
	Decisions []*models.DecisionRecord `json:"decisions"`
	Total     int                      `json:"total"`
}

// GetDecisions возвращает последние записи журнала решений
//
// GET /api/v1/decisions
//
// Query параметры:
// - limit (int): количество записей (по умолчанию 100, максимум 500)
//
// HTTP коды:
// - 200 OK: успешно, возвращает массив записей
// - 500 Internal Server Error: ошибка сервера
func (h *DecisionHandler) GetDecisions(w http.ResponseWriter, r *http.Request) {
	limit := parseLimitParam(r)

	decisions, err := h.decisionService.GetRecentDecisions(limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to get decisions", err.Error())
		return
	}

	if decisions == nil {
		decisions = []*models.DecisionRecord{}
	}

	respondWithJSON(w, http.StatusOK, GetDecisionsResponse{
		Decisions: decisions,
		Total:     len(decisions),
	})
}

// GetDecision возвращает запись журнала решений по ID
//
// GET /api/v1/decisions/{id}
//
// HTTP коды:
// - 200 OK: успешно, возвращает запись
// - 400 Bad Request: невалидный ID
// - 404 Not Found: запись не найдена
// - 500 Internal Server Error: ошибка сервера
func (h *DecisionHandler) GetDecision(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.Atoi(vars["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid decision id", "id must be a number")
		return
	}

	decision, err := h.decisionService.GetDecision(id)
	if err != nil {
		if errors.Is(err, repository.ErrDecisionNotFound) {
			respondWithError(w, http.StatusNotFound, "decision not found", vars["id"])
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to get decision", err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, decision)
}
