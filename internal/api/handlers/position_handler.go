package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"sentinel/internal/repository"
	"sentinel/internal/service"
	"sentinel/pkg/utils"
)

// PositionHandler обрабатывает HTTP запросы для открытых позиций
//
// Endpoints:
// - GET /api/v1/positions - список отслеживаемых позиций с текущим PnL%
// - GET /api/v1/positions/{symbol} - позиция по символу
//
// Назначение:
// Отдает зеркала позиций из БД: источник истины - биржа, строки
// обновляются монитором каждый тик. PnL% вычисляется на чтении
// по той же формуле, что использует монитор для порогов.
type PositionHandler struct {
	positionService service.PositionServiceInterface
}

// NewPositionHandler создает новый PositionHandler с внедрением зависимости
func NewPositionHandler(positionService service.PositionServiceInterface) *PositionHandler {
	return &PositionHandler{
		positionService: positionService,
	}
}

// GetPositionsResponse представляет ответ списка позиций
type GetPositionsResponse struct {
	Positions []*service.PositionView `json:"positions"`
	Total     int                     `json:"total"`
}

// GetPositions возвращает список отслеживаемых позиций
//
// GET /api/v1/positions
//
// HTTP коды:
// - 200 OK: успешно, возвращает массив позиций
// - 500 Internal Server Error: ошибка сервера
func (h *PositionHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.positionService.GetPositions()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to get positions", err.Error())
		return
	}

	// Пустой список сериализуется как [], а не null
	if positions == nil {
		positions = []*service.PositionView{}
	}

	respondWithJSON(w, http.StatusOK, GetPositionsResponse{
		Positions: positions,
		Total:     len(positions),
	})
}

// GetPosition возвращает позицию по символу контракта
//
// GET /api/v1/positions/{symbol}
//
// HTTP коды:
// - 200 OK: успешно, возвращает позицию
// - 400 Bad Request: невалидный формат символа
// - 404 Not Found: позиция не отслеживается
// - 500 Internal Server Error: ошибка сервера
func (h *PositionHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	symbol := strings.ToUpper(strings.TrimSpace(vars["symbol"]))

	if err := utils.ValidateContract(symbol); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid symbol", err.Error())
		return
	}

	position, err := h.positionService.GetPosition(symbol)
	if err != nil {
		if errors.Is(err, repository.ErrPositionNotFound) {
			respondWithError(w, http.StatusNotFound, "position not found", symbol)
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to get position", err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, position)
}
