package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// ErrorResponse стандартный формат ответа об ошибке для всех API endpoints
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// respondWithJSON отправляет JSON ответ
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

// respondWithError отправляет JSON ошибку
func respondWithError(w http.ResponseWriter, code int, message string, details string) {
	respondWithJSON(w, code, ErrorResponse{
		Error:   message,
		Details: details,
	})
}

// parseLimitParam извлекает limit из query string.
// Невалидные и неположительные значения игнорируются: сервисный слой
// подставит значение по умолчанию и обрежет до максимума.
func parseLimitParam(r *http.Request) int {
	limitParam := r.URL.Query().Get("limit")
	if limitParam == "" {
		return 0
	}
	parsed, err := strconv.Atoi(limitParam)
	if err != nil || parsed <= 0 {
		return 0
	}
	return parsed
}
