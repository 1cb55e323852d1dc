package handlers

import (
	"net/http"
	"strings"

	"sentinel/internal/service"
)

// NotificationHandler отвечает за журнал уведомлений монитора
//
// Endpoints:
// - GET /api/v1/notifications - получение списка уведомлений
// - GET /api/v1/notifications?types=sl,close - с фильтрацией по типам
// - GET /api/v1/notifications?limit=50 - с ограничением количества
// - DELETE /api/v1/notifications - очистка журнала уведомлений
//
// Назначение:
// Обрабатывает запросы на получение журнала событий монитора,
// поддерживает фильтрацию по типам событий (пробой, закрытие, сверка,
// ошибки), обеспечивает пагинацию (по умолчанию 100 событий),
// позволяет очищать историю уведомлений
type NotificationHandler struct {
	notificationService service.NotificationServiceInterface
}

// NewNotificationHandler создает новый NotificationHandler с внедрением зависимости
func NewNotificationHandler(notificationService service.NotificationServiceInterface) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
	}
}

// GetNotificationsResponse представляет ответ списка уведомлений
type GetNotificationsResponse struct {
	Notifications []NotificationDTO `json:"notifications"`
	Total         int               `json:"total"`
}

// NotificationDTO представляет уведомление в API
type NotificationDTO struct {
	ID        int                    `json:"id"`
	Timestamp string                 `json:"timestamp"`
	Type      string                 `json:"type"`
	Severity  string                 `json:"severity"`
	Symbol    string                 `json:"symbol,omitempty"`
	Message   string                 `json:"message"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
}

// GetNotifications возвращает список уведомлений с фильтрацией
//
// GET /api/v1/notifications
//
// Query параметры:
// - types (string): фильтр по типам через запятую (sl,close,repair,error,monitor)
// - limit (int): количество записей (по умолчанию 100, максимум 500)
//
// Типы уведомлений:
// - SL: пробит порог, запущено защитное закрытие
// - CLOSE: позиция закрыта
// - REPAIR: сверка исправила запись сделки
// - ERROR: ошибка API/ордера
// - MONITOR: запуск/остановка монитора
//
// Примеры запросов:
// - GET /api/v1/notifications - все уведомления (последние 100)
// - GET /api/v1/notifications?types=sl,error - только критические
// - GET /api/v1/notifications?limit=50 - последние 50
// - GET /api/v1/notifications?types=close&limit=20 - только закрытия, 20 записей
//
// HTTP коды:
// - 200 OK: успешно, возвращает массив уведомлений
// - 500 Internal Server Error: ошибка сервера
func (h *NotificationHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	// Парсинг типов: нормализацию регистра и отбрасывание неизвестных
	// значений выполняет сервисный слой
	var types []string
	if typesParam := r.URL.Query().Get("types"); typesParam != "" {
		for _, part := range strings.Split(typesParam, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				types = append(types, trimmed)
			}
		}
	}

	limit := parseLimitParam(r)

	notifications, err := h.notificationService.GetNotifications(types, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to get notifications", err.Error())
		return
	}

	// Преобразуем в DTO
	dtos := make([]NotificationDTO, 0, len(notifications))
	for _, n := range notifications {
		dtos = append(dtos, NotificationDTO{
			ID:        n.ID,
			Timestamp: n.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			Type:      n.Type,
			Severity:  n.Severity,
			Symbol:    n.Symbol,
			Message:   n.Message,
			Meta:      n.Meta,
		})
	}

	respondWithJSON(w, http.StatusOK, GetNotificationsResponse{
		Notifications: dtos,
		Total:         len(dtos),
	})
}

// ClearNotificationsResponse представляет ответ очистки уведомлений
type ClearNotificationsResponse struct {
	Message string `json:"message"`
	Deleted int64  `json:"deleted"`
}

// ClearNotifications очищает журнал уведомлений
//
// DELETE /api/v1/notifications
//
// Удаляет все уведомления из базы данных.
// Это действие необратимо.
//
// HTTP коды:
// - 200 OK: журнал успешно очищен
// - 500 Internal Server Error: ошибка при очистке
func (h *NotificationHandler) ClearNotifications(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.notificationService.ClearNotifications()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to clear notifications", err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, ClearNotificationsResponse{
		Message: "notifications cleared successfully",
		Deleted: deleted,
	})
}
