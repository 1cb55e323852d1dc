package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"sentinel/internal/models"
)

// WebSocketBroadcaster - интерфейс для отправки WebSocket сообщений
//
// Позволяет избежать циклических зависимостей между пакетами
// и упрощает тестирование (можно подставить mock)
type WebSocketBroadcaster interface {
	BroadcastNotification(notif *models.Notification)
}

// Журнал держится компактным: события старше последних N удаляются
const (
	notificationKeepCount    = 500
	notificationTrimInterval = time.Hour
)

// NotificationService предоставляет бизнес-логику для управления уведомлениями.
//
// Отвечает за:
// - Сохранение событий монитора в журнал
// - Получение списка уведомлений с фильтрацией по типу
// - Очистку журнала уведомлений
// - Broadcast уведомлений через WebSocket
//
// Типы уведомлений:
// - SL: пробит порог стоп-лосса, запущено закрытие
// - CLOSE: позиция закрыта
// - REPAIR: сверка исправила запись сделки
// - ERROR: ошибка API/ордера
// - MONITOR: запуск/остановка монитора
type NotificationService struct {
	notificationRepo NotificationRepositoryInterface
	wsHub            WebSocketBroadcaster
	logger           *zap.Logger
}

// NewNotificationService создает новый экземпляр NotificationService.
func NewNotificationService(notificationRepo NotificationRepositoryInterface, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		logger:           logger,
	}
}

// SetWebSocketHub устанавливает WebSocket hub для broadcast уведомлений.
//
// Вызывается после инициализации Hub в main.go:
//
//	notifService := service.NewNotificationService(notifRepo, logger)
//	notifService.SetWebSocketHub(wsHub)
func (s *NotificationService) SetWebSocketHub(hub WebSocketBroadcaster) {
	s.wsHub = hub
}

// Run потребляет канал уведомлений монитора до отмены контекста.
//
// Каждое событие сохраняется в БД и рассылается подключенным
// dashboard-клиентам. Раз в час журнал обрезается до последних
// notificationKeepCount записей.
//
// Запускается в отдельной горутине: go notifService.Run(ctx, ch)
func (s *NotificationService) Run(ctx context.Context, events <-chan *models.Notification) {
	trim := time.NewTicker(notificationTrimInterval)
	defer trim.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case notif, ok := <-events:
			if !ok {
				return
			}
			if err := s.CreateNotification(notif); err != nil {
				s.logger.Error("failed to persist notification",
					zap.String("type", notif.Type),
					zap.Error(err))
			}

		case <-trim.C:
			if deleted, err := s.notificationRepo.KeepRecent(notificationKeepCount); err != nil {
				s.logger.Error("failed to trim notification journal", zap.Error(err))
			} else if deleted > 0 {
				s.logger.Debug("trimmed notification journal", zap.Int64("deleted", deleted))
			}
		}
	}
}

// CreateNotification создает новое уведомление.
//
// После успешного сохранения отправляет broadcast через WebSocket
// (если hub настроен). Ошибка БД не блокирует broadcast: dashboard
// важнее журнала для оперативной реакции.
func (s *NotificationService) CreateNotification(notif *models.Notification) error {
	err := s.notificationRepo.Create(notif)

	// Broadcast через WebSocket hub для real-time обновления UI
	if s.wsHub != nil {
		s.wsHub.BroadcastNotification(notif)
	}

	return err
}

// GetNotifications возвращает список уведомлений с фильтрацией.
//
// Параметры:
// - types: список типов для фильтрации (например: ["SL", "CLOSE"])
//   если пустой - возвращаются все типы
// - limit: максимальное количество записей (по умолчанию 100, максимум 500)
//
// Возвращает уведомления отсортированные по времени (новые сверху).
func (s *NotificationService) GetNotifications(types []string, limit int) ([]*models.Notification, error) {
	limit = normalizeLimit(limit)

	// Нормализуем типы (приводим к верхнему регистру)
	normalizedTypes := make([]string, 0, len(types))
	for _, t := range types {
		normalized := strings.ToUpper(strings.TrimSpace(t))
		if normalized != "" && isValidNotificationType(normalized) {
			normalizedTypes = append(normalizedTypes, normalized)
		}
	}

	// Репозиторий фильтрует по одному типу; несколько типов
	// объединяются на сервисном слое
	if len(normalizedTypes) > 0 {
		merged := make([]*models.Notification, 0, limit)
		for _, notifType := range normalizedTypes {
			batch, err := s.notificationRepo.GetByType(notifType, limit)
			if err != nil {
				return nil, err
			}
			merged = append(merged, batch...)
		}
		sort.Slice(merged, func(i, j int) bool {
			return merged[i].CreatedAt.After(merged[j].CreatedAt)
		})
		if len(merged) > limit {
			merged = merged[:limit]
		}
		return merged, nil
	}

	return s.notificationRepo.GetRecent(limit)
}

// ClearNotifications очищает журнал уведомлений.
func (s *NotificationService) ClearNotifications() (int64, error) {
	return s.notificationRepo.DeleteAll()
}

// GetNotificationCount возвращает общее количество уведомлений.
func (s *NotificationService) GetNotificationCount() (int, error) {
	return s.notificationRepo.Count()
}

// isValidNotificationType проверяет, является ли тип допустимым.
func isValidNotificationType(notifType string) bool {
	switch notifType {
	case models.NotificationTypeStopLoss,
		models.NotificationTypeClose,
		models.NotificationTypeRepair,
		models.NotificationTypeError,
		models.NotificationTypeMonitor:
		return true
	default:
		return false
	}
}
