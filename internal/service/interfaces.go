package service

import (
	"time"

	"sentinel/internal/models"
	"sentinel/internal/repository"
)

// PositionRepositoryInterface определяет интерфейс репозитория позиций
//
// Сервисный слой только читает зеркала позиций: пишет их монитор.
type PositionRepositoryInterface interface {
	GetAll() ([]*models.Position, error)
	GetBySymbol(symbol string) (*models.Position, error)
	Count() (int, error)
}

// TradeRepositoryInterface определяет интерфейс репозитория сделок
type TradeRepositoryInterface interface {
	GetRecent(limit int) ([]*models.TradeRecord, error)
	GetBySymbol(symbol string, limit int) ([]*models.TradeRecord, error)
	AggregateCloses(since time.Time) (int, float64, float64, error)
	CountPendingCloses() (int, error)
}

// DecisionRepositoryInterface определяет интерфейс репозитория решений
type DecisionRepositoryInterface interface {
	GetRecent(limit int) ([]*models.DecisionRecord, error)
	GetByID(id int) (*models.DecisionRecord, error)
}

// NotificationRepositoryInterface определяет интерфейс репозитория уведомлений
type NotificationRepositoryInterface interface {
	Create(notif *models.Notification) error
	GetRecent(limit int) ([]*models.Notification, error)
	GetByType(notificationType string, limit int) ([]*models.Notification, error)
	DeleteAll() (int64, error)
	KeepRecent(keepCount int) (int64, error)
	Count() (int, error)
}

// Проверяем, что реальные репозитории реализуют интерфейсы
var _ PositionRepositoryInterface = (*repository.PositionRepository)(nil)
var _ TradeRepositoryInterface = (*repository.TradeRepository)(nil)
var _ DecisionRepositoryInterface = (*repository.DecisionRepository)(nil)
var _ NotificationRepositoryInterface = (*repository.NotificationRepository)(nil)

// ============ Интерфейсы сервисов для Dependency Injection ============

// PositionServiceInterface определяет интерфейс сервиса позиций
type PositionServiceInterface interface {
	GetPositions() ([]*PositionView, error)
	GetPosition(symbol string) (*PositionView, error)
	GetPositionCount() (int, error)
}

// TradeServiceInterface определяет интерфейс сервиса сделок
type TradeServiceInterface interface {
	GetRecentTrades(limit int) ([]*models.TradeRecord, error)
	GetTradesBySymbol(symbol string, limit int) ([]*models.TradeRecord, error)
	GetStats() (*models.TradeStats, error)
}

// DecisionServiceInterface определяет интерфейс сервиса решений
type DecisionServiceInterface interface {
	GetRecentDecisions(limit int) ([]*models.DecisionRecord, error)
	GetDecision(id int) (*models.DecisionRecord, error)
}

// NotificationServiceInterface определяет интерфейс сервиса уведомлений
type NotificationServiceInterface interface {
	CreateNotification(notif *models.Notification) error
	GetNotifications(types []string, limit int) ([]*models.Notification, error)
	ClearNotifications() (int64, error)
	GetNotificationCount() (int, error)
}

// Проверяем, что реальные сервисы реализуют интерфейсы
var _ PositionServiceInterface = (*PositionService)(nil)
var _ TradeServiceInterface = (*TradeService)(nil)
var _ DecisionServiceInterface = (*DecisionService)(nil)
var _ NotificationServiceInterface = (*NotificationService)(nil)
