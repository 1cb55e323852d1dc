package websocket

import (
	"time"

	"sentinel/internal/models"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypePositionUpdate - обновление наблюдаемой позиции
	// Отправляется после каждого тика монитора для открытых позиций
	MessageTypePositionUpdate MessageType = "positionUpdate"

	// MessageTypeNotification - новое уведомление
	// Отправляется при событиях: пробитие порога, закрытие, сверка, ошибки
	MessageTypeNotification MessageType = "notification"

	// MessageTypeCloseUpdate - защитное закрытие позиции
	// Отправляется после записи закрывающей сделки
	MessageTypeCloseUpdate MessageType = "closeUpdate"

	// MessageTypeStatsUpdate - обновление статистики закрытий
	// Отправляется после каждого защитного закрытия
	MessageTypeStatsUpdate MessageType = "statsUpdate"

	// MessageTypeMonitorStatus - состояние цикла монитора
	// Отправляется периодически для индикатора здоровья на dashboard
	MessageTypeMonitorStatus MessageType = "monitorStatus"
)

// BaseMessage - базовая структура для всех WebSocket сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// PositionUpdateMessage - сообщение об обновлении позиции
//
// Содержит актуальное состояние позиции под наблюдением:
// цены, плечо и PnL с учётом плеча, по которому монитор
// сравнивает позицию с порогом стоп-лосса.
type PositionUpdateMessage struct {
	BaseMessage
	Data *PositionUpdateData `json:"data"`
}

// PositionUpdateData - данные обновления позиции
type PositionUpdateData struct {
	// Контракт, например BTC_USDT
	Symbol string `json:"symbol"`

	// Направление позиции (long, short)
	Side string `json:"side"`

	// Размер в контрактах
	Quantity float64 `json:"quantity"`

	// Средняя цена входа
	EntryPrice float64 `json:"entry_price"`

	// Текущая mark цена
	MarkPrice float64 `json:"mark_price"`

	Leverage float64 `json:"leverage"`

	// PnL в процентах с учётом плеча
	PnlPercent float64 `json:"pnl_percent"`

	// Время последнего обновления зеркала
	UpdatedAt time.Time `json:"updated_at"`
}

// NotificationMessage - сообщение о новом уведомлении
type NotificationMessage struct {
	BaseMessage
	Data *NotificationData `json:"data"`
}

// NotificationData - данные уведомления
type NotificationData struct {
	// ID уведомления в БД (0 если ещё не сохранено)
	ID int `json:"id"`

	// Тип уведомления (SL, CLOSE, REPAIR, ERROR, MONITOR)
	Type string `json:"type"`

	// Уровень важности (info, warn, error)
	Severity string `json:"severity"`

	// Контракт (если применимо)
	Symbol string `json:"symbol,omitempty"`

	// Текст сообщения
	Message string `json:"message"`

	// Дополнительные метаданные (цены, PnL, порог и т.д.)
	Meta map[string]interface{} `json:"meta,omitempty"`

	// Время создания уведомления
	Timestamp time.Time `json:"timestamp"`
}

// CloseUpdateMessage - сообщение о защитном закрытии позиции
type CloseUpdateMessage struct {
	BaseMessage
	Data *CloseUpdateData `json:"data"`
}

// CloseUpdateData - данные закрытия
type CloseUpdateData struct {
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
	Pnl      float64 `json:"pnl"`
	Fee      float64 `json:"fee"`

	// filled - цена подтверждена биржей, pending - цена из fallback
	Status string `json:"status"`

	OrderID string `json:"order_id,omitempty"`
}

// StatsUpdateMessage - сообщение об обновлении статистики
type StatsUpdateMessage struct {
	BaseMessage
	Data *models.TradeStats `json:"data"`
}

// MonitorStatusMessage - сообщение о состоянии монитора
type MonitorStatusMessage struct {
	BaseMessage
	Data *models.MonitorStatus `json:"data"`
}

// ============ Фабричные функции для создания сообщений ============

// NewPositionUpdateMessage создает сообщение обновления позиции
//
// pnlPercent считает вызывающая сторона: формула с плечом живёт
// в мониторе, а не в транспортном слое.
func NewPositionUpdateMessage(pos *models.Position, pnlPercent float64) *PositionUpdateMessage {
	return &PositionUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypePositionUpdate,
			Timestamp: time.Now(),
		},
		Data: &PositionUpdateData{
			Symbol:     pos.Symbol,
			Side:       pos.Side,
			Quantity:   pos.Quantity,
			EntryPrice: pos.EntryPrice,
			MarkPrice:  pos.MarkPrice,
			Leverage:   pos.Leverage,
			PnlPercent: pnlPercent,
			UpdatedAt:  pos.UpdatedAt,
		},
	}
}

// NewNotificationMessage создает сообщение уведомления
func NewNotificationMessage(notif *models.Notification) *NotificationMessage {
	return &NotificationMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeNotification,
			Timestamp: time.Now(),
		},
		Data: &NotificationData{
			ID:        notif.ID,
			Type:      notif.Type,
			Severity:  notif.Severity,
			Symbol:    notif.Symbol,
			Message:   notif.Message,
			Meta:      notif.Meta,
			Timestamp: notif.CreatedAt,
		},
	}
}

// NewCloseUpdateMessage создает сообщение о закрытии позиции
func NewCloseUpdateMessage(trade *models.TradeRecord) *CloseUpdateMessage {
	return &CloseUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeCloseUpdate,
			Timestamp: time.Now(),
		},
		Data: &CloseUpdateData{
			Symbol:   trade.Symbol,
			Side:     trade.Side,
			Price:    trade.Price,
			Quantity: trade.Quantity,
			Pnl:      trade.Pnl,
			Fee:      trade.Fee,
			Status:   trade.Status,
			OrderID:  trade.OrderID,
		},
	}
}

// NewStatsUpdateMessage создает сообщение обновления статистики
func NewStatsUpdateMessage(stats *models.TradeStats) *StatsUpdateMessage {
	return &StatsUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeStatsUpdate,
			Timestamp: time.Now(),
		},
		Data: stats,
	}
}

// NewMonitorStatusMessage создает сообщение о состоянии монитора
func NewMonitorStatusMessage(status *models.MonitorStatus) *MonitorStatusMessage {
	return &MonitorStatusMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeMonitorStatus,
			Timestamp: time.Now(),
		},
		Data: status,
	}
}
