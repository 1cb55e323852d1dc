package models

import "time"

// Notification представляет уведомление о событии монитора
type Notification struct {
	ID        int                    `json:"id" db:"id"`
	Type      string                 `json:"type" db:"type"`           // SL, CLOSE, REPAIR, ERROR, MONITOR
	Severity  string                 `json:"severity" db:"severity"`   // info, warn, error
	Symbol    string                 `json:"symbol,omitempty" db:"symbol"`
	Message   string                 `json:"message" db:"message"`
	Meta      map[string]interface{} `json:"meta,omitempty" db:"meta"` // дополнительные данные (JSON в БД)
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
}

// Типы уведомлений
const (
	NotificationTypeStopLoss = "SL"      // пробит порог, запущено закрытие
	NotificationTypeClose    = "CLOSE"   // позиция закрыта
	NotificationTypeRepair   = "REPAIR"  // сверка исправила запись сделки
	NotificationTypeError    = "ERROR"   // ошибка API/ордера
	NotificationTypeMonitor  = "MONITOR" // запуск/остановка монитора
)

// Уровни важности
const (
	SeverityInfo  = "info"
	SeverityWarn  = "warn"
	SeverityError = "error"
)
