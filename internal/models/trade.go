package models

import "time"

// TradeRecord представляет запись о сделке
//
// Записи append-only: открытие и закрытие позиции это две отдельные
// строки, связанные символом. Закрывающая запись может быть исправлена
// сверкой (repair) если цена/PnL/комиссия разошлись с пересчётом.
type TradeRecord struct {
	ID        int       `json:"id" db:"id"`
	OrderID   string    `json:"order_id" db:"order_id"`
	Symbol    string    `json:"symbol" db:"symbol"`
	Side      string    `json:"side" db:"side"`         // long, short (сторона позиции)
	Type      string    `json:"type" db:"type"`         // open, close
	Price     float64   `json:"price" db:"price"`       // цена входа или выхода
	Quantity  float64   `json:"quantity" db:"quantity"` // размер в контрактах
	Leverage  float64   `json:"leverage" db:"leverage"`
	Pnl       float64   `json:"pnl" db:"pnl"` // реализованный PnL (0 для open)
	Fee       float64   `json:"fee" db:"fee"` // комиссия в USDT
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Типы записей
const (
	TradeTypeOpen  = "open"  // открытие позиции
	TradeTypeClose = "close" // закрытие позиции
)

// Статусы записей
const (
	TradeStatusFilled  = "filled"  // исполнение подтверждено биржей
	TradeStatusPending = "pending" // исполнение не подтверждено, цена из fallback
)
