package models

import "time"

// Position представляет локальную копию открытой позиции
//
// Источник истины - биржа: строка в БД это зеркало для API и аудита,
// обновляется монитором каждый тик и удаляется при закрытии позиции.
type Position struct {
	ID         int       `json:"id" db:"id"`
	Symbol     string    `json:"symbol" db:"symbol"`           // контракт, например BTC_USDT
	Side       string    `json:"side" db:"side"`               // long, short
	Quantity   float64   `json:"quantity" db:"quantity"`       // абсолютный размер в контрактах
	EntryPrice float64   `json:"entry_price" db:"entry_price"` // средняя цена входа
	MarkPrice  float64   `json:"mark_price" db:"mark_price"`   // текущая mark цена
	Leverage   float64   `json:"leverage" db:"leverage"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Направления позиции
const (
	SideLong  = "long"  // длинная позиция (ставка на рост)
	SideShort = "short" // короткая позиция (ставка на падение)
)

// Direction возвращает знак направления позиции: +1 для long, -1 для short
func (p *Position) Direction() float64 {
	return DirectionFor(p.Side)
}

// DirectionFor возвращает знак направления для стороны позиции
func DirectionFor(side string) float64 {
	if side == SideShort {
		return -1
	}
	return 1
}
