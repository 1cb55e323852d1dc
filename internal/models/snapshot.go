package models

import "time"

// TimeframeSnapshot - индикаторный срез одного таймфрейма
//
// EMA20 = 0 означает, что индикатор не рассчитан (мало свечей);
// потребители обязаны проверять перед использованием.
type TimeframeSnapshot struct {
	CurrentPrice     float64 `json:"current_price"`
	EMA20            float64 `json:"ema20"`
	ATR14            float64 `json:"atr14"`
	ImpulseDirection int     `json:"impulse_direction"` // -1, 0, +1
}

// MarketSnapshot - рыночный срез по символу для динамического режима
//
// Собирается раз за тик на каждый удерживаемый символ. Отсутствие
// таймфрейма (nil) переводит расчет порога в статический режим.
type MarketSnapshot struct {
	Symbol     string             `json:"symbol"`
	OneMinute  *TimeframeSnapshot `json:"one_minute,omitempty"`
	FiveMinute *TimeframeSnapshot `json:"five_minute,omitempty"`
	FetchedAt  time.Time          `json:"fetched_at"`
}
