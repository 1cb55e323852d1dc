package models

import "time"

// DecisionRecord представляет запись аудита принятого решения
//
// Append-only журнал: каждое защитное закрытие позиции оставляет
// запись с контекстом рынка и списком выполненных действий.
// Iteration = 0 для событий монитора (в отличие от решений стратегий).
type DecisionRecord struct {
	ID             int                    `json:"id" db:"id"`
	Iteration      int                    `json:"iteration" db:"iteration"`
	MarketAnalysis map[string]interface{} `json:"market_analysis" db:"market_analysis"` // JSON в БД
	DecisionText   string                 `json:"decision_text" db:"decision_text"`
	ActionsTaken   []string               `json:"actions_taken" db:"actions_taken"` // JSON в БД
	AccountValue   float64                `json:"account_value" db:"account_value"`
	PositionsCount int                    `json:"positions_count" db:"positions_count"`
	CreatedAt      time.Time              `json:"created_at" db:"created_at"`
}
