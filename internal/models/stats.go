package models

// TradeStats представляет агрегированную статистику защитных закрытий
//
// Считается по закрывающим записям сделок: количество и PnL за день,
// неделю, месяц и за всё время. PendingCloses - закрытия, у которых
// цена исполнения ещё не подтверждена биржей (кандидаты на сверку).
type TradeStats struct {
	TotalTrades int     `json:"total_trades"`
	TotalPnl    float64 `json:"total_pnl"`
	TotalFees   float64 `json:"total_fees"`

	TodayTrades int     `json:"today_trades"`
	TodayPnl    float64 `json:"today_pnl"`

	WeekTrades int     `json:"week_trades"`
	WeekPnl    float64 `json:"week_pnl"`

	MonthTrades int     `json:"month_trades"`
	MonthPnl    float64 `json:"month_pnl"`

	PendingCloses int `json:"pending_closes"`
}
