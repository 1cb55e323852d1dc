package service

import (
	"time"

	"sentinel/internal/models"
	"sentinel/pkg/utils"
)

// TradeService предоставляет чтение журнала сделок и статистику.
//
// Отвечает за:
// - Историю защитных закрытий и наблюдаемых открытий
// - Агрегированную статистику по окнам день/неделя/месяц
// - Счетчик неподтвержденных закрытий (очередь сверки)
type TradeService struct {
	tradeRepo TradeRepositoryInterface
}

// NewTradeService создает новый экземпляр TradeService.
func NewTradeService(tradeRepo TradeRepositoryInterface) *TradeService {
	return &TradeService{
		tradeRepo: tradeRepo,
	}
}

// GetRecentTrades возвращает последние сделки.
//
// limit по умолчанию 100, максимум 500.
func (s *TradeService) GetRecentTrades(limit int) ([]*models.TradeRecord, error) {
	return s.tradeRepo.GetRecent(normalizeLimit(limit))
}

// GetTradesBySymbol возвращает последние сделки по символу.
func (s *TradeService) GetTradesBySymbol(symbol string, limit int) ([]*models.TradeRecord, error) {
	return s.tradeRepo.GetBySymbol(symbol, normalizeLimit(limit))
}

// GetStats возвращает агрегированную статистику закрытий.
//
// Окна считаются от начала дня, календарной недели (с понедельника)
// и месяца, итог - за всю историю журнала.
func (s *TradeService) GetStats() (*models.TradeStats, error) {
	stats := &models.TradeStats{}

	totalCount, totalPnl, totalFees, err := s.tradeRepo.AggregateCloses(time.Time{})
	if err != nil {
		return nil, err
	}
	stats.TotalTrades = totalCount
	stats.TotalPnl = totalPnl
	stats.TotalFees = totalFees

	dayCount, dayPnl, _, err := s.tradeRepo.AggregateCloses(utils.GetDayStart())
	if err != nil {
		return nil, err
	}
	stats.TodayTrades = dayCount
	stats.TodayPnl = dayPnl

	weekCount, weekPnl, _, err := s.tradeRepo.AggregateCloses(utils.GetWeekStart())
	if err != nil {
		return nil, err
	}
	stats.WeekTrades = weekCount
	stats.WeekPnl = weekPnl

	monthCount, monthPnl, _, err := s.tradeRepo.AggregateCloses(utils.GetMonthStart())
	if err != nil {
		return nil, err
	}
	stats.MonthTrades = monthCount
	stats.MonthPnl = monthPnl

	pending, err := s.tradeRepo.CountPendingCloses()
	if err != nil {
		return nil, err
	}
	stats.PendingCloses = pending

	return stats, nil
}

// normalizeLimit приводит лимит выборки к допустимому диапазону
func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	if limit > 500 {
		return 500
	}
	return limit
}
