package monitor

import (
	"context"
	"time"

	"sentinel/internal/exchange"
	"sentinel/internal/models"
	"sentinel/internal/repository"
)

// Gateway определяет операции биржи, нужные монитору
//
// Подмножество exchange.Exchange: монитор не управляет подключением
// и подписками, только читает рынок и закрывает позиции.
type Gateway interface {
	GetPositions(ctx context.Context) ([]*exchange.ContractPosition, error)
	GetTicker(ctx context.Context, contract string) (*exchange.Ticker, error)
	GetCandles(ctx context.Context, contract, interval string, limit int) ([]exchange.Candle, error)
	GetContractMultiplier(ctx context.Context, contract string) (float64, error)
	PlaceReduceOnlyOrder(ctx context.Context, contract string, size float64) (string, error)
	GetOrderStatus(ctx context.Context, orderID string) (*exchange.OrderStatus, error)
	GetAccountValue(ctx context.Context) (float64, error)
	CachedTicker(contract string) (*exchange.Ticker, bool)
}

// PositionStore определяет интерфейс хранилища зеркал позиций
type PositionStore interface {
	Upsert(position *models.Position) error
	GetBySymbol(symbol string) (*models.Position, error)
	DeleteBySymbol(symbol string) error
	DeleteMissing(symbols []string) (int64, error)
}

// TradeStore определяет интерфейс хранилища сделок
type TradeStore interface {
	Create(trade *models.TradeRecord) error
	GetLatestClose(symbol string) (*models.TradeRecord, error)
	GetLastOpenBefore(symbol string, before time.Time) (*models.TradeRecord, error)
	GetClosesSince(since time.Time, limit int) ([]*models.TradeRecord, error)
	UpdateCorrection(id int, price, pnl, fee float64, status string) error
}

// DecisionStore определяет интерфейс хранилища решений
type DecisionStore interface {
	Create(decision *models.DecisionRecord) error
}

// Проверяем, что реальные реализации удовлетворяют интерфейсам
var _ Gateway = (exchange.Exchange)(nil)
var _ PositionStore = (*repository.PositionRepository)(nil)
var _ TradeStore = (*repository.TradeRepository)(nil)
var _ DecisionStore = (*repository.DecisionRepository)(nil)
