// Package exchange предоставляет клиент фьючерсного API биржи Gate.io.
package exchange

import (
	"context"
	"time"
)

// Exchange определяет интерфейс работы с фьючерсной биржей (USDT perpetual)
type Exchange interface {
	// Connect сохраняет ключи и проверяет доступ запросом аккаунта
	Connect(apiKey, secret string) error

	// GetName возвращает имя биржи
	GetName() string

	// GetAccountValue получает стоимость фьючерсного аккаунта в USDT
	GetAccountValue(ctx context.Context) (float64, error)

	// GetPositions получает список открытых позиций (size != 0)
	GetPositions(ctx context.Context) ([]*ContractPosition, error)

	// GetTicker получает текущий тикер контракта
	GetTicker(ctx context.Context, contract string) (*Ticker, error)

	// GetCandles получает свечи контракта, от старых к новым
	// interval: 1m, 5m, 15m, 1h...
	GetCandles(ctx context.Context, contract, interval string, limit int) ([]Candle, error)

	// GetContractMultiplier возвращает множитель контракта (quanto multiplier)
	// Результат кэшируется на время жизни клиента
	GetContractMultiplier(ctx context.Context, contract string) (float64, error)

	// PlaceReduceOnlyOrder размещает reduce-only маркет ордер
	// size подписан: положительный покупает, отрицательный продаёт
	// Возвращает ID ордера
	PlaceReduceOnlyOrder(ctx context.Context, contract string, size float64) (string, error)

	// GetOrderStatus получает статус ордера по ID
	GetOrderStatus(ctx context.Context, orderID string) (*OrderStatus, error)

	// SubscribeTicker подписывается на обновления тикера через WebSocket
	SubscribeTicker(contract string, callback func(*Ticker)) error

	// CachedTicker возвращает последний тикер из WebSocket-кэша
	// false если тикера нет или он устарел
	CachedTicker(contract string) (*Ticker, bool)

	// Close закрывает соединения с биржей
	Close() error
}

// Ticker содержит текущие цены контракта
type Ticker struct {
	Contract   string    `json:"contract"`
	Last       float64   `json:"last"`              // последняя сделка
	MarkPrice  float64   `json:"mark_price"`        // mark цена (расчёт PnL и ликвидаций)
	IndexPrice float64   `json:"index_price"`       // индексная цена
	ChangePct  float64   `json:"change_percentage"` // изменение за 24ч, %
	Timestamp  time.Time `json:"timestamp"`
}

// Candle представляет одну свечу
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"` // объём в контрактах
}

// ContractPosition представляет открытую позицию как её отдаёт биржа
//
// Size подписан: положительный = long, отрицательный = short.
// Направление и абсолютный размер выводятся из знака.
type ContractPosition struct {
	Contract      string    `json:"contract"`
	Size          float64   `json:"size"` // подписанный размер в контрактах
	EntryPrice    float64   `json:"entry_price"`
	MarkPrice     float64   `json:"mark_price"`
	Leverage      float64   `json:"leverage"` // 0 при cross-margin
	LiqPrice      float64   `json:"liq_price"`
	UnrealisedPnl float64   `json:"unrealised_pnl"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Side возвращает направление позиции по знаку размера
func (p *ContractPosition) Side() string {
	if p.Size < 0 {
		return SideShort
	}
	return SideLong
}

// Quantity возвращает абсолютный размер позиции
func (p *ContractPosition) Quantity() float64 {
	if p.Size < 0 {
		return -p.Size
	}
	return p.Size
}

// OrderStatus представляет состояние ордера
type OrderStatus struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`     // open, finished
	FillPrice float64   `json:"fill_price"` // средняя цена исполнения (0 пока не исполнен)
	Size      float64   `json:"size"`       // подписанный размер
	Left      float64   `json:"left"`       // неисполненный остаток
	FinishAs  string    `json:"finish_as"`  // filled, cancelled, ioc...
	CreatedAt time.Time `json:"created_at"`
}

// ExchangeError представляет ошибку от биржи
type ExchangeError struct {
	Exchange string
	Code     string
	Message  string
	Original error
}

func (e *ExchangeError) Error() string {
	return e.Exchange + ": " + e.Code + ": " + e.Message
}

// Unwrap возвращает оригинальную ошибку для поддержки errors.Is() и errors.As()
func (e *ExchangeError) Unwrap() error {
	return e.Original
}

// Направления позиций
const (
	SideLong  = "long"  // длинная позиция
	SideShort = "short" // короткая позиция
)

// Статусы ордеров биржи
const (
	OrderStatusOpen     = "open"     // ордер в книге, не исполнен полностью
	OrderStatusFinished = "finished" // ордер завершён (исполнен или отменён)
)

// Варианты завершения ордера (finish_as)
const (
	FinishAsFilled    = "filled"    // исполнен полностью
	FinishAsCancelled = "cancelled" // отменён
	FinishAsIOC       = "ioc"       // снят по IOC без полного исполнения
)
