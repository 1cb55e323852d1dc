package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"sentinel/internal/exchange"
	"sentinel/internal/models"
	"sentinel/internal/repository"
)

// ============ Mock Gateway ============

type placedOrder struct {
	contract string
	size     float64
}

// MockGateway - биржа в памяти: позиции, тикеры, свечи и ордера
// задаются тестом, вызовы записываются для проверок.
type MockGateway struct {
	mu sync.Mutex

	positions    []*exchange.ContractPosition
	positionsErr error

	tickers   map[string]*exchange.Ticker
	tickerErr error

	cached map[string]*exchange.Ticker

	candles    map[string][]exchange.Candle // ключ "контракт/интервал"
	candlesErr map[string]error             // сбой всех запросов свечей символа

	multipliers   map[string]float64
	multiplierErr error

	// Исполнение ордера: 0 = статус навсегда open,
	// N = опрос номер N возвращает finished с fillPrice
	fillAfterPolls int
	fillPrice      float64
	statusCalls    int
	orderStatusErr error

	placed    []placedOrder
	placeErr  error
	nextOrder int

	accountValue float64
	accountErr   error
}

func NewMockGateway() *MockGateway {
	return &MockGateway{
		tickers:     make(map[string]*exchange.Ticker),
		cached:      make(map[string]*exchange.Ticker),
		candles:     make(map[string][]exchange.Candle),
		candlesErr:  make(map[string]error),
		multipliers: make(map[string]float64),
		nextOrder:   1,
	}
}

func (g *MockGateway) GetPositions(ctx context.Context) ([]*exchange.ContractPosition, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.positionsErr != nil {
		return nil, g.positionsErr
	}
	result := make([]*exchange.ContractPosition, len(g.positions))
	copy(result, g.positions)
	return result, nil
}

func (g *MockGateway) GetTicker(ctx context.Context, contract string) (*exchange.Ticker, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.tickerErr != nil {
		return nil, g.tickerErr
	}
	if ticker, ok := g.tickers[contract]; ok {
		return ticker, nil
	}
	return nil, fmt.Errorf("no ticker for %s", contract)
}

func (g *MockGateway) GetCandles(ctx context.Context, contract, interval string, limit int) ([]exchange.Candle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.candlesErr[contract]; err != nil {
		return nil, err
	}
	if candles, ok := g.candles[contract+"/"+interval]; ok {
		return candles, nil
	}
	return nil, fmt.Errorf("no candles for %s %s", contract, interval)
}

func (g *MockGateway) GetContractMultiplier(ctx context.Context, contract string) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.multiplierErr != nil {
		return 0, g.multiplierErr
	}
	if mult, ok := g.multipliers[contract]; ok {
		return mult, nil
	}
	return 1.0, nil
}

func (g *MockGateway) PlaceReduceOnlyOrder(ctx context.Context, contract string, size float64) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.placeErr != nil {
		return "", g.placeErr
	}
	g.placed = append(g.placed, placedOrder{contract: contract, size: size})
	id := fmt.Sprintf("mock-order-%d", g.nextOrder)
	g.nextOrder++
	return id, nil
}

func (g *MockGateway) GetOrderStatus(ctx context.Context, orderID string) (*exchange.OrderStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusCalls++
	if g.orderStatusErr != nil {
		return nil, g.orderStatusErr
	}
	if g.fillAfterPolls > 0 && g.statusCalls >= g.fillAfterPolls {
		return &exchange.OrderStatus{
			ID:        orderID,
			Status:    exchange.OrderStatusFinished,
			FillPrice: g.fillPrice,
		}, nil
	}
	return &exchange.OrderStatus{ID: orderID, Status: exchange.OrderStatusOpen}, nil
}

func (g *MockGateway) GetAccountValue(ctx context.Context) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.accountErr != nil {
		return 0, g.accountErr
	}
	return g.accountValue, nil
}

func (g *MockGateway) CachedTicker(contract string) (*exchange.Ticker, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ticker, ok := g.cached[contract]
	return ticker, ok
}

func (g *MockGateway) placedOrders() []placedOrder {
	g.mu.Lock()
	defer g.mu.Unlock()
	result := make([]placedOrder, len(g.placed))
	copy(result, g.placed)
	return result
}

// setPosition добавляет или заменяет позицию в снимке биржи
func (g *MockGateway) setPosition(pos *exchange.ContractPosition) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, existing := range g.positions {
		if existing.Contract == pos.Contract {
			g.positions[i] = pos
			return
		}
	}
	g.positions = append(g.positions, pos)
}

// removePosition убирает позицию из снимка биржи
func (g *MockGateway) removePosition(contract string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	filtered := g.positions[:0]
	for _, pos := range g.positions {
		if pos.Contract != contract {
			filtered = append(filtered, pos)
		}
	}
	g.positions = filtered
}

// ============ Mock PositionStore ============

type MockPositionStore struct {
	mu        sync.Mutex
	positions map[string]*models.Position
	nextID    int

	upsertErr error
	getErr    error
	deleteErr error
}

func NewMockPositionStore() *MockPositionStore {
	return &MockPositionStore{
		positions: make(map[string]*models.Position),
		nextID:    1,
	}
}

func (m *MockPositionStore) Upsert(position *models.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	if existing, ok := m.positions[position.Symbol]; ok {
		position.ID = existing.ID
		position.CreatedAt = existing.CreatedAt
	} else {
		position.ID = m.nextID
		m.nextID++
		position.CreatedAt = time.Now()
	}
	position.UpdatedAt = time.Now()
	m.positions[position.Symbol] = position
	return nil
}

func (m *MockPositionStore) GetBySymbol(symbol string) (*models.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if pos, ok := m.positions[symbol]; ok {
		return pos, nil
	}
	return nil, repository.ErrPositionNotFound
}

func (m *MockPositionStore) DeleteBySymbol(symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.positions[symbol]; !ok {
		return repository.ErrPositionNotFound
	}
	delete(m.positions, symbol)
	return nil
}

func (m *MockPositionStore) DeleteMissing(symbols []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	keep := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		keep[s] = struct{}{}
	}
	var deleted int64
	for symbol := range m.positions {
		if _, ok := keep[symbol]; !ok {
			delete(m.positions, symbol)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MockPositionStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.positions)
}

func (m *MockPositionStore) has(symbol string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.positions[symbol]
	return ok
}

// ============ Mock TradeStore ============

type correction struct {
	id     int
	price  float64
	pnl    float64
	fee    float64
	status string
}

type MockTradeStore struct {
	mu     sync.Mutex
	trades []*models.TradeRecord
	nextID int

	createErr     error
	queryErr      error
	correctionErr error

	corrections []correction
}

func NewMockTradeStore() *MockTradeStore {
	return &MockTradeStore{nextID: 1}
}

// seed добавляет запись как есть, без перезаписи времени создания
func (m *MockTradeStore) seed(trade *models.TradeRecord) *models.TradeRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if trade.ID == 0 {
		trade.ID = m.nextID
		m.nextID++
	} else if trade.ID >= m.nextID {
		m.nextID = trade.ID + 1
	}
	m.trades = append(m.trades, trade)
	return trade
}

func (m *MockTradeStore) Create(trade *models.TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	trade.ID = m.nextID
	m.nextID++
	trade.CreatedAt = time.Now()
	m.trades = append(m.trades, trade)
	return nil
}

func (m *MockTradeStore) GetLatestClose(symbol string) (*models.TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	for i := len(m.trades) - 1; i >= 0; i-- {
		t := m.trades[i]
		if t.Symbol == symbol && t.Type == models.TradeTypeClose {
			return t, nil
		}
	}
	return nil, repository.ErrTradeNotFound
}

func (m *MockTradeStore) GetLastOpenBefore(symbol string, before time.Time) (*models.TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	for i := len(m.trades) - 1; i >= 0; i-- {
		t := m.trades[i]
		if t.Symbol == symbol && t.Type == models.TradeTypeOpen && !t.CreatedAt.After(before) {
			return t, nil
		}
	}
	return nil, repository.ErrTradeNotFound
}

func (m *MockTradeStore) GetClosesSince(since time.Time, limit int) ([]*models.TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	var result []*models.TradeRecord
	for i := len(m.trades) - 1; i >= 0 && len(result) < limit; i-- {
		t := m.trades[i]
		if t.Type == models.TradeTypeClose && !t.CreatedAt.Before(since) {
			result = append(result, t)
		}
	}
	return result, nil
}

func (m *MockTradeStore) UpdateCorrection(id int, price, pnl, fee float64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.correctionErr != nil {
		return m.correctionErr
	}
	for _, t := range m.trades {
		if t.ID == id {
			t.Price = price
			t.Pnl = pnl
			t.Fee = fee
			t.Status = status
			m.corrections = append(m.corrections, correction{id: id, price: price, pnl: pnl, fee: fee, status: status})
			return nil
		}
	}
	return repository.ErrTradeNotFound
}

func (m *MockTradeStore) byType(tradeType string) []*models.TradeRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*models.TradeRecord
	for _, t := range m.trades {
		if t.Type == tradeType {
			result = append(result, t)
		}
	}
	return result
}

func (m *MockTradeStore) correctionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.corrections)
}

// ============ Mock DecisionStore ============

type MockDecisionStore struct {
	mu        sync.Mutex
	decisions []*models.DecisionRecord
	nextID    int
	createErr error
}

func NewMockDecisionStore() *MockDecisionStore {
	return &MockDecisionStore{nextID: 1}
}

func (m *MockDecisionStore) Create(decision *models.DecisionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	decision.ID = m.nextID
	m.nextID++
	decision.CreatedAt = time.Now()
	m.decisions = append(m.decisions, decision)
	return nil
}

func (m *MockDecisionStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.decisions)
}

// ============ Общие помощники ============

var errMockUnavailable = errors.New("mock backend unavailable")

// genCandles строит серию свечей с линейным дрейфом цены
func genCandles(n int, start, step float64) []exchange.Candle {
	candles := make([]exchange.Candle, n)
	ts := time.Now().Add(-time.Duration(n) * time.Minute)
	for i := 0; i < n; i++ {
		price := start + float64(i)*step
		candles[i] = exchange.Candle{
			Timestamp: ts.Add(time.Duration(i) * time.Minute),
			Open:      price,
			High:      price * 1.001,
			Low:       price * 0.999,
			Close:     start + float64(i+1)*step,
			Volume:    100,
		}
	}
	return candles
}
