package handlers

import (
	"context"
	"errors"
	"sync"
	"time"

	"sentinel/internal/models"
	"sentinel/internal/repository"
	"sentinel/internal/service"
)

// ============ Mock Position Service ============

// MockPositionService мок для PositionServiceInterface
type MockPositionService struct {
	positions map[string]*service.PositionView
	getErr    error
	mu        sync.RWMutex
}

// NewMockPositionService создает новый мок сервиса позиций
func NewMockPositionService() *MockPositionService {
	return &MockPositionService{
		positions: make(map[string]*service.PositionView),
	}
}

func (m *MockPositionService) GetPositions() ([]*service.PositionView, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.getErr != nil {
		return nil, m.getErr
	}

	result := make([]*service.PositionView, 0, len(m.positions))
	for _, p := range m.positions {
		result = append(result, p)
	}
	return result, nil
}

func (m *MockPositionService) GetPosition(symbol string) (*service.PositionView, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.getErr != nil {
		return nil, m.getErr
	}

	if view, exists := m.positions[symbol]; exists {
		return view, nil
	}
	return nil, repository.ErrPositionNotFound
}

func (m *MockPositionService) GetPositionCount() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.getErr != nil {
		return 0, m.getErr
	}
	return len(m.positions), nil
}

// SetError устанавливает ошибку для всех операций чтения
func (m *MockPositionService) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getErr = err
}

// AddPosition добавляет позицию напрямую (для настройки тестов)
func (m *MockPositionService) AddPosition(symbol, side string, pnlPercent float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.positions[symbol] = &service.PositionView{
		Position: models.Position{
			Symbol:     symbol,
			Side:       side,
			Quantity:   1,
			EntryPrice: 50000,
			MarkPrice:  50000,
			Leverage:   10,
			UpdatedAt:  time.Now(),
		},
		PnlPercent: pnlPercent,
	}
}

// ============ Mock Trade Service ============

// MockTradeService мок для TradeServiceInterface
type MockTradeService struct {
	trades    []*models.TradeRecord
	stats     *models.TradeStats
	getErr    error
	statsErr  error
	lastLimit int
	mu        sync.RWMutex
}

// NewMockTradeService создает новый мок сервиса сделок
func NewMockTradeService() *MockTradeService {
	return &MockTradeService{
		stats: &models.TradeStats{},
	}
}

func (m *MockTradeService) GetRecentTrades(limit int) ([]*models.TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastLimit = limit
	if m.getErr != nil {
		return nil, m.getErr
	}

	if limit > 0 && len(m.trades) > limit {
		return m.trades[:limit], nil
	}
	return m.trades, nil
}

func (m *MockTradeService) GetTradesBySymbol(symbol string, limit int) ([]*models.TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastLimit = limit
	if m.getErr != nil {
		return nil, m.getErr
	}

	result := make([]*models.TradeRecord, 0)
	for _, t := range m.trades {
		if t.Symbol == symbol {
			result = append(result, t)
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockTradeService) GetStats() (*models.TradeStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.statsErr != nil {
		return nil, m.statsErr
	}
	return m.stats, nil
}

// SetError устанавливает ошибку для указанной операции
func (m *MockTradeService) SetError(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch operation {
	case "get":
		m.getErr = err
	case "stats":
		m.statsErr = err
	}
}

// AddTrade добавляет сделку напрямую (для настройки тестов)
func (m *MockTradeService) AddTrade(symbol, tradeType string, pnl float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.trades = append(m.trades, &models.TradeRecord{
		ID:        len(m.trades) + 1,
		Symbol:    symbol,
		Side:      models.SideLong,
		Type:      tradeType,
		Price:     50000,
		Quantity:  1,
		Leverage:  10,
		Pnl:       pnl,
		Status:    models.TradeStatusFilled,
		CreatedAt: time.Now(),
	})
}

// SetStats устанавливает статистику напрямую (для настройки тестов)
func (m *MockTradeService) SetStats(stats *models.TradeStats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = stats
}

// ============ Mock Decision Service ============

// MockDecisionService мок для DecisionServiceInterface
type MockDecisionService struct {
	decisions []*models.DecisionRecord
	getErr    error
	mu        sync.RWMutex
}

// NewMockDecisionService создает новый мок сервиса решений
func NewMockDecisionService() *MockDecisionService {
	return &MockDecisionService{}
}

func (m *MockDecisionService) GetRecentDecisions(limit int) ([]*models.DecisionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.getErr != nil {
		return nil, m.getErr
	}

	if limit > 0 && len(m.decisions) > limit {
		return m.decisions[:limit], nil
	}
	return m.decisions, nil
}

func (m *MockDecisionService) GetDecision(id int) (*models.DecisionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.getErr != nil {
		return nil, m.getErr
	}

	for _, d := range m.decisions {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, repository.ErrDecisionNotFound
}

// SetError устанавливает ошибку для всех операций чтения
func (m *MockDecisionService) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getErr = err
}

// AddDecision добавляет запись напрямую (для настройки тестов)
func (m *MockDecisionService) AddDecision(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.decisions = append(m.decisions, &models.DecisionRecord{
		ID:           len(m.decisions) + 1,
		DecisionText: text,
		ActionsTaken: []string{"close_position"},
		CreatedAt:    time.Now(),
	})
}

// ============ Mock Notification Service ============

// MockNotificationService мок для NotificationServiceInterface
type MockNotificationService struct {
	notifications []*models.Notification
	createErr     error
	getErr        error
	clearErr      error
	nextID        int
	mu            sync.RWMutex
}

// NewMockNotificationService создает новый мок сервиса уведомлений
func NewMockNotificationService() *MockNotificationService {
	return &MockNotificationService{
		notifications: make([]*models.Notification, 0),
		nextID:        1,
	}
}

func (m *MockNotificationService) GetNotifications(types []string, limit int) ([]*models.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.getErr != nil {
		return nil, m.getErr
	}

	if limit <= 0 {
		limit = 100
	}

	result := make([]*models.Notification, 0, len(m.notifications))

	if len(types) == 0 {
		result = append(result, m.notifications...)
	} else {
		typeSet := make(map[string]bool)
		for _, t := range types {
			typeSet[t] = true
		}
		for _, n := range m.notifications {
			if typeSet[n.Type] {
				result = append(result, n)
			}
		}
	}

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockNotificationService) ClearNotifications() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.clearErr != nil {
		return 0, m.clearErr
	}

	deleted := int64(len(m.notifications))
	m.notifications = make([]*models.Notification, 0)
	return deleted, nil
}

func (m *MockNotificationService) CreateNotification(notif *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return m.createErr
	}

	notif.ID = m.nextID
	m.nextID++
	notif.CreatedAt = time.Now()
	m.notifications = append(m.notifications, notif)
	return nil
}

func (m *MockNotificationService) GetNotificationCount() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.getErr != nil {
		return 0, m.getErr
	}
	return len(m.notifications), nil
}

// SetError устанавливает ошибку для указанной операции
func (m *MockNotificationService) SetError(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch operation {
	case "create":
		m.createErr = err
	case "get":
		m.getErr = err
	case "clear":
		m.clearErr = err
	}
}

// AddNotification добавляет уведомление напрямую (для настройки тестов)
func (m *MockNotificationService) AddNotification(notifType, severity, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.notifications = append(m.notifications, &models.Notification{
		ID:        m.nextID,
		Type:      notifType,
		Severity:  severity,
		Message:   message,
		CreatedAt: time.Now(),
	})
	m.nextID++
}

// ============ Mock Monitor ============

// MockMonitorStatus мок для MonitorStatusSource
type MockMonitorStatus struct {
	status models.MonitorStatus
}

// NewMockMonitorStatus создает новый мок состояния монитора
func NewMockMonitorStatus() *MockMonitorStatus {
	return &MockMonitorStatus{
		status: models.MonitorStatus{
			Running: true,
			Mode:    "static",
		},
	}
}

func (m *MockMonitorStatus) Status() models.MonitorStatus {
	return m.status
}

// MockRepairRunner мок для RepairRunner
type MockRepairRunner struct {
	outcome    string
	lastSymbol string
}

// NewMockRepairRunner создает новый мок сверки
func NewMockRepairRunner(outcome string) *MockRepairRunner {
	return &MockRepairRunner{outcome: outcome}
}

func (m *MockRepairRunner) Repair(ctx context.Context, symbol string) string {
	m.lastSymbol = symbol
	return m.outcome
}

// ============ Helper errors for tests ============

var (
	ErrMockDatabase = errors.New("mock database error")
	ErrMockService  = errors.New("mock service error")
)

// ============ Проверяем, что моки реализуют интерфейсы ============

var _ service.PositionServiceInterface = (*MockPositionService)(nil)
var _ service.TradeServiceInterface = (*MockTradeService)(nil)
var _ service.DecisionServiceInterface = (*MockDecisionService)(nil)
var _ service.NotificationServiceInterface = (*MockNotificationService)(nil)
var _ MonitorStatusSource = (*MockMonitorStatus)(nil)
var _ RepairRunner = (*MockRepairRunner)(nil)
