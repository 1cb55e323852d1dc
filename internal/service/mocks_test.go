package service

import (
	"sync"
	"time"

	"sentinel/internal/models"
	"sentinel/internal/repository"
)

// ============ Mock PositionRepository ============

type MockPositionRepository struct {
	positions map[string]*models.Position
	getErr    error
	countErr  error
}

func NewMockPositionRepository() *MockPositionRepository {
	return &MockPositionRepository{
		positions: make(map[string]*models.Position),
	}
}

func (m *MockPositionRepository) GetAll() ([]*models.Position, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	result := make([]*models.Position, 0, len(m.positions))
	for _, p := range m.positions {
		result = append(result, p)
	}
	return result, nil
}

func (m *MockPositionRepository) GetBySymbol(symbol string) (*models.Position, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if pos, exists := m.positions[symbol]; exists {
		return pos, nil
	}
	return nil, repository.ErrPositionNotFound
}

func (m *MockPositionRepository) Count() (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	return len(m.positions), nil
}

// ============ Mock TradeRepository ============

type MockTradeRepository struct {
	trades     []*models.TradeRecord
	getErr     error
	lastLimit  int
	nextID     int
}

func NewMockTradeRepository() *MockTradeRepository {
	return &MockTradeRepository{nextID: 1}
}

func (m *MockTradeRepository) seed(trade *models.TradeRecord) *models.TradeRecord {
	trade.ID = m.nextID
	m.nextID++
	m.trades = append(m.trades, trade)
	return trade
}

func (m *MockTradeRepository) GetRecent(limit int) ([]*models.TradeRecord, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.lastLimit = limit
	if len(m.trades) > limit {
		return m.trades[:limit], nil
	}
	return m.trades, nil
}

func (m *MockTradeRepository) GetBySymbol(symbol string, limit int) ([]*models.TradeRecord, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.lastLimit = limit
	var result []*models.TradeRecord
	for _, t := range m.trades {
		if t.Symbol == symbol {
			result = append(result, t)
		}
	}
	return result, nil
}

func (m *MockTradeRepository) AggregateCloses(since time.Time) (int, float64, float64, error) {
	if m.getErr != nil {
		return 0, 0, 0, m.getErr
	}
	var count int
	var pnl, fees float64
	for _, t := range m.trades {
		if t.Type != models.TradeTypeClose {
			continue
		}
		if !t.CreatedAt.Before(since) {
			count++
			pnl += t.Pnl
			fees += t.Fee
		}
	}
	return count, pnl, fees, nil
}

func (m *MockTradeRepository) CountPendingCloses() (int, error) {
	if m.getErr != nil {
		return 0, m.getErr
	}
	var count int
	for _, t := range m.trades {
		if t.Type == models.TradeTypeClose && t.Status == models.TradeStatusPending {
			count++
		}
	}
	return count, nil
}

// ============ Mock DecisionRepository ============

type MockDecisionRepository struct {
	decisions []*models.DecisionRecord
	getErr    error
}

func NewMockDecisionRepository() *MockDecisionRepository {
	return &MockDecisionRepository{}
}

func (m *MockDecisionRepository) GetRecent(limit int) ([]*models.DecisionRecord, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if len(m.decisions) > limit {
		return m.decisions[:limit], nil
	}
	return m.decisions, nil
}

func (m *MockDecisionRepository) GetByID(id int) (*models.DecisionRecord, error) {
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

// ============ Mock NotificationRepository ============

type MockNotificationRepository struct {
	mu            sync.Mutex
	notifications []*models.Notification
	createErr     error
	getErr        error
	deleteErr     error
	nextID        int
}

func NewMockNotificationRepository() *MockNotificationRepository {
	return &MockNotificationRepository{nextID: 1}
}

func (m *MockNotificationRepository) Create(notif *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	notif.ID = m.nextID
	m.nextID++
	if notif.CreatedAt.IsZero() {
		notif.CreatedAt = time.Now()
	}
	stored := *notif
	m.notifications = append(m.notifications, &stored)
	return nil
}

func (m *MockNotificationRepository) GetRecent(limit int) ([]*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	result := make([]*models.Notification, 0, limit)
	for i := len(m.notifications) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, m.notifications[i])
	}
	return result, nil
}

func (m *MockNotificationRepository) GetByType(notificationType string, limit int) ([]*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	result := make([]*models.Notification, 0, limit)
	for i := len(m.notifications) - 1; i >= 0 && len(result) < limit; i-- {
		if m.notifications[i].Type == notificationType {
			result = append(result, m.notifications[i])
		}
	}
	return result, nil
}

func (m *MockNotificationRepository) DeleteAll() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	deleted := int64(len(m.notifications))
	m.notifications = nil
	return deleted, nil
}

func (m *MockNotificationRepository) KeepRecent(keepCount int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	if len(m.notifications) <= keepCount {
		return 0, nil
	}
	deleted := int64(len(m.notifications) - keepCount)
	m.notifications = m.notifications[len(m.notifications)-keepCount:]
	return deleted, nil
}

func (m *MockNotificationRepository) Count() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return 0, m.getErr
	}
	return len(m.notifications), nil
}

func (m *MockNotificationRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.notifications)
}

// ============ Mock WebSocketBroadcaster ============

type MockBroadcaster struct {
	mu   sync.Mutex
	sent []*models.Notification
}

func NewMockBroadcaster() *MockBroadcaster {
	return &MockBroadcaster{}
}

func (m *MockBroadcaster) BroadcastNotification(notif *models.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, notif)
}

func (m *MockBroadcaster) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}
