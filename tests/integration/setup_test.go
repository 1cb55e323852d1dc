//go:build integration

// Package integration contains integration tests for the position monitor.
//
// These tests verify the correct interaction between components:
// - API integration tests: full HTTP request cycle
// - WebSocket tests: connection, broadcast messaging
// - Database tests: schema, repository CRUD against real Postgres
// - Monitor tests: tick -> breach -> protective close -> reconciliation
//
// Integration tests use build tag "integration" to separate from unit tests.
// Run with: go test -tags=integration ./tests/integration/...
//
// Tests skip automatically when the test database is unreachable.
package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"sentinel/internal/api"
	"sentinel/internal/config"
	"sentinel/internal/exchange"
	"sentinel/internal/models"
	"sentinel/internal/monitor"
	"sentinel/internal/repository"
	"sentinel/internal/service"
	"sentinel/internal/websocket"
)

// TestConfig contains configuration for integration tests
type TestConfig struct {
	DBDriver   string
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string
}

// getTestConfig returns configuration from environment variables or defaults
func getTestConfig() TestConfig {
	return TestConfig{
		DBDriver:   getEnv("TEST_DB_DRIVER", "postgres"),
		DBHost:     getEnv("TEST_DB_HOST", "localhost"),
		DBPort:     getEnv("TEST_DB_PORT", "5432"),
		DBName:     getEnv("TEST_DB_NAME", "sentinel_test"),
		DBUser:     getEnv("TEST_DB_USER", "postgres"),
		DBPassword: getEnv("TEST_DB_PASSWORD", "postgres"),
		DBSSLMode:  getEnv("TEST_DB_SSLMODE", "disable"),
	}
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// SetupTestDB creates a test database connection
func SetupTestDB(t *testing.T) (*sql.DB, func()) {
	cfg := getTestConfig()

	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode,
	)

	db, err := sql.Open(cfg.DBDriver, connStr)
	if err != nil {
		t.Skipf("Skipping integration test: cannot connect to database: %v", err)
		return nil, func() {}
	}

	if err := db.Ping(); err != nil {
		t.Skipf("Skipping integration test: cannot ping database: %v", err)
		return nil, func() {}
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	cleanup := func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}

	return db, cleanup
}

// initTestTables creates tables matching the repository SQL
func initTestTables(db *sql.DB) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS positions (
			id SERIAL PRIMARY KEY,
			symbol VARCHAR(30) UNIQUE NOT NULL,
			side VARCHAR(10) NOT NULL,
			quantity DECIMAL(20, 8) NOT NULL,
			entry_price DECIMAL(20, 8) NOT NULL,
			mark_price DECIMAL(20, 8) NOT NULL,
			leverage DECIMAL(10, 2) NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS trades (
			id SERIAL PRIMARY KEY,
			order_id VARCHAR(64) NOT NULL DEFAULT '',
			symbol VARCHAR(30) NOT NULL,
			side VARCHAR(10) NOT NULL,
			type VARCHAR(10) NOT NULL,
			price DECIMAL(20, 8) NOT NULL,
			quantity DECIMAL(20, 8) NOT NULL,
			leverage DECIMAL(10, 2) NOT NULL DEFAULT 1,
			pnl DECIMAL(20, 8) NOT NULL DEFAULT 0,
			fee DECIMAL(20, 8) NOT NULL DEFAULT 0,
			status VARCHAR(10) NOT NULL DEFAULT 'filled',
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS decisions (
			id SERIAL PRIMARY KEY,
			iteration INT NOT NULL DEFAULT 0,
			market_analysis JSONB NOT NULL DEFAULT '{}',
			decision TEXT NOT NULL DEFAULT '',
			actions_taken JSONB NOT NULL DEFAULT '[]',
			account_value DECIMAL(20, 8) NOT NULL DEFAULT 0,
			positions_count INT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id SERIAL PRIMARY KEY,
			type VARCHAR(20) NOT NULL,
			severity VARCHAR(10) NOT NULL DEFAULT 'info',
			symbol VARCHAR(30),
			message TEXT NOT NULL,
			meta JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
	}

	for _, table := range tables {
		if _, err := db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// cleanupTestTables truncates all test tables
func cleanupTestTables(db *sql.DB) {
	tables := []string{
		"positions",
		"trades",
		"decisions",
		"notifications",
	}

	for _, table := range tables {
		db.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
	}
}

// TruncateTable truncates a specific table for testing
func TruncateTable(db *sql.DB, tableName string) error {
	_, err := db.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", tableName))
	return err
}

// ============================================================
// Fake exchange gateway
// ============================================================

// placedOrder records one reduce-only order submitted to the fake gateway
type placedOrder struct {
	Contract string
	Size     float64
}

// fakeGateway implements monitor.Gateway against in-memory state.
//
// Positions disappear after a reduce-only order for their contract,
// mimicking how the real exchange stops reporting a closed position.
type fakeGateway struct {
	mu sync.Mutex

	positions  map[string]*exchange.ContractPosition
	tickers    map[string]*exchange.Ticker
	candles    map[string][]exchange.Candle
	multiplier float64
	fillPrice  float64
	account    float64

	orders      []placedOrder
	nextOrderID int

	tickerErr error
	orderErr  error
}

var _ monitor.Gateway = (*fakeGateway)(nil)

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		positions:  make(map[string]*exchange.ContractPosition),
		tickers:    make(map[string]*exchange.Ticker),
		candles:    make(map[string][]exchange.Candle),
		multiplier: 1,
		account:    10000,
	}
}

// SetPosition installs an open position reported by the fake exchange
func (f *fakeGateway) SetPosition(pos *exchange.ContractPosition) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.positions[pos.Contract] = pos
}

// SetTicker installs the REST ticker answer for a contract
func (f *fakeGateway) SetTicker(contract string, last, mark float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickers[contract] = &exchange.Ticker{
		Contract:  contract,
		Last:      last,
		MarkPrice: mark,
		Timestamp: time.Now(),
	}
}

// SetTickerError makes every GetTicker call fail
func (f *fakeGateway) SetTickerError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickerErr = err
}

// SetFillPrice sets the price reported for confirmed orders
func (f *fakeGateway) SetFillPrice(price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fillPrice = price
}

// SetOrderError makes every PlaceReduceOnlyOrder call fail
func (f *fakeGateway) SetOrderError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orderErr = err
}

// HasPosition reports whether the fake exchange still lists the contract
func (f *fakeGateway) HasPosition(contract string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.positions[contract]
	return ok
}

// PlacedOrders returns a copy of all submitted orders
func (f *fakeGateway) PlacedOrders() []placedOrder {
	f.mu.Lock()
	defer f.mu.Unlock()
	orders := make([]placedOrder, len(f.orders))
	copy(orders, f.orders)
	return orders
}

func (f *fakeGateway) GetPositions(ctx context.Context) ([]*exchange.ContractPosition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	positions := make([]*exchange.ContractPosition, 0, len(f.positions))
	for _, pos := range f.positions {
		positions = append(positions, pos)
	}
	return positions, nil
}

func (f *fakeGateway) GetTicker(ctx context.Context, contract string) (*exchange.Ticker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tickerErr != nil {
		return nil, f.tickerErr
	}
	ticker, ok := f.tickers[contract]
	if !ok {
		return nil, errors.New("ticker not found")
	}
	return ticker, nil
}

func (f *fakeGateway) GetCandles(ctx context.Context, contract, interval string, limit int) ([]exchange.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.candles[contract+interval], nil
}

func (f *fakeGateway) GetContractMultiplier(ctx context.Context, contract string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.multiplier, nil
}

func (f *fakeGateway) PlaceReduceOnlyOrder(ctx context.Context, contract string, size float64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.orderErr != nil {
		return "", f.orderErr
	}

	f.nextOrderID++
	f.orders = append(f.orders, placedOrder{Contract: contract, Size: size})

	// Closed position stops being reported on the next snapshot
	delete(f.positions, contract)

	return fmt.Sprintf("fake-order-%d", f.nextOrderID), nil
}

func (f *fakeGateway) GetOrderStatus(ctx context.Context, orderID string) (*exchange.OrderStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &exchange.OrderStatus{
		ID:        orderID,
		Status:    exchange.OrderStatusFinished,
		FillPrice: f.fillPrice,
		FinishAs:  exchange.FinishAsFilled,
	}, nil
}

func (f *fakeGateway) GetAccountValue(ctx context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.account, nil
}

func (f *fakeGateway) CachedTicker(contract string) (*exchange.Ticker, bool) {
	return nil, false
}

// ============================================================
// Test server
// ============================================================

// TestRepositories contains all repository instances for testing
type TestRepositories struct {
	Position     *repository.PositionRepository
	Trade        *repository.TradeRepository
	Decision     *repository.DecisionRepository
	Notification *repository.NotificationRepository
}

// TestServices contains all service instances for testing
type TestServices struct {
	Position     *service.PositionService
	Trade        *service.TradeService
	Decision     *service.DecisionService
	Notification *service.NotificationService
}

// TestServer encapsulates all components needed for integration testing
//
// The monitor pipeline is fully wired against fakeGateway but not
// started; monitor tests start it with their own scenario.
type TestServer struct {
	DB          *sql.DB
	Router      *mux.Router
	Server      *httptest.Server
	Hub         *websocket.Hub
	Gateway     *fakeGateway
	Monitor     *monitor.Monitor
	Repairer    *monitor.Repairer
	CloseEvents *monitor.CloseEvents
	Repos       *TestRepositories
	Services    *TestServices
	Ctx         context.Context
	Cleanup     func()
}

// SetupTestServer creates a complete test server with all components
func SetupTestServer(t *testing.T) *TestServer {
	db, dbCleanup := SetupTestDB(t)
	if db == nil {
		return nil
	}

	if err := initTestTables(db); err != nil {
		t.Skipf("Skipping integration test: cannot initialize tables: %v", err)
		return nil
	}
	cleanupTestTables(db)

	logger := zap.NewNop()
	ctx, cancel := context.WithCancel(context.Background())

	hub := websocket.NewHub()
	go hub.Run()

	repos := &TestRepositories{
		Position:     repository.NewPositionRepository(db),
		Trade:        repository.NewTradeRepository(db),
		Decision:     repository.NewDecisionRepository(db),
		Notification: repository.NewNotificationRepository(db),
	}

	services := &TestServices{
		Position:     service.NewPositionService(repos.Position),
		Trade:        service.NewTradeService(repos.Trade),
		Decision:     service.NewDecisionService(repos.Decision),
		Notification: service.NewNotificationService(repos.Notification, logger),
	}
	services.Notification.SetWebSocketHub(hub)

	notifCh := make(chan *models.Notification, 64)
	go services.Notification.Run(ctx, notifCh)

	gateway := newFakeGateway()
	closeEvents := monitor.NewCloseEvents()

	calculator := monitor.NewThresholdCalculator(monitor.ThresholdConfig{
		Mode:        monitor.ModeStatic,
		Low:         -6.0,
		Mid:         -8.0,
		High:        -10.0,
		LeverageMin: 1,
		LeverageMax: 125,
	}, logger)

	snapshots := monitor.NewSnapshotProvider(gateway, logger)

	executor := monitor.NewExecutor(gateway, repos.Trade, repos.Decision, repos.Position, closeEvents, notifCh, logger)

	repairer := monitor.NewRepairer(repos.Trade, gateway, closeEvents, notifCh, monitor.RepairConfig{
		SweepInterval: time.Minute,
		SweepLookback: 24 * time.Hour,
	}, logger)
	go repairer.Run(ctx)

	mon := monitor.NewMonitor(monitor.Config{
		Enabled:  true,
		Interval: 50 * time.Millisecond,
	}, gateway, calculator, snapshots, executor, repos.Position, repos.Trade, notifCh, logger)

	deps := &api.Dependencies{
		PositionService:     services.Position,
		TradeService:        services.Trade,
		DecisionService:     services.Decision,
		NotificationService: services.Notification,
		Monitor:             mon,
		Repairer:            repairer,
		WSHub:               hub,
		Security:            config.SecurityConfig{},
	}
	router := api.SetupRoutes(deps)

	server := httptest.NewServer(router)

	cleanup := func() {
		mon.Stop()
		cancel()
		server.Close()
		hub.Stop()
		cleanupTestTables(db)
		dbCleanup()
	}

	return &TestServer{
		DB:          db,
		Router:      router,
		Server:      server,
		Hub:         hub,
		Gateway:     gateway,
		Monitor:     mon,
		Repairer:    repairer,
		CloseEvents: closeEvents,
		Repos:       repos,
		Services:    services,
		Ctx:         ctx,
		Cleanup:     cleanup,
	}
}

// waitFor polls the condition until it holds or the deadline passes
func waitFor(t *testing.T, timeout time.Duration, condition func() bool) bool {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return condition()
}
