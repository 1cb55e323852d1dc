package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
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
	"sentinel/pkg/utils"
)

func main() {
	// .env удобен при разработке; в production переменные приходят из окружения
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Структурированный логгер для монитора и сервисов
	logger := utils.MustInitLogger(cfg.Logging.Level, cfg.Logging.Format)
	defer logger.Sync()

	// Инициализация базы данных
	db, err := initDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	log.Println("Connected to database successfully")

	// Инициализация репозиториев
	positionRepo := repository.NewPositionRepository(db)
	tradeRepo := repository.NewTradeRepository(db)
	decisionRepo := repository.NewDecisionRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// Подключение к бирже
	exch, err := exchange.NewExchange(cfg.Exchange.Name)
	if err != nil {
		log.Fatalf("Failed to create exchange client: %v", err)
	}

	if err := exch.Connect(cfg.Exchange.APIKey, cfg.Exchange.APISecret); err != nil {
		log.Fatalf("Failed to connect to exchange: %v", err)
	}

	log.Printf("Connected to %s exchange", exch.GetName())

	// Контекст жизненного цикла фоновых горутин
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Канал уведомлений: монитор, исполнитель и сверка пишут,
	// NotificationService сохраняет в БД и транслирует на dashboard
	notifCh := make(chan *models.Notification, 64)

	// WebSocket hub для real-time обновлений dashboard
	hub := websocket.NewHub()
	go hub.Run()

	// Инициализация сервисов
	positionService := service.NewPositionService(positionRepo)
	tradeService := service.NewTradeService(tradeRepo)
	decisionService := service.NewDecisionService(decisionRepo)

	notificationService := service.NewNotificationService(notificationRepo, logger)
	notificationService.SetWebSocketHub(hub)
	go notificationService.Run(ctx, notifCh)

	// Конвейер защиты: пороги -> исполнитель закрытий -> сверка записей
	closeEvents := monitor.NewCloseEvents()

	calculator := monitor.NewThresholdCalculator(monitor.ThresholdConfig{
		Mode:        cfg.Monitor.Mode,
		Low:         cfg.Monitor.StopLossLow,
		Mid:         cfg.Monitor.StopLossMid,
		High:        cfg.Monitor.StopLossHigh,
		LeverageMin: cfg.Monitor.LeverageMin,
		LeverageMax: cfg.Monitor.LeverageMax,
	}, logger)

	snapshots := monitor.NewSnapshotProvider(exch, logger)

	executor := monitor.NewExecutor(exch, tradeRepo, decisionRepo, positionRepo, closeEvents, notifCh, logger)

	repairer := monitor.NewRepairer(tradeRepo, exch, closeEvents, notifCh, monitor.RepairConfig{
		SweepInterval: cfg.Monitor.SweepInterval,
		SweepLookback: cfg.Monitor.SweepLookback,
	}, logger)
	go repairer.Run(ctx)

	mon := monitor.NewMonitor(monitor.Config{
		Enabled:  cfg.Monitor.Enabled,
		Interval: cfg.Monitor.Interval,
	}, exch, calculator, snapshots, executor, positionRepo, tradeRepo, notifCh, logger)

	// Выключенная защита не роняет сервис: API и метрики продолжают
	// работать, монитор просто не стартует
	if err := mon.Start(ctx); err != nil && !errors.Is(err, monitor.ErrProtectionDisabled) {
		log.Fatalf("Failed to start monitor: %v", err)
	}

	// Фоновые рассылки на dashboard и WS-подписки тикеров
	go runTickerSubscriptions(ctx, exch, positionService, logger)
	go runDashboardFeed(ctx, hub, mon, positionService, cfg.Monitor.Interval, logger)
	go runCloseFeed(ctx, hub, closeEvents, tradeRepo, tradeService, logger)

	// Настройка зависимостей для API
	deps := &api.Dependencies{
		PositionService:     positionService,
		TradeService:        tradeService,
		DecisionService:     decisionService,
		NotificationService: notificationService,
		Monitor:             mon,
		Repairer:            repairer,
		WSHub:               hub,
		Security:            cfg.Security,
	}

	// Настройка HTTP роутера
	router := api.SetupRoutes(deps)

	// HTTP сервер
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск сервера в отдельной горутине
	go func() {
		log.Printf("Starting server on %s", server.Addr)
		if cfg.Server.UseHTTPS {
			if err := server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Server failed: %v", err)
			}
		} else {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Server failed: %v", err)
			}
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Монитор первым: начатое защитное закрытие дорабатывает до конца
	mon.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	// Останавливаем фоновые горутины и внешние соединения
	cancel()
	hub.Stop()

	if err := exch.Close(); err != nil {
		log.Printf("Error closing exchange connection: %v", err)
	}

	log.Println("Server exited")
}

// runTickerSubscriptions держит WS-подписки тикеров по наблюдаемым символам
//
// Кэш тикеров ускоряет выбор цены выхода в исполнителе: свежий WS-тикер
// проверяется раньше REST-запроса. Подписка идемпотентна, повторный вызов
// по уже подписанному символу ничего не делает.
func runTickerSubscriptions(ctx context.Context, exch exchange.Exchange, positions *service.PositionService, logger *zap.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		views, err := positions.GetPositions()
		if err != nil {
			logger.Warn("ticker subscription position lookup failed", zap.Error(err))
		} else {
			for _, view := range views {
				if err := exch.SubscribeTicker(view.Symbol, nil); err != nil {
					logger.Warn("ticker subscription failed",
						zap.String("symbol", view.Symbol),
						zap.Error(err),
					)
				}
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// runDashboardFeed периодически транслирует состояние монитора и позиций
//
// Частота совпадает с периодом тиков: dashboard видит ту же картину, что
// и монитор. Без подключенных клиентов раунд пропускается.
func runDashboardFeed(ctx context.Context, hub *websocket.Hub, mon *monitor.Monitor, positions *service.PositionService, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if hub.ClientCount() == 0 {
			continue
		}

		status := mon.Status()
		hub.BroadcastMonitorStatus(&status)

		views, err := positions.GetPositions()
		if err != nil {
			logger.Warn("dashboard position lookup failed", zap.Error(err))
			continue
		}

		for _, view := range views {
			hub.BroadcastPositionUpdate(&view.Position, view.PnlPercent)
		}
	}
}

// runCloseFeed транслирует защитные закрытия и обновленную статистику
func runCloseFeed(ctx context.Context, hub *websocket.Hub, events *monitor.CloseEvents, trades *repository.TradeRepository, stats *service.TradeService, logger *zap.Logger) {
	closures := events.Subscribe(16)

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-closures:
			// Событие не несет комиссию, запись читается из БД целиком
			trade, err := trades.GetLatestClose(event.Symbol)
			if err != nil {
				logger.Warn("close feed trade lookup failed",
					zap.String("symbol", event.Symbol),
					zap.Error(err),
				)
				continue
			}
			hub.BroadcastCloseUpdate(trade)

			if tradeStats, err := stats.GetStats(); err == nil {
				hub.BroadcastStatsUpdate(tradeStats)
			}
		}
	}
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Проверка подключения
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
