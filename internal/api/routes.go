package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sentinel/internal/api/handlers"
	"sentinel/internal/api/middleware"
	"sentinel/internal/config"
	"sentinel/internal/service"
	"sentinel/internal/websocket"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	PositionService     *service.PositionService
	TradeService        *service.TradeService
	DecisionService     *service.DecisionService
	NotificationService *service.NotificationService
	Monitor             handlers.MonitorStatusSource
	Repairer            handlers.RepairRunner
	WSHub               *websocket.Hub
	Security            config.SecurityConfig
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Назначение:
// Центральное место для определения всех API endpoints.
// Регистрирует handlers для каждого маршрута.
// Применяет middleware к группам маршрутов.
// Организует версионирование API (v1).
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── /positions/
//	│   ├── GET / - отслеживаемые позиции с текущим PnL%
//	│   └── GET /{symbol} - позиция по символу
//	├── /trades/
//	│   ├── GET / - журнал сделок
//	│   └── GET /{symbol} - сделки по символу
//	├── /stats/
//	│   └── GET / - агрегированная статистика закрытий
//	├── /decisions/
//	│   ├── GET / - журнал решений
//	│   └── GET /{id} - запись по ID
//	├── /notifications/
//	│   ├── GET / - получить уведомления
//	│   └── DELETE / - очистить журнал
//	└── /monitor/
//	    ├── GET /status - состояние цикла мониторинга
//	    └── POST /reconcile/{symbol} - ручной запуск сверки
//
// /ws/
//
//	└── /stream - WebSocket для real-time обновлений
//
// /health - проверка живости
// /metrics - Prometheus метрики
//
// Middleware применяется в следующем порядке:
// 1. Recovery (для всех маршрутов)
// 2. Logging (для всех маршрутов)
// 3. CORS (для всех маршрутов)
// 4. BasicAuth (только для /api/v1, включается конфигурацией)
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	// Глобальные middleware (применяются ко всем маршрутам)
	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.CORS)

	// Создание handlers с внедрением зависимостей
	var positionHandler *handlers.PositionHandler
	if deps != nil && deps.PositionService != nil {
		positionHandler = handlers.NewPositionHandler(deps.PositionService)
	}

	var tradeHandler *handlers.TradeHandler
	if deps != nil && deps.TradeService != nil {
		tradeHandler = handlers.NewTradeHandler(deps.TradeService)
	}

	var decisionHandler *handlers.DecisionHandler
	if deps != nil && deps.DecisionService != nil {
		decisionHandler = handlers.NewDecisionHandler(deps.DecisionService)
	}

	var notificationHandler *handlers.NotificationHandler
	if deps != nil && deps.NotificationService != nil {
		notificationHandler = handlers.NewNotificationHandler(deps.NotificationService)
	}

	var monitorHandler *handlers.MonitorHandler
	if deps != nil && deps.Monitor != nil && deps.Repairer != nil {
		monitorHandler = handlers.NewMonitorHandler(deps.Monitor, deps.Repairer)
	}

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()

	// Basic auth закрывает API, когда заданы API_AUTH_USER и
	// API_AUTH_PASSWORD_HASH; иначе пропускает все запросы
	if deps != nil {
		api.Use(middleware.BasicAuth(deps.Security))
	}

	// Position routes
	if positionHandler != nil {
		api.HandleFunc("/positions", positionHandler.GetPositions).Methods("GET")
		api.HandleFunc("/positions/{symbol}", positionHandler.GetPosition).Methods("GET")
	}

	// Trade routes
	if tradeHandler != nil {
		api.HandleFunc("/trades", tradeHandler.GetTrades).Methods("GET")
		api.HandleFunc("/trades/{symbol}", tradeHandler.GetTradesBySymbol).Methods("GET")
		api.HandleFunc("/stats", tradeHandler.GetStats).Methods("GET")
	}

	// Decision routes
	if decisionHandler != nil {
		api.HandleFunc("/decisions", decisionHandler.GetDecisions).Methods("GET")
		api.HandleFunc("/decisions/{id}", decisionHandler.GetDecision).Methods("GET")
	}

	// Notification routes
	if notificationHandler != nil {
		api.HandleFunc("/notifications", notificationHandler.GetNotifications).Methods("GET")
		api.HandleFunc("/notifications", notificationHandler.ClearNotifications).Methods("DELETE")
	}

	// Monitor routes
	if monitorHandler != nil {
		api.HandleFunc("/monitor/status", monitorHandler.GetStatus).Methods("GET")
		api.HandleFunc("/monitor/reconcile/{symbol}", monitorHandler.Reconcile).Methods("POST")
	}

	// WebSocket route
	if deps != nil && deps.WSHub != nil {
		router.HandleFunc("/ws/stream", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWS(deps.WSHub, w, r)
		})
	}

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	return router
}
