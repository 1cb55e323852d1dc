package websocket

import (
	"bytes"
	"log"
	"sync"
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"

	"sentinel/internal/models"
)

// Broadcast сериализует каждое сообщение один раз на всех клиентов
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ============ sync.Pool для JSON буферов ============
// Убирает аллокации при каждом Broadcast

var jsonBufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// Hub управляет всеми активными WebSocket соединениями
//
// Назначение:
// Центральный менеджер для broadcast сообщений всем подключенным клиентам.
// Обеспечивает real-time обновления dashboard без необходимости polling.
//
// Функции:
// - Регистрация новых WebSocket клиентов
// - Отмена регистрации отключенных клиентов
// - Broadcast сообщений всем активным клиентам
// - Очистка медленных и отключенных соединений
// - Потокобезопасная работа с клиентами (sync.RWMutex)
//
// Типы сообщений:
// - positionUpdate: состояние позиции под наблюдением (цены, PnL)
// - notification: новое уведомление монитора
// - closeUpdate: защитное закрытие позиции
// - statsUpdate: обновление статистики закрытий
// - monitorStatus: состояние цикла монитора
//
// Использование:
// 1. Создать hub: hub := NewHub()
// 2. Запустить в горутине: go hub.Run()
// 3. Отправлять сообщения: hub.BroadcastNotification(notif)
type Hub struct {
	// Зарегистрированные клиенты
	clients map[*Client]bool

	// Broadcast канал для отправки сообщений всем клиентам
	broadcast chan []byte

	// Регистрация нового клиента
	register chan *Client

	// Отмена регистрации клиента
	unregister chan *Client

	// Остановка главного цикла
	stop chan struct{}

	// Счетчик сообщений, отброшенных при переполнении broadcast канала
	dropped uint64

	// Mutex для потокобезопасного доступа к clients
	mu sync.RWMutex
}

// NewHub создает новый Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
	}
}

// Run запускает главный цикл Hub
//
// Должен запускаться в отдельной горутине: go hub.Run()
// Обрабатывает регистрацию, отмену регистрации и broadcast.
//
// Рассылка идет по копии списка клиентов без удержания Lock,
// медленные клиенты удаляются отдельным проходом под Write Lock.
func (h *Hub) Run() {
	for {
		select {
		case <-h.stop:
			// Закрываем все клиентские каналы, writePump отправит CloseMessage
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Printf("Client connected. Total clients: %d", len(h.clients))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			log.Printf("Client disconnected. Total clients: %d", len(h.clients))

		case message := <-h.broadcast:
			// Копируем список клиентов под коротким RLock
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			// Отправляем без блокировки (не задерживаем register/unregister)
			var toRemove []*Client
			for _, client := range clients {
				select {
				case client.send <- message:
				default:
					// Клиент не успевает читать - помечаем для удаления
					toRemove = append(toRemove, client)
				}
			}

			// Удаляем медленных клиентов под Write Lock
			if len(toRemove) > 0 {
				h.mu.Lock()
				for _, client := range toRemove {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
				}
				h.mu.Unlock()
				log.Printf("Removed %d slow clients. Total clients: %d", len(toRemove), len(h.clients))
			}
		}
	}
}

// Broadcast отправляет произвольное сообщение всем подключенным клиентам
//
// Сериализация через sync.Pool буферов: одно сообщение кодируется
// один раз независимо от числа клиентов.
func (h *Hub) Broadcast(message interface{}) {
	buf := jsonBufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	if err := json.NewEncoder(buf).Encode(message); err != nil {
		log.Printf("Error marshaling broadcast message: %v", err)
		jsonBufferPool.Put(buf)
		return
	}

	// Убираем trailing newline от Encode
	data := buf.Bytes()
	if len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}

	// Копируем данные (буфер вернётся в пул)
	msgCopy := make([]byte, len(data))
	copy(msgCopy, data)

	jsonBufferPool.Put(buf)

	// Монитор не должен блокироваться на dashboard: при переполнении
	// канала сообщение отбрасывается
	select {
	case h.broadcast <- msgCopy:
	default:
		atomic.AddUint64(&h.dropped, 1)
	}
}

// Stop останавливает главный цикл Hub и отключает всех клиентов
func (h *Hub) Stop() {
	select {
	case <-h.stop:
	default:
		close(h.stop)
	}
}

// DroppedMessages возвращает число сообщений, отброшенных из-за переполнения
func (h *Hub) DroppedMessages() uint64 {
	return atomic.LoadUint64(&h.dropped)
}

// ============ Типизированные broadcast хелперы ============

// BroadcastPositionUpdate отправляет обновление наблюдаемой позиции
func (h *Hub) BroadcastPositionUpdate(pos *models.Position, pnlPercent float64) {
	h.Broadcast(NewPositionUpdateMessage(pos, pnlPercent))
}

// BroadcastNotification отправляет новое уведомление
func (h *Hub) BroadcastNotification(notif *models.Notification) {
	h.Broadcast(NewNotificationMessage(notif))
}

// BroadcastCloseUpdate отправляет событие защитного закрытия
func (h *Hub) BroadcastCloseUpdate(trade *models.TradeRecord) {
	h.Broadcast(NewCloseUpdateMessage(trade))
}

// BroadcastStatsUpdate отправляет обновление статистики закрытий
func (h *Hub) BroadcastStatsUpdate(stats *models.TradeStats) {
	h.Broadcast(NewStatsUpdateMessage(stats))
}

// BroadcastMonitorStatus отправляет состояние цикла монитора
func (h *Hub) BroadcastMonitorStatus(status *models.MonitorStatus) {
	h.Broadcast(NewMonitorStatusMessage(status))
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
