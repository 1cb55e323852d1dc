package monitor

import (
	"sync"
	"time"
)

// CloseEvent - событие защитного закрытия позиции
//
// Публикуется исполнителем после записи close-сделки. Подписчики:
// сверка (немедленная проверка записи) и WebSocket-рассылка.
type CloseEvent struct {
	Symbol    string
	OrderID   string
	TradeID   int
	Side      string
	Quantity  float64
	ExitPrice float64
	Pnl       float64
	Confirmed bool
	ClosedAt  time.Time
}

// CloseEvents - шина событий закрытия
//
// Доставка неблокирующая: переполненный подписчик теряет событие.
// Для сверки это допустимо - периодический обход находит пропущенные
// записи и чинит их тем же кодом.
type CloseEvents struct {
	mu   sync.RWMutex
	subs []chan CloseEvent
}

// NewCloseEvents создает шину событий
func NewCloseEvents() *CloseEvents {
	return &CloseEvents{}
}

// Subscribe возвращает канал событий с указанным буфером
func (ce *CloseEvents) Subscribe(buffer int) <-chan CloseEvent {
	if buffer <= 0 {
		buffer = 16
	}

	ch := make(chan CloseEvent, buffer)

	ce.mu.Lock()
	ce.subs = append(ce.subs, ch)
	ce.mu.Unlock()

	return ch
}

// Publish рассылает событие всем подписчикам без блокировки
func (ce *CloseEvents) Publish(event CloseEvent) {
	ce.mu.RLock()
	defer ce.mu.RUnlock()

	for _, ch := range ce.subs {
		select {
		case ch <- event:
		default:
			// Подписчик не успевает, событие подберет периодическая сверка
		}
	}
}

// SubscriberCount возвращает количество подписчиков
func (ce *CloseEvents) SubscriberCount() int {
	ce.mu.RLock()
	defer ce.mu.RUnlock()
	return len(ce.subs)
}
