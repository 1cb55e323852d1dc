package models

import "time"

// MonitorRecord представляет учёт наблюдения за одной позицией
//
// Запись создаётся при первом появлении символа в снимке биржи,
// живёт пока позиция открыта и удаляется тиком после её исчезновения.
// Владеет картой записей только цикл монитора.
type MonitorRecord struct {
	Symbol        string    `json:"symbol"`
	CheckCount    int       `json:"check_count"`     // сколько тиков позиция под наблюдением
	LastCheckTime time.Time `json:"last_check_time"` // время последней проверки
	FirstSeenAt   time.Time `json:"first_seen_at"`   // первое появление в снимке
}

// MonitorStatus представляет состояние цикла монитора для API
type MonitorStatus struct {
	Running       bool            `json:"running"`
	Mode          string          `json:"mode"` // static, dynamic
	TickCount     uint64          `json:"tick_count"`
	SkippedTicks  uint64          `json:"skipped_ticks"` // тики, пропущенные из-за незавершённого предыдущего
	LastTickAt    time.Time       `json:"last_tick_at"`
	LastTickTook  string          `json:"last_tick_took,omitempty"`
	Records       []MonitorRecord `json:"records"`
}
