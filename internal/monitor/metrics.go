package monitor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики монитора
// ============================================================

// ============ Цикл мониторинга ============

// TicksTotal - количество выполненных тиков
var TicksTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "sentinel",
		Subsystem: "monitor",
		Name:      "ticks_total",
		Help:      "Total number of completed monitor ticks",
	},
)

// TicksSkipped - тики, пропущенные из-за незавершенного предыдущего
var TicksSkipped = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "sentinel",
		Subsystem: "monitor",
		Name:      "ticks_skipped_total",
		Help:      "Ticks skipped because the previous tick was still running",
	},
)

// TickDuration - длительность тика
var TickDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "sentinel",
		Subsystem: "monitor",
		Name:      "tick_duration_seconds",
		Help:      "Monitor tick duration in seconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
	},
)

// PositionsTracked - количество отслеживаемых позиций
var PositionsTracked = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "sentinel",
		Subsystem: "monitor",
		Name:      "positions_tracked",
		Help:      "Number of positions currently tracked by the monitor",
	},
)

// SnapshotDegraded - символы, откатившиеся в статику из-за сбоя снимка
var SnapshotDegraded = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "sentinel",
		Subsystem: "monitor",
		Name:      "snapshot_degraded_total",
		Help:      "Symbols degraded to static mode due to snapshot fetch failure",
	},
	[]string{"symbol"},
)

// ============ Пороги и срабатывания ============

// ThresholdPercent - текущий порог по символу и режиму
var ThresholdPercent = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "sentinel",
		Subsystem: "monitor",
		Name:      "threshold_percent",
		Help:      "Current stop loss threshold in percent",
	},
	[]string{"symbol", "mode"},
)

// BreachesTotal - обнаруженные пробои порога
var BreachesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "sentinel",
		Subsystem: "risk",
		Name:      "breaches_total",
		Help:      "Number of stop loss threshold breaches detected",
	},
	[]string{"symbol"},
)

// ClosesTotal - попытки защитного закрытия по результату
var ClosesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "sentinel",
		Subsystem: "risk",
		Name:      "closes_total",
		Help:      "Protective close attempts by result",
	},
	[]string{"result"}, // success, failed
)

// PriceSourceUsed - источник итоговой цены выхода
var PriceSourceUsed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "sentinel",
		Subsystem: "risk",
		Name:      "price_source_used_total",
		Help:      "Exit price source used by protective closes",
	},
	[]string{"source"}, // fill, ws_ticker, rest_ticker, tick_price
)

// ============ Сверка ============

// RepairsTotal - прогоны сверки по исходу
var RepairsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "sentinel",
		Subsystem: "reconcile",
		Name:      "repairs_total",
		Help:      "Reconciliation runs by outcome",
	},
	[]string{"outcome"}, // corrected, clean, cannot_fix, no_record, error
)

// ============ Вспомогательные функции ============

// ObserveTick записывает длительность завершенного тика
func ObserveTick(took time.Duration) {
	TicksTotal.Inc()
	TickDuration.Observe(took.Seconds())
}

// RecordBreach записывает обнаруженный пробой порога
func RecordBreach(symbol string) {
	BreachesTotal.WithLabelValues(symbol).Inc()
}

// RecordClose записывает результат попытки закрытия
func RecordClose(success bool) {
	if success {
		ClosesTotal.WithLabelValues("success").Inc()
	} else {
		ClosesTotal.WithLabelValues("failed").Inc()
	}
}

// RecordPriceSource записывает использованный источник цены выхода
func RecordPriceSource(source string) {
	PriceSourceUsed.WithLabelValues(source).Inc()
}

// RecordRepair записывает исход прогона сверки
func RecordRepair(outcome string) {
	RepairsTotal.WithLabelValues(outcome).Inc()
}

// RecordSnapshotDegraded записывает откат символа в статический режим
func RecordSnapshotDegraded(symbol string) {
	SnapshotDegraded.WithLabelValues(symbol).Inc()
}
