package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"sentinel/internal/exchange"
	"sentinel/internal/models"
	"sentinel/internal/repository"
	"sentinel/pkg/utils"
)

const (
	// DefaultTickInterval - период проверки позиций по умолчанию
	DefaultTickInterval = 15 * time.Second

	positionsFetchTimeout = 10 * time.Second
)

// Ошибки жизненного цикла монитора
var (
	// ErrProtectionDisabled - программная защита выключена конфигурацией
	ErrProtectionDisabled = errors.New("code level protection is disabled")

	// ErrAlreadyRunning - повторный запуск работающего монитора
	ErrAlreadyRunning = errors.New("monitor is already running")
)

// Config - конфигурация цикла монитора
type Config struct {
	// Enabled - главный рубильник программной защиты.
	// false запрещает запуск цикла; API и метрики продолжают работать.
	Enabled bool

	// Interval - период тиков
	Interval time.Duration
}

// Monitor - цикл наблюдения за открытыми позициями
//
// Функции:
// - Тик каждые Interval: снимок позиций с биржи → порог → PnL% → закрытие
// - Зеркалирование позиций в БД и запись open-сделки при первом появлении
// - Учет наблюдений (MonitorRecord) с очисткой исчезнувших символов
// - Защита от наложения тиков: незавершенный тик пропускает следующий
//
// Карта записей наблюдения принадлежит только циклу; Status отдает
// копию для API. Паника внутри тика гасится, тик бросается, следующий
// начинает с чистого запроса к бирже.
type Monitor struct {
	cfg        Config
	gateway    Gateway
	calculator *ThresholdCalculator
	snapshots  *SnapshotProvider
	executor   *Executor
	positions  PositionStore
	trades     TradeStore
	notifCh    chan<- *models.Notification
	logger     *zap.Logger

	// Записи наблюдения по символам; пишет только тик, читает Status
	mu           sync.RWMutex
	records      map[string]*models.MonitorRecord
	lastTickAt   time.Time
	lastTickTook time.Duration

	running      atomic.Bool
	tickBusy     atomic.Bool
	tickCount    atomic.Uint64
	skippedTicks atomic.Uint64

	stopCh chan struct{}
	done   chan struct{}
}

// NewMonitor создает цикл наблюдения
func NewMonitor(
	cfg Config,
	gateway Gateway,
	calculator *ThresholdCalculator,
	snapshots *SnapshotProvider,
	executor *Executor,
	positions PositionStore,
	trades TradeStore,
	notifCh chan<- *models.Notification,
	logger *zap.Logger,
) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultTickInterval
	}

	return &Monitor{
		cfg:        cfg,
		gateway:    gateway,
		calculator: calculator,
		snapshots:  snapshots,
		executor:   executor,
		positions:  positions,
		trades:     trades,
		notifCh:    notifCh,
		logger:     logger,
		records:    make(map[string]*models.MonitorRecord),
	}
}

// ============================================================
// Жизненный цикл
// ============================================================

// Start запускает цикл в фоновой горутине
//
// При выключенной защите пишет одну ошибку в лог и возвращает
// ErrProtectionDisabled: остальной сервис продолжает работать.
func (m *Monitor) Start(ctx context.Context) error {
	if !m.cfg.Enabled {
		m.logger.Error("code level protection is disabled, monitor will not start")
		m.notifyLifecycle("Monitor not started: code level protection is disabled by configuration", models.SeverityError)
		return ErrProtectionDisabled
	}

	if !m.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	m.stopCh = make(chan struct{})
	m.done = make(chan struct{})

	m.logger.Info("position monitor started",
		zap.Duration("interval", m.cfg.Interval),
		zap.String("mode", m.calculator.Mode().String()),
	)
	m.notifyLifecycle(fmt.Sprintf("Monitor started in %s mode, tick every %s",
		m.calculator.Mode(), m.cfg.Interval), models.SeverityInfo)

	go m.run(ctx)

	return nil
}

// Stop останавливает цикл и дожидается его завершения
//
// Начавшийся тик дорабатывает до конца: начатое защитное закрытие
// не бросается на полпути.
func (m *Monitor) Stop() {
	if !m.running.CompareAndSwap(true, false) {
		return
	}

	close(m.stopCh)
	<-m.done

	m.logger.Info("position monitor stopped",
		zap.Uint64("ticks_completed", m.tickCount.Load()),
		zap.Uint64("ticks_skipped", m.skippedTicks.Load()),
	)
	m.notifyLifecycle("Monitor stopped", models.SeverityInfo)
}

// Running сообщает, работает ли цикл
func (m *Monitor) Running() bool {
	return m.running.Load()
}

// run крутит тики до остановки
func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	// Первая проверка сразу, не дожидаясь первого интервала
	m.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

// ============================================================
// Тик
// ============================================================

// tick выполняет одну проверку всех позиций
//
// Вход закрыт CAS-замком: если предыдущий тик еще работает, этот
// пропускается с логом и счетчиком вместо наложения проверок.
func (m *Monitor) tick(ctx context.Context) {
	if !m.tickBusy.CompareAndSwap(false, true) {
		m.skippedTicks.Add(1)
		TicksSkipped.Inc()
		m.logger.Warn("tick skipped, previous tick still running",
			zap.Uint64("skipped_total", m.skippedTicks.Load()),
		)
		return
	}
	defer m.tickBusy.Store(false)

	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("tick panicked, abandoning this cycle",
				zap.Any("panic", r),
			)
		}

		took := time.Since(started)
		m.mu.Lock()
		m.lastTickAt = started
		m.lastTickTook = took
		m.mu.Unlock()

		m.tickCount.Add(1)
		ObserveTick(took)
	}()

	m.checkPositions(ctx)
}

// checkPositions запрашивает снимок позиций и прогоняет проверку
func (m *Monitor) checkPositions(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, positionsFetchTimeout)
	positions, err := m.gateway.GetPositions(fetchCtx)
	cancel()
	if err != nil {
		m.logger.Warn("positions fetch failed, waiting for next tick", zap.Error(err))
		return
	}

	// Пустой счет: O(1) очистка учета, без запросов рынка
	if len(positions) == 0 {
		if cleared := m.clearRecords(); cleared > 0 {
			m.logger.Info("no open positions left, records cleared",
				zap.Int("cleared", cleared),
			)
			m.pruneMirrors(nil)
		}
		PositionsTracked.Set(0)
		return
	}

	PositionsTracked.Set(float64(len(positions)))

	// Режим решается один раз на тик, не на символ
	var marketData map[string]*models.MarketSnapshot
	if m.calculator.Dynamic() {
		marketData = m.fetchSnapshots(ctx, positions)
	}

	live := make([]string, 0, len(positions))
	for _, pos := range positions {
		live = append(live, pos.Contract)
		m.evaluatePosition(ctx, pos, marketData[pos.Contract], len(positions))
	}

	m.gcRecords(live)
	m.pruneMirrors(live)
}

// fetchSnapshots собирает рыночные срезы по всем удерживаемым символам
//
// Сбой по одному символу деградирует до статики только его и только
// на этот тик: символ просто не попадает в карту, остальные не страдают.
func (m *Monitor) fetchSnapshots(ctx context.Context, positions []*exchange.ContractPosition) map[string]*models.MarketSnapshot {
	snapshots := make(map[string]*models.MarketSnapshot, len(positions))

	for _, pos := range positions {
		symbol := pos.Contract
		if _, ok := snapshots[symbol]; ok {
			continue
		}

		snap, err := m.snapshots.Fetch(ctx, symbol)
		if err != nil {
			m.logger.Warn("market snapshot failed, symbol falls back to static this tick",
				zap.String("symbol", symbol),
				zap.Error(err),
			)
			RecordSnapshotDegraded(symbol)
			continue
		}
		snapshots[symbol] = snap
	}

	return snapshots
}

// evaluatePosition проверяет одну позицию и закрывает ее при пробое порога
func (m *Monitor) evaluatePosition(ctx context.Context, pos *exchange.ContractPosition, snapshot *models.MarketSnapshot, openCount int) {
	symbol := pos.Contract
	side := pos.Side()
	quantity := pos.Quantity()

	// Битые данные не доходят до сравнений: позиция пропускается
	// на этот тик, следующий снимок биржи даст свежие значения
	if !utils.AllFinite(pos.EntryPrice, pos.MarkPrice, pos.Leverage) ||
		pos.EntryPrice <= 0 || pos.MarkPrice <= 0 || pos.Leverage <= 0 || quantity <= 0 {
		m.logger.Warn("skipping position with invalid data",
			zap.String("symbol", symbol),
			zap.Float64("entry_price", pos.EntryPrice),
			zap.Float64("mark_price", pos.MarkPrice),
			zap.Float64("leverage", pos.Leverage),
			zap.Float64("quantity", quantity),
		)
		return
	}

	m.mirrorPosition(ctx, pos, side, quantity)

	pnlPercent := PnlPercent(pos.EntryPrice, pos.MarkPrice, pos.Leverage, side)

	record := m.touchRecord(symbol)

	decision := m.calculator.Threshold(symbol, pos.Leverage, side, snapshot)

	mode := ModeStatic
	if decision.IsDynamic {
		mode = ModeDynamic
	}
	ThresholdPercent.WithLabelValues(symbol, mode.String()).Set(decision.ThresholdPercent)

	m.logger.Debug("position checked",
		zap.String("symbol", symbol),
		zap.String("side", side),
		zap.Float64("pnl_percent", pnlPercent),
		zap.Float64("threshold_percent", decision.ThresholdPercent),
		zap.String("risk_level", decision.RiskLevel),
		zap.Int("check_count", record.CheckCount),
	)

	if pnlPercent > decision.ThresholdPercent {
		return
	}

	RecordBreach(symbol)
	m.logger.Warn("stop loss threshold breached",
		zap.String("symbol", symbol),
		zap.String("side", side),
		zap.Float64("pnl_percent", pnlPercent),
		zap.Float64("threshold_percent", decision.ThresholdPercent),
		zap.String("risk_level", decision.RiskLevel),
		zap.Bool("dynamic", decision.IsDynamic),
	)
	m.notifyBreach(symbol, side, pnlPercent, decision)

	closed := m.executor.ClosePosition(ctx, CloseRequest{
		Symbol:           symbol,
		Side:             side,
		Quantity:         quantity,
		EntryPrice:       pos.EntryPrice,
		CurrentPrice:     pos.MarkPrice,
		Leverage:         pos.Leverage,
		PnlPercent:       pnlPercent,
		ThresholdPercent: decision.ThresholdPercent,
		RiskLabel:        decision.RiskLevel,
		OpenPositions:    openCount,
	})
	if closed {
		m.deleteRecord(symbol)
	}
	// Неудача оставляет запись: следующий тик заново увидит пробой
}

// PnlPercent считает PnL позиции в процентах с учетом плеча
//
// ((mark − entry) / entry) × 100 × направление × плечо. Для long
// падение цены дает отрицательный результат, для short - рост.
func PnlPercent(entry, mark, leverage float64, side string) float64 {
	return (mark - entry) / entry * 100 * models.DirectionFor(side) * leverage
}

// ============================================================
// Зеркалирование позиций
// ============================================================

// mirrorPosition обновляет копию позиции в БД
//
// Первое появление символа (зеркала еще нет) дополнительно пишет
// open-сделку: у будущего закрытия всегда есть парная открывающая
// запись для сверки. Сбои зеркалирования не блокируют защиту.
func (m *Monitor) mirrorPosition(ctx context.Context, pos *exchange.ContractPosition, side string, quantity float64) {
	_, err := m.positions.GetBySymbol(pos.Contract)
	firstSeen := errors.Is(err, repository.ErrPositionNotFound)
	if err != nil && !firstSeen {
		m.logger.Warn("position mirror lookup failed",
			zap.String("symbol", pos.Contract),
			zap.Error(err),
		)
		return
	}

	mirror := &models.Position{
		Symbol:     pos.Contract,
		Side:       side,
		Quantity:   quantity,
		EntryPrice: pos.EntryPrice,
		MarkPrice:  pos.MarkPrice,
		Leverage:   pos.Leverage,
	}
	if err := m.positions.Upsert(mirror); err != nil {
		m.logger.Warn("position mirror upsert failed",
			zap.String("symbol", pos.Contract),
			zap.Error(err),
		)
		return
	}

	if firstSeen {
		m.recordObservedOpen(ctx, pos, side, quantity)
	}
}

// recordObservedOpen пишет open-сделку для впервые увиденной позиции
//
// Сам вход выполнялся вне этого сервиса, поэтому order_id пуст, а
// комиссия оценивается по ставке тейкера на цену входа.
func (m *Monitor) recordObservedOpen(ctx context.Context, pos *exchange.ContractPosition, side string, quantity float64) {
	multiplier := 1.0
	multCtx, cancel := context.WithTimeout(ctx, multiplierTimeout)
	if mult, err := m.gateway.GetContractMultiplier(multCtx, pos.Contract); err == nil {
		multiplier = mult
	}
	cancel()

	trade := &models.TradeRecord{
		Symbol:   pos.Contract,
		Side:     side,
		Type:     models.TradeTypeOpen,
		Price:    pos.EntryPrice,
		Quantity: quantity,
		Leverage: pos.Leverage,
		Pnl:      0,
		Fee:      pos.EntryPrice * quantity * multiplier * takerFeeRate,
		Status:   models.TradeStatusFilled,
	}
	if err := m.trades.Create(trade); err != nil {
		m.logger.Warn("failed to record observed open trade",
			zap.String("symbol", pos.Contract),
			zap.Error(err),
		)
		return
	}

	m.logger.Info("new position observed",
		zap.String("symbol", pos.Contract),
		zap.String("side", side),
		zap.Float64("quantity", quantity),
		zap.Float64("entry_price", pos.EntryPrice),
		zap.Float64("leverage", pos.Leverage),
	)
}

// pruneMirrors удаляет из БД зеркала, отсутствующие в снимке биржи
//
// Чинит и хвосты после рестарта: строка, пережившая падение сервиса,
// уходит первым же тиком.
func (m *Monitor) pruneMirrors(live []string) {
	deleted, err := m.positions.DeleteMissing(live)
	if err != nil {
		m.logger.Warn("failed to prune stale position mirrors", zap.Error(err))
		return
	}
	if deleted > 0 {
		m.logger.Info("stale position mirrors removed", zap.Int64("deleted", deleted))
	}
}

// ============================================================
// Записи наблюдения
// ============================================================

// touchRecord возвращает запись наблюдения, создавая ее при первом появлении
func (m *Monitor) touchRecord(symbol string) models.MonitorRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[symbol]
	if !ok {
		rec = &models.MonitorRecord{
			Symbol:      symbol,
			FirstSeenAt: time.Now(),
		}
		m.records[symbol] = rec
	}
	rec.CheckCount++
	rec.LastCheckTime = time.Now()

	return *rec
}

// deleteRecord удаляет запись наблюдения после успешного закрытия
func (m *Monitor) deleteRecord(symbol string) {
	m.mu.Lock()
	delete(m.records, symbol)
	m.mu.Unlock()
}

// clearRecords сбрасывает весь учет, возвращает количество удаленных
func (m *Monitor) clearRecords() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.records)
	if n > 0 {
		m.records = make(map[string]*models.MonitorRecord)
	}
	return n
}

// gcRecords удаляет записи символов, исчезнувших из снимка биржи
//
// Позицию могли закрыть руками или ликвидировать: учет наблюдения
// не должен ее переживать.
func (m *Monitor) gcRecords(live []string) {
	alive := make(map[string]struct{}, len(live))
	for _, symbol := range live {
		alive[symbol] = struct{}{}
	}

	var gone []string
	m.mu.Lock()
	for symbol := range m.records {
		if _, ok := alive[symbol]; !ok {
			gone = append(gone, symbol)
			delete(m.records, symbol)
		}
	}
	m.mu.Unlock()

	if len(gone) > 0 {
		m.logger.Info("positions disappeared from exchange, records dropped",
			zap.Strings("symbols", gone),
		)
	}
}

// ============================================================
// Статус и уведомления
// ============================================================

// Status возвращает срез состояния цикла для API
func (m *Monitor) Status() models.MonitorStatus {
	m.mu.RLock()
	records := make([]models.MonitorRecord, 0, len(m.records))
	for _, rec := range m.records {
		records = append(records, *rec)
	}
	lastAt := m.lastTickAt
	lastTook := m.lastTickTook
	m.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		return records[i].Symbol < records[j].Symbol
	})

	status := models.MonitorStatus{
		Running:      m.running.Load(),
		Mode:         m.calculator.Mode().String(),
		TickCount:    m.tickCount.Load(),
		SkippedTicks: m.skippedTicks.Load(),
		LastTickAt:   lastAt,
		Records:      records,
	}
	if lastTook > 0 {
		status.LastTickTook = lastTook.String()
	}

	return status
}

// notifyLifecycle отправляет уведомление о запуске/остановке монитора
func (m *Monitor) notifyLifecycle(message, severity string) {
	if m.notifCh == nil {
		return
	}

	notif := &models.Notification{
		Type:     models.NotificationTypeMonitor,
		Severity: severity,
		Message:  message,
	}

	select {
	case m.notifCh <- notif:
	default:
	}
}

// notifyBreach отправляет уведомление о пробое порога
func (m *Monitor) notifyBreach(symbol, side string, pnlPercent float64, decision ThresholdDecision) {
	if m.notifCh == nil {
		return
	}

	notif := &models.Notification{
		Type:     models.NotificationTypeStopLoss,
		Severity: models.SeverityWarn,
		Symbol:   symbol,
		Message: fmt.Sprintf("Stop loss breached for %s %s: pnl %.2f%% <= threshold %.2f%%, closing position",
			symbol, side, pnlPercent, decision.ThresholdPercent),
		Meta: map[string]interface{}{
			"side":              side,
			"pnl_percent":       pnlPercent,
			"threshold_percent": decision.ThresholdPercent,
			"risk_level":        decision.RiskLevel,
			"dynamic":           decision.IsDynamic,
		},
	}

	select {
	case m.notifCh <- notif:
	default:
	}
}
