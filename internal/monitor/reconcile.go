package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"sentinel/internal/models"
	"sentinel/internal/repository"
	"sentinel/pkg/utils"
)

// Допуски расхождений: меньшие дельты - шум плавающей точки, не ошибка
const (
	repairPriceTolerance = 0.01
	repairPnlTolerance   = 0.5
	repairFeeTolerance   = 0.1

	// DefaultSweepInterval - период независимого обхода сверки
	DefaultSweepInterval = 5 * time.Minute

	// DefaultSweepLookback - окно давности close-сделок для обхода
	DefaultSweepLookback = 24 * time.Hour

	sweepBatchLimit = 200
)

// Исходы прогона сверки, попадают в метрику repairs_total
const (
	RepairCorrected = "corrected"  // запись расходилась и исправлена
	RepairClean     = "clean"      // запись уже корректна, записи нет
	RepairCannotFix = "cannot_fix" // нет парного open или валидной цены, терминально
	RepairNoRecord  = "no_record"  // по символу нет close-сделок
	RepairError     = "error"      // временный сбой, следующий обход повторит
)

// RepairConfig - конфигурация сверки
type RepairConfig struct {
	SweepInterval time.Duration
	SweepLookback time.Duration
}

// Repairer сверяет записанные close-сделки с первоисточником
//
// Функции:
// - Пересчет цены выхода, комиссии и PnL последней close-сделки символа
//   по парной open-сделке и той же формуле, что у исполнителя
// - Исправление строки только при расхождении сверх допусков
// - Немедленный прогон по событию закрытия (подписка на CloseEvents)
// - Независимый периодический обход недавних закрытий: падение между
//   закрытием и немедленной сверкой не оставляет битую строку навсегда
//
// Прогон идемпотентен: повторный запуск по корректной записи ничего
// не пишет. Любой вердикт кроме error терминален для этой записи.
type Repairer struct {
	trades  TradeStore
	gateway Gateway
	events  *CloseEvents
	notifCh chan<- *models.Notification
	cfg     RepairConfig
	logger  *zap.Logger
}

// NewRepairer создает сверку
func NewRepairer(
	trades TradeStore,
	gateway Gateway,
	events *CloseEvents,
	notifCh chan<- *models.Notification,
	cfg RepairConfig,
	logger *zap.Logger,
) *Repairer {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.SweepLookback <= 0 {
		cfg.SweepLookback = DefaultSweepLookback
	}

	return &Repairer{
		trades:  trades,
		gateway: gateway,
		events:  events,
		notifCh: notifCh,
		cfg:     cfg,
		logger:  logger,
	}
}

// Run обслуживает подписку на закрытия и периодический обход
//
// Блокируется до отмены контекста, запускается в отдельной горутине.
func (r *Repairer) Run(ctx context.Context) {
	var closures <-chan CloseEvent
	if r.events != nil {
		closures = r.events.Subscribe(16)
	}

	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()

	r.logger.Info("reconciliation repairer started",
		zap.Duration("sweep_interval", r.cfg.SweepInterval),
		zap.Duration("sweep_lookback", r.cfg.SweepLookback),
	)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciliation repairer stopped")
			return
		case event := <-closures:
			r.Repair(ctx, event.Symbol)
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep прогоняет сверку по недавним close-сделкам
func (r *Repairer) Sweep(ctx context.Context) {
	since := time.Now().Add(-r.cfg.SweepLookback)

	closes, err := r.trades.GetClosesSince(since, sweepBatchLimit)
	if err != nil {
		r.logger.Warn("reconciliation sweep query failed", zap.Error(err))
		return
	}
	if len(closes) == 0 {
		return
	}

	// Сверка работает по последнему закрытию символа,
	// поэтому символы обходятся по одному разу
	seen := make(map[string]struct{}, len(closes))
	corrected := 0
	for _, trade := range closes {
		if _, ok := seen[trade.Symbol]; ok {
			continue
		}
		seen[trade.Symbol] = struct{}{}

		if outcome := r.Repair(ctx, trade.Symbol); outcome == RepairCorrected {
			corrected++
		}
	}

	if corrected > 0 {
		r.logger.Info("reconciliation sweep corrected records",
			zap.Int("symbols_checked", len(seen)),
			zap.Int("corrected", corrected),
		)
	}
}

// Repair сверяет последнюю close-сделку символа, возвращает исход
//
// Шаги: найти закрытие → найти парное открытие → добыть цену выхода →
// пересчитать → сравнить с допусками → исправить при расхождении.
// Отсутствие пары или валидной цены - терминальное "cannot fix":
// запись остается как есть, без бесконечных повторов.
func (r *Repairer) Repair(ctx context.Context, symbol string) (outcome string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("repair panicked",
				zap.String("symbol", symbol),
				zap.Any("panic", rec),
			)
			outcome = RepairError
		}
		RecordRepair(outcome)
	}()

	closeTrade, err := r.trades.GetLatestClose(symbol)
	if err != nil {
		if errors.Is(err, repository.ErrTradeNotFound) {
			r.logger.Debug("no close trades to reconcile", zap.String("symbol", symbol))
			return RepairNoRecord
		}
		r.logger.Warn("reconciliation close lookup failed",
			zap.String("symbol", symbol),
			zap.Error(err),
		)
		return RepairError
	}

	openTrade, err := r.trades.GetLastOpenBefore(symbol, closeTrade.CreatedAt)
	if err != nil {
		if errors.Is(err, repository.ErrTradeNotFound) {
			r.logger.Warn("cannot fix close trade: no paired open record",
				zap.String("symbol", symbol),
				zap.Int("trade_id", closeTrade.ID),
			)
			return RepairCannotFix
		}
		r.logger.Warn("reconciliation open lookup failed",
			zap.String("symbol", symbol),
			zap.Error(err),
		)
		return RepairError
	}

	exitPrice, ok := r.resolveExitPrice(ctx, closeTrade)
	if !ok {
		r.logger.Warn("cannot fix close trade: no valid exit price from record or ticker",
			zap.String("symbol", symbol),
			zap.Int("trade_id", closeTrade.ID),
			zap.Float64("stored_price", closeTrade.Price),
		)
		return RepairCannotFix
	}

	// Без множителя контракта пересчет недостоверен: откладываем
	// до следующего обхода вместо правки наугад
	multCtx, cancel := context.WithTimeout(ctx, multiplierTimeout)
	multiplier, err := r.gateway.GetContractMultiplier(multCtx, symbol)
	cancel()
	if err != nil {
		r.logger.Warn("reconciliation multiplier fetch failed",
			zap.String("symbol", symbol),
			zap.Error(err),
		)
		return RepairError
	}

	_, fee, pnl := ClosePnl(openTrade.Price, exitPrice, closeTrade.Quantity, multiplier, closeTrade.Side)

	priceDelta := math.Abs(exitPrice - closeTrade.Price)
	pnlDelta := math.Abs(pnl - closeTrade.Pnl)
	feeDelta := math.Abs(fee - closeTrade.Fee)

	if priceDelta <= repairPriceTolerance && pnlDelta <= repairPnlTolerance && feeDelta <= repairFeeTolerance {
		r.logger.Debug("close trade already correct",
			zap.String("symbol", symbol),
			zap.Int("trade_id", closeTrade.ID),
		)
		return RepairClean
	}

	if err := r.trades.UpdateCorrection(closeTrade.ID, exitPrice, pnl, fee, models.TradeStatusFilled); err != nil {
		r.logger.Error("failed to write trade correction",
			zap.String("symbol", symbol),
			zap.Int("trade_id", closeTrade.ID),
			zap.Error(err),
		)
		return RepairError
	}

	r.logger.Warn("close trade corrected by reconciliation",
		zap.String("symbol", symbol),
		zap.Int("trade_id", closeTrade.ID),
		zap.Float64("price_old", closeTrade.Price),
		zap.Float64("price_new", exitPrice),
		zap.Float64("pnl_old", closeTrade.Pnl),
		zap.Float64("pnl_new", pnl),
		zap.Float64("fee_old", closeTrade.Fee),
		zap.Float64("fee_new", fee),
	)
	r.notifyCorrected(symbol, closeTrade, exitPrice, pnl)

	return RepairCorrected
}

// resolveExitPrice выбирает цену выхода для пересчета
//
// Записанная цена используется как есть, если она валидна; свежий
// тикер запрашивается только для нулевой или нечисловой записи.
func (r *Repairer) resolveExitPrice(ctx context.Context, trade *models.TradeRecord) (float64, bool) {
	if trade.Price > 0 && utils.IsFinite(trade.Price) {
		return trade.Price, true
	}

	fetchCtx, cancel := context.WithTimeout(ctx, tickerFetchTimeout)
	defer cancel()

	ticker, err := r.gateway.GetTicker(fetchCtx, trade.Symbol)
	if err != nil {
		r.logger.Debug("reconciliation ticker fetch failed",
			zap.String("symbol", trade.Symbol),
			zap.Error(err),
		)
		return 0, false
	}

	price, err := firstPositive(ticker.Last, ticker.MarkPrice)
	if err != nil {
		return 0, false
	}
	return price, true
}

// notifyCorrected отправляет уведомление об исправленной записи
func (r *Repairer) notifyCorrected(symbol string, old *models.TradeRecord, price, pnl float64) {
	if r.notifCh == nil {
		return
	}

	notif := &models.Notification{
		Type:     models.NotificationTypeRepair,
		Severity: models.SeverityWarn,
		Symbol:   symbol,
		Message: fmt.Sprintf("Trade %d for %s corrected: price %.4f -> %.4f, pnl %.2f -> %.2f",
			old.ID, symbol, old.Price, price, old.Pnl, pnl),
		Meta: map[string]interface{}{
			"trade_id":  old.ID,
			"price_old": old.Price,
			"price_new": price,
			"pnl_old":   old.Pnl,
			"pnl_new":   pnl,
		},
	}

	select {
	case r.notifCh <- notif:
	default:
	}
}
