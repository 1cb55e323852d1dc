package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"sentinel/internal/exchange"
	"sentinel/internal/models"
	"sentinel/internal/repository"
	"sentinel/pkg/retry"
	"sentinel/pkg/utils"
)

const (
	// Комиссия тейкера, закладывается на обе стороны сделки
	takerFeeRate = 0.0005

	orderSubmitTimeout    = 10 * time.Second
	tickerFetchTimeout    = 5 * time.Second
	multiplierTimeout     = 5 * time.Second
	accountValueTimeout   = 5 * time.Second
	confirmOverallTimeout = 10 * time.Second
)

// errOrderNotFilled - ордер еще не исполнен, поллинг продолжается
var errOrderNotFilled = errors.New("order not filled yet")

// CloseRequest - параметры защитного закрытия позиции
type CloseRequest struct {
	Symbol           string
	Side             string
	Quantity         float64
	EntryPrice       float64
	CurrentPrice     float64
	Leverage         float64
	PnlPercent       float64
	ThresholdPercent float64
	RiskLabel        string

	// Количество открытых позиций на момент срабатывания, для аудита
	OpenPositions int
}

// Executor закрывает позицию при пробое порога
//
// Последовательность: Submit → Confirm → Resolve price → Compute PnL →
// Persist → Cleanup. Любая ошибка логируется и возвращает false без
// внутреннего повтора: позиция остается открытой на бирже, следующий
// тик заново обнаружит пробой и повторит всю последовательность.
type Executor struct {
	gateway   Gateway
	trades    TradeStore
	decisions DecisionStore
	positions PositionStore
	events    *CloseEvents
	notifCh   chan<- *models.Notification
	logger    *zap.Logger
}

// NewExecutor создает исполнитель закрытий
func NewExecutor(
	gateway Gateway,
	trades TradeStore,
	decisions DecisionStore,
	positions PositionStore,
	events *CloseEvents,
	notifCh chan<- *models.Notification,
	logger *zap.Logger,
) *Executor {
	return &Executor{
		gateway:   gateway,
		trades:    trades,
		decisions: decisions,
		positions: positions,
		events:    events,
		notifCh:   notifCh,
		logger:    logger,
	}
}

// ClosePosition выполняет защитное закрытие
//
// Возвращает true только если close-сделка записана; false оставляет
// позицию на повторное срабатывание в следующем тике.
func (e *Executor) ClosePosition(ctx context.Context, req CloseRequest) (success bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("close position panicked",
				zap.String("symbol", req.Symbol),
				zap.Any("panic", r),
			)
			success = false
		}
		RecordClose(success)
	}()

	e.logger.Info("submitting protective close order",
		zap.String("symbol", req.Symbol),
		zap.String("side", req.Side),
		zap.Float64("quantity", req.Quantity),
		zap.Float64("pnl_percent", req.PnlPercent),
		zap.Float64("threshold_percent", req.ThresholdPercent),
		zap.String("risk_level", req.RiskLabel),
	)

	// Submit: reduce-only маркет-ордер против текущей стороны
	closeSize := -models.DirectionFor(req.Side) * req.Quantity

	submitCtx, cancel := context.WithTimeout(ctx, orderSubmitTimeout)
	orderID, err := e.gateway.PlaceReduceOnlyOrder(submitCtx, req.Symbol, closeSize)
	cancel()
	if err != nil {
		e.logger.Error("close order submit failed",
			zap.String("symbol", req.Symbol),
			zap.Error(err),
		)
		e.notifyCloseFailed(req, err)
		return false
	}

	// Confirm: до 5 опросов статуса с шагом 500ms
	exitPrice, confirmed := e.confirmFill(ctx, orderID)

	// Resolve price: упорядоченная цепочка источников
	priceSource := "fill"
	if !confirmed || exitPrice <= 0 {
		exitPrice, priceSource = e.resolveExitPrice(ctx, req)
	}
	RecordPriceSource(priceSource)

	// Compute PnL
	multiplier := e.contractMultiplier(ctx, req.Symbol)
	gross, fee, pnl := ClosePnl(req.EntryPrice, exitPrice, req.Quantity, multiplier, req.Side)

	status := models.TradeStatusFilled
	if !confirmed {
		status = models.TradeStatusPending
	}

	// Persist: close-сделка, решение, удаление зеркала позиции
	trade := &models.TradeRecord{
		OrderID:  orderID,
		Symbol:   req.Symbol,
		Side:     req.Side,
		Type:     models.TradeTypeClose,
		Price:    exitPrice,
		Quantity: req.Quantity,
		Leverage: req.Leverage,
		Pnl:      pnl,
		Fee:      fee,
		Status:   status,
	}
	if err := e.trades.Create(trade); err != nil {
		e.logger.Error("failed to persist close trade",
			zap.String("symbol", req.Symbol),
			zap.String("order_id", orderID),
			zap.Error(err),
		)
		e.notifyCloseFailed(req, err)
		return false
	}

	if err := e.decisions.Create(e.buildDecision(req, orderID, exitPrice, pnl)); err != nil {
		e.logger.Error("failed to persist decision record",
			zap.String("symbol", req.Symbol),
			zap.Error(err),
		)
		return false
	}

	if err := e.positions.DeleteBySymbol(req.Symbol); err != nil && !errors.Is(err, repository.ErrPositionNotFound) {
		e.logger.Error("failed to delete position mirror",
			zap.String("symbol", req.Symbol),
			zap.Error(err),
		)
		return false
	}

	e.logger.Info("position closed",
		zap.String("symbol", req.Symbol),
		zap.String("order_id", orderID),
		zap.Float64("exit_price", exitPrice),
		zap.String("price_source", priceSource),
		zap.Float64("gross_pnl", gross),
		zap.Float64("fee", fee),
		zap.Float64("pnl", pnl),
		zap.Bool("confirmed", confirmed),
	)

	e.notifyClosed(req, exitPrice, pnl, status)

	// Cleanup: событие закрытия, сверка выполняется подписчиком
	e.events.Publish(CloseEvent{
		Symbol:    req.Symbol,
		OrderID:   orderID,
		TradeID:   trade.ID,
		Side:      req.Side,
		Quantity:  req.Quantity,
		ExitPrice: exitPrice,
		Pnl:       pnl,
		Confirmed: confirmed,
		ClosedAt:  time.Now(),
	})

	return true
}

// confirmFill опрашивает статус ордера до подтверждения исполнения
//
// Возвращает цену исполнения и признак подтверждения. Исчерпание
// бюджета опросов не фатально: цену добудет цепочка источников.
func (e *Executor) confirmFill(ctx context.Context, orderID string) (float64, bool) {
	confirmCtx, cancel := context.WithTimeout(ctx, confirmOverallTimeout)
	defer cancel()

	price, err := retry.DoWithResult(confirmCtx, func() (float64, error) {
		status, err := e.gateway.GetOrderStatus(confirmCtx, orderID)
		if err != nil {
			return 0, err
		}
		if status.Status == exchange.OrderStatusFinished && status.FillPrice > 0 {
			return status.FillPrice, nil
		}
		return 0, errOrderNotFilled
	}, retry.ConfirmConfig())

	if err != nil {
		e.logger.Warn("order not confirmed within polling budget",
			zap.String("order_id", orderID),
			zap.Error(err),
		)
		return 0, false
	}

	return price, true
}

// priceSource - именованный источник цены выхода
type priceSource struct {
	name  string
	fetch func(ctx context.Context) (float64, error)
}

// resolveExitPrice проходит источники цены по порядку до первого успеха
//
// Порядок: свежий WS-тикер из кэша, REST-тикер (last, затем mark),
// наконец цена тика, вызвавшего закрытие. Последний источник не может
// отказать, поэтому цена выхода никогда не остается нулевой.
func (e *Executor) resolveExitPrice(ctx context.Context, req CloseRequest) (float64, string) {
	sources := []priceSource{
		{
			name: "ws_ticker",
			fetch: func(ctx context.Context) (float64, error) {
				ticker, ok := e.gateway.CachedTicker(req.Symbol)
				if !ok {
					return 0, errors.New("no fresh cached ticker")
				}
				return firstPositive(ticker.Last, ticker.MarkPrice)
			},
		},
		{
			name: "rest_ticker",
			fetch: func(ctx context.Context) (float64, error) {
				fetchCtx, cancel := context.WithTimeout(ctx, tickerFetchTimeout)
				defer cancel()

				ticker, err := e.gateway.GetTicker(fetchCtx, req.Symbol)
				if err != nil {
					return 0, err
				}
				return firstPositive(ticker.Last, ticker.MarkPrice)
			},
		},
		{
			name: "tick_price",
			fetch: func(ctx context.Context) (float64, error) {
				return firstPositive(req.CurrentPrice)
			},
		},
	}

	for _, src := range sources {
		price, err := src.fetch(ctx)
		if err == nil && price > 0 && utils.IsFinite(price) {
			return price, src.name
		}
		if err != nil {
			e.logger.Debug("exit price source failed",
				zap.String("symbol", req.Symbol),
				zap.String("source", src.name),
				zap.Error(err),
			)
		}
	}

	// Достижимо только при невалидной цене тика
	e.logger.Error("all exit price sources failed",
		zap.String("symbol", req.Symbol),
	)
	return 0, "none"
}

// firstPositive возвращает первое положительное конечное значение
func firstPositive(values ...float64) (float64, error) {
	for _, v := range values {
		if v > 0 && utils.IsFinite(v) {
			return v, nil
		}
	}
	return 0, errors.New("no positive price available")
}

// contractMultiplier добывает множитель контракта
//
// Позиция уже закрыта на бирже, поэтому сбой этого запроса не
// отменяет запись: берется множитель 1.0, периодическая сверка
// пересчитает строку когда эндпоинт оживет.
func (e *Executor) contractMultiplier(ctx context.Context, symbol string) float64 {
	multCtx, cancel := context.WithTimeout(ctx, multiplierTimeout)
	defer cancel()

	multiplier, err := e.gateway.GetContractMultiplier(multCtx, symbol)
	if err != nil {
		e.logger.Warn("contract multiplier unavailable, recording with 1.0",
			zap.String("symbol", symbol),
			zap.Error(err),
		)
		return 1.0
	}
	return multiplier
}

// buildDecision собирает запись аудита о срабатывании
func (e *Executor) buildDecision(req CloseRequest, orderID string, exitPrice, pnl float64) *models.DecisionRecord {
	accountValue := e.accountValue(context.Background())

	return &models.DecisionRecord{
		Iteration: 0,
		MarketAnalysis: map[string]interface{}{
			"symbol":            req.Symbol,
			"side":              req.Side,
			"quantity":          req.Quantity,
			"entry_price":       req.EntryPrice,
			"exit_price":        exitPrice,
			"leverage":          req.Leverage,
			"pnl_percent":       req.PnlPercent,
			"threshold_percent": req.ThresholdPercent,
			"risk_level":        req.RiskLabel,
			"realized_pnl":      pnl,
		},
		DecisionText: fmt.Sprintf("Protective close %s %s: pnl %.2f%% breached %s threshold %.2f%%",
			req.Symbol, req.Side, req.PnlPercent, req.RiskLabel, req.ThresholdPercent),
		ActionsTaken: []string{
			fmt.Sprintf("closed %s %s qty %.4f at %.4f via order %s", req.Symbol, req.Side, req.Quantity, exitPrice, orderID),
		},
		AccountValue:   accountValue,
		PositionsCount: req.OpenPositions,
	}
}

// accountValue добывает стоимость счета для аудита, 0 при недоступности
func (e *Executor) accountValue(ctx context.Context) float64 {
	valueCtx, cancel := context.WithTimeout(ctx, accountValueTimeout)
	defer cancel()

	value, err := e.gateway.GetAccountValue(valueCtx)
	if err != nil {
		e.logger.Warn("account value unavailable for decision record", zap.Error(err))
		return 0
	}
	return value
}

// notifyClosed отправляет уведомление об успешном закрытии
func (e *Executor) notifyClosed(req CloseRequest, exitPrice, pnl float64, status string) {
	if e.notifCh == nil {
		return
	}

	notif := &models.Notification{
		Type:     models.NotificationTypeClose,
		Severity: models.SeverityWarn,
		Symbol:   req.Symbol,
		Message: fmt.Sprintf("Position %s %s closed at %.4f, realized pnl %.2f USDT",
			req.Symbol, req.Side, exitPrice, pnl),
		Meta: map[string]interface{}{
			"side":              req.Side,
			"quantity":          req.Quantity,
			"exit_price":        exitPrice,
			"pnl":               pnl,
			"pnl_percent":       req.PnlPercent,
			"threshold_percent": req.ThresholdPercent,
			"status":            status,
		},
	}

	select {
	case e.notifCh <- notif:
	default:
	}
}

// notifyCloseFailed отправляет уведомление о неудачном закрытии
func (e *Executor) notifyCloseFailed(req CloseRequest, err error) {
	if e.notifCh == nil {
		return
	}

	notif := &models.Notification{
		Type:     models.NotificationTypeError,
		Severity: models.SeverityError,
		Symbol:   req.Symbol,
		Message: fmt.Sprintf("Protective close failed for %s %s: %v, retry on next tick",
			req.Symbol, req.Side, err),
		Meta: map[string]interface{}{
			"side":        req.Side,
			"quantity":    req.Quantity,
			"pnl_percent": req.PnlPercent,
			"error":       err.Error(),
		},
	}

	select {
	case e.notifCh <- notif:
	default:
	}
}

// ClosePnl считает реализованный PnL закрытия
//
// gross = (exit − entry) × qty × multiplier × направление;
// fee покрывает вход и выход по ставке тейкера; pnl = gross − fee.
func ClosePnl(entry, exit, quantity, multiplier float64, side string) (gross, fee, pnl float64) {
	direction := models.DirectionFor(side)

	gross = (exit - entry) * quantity * multiplier * direction
	fee = (entry + exit) * quantity * multiplier * takerFeeRate
	pnl = gross - fee

	return gross, fee, pnl
}
