package monitor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"sentinel/internal/exchange"
	"sentinel/internal/models"
	"sentinel/pkg/utils"
)

const (
	// Свечей на запрос: EMA20 нужен прогрев из 20 значений,
	// ATR14 - period+1 баров, импульсу - 4 последних закрытия
	snapshotCandleLimit = 40

	emaPeriod = 20
	atrPeriod = 14

	// Импульс: последнее закрытие против закрытия тремя барами раньше
	impulseLookback = 3

	snapshotFetchTimeout = 8 * time.Second
)

// SnapshotProvider собирает рыночные срезы для динамического режима
//
// Функции:
// - Загрузка свечей 1m и 5m по символу
// - Расчет EMA20, ATR14 и направления импульса на каждом таймфрейме
// - Один снимок на символ за тик; сбой по одному символу не влияет
//   на остальные (вызывающая сторона переводит символ в статику)
type SnapshotProvider struct {
	gateway Gateway
	logger  *zap.Logger
}

// NewSnapshotProvider создает провайдер снимков
func NewSnapshotProvider(gateway Gateway, logger *zap.Logger) *SnapshotProvider {
	return &SnapshotProvider{
		gateway: gateway,
		logger:  logger,
	}
}

// Fetch загружает и считает снимок по символу
//
// Оба таймфрейма обязательны: ошибка загрузки любого из них означает
// ошибку всего снимка. Недостаток свечей ошибкой не является - поле
// индикатора остается нулевым, решение принимает калькулятор порога.
func (sp *SnapshotProvider) Fetch(ctx context.Context, symbol string) (*models.MarketSnapshot, error) {
	oneMinute, err := sp.fetchTimeframe(ctx, symbol, "1m")
	if err != nil {
		return nil, fmt.Errorf("1m candles for %s: %w", symbol, err)
	}

	fiveMinute, err := sp.fetchTimeframe(ctx, symbol, "5m")
	if err != nil {
		return nil, fmt.Errorf("5m candles for %s: %w", symbol, err)
	}

	return &models.MarketSnapshot{
		Symbol:     symbol,
		OneMinute:  oneMinute,
		FiveMinute: fiveMinute,
		FetchedAt:  time.Now(),
	}, nil
}

// fetchTimeframe загружает свечи одного таймфрейма и считает индикаторы
func (sp *SnapshotProvider) fetchTimeframe(ctx context.Context, symbol, interval string) (*models.TimeframeSnapshot, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, snapshotFetchTimeout)
	defer cancel()

	candles, err := sp.gateway.GetCandles(fetchCtx, symbol, interval, snapshotCandleLimit)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("empty candle response")
	}

	return buildTimeframeSnapshot(candles), nil
}

// buildTimeframeSnapshot считает индикаторы по свечам (от старых к новым)
func buildTimeframeSnapshot(candles []exchange.Candle) *models.TimeframeSnapshot {
	n := len(candles)

	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
	}

	snap := &models.TimeframeSnapshot{
		CurrentPrice: closes[n-1],
	}

	if ema, ok := utils.CalculateEMA(closes, emaPeriod); ok {
		snap.EMA20 = ema
	}
	if atr, ok := utils.CalculateATR(highs, lows, closes, atrPeriod); ok {
		snap.ATR14 = atr
	}
	if n > impulseLookback {
		snap.ImpulseDirection = utils.Sign(closes[n-1] - closes[n-1-impulseLookback])
	}

	return snap
}
