package monitor

import (
	"fmt"

	"go.uber.org/zap"

	"sentinel/internal/models"
	"sentinel/pkg/utils"
)

// Mode - режим расчета стоп-лосса
//
// Разбирается из конфигурации один раз при старте, не при каждом тике.
type Mode int

const (
	// ModeStatic - порог по бакету плеча, без рыночных данных
	ModeStatic Mode = iota
	// ModeDynamic - порог из четырех рыночных сигналов со статическим fallback
	ModeDynamic
)

// String возвращает строковое представление режима
func (m Mode) String() string {
	if m == ModeDynamic {
		return "dynamic"
	}
	return "static"
}

// ParseMode разбирает режим из строки конфигурации
func ParseMode(s string) (Mode, error) {
	switch s {
	case "static":
		return ModeStatic, nil
	case "dynamic":
		return ModeDynamic, nil
	default:
		return ModeStatic, fmt.Errorf("unknown stop-loss mode %q (expected static or dynamic)", s)
	}
}

// Категориальные сигналы динамического режима
type StructureStrength string

const (
	StructureWeak   StructureStrength = "weak"
	StructureNormal StructureStrength = "normal"
	StructureStrong StructureStrength = "strong"
)

type MicroRhythm string

const (
	RhythmFavorable   MicroRhythm = "favorable"
	RhythmNeutral     MicroRhythm = "neutral"
	RhythmUnfavorable MicroRhythm = "unfavorable"
)

type MarketState string

const (
	StateTrend             MarketState = "trend"
	StateTrendWithPullback MarketState = "trend_with_pullback"
	StateRange             MarketState = "range"
	StateBreakoutAttempt   MarketState = "breakout_attempt"
)

// Границы категорий в процентах
const (
	structureWeakGap   = 0.3
	structureStrongGap = 1.2

	trendGap    = 0.8
	pullbackGap = 0.3
	rangeGap    = 0.15

	defaultVolatility = 1.5

	// Диапазон итогового динамического порога
	minDynamicThreshold = -25.0
	maxDynamicThreshold = -1.0
)

// CombineFunc - стратегия сведения четырех сигналов в порог (отрицательный процент)
type CombineFunc func(volatility, leverage float64, structure StructureStrength, rhythm MicroRhythm, state MarketState) float64

// ThresholdConfig - конфигурация расчета порога
type ThresholdConfig struct {
	Mode Mode

	// Статические пороги по бакетам плеча (отрицательные проценты,
	// |Low| <= |Mid| <= |High| - валидируется при загрузке конфигурации)
	Low  float64
	Mid  float64
	High float64

	// Диапазон плеча, разбиваемый на три равных бакета
	LeverageMin float64
	LeverageMax float64

	// Стратегия сведения сигналов; nil = DefaultCombine
	Calculate CombineFunc
}

// ThresholdDecision - результат расчета порога для одной позиции
//
// Пересчитывается заново каждый тик, никогда не кэшируется.
type ThresholdDecision struct {
	ThresholdPercent float64
	RiskLevel        string
	Description      string
	IsDynamic        bool
}

// ThresholdCalculator вычисляет порог срабатывания стоп-лосса
//
// Функции:
// - Статический режим: три равных бакета плеча → low/mid/high порог
// - Динамический режим: волатильность + структура + микроритм + состояние рынка
// - Fallback на статический результат при неполном снимке, нечисловом
//   результате или панике стратегии
//
// Без побочных эффектов: чистая функция от входов и конфигурации.
type ThresholdCalculator struct {
	cfg    ThresholdConfig
	logger *zap.Logger
}

// NewThresholdCalculator создает калькулятор порогов
func NewThresholdCalculator(cfg ThresholdConfig, logger *zap.Logger) *ThresholdCalculator {
	return &ThresholdCalculator{
		cfg:    cfg,
		logger: logger,
	}
}

// Dynamic сообщает, запрошен ли динамический режим конфигурацией
func (tc *ThresholdCalculator) Dynamic() bool {
	return tc.cfg.Mode == ModeDynamic
}

// Mode возвращает настроенный режим расчета
func (tc *ThresholdCalculator) Mode() Mode {
	return tc.cfg.Mode
}

// Threshold вычисляет порог для позиции
//
// В динамическом режиме nil snapshot (сбой загрузки, соседний символ
// не пострадал) откатывает расчет к статическому бакету.
func (tc *ThresholdCalculator) Threshold(symbol string, leverage float64, side string, snapshot *models.MarketSnapshot) ThresholdDecision {
	if tc.cfg.Mode == ModeDynamic && snapshot != nil {
		if decision, ok := tc.dynamicThreshold(symbol, leverage, side, snapshot); ok {
			return decision
		}
		tc.logger.Debug("dynamic threshold unavailable, using static bucket",
			zap.String("symbol", symbol),
			zap.Float64("leverage", leverage),
		)
	}

	return tc.staticThreshold(leverage)
}

// ============================================================
// Статический режим
// ============================================================

// staticThreshold возвращает порог по бакету плеча
//
// [LeverageMin, LeverageMax] делится на три равных интервала.
// Плечо выше границы mid/high получает самый консервативный порог.
func (tc *ThresholdCalculator) staticThreshold(leverage float64) ThresholdDecision {
	width := (tc.cfg.LeverageMax - tc.cfg.LeverageMin) / 3.0
	lowBound := tc.cfg.LeverageMin + width
	midBound := tc.cfg.LeverageMin + 2.0*width

	var threshold float64
	var level string

	switch {
	case leverage <= lowBound:
		threshold = tc.cfg.Low
		level = "low"
	case leverage <= midBound:
		threshold = tc.cfg.Mid
		level = "medium"
	default:
		threshold = tc.cfg.High
		level = "high"
	}

	return ThresholdDecision{
		ThresholdPercent: threshold,
		RiskLevel:        level,
		Description:      fmt.Sprintf("static %s bucket for %.1fx leverage", level, leverage),
		IsDynamic:        false,
	}
}

// ============================================================
// Динамический режим
// ============================================================

// dynamicThreshold сводит четыре сигнала в порог
//
// ok=false означает обязательный откат к статическому режиму: неполный
// снимок, нечисловой результат или паника стратегии. NaN/Infinity
// никогда не доходит до сравнения с PnL.
func (tc *ThresholdCalculator) dynamicThreshold(symbol string, leverage float64, side string, snap *models.MarketSnapshot) (decision ThresholdDecision, ok bool) {
	// Стратегия задается пользователем и может паниковать
	defer func() {
		if r := recover(); r != nil {
			tc.logger.Warn("threshold strategy panicked, falling back to static",
				zap.String("symbol", symbol),
				zap.Any("panic", r),
			)
			ok = false
		}
	}()

	volatility := tc.volatility(snap)

	structure, structOK := tc.structureStrength(snap)
	if !structOK {
		return ThresholdDecision{}, false
	}

	rhythm, rhythmOK := tc.microRhythm(snap, side)
	if !rhythmOK {
		return ThresholdDecision{}, false
	}

	state, stateOK := tc.marketState(snap)
	if !stateOK {
		return ThresholdDecision{}, false
	}

	combine := tc.cfg.Calculate
	if combine == nil {
		combine = DefaultCombine
	}

	raw := combine(volatility, leverage, structure, rhythm, state)
	if !utils.IsFinite(raw) {
		tc.logger.Warn("threshold strategy returned non-finite value, falling back to static",
			zap.String("symbol", symbol),
			zap.Float64("raw", raw),
		)
		return ThresholdDecision{}, false
	}

	threshold := utils.Clamp(raw, minDynamicThreshold, maxDynamicThreshold)

	return ThresholdDecision{
		ThresholdPercent: threshold,
		RiskLevel:        "dynamic",
		Description: fmt.Sprintf("dynamic threshold: volatility %.2f%%, structure %s, rhythm %s, market %s",
			volatility, structure, rhythm, state),
		IsDynamic: true,
	}, true
}

// volatility возвращает ATR(14)/цена × 100 на самом мелком доступном
// таймфрейме (1m, иначе 5m), либо значение по умолчанию
func (tc *ThresholdCalculator) volatility(snap *models.MarketSnapshot) float64 {
	for _, tf := range []*models.TimeframeSnapshot{snap.OneMinute, snap.FiveMinute} {
		if tf == nil || tf.ATR14 <= 0 || tf.CurrentPrice <= 0 {
			continue
		}
		v := tf.ATR14 / tf.CurrentPrice * 100.0
		if utils.IsFinite(v) {
			return v
		}
	}
	return defaultVolatility
}

// structureStrength классифицирует отрыв цены от EMA20 на 5m
func (tc *ThresholdCalculator) structureStrength(snap *models.MarketSnapshot) (StructureStrength, bool) {
	tf := snap.FiveMinute
	if tf == nil || tf.EMA20 <= 0 || !utils.AllFinite(tf.CurrentPrice, tf.EMA20) {
		return StructureNormal, false
	}

	gap := utils.RelativeGapPercent(tf.CurrentPrice, tf.EMA20)
	switch {
	case gap < structureWeakGap:
		return StructureWeak, true
	case gap > structureStrongGap:
		return StructureStrong, true
	default:
		return StructureNormal, true
	}
}

// microRhythm оценивает знак отрыва от EMA20 на 1m вместе со знаком
// краткосрочного импульса относительно стороны позиции
//
// Для лонга благоприятно: цена выше EMA и импульс вверх; для шорта
// зеркально. Разнонаправленные знаки дают нейтральную оценку.
func (tc *ThresholdCalculator) microRhythm(snap *models.MarketSnapshot, side string) (MicroRhythm, bool) {
	tf := snap.OneMinute
	if tf == nil || tf.EMA20 <= 0 || !utils.AllFinite(tf.CurrentPrice, tf.EMA20) {
		return RhythmNeutral, false
	}

	gapSign := utils.Sign(tf.CurrentPrice - tf.EMA20)
	momentum := tf.ImpulseDirection

	direction := int(models.DirectionFor(side))
	gapAligned := gapSign * direction
	momentumAligned := momentum * direction

	switch {
	case gapAligned > 0 && momentumAligned > 0:
		return RhythmFavorable, true
	case gapAligned < 0 && momentumAligned < 0:
		return RhythmUnfavorable, true
	default:
		return RhythmNeutral, true
	}
}

// marketState классифицирует рынок по относительным отрывам цены от
// EMA20 на 1m и 5m
func (tc *ThresholdCalculator) marketState(snap *models.MarketSnapshot) (MarketState, bool) {
	oneTF, fiveTF := snap.OneMinute, snap.FiveMinute
	if oneTF == nil || fiveTF == nil || oneTF.EMA20 <= 0 || fiveTF.EMA20 <= 0 {
		return StateRange, false
	}
	if !utils.AllFinite(oneTF.CurrentPrice, oneTF.EMA20, fiveTF.CurrentPrice, fiveTF.EMA20) {
		return StateRange, false
	}

	gap1 := utils.RelativeGapPercent(oneTF.CurrentPrice, oneTF.EMA20)
	gap5 := utils.RelativeGapPercent(fiveTF.CurrentPrice, fiveTF.EMA20)

	switch {
	case gap5 > trendGap:
		return StateTrend, true
	case gap5 >= pullbackGap && gap1 < gap5:
		return StateTrendWithPullback, true
	case gap5 < rangeGap:
		return StateRange, true
	default:
		return StateBreakoutAttempt, true
	}
}

// DefaultCombine - стратегия сведения сигналов по умолчанию
//
// База обратно пропорциональна плечу (10x → -8%), затем масштабируется
// волатильностью и корректируется категориальными сигналами. Спокойный
// рынок и слабая структура сужают стоп, тренд в сторону позиции
// расширяет его.
func DefaultCombine(volatility, leverage float64, structure StructureStrength, rhythm MicroRhythm, state MarketState) float64 {
	if leverage <= 0 {
		leverage = 1
	}

	threshold := -80.0 / leverage

	volAdj := utils.Clamp(volatility/defaultVolatility, 0.6, 2.0)
	threshold *= volAdj

	switch structure {
	case StructureWeak:
		threshold *= 0.85
	case StructureStrong:
		threshold *= 1.15
	}

	switch rhythm {
	case RhythmFavorable:
		threshold *= 1.15
	case RhythmUnfavorable:
		threshold *= 0.8
	}

	switch state {
	case StateTrend:
		threshold *= 1.2
	case StateTrendWithPullback:
		threshold *= 1.05
	case StateRange:
		threshold *= 0.85
	case StateBreakoutAttempt:
		threshold *= 0.95
	}

	return threshold
}
