package utils

import (
	"math"
)

// math.go - математические функции для расчётов рисков и индикаторов
//
// Назначение:
// Базовые вычисления, используемые монитором позиций:
// - проверки конечности значений (NaN/Inf с биржи недопустимы)
// - процентные изменения и относительные отклонения
// - EMA и ATR для динамических порогов
// - округления цен и количеств под шаг контракта
//
// Все функции чистые, без состояния и без логирования.

// IsFinite проверяет, что значение не NaN и не Inf
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// AllFinite проверяет конечность всех переданных значений
func AllFinite(vs ...float64) bool {
	for _, v := range vs {
		if !IsFinite(v) {
			return false
		}
	}
	return true
}

// Clamp ограничивает значение диапазоном [min, max]
func Clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// PercentChange возвращает процентное изменение от from к to
// При from == 0 возвращает 0 (деление на ноль недопустимо)
func PercentChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from * 100
}

// RelativeGapPercent возвращает модуль относительного отклонения value от base в процентах
// Используется для оценки расстояния цены от EMA
func RelativeGapPercent(value, base float64) float64 {
	if base == 0 {
		return 0
	}
	return math.Abs(value-base) / base * 100
}

// Sign возвращает знак числа: -1, 0 или +1
func Sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// CalculateEMA вычисляет экспоненциальную скользящую среднюю
//
// Первое значение - SMA по первым period точкам (посев),
// далее классическая рекурсия с коэффициентом k = 2/(period+1).
//
// Возвращает последнее значение EMA и true при достаточном количестве данных.
// При len(values) < period возвращает 0 и false.
func CalculateEMA(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}

	var sum float64
	for _, v := range values[:period] {
		sum += v
	}
	ema := sum / float64(period)

	k := 2.0 / float64(period+1)
	for _, v := range values[period:] {
		ema = v*k + ema*(1-k)
	}

	return ema, true
}

// CalculateATR вычисляет Average True Range по методу Уайлдера
//
// True Range для первой свечи - high-low, для последующих:
// max(high-low, |high-prevClose|, |low-prevClose|).
// ATR - сглаживание Уайлдера: atr = (atr*(period-1) + tr) / period,
// посев - среднее первых period значений TR.
//
// Длины highs, lows, closes должны совпадать.
// Возвращает последнее значение ATR и true при достаточном количестве данных
// (минимум period+1 свечей).
func CalculateATR(highs, lows, closes []float64, period int) (float64, bool) {
	n := len(closes)
	if period <= 0 || n != len(highs) || n != len(lows) || n < period+1 {
		return 0, false
	}

	trs := make([]float64, n)
	trs[0] = highs[0] - lows[0]
	for i := 1; i < n; i++ {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		trs[i] = math.Max(hl, math.Max(hc, lc))
	}

	var sum float64
	for _, tr := range trs[:period] {
		sum += tr
	}
	atr := sum / float64(period)

	for _, tr := range trs[period:] {
		atr = (atr*float64(period-1) + tr) / float64(period)
	}

	return atr, true
}

// RoundToStep округляет значение вниз до ближайшего кратного шага
// Используется для приведения количества к шагу лота контракта
func RoundToStep(value, step float64) float64 {
	if step <= 0 {
		return value
	}
	return math.Floor(value/step) * step
}
