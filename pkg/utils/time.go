package utils

import (
	"fmt"
	"time"
)

// time.go - вспомогательные функции работы со временем
//
// Назначение:
// Границы периодов для выборок из БД, конвертация unix-миллисекунд
// (формат времени биржи) и разбор строковых таймфреймов.

// GetDayStart возвращает начало текущих суток (00:00:00)
func GetDayStart() time.Time {
	return GetDayStartFrom(time.Now())
}

// GetDayStartFrom возвращает начало суток для переданного времени
func GetDayStartFrom(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// GetWeekStart возвращает начало текущей недели (понедельник 00:00:00)
func GetWeekStart() time.Time {
	return GetWeekStartFrom(time.Now())
}

// GetWeekStartFrom возвращает начало недели для переданного времени
func GetWeekStartFrom(t time.Time) time.Time {
	dayStart := GetDayStartFrom(t)
	weekday := int(dayStart.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return dayStart.AddDate(0, 0, -(weekday - 1))
}

// GetMonthStart возвращает начало текущего месяца
func GetMonthStart() time.Time {
	return GetMonthStartFrom(time.Now())
}

// GetMonthStartFrom возвращает начало месяца для переданного времени
func GetMonthStartFrom(t time.Time) time.Time {
	year, month, _ := t.Date()
	return time.Date(year, month, 1, 0, 0, 0, 0, t.Location())
}

// UnixMillis возвращает время в unix-миллисекундах
func UnixMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromUnixMillis восстанавливает время из unix-миллисекунд
func FromUnixMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}

// FormatDuration форматирует длительность в человекочитаемый вид
// Примеры: "45s", "3m12s", "2h05m", "1d04h"
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		days := int(d.Hours()) / 24
		return fmt.Sprintf("%dd%02dh", days, int(d.Hours())%24)
	}
}

// ParseTimeframe разбирает строковый таймфрейм биржи в Duration
// Поддерживаются: 1m, 5m, 15m, 30m, 1h, 4h, 1d
func ParseTimeframe(tf string) (time.Duration, error) {
	switch tf {
	case "1m":
		return time.Minute, nil
	case "5m":
		return 5 * time.Minute, nil
	case "15m":
		return 15 * time.Minute, nil
	case "30m":
		return 30 * time.Minute, nil
	case "1h":
		return time.Hour, nil
	case "4h":
		return 4 * time.Hour, nil
	case "1d":
		return 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unsupported timeframe: %q", tf)
	}
}
