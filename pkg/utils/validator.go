package utils

import (
	"fmt"
	"regexp"
)

// validator.go - валидация входных данных
//
// Назначение:
// Проверки параметров перед обращением к бирже и записью в БД.
// Каждая функция возвращает описательную ошибку, пригодную для логов
// и HTTP-ответов.

var contractPattern = regexp.MustCompile(`^[A-Z0-9]+_USDT$`)

// ValidateContract проверяет формат имени контракта (BTC_USDT, ETH_USDT)
func ValidateContract(contract string) error {
	if contract == "" {
		return fmt.Errorf("contract is empty")
	}
	if !contractPattern.MatchString(contract) {
		return fmt.Errorf("invalid contract format: %q", contract)
	}
	return nil
}

// ValidateLeverage проверяет плечо на допустимый диапазон
func ValidateLeverage(leverage float64) error {
	if !IsFinite(leverage) {
		return fmt.Errorf("leverage is not finite")
	}
	if leverage < 1 || leverage > 125 {
		return fmt.Errorf("leverage out of range [1, 125]: %v", leverage)
	}
	return nil
}

// ValidatePrice проверяет цену: конечна и строго положительна
func ValidatePrice(price float64) error {
	if !IsFinite(price) {
		return fmt.Errorf("price is not finite")
	}
	if price <= 0 {
		return fmt.Errorf("price must be positive: %v", price)
	}
	return nil
}

// ValidateQuantity проверяет количество: конечно и строго положительно
func ValidateQuantity(qty float64) error {
	if !IsFinite(qty) {
		return fmt.Errorf("quantity is not finite")
	}
	if qty <= 0 {
		return fmt.Errorf("quantity must be positive: %v", qty)
	}
	return nil
}

// ValidateThresholdPercent проверяет порог стоп-лосса
// Порог выражается отрицательным процентом PnL (например -5.0)
func ValidateThresholdPercent(threshold float64) error {
	if !IsFinite(threshold) {
		return fmt.Errorf("threshold is not finite")
	}
	if threshold >= 0 {
		return fmt.Errorf("threshold must be negative: %v", threshold)
	}
	return nil
}
