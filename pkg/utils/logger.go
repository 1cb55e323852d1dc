package utils

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// logger.go - настройка структурированного логирования
//
// Назначение:
// Инициализация zap логгера для всего приложения.
// Уровень и формат задаются конфигурацией (LOG_LEVEL, LOG_FORMAT).
//
// Форматы:
// - json: структурированный вывод для production (парсится агрегаторами)
// - console: человекочитаемый вывод для разработки
//
// Логгер создаётся один раз в main и передаётся компонентам явно.

// InitLogger создаёт и настраивает zap логгер
//
// Параметры:
//   - level: debug | info | warn | error
//   - format: json | console
//
// Возвращает:
//   - Сконфигурированный *zap.Logger
//   - Ошибку при неизвестном уровне или формате
func InitLogger(level, format string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info", "":
		zapLevel = zapcore.InfoLevel
	case "warn", "warning":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("unknown log level: %q", level)
	}

	var cfg zap.Config
	switch strings.ToLower(format) {
	case "json", "":
		cfg = zap.NewProductionConfig()
	case "console", "text":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	default:
		return nil, fmt.Errorf("unknown log format: %q", format)
	}

	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	return logger, nil
}

// MustInitLogger - как InitLogger, но паникует при некорректной конфигурации
// Используется только на старте процесса, когда без логгера продолжать нельзя
func MustInitLogger(level, format string) *zap.Logger {
	logger, err := InitLogger(level, format)
	if err != nil {
		panic(err)
	}
	return logger
}
