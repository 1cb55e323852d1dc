package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"sentinel/internal/monitor"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Exchange ExchangeConfig
	Monitor  MonitorConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port     int
	Host     string
	UseHTTPS bool
	CertFile string
	KeyFile  string
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// ExchangeConfig - настройки подключения к бирже
type ExchangeConfig struct {
	Name      string
	APIKey    string
	APISecret string
}

// MonitorConfig - настройки мониторинга позиций и стоп-лоссов
type MonitorConfig struct {
	// Защита на уровне кода: false = монитор не стартует,
	// остальной сервис (API, метрики) продолжает работать
	Enabled bool

	// Период проверки позиций
	Interval time.Duration

	// Режим стоп-лосса, разбирается в enum при загрузке
	Mode monitor.Mode

	// Статические пороги по бакетам плеча (отрицательные проценты)
	StopLossLow  float64
	StopLossMid  float64
	StopLossHigh float64

	// Диапазон плеча для разбиения на бакеты
	LeverageMin float64
	LeverageMax float64

	// Периодическая сверка записей о закрытиях
	SweepInterval time.Duration
	SweepLookback time.Duration
}

// SecurityConfig - настройки защиты API
//
// Basic auth включается только когда заданы обе переменные.
type SecurityConfig struct {
	APIUser         string
	APIPasswordHash string // bcrypt-хэш пароля
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	mode, err := monitor.ParseMode(getEnv("STOP_LOSS_MODE", "static"))
	if err != nil {
		return nil, fmt.Errorf("STOP_LOSS_MODE: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnvAsInt("SERVER_PORT", 8080),
			Host:     getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS: getEnvAsBool("USE_HTTPS", false),
			CertFile: getEnv("CERT_FILE", ""),
			KeyFile:  getEnv("KEY_FILE", ""),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "sentinel"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Exchange: ExchangeConfig{
			Name:      getEnv("EXCHANGE_NAME", "gate"),
			APIKey:    getEnv("GATE_API_KEY", ""),
			APISecret: getEnv("GATE_API_SECRET", ""),
		},
		Monitor: MonitorConfig{
			Enabled:  getEnvAsBool("ENABLE_CODE_LEVEL_PROTECTION", true),
			Interval: getEnvAsDuration("MONITOR_INTERVAL", 15*time.Second),
			Mode:     mode,

			StopLossLow:  getEnvAsFloat("STOP_LOSS_LOW", -6.0),
			StopLossMid:  getEnvAsFloat("STOP_LOSS_MID", -8.0),
			StopLossHigh: getEnvAsFloat("STOP_LOSS_HIGH", -10.0),

			LeverageMin: getEnvAsFloat("LEVERAGE_MIN", 1),
			LeverageMax: getEnvAsFloat("LEVERAGE_MAX", 125),

			SweepInterval: getEnvAsDuration("REPAIR_SWEEP_INTERVAL", 5*time.Minute),
			SweepLookback: getEnvAsDuration("REPAIR_SWEEP_LOOKBACK", 24*time.Hour),
		},
		Security: SecurityConfig{
			APIUser:         getEnv("API_AUTH_USER", ""),
			APIPasswordHash: getEnv("API_AUTH_PASSWORD_HASH", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Валидация параметров безопасности
	if err := cfg.validateSecurity(); err != nil {
		return nil, err
	}

	// Валидация числовых диапазонов
	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSecurity проверяет параметры безопасности
func (c *Config) validateSecurity() error {
	// Basic auth настраивается парой: логин + bcrypt-хэш
	if (c.Security.APIUser == "") != (c.Security.APIPasswordHash == "") {
		return fmt.Errorf("API_AUTH_USER and API_AUTH_PASSWORD_HASH must be set together")
	}

	if c.Security.APIPasswordHash != "" && !strings.HasPrefix(c.Security.APIPasswordHash, "$2") {
		return fmt.Errorf("API_AUTH_PASSWORD_HASH must be a bcrypt hash")
	}

	if c.Server.UseHTTPS && (c.Server.CertFile == "" || c.Server.KeyFile == "") {
		return fmt.Errorf("CERT_FILE and KEY_FILE are required when USE_HTTPS is enabled")
	}

	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	// Валидация портов
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	// Валидация периода мониторинга
	if c.Monitor.Interval < time.Second {
		return fmt.Errorf("MONITOR_INTERVAL must be at least 1s, got %v", c.Monitor.Interval)
	}

	// Пороги - отрицательные проценты в (-100, 0)
	if c.Monitor.StopLossLow >= 0 || c.Monitor.StopLossLow <= -100 {
		return fmt.Errorf("STOP_LOSS_LOW must be in (-100, 0), got %v", c.Monitor.StopLossLow)
	}

	if c.Monitor.StopLossMid >= 0 || c.Monitor.StopLossMid <= -100 {
		return fmt.Errorf("STOP_LOSS_MID must be in (-100, 0), got %v", c.Monitor.StopLossMid)
	}

	if c.Monitor.StopLossHigh >= 0 || c.Monitor.StopLossHigh <= -100 {
		return fmt.Errorf("STOP_LOSS_HIGH must be in (-100, 0), got %v", c.Monitor.StopLossHigh)
	}

	// Порог не должен слабеть с ростом плеча: |low| <= |mid| <= |high|
	if c.Monitor.StopLossLow < c.Monitor.StopLossMid || c.Monitor.StopLossMid < c.Monitor.StopLossHigh {
		return fmt.Errorf("stop-loss thresholds must not weaken with leverage: |STOP_LOSS_LOW| <= |STOP_LOSS_MID| <= |STOP_LOSS_HIGH|")
	}

	// Валидация диапазона плеча
	if c.Monitor.LeverageMin < 1 {
		return fmt.Errorf("LEVERAGE_MIN must be at least 1, got %v", c.Monitor.LeverageMin)
	}

	if c.Monitor.LeverageMax <= c.Monitor.LeverageMin {
		return fmt.Errorf("LEVERAGE_MAX must be greater than LEVERAGE_MIN, got %v <= %v",
			c.Monitor.LeverageMax, c.Monitor.LeverageMin)
	}

	// Валидация параметров сверки
	if c.Monitor.SweepInterval <= 0 {
		return fmt.Errorf("REPAIR_SWEEP_INTERVAL must be positive, got %v", c.Monitor.SweepInterval)
	}

	if c.Monitor.SweepLookback <= 0 {
		return fmt.Errorf("REPAIR_SWEEP_LOOKBACK must be positive, got %v", c.Monitor.SweepLookback)
	}

	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
