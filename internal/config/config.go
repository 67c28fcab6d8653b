// Пакет config — загрузка и валидация конфигурации imghost
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации imghost.
// Конструируется один раз при старте процесса и передаётся явно
// во все компоненты — ambient-глобалов нет.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Внешний базовый URL для построения абсолютных ссылок
	BaseURL string
	// Путь к директории хранения blob'ов и sidecar'ов
	DataDir string
	// Логин администратора (Basic auth)
	AdminUser string
	// Пароль администратора (Basic auth)
	AdminPassword string
	// Максимальный размер тела upload-запроса в байтах
	MaxUploadSize int64
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Путь к TLS сертификату (опционально; пусто — plain HTTP)
	TLSCert string
	// Путь к TLS приватному ключу
	TLSKey string
	// Интервал фоновой пересборки индекса
	ReconcileInterval time.Duration
	// Интервал фоновой очистки pending-записей и осиротевших blob'ов
	SweepInterval time.Duration
	// Возраст, после которого pending-запись считается брошенной
	PendingMaxAge time.Duration
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения.
// Все параметры имеют значения по умолчанию; ошибка возвращается
// только при некорректных значениях.
func Load() (*Config, error) {
	cfg := &Config{}

	// IMGHOST_PORT — порт HTTP-сервера (по умолчанию 8080)
	port, err := getEnvInt("IMGHOST_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("IMGHOST_PORT: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("IMGHOST_PORT: значение %d вне диапазона 1-65535", port)
	}
	cfg.Port = port

	// IMGHOST_BASE_URL — внешний базовый URL (по умолчанию локальный)
	cfg.BaseURL = strings.TrimRight(
		getEnvDefault("IMGHOST_BASE_URL", fmt.Sprintf("http://localhost:%d", port)), "/")

	// IMGHOST_DATA_DIR — директория хранения (по умолчанию ./data)
	cfg.DataDir = getEnvDefault("IMGHOST_DATA_DIR", "./data")

	// IMGHOST_ADMIN_USER / IMGHOST_ADMIN_PASSWORD — единственная
	// статическая пара учётных данных для мутирующих endpoints
	cfg.AdminUser = getEnvDefault("IMGHOST_ADMIN_USER", "admin")
	cfg.AdminPassword = getEnvDefault("IMGHOST_ADMIN_PASSWORD", "admin")

	// IMGHOST_MAX_UPLOAD_SIZE — лимит тела upload-запроса (по умолчанию 32 MB)
	maxUpload, err := getEnvInt64("IMGHOST_MAX_UPLOAD_SIZE", 32<<20)
	if err != nil {
		return nil, fmt.Errorf("IMGHOST_MAX_UPLOAD_SIZE: %w", err)
	}
	if maxUpload <= 0 {
		return nil, fmt.Errorf("IMGHOST_MAX_UPLOAD_SIZE: значение должно быть положительным")
	}
	cfg.MaxUploadSize = maxUpload

	// IMGHOST_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("IMGHOST_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("IMGHOST_LOG_LEVEL: %w", err)
	}

	// IMGHOST_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("IMGHOST_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("IMGHOST_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// IMGHOST_TLS_CERT / IMGHOST_TLS_KEY — опциональный TLS
	cfg.TLSCert = getEnvDefault("IMGHOST_TLS_CERT", "")
	cfg.TLSKey = getEnvDefault("IMGHOST_TLS_KEY", "")
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return nil, fmt.Errorf("IMGHOST_TLS_CERT и IMGHOST_TLS_KEY должны задаваться вместе")
	}

	// IMGHOST_RECONCILE_INTERVAL — интервал пересборки индекса (по умолчанию 10m)
	cfg.ReconcileInterval, err = getEnvDuration("IMGHOST_RECONCILE_INTERVAL", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("IMGHOST_RECONCILE_INTERVAL: %w", err)
	}

	// IMGHOST_SWEEP_INTERVAL — интервал очистки (по умолчанию 1h)
	cfg.SweepInterval, err = getEnvDuration("IMGHOST_SWEEP_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("IMGHOST_SWEEP_INTERVAL: %w", err)
	}

	// IMGHOST_PENDING_MAX_AGE — возраст брошенной pending-записи (по умолчанию 1h)
	cfg.PendingMaxAge, err = getEnvDuration("IMGHOST_PENDING_MAX_AGE", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("IMGHOST_PENDING_MAX_AGE: %w", err)
	}

	// IMGHOST_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("IMGHOST_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("IMGHOST_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 10m, 1h)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
