// Пакет config — загрузка и валидация конфигурации College Module
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

// Config содержит все параметры конфигурации College Module.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (диапазон 8000-8009)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- PostgreSQL (основная БД платформы) ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Пулы соединений (основной и пулы арендаторов) ---

	// Минимальное число соединений в пуле
	DBMinConns int
	// Максимальное число соединений в пуле
	DBMaxConns int
	// Таймаут установления соединения
	DBConnectTimeout time.Duration
	// statement_timeout для всех соединений пула
	DBStatementTimeout time.Duration
	// Время простоя соединения до закрытия
	DBIdleTimeout time.Duration
	// Таймаут одной проверки связности пула (testConnectivity)
	PoolConnectivityTimeout time.Duration

	// --- Keycloak (IdP платформы) ---

	// URL Keycloak (например, https://keycloak.kryukov.lan)
	KeycloakURL string
	// Имя realm в Keycloak
	KeycloakRealm string
	// Путь к CA-сертификату для TLS-соединений с Keycloak (опционально)
	KeycloakCACertPath string

	// --- JWT ---

	// Issuer JWT (авто-вычисляется из KeycloakURL, если не задан)
	JWTIssuer string
	// URL JWKS endpoint (авто-вычисляется из KeycloakURL, если не задан)
	JWTJWKSURL string
	// Допустимое расхождение часов при проверке exp/iat
	JWTLeeway time.Duration
	// Интервал обновления JWKS
	JWKSRefreshInterval time.Duration
	// Таймаут HTTP-клиента JWKS
	JWKSClientTimeout time.Duration
	// Таймаут проверки готовности Keycloak
	KeycloakReadinessTimeout time.Duration

	// --- Мультиарендность ---

	// Зарезервированные поддомены: для admin.acme.example.com ключом
	// арендатора служит вторая метка (через запятую)
	ReservedSubdomains []string
	// Максимальное число записей в LRU-кэше резолва поддоменов
	TenantCacheSize int
	// TTL записи кэша резолва: верхняя граница устаревания
	// привязки поддомен → колледж
	TenantCacheTTL time.Duration

	// --- Наблюдаемость ---

	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration

	// Имя группы в метриках topologymetrics
	DephealthGroup string

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера и закрытия пулов
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// CM_PORT — порт HTTP-сервера (по умолчанию 8000)
	cfg.Port, err = getEnvInt("CM_PORT", 8000)
	if err != nil {
		return nil, fmt.Errorf("CM_PORT: %w", err)
	}
	if cfg.Port < 8000 || cfg.Port > 8009 {
		return nil, fmt.Errorf("CM_PORT: значение %d вне допустимого диапазона 8000-8009", cfg.Port)
	}

	// CM_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("CM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("CM_LOG_LEVEL: %w", err)
	}

	// CM_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("CM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("CM_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- PostgreSQL ---

	// CM_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("CM_DB_HOST")
	if err != nil {
		return nil, err
	}

	// CM_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("CM_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("CM_DB_PORT: %w", err)
	}

	// CM_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("CM_DB_NAME")
	if err != nil {
		return nil, err
	}

	// CM_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("CM_DB_USER")
	if err != nil {
		return nil, err
	}

	// CM_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("CM_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// CM_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("CM_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("CM_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Пулы соединений ---

	// CM_DB_MIN_CONNS — минимум соединений в пуле (по умолчанию 1)
	cfg.DBMinConns, err = getEnvInt("CM_DB_MIN_CONNS", 1)
	if err != nil {
		return nil, fmt.Errorf("CM_DB_MIN_CONNS: %w", err)
	}

	// CM_DB_MAX_CONNS — максимум соединений в пуле (по умолчанию 10)
	cfg.DBMaxConns, err = getEnvInt("CM_DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("CM_DB_MAX_CONNS: %w", err)
	}
	if cfg.DBMaxConns < 1 {
		return nil, fmt.Errorf("CM_DB_MAX_CONNS: значение %d должно быть >= 1", cfg.DBMaxConns)
	}
	if cfg.DBMinConns < 0 || cfg.DBMinConns > cfg.DBMaxConns {
		return nil, fmt.Errorf("CM_DB_MIN_CONNS: значение %d вне диапазона 0-%d", cfg.DBMinConns, cfg.DBMaxConns)
	}

	// CM_DB_CONNECT_TIMEOUT — таймаут соединения (по умолчанию 5s)
	cfg.DBConnectTimeout, err = getEnvDuration("CM_DB_CONNECT_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CM_DB_CONNECT_TIMEOUT: %w", err)
	}

	// CM_DB_STATEMENT_TIMEOUT — statement_timeout (по умолчанию 30s)
	cfg.DBStatementTimeout, err = getEnvDuration("CM_DB_STATEMENT_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CM_DB_STATEMENT_TIMEOUT: %w", err)
	}

	// CM_DB_IDLE_TIMEOUT — время простоя соединения (по умолчанию 10m)
	cfg.DBIdleTimeout, err = getEnvDuration("CM_DB_IDLE_TIMEOUT", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("CM_DB_IDLE_TIMEOUT: %w", err)
	}

	// CM_POOL_CONNECTIVITY_TIMEOUT — таймаут проверки связности (по умолчанию 3s)
	cfg.PoolConnectivityTimeout, err = getEnvDuration("CM_POOL_CONNECTIVITY_TIMEOUT", 3*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CM_POOL_CONNECTIVITY_TIMEOUT: %w", err)
	}

	// --- Keycloak ---

	// CM_KEYCLOAK_URL — обязательный
	cfg.KeycloakURL, err = getEnvRequired("CM_KEYCLOAK_URL")
	if err != nil {
		return nil, err
	}
	// Убираем trailing slash
	cfg.KeycloakURL = strings.TrimRight(cfg.KeycloakURL, "/")

	// CM_KEYCLOAK_REALM — realm (по умолчанию goplacement)
	cfg.KeycloakRealm = getEnvDefault("CM_KEYCLOAK_REALM", "goplacement")

	// CM_KEYCLOAK_CA_CERT_PATH — путь к CA-сертификату (опционально)
	cfg.KeycloakCACertPath = getEnvDefault("CM_KEYCLOAK_CA_CERT_PATH", "")

	// --- JWT ---

	// CM_JWT_ISSUER — авто-вычисляется из KeycloakURL, если не задан
	cfg.JWTIssuer = getEnvDefault("CM_JWT_ISSUER",
		fmt.Sprintf("%s/realms/%s", cfg.KeycloakURL, cfg.KeycloakRealm))

	// CM_JWT_JWKS_URL — авто-вычисляется из KeycloakURL, если не задан
	cfg.JWTJWKSURL = getEnvDefault("CM_JWT_JWKS_URL",
		fmt.Sprintf("%s/realms/%s/protocol/openid-connect/certs", cfg.KeycloakURL, cfg.KeycloakRealm))

	// CM_JWT_LEEWAY — допуск расхождения часов (по умолчанию 30s)
	cfg.JWTLeeway, err = getEnvDuration("CM_JWT_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CM_JWT_LEEWAY: %w", err)
	}

	// CM_JWKS_REFRESH_INTERVAL — интервал обновления JWKS (по умолчанию 1h)
	cfg.JWKSRefreshInterval, err = getEnvDuration("CM_JWKS_REFRESH_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("CM_JWKS_REFRESH_INTERVAL: %w", err)
	}

	// CM_JWKS_CLIENT_TIMEOUT — таймаут HTTP-клиента JWKS (по умолчанию 10s)
	cfg.JWKSClientTimeout, err = getEnvDuration("CM_JWKS_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CM_JWKS_CLIENT_TIMEOUT: %w", err)
	}

	// CM_KEYCLOAK_READINESS_TIMEOUT — таймаут проверки готовности Keycloak (по умолчанию 5s)
	cfg.KeycloakReadinessTimeout, err = getEnvDuration("CM_KEYCLOAK_READINESS_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CM_KEYCLOAK_READINESS_TIMEOUT: %w", err)
	}

	// --- Мультиарендность ---

	// CM_RESERVED_SUBDOMAINS — зарезервированные поддомены (по умолчанию admin,api,www)
	cfg.ReservedSubdomains = parseCSV(getEnvDefault("CM_RESERVED_SUBDOMAINS", "admin,api,www"))

	// CM_TENANT_CACHE_SIZE — размер LRU-кэша резолва поддоменов (по умолчанию 1000)
	cfg.TenantCacheSize, err = getEnvInt("CM_TENANT_CACHE_SIZE", 1000)
	if err != nil {
		return nil, fmt.Errorf("CM_TENANT_CACHE_SIZE: %w", err)
	}
	if cfg.TenantCacheSize < 1 {
		return nil, fmt.Errorf("CM_TENANT_CACHE_SIZE: значение %d должно быть положительным", cfg.TenantCacheSize)
	}

	// CM_TENANT_CACHE_TTL — TTL записи кэша резолва (по умолчанию 30s)
	cfg.TenantCacheTTL, err = getEnvDuration("CM_TENANT_CACHE_TTL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CM_TENANT_CACHE_TTL: %w", err)
	}

	// --- Наблюдаемость ---

	// CM_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("CM_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// CM_DEPHEALTH_GROUP — имя группы в метриках topologymetrics (по умолчанию goplacement)
	cfg.DephealthGroup = getEnvDefault("CM_DEPHEALTH_GROUP", "goplacement")

	// --- Graceful shutdown ---

	// CM_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("CM_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CM_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к основной БД платформы.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
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

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

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

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
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

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются,
// значения приводятся к нижнему регистру.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
