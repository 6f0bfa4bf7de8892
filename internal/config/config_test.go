package config

import (
	"log/slog"
	"os"
	"testing"
	"time"
)

// setEnvs устанавливает переменные окружения с очисткой после теста.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

// minimalEnvs возвращает минимальный набор обязательных переменных.
func minimalEnvs() map[string]string {
	return map[string]string{
		"CM_DB_HOST":      "localhost",
		"CM_DB_NAME":      "goplacement",
		"CM_DB_USER":      "goplacement",
		"CM_DB_PASSWORD":  "secret",
		"CM_KEYCLOAK_URL": "https://keycloak.kryukov.lan",
	}
}

func TestLoad_MinimalConfig(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	// Проверяем значения по умолчанию
	if cfg.Port != 8000 {
		t.Errorf("Port = %d, ожидается 8000", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидается Info", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, ожидается json", cfg.LogFormat)
	}
	if cfg.DBPort != 5432 {
		t.Errorf("DBPort = %d, ожидается 5432", cfg.DBPort)
	}
	if cfg.DBSSLMode != "disable" {
		t.Errorf("DBSSLMode = %q, ожидается disable", cfg.DBSSLMode)
	}
	if cfg.DBMinConns != 1 {
		t.Errorf("DBMinConns = %d, ожидается 1", cfg.DBMinConns)
	}
	if cfg.DBMaxConns != 10 {
		t.Errorf("DBMaxConns = %d, ожидается 10", cfg.DBMaxConns)
	}
	if cfg.DBConnectTimeout != 5*time.Second {
		t.Errorf("DBConnectTimeout = %v, ожидается 5s", cfg.DBConnectTimeout)
	}
	if cfg.DBStatementTimeout != 30*time.Second {
		t.Errorf("DBStatementTimeout = %v, ожидается 30s", cfg.DBStatementTimeout)
	}
	if cfg.DBIdleTimeout != 10*time.Minute {
		t.Errorf("DBIdleTimeout = %v, ожидается 10m", cfg.DBIdleTimeout)
	}
	if cfg.PoolConnectivityTimeout != 3*time.Second {
		t.Errorf("PoolConnectivityTimeout = %v, ожидается 3s", cfg.PoolConnectivityTimeout)
	}
	if cfg.KeycloakRealm != "goplacement" {
		t.Errorf("KeycloakRealm = %q, ожидается goplacement", cfg.KeycloakRealm)
	}
	if cfg.JWTLeeway != 30*time.Second {
		t.Errorf("JWTLeeway = %v, ожидается 30s", cfg.JWTLeeway)
	}
	if cfg.JWKSRefreshInterval != time.Hour {
		t.Errorf("JWKSRefreshInterval = %v, ожидается 1h", cfg.JWKSRefreshInterval)
	}
	if cfg.JWKSClientTimeout != 10*time.Second {
		t.Errorf("JWKSClientTimeout = %v, ожидается 10s", cfg.JWKSClientTimeout)
	}
	if cfg.KeycloakReadinessTimeout != 5*time.Second {
		t.Errorf("KeycloakReadinessTimeout = %v, ожидается 5s", cfg.KeycloakReadinessTimeout)
	}
	if cfg.DephealthGroup != "goplacement" {
		t.Errorf("DephealthGroup = %q, ожидается goplacement", cfg.DephealthGroup)
	}
	if len(cfg.ReservedSubdomains) != 3 {
		t.Errorf("ReservedSubdomains = %v, ожидается [admin api www]", cfg.ReservedSubdomains)
	}
	if cfg.TenantCacheSize != 1000 {
		t.Errorf("TenantCacheSize = %d, ожидается 1000", cfg.TenantCacheSize)
	}
	if cfg.TenantCacheTTL != 30*time.Second {
		t.Errorf("TenantCacheTTL = %v, ожидается 30s", cfg.TenantCacheTTL)
	}
	if cfg.DephealthCheckInterval != 15*time.Second {
		t.Errorf("DephealthCheckInterval = %v, ожидается 15s", cfg.DephealthCheckInterval)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидается 5s", cfg.ShutdownTimeout)
	}
}

func TestLoad_JWTAutoDerive(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	expectedIssuer := "https://keycloak.kryukov.lan/realms/goplacement"
	if cfg.JWTIssuer != expectedIssuer {
		t.Errorf("JWTIssuer = %q, ожидается %q", cfg.JWTIssuer, expectedIssuer)
	}

	expectedJWKS := "https://keycloak.kryukov.lan/realms/goplacement/protocol/openid-connect/certs"
	if cfg.JWTJWKSURL != expectedJWKS {
		t.Errorf("JWTJWKSURL = %q, ожидается %q", cfg.JWTJWKSURL, expectedJWKS)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	envs := minimalEnvs()
	envs["CM_PORT"] = "8004"
	envs["CM_LOG_LEVEL"] = "debug"
	envs["CM_LOG_FORMAT"] = "text"
	envs["CM_DB_PORT"] = "5433"
	envs["CM_DB_SSL_MODE"] = "require"
	envs["CM_DB_MIN_CONNS"] = "2"
	envs["CM_DB_MAX_CONNS"] = "25"
	envs["CM_DB_CONNECT_TIMEOUT"] = "2s"
	envs["CM_DB_STATEMENT_TIMEOUT"] = "10s"
	envs["CM_DB_IDLE_TIMEOUT"] = "5m"
	envs["CM_RESERVED_SUBDOMAINS"] = "Admin, portal"
	envs["CM_SHUTDOWN_TIMEOUT"] = "10s"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 8004 {
		t.Errorf("Port = %d, ожидается 8004", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, ожидается Debug", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q, ожидается text", cfg.LogFormat)
	}
	if cfg.DBPort != 5433 {
		t.Errorf("DBPort = %d, ожидается 5433", cfg.DBPort)
	}
	if cfg.DBSSLMode != "require" {
		t.Errorf("DBSSLMode = %q, ожидается require", cfg.DBSSLMode)
	}
	if cfg.DBMinConns != 2 {
		t.Errorf("DBMinConns = %d, ожидается 2", cfg.DBMinConns)
	}
	if cfg.DBMaxConns != 25 {
		t.Errorf("DBMaxConns = %d, ожидается 25", cfg.DBMaxConns)
	}
	if cfg.DBConnectTimeout != 2*time.Second {
		t.Errorf("DBConnectTimeout = %v, ожидается 2s", cfg.DBConnectTimeout)
	}
	if cfg.DBStatementTimeout != 10*time.Second {
		t.Errorf("DBStatementTimeout = %v, ожидается 10s", cfg.DBStatementTimeout)
	}
	if cfg.DBIdleTimeout != 5*time.Minute {
		t.Errorf("DBIdleTimeout = %v, ожидается 5m", cfg.DBIdleTimeout)
	}
	// Зарезервированные поддомены нормализуются к нижнему регистру
	if len(cfg.ReservedSubdomains) != 2 || cfg.ReservedSubdomains[0] != "admin" || cfg.ReservedSubdomains[1] != "portal" {
		t.Errorf("ReservedSubdomains = %v, ожидается [admin portal]", cfg.ReservedSubdomains)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидается 10s", cfg.ShutdownTimeout)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	requiredVars := []string{
		"CM_DB_HOST", "CM_DB_NAME", "CM_DB_USER", "CM_DB_PASSWORD", "CM_KEYCLOAK_URL",
	}

	for _, missing := range requiredVars {
		t.Run(missing, func(t *testing.T) {
			envs := minimalEnvs()
			delete(envs, missing)
			// Очищаем все переменные окружения
			for k := range minimalEnvs() {
				os.Unsetenv(k)
			}
			setEnvs(t, envs)

			_, err := Load()
			if err == nil {
				t.Errorf("Load() не вернул ошибку при отсутствии %s", missing)
			}
		})
	}
}

func TestLoad_InvalidPort(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"ниже диапазона", "7999"},
		{"выше диапазона", "8010"},
		{"не число", "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envs := minimalEnvs()
			envs["CM_PORT"] = tt.value
			for k := range minimalEnvs() {
				os.Unsetenv(k)
			}
			setEnvs(t, envs)

			_, err := Load()
			if err == nil {
				t.Errorf("Load() не вернул ошибку при CM_PORT=%q", tt.value)
			}
		})
	}
}

func TestLoad_InvalidPoolBounds(t *testing.T) {
	tests := []struct {
		name string
		env  string
		val  string
	}{
		{"max меньше 1", "CM_DB_MAX_CONNS", "0"},
		{"min отрицательный", "CM_DB_MIN_CONNS", "-1"},
		{"min больше max", "CM_DB_MIN_CONNS", "100"},
		{"нулевой кэш резолва", "CM_TENANT_CACHE_SIZE", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envs := minimalEnvs()
			envs[tt.env] = tt.val
			for k := range minimalEnvs() {
				os.Unsetenv(k)
			}
			setEnvs(t, envs)

			_, err := Load()
			if err == nil {
				t.Errorf("Load() не вернул ошибку при %s=%q", tt.env, tt.val)
			}
		})
	}
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	envs := minimalEnvs()
	envs["CM_LOG_LEVEL"] = "verbose"
	setEnvs(t, envs)

	_, err := Load()
	if err == nil {
		t.Error("Load() не вернул ошибку при CM_LOG_LEVEL=verbose")
	}
}

func TestLoad_InvalidLogFormat(t *testing.T) {
	envs := minimalEnvs()
	envs["CM_LOG_FORMAT"] = "xml"
	setEnvs(t, envs)

	_, err := Load()
	if err == nil {
		t.Error("Load() не вернул ошибку при CM_LOG_FORMAT=xml")
	}
}

func TestLoad_InvalidSSLMode(t *testing.T) {
	envs := minimalEnvs()
	envs["CM_DB_SSL_MODE"] = "prefer"
	setEnvs(t, envs)

	_, err := Load()
	if err == nil {
		t.Error("Load() не вернул ошибку при CM_DB_SSL_MODE=prefer")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	envs := minimalEnvs()
	envs["CM_DB_STATEMENT_TIMEOUT"] = "abc"
	setEnvs(t, envs)

	_, err := Load()
	if err == nil {
		t.Error("Load() не вернул ошибку при CM_DB_STATEMENT_TIMEOUT=abc")
	}
}

func TestDatabaseDSN(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	want := "host=localhost port=5432 dbname=goplacement user=goplacement password=secret sslmode=disable"
	if got := cfg.DatabaseDSN(); got != want {
		t.Errorf("DatabaseDSN() = %q, ожидается %q", got, want)
	}
}
