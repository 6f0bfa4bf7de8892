package database

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/goplacement/college-module/internal/config"
)

// setupTestDB запускает PostgreSQL в Docker-контейнере через testcontainers.
// Возвращает конфиг, указывающий на контейнер.
func setupTestDB(t *testing.T) *config.Config {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("goplacement_test"),
		postgres.WithUsername("goplacement"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	// Создаём конфиг с минимальными значениями
	os.Setenv("CM_DB_HOST", host)
	os.Setenv("CM_DB_PORT", port.Port())
	os.Setenv("CM_DB_NAME", "goplacement_test")
	os.Setenv("CM_DB_USER", "goplacement")
	os.Setenv("CM_DB_PASSWORD", "test-password")
	os.Setenv("CM_DB_SSL_MODE", "disable")
	os.Setenv("CM_DB_STATEMENT_TIMEOUT", "5s")
	os.Setenv("CM_KEYCLOAK_URL", "http://localhost:8080")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	return cfg
}

// TestConnect проверяет подключение к PostgreSQL через pgxpool.
func TestConnect(t *testing.T) {
	cfg := setupTestDB(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	pool, err := Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	// Проверяем ping
	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("pool.Ping() вернул ошибку: %v", err)
	}

	// statement_timeout из конфига должен примениться к сессиям пула
	var timeout string
	if err := pool.QueryRow(ctx, `SHOW statement_timeout`).Scan(&timeout); err != nil {
		t.Fatalf("SHOW statement_timeout вернул ошибку: %v", err)
	}
	if timeout != "5s" {
		t.Errorf("statement_timeout = %q, ожидается 5s", timeout)
	}
}

// TestMigrate проверяет применение миграций.
func TestMigrate(t *testing.T) {
	cfg := setupTestDB(t)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	// Применяем миграции
	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Migrate() вернул ошибку: %v", err)
	}

	// Повторное применение — должно быть без ошибки (ErrNoChange)
	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Повторный Migrate() вернул ошибку: %v", err)
	}

	// Проверяем, что таблицы созданы
	ctx := context.Background()
	pool, err := Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	tables := []string{
		"tenants",
		"colleges",
		"users",
		"students",
	}

	for _, table := range tables {
		var exists bool
		err := pool.QueryRow(ctx,
			`SELECT EXISTS (
				SELECT FROM information_schema.tables
				WHERE table_schema = 'public' AND table_name = $1
			)`, table).Scan(&exists)
		if err != nil {
			t.Fatalf("Ошибка проверки таблицы %s: %v", table, err)
		}
		if !exists {
			t.Errorf("Таблица %s не создана", table)
		}
	}
}

// TestManager_DedicatedTenantDB — пул выделенной БД арендатора против
// реального PostgreSQL: создание, запрос, проверка связности.
func TestManager_DedicatedTenantDB(t *testing.T) {
	cfg := setupTestDB(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	pool, err := Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	// Отдельная база в том же контейнере играет роль выделенной БД арендатора
	if _, err := pool.Exec(ctx, `CREATE DATABASE acme_tenant`); err != nil {
		t.Fatalf("CREATE DATABASE вернул ошибку: %v", err)
	}

	manager, err := NewManager(pool, PoolSettingsFromConfig(cfg), logger)
	if err != nil {
		t.Fatalf("NewManager вернул ошибку: %v", err)
	}

	desc := TenantDescriptor{
		TenantID:   "6f0d1c9e-1b7a-4f2e-9c56-2b8f1a7d3e44",
		TenantName: "acme",
		DSN: fmt.Sprintf("postgres://%s:%s@%s:%d/acme_tenant?sslmode=disable",
			cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort),
	}

	tenantDB, err := manager.PoolFor(ctx, desc)
	if err != nil {
		t.Fatalf("PoolFor() вернул ошибку: %v", err)
	}
	if tenantDB == manager.Default() {
		t.Fatal("пул выделенной БД совпал с основным")
	}

	var one int
	if err := tenantDB.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		t.Fatalf("запрос к БД арендатора вернул ошибку: %v", err)
	}

	report := manager.TestConnectivity(ctx)
	if !report.Default.OK {
		t.Error("основной пул не прошёл проверку связности")
	}
	if len(report.Tenants) != 1 || !report.Tenants[0].OK {
		t.Errorf("пул арендатора не прошёл проверку связности: %+v", report.Tenants)
	}
}

// TestReadinessChecker проверяет ReadinessChecker.
func TestReadinessChecker(t *testing.T) {
	cfg := setupTestDB(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	pool, err := Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	checker := NewReadinessChecker(pool)

	// Проверяем готовность — должен вернуть "ok"
	status, msg := checker.CheckReady()
	if status != "ok" {
		t.Errorf("CheckReady() status = %q, message = %q; ожидали status = %q",
			status, msg, "ok")
	}
}
