// Точка входа College Module — модуль авторизации запросов платформы Goplacement.
// Загружает конфигурацию, применяет миграции основной БД, создаёт менеджер
// пулов арендаторов, сервисный слой и API handlers, инициализирует JWT gate
// и резолвер арендатора, запускает topologymetrics и HTTP-сервер
// с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bigkaa/goplacement/college-module/internal/api/handlers"
	"github.com/bigkaa/goplacement/college-module/internal/api/middleware"
	"github.com/bigkaa/goplacement/college-module/internal/config"
	"github.com/bigkaa/goplacement/college-module/internal/database"
	"github.com/bigkaa/goplacement/college-module/internal/repository"
	"github.com/bigkaa/goplacement/college-module/internal/server"
	"github.com/bigkaa/goplacement/college-module/internal/service"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("College Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// Предупреждения о дефолтных значениях topologymetrics
	if os.Getenv("CM_DEPHEALTH_GROUP") == "" {
		logger.Warn("CM_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. Применение миграций основной БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к основной БД платформы (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
	// Проверка здоровья PostgreSQL будет идти через существующий пул соединений,
	// что позволяет обнаружить его исчерпание.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Менеджер пулов арендаторов. Владеет основным пулом и пулами
	// выделенных БД, закрывает их все при остановке.
	manager, err := database.NewManager(pool, database.PoolSettingsFromConfig(cfg), logger)
	if err != nil {
		logger.Error("Ошибка создания менеджера пулов", slog.String("error", err.Error()))
		os.Exit(1)
	}
	prometheus.MustRegister(database.NewStatsCollector(manager))

	// 6. Repositories основного раздела
	tenantRepo := repository.NewTenantRepository(pool)
	collegeRepo := repository.NewCollegeRepository(pool)
	txRunner := repository.NewTxRunner(pool, logger)

	// 7. Services
	tenantsSvc := service.NewTenantService(tenantRepo, txRunner, logger)
	collegesSvc := service.NewCollegeService(collegeRepo, txRunner, cfg.ReservedSubdomains, logger)
	usersSvc := service.NewUserService(collegeRepo, manager, logger)
	studentsSvc := service.NewStudentService(collegeRepo, manager, logger)
	identitySvc := service.NewIdentityService(collegeRepo, manager, logger)

	// 8. JWT middleware с подтверждением личности в разделе арендатора
	jwtAuth, err := middleware.NewJWTAuth(
		cfg.JWTJWKSURL,
		cfg.KeycloakCACertPath,
		cfg.JWTIssuer,
		identitySvc,
		cfg.JWKSClientTimeout,
		cfg.JWKSRefreshInterval,
		cfg.JWTLeeway,
		logger,
	)
	if err != nil {
		logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer jwtAuth.Close()
	logger.Info("JWT middleware инициализирован",
		slog.String("jwks_url", cfg.JWTJWKSURL),
		slog.String("issuer", cfg.JWTIssuer),
	)

	// 9. Резолвер арендатора по поддомену Host-заголовка
	tenantResolver := middleware.NewTenantResolver(
		collegeRepo, cfg.ReservedSubdomains, cfg.TenantCacheSize, cfg.TenantCacheTTL, logger,
	)
	logger.Info("Резолвер арендатора инициализирован",
		slog.Int("reserved_subdomains", len(cfg.ReservedSubdomains)),
		slog.Int("cache_size", cfg.TenantCacheSize),
		slog.Duration("cache_ttl", cfg.TenantCacheTTL),
	)

	// 10. topologymetrics — мониторинг зависимостей (PostgreSQL + Keycloak)
	var dephealthSvc *service.DephealthService
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"college-module",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseDSN(),
		cfg.JWTJWKSURL,
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 11. Readiness checkers (PostgreSQL + Keycloak)
	pgChecker := database.NewReadinessChecker(pool)
	kcChecker, err := middleware.NewKeycloakReadinessChecker(
		cfg.JWTJWKSURL,
		cfg.KeycloakCACertPath,
		cfg.KeycloakReadinessTimeout,
	)
	if err != nil {
		logger.Error("Ошибка создания Keycloak readiness checker", slog.String("error", err.Error()))
		os.Exit(1)
	}
	healthHandler := handlers.NewHealthHandler(pgChecker, kcChecker)

	// 12. API handler
	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		tenantsSvc,
		collegesSvc,
		usersSvc,
		studentsSvc,
		manager,
		logger,
	)

	// 13. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, tenantResolver, jwtAuth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 14. Остановка фоновых задач и закрытие пулов.
	// Основной пул закрывается менеджером вместе с пулами арендаторов.
	logger.Info("Останавливаем фоновые задачи...")

	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	manager.Close()

	logger.Info("College Module остановлен")
}
