// Пакет server — HTTP-сервер College Module с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на API Gateway.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/goplacement/college-module/internal/api/handlers"
	"github.com/bigkaa/goplacement/college-module/internal/api/middleware"
	"github.com/bigkaa/goplacement/college-module/internal/config"
	"github.com/bigkaa/goplacement/college-module/internal/domain/role"
)

// Server — HTTP-сервер College Module.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт новый HTTP-сервер с настроенными routes и middleware.
// tenantResolver и jwtAuth могут быть nil для тестирования без
// резолвинга арендатора и без аутентификации.
func New(
	cfg *config.Config,
	logger *slog.Logger,
	handler *handlers.APIHandler,
	tenantResolver *middleware.TenantResolver,
	jwtAuth *middleware.JWTAuth,
) *Server {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам).
	// TenantResolver идёт до RequestLogger, чтобы логи запросов содержали
	// tenant_state и subdomain.
	router.Use(middleware.MetricsMiddleware())
	if tenantResolver != nil {
		router.Use(tenantResolver.Middleware())
	}
	router.Use(middleware.RequestLogger(logger))

	// JWT middleware с исключениями для публичных endpoints.
	// Health и metrics проверяются Kubernetes напрямую, без API Gateway.
	if jwtAuth != nil {
		router.Use(jwtAuthWithExclusions(jwtAuth, "/health/", "/metrics"))
	}

	registerRoutes(router, handler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// registerRoutes описывает все маршруты API.
// Роли проверяются RequireRole на уровне групп маршрутов; принадлежность
// к колледжу из пути — внутри handlers (requireCollegeScope).
func registerRoutes(router chi.Router, h *handlers.APIHandler) {
	// Публичные endpoints
	router.Get("/health/live", h.HealthLive)
	router.Get("/health/ready", h.HealthReady)
	router.Get("/metrics", h.GetMetrics)

	router.Route("/api/v1", func(r chi.Router) {
		// Любой аутентифицированный принципал
		r.Get("/auth/me", h.GetCurrentPrincipal)

		// Арендаторы — только администратор платформы
		r.Route("/tenants", func(r chi.Router) {
			r.Use(middleware.RequireRole(role.PlatformAdmin))
			r.Post("/", h.CreateTenant)
			r.Get("/", h.ListTenants)
			r.Get("/{id}", h.GetTenant)
			r.Delete("/{id}", h.DeleteTenant)
		})

		r.Route("/colleges", func(r chi.Router) {
			// Чтение карточки колледжа доступно и его собственному
			// college_admin (проверка принадлежности — в handler)
			r.With(middleware.RequireRole(role.PlatformAdmin, role.CollegeAdmin)).
				Get("/{id}", h.GetCollege)

			// Управление колледжами — только администратор платформы
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(role.PlatformAdmin))
				r.Post("/", h.CreateCollege)
				r.Get("/", h.ListColleges)
				r.Put("/{id}", h.UpdateCollege)
				r.Delete("/{id}", h.DeleteCollege)
			})

			// Сотрудники колледжа
			r.Route("/{collegeID}/users", func(r chi.Router) {
				r.Use(middleware.RequireRole(role.PlatformAdmin, role.CollegeAdmin))
				r.Post("/", h.CreateUser)
				r.Get("/", h.ListUsers)
				r.Get("/{userID}", h.GetUser)
				r.Put("/{userID}", h.UpdateUser)
				r.Delete("/{userID}", h.DeleteUser)
			})

			// Студенты колледжа (преподавателям доступно управление)
			r.Route("/{collegeID}/students", func(r chi.Router) {
				r.Use(middleware.RequireRole(role.PlatformAdmin, role.CollegeAdmin, role.Teacher))
				r.Post("/", h.CreateStudent)
				r.Get("/", h.ListStudents)
				r.Get("/{studentID}", h.GetStudent)
				r.Put("/{studentID}", h.UpdateStudent)
				r.Delete("/{studentID}", h.DeleteStudent)
			})
		})

		// Диагностика пулов соединений — только администратор платформы
		r.Route("/pools", func(r chi.Router) {
			r.Use(middleware.RequireRole(role.PlatformAdmin))
			r.Get("/stats", h.GetPoolStats)
			r.Get("/connectivity", h.GetPoolConnectivity)
		})
	})
}

// jwtAuthWithExclusions оборачивает JWTAuth.Middleware(), пропуская указанные пути.
// Запросы к путям, начинающимся с любого из excludePrefixes, проходят без JWT.
func jwtAuthWithExclusions(jwtAuth *middleware.JWTAuth, excludePrefixes ...string) func(http.Handler) http.Handler {
	jwtMiddleware := jwtAuth.Middleware()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Проверяем, начинается ли путь с исключённого префикса
			for _, prefix := range excludePrefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}

			// Применяем JWT middleware
			jwtMiddleware(next).ServeHTTP(w, r)
		})
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
