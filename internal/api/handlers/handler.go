// handler.go — основной обработчик API College Module.
// Объединяет доменные обработчики и делегирует запросы в сервисный слой.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	apierrors "github.com/bigkaa/goplacement/college-module/internal/api/errors"
	"github.com/bigkaa/goplacement/college-module/internal/api/middleware"
	"github.com/bigkaa/goplacement/college-module/internal/database"
	"github.com/bigkaa/goplacement/college-module/internal/service"
)

// APIHandler — основной обработчик API College Module.
type APIHandler struct {
	health   *HealthHandler
	tenants  *service.TenantService
	colleges *service.CollegeService
	users    *service.UserService
	students *service.StudentService
	pools    *database.Manager
	logger   *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	tenants *service.TenantService,
	colleges *service.CollegeService,
	users *service.UserService,
	students *service.StudentService,
	pools *database.Manager,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:   health,
		tenants:  tenants,
		colleges: colleges,
		users:    users,
		students: students,
		pools:    pools,
		logger:   logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive — liveness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// parsePagination извлекает limit и offset из query-параметров
// и нормализует их.
func parsePagination(r *http.Request) (limit, offset int) {
	limit = 100
	offset = 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 1000 {
		limit = 1000
	}

	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}
	if offset < 0 {
		offset = 0
	}

	return limit, offset
}

// queryFilter возвращает указатель на значение query-параметра
// или nil, если параметр не задан.
func queryFilter(r *http.Request, name string) *string {
	if v := r.URL.Query().Get(name); v != "" {
		return &v
	}
	return nil
}

// requireCollegeScope проверяет право принципала работать с колледжем из
// пути: платформенный администратор — с любым, остальные — только со
// своим. Чужой колледж — 403 с тем же сообщением, что и у шлюза.
func requireCollegeScope(w http.ResponseWriter, r *http.Request, collegeID string) bool {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		apierrors.Unauthorized(w, "Отсутствует принципал в контексте")
		return false
	}
	if principal.IsPlatformAdmin() {
		return true
	}
	if principal.CollegeID() != collegeID {
		apierrors.Forbidden(w, "Доступ к чужому колледжу запрещён")
		return false
	}
	return true
}
