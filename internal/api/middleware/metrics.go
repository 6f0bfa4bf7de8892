// metrics.go — Prometheus HTTP метрики для College Module.
// Регистрирует метрики: cm_http_requests_total, cm_http_request_duration_seconds.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cm_http_requests_total",
			Help: "Общее количество HTTP-запросов к College Module",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cm_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к College Module в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик
			// (заменяем UUID на {id} для предотвращения кардинальности)
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// normalizePath заменяет UUID-сегменты пути на {id} для предотвращения
// взрывного роста кардинальности метрик.
// /api/v1/colleges/a1b2c3d4-.../users → /api/v1/colleges/{id}/users
func normalizePath(path string) string {
	// Статические пути — возвращаем как есть
	switch path {
	case "/health/live", "/health/ready", "/metrics",
		"/api/v1/auth/me",
		"/api/v1/tenants",
		"/api/v1/colleges",
		"/api/v1/pools/stats",
		"/api/v1/pools/connectivity":
		return path
	}

	const tenantsPrefix = "/api/v1/tenants/"
	if strings.HasPrefix(path, tenantsPrefix) {
		return "/api/v1/tenants/{id}"
	}

	// Вложенные пути колледжа: после UUID (36 символов) может идти
	// коллекция сотрудников или студентов
	const collegesPrefix = "/api/v1/colleges/"
	if strings.HasPrefix(path, collegesPrefix) {
		suffix := ""
		if len(path) > len(collegesPrefix)+36 {
			suffix = path[len(collegesPrefix)+36:]
		}
		switch {
		case suffix == "/users":
			return "/api/v1/colleges/{id}/users"
		case strings.HasPrefix(suffix, "/users/"):
			return "/api/v1/colleges/{id}/users/{user_id}"
		case suffix == "/students":
			return "/api/v1/colleges/{id}/students"
		case strings.HasPrefix(suffix, "/students/"):
			return "/api/v1/colleges/{id}/students/{student_id}"
		default:
			return "/api/v1/colleges/{id}"
		}
	}

	return path
}
