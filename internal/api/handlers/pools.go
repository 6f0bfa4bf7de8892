// pools.go — обработчики /api/v1/pools endpoints.
// Наблюдаемость менеджера пулов: статистика соединений и проверка
// связности разделов. Доступ — только platform_admin.
package handlers

import (
	"net/http"
	"time"

	"github.com/bigkaa/goplacement/college-module/internal/database"
)

// poolStatResponse — статистика одного пула в API.
type poolStatResponse struct {
	TenantID          string     `json:"tenant_id,omitempty"`
	TenantName        string     `json:"tenant_name"`
	TotalConns        int32      `json:"total_conns"`
	IdleConns         int32      `json:"idle_conns"`
	AcquiredConns     int32      `json:"acquired_conns"`
	ConstructingConns int32      `json:"constructing_conns"`
	MaxConns          int32      `json:"max_conns"`
	AcquireCount      int64      `json:"acquire_count"`
	EmptyAcquireCount int64      `json:"empty_acquire_count"`
	CreatedAt         *time.Time `json:"created_at,omitempty"`
}

// poolStatsResponse — ответ GET /api/v1/pools/stats.
type poolStatsResponse struct {
	Default poolStatResponse   `json:"default"`
	Tenants []poolStatResponse `json:"tenants"`
}

// connectivityResultResponse — результат проверки связности одного пула.
type connectivityResultResponse struct {
	TenantID   string `json:"tenant_id,omitempty"`
	TenantName string `json:"tenant_name"`
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
	LatencyMS  int64  `json:"latency_ms"`
}

// connectivityResponse — ответ GET /api/v1/pools/connectivity.
type connectivityResponse struct {
	Default connectivityResultResponse   `json:"default"`
	Tenants []connectivityResultResponse `json:"tenants"`
}

func mapPoolStat(s database.PoolStat) poolStatResponse {
	resp := poolStatResponse{
		TenantID:          s.TenantID,
		TenantName:        s.TenantName,
		TotalConns:        s.TotalConns,
		IdleConns:         s.IdleConns,
		AcquiredConns:     s.AcquiredConns,
		ConstructingConns: s.ConstructingConns,
		MaxConns:          s.MaxConns,
		AcquireCount:      s.AcquireCount,
		EmptyAcquireCount: s.EmptyAcquireCount,
	}
	if !s.CreatedAt.IsZero() {
		createdAt := s.CreatedAt
		resp.CreatedAt = &createdAt
	}
	return resp
}

func mapConnectivity(c database.ConnectivityResult) connectivityResultResponse {
	return connectivityResultResponse{
		TenantID:   c.TenantID,
		TenantName: c.TenantName,
		OK:         c.OK,
		Error:      c.Error,
		LatencyMS:  c.Latency.Milliseconds(),
	}
}

// GetPoolStats — GET /api/v1/pools/stats.
// Снимок статистики основного пула и пулов арендаторов. Никогда не
// ошибается: статистика собирается из живых пулов без обращений к БД.
func (h *APIHandler) GetPoolStats(w http.ResponseWriter, r *http.Request) {
	stats := h.pools.Stats()

	resp := poolStatsResponse{
		Default: mapPoolStat(stats.Default),
		Tenants: make([]poolStatResponse, len(stats.Tenants)),
	}
	for i, s := range stats.Tenants {
		resp.Tenants[i] = mapPoolStat(s)
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetPoolConnectivity — GET /api/v1/pools/connectivity.
// Ping каждого пула; недоступность одной БД арендатора не влияет на
// результат остальных. Ответ всегда 200: отказ виден в полях ok/error.
func (h *APIHandler) GetPoolConnectivity(w http.ResponseWriter, r *http.Request) {
	report := h.pools.TestConnectivity(r.Context())

	resp := connectivityResponse{
		Default: mapConnectivity(report.Default),
		Tenants: make([]connectivityResultResponse, len(report.Tenants)),
	}
	for i, c := range report.Tenants {
		resp.Tenants[i] = mapConnectivity(c)
	}

	writeJSON(w, http.StatusOK, resp)
}
