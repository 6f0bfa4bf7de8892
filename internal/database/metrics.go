// metrics.go — Prometheus метрики пулов соединений College Module.
// Счётчики жизненного цикла пулов и Collector со снимком pgxpool.Stat.
package database

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики пулов
var (
	// tenantPoolsCreated — количество созданных пулов выделенных БД арендаторов.
	tenantPoolsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cm_tenant_pools_created_total",
			Help: "Количество созданных пулов выделенных БД арендаторов",
		},
	)

	// tenantPoolErrors — количество неудачных созданий пулов арендаторов.
	tenantPoolErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cm_tenant_pool_errors_total",
			Help: "Количество ошибок создания пулов выделенных БД арендаторов",
		},
	)

	// poolConnects — количество установленных соединений с PostgreSQL.
	poolConnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cm_db_pool_connects_total",
			Help: "Количество установленных соединений с PostgreSQL по разделам",
		},
		[]string{"partition"},
	)

	// poolDisconnects — количество закрытых соединений с PostgreSQL.
	poolDisconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cm_db_pool_disconnects_total",
			Help: "Количество закрытых соединений с PostgreSQL по разделам",
		},
		[]string{"partition"},
	)
)

// Дескрипторы StatsCollector
var (
	descPoolConns = prometheus.NewDesc(
		"cm_db_pool_connections",
		"Соединения пулов PostgreSQL по разделам и состояниям",
		[]string{"partition", "state"}, nil,
	)
	descPoolMax = prometheus.NewDesc(
		"cm_db_pool_max_connections",
		"Предел соединений пулов PostgreSQL по разделам",
		[]string{"partition"}, nil,
	)
	descTenantPools = prometheus.NewDesc(
		"cm_tenant_pools",
		"Текущее количество пулов выделенных БД арендаторов",
		nil, nil,
	)
)

// StatsCollector — prometheus.Collector поверх Manager.Stats().
// Снимок статистики пулов собирается в момент scrape, без фоновых
// обновлений. Регистрируется в main.
type StatsCollector struct {
	manager *Manager
}

// NewStatsCollector создаёт Collector статистики пулов.
func NewStatsCollector(m *Manager) *StatsCollector {
	return &StatsCollector{manager: m}
}

// Describe отправляет дескрипторы метрик.
func (c *StatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descPoolConns
	ch <- descPoolMax
	ch <- descTenantPools
}

// Collect отправляет текущий снимок статистики пулов.
func (c *StatsCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.manager.Stats()

	emit := func(st PoolStat) {
		ch <- prometheus.MustNewConstMetric(descPoolConns, prometheus.GaugeValue,
			float64(st.TotalConns), st.TenantName, "total")
		ch <- prometheus.MustNewConstMetric(descPoolConns, prometheus.GaugeValue,
			float64(st.IdleConns), st.TenantName, "idle")
		ch <- prometheus.MustNewConstMetric(descPoolConns, prometheus.GaugeValue,
			float64(st.AcquiredConns), st.TenantName, "acquired")
		ch <- prometheus.MustNewConstMetric(descPoolConns, prometheus.GaugeValue,
			float64(st.ConstructingConns), st.TenantName, "constructing")
		ch <- prometheus.MustNewConstMetric(descPoolMax, prometheus.GaugeValue,
			float64(st.MaxConns), st.TenantName)
	}

	emit(stats.Default)
	for _, st := range stats.Tenants {
		emit(st)
	}
	ch <- prometheus.MustNewConstMetric(descTenantPools, prometheus.GaugeValue,
		float64(len(stats.Tenants)))
}
