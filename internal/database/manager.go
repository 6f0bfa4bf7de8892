package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/singleflight"
)

// ErrInvalidDescriptor — дескриптор арендатора не прошёл валидацию
// (пустой tenant id/name или неразбираемый DSN). Такой дескриптор
// никогда не попадает в кэш пулов.
var ErrInvalidDescriptor = errors.New("некорректный дескриптор подключения арендатора")

// TenantDescriptor — дескриптор подключения арендатора.
// Пустой DSN означает, что данные арендатора живут в основной БД.
type TenantDescriptor struct {
	// TenantID — UUID арендатора
	TenantID string
	// TenantName — имя арендатора (метка метрик и логов)
	TenantName string
	// DSN — строка подключения выделенной БД (пустая — основная БД)
	DSN string
}

// tenantPool — кэшированный пул выделенной БД арендатора.
type tenantPool struct {
	pool       *pgxpool.Pool
	tenantID   string
	tenantName string
	createdAt  time.Time
}

// Manager — менеджер пулов соединений: основной пул платформы плюс
// лениво создаваемые пулы выделенных БД арендаторов. Ключ кэша — DSN,
// поэтому арендаторы с одинаковым DSN разделяют один пул. Повторное
// создание пула при конкурентных запросах подавляется через singleflight.
type Manager struct {
	defaultPool *pgxpool.Pool
	settings    PoolSettings
	logger      *slog.Logger

	mu    sync.RWMutex
	pools map[string]*tenantPool

	group singleflight.Group

	// Подменяются в тестах.
	newPool  func(ctx context.Context, poolCfg *pgxpool.Config) (*pgxpool.Pool, error)
	pingPool func(ctx context.Context, pool *pgxpool.Pool) error
}

// NewManager создаёт менеджер пулов. Основной пул обязателен:
// без него подсистема не считается инициализированной.
func NewManager(defaultPool *pgxpool.Pool, settings PoolSettings, logger *slog.Logger) (*Manager, error) {
	if defaultPool == nil {
		return nil, errors.New("менеджер пулов: основной пул не инициализирован")
	}
	return &Manager{
		defaultPool: defaultPool,
		settings:    settings,
		logger:      logger.With(slog.String("component", "pool-manager")),
		pools:       make(map[string]*tenantPool),
		newPool: func(ctx context.Context, poolCfg *pgxpool.Config) (*pgxpool.Pool, error) {
			return pgxpool.NewWithConfig(ctx, poolCfg)
		},
		pingPool: func(ctx context.Context, pool *pgxpool.Pool) error {
			return pool.Ping(ctx)
		},
	}, nil
}

// Default возвращает основной пул платформы (таблицы tenants и colleges,
// а также данные арендаторов без выделенной БД).
func (m *Manager) Default() *pgxpool.Pool {
	return m.defaultPool
}

// PoolFor возвращает пул для дескриптора арендатора. Пустой DSN —
// основной пул. Для выделенной БД пул создаётся при первом обращении и
// кэшируется; конкурентные вызовы с одним DSN получают один и тот же пул
// (или одну и ту же ошибку). Ошибка создания не кэшируется: следующий
// вызов попробует снова.
func (m *Manager) PoolFor(ctx context.Context, desc TenantDescriptor) (*pgxpool.Pool, error) {
	if desc.TenantID == "" || desc.TenantName == "" {
		return nil, fmt.Errorf("%w: пустой tenant id или имя", ErrInvalidDescriptor)
	}
	if desc.DSN == "" {
		return m.defaultPool, nil
	}

	m.mu.RLock()
	tp, ok := m.pools[desc.DSN]
	m.mu.RUnlock()
	if ok {
		return tp.pool, nil
	}

	v, err, _ := m.group.Do(desc.DSN, func() (any, error) {
		// Пул мог появиться, пока этот вызов ждал своей очереди.
		m.mu.RLock()
		tp, ok := m.pools[desc.DSN]
		m.mu.RUnlock()
		if ok {
			return tp.pool, nil
		}
		return m.createPool(ctx, desc)
	})
	if err != nil {
		return nil, err
	}
	return v.(*pgxpool.Pool), nil
}

// createPool создаёт, проверяет и кэширует пул выделенной БД арендатора.
func (m *Manager) createPool(ctx context.Context, desc TenantDescriptor) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(desc.DSN)
	if err != nil {
		tenantPoolErrors.Inc()
		return nil, fmt.Errorf("%w: арендатор %s: %v", ErrInvalidDescriptor, desc.TenantID, err)
	}
	applySettings(poolCfg, m.settings, desc.TenantName, m.logger)

	pool, err := m.newPool(ctx, poolCfg)
	if err != nil {
		tenantPoolErrors.Inc()
		return nil, fmt.Errorf("ошибка создания пула арендатора %s: %w", desc.TenantID, err)
	}

	// Проверяем доступность БД до публикации пула в кэше.
	pingCtx, cancel := context.WithTimeout(ctx, m.settings.ConnectTimeout)
	err = m.pingPool(pingCtx, pool)
	cancel()
	if err != nil {
		pool.Close()
		tenantPoolErrors.Inc()
		return nil, fmt.Errorf("БД арендатора %s недоступна: %w", desc.TenantID, err)
	}

	m.mu.Lock()
	m.pools[desc.DSN] = &tenantPool{
		pool:       pool,
		tenantID:   desc.TenantID,
		tenantName: desc.TenantName,
		createdAt:  time.Now(),
	}
	total := len(m.pools)
	m.mu.Unlock()

	tenantPoolsCreated.Inc()
	m.logger.Info("Создан пул выделенной БД арендатора",
		slog.String("tenant_id", desc.TenantID),
		slog.String("tenant", desc.TenantName),
		slog.Int("tenant_pools", total),
	)
	return pool, nil
}

// PoolStat — снимок статистики одного пула.
type PoolStat struct {
	// TenantID — UUID арендатора (пустой для основного пула)
	TenantID string
	// TenantName — имя арендатора (default для основного пула)
	TenantName string
	// TotalConns — всего соединений в пуле
	TotalConns int32
	// IdleConns — простаивающие соединения
	IdleConns int32
	// AcquiredConns — занятые соединения
	AcquiredConns int32
	// ConstructingConns — устанавливаемые соединения
	ConstructingConns int32
	// MaxConns — предел пула
	MaxConns int32
	// AcquireCount — всего захватов соединений
	AcquireCount int64
	// EmptyAcquireCount — захваты, ждавшие освобождения соединения
	EmptyAcquireCount int64
	// CreatedAt — время создания пула
	CreatedAt time.Time
}

// ManagerStats — статистика всех пулов. Снимок, ошибок не бывает.
type ManagerStats struct {
	// Default — основной пул
	Default PoolStat
	// Tenants — пулы выделенных БД арендаторов
	Tenants []PoolStat
}

func snapshotStat(p *pgxpool.Pool, tenantID, tenantName string, createdAt time.Time) PoolStat {
	st := p.Stat()
	return PoolStat{
		TenantID:          tenantID,
		TenantName:        tenantName,
		TotalConns:        st.TotalConns(),
		IdleConns:         st.IdleConns(),
		AcquiredConns:     st.AcquiredConns(),
		ConstructingConns: st.ConstructingConns(),
		MaxConns:          st.MaxConns(),
		AcquireCount:      st.AcquireCount(),
		EmptyAcquireCount: st.EmptyAcquireCount(),
		CreatedAt:         createdAt,
	}
}

// Stats возвращает снимок статистики основного пула и пулов арендаторов.
func (m *Manager) Stats() ManagerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := ManagerStats{
		Default: snapshotStat(m.defaultPool, "", "default", time.Time{}),
		Tenants: make([]PoolStat, 0, len(m.pools)),
	}
	for _, tp := range m.pools {
		stats.Tenants = append(stats.Tenants, snapshotStat(tp.pool, tp.tenantID, tp.tenantName, tp.createdAt))
	}
	return stats
}

// ConnectivityResult — результат проверки связности одного пула.
type ConnectivityResult struct {
	// TenantID — UUID арендатора (пустой для основного пула)
	TenantID string
	// TenantName — имя арендатора (default для основного пула)
	TenantName string
	// OK — пул ответил на ping
	OK bool
	// Error — текст ошибки при OK == false
	Error string
	// Latency — время ответа
	Latency time.Duration
}

// ConnectivityReport — результаты проверки связности всех пулов.
type ConnectivityReport struct {
	// Default — основной пул
	Default ConnectivityResult
	// Tenants — пулы выделенных БД арендаторов
	Tenants []ConnectivityResult
}

// TestConnectivity выполняет ping каждого пула с коротким таймаутом.
// Недоступность одной БД арендатора не влияет на проверки остальных.
func (m *Manager) TestConnectivity(ctx context.Context) ConnectivityReport {
	m.mu.RLock()
	targets := make([]*tenantPool, 0, len(m.pools))
	for _, tp := range m.pools {
		targets = append(targets, tp)
	}
	m.mu.RUnlock()

	report := ConnectivityReport{
		Default: m.pingOne(ctx, m.defaultPool, "", "default"),
		Tenants: make([]ConnectivityResult, 0, len(targets)),
	}
	for _, tp := range targets {
		report.Tenants = append(report.Tenants, m.pingOne(ctx, tp.pool, tp.tenantID, tp.tenantName))
	}
	return report
}

func (m *Manager) pingOne(ctx context.Context, pool *pgxpool.Pool, tenantID, tenantName string) ConnectivityResult {
	timeout := m.settings.ConnectivityTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := m.pingPool(pingCtx, pool)
	res := ConnectivityResult{
		TenantID:   tenantID,
		TenantName: tenantName,
		OK:         err == nil,
		Latency:    time.Since(start),
	}
	if err != nil {
		res.Error = err.Error()
		m.logger.Warn("Пул не прошёл проверку связности",
			slog.String("tenant_id", tenantID),
			slog.String("tenant", tenantName),
			slog.String("error", err.Error()),
		)
	}
	return res
}

// Close закрывает пулы арендаторов и основной пул. Вызывается при
// остановке сервиса, после остановки HTTP-сервера.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for dsn, tp := range m.pools {
		tp.pool.Close()
		delete(m.pools, dsn)
		m.logger.Info("Пул арендатора закрыт",
			slog.String("tenant_id", tp.tenantID),
			slog.String("tenant", tp.tenantName),
		)
	}
	m.defaultPool.Close()
	m.logger.Info("Основной пул закрыт")
}
