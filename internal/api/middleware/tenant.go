// tenant.go — резолвер арендатора по поддомену запроса.
//
// Извлекает ключ арендатора из Host (acme.goplacement.example → acme),
// ищет активный колледж с таким subdomain в основной БД и кладёт
// результат в контекст запроса. Резолвер — советующий middleware, не
// шлюз: запрос не отклоняется ни при каком исходе. Ошибка поиска или
// незнакомый поддомен дают состояние unresolved, платформенные хосты
// без поддомена — none. Решение принимают нижестоящие слои: шлюз
// аутентификации сверяет резолв с колледжем принципала.
//
// Успешные резолвы кэшируются в LRU с TTL: резолвер стоит до логгера
// в цепочке middleware и без кэша давал бы запрос к БД на каждый
// входящий запрос, включая health-пробы. TTL ограничивает устаревание
// привязки поддомен → колледж; статусы колледжа и арендатора шлюз
// аутентификации перепроверяет по БД независимо от кэша.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goplacement/college-module/internal/domain/model"
	"github.com/bigkaa/goplacement/college-module/internal/repository"
)

// Prometheus-метрики кэша резолва.
var (
	tenantCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cm_tenant_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш резолва поддоменов.",
	})
	tenantCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cm_tenant_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша резолва поддоменов.",
	})
)

const (
	// ContextKeyTenant — контекст арендатора в контексте запроса.
	ContextKeyTenant contextKey = "tenant_context"
)

// ResolutionState — исход резолва арендатора для запроса.
type ResolutionState string

const (
	// StateNone — в Host нет ключа арендатора (платформенный трафик:
	// localhost, IP-литерал, хост без поддомена).
	StateNone ResolutionState = "none"
	// StateResolved — колледж по поддомену найден и активен.
	StateResolved ResolutionState = "resolved"
	// StateUnresolved — поддомен извлечён, но колледж не найден,
	// неактивен или поиск не удался.
	StateUnresolved ResolutionState = "unresolved"
)

// TenantContext — результат резолва арендатора, прикреплённый к запросу.
type TenantContext struct {
	// State — исход резолва.
	State ResolutionState
	// Subdomain — извлечённый ключ арендатора (пуст при StateNone).
	Subdomain string
	// College — найденный колледж (только при StateResolved).
	College *model.College
}

// Resolved сообщает, привязан ли запрос к конкретному колледжу.
func (tc *TenantContext) Resolved() bool {
	return tc != nil && tc.State == StateResolved
}

// CollegeFinder — поиск активного колледжа по поддомену.
// Реализуется repository.CollegeRepository (основная БД).
type CollegeFinder interface {
	// FindActiveBySubdomain возвращает активный колледж активного
	// арендатора по subdomain без учёта регистра.
	FindActiveBySubdomain(ctx context.Context, subdomain string) (*model.College, error)
}

// TenantResolver — middleware резолва арендатора по Host запроса.
type TenantResolver struct {
	finder   CollegeFinder
	reserved map[string]struct{}
	cache    *expirable.LRU[string, *model.College]
	logger   *slog.Logger
}

// NewTenantResolver создаёт резолвер арендатора.
// reserved — поддомены, на которых ключом арендатора служит следующая
// метка хоста: admin.acme.goplacement.example и acme.goplacement.example
// резолвятся в один колледж.
// cacheSize и cacheTTL задают LRU-кэш успешных резолвов.
func NewTenantResolver(finder CollegeFinder, reserved []string, cacheSize int, cacheTTL time.Duration, logger *slog.Logger) *TenantResolver {
	rm := make(map[string]struct{}, len(reserved))
	for _, r := range reserved {
		rm[strings.ToLower(r)] = struct{}{}
	}
	return &TenantResolver{
		finder:   finder,
		reserved: rm,
		cache:    expirable.NewLRU[string, *model.College](cacheSize, nil, cacheTTL),
		logger:   logger.With(slog.String("component", "tenant_resolver")),
	}
}

// extractSubdomain извлекает ключ арендатора из Host запроса.
// Пустая строка — ключа нет (платформенный трафик).
func (t *TenantResolver) extractSubdomain(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "" || host == "localhost" {
		return ""
	}
	if net.ParseIP(host) != nil {
		return ""
	}

	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		// Одиночное имя хоста без домена — поддомена нет.
		return ""
	}

	candidate := labels[0]
	if _, ok := t.reserved[candidate]; ok {
		// Зарезервированная метка: ключ арендатора — следующая.
		candidate = labels[1]
		if _, reservedAgain := t.reserved[candidate]; reservedAgain {
			return ""
		}
	}
	return candidate
}

// Middleware возвращает HTTP middleware резолва арендатора.
// Никогда не отклоняет запрос: любой исход кладётся в контекст.
func (t *TenantResolver) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tc := t.resolve(r.Context(), r.Host)
			ctx := context.WithValue(r.Context(), ContextKeyTenant, tc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// resolve выполняет резолв для одного значения Host.
func (t *TenantResolver) resolve(ctx context.Context, host string) *TenantContext {
	subdomain := t.extractSubdomain(host)
	if subdomain == "" {
		return &TenantContext{State: StateNone}
	}

	if college, ok := t.cache.Get(subdomain); ok {
		tenantCacheHitsTotal.Inc()
		return &TenantContext{
			State:     StateResolved,
			Subdomain: subdomain,
			College:   college,
		}
	}
	tenantCacheMissesTotal.Inc()

	college, err := t.finder.FindActiveBySubdomain(ctx, subdomain)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			// Сбой поиска не валит запрос: резолв советующий.
			t.logger.Warn("Ошибка резолва арендатора",
				slog.String("subdomain", subdomain),
				slog.String("error", err.Error()),
			)
		}
		// Отрицательные исходы не кэшируются: новый или повторно
		// активированный колледж должен резолвиться без задержки TTL.
		return &TenantContext{State: StateUnresolved, Subdomain: subdomain}
	}

	t.cache.Add(subdomain, college)

	return &TenantContext{
		State:     StateResolved,
		Subdomain: subdomain,
		College:   college,
	}
}

// TenantFromContext извлекает контекст арендатора из контекста запроса.
// Возвращает nil, если резолвер не отработал.
func TenantFromContext(ctx context.Context) *TenantContext {
	tc, _ := ctx.Value(ContextKeyTenant).(*TenantContext)
	return tc
}
