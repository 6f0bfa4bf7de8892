package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bigkaa/goplacement/college-module/internal/domain/model"
	"github.com/bigkaa/goplacement/college-module/internal/repository"
)

// mockCollegeFinder — мок для CollegeFinder.
type mockCollegeFinder struct {
	colleges map[string]*model.College
	err      error
	calls    int
}

func (m *mockCollegeFinder) FindActiveBySubdomain(_ context.Context, subdomain string) (*model.College, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	college, ok := m.colleges[subdomain]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return college, nil
}

// newTestResolver создаёт резолвер с резервированными поддоменами
// admin и api.
func newTestResolver(finder CollegeFinder) *TenantResolver {
	return NewTenantResolver(finder, []string{"admin", "api"}, 100, 5*time.Minute, testLogger())
}

// TestTenantResolver_ExtractSubdomain — извлечение ключа арендатора
// из разных форм Host.
func TestTenantResolver_ExtractSubdomain(t *testing.T) {
	resolver := newTestResolver(&mockCollegeFinder{})

	tests := []struct {
		name string
		host string
		want string
	}{
		{"обычный поддомен", "acme.goplacement.example", "acme"},
		{"поддомен с портом", "acme.goplacement.example:8000", "acme"},
		{"регистр не учитывается", "ACME.Goplacement.Example", "acme"},
		{"завершающая точка", "acme.goplacement.example.", "acme"},
		{"зарезервированный admin", "admin.acme.goplacement.example", "acme"},
		{"зарезервированный api", "api.acme.goplacement.example", "acme"},
		{"две зарезервированные метки", "admin.api.goplacement.example", ""},
		{"localhost", "localhost", ""},
		{"localhost с портом", "localhost:8000", ""},
		{"IPv4", "127.0.0.1", ""},
		{"IPv4 с портом", "127.0.0.1:8000", ""},
		{"IPv6 с портом", "[::1]:8000", ""},
		{"одиночное имя хоста", "college-module", ""},
		{"пустой Host", "", ""},
		{"апекс-домен", "goplacement.example", "goplacement"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolver.extractSubdomain(tt.host)
			if got != tt.want {
				t.Errorf("extractSubdomain(%q) = %q, ожидалось %q", tt.host, got, tt.want)
			}
		})
	}
}

// TestTenantResolver_Resolved — известный поддомен даёт resolved
// с колледжем в контексте.
func TestTenantResolver_Resolved(t *testing.T) {
	college := &model.College{ID: "college-1", Subdomain: "acme", Name: "Acme College"}
	finder := &mockCollegeFinder{colleges: map[string]*model.College{"acme": college}}
	resolver := newTestResolver(finder)

	handler := resolver.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc := TenantFromContext(r.Context())
		if tc == nil {
			t.Fatal("контекст арендатора не найден")
		}
		if tc.State != StateResolved {
			t.Errorf("ожидалось состояние resolved, получено %s", tc.State)
		}
		if tc.Subdomain != "acme" {
			t.Errorf("ожидался subdomain=acme, получен %s", tc.Subdomain)
		}
		if tc.College == nil || tc.College.ID != "college-1" {
			t.Error("ожидался колледж college-1 в контексте")
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Host = "acme.goplacement.example"
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("ожидался статус 200, получен %d", rec.Code)
	}
}

// TestTenantResolver_ReservedPrefix — admin-поддомен резолвится в тот
// же колледж, что и прямой.
func TestTenantResolver_ReservedPrefix(t *testing.T) {
	college := &model.College{ID: "college-1", Subdomain: "acme"}
	finder := &mockCollegeFinder{colleges: map[string]*model.College{"acme": college}}
	resolver := newTestResolver(finder)

	handler := resolver.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc := TenantFromContext(r.Context())
		if !tc.Resolved() {
			t.Fatal("ожидалось состояние resolved")
		}
		if tc.College.ID != "college-1" {
			t.Errorf("ожидался колледж college-1, получен %s", tc.College.ID)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Host = "admin.acme.goplacement.example"
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("ожидался статус 200, получен %d", rec.Code)
	}
}

// TestTenantResolver_Unresolved — незнакомый поддомен даёт unresolved,
// запрос проходит дальше.
func TestTenantResolver_Unresolved(t *testing.T) {
	resolver := newTestResolver(&mockCollegeFinder{})

	handler := resolver.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc := TenantFromContext(r.Context())
		if tc == nil {
			t.Fatal("контекст арендатора не найден")
		}
		if tc.State != StateUnresolved {
			t.Errorf("ожидалось состояние unresolved, получено %s", tc.State)
		}
		if tc.Subdomain != "unknown" {
			t.Errorf("ожидался subdomain=unknown, получен %s", tc.Subdomain)
		}
		if tc.College != nil {
			t.Error("колледж не должен быть заполнен")
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Host = "unknown.goplacement.example"
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("резолвер не должен отклонять запрос, статус %d", rec.Code)
	}
}

// TestTenantResolver_None — платформенный хост без поддомена.
func TestTenantResolver_None(t *testing.T) {
	resolver := newTestResolver(&mockCollegeFinder{})

	handler := resolver.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc := TenantFromContext(r.Context())
		if tc == nil {
			t.Fatal("контекст арендатора не найден")
		}
		if tc.State != StateNone {
			t.Errorf("ожидалось состояние none, получено %s", tc.State)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Host = "localhost:8000"
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("ожидался статус 200, получен %d", rec.Code)
	}
}

// TestTenantResolver_FinderError — сбой поиска не валит запрос:
// резолв советующий, состояние unresolved.
func TestTenantResolver_FinderError(t *testing.T) {
	finder := &mockCollegeFinder{err: errors.New("база недоступна")}
	resolver := newTestResolver(finder)

	handler := resolver.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc := TenantFromContext(r.Context())
		if tc.State != StateUnresolved {
			t.Errorf("ожидалось состояние unresolved, получено %s", tc.State)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Host = "acme.goplacement.example"
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("резолвер не должен отклонять запрос, статус %d", rec.Code)
	}
}

// TestTenantResolver_CacheHit — повторный резолв того же поддомена
// обслуживается из кэша без запроса к БД.
func TestTenantResolver_CacheHit(t *testing.T) {
	college := &model.College{ID: "college-1", Subdomain: "acme"}
	finder := &mockCollegeFinder{colleges: map[string]*model.College{"acme": college}}
	resolver := newTestResolver(finder)

	for i := 0; i < 3; i++ {
		tc := resolver.resolve(context.Background(), "acme.goplacement.example")
		if !tc.Resolved() {
			t.Fatalf("итерация %d: ожидалось состояние resolved", i)
		}
		if tc.College.ID != "college-1" {
			t.Fatalf("итерация %d: ожидался колледж college-1, получен %s", i, tc.College.ID)
		}
	}

	if finder.calls != 1 {
		t.Errorf("ожидался 1 запрос к БД, выполнено %d", finder.calls)
	}
}

// TestTenantResolver_CacheTTLExpiration — после истечения TTL резолв
// снова идёт в БД.
func TestTenantResolver_CacheTTLExpiration(t *testing.T) {
	college := &model.College{ID: "college-1", Subdomain: "acme"}
	finder := &mockCollegeFinder{colleges: map[string]*model.College{"acme": college}}
	// Короткий TTL = 50ms для теста
	resolver := NewTenantResolver(finder, nil, 100, 50*time.Millisecond, testLogger())

	resolver.resolve(context.Background(), "acme.goplacement.example")
	if finder.calls != 1 {
		t.Fatalf("ожидался 1 запрос к БД, выполнено %d", finder.calls)
	}

	// Ждём истечения TTL
	time.Sleep(100 * time.Millisecond)

	tc := resolver.resolve(context.Background(), "acme.goplacement.example")
	if !tc.Resolved() {
		t.Fatal("ожидалось состояние resolved после повторного резолва")
	}
	if finder.calls != 2 {
		t.Errorf("ожидались 2 запроса к БД после истечения TTL, выполнено %d", finder.calls)
	}
}

// TestTenantResolver_NegativeNotCached — неудачный резолв не попадает
// в кэш: новый колледж резолвится без задержки TTL.
func TestTenantResolver_NegativeNotCached(t *testing.T) {
	finder := &mockCollegeFinder{colleges: map[string]*model.College{}}
	resolver := newTestResolver(finder)

	tc := resolver.resolve(context.Background(), "fresh.goplacement.example")
	if tc.State != StateUnresolved {
		t.Fatalf("ожидалось состояние unresolved, получено %s", tc.State)
	}

	// Колледж появился в БД — следующий резолв должен его увидеть
	finder.colleges["fresh"] = &model.College{ID: "college-9", Subdomain: "fresh"}

	tc = resolver.resolve(context.Background(), "fresh.goplacement.example")
	if !tc.Resolved() {
		t.Fatal("ожидалось состояние resolved после появления колледжа")
	}
	if tc.College.ID != "college-9" {
		t.Errorf("ожидался колледж college-9, получен %s", tc.College.ID)
	}
	if finder.calls != 2 {
		t.Errorf("ожидались 2 запроса к БД, выполнено %d", finder.calls)
	}
}

// TestTenantFromContext_Empty — пустой контекст.
func TestTenantFromContext_Empty(t *testing.T) {
	if tc := TenantFromContext(context.Background()); tc != nil {
		t.Errorf("ожидался nil, получен %+v", tc)
	}
}

// TestTenantContext_Resolved — nil-безопасность Resolved.
func TestTenantContext_Resolved(t *testing.T) {
	var tc *TenantContext
	if tc.Resolved() {
		t.Error("nil контекст не должен считаться resolved")
	}
	if (&TenantContext{State: StateUnresolved}).Resolved() {
		t.Error("unresolved не должен считаться resolved")
	}
	if !(&TenantContext{State: StateResolved, College: &model.College{}}).Resolved() {
		t.Error("resolved должен считаться resolved")
	}
}
