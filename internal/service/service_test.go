package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/bigkaa/goplacement/college-module/internal/domain/model"
	"github.com/bigkaa/goplacement/college-module/internal/domain/role"
	"github.com/bigkaa/goplacement/college-module/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// mockCollegeRepo — мок repository.CollegeRepository для тестов
// без базы данных. Заполняются только нужные тесту ответы.
type mockCollegeRepo struct {
	repository.CollegeRepository

	colleges map[string]*model.College
	tenants  map[string]*model.Tenant
	err      error
}

func (m *mockCollegeRepo) GetWithTenant(_ context.Context, id string) (*model.College, *model.Tenant, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	college, ok := m.colleges[id]
	if !ok {
		return nil, nil, repository.ErrNotFound
	}
	return college, m.tenants[college.TenantID], nil
}

// --- Тесты mapWriteError ---

// TestMapWriteError — трансляция ошибок на границе сервисного слоя.
func TestMapWriteError(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil проходит", nil, nil},
		{"сервисный конфликт без изменений", ErrConflict, ErrConflict},
		{"сервисная валидация без изменений", ErrValidation, ErrValidation},
		{"деактивация без изменений", ErrInactive, ErrInactive},
		{"конфликт уникальности из БД", repository.ErrConflict, ErrConflict},
		{"нарушение FK из БД", repository.ErrInvalidReference, ErrInvalidReference},
		{"не найдено из БД", repository.ErrNotFound, ErrNotFound},
		{"конфликт сериализации повторяем", repository.ErrSerialization, ErrUnavailable},
		{"таймаут повторяем", repository.ErrTimeout, ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapWriteError(tt.in, "дубликат")
			if tt.want == nil {
				if got != nil {
					t.Errorf("ожидался nil, получена %v", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Errorf("ожидалась %v, получена %v", tt.want, got)
			}
		})
	}
}

// TestMapWriteError_Unknown — незнакомая ошибка проходит без обёртки.
func TestMapWriteError_Unknown(t *testing.T) {
	boom := errors.New("сбой сети")
	if got := mapWriteError(boom, ""); !errors.Is(got, boom) {
		t.Errorf("ожидалась исходная ошибка, получена %v", got)
	}
}

// TestMapWriteError_ConflictMessage — сообщение конфликта попадает
// в текст ошибки.
func TestMapWriteError_ConflictMessage(t *testing.T) {
	got := mapWriteError(repository.ErrConflict, "email уже занят")
	if got == nil || !strings.Contains(got.Error(), "email уже занят") {
		t.Errorf("ожидалось сообщение о конфликте, получено %v", got)
	}
}

// --- Тесты validateSubdomain ---

func TestValidateSubdomain(t *testing.T) {
	svc := NewCollegeService(nil, nil, []string{"admin", "api"}, testLogger())

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"валидный", "acme", "acme", false},
		{"нормализация регистра и пробелов", "  ACME-North ", "acme-north", false},
		{"цифры допустимы", "college42", "college42", false},
		{"пустой", "", "", true},
		{"длиннее 63 символов", strings.Repeat("a", 64), "", true},
		{"дефис в начале", "-acme", "", true},
		{"дефис в конце", "acme-", "", true},
		{"точка недопустима", "acme.north", "", true},
		{"подчёркивание недопустимо", "acme_north", "", true},
		{"кириллица недопустима", "колледж", "", true},
		{"зарезервированный admin", "admin", "", true},
		{"зарезервированный в другом регистре", "API", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.validateSubdomain(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Errorf("ожидалась ErrValidation, получена %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("неожиданная ошибка: %v", err)
			}
			if got != tt.want {
				t.Errorf("ожидалось %q, получено %q", tt.want, got)
			}
		})
	}
}

// --- Тесты validateEmail ---

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"валидный", "ivanov@acme.test", "ivanov@acme.test", false},
		{"пробелы обрезаются", "  ivanov@acme.test ", "ivanov@acme.test", false},
		{"регистр сохраняется", "Ivanov@Acme.Test", "Ivanov@Acme.Test", false},
		{"пустой", "", "", true},
		{"без домена", "ivanov", "", true},
		{"без локальной части", "@acme.test", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := validateEmail(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Errorf("ожидалась ErrValidation, получена %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("неожиданная ошибка: %v", err)
			}
			if got != tt.want {
				t.Errorf("ожидалось %q, получено %q", tt.want, got)
			}
		})
	}
}

// --- Тесты IdentityService (пути до пула раздела) ---

// TestLoadPrincipal_PlatformAdmin — platform_admin строится из токена
// без обращения к хранилищу.
func TestLoadPrincipal_PlatformAdmin(t *testing.T) {
	svc := NewIdentityService(&mockCollegeRepo{}, nil, testLogger())

	principal, err := svc.LoadPrincipal(context.Background(), role.PlatformAdmin, "admin-1", "")
	if err != nil {
		t.Fatalf("LoadPrincipal() ошибка: %v", err)
	}
	if principal.ID() != "admin-1" {
		t.Errorf("ожидался ID=admin-1, получен %s", principal.ID())
	}
	if !principal.IsPlatformAdmin() {
		t.Error("ожидался platform_admin")
	}
	if principal.CollegeID() != "" || principal.TenantID() != "" {
		t.Error("platform_admin не привязан к колледжу и арендатору")
	}
}

// TestLoadPrincipal_NoCollegeID — токен тенантной роли без college_id.
func TestLoadPrincipal_NoCollegeID(t *testing.T) {
	svc := NewIdentityService(&mockCollegeRepo{}, nil, testLogger())

	_, err := svc.LoadPrincipal(context.Background(), role.Teacher, "teacher-1", "")
	if !errors.Is(err, ErrIdentityNotFound) {
		t.Errorf("ожидалась ErrIdentityNotFound, получена %v", err)
	}
}

// TestLoadPrincipal_CollegeNotFound — подсказка указывает на
// несуществующий колледж.
func TestLoadPrincipal_CollegeNotFound(t *testing.T) {
	svc := NewIdentityService(&mockCollegeRepo{}, nil, testLogger())

	_, err := svc.LoadPrincipal(context.Background(), role.Teacher, "teacher-1", "ghost-college")
	if !errors.Is(err, ErrIdentityNotFound) {
		t.Errorf("ожидалась ErrIdentityNotFound, получена %v", err)
	}
}

// TestLoadPrincipal_InactiveCollege — деактивированный колледж.
func TestLoadPrincipal_InactiveCollege(t *testing.T) {
	repo := &mockCollegeRepo{
		colleges: map[string]*model.College{
			"college-1": {ID: "college-1", TenantID: "tenant-1", Status: model.StatusInactive},
		},
		tenants: map[string]*model.Tenant{
			"tenant-1": {ID: "tenant-1", Status: model.StatusActive},
		},
	}
	svc := NewIdentityService(repo, nil, testLogger())

	_, err := svc.LoadPrincipal(context.Background(), role.Teacher, "teacher-1", "college-1")
	if !errors.Is(err, ErrIdentityInactive) {
		t.Errorf("ожидалась ErrIdentityInactive, получена %v", err)
	}
}

// TestLoadPrincipal_InactiveTenant — активный колледж деактивированного
// арендатора.
func TestLoadPrincipal_InactiveTenant(t *testing.T) {
	repo := &mockCollegeRepo{
		colleges: map[string]*model.College{
			"college-1": {ID: "college-1", TenantID: "tenant-1", Status: model.StatusActive},
		},
		tenants: map[string]*model.Tenant{
			"tenant-1": {ID: "tenant-1", Status: model.StatusInactive},
		},
	}
	svc := NewIdentityService(repo, nil, testLogger())

	_, err := svc.LoadPrincipal(context.Background(), role.Student, "student-1", "college-1")
	if !errors.Is(err, ErrIdentityInactive) {
		t.Errorf("ожидалась ErrIdentityInactive, получена %v", err)
	}
}

// TestLoadPrincipal_LookupFailure — сбой хранилища не маскируется
// под отказ аутентификации.
func TestLoadPrincipal_LookupFailure(t *testing.T) {
	repo := &mockCollegeRepo{err: errors.New("база недоступна")}
	svc := NewIdentityService(repo, nil, testLogger())

	_, err := svc.LoadPrincipal(context.Background(), role.Teacher, "teacher-1", "college-1")
	if err == nil {
		t.Fatal("ожидалась ошибка")
	}
	if errors.Is(err, ErrIdentityNotFound) || errors.Is(err, ErrIdentityInactive) {
		t.Errorf("сбой хранилища не должен выглядеть как отказ: %v", err)
	}
}
