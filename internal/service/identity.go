// identity.go — загрузка учётной записи для шлюза аутентификации.
//
// Токен даёт только отправную точку: subject, роль и college_id как
// подсказку маршрутизации в раздел арендатора. Всё остальное — статус,
// принадлежность колледжу, сам факт существования записи — перечитывается
// из хранилища на каждый запрос. platform_admin — единственная роль,
// которой верят из токена без обращения к БД: у неё нет записи ни в одном
// разделе.
//
// Отказы различаются только для логики шлюза: ErrIdentityNotFound и
// ErrIdentityInactive наружу сводятся к одинаковому 401, чтобы ответ
// не позволял перечислять учётные записи.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bigkaa/goplacement/college-module/internal/database"
	"github.com/bigkaa/goplacement/college-module/internal/domain/model"
	"github.com/bigkaa/goplacement/college-module/internal/domain/role"
	"github.com/bigkaa/goplacement/college-module/internal/repository"
)

// IdentityService — перепроверка учётных записей из токенов по разделам
// арендаторов. Реализует middleware.IdentitySource.
type IdentityService struct {
	collegeRepo repository.CollegeRepository
	manager     *database.Manager
	logger      *slog.Logger
}

// NewIdentityService создаёт сервис загрузки учётных записей.
func NewIdentityService(collegeRepo repository.CollegeRepository, manager *database.Manager, logger *slog.Logger) *IdentityService {
	return &IdentityService{
		collegeRepo: collegeRepo,
		manager:     manager,
		logger:      logger.With(slog.String("component", "identity_service")),
	}
}

// LoadPrincipal загружает принципала по данным токена. r и subjectID —
// из проверенных claims; collegeID — недоверенная подсказка маршрутизации
// (выбирает раздел для поиска записи). Авторитетен колледж самой записи:
// если он не совпадает с подсказкой, принадлежность и статусы
// перепроверяются по нему.
func (s *IdentityService) LoadPrincipal(ctx context.Context, r role.Role, subjectID, collegeID string) (model.Principal, error) {
	if r == role.PlatformAdmin {
		return model.NewPrincipal(subjectID, role.PlatformAdmin, "", ""), nil
	}
	if collegeID == "" {
		return model.Principal{}, fmt.Errorf("%w: токен роли '%s' без college_id", ErrIdentityNotFound, r)
	}

	college, tenant, err := s.collegeRepo.GetWithTenant(ctx, collegeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Principal{}, fmt.Errorf("%w: колледж '%s' не существует", ErrIdentityNotFound, collegeID)
		}
		return model.Principal{}, fmt.Errorf("разрешение колледжа '%s': %w", collegeID, err)
	}
	if college.Status != model.StatusActive {
		return model.Principal{}, fmt.Errorf("%w: колледж '%s' деактивирован", ErrIdentityInactive, collegeID)
	}
	if tenant.Status != model.StatusActive {
		return model.Principal{}, fmt.Errorf("%w: арендатор колледжа '%s' деактивирован", ErrIdentityInactive, collegeID)
	}

	pool, err := s.manager.PoolFor(ctx, descriptorFor(tenant))
	if err != nil {
		if errors.Is(err, database.ErrInvalidDescriptor) {
			return model.Principal{}, fmt.Errorf("дескриптор раздела арендатора '%s': %w", tenant.ID, err)
		}
		return model.Principal{}, fmt.Errorf("%w: раздел арендатора '%s' недостижим: %v", ErrUnavailable, tenant.ID, err)
	}

	table, ok := r.LookupTable()
	if !ok {
		// platform_admin обработан выше; закрытый набор ролей других
		// вариантов не оставляет.
		return model.Principal{}, fmt.Errorf("роль '%s' не имеет таблицы учётных записей", r)
	}

	switch table {
	case "users":
		return s.loadUser(ctx, pool, r, subjectID, collegeID, tenant)
	case "students":
		return s.loadStudent(ctx, pool, subjectID, collegeID, tenant)
	default:
		return model.Principal{}, fmt.Errorf("неизвестная таблица учётных записей '%s'", table)
	}
}

// loadUser загружает сотрудника из раздела и строит принципала.
func (s *IdentityService) loadUser(ctx context.Context, pool repository.DBTX, claimed role.Role, subjectID, claimedCollegeID string, tenant *model.Tenant) (model.Principal, error) {
	user, err := repository.NewUserRepository(pool).GetByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Principal{}, fmt.Errorf("%w: сотрудник '%s' не найден в разделе", ErrIdentityNotFound, subjectID)
		}
		return model.Principal{}, fmt.Errorf("%w: поиск сотрудника '%s': %v", ErrUnavailable, subjectID, err)
	}
	if user.Status != model.StatusActive {
		return model.Principal{}, fmt.Errorf("%w: сотрудник '%s'", ErrIdentityInactive, subjectID)
	}

	// Роль записи авторитетна: если токен устарел после смены роли,
	// принципал получает актуальную.
	actual, err := role.Parse(user.Role)
	if err != nil {
		return model.Principal{}, fmt.Errorf("некорректная роль '%s' в записи сотрудника '%s'", user.Role, subjectID)
	}
	if actual != claimed {
		s.logger.Warn("Роль в токене не совпадает с записью",
			slog.String("subject", subjectID),
			slog.String("claimed", claimed.String()),
			slog.String("actual", actual.String()),
		)
	}

	tenant, err = s.confirmCollege(ctx, claimedCollegeID, user.CollegeID, tenant)
	if err != nil {
		return model.Principal{}, err
	}
	return model.NewPrincipal(user.ID, actual, user.CollegeID, tenant.ID), nil
}

// loadStudent загружает студента из раздела и строит принципала.
func (s *IdentityService) loadStudent(ctx context.Context, pool repository.DBTX, subjectID, claimedCollegeID string, tenant *model.Tenant) (model.Principal, error) {
	student, err := repository.NewStudentRepository(pool).GetByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Principal{}, fmt.Errorf("%w: студент '%s' не найден в разделе", ErrIdentityNotFound, subjectID)
		}
		return model.Principal{}, fmt.Errorf("%w: поиск студента '%s': %v", ErrUnavailable, subjectID, err)
	}
	if student.Status != model.StatusActive {
		return model.Principal{}, fmt.Errorf("%w: студент '%s'", ErrIdentityInactive, subjectID)
	}

	tenant, err = s.confirmCollege(ctx, claimedCollegeID, student.CollegeID, tenant)
	if err != nil {
		return model.Principal{}, err
	}
	return model.NewPrincipal(student.ID, role.Student, student.CollegeID, tenant.ID), nil
}

// confirmCollege подтверждает колледж, которому запись принадлежит на
// самом деле. Пока подсказка из токена совпадает с записью, tenant уже
// проверен. При расхождении колледж записи резолвится заново с той же
// проверкой статусов: подсказка могла указать на чужой раздел того же
// арендатора.
func (s *IdentityService) confirmCollege(ctx context.Context, claimedCollegeID, recordCollegeID string, tenant *model.Tenant) (*model.Tenant, error) {
	if recordCollegeID == claimedCollegeID {
		return tenant, nil
	}

	s.logger.Warn("college_id в токене не совпадает с записью",
		slog.String("claimed", claimedCollegeID),
		slog.String("actual", recordCollegeID),
	)

	college, actualTenant, err := s.collegeRepo.GetWithTenant(ctx, recordCollegeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: колледж записи '%s' не существует", ErrIdentityNotFound, recordCollegeID)
		}
		return nil, fmt.Errorf("разрешение колледжа записи '%s': %w", recordCollegeID, err)
	}
	if college.Status != model.StatusActive {
		return nil, fmt.Errorf("%w: колледж записи '%s' деактивирован", ErrIdentityInactive, recordCollegeID)
	}
	if actualTenant.Status != model.StatusActive {
		return nil, fmt.Errorf("%w: арендатор колледжа записи '%s' деактивирован", ErrIdentityInactive, recordCollegeID)
	}
	return actualTenant, nil
}
