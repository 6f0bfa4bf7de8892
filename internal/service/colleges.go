// colleges.go — бизнес-логика реестра колледжей.
//
// Колледж — единица маршрутизации: его subdomain определяет вход,
// его tenant_id — раздел хранения пользователей и студентов.
// Создание и обновление идут по протоколу транзакционной записи в
// основной БД: предусловия (арендатор существует и активен, subdomain
// свободен) проверяются в той же serializable-транзакции, что и запись.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goplacement/college-module/internal/domain/model"
	"github.com/bigkaa/goplacement/college-module/internal/repository"
)

// subdomainPattern — допустимая форма subdomain: строчные латинские буквы,
// цифры и дефис, без дефиса на краях (RFC 1035 label).
var subdomainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// CollegeService — бизнес-логика управления колледжами.
type CollegeService struct {
	collegeRepo repository.CollegeRepository
	tx          *repository.TxRunner
	reserved    map[string]struct{}
	logger      *slog.Logger
}

// NewCollegeService создаёт сервис управления колледжами.
// reserved — зарезервированные subdomain (admin, api, www и т.п.),
// которые нельзя занять под колледж: на таких именах резолвер
// арендатора разбирает следующую метку хоста.
func NewCollegeService(collegeRepo repository.CollegeRepository, tx *repository.TxRunner, reserved []string, logger *slog.Logger) *CollegeService {
	rm := make(map[string]struct{}, len(reserved))
	for _, r := range reserved {
		rm[strings.ToLower(r)] = struct{}{}
	}
	return &CollegeService{
		collegeRepo: collegeRepo,
		tx:          tx,
		reserved:    rm,
		logger:      logger.With(slog.String("component", "college_service")),
	}
}

// validateSubdomain нормализует и проверяет subdomain колледжа.
func (s *CollegeService) validateSubdomain(subdomain string) (string, error) {
	subdomain = strings.ToLower(strings.TrimSpace(subdomain))
	if subdomain == "" {
		return "", fmt.Errorf("%w: subdomain не может быть пустым", ErrValidation)
	}
	if len(subdomain) > 63 {
		return "", fmt.Errorf("%w: subdomain длиннее 63 символов", ErrValidation)
	}
	if !subdomainPattern.MatchString(subdomain) {
		return "", fmt.Errorf("%w: subdomain '%s' содержит недопустимые символы", ErrValidation, subdomain)
	}
	if _, ok := s.reserved[subdomain]; ok {
		return "", fmt.Errorf("%w: subdomain '%s' зарезервирован", ErrValidation, subdomain)
	}
	return subdomain, nil
}

// Create регистрирует колледж у арендатора. Предусловия внутри транзакции:
// арендатор существует (иначе ErrInvalidReference) и активен (иначе
// ErrInactive), subdomain свободен без учёта регистра (иначе ErrConflict).
func (s *CollegeService) Create(ctx context.Context, tenantID, subdomain, name string, features []string) (*model.College, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: название колледжа не может быть пустым", ErrValidation)
	}
	if strings.TrimSpace(tenantID) == "" {
		return nil, fmt.Errorf("%w: tenant_id не может быть пустым", ErrValidation)
	}
	subdomain, err := s.validateSubdomain(subdomain)
	if err != nil {
		return nil, err
	}
	if features == nil {
		features = []string{}
	}

	college := &model.College{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Subdomain: subdomain,
		Name:      name,
		Features:  features,
		Status:    model.StatusActive,
	}

	err = s.tx.RunSerializable(ctx, func(tx pgx.Tx) error {
		tenant, err := repository.NewTenantRepository(tx).GetByID(ctx, tenantID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: арендатор '%s' не существует", ErrInvalidReference, tenantID)
			}
			return fmt.Errorf("проверка арендатора: %w", err)
		}
		if tenant.Status != model.StatusActive {
			return fmt.Errorf("%w: арендатор '%s' деактивирован", ErrInactive, tenantID)
		}

		repo := repository.NewCollegeRepository(tx)
		taken, err := repo.ExistsBySubdomain(ctx, subdomain, "")
		if err != nil {
			return fmt.Errorf("проверка уникальности subdomain: %w", err)
		}
		if taken {
			return fmt.Errorf("%w: subdomain '%s' уже занят", ErrConflict, subdomain)
		}
		return repo.Create(ctx, college)
	})
	if err != nil {
		return nil, mapWriteError(err, fmt.Sprintf("subdomain '%s' уже занят", subdomain))
	}

	s.logger.Info("Колледж зарегистрирован",
		slog.String("college_id", college.ID),
		slog.String("tenant_id", college.TenantID),
		slog.String("subdomain", college.Subdomain),
	)

	return college, nil
}

// Get возвращает колледж по ID.
func (s *CollegeService) Get(ctx context.Context, id string) (*model.College, error) {
	college, err := s.collegeRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение колледжа: %w", err)
	}
	return college, nil
}

// List возвращает страницу колледжей и общее количество.
// tenantID и status фильтруют выборку (nil — без фильтра).
func (s *CollegeService) List(ctx context.Context, tenantID, status *string, limit, offset int) ([]*model.College, int, error) {
	colleges, err := s.collegeRepo.List(ctx, tenantID, status, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("список колледжей: %w", err)
	}
	total, err := s.collegeRepo.Count(ctx, tenantID, status)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт колледжей: %w", err)
	}
	return colleges, total, nil
}

// Update изменяет название, subdomain или набор фич колледжа.
// nil-поля не трогаются. Смена subdomain проверяется на уникальность
// в той же транзакции, что и запись.
func (s *CollegeService) Update(ctx context.Context, id string, subdomain, name *string, features []string) (*model.College, error) {
	var newSubdomain *string
	if subdomain != nil {
		valid, err := s.validateSubdomain(*subdomain)
		if err != nil {
			return nil, err
		}
		newSubdomain = &valid
	}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: название колледжа не может быть пустым", ErrValidation)
		}
		name = &trimmed
	}

	var college *model.College
	err := s.tx.RunSerializable(ctx, func(tx pgx.Tx) error {
		repo := repository.NewCollegeRepository(tx)
		var err error
		college, err = repo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("получение колледжа для обновления: %w", err)
		}

		if newSubdomain != nil && *newSubdomain != college.Subdomain {
			taken, err := repo.ExistsBySubdomain(ctx, *newSubdomain, id)
			if err != nil {
				return fmt.Errorf("проверка уникальности subdomain: %w", err)
			}
			if taken {
				return fmt.Errorf("%w: subdomain '%s' уже занят", ErrConflict, *newSubdomain)
			}
			college.Subdomain = *newSubdomain
		}
		if name != nil {
			college.Name = *name
		}
		if features != nil {
			college.Features = features
		}
		return repo.Update(ctx, college)
	})
	if err != nil {
		return nil, mapWriteError(err, "subdomain уже занят")
	}

	s.logger.Info("Колледж обновлён", slog.String("college_id", id))
	return college, nil
}

// Deactivate переводит колледж в статус inactive. Вход по его subdomain
// и аутентификация его пользователей при этом перестают работать.
// Повторная деактивация возвращает ErrNotFound.
func (s *CollegeService) Deactivate(ctx context.Context, id string) error {
	err := s.tx.RunSerializable(ctx, func(tx pgx.Tx) error {
		return repository.NewCollegeRepository(tx).UpdateStatus(ctx, id, model.StatusInactive)
	})
	if err != nil {
		return mapWriteError(err, "")
	}

	s.logger.Info("Колледж деактивирован", slog.String("college_id", id))
	return nil
}
