// tenants.go — бизнес-логика реестра арендаторов.
//
// Арендатор определяет раздел хранения для своих колледжей: либо основная
// БД (conn_dsn IS NULL), либо выделенная БД по строке подключения.
// Регистрация выполняется по протоколу транзакционной записи: проверка
// уникальности имени и вставка идут в одной serializable-транзакции.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goplacement/college-module/internal/database"
	"github.com/bigkaa/goplacement/college-module/internal/domain/model"
	"github.com/bigkaa/goplacement/college-module/internal/repository"
)

// TenantService — бизнес-логика управления арендаторами.
type TenantService struct {
	tenantRepo repository.TenantRepository
	tx         *repository.TxRunner
	logger     *slog.Logger
}

// NewTenantService создаёт сервис управления арендаторами.
// tenantRepo привязан к основной БД для чтений, tx — раннер транзакций
// основной БД для записей.
func NewTenantService(tenantRepo repository.TenantRepository, tx *repository.TxRunner, logger *slog.Logger) *TenantService {
	return &TenantService{
		tenantRepo: tenantRepo,
		tx:         tx,
		logger:     logger.With(slog.String("component", "tenant_service")),
	}
}

// Provision регистрирует нового арендатора. connDSN == nil означает
// размещение в основной БД; непустой DSN проверяется на разбираемость
// до записи. Имя уникально без учёта регистра.
func (s *TenantService) Provision(ctx context.Context, name string, connDSN *string) (*model.Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: имя арендатора не может быть пустым", ErrValidation)
	}
	if connDSN != nil {
		trimmed := strings.TrimSpace(*connDSN)
		if trimmed == "" {
			connDSN = nil
		} else {
			if err := database.ValidateDSN(trimmed); err != nil {
				return nil, fmt.Errorf("%w: строка подключения не разбирается: %v", ErrValidation, err)
			}
			connDSN = &trimmed
		}
	}

	tenant := &model.Tenant{
		ID:      uuid.New().String(),
		Name:    name,
		ConnDSN: connDSN,
		Status:  model.StatusActive,
	}

	err := s.tx.RunSerializable(ctx, func(tx pgx.Tx) error {
		repo := repository.NewTenantRepository(tx)
		exists, err := repo.ExistsByName(ctx, name)
		if err != nil {
			return fmt.Errorf("проверка уникальности имени арендатора: %w", err)
		}
		if exists {
			return fmt.Errorf("%w: арендатор с именем '%s' уже зарегистрирован", ErrConflict, name)
		}
		return repo.Create(ctx, tenant)
	})
	if err != nil {
		return nil, mapWriteError(err, fmt.Sprintf("арендатор с именем '%s' уже зарегистрирован", name))
	}

	s.logger.Info("Арендатор зарегистрирован",
		slog.String("tenant_id", tenant.ID),
		slog.String("name", tenant.Name),
		slog.Bool("dedicated_db", tenant.ConnDSN != nil),
	)

	return tenant, nil
}

// Get возвращает арендатора по ID.
func (s *TenantService) Get(ctx context.Context, id string) (*model.Tenant, error) {
	tenant, err := s.tenantRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение арендатора: %w", err)
	}
	return tenant, nil
}

// List возвращает страницу арендаторов и общее количество.
// status фильтрует по статусу (nil — все).
func (s *TenantService) List(ctx context.Context, status *string, limit, offset int) ([]*model.Tenant, int, error) {
	tenants, err := s.tenantRepo.List(ctx, status, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("список арендаторов: %w", err)
	}
	total, err := s.tenantRepo.Count(ctx, status)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт арендаторов: %w", err)
	}
	return tenants, total, nil
}

// Deactivate переводит арендатора в статус inactive. Колледжи арендатора
// при этом перестают проходить проверку статуса в шлюзе аутентификации.
// Повторная деактивация возвращает ErrNotFound: активной записи уже нет.
func (s *TenantService) Deactivate(ctx context.Context, id string) error {
	err := s.tx.RunSerializable(ctx, func(tx pgx.Tx) error {
		return repository.NewTenantRepository(tx).UpdateStatus(ctx, id, model.StatusInactive)
	})
	if err != nil {
		return mapWriteError(err, "")
	}

	s.logger.Info("Арендатор деактивирован", slog.String("tenant_id", id))
	return nil
}
