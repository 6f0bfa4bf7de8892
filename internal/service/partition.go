// partition.go — маршрутизация операций в раздел данных колледжа.
//
// Реестр колледжей и арендаторов живёт в основной БД; пользователи и
// студенты — в разделе арендатора (основная БД или выделенная БД по
// conn_dsn). Перед операцией в разделе резолвится колледж → арендатор →
// пул соединений менеджера. Проверка существования и активности колледжа
// выполняется в основной БД непосредственно перед транзакцией раздела:
// межбазовая транзакция здесь невозможна, поэтому это предусловие
// вынесено из неё.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/goplacement/college-module/internal/database"
	"github.com/bigkaa/goplacement/college-module/internal/domain/model"
	"github.com/bigkaa/goplacement/college-module/internal/repository"
)

// partitionRouter разрешает колледж в пул соединений его раздела данных.
type partitionRouter struct {
	collegeRepo repository.CollegeRepository
	manager     *database.Manager
}

// resolve возвращает пул раздела, колледж и арендатора по ID колледжа.
// forWrite управляет трактовкой отказов: для записей несуществующий
// колледж — ErrInvalidReference (ссылка в запросе не бьётся), а
// деактивированный колледж или арендатор — ErrInactive; для чтений
// несуществующий колледж — ErrNotFound, статус не проверяется.
// Отказ конструирования пула — ErrUnavailable: дескриптор корректен,
// но раздел сейчас недостижим.
func (pr *partitionRouter) resolve(ctx context.Context, collegeID string, forWrite bool) (*pgxpool.Pool, *model.College, *model.Tenant, error) {
	college, tenant, err := pr.collegeRepo.GetWithTenant(ctx, collegeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			if forWrite {
				return nil, nil, nil, fmt.Errorf("%w: колледж '%s' не существует", ErrInvalidReference, collegeID)
			}
			return nil, nil, nil, ErrNotFound
		}
		return nil, nil, nil, fmt.Errorf("разрешение колледжа '%s': %w", collegeID, err)
	}
	if forWrite {
		if college.Status != model.StatusActive {
			return nil, nil, nil, fmt.Errorf("%w: колледж '%s' деактивирован", ErrInactive, collegeID)
		}
		if tenant.Status != model.StatusActive {
			return nil, nil, nil, fmt.Errorf("%w: арендатор колледжа '%s' деактивирован", ErrInactive, collegeID)
		}
	}

	pool, err := pr.manager.PoolFor(ctx, descriptorFor(tenant))
	if err != nil {
		if errors.Is(err, database.ErrInvalidDescriptor) {
			return nil, nil, nil, fmt.Errorf("дескриптор раздела арендатора '%s': %w", tenant.ID, err)
		}
		return nil, nil, nil, fmt.Errorf("%w: раздел арендатора '%s' недостижим: %v", ErrUnavailable, tenant.ID, err)
	}
	return pool, college, tenant, nil
}

// descriptorFor строит дескриптор раздела арендатора для менеджера пулов.
// Пустой DSN означает основную БД.
func descriptorFor(tenant *model.Tenant) database.TenantDescriptor {
	desc := database.TenantDescriptor{
		TenantID:   tenant.ID,
		TenantName: tenant.Name,
	}
	if tenant.ConnDSN != nil {
		desc.DSN = *tenant.ConnDSN
	}
	return desc
}
