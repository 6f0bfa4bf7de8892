package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goplacement/college-module/internal/domain/model"
)

// TenantRepository — интерфейс CRUD для таблицы tenants (основная БД).
type TenantRepository interface {
	// Create создаёт арендатора.
	Create(ctx context.Context, t *model.Tenant) error
	// GetByID возвращает арендатора по UUID.
	GetByID(ctx context.Context, id string) (*model.Tenant, error)
	// ExistsByName проверяет занятость имени (без учёта регистра).
	ExistsByName(ctx context.Context, name string) (bool, error)
	// List возвращает список арендаторов с фильтрацией по статусу.
	List(ctx context.Context, status *string, limit, offset int) ([]*model.Tenant, error)
	// Count возвращает количество арендаторов.
	Count(ctx context.Context, status *string) (int, error)
	// UpdateStatus переводит арендатора в новый статус. Если запись
	// уже в этом статусе или не существует — ErrNotFound.
	UpdateStatus(ctx context.Context, id, status string) error
}

// tenantRepo — реализация TenantRepository.
type tenantRepo struct {
	db DBTX
}

// NewTenantRepository создаёт репозиторий арендаторов.
func NewTenantRepository(db DBTX) TenantRepository {
	return &tenantRepo{db: db}
}

// scanTenant сканирует строку результата в модель Tenant.
func scanTenant(row pgx.Row) (*model.Tenant, error) {
	t := &model.Tenant{}
	err := row.Scan(
		&t.ID, &t.Name, &t.ConnDSN, &t.Status, &t.CreatedAt, &t.UpdatedAt,
	)
	return t, err
}

const tenantColumns = `id, name, conn_dsn, status, created_at, updated_at`

func (r *tenantRepo) Create(ctx context.Context, t *model.Tenant) error {
	query := `
		INSERT INTO tenants (id, name, conn_dsn, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		t.ID, t.Name, t.ConnDSN, t.Status,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания арендатора: %w", err)
	}
	return nil
}

func (r *tenantRepo) GetByID(ctx context.Context, id string) (*model.Tenant, error) {
	query := fmt.Sprintf(`SELECT %s FROM tenants WHERE id = $1`, tenantColumns)
	t, err := scanTenant(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения арендатора: %w", err)
	}
	return t, nil
}

func (r *tenantRepo) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tenants WHERE LOWER(name) = LOWER($1))`,
		name,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки имени арендатора: %w", err)
	}
	return exists, nil
}

func (r *tenantRepo) List(ctx context.Context, status *string, limit, offset int) ([]*model.Tenant, error) {
	// Динамическое построение WHERE
	var conditions []string
	var args []any
	argNum := 1

	if status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, *status)
		argNum++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s FROM tenants
		%s
		ORDER BY name
		LIMIT $%d OFFSET $%d`, tenantColumns, where, argNum, argNum+1)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка арендаторов: %w", err)
	}
	defer rows.Close()

	var tenants []*model.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования арендатора: %w", err)
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func (r *tenantRepo) Count(ctx context.Context, status *string) (int, error) {
	query := `SELECT COUNT(*) FROM tenants`
	var args []any
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, *status)
	}

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта арендаторов: %w", err)
	}
	return count, nil
}

func (r *tenantRepo) UpdateStatus(ctx context.Context, id, status string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE tenants SET status = $2, updated_at = now() WHERE id = $1 AND status <> $2`,
		id, status,
	)
	if err != nil {
		return fmt.Errorf("ошибка смены статуса арендатора: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
