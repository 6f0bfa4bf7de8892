package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goplacement/college-module/internal/domain/model"
)

// CollegeRepository — интерфейс CRUD для таблицы colleges (основная БД).
type CollegeRepository interface {
	// Create создаёт колледж.
	Create(ctx context.Context, c *model.College) error
	// GetByID возвращает колледж по UUID.
	GetByID(ctx context.Context, id string) (*model.College, error)
	// GetWithTenant возвращает колледж вместе с арендатором-владельцем
	// (источник дескриптора подключения).
	GetWithTenant(ctx context.Context, id string) (*model.College, *model.Tenant, error)
	// FindActiveBySubdomain возвращает активный колледж активного
	// арендатора по поддомену (без учёта регистра).
	FindActiveBySubdomain(ctx context.Context, subdomain string) (*model.College, error)
	// ExistsBySubdomain проверяет занятость поддомена (без учёта
	// регистра), исключая запись excludeID (пустой — без исключений).
	ExistsBySubdomain(ctx context.Context, subdomain, excludeID string) (bool, error)
	// List возвращает список колледжей с фильтрацией.
	List(ctx context.Context, tenantID, status *string, limit, offset int) ([]*model.College, error)
	// Count возвращает количество колледжей.
	Count(ctx context.Context, tenantID, status *string) (int, error)
	// Update обновляет имя, поддомен и набор функций колледжа.
	Update(ctx context.Context, c *model.College) error
	// UpdateStatus переводит колледж в новый статус. Если запись уже
	// в этом статусе или не существует — ErrNotFound.
	UpdateStatus(ctx context.Context, id, status string) error
}

// collegeRepo — реализация CollegeRepository.
type collegeRepo struct {
	db DBTX
}

// NewCollegeRepository создаёт репозиторий колледжей.
func NewCollegeRepository(db DBTX) CollegeRepository {
	return &collegeRepo{db: db}
}

// scanCollege сканирует строку результата в модель College.
func scanCollege(row pgx.Row) (*model.College, error) {
	c := &model.College{}
	err := row.Scan(
		&c.ID, &c.TenantID, &c.Subdomain, &c.Name, &c.Status, &c.Features,
		&c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

const collegeColumns = `id, tenant_id, subdomain, name, status, features, created_at, updated_at`

func (r *collegeRepo) Create(ctx context.Context, c *model.College) error {
	query := `
		INSERT INTO colleges (id, tenant_id, subdomain, name, status, features)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		c.ID, c.TenantID, c.Subdomain, c.Name, c.Status, c.Features,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания колледжа: %w", err)
	}
	return nil
}

func (r *collegeRepo) GetByID(ctx context.Context, id string) (*model.College, error) {
	query := fmt.Sprintf(`SELECT %s FROM colleges WHERE id = $1`, collegeColumns)
	c, err := scanCollege(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения колледжа: %w", err)
	}
	return c, nil
}

func (r *collegeRepo) GetWithTenant(ctx context.Context, id string) (*model.College, *model.Tenant, error) {
	query := `
		SELECT c.id, c.tenant_id, c.subdomain, c.name, c.status, c.features,
			c.created_at, c.updated_at,
			t.id, t.name, t.conn_dsn, t.status, t.created_at, t.updated_at
		FROM colleges c
		JOIN tenants t ON t.id = c.tenant_id
		WHERE c.id = $1`

	c := &model.College{}
	t := &model.Tenant{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.TenantID, &c.Subdomain, &c.Name, &c.Status, &c.Features,
		&c.CreatedAt, &c.UpdatedAt,
		&t.ID, &t.Name, &t.ConnDSN, &t.Status, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("ошибка получения колледжа с арендатором: %w", err)
	}
	return c, t, nil
}

func (r *collegeRepo) FindActiveBySubdomain(ctx context.Context, subdomain string) (*model.College, error) {
	query := `
		SELECT c.id, c.tenant_id, c.subdomain, c.name, c.status, c.features,
			c.created_at, c.updated_at
		FROM colleges c
		JOIN tenants t ON t.id = c.tenant_id
		WHERE LOWER(c.subdomain) = LOWER($1)
			AND c.status = 'active'
			AND t.status = 'active'`

	c, err := scanCollege(r.db.QueryRow(ctx, query, subdomain))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка поиска колледжа по поддомену: %w", err)
	}
	return c, nil
}

func (r *collegeRepo) ExistsBySubdomain(ctx context.Context, subdomain, excludeID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM colleges WHERE LOWER(subdomain) = LOWER($1)`
	args := []any{subdomain}
	if excludeID != "" {
		query += ` AND id <> $2`
		args = append(args, excludeID)
	}
	query += `)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("ошибка проверки поддомена: %w", err)
	}
	return exists, nil
}

func (r *collegeRepo) List(ctx context.Context, tenantID, status *string, limit, offset int) ([]*model.College, error) {
	// Динамическое построение WHERE
	var conditions []string
	var args []any
	argNum := 1

	if tenantID != nil {
		conditions = append(conditions, fmt.Sprintf("tenant_id = $%d", argNum))
		args = append(args, *tenantID)
		argNum++
	}
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
		SELECT %s FROM colleges
		%s
		ORDER BY name
		LIMIT $%d OFFSET $%d`, collegeColumns, where, argNum, argNum+1)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка колледжей: %w", err)
	}
	defer rows.Close()

	var colleges []*model.College
	for rows.Next() {
		c, err := scanCollege(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования колледжа: %w", err)
		}
		colleges = append(colleges, c)
	}
	return colleges, rows.Err()
}

func (r *collegeRepo) Count(ctx context.Context, tenantID, status *string) (int, error) {
	var conditions []string
	var args []any
	argNum := 1

	if tenantID != nil {
		conditions = append(conditions, fmt.Sprintf("tenant_id = $%d", argNum))
		args = append(args, *tenantID)
		argNum++
	}
	if status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, *status)
	}

	query := `SELECT COUNT(*) FROM colleges`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта колледжей: %w", err)
	}
	return count, nil
}

func (r *collegeRepo) Update(ctx context.Context, c *model.College) error {
	query := `
		UPDATE colleges
		SET subdomain = $2, name = $3, features = $4, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		c.ID, c.Subdomain, c.Name, c.Features,
	).Scan(&c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка обновления колледжа: %w", err)
	}
	return nil
}

func (r *collegeRepo) UpdateStatus(ctx context.Context, id, status string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE colleges SET status = $2, updated_at = now() WHERE id = $1 AND status <> $2`,
		id, status,
	)
	if err != nil {
		return fmt.Errorf("ошибка смены статуса колледжа: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
