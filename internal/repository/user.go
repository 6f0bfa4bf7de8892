package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goplacement/college-module/internal/domain/model"
)

// UserRepository — интерфейс CRUD для таблицы users раздела данных
// колледжа (основная БД или выделенная БД арендатора).
type UserRepository interface {
	// Create создаёт сотрудника.
	Create(ctx context.Context, u *model.User) error
	// GetByID возвращает сотрудника по UUID без привязки к колледжу.
	// Используется гейтом аутентификации: колледж записи авторитетен.
	GetByID(ctx context.Context, id string) (*model.User, error)
	// GetInCollege возвращает сотрудника по UUID в пределах колледжа.
	GetInCollege(ctx context.Context, collegeID, id string) (*model.User, error)
	// ExistsByEmail проверяет занятость email в пределах колледжа
	// (без учёта регистра), исключая запись excludeID.
	ExistsByEmail(ctx context.Context, collegeID, email, excludeID string) (bool, error)
	// List возвращает сотрудников колледжа с фильтрацией.
	List(ctx context.Context, collegeID string, role, status *string, limit, offset int) ([]*model.User, error)
	// Count возвращает количество сотрудников колледжа.
	Count(ctx context.Context, collegeID string, role, status *string) (int, error)
	// Update обновляет сотрудника в пределах колледжа.
	Update(ctx context.Context, u *model.User) error
	// UpdateStatus переводит сотрудника в новый статус. Если запись
	// уже в этом статусе или не существует — ErrNotFound.
	UpdateStatus(ctx context.Context, collegeID, id, status string) error
}

// userRepo — реализация UserRepository.
type userRepo struct {
	db DBTX
}

// NewUserRepository создаёт репозиторий сотрудников.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepo{db: db}
}

// scanUser сканирует строку результата в модель User.
func scanUser(row pgx.Row) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(
		&u.ID, &u.CollegeID, &u.Email, &u.FullName, &u.Role, &u.Phone,
		&u.Status, &u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}

const userColumns = `id, college_id, email, full_name, role, phone, status, created_at, updated_at`

func (r *userRepo) Create(ctx context.Context, u *model.User) error {
	query := `
		INSERT INTO users (id, college_id, email, full_name, role, phone, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		u.ID, u.CollegeID, u.Email, u.FullName, u.Role, u.Phone, u.Status,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания сотрудника: %w", err)
	}
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	u, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения сотрудника: %w", err)
	}
	return u, nil
}

func (r *userRepo) GetInCollege(ctx context.Context, collegeID, id string) (*model.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE college_id = $1 AND id = $2`, userColumns)
	u, err := scanUser(r.db.QueryRow(ctx, query, collegeID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения сотрудника: %w", err)
	}
	return u, nil
}

func (r *userRepo) ExistsByEmail(ctx context.Context, collegeID, email, excludeID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE college_id = $1 AND LOWER(email) = LOWER($2)`
	args := []any{collegeID, email}
	if excludeID != "" {
		query += ` AND id <> $3`
		args = append(args, excludeID)
	}
	query += `)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("ошибка проверки email сотрудника: %w", err)
	}
	return exists, nil
}

func (r *userRepo) List(ctx context.Context, collegeID string, role, status *string, limit, offset int) ([]*model.User, error) {
	// Динамическое построение WHERE: колледж всегда первый предикат
	conditions := []string{"college_id = $1"}
	args := []any{collegeID}
	argNum := 2

	if role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", argNum))
		args = append(args, *role)
		argNum++
	}
	if status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, *status)
		argNum++
	}

	query := fmt.Sprintf(`
		SELECT %s FROM users
		WHERE %s
		ORDER BY full_name
		LIMIT $%d OFFSET $%d`, userColumns, strings.Join(conditions, " AND "), argNum, argNum+1)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка сотрудников: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования сотрудника: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *userRepo) Count(ctx context.Context, collegeID string, role, status *string) (int, error) {
	conditions := []string{"college_id = $1"}
	args := []any{collegeID}
	argNum := 2

	if role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", argNum))
		args = append(args, *role)
		argNum++
	}
	if status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, *status)
	}

	query := `SELECT COUNT(*) FROM users WHERE ` + strings.Join(conditions, " AND ")

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта сотрудников: %w", err)
	}
	return count, nil
}

func (r *userRepo) Update(ctx context.Context, u *model.User) error {
	query := `
		UPDATE users
		SET email = $3, full_name = $4, role = $5, phone = $6, updated_at = now()
		WHERE college_id = $1 AND id = $2
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		u.CollegeID, u.ID, u.Email, u.FullName, u.Role, u.Phone,
	).Scan(&u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка обновления сотрудника: %w", err)
	}
	return nil
}

func (r *userRepo) UpdateStatus(ctx context.Context, collegeID, id, status string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET status = $3, updated_at = now()
		 WHERE college_id = $1 AND id = $2 AND status <> $3`,
		collegeID, id, status,
	)
	if err != nil {
		return fmt.Errorf("ошибка смены статуса сотрудника: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
