package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goplacement/college-module/internal/domain/model"
)

// StudentRepository — интерфейс CRUD для таблицы students раздела данных
// колледжа (основная БД или выделенная БД арендатора).
type StudentRepository interface {
	// Create создаёт студента.
	Create(ctx context.Context, s *model.Student) error
	// GetByID возвращает студента по UUID без привязки к колледжу.
	// Используется гейтом аутентификации: колледж записи авторитетен.
	GetByID(ctx context.Context, id string) (*model.Student, error)
	// GetInCollege возвращает студента по UUID в пределах колледжа.
	GetInCollege(ctx context.Context, collegeID, id string) (*model.Student, error)
	// ExistsByEmail проверяет занятость email в пределах колледжа
	// (без учёта регистра), исключая запись excludeID.
	ExistsByEmail(ctx context.Context, collegeID, email, excludeID string) (bool, error)
	// ExistsByEnrollmentNo проверяет занятость номера зачисления
	// в пределах колледжа (без учёта регистра), исключая excludeID.
	ExistsByEnrollmentNo(ctx context.Context, collegeID, enrollmentNo, excludeID string) (bool, error)
	// List возвращает студентов колледжа с фильтрацией по статусу.
	List(ctx context.Context, collegeID string, status *string, limit, offset int) ([]*model.Student, error)
	// Count возвращает количество студентов колледжа.
	Count(ctx context.Context, collegeID string, status *string) (int, error)
	// Update обновляет студента в пределах колледжа.
	Update(ctx context.Context, s *model.Student) error
	// UpdateStatus переводит студента в новый статус. Если запись уже
	// в этом статусе или не существует — ErrNotFound.
	UpdateStatus(ctx context.Context, collegeID, id, status string) error
}

// studentRepo — реализация StudentRepository.
type studentRepo struct {
	db DBTX
}

// NewStudentRepository создаёт репозиторий студентов.
func NewStudentRepository(db DBTX) StudentRepository {
	return &studentRepo{db: db}
}

// scanStudent сканирует строку результата в модель Student.
func scanStudent(row pgx.Row) (*model.Student, error) {
	s := &model.Student{}
	err := row.Scan(
		&s.ID, &s.CollegeID, &s.Email, &s.FullName, &s.EnrollmentNo,
		&s.Course, &s.GraduationYear, &s.Status, &s.CreatedAt, &s.UpdatedAt,
	)
	return s, err
}

const studentColumns = `id, college_id, email, full_name, enrollment_no,
	course, graduation_year, status, created_at, updated_at`

func (r *studentRepo) Create(ctx context.Context, s *model.Student) error {
	query := `
		INSERT INTO students (id, college_id, email, full_name, enrollment_no,
			course, graduation_year, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		s.ID, s.CollegeID, s.Email, s.FullName, s.EnrollmentNo,
		s.Course, s.GraduationYear, s.Status,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания студента: %w", err)
	}
	return nil
}

func (r *studentRepo) GetByID(ctx context.Context, id string) (*model.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE id = $1`, studentColumns)
	s, err := scanStudent(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения студента: %w", err)
	}
	return s, nil
}

func (r *studentRepo) GetInCollege(ctx context.Context, collegeID, id string) (*model.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE college_id = $1 AND id = $2`, studentColumns)
	s, err := scanStudent(r.db.QueryRow(ctx, query, collegeID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения студента: %w", err)
	}
	return s, nil
}

func (r *studentRepo) ExistsByEmail(ctx context.Context, collegeID, email, excludeID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM students WHERE college_id = $1 AND LOWER(email) = LOWER($2)`
	args := []any{collegeID, email}
	if excludeID != "" {
		query += ` AND id <> $3`
		args = append(args, excludeID)
	}
	query += `)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("ошибка проверки email студента: %w", err)
	}
	return exists, nil
}

func (r *studentRepo) ExistsByEnrollmentNo(ctx context.Context, collegeID, enrollmentNo, excludeID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM students WHERE college_id = $1 AND LOWER(enrollment_no) = LOWER($2)`
	args := []any{collegeID, enrollmentNo}
	if excludeID != "" {
		query += ` AND id <> $3`
		args = append(args, excludeID)
	}
	query += `)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("ошибка проверки номера зачисления: %w", err)
	}
	return exists, nil
}

func (r *studentRepo) List(ctx context.Context, collegeID string, status *string, limit, offset int) ([]*model.Student, error) {
	conditions := []string{"college_id = $1"}
	args := []any{collegeID}
	argNum := 2

	if status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, *status)
		argNum++
	}

	query := fmt.Sprintf(`
		SELECT %s FROM students
		WHERE %s
		ORDER BY full_name
		LIMIT $%d OFFSET $%d`, studentColumns, strings.Join(conditions, " AND "), argNum, argNum+1)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка студентов: %w", err)
	}
	defer rows.Close()

	var students []*model.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования студента: %w", err)
		}
		students = append(students, s)
	}
	return students, rows.Err()
}

func (r *studentRepo) Count(ctx context.Context, collegeID string, status *string) (int, error) {
	query := `SELECT COUNT(*) FROM students WHERE college_id = $1`
	args := []any{collegeID}
	if status != nil {
		query += ` AND status = $2`
		args = append(args, *status)
	}

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта студентов: %w", err)
	}
	return count, nil
}

func (r *studentRepo) Update(ctx context.Context, s *model.Student) error {
	query := `
		UPDATE students
		SET email = $3, full_name = $4, enrollment_no = $5, course = $6,
			graduation_year = $7, updated_at = now()
		WHERE college_id = $1 AND id = $2
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		s.CollegeID, s.ID, s.Email, s.FullName, s.EnrollmentNo,
		s.Course, s.GraduationYear,
	).Scan(&s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка обновления студента: %w", err)
	}
	return nil
}

func (r *studentRepo) UpdateStatus(ctx context.Context, collegeID, id, status string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE students SET status = $3, updated_at = now()
		 WHERE college_id = $1 AND id = $2 AND status <> $3`,
		collegeID, id, status,
	)
	if err != nil {
		return fmt.Errorf("ошибка смены статуса студента: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
