// students.go — бизнес-логика студентов колледжа.
//
// Студенты хранятся в разделе данных арендатора рядом с сотрудниками.
// Записи идут по протоколу транзакционной записи; предусловия внутри
// транзакции — уникальность email и номера зачисления в пределах
// колледжа (обе без учёта регистра).
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

// StudentService — бизнес-логика управления студентами колледжа.
type StudentService struct {
	router *partitionRouter
	logger *slog.Logger
}

// NewStudentService создаёт сервис студентов. collegeRepo привязан к
// основной БД, manager выдаёт пулы разделов арендаторов.
func NewStudentService(collegeRepo repository.CollegeRepository, manager *database.Manager, logger *slog.Logger) *StudentService {
	return &StudentService{
		router: &partitionRouter{collegeRepo: collegeRepo, manager: manager},
		logger: logger.With(slog.String("component", "student_service")),
	}
}

// Create создаёт студента в разделе колледжа. Email и номер зачисления
// уникальны в пределах колледжа без учёта регистра.
func (s *StudentService) Create(ctx context.Context, collegeID, email, fullName, enrollmentNo string, course *string, graduationYear *int) (*model.Student, error) {
	email, err := validateEmail(email)
	if err != nil {
		return nil, err
	}
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return nil, fmt.Errorf("%w: имя студента не может быть пустым", ErrValidation)
	}
	enrollmentNo = strings.TrimSpace(enrollmentNo)
	if enrollmentNo == "" {
		return nil, fmt.Errorf("%w: номер зачисления не может быть пустым", ErrValidation)
	}

	pool, _, _, err := s.router.resolve(ctx, collegeID, true)
	if err != nil {
		return nil, err
	}

	student := &model.Student{
		ID:             uuid.New().String(),
		CollegeID:      collegeID,
		Email:          email,
		FullName:       fullName,
		EnrollmentNo:   enrollmentNo,
		Course:         course,
		GraduationYear: graduationYear,
		Status:         model.StatusActive,
	}

	runner := repository.NewTxRunner(pool, s.logger)
	err = runner.RunSerializable(ctx, func(tx pgx.Tx) error {
		repo := repository.NewStudentRepository(tx)
		taken, err := repo.ExistsByEmail(ctx, collegeID, email, "")
		if err != nil {
			return fmt.Errorf("проверка уникальности email: %w", err)
		}
		if taken {
			return fmt.Errorf("%w: email '%s' уже используется в колледже", ErrConflict, email)
		}
		taken, err = repo.ExistsByEnrollmentNo(ctx, collegeID, enrollmentNo, "")
		if err != nil {
			return fmt.Errorf("проверка уникальности номера зачисления: %w", err)
		}
		if taken {
			return fmt.Errorf("%w: номер зачисления '%s' уже используется в колледже", ErrConflict, enrollmentNo)
		}
		return repo.Create(ctx, student)
	})
	if err != nil {
		return nil, mapWriteError(err, fmt.Sprintf("email '%s' или номер зачисления '%s' уже используется в колледже", email, enrollmentNo))
	}

	s.logger.Info("Студент создан",
		slog.String("student_id", student.ID),
		slog.String("college_id", collegeID),
		slog.String("enrollment_no", student.EnrollmentNo),
	)

	return student, nil
}

// Get возвращает студента колледжа по ID.
func (s *StudentService) Get(ctx context.Context, collegeID, id string) (*model.Student, error) {
	pool, _, _, err := s.router.resolve(ctx, collegeID, false)
	if err != nil {
		return nil, err
	}
	student, err := repository.NewStudentRepository(pool).GetInCollege(ctx, collegeID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение студента: %w", err)
	}
	return student, nil
}

// List возвращает страницу студентов колледжа и общее количество.
// status фильтрует по статусу (nil — все).
func (s *StudentService) List(ctx context.Context, collegeID string, status *string, limit, offset int) ([]*model.Student, int, error) {
	pool, _, _, err := s.router.resolve(ctx, collegeID, false)
	if err != nil {
		return nil, 0, err
	}
	repo := repository.NewStudentRepository(pool)
	students, err := repo.List(ctx, collegeID, status, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("список студентов: %w", err)
	}
	total, err := repo.Count(ctx, collegeID, status)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт студентов: %w", err)
	}
	return students, total, nil
}

// Update изменяет студента. nil-поля не трогаются. Смена email или
// номера зачисления проверяется на уникальность в той же транзакции,
// что и запись.
func (s *StudentService) Update(ctx context.Context, collegeID, id string, email, fullName, enrollmentNo, course *string, graduationYear *int) (*model.Student, error) {
	if email != nil {
		validated, err := validateEmail(*email)
		if err != nil {
			return nil, err
		}
		email = &validated
	}
	if enrollmentNo != nil {
		trimmed := strings.TrimSpace(*enrollmentNo)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: номер зачисления не может быть пустым", ErrValidation)
		}
		enrollmentNo = &trimmed
	}

	pool, _, _, err := s.router.resolve(ctx, collegeID, true)
	if err != nil {
		return nil, err
	}

	var student *model.Student
	runner := repository.NewTxRunner(pool, s.logger)
	err = runner.RunSerializable(ctx, func(tx pgx.Tx) error {
		repo := repository.NewStudentRepository(tx)
		var err error
		student, err = repo.GetInCollege(ctx, collegeID, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("получение студента для обновления: %w", err)
		}

		if email != nil && !strings.EqualFold(*email, student.Email) {
			taken, err := repo.ExistsByEmail(ctx, collegeID, *email, id)
			if err != nil {
				return fmt.Errorf("проверка уникальности email: %w", err)
			}
			if taken {
				return fmt.Errorf("%w: email '%s' уже используется в колледже", ErrConflict, *email)
			}
		}
		if enrollmentNo != nil && !strings.EqualFold(*enrollmentNo, student.EnrollmentNo) {
			taken, err := repo.ExistsByEnrollmentNo(ctx, collegeID, *enrollmentNo, id)
			if err != nil {
				return fmt.Errorf("проверка уникальности номера зачисления: %w", err)
			}
			if taken {
				return fmt.Errorf("%w: номер зачисления '%s' уже используется в колледже", ErrConflict, *enrollmentNo)
			}
		}
		if email != nil {
			student.Email = *email
		}
		if fullName != nil {
			trimmed := strings.TrimSpace(*fullName)
			if trimmed == "" {
				return fmt.Errorf("%w: имя студента не может быть пустым", ErrValidation)
			}
			student.FullName = trimmed
		}
		if enrollmentNo != nil {
			student.EnrollmentNo = *enrollmentNo
		}
		if course != nil {
			student.Course = course
		}
		if graduationYear != nil {
			student.GraduationYear = graduationYear
		}
		return repo.Update(ctx, student)
	})
	if err != nil {
		return nil, mapWriteError(err, "email или номер зачисления уже используется в колледже")
	}

	s.logger.Info("Студент обновлён",
		slog.String("student_id", id),
		slog.String("college_id", collegeID),
	)

	return student, nil
}

// Deactivate переводит студента в статус inactive: его токены перестают
// проходить шлюз аутентификации. Повторная деактивация — ErrNotFound.
func (s *StudentService) Deactivate(ctx context.Context, collegeID, id string) error {
	pool, _, _, err := s.router.resolve(ctx, collegeID, true)
	if err != nil {
		return err
	}
	runner := repository.NewTxRunner(pool, s.logger)
	err = runner.RunSerializable(ctx, func(tx pgx.Tx) error {
		return repository.NewStudentRepository(tx).UpdateStatus(ctx, collegeID, id, model.StatusInactive)
	})
	if err != nil {
		return mapWriteError(err, "")
	}

	s.logger.Info("Студент деактивирован",
		slog.String("student_id", id),
		slog.String("college_id", collegeID),
	)
	return nil
}
