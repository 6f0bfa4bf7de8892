// users.go — бизнес-логика сотрудников колледжа.
//
// Сотрудники хранятся в разделе данных арендатора. Каждая запись сначала
// резолвится в пул раздела (partitionRouter), затем выполняется по
// протоколу транзакционной записи: serializable-транзакция на выделенном
// соединении, предусловие уникальности email — внутри неё.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goplacement/college-module/internal/database"
	"github.com/bigkaa/goplacement/college-module/internal/domain/model"
	"github.com/bigkaa/goplacement/college-module/internal/domain/role"
	"github.com/bigkaa/goplacement/college-module/internal/repository"
)

// UserService — бизнес-логика управления сотрудниками колледжа.
type UserService struct {
	router *partitionRouter
	logger *slog.Logger
}

// NewUserService создаёт сервис сотрудников. collegeRepo привязан к
// основной БД, manager выдаёт пулы разделов арендаторов.
func NewUserService(collegeRepo repository.CollegeRepository, manager *database.Manager, logger *slog.Logger) *UserService {
	return &UserService{
		router: &partitionRouter{collegeRepo: collegeRepo, manager: manager},
		logger: logger.With(slog.String("component", "user_service")),
	}
}

// validateEmail проверяет форму адреса. Адрес хранится как введён,
// уникальность обеспечивается без учёта регистра на уровне запросов
// и индекса.
func validateEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", fmt.Errorf("%w: email не может быть пустым", ErrValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%w: некорректный email '%s'", ErrValidation, email)
	}
	return email, nil
}

// Create создаёт сотрудника в разделе колледжа. Роль — только из
// назначаемого набора (college_admin, teacher). Email уникален в
// пределах колледжа без учёта регистра.
func (s *UserService) Create(ctx context.Context, collegeID, email, fullName, roleStr string, phone *string) (*model.User, error) {
	email, err := validateEmail(email)
	if err != nil {
		return nil, err
	}
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return nil, fmt.Errorf("%w: имя сотрудника не может быть пустым", ErrValidation)
	}
	r, err := role.Parse(roleStr)
	if err != nil || !role.AssignableToUser(r) {
		return nil, fmt.Errorf("%w: '%s' (допустимы: college_admin, teacher)", ErrInvalidRole, roleStr)
	}

	pool, _, _, err := s.router.resolve(ctx, collegeID, true)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		ID:        uuid.New().String(),
		CollegeID: collegeID,
		Email:     email,
		FullName:  fullName,
		Role:      r.String(),
		Phone:     phone,
		Status:    model.StatusActive,
	}

	runner := repository.NewTxRunner(pool, s.logger)
	err = runner.RunSerializable(ctx, func(tx pgx.Tx) error {
		repo := repository.NewUserRepository(tx)
		taken, err := repo.ExistsByEmail(ctx, collegeID, email, "")
		if err != nil {
			return fmt.Errorf("проверка уникальности email: %w", err)
		}
		if taken {
			return fmt.Errorf("%w: email '%s' уже используется в колледже", ErrConflict, email)
		}
		return repo.Create(ctx, user)
	})
	if err != nil {
		return nil, mapWriteError(err, fmt.Sprintf("email '%s' уже используется в колледже", email))
	}

	s.logger.Info("Сотрудник создан",
		slog.String("user_id", user.ID),
		slog.String("college_id", collegeID),
		slog.String("role", user.Role),
	)

	return user, nil
}

// Get возвращает сотрудника колледжа по ID.
func (s *UserService) Get(ctx context.Context, collegeID, id string) (*model.User, error) {
	pool, _, _, err := s.router.resolve(ctx, collegeID, false)
	if err != nil {
		return nil, err
	}
	user, err := repository.NewUserRepository(pool).GetInCollege(ctx, collegeID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение сотрудника: %w", err)
	}
	return user, nil
}

// List возвращает страницу сотрудников колледжа и общее количество.
// roleFilter и status фильтруют выборку (nil — без фильтра).
func (s *UserService) List(ctx context.Context, collegeID string, roleFilter, status *string, limit, offset int) ([]*model.User, int, error) {
	pool, _, _, err := s.router.resolve(ctx, collegeID, false)
	if err != nil {
		return nil, 0, err
	}
	repo := repository.NewUserRepository(pool)
	users, err := repo.List(ctx, collegeID, roleFilter, status, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("список сотрудников: %w", err)
	}
	total, err := repo.Count(ctx, collegeID, roleFilter, status)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт сотрудников: %w", err)
	}
	return users, total, nil
}

// Update изменяет сотрудника. nil-поля не трогаются. Смена email
// проверяется на уникальность в той же транзакции, что и запись.
func (s *UserService) Update(ctx context.Context, collegeID, id string, email, fullName, roleStr, phone *string) (*model.User, error) {
	if email != nil {
		validated, err := validateEmail(*email)
		if err != nil {
			return nil, err
		}
		email = &validated
	}
	var newRole *role.Role
	if roleStr != nil {
		r, err := role.Parse(*roleStr)
		if err != nil || !role.AssignableToUser(r) {
			return nil, fmt.Errorf("%w: '%s' (допустимы: college_admin, teacher)", ErrInvalidRole, *roleStr)
		}
		newRole = &r
	}

	pool, _, _, err := s.router.resolve(ctx, collegeID, true)
	if err != nil {
		return nil, err
	}

	var user *model.User
	runner := repository.NewTxRunner(pool, s.logger)
	err = runner.RunSerializable(ctx, func(tx pgx.Tx) error {
		repo := repository.NewUserRepository(tx)
		var err error
		user, err = repo.GetInCollege(ctx, collegeID, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("получение сотрудника для обновления: %w", err)
		}

		if email != nil && !strings.EqualFold(*email, user.Email) {
			taken, err := repo.ExistsByEmail(ctx, collegeID, *email, id)
			if err != nil {
				return fmt.Errorf("проверка уникальности email: %w", err)
			}
			if taken {
				return fmt.Errorf("%w: email '%s' уже используется в колледже", ErrConflict, *email)
			}
		}
		if email != nil {
			user.Email = *email
		}
		if fullName != nil {
			trimmed := strings.TrimSpace(*fullName)
			if trimmed == "" {
				return fmt.Errorf("%w: имя сотрудника не может быть пустым", ErrValidation)
			}
			user.FullName = trimmed
		}
		if newRole != nil {
			user.Role = newRole.String()
		}
		if phone != nil {
			user.Phone = phone
		}
		return repo.Update(ctx, user)
	})
	if err != nil {
		return nil, mapWriteError(err, "email уже используется в колледже")
	}

	s.logger.Info("Сотрудник обновлён",
		slog.String("user_id", id),
		slog.String("college_id", collegeID),
	)

	return user, nil
}

// Deactivate переводит сотрудника в статус inactive: его токены перестают
// проходить шлюз аутентификации. Повторная деактивация — ErrNotFound.
func (s *UserService) Deactivate(ctx context.Context, collegeID, id string) error {
	pool, _, _, err := s.router.resolve(ctx, collegeID, true)
	if err != nil {
		return err
	}
	runner := repository.NewTxRunner(pool, s.logger)
	err = runner.RunSerializable(ctx, func(tx pgx.Tx) error {
		return repository.NewUserRepository(tx).UpdateStatus(ctx, collegeID, id, model.StatusInactive)
	})
	if err != nil {
		return mapWriteError(err, "")
	}

	s.logger.Info("Сотрудник деактивирован",
		slog.String("user_id", id),
		slog.String("college_id", collegeID),
	)
	return nil
}
