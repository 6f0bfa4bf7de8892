// errors.go — ошибки бизнес-логики сервисного слоя.
//
// Сервисы транслируют ошибки репозиториев в собственные sentinel-ошибки,
// чтобы HTTP-обработчики могли сопоставить их со статусами через errors.Is,
// не зная деталей хранилища. Ошибки протокола транзакционной записи
// (конфликт уникальности, нарушение ссылочной целостности, сбой
// сериализации) сводятся к ошибкам этого пакета функцией mapWriteError.
package service

import (
	"errors"
	"fmt"

	"github.com/bigkaa/goplacement/college-module/internal/repository"
)

// Ошибки сервисного слоя.
var (
	// ErrNotFound — запрошенный ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")

	// ErrConflict — конфликт уникальности (email, subdomain, номер зачисления).
	ErrConflict = errors.New("конфликт уникальности")

	// ErrInvalidReference — ссылка на несуществующий родительский ресурс.
	ErrInvalidReference = errors.New("ссылка на несуществующий ресурс")

	// ErrValidation — некорректные входные данные запроса.
	ErrValidation = errors.New("некорректные данные запроса")

	// ErrInvalidRole — роль вне допустимого набора.
	ErrInvalidRole = errors.New("недопустимая роль")

	// ErrInactive — ресурс или его родитель деактивированы.
	ErrInactive = errors.New("ресурс деактивирован")

	// ErrUnavailable — хранилище временно недоступно, запрос можно повторить.
	ErrUnavailable = errors.New("хранилище временно недоступно")

	// ErrIdentityNotFound — учётная запись из токена не найдена в разделе арендатора.
	ErrIdentityNotFound = errors.New("учётная запись не найдена")

	// ErrIdentityInactive — учётная запись, её колледж или арендатор деактивированы.
	ErrIdentityInactive = errors.New("учётная запись деактивирована")
)

// mapWriteError транслирует исход протокола транзакционной записи в ошибку
// сервисного слоя. Ошибки, уже принадлежащие этому пакету (возвращённые
// предусловиями внутри транзакции), проходят без изменений. conflictMsg —
// сообщение для конфликта уникальности, проигранного на самой вставке:
// предусловие его не увидело, уникальный индекс увидел.
func mapWriteError(err error, conflictMsg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrInvalidReference),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrInvalidRole),
		errors.Is(err, ErrInactive),
		errors.Is(err, ErrUnavailable):
		return err
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%w: %s", ErrConflict, conflictMsg)
	case errors.Is(err, repository.ErrInvalidReference):
		return fmt.Errorf("%w: родительская запись не существует", ErrInvalidReference)
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrSerialization):
		return fmt.Errorf("%w: конфликт сериализации транзакций", ErrUnavailable)
	case errors.Is(err, repository.ErrTimeout):
		return fmt.Errorf("%w: превышен лимит времени запроса", ErrUnavailable)
	default:
		return err
	}
}
