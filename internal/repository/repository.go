// Пакет repository — слой доступа к данным PostgreSQL.
// Все запросы — чистый SQL через pgx, без ORM. Мутации проходят через
// TxRunner.RunSerializable: выделенное соединение, уровень изоляции
// SERIALIZABLE, откат при любой ошибке и трансляция кодов PostgreSQL
// в доменные ошибки.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — конфликт уникальности (дублирующийся ресурс).
	ErrConflict = errors.New("конфликт — запись уже существует")
	// ErrInvalidReference — ссылка на несуществующую запись (нарушение FK).
	ErrInvalidReference = errors.New("ссылка на несуществующую запись")
	// ErrSerialization — конфликт сериализации конкурентных транзакций,
	// операцию можно повторить.
	ErrSerialization = errors.New("конфликт сериализации транзакций")
	// ErrTimeout — превышено время выполнения запроса (statement_timeout
	// или дедлайн контекста), операцию можно повторить.
	ErrTimeout = errors.New("превышено время выполнения запроса")
)

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx, что позволяет
// использовать репозитории как внутри, так и вне транзакций.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxRunner выполняет мутации по протоколу транзакционной записи.
// Создаётся на пул раздела данных: основной или выделенной БД арендатора.
type TxRunner struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewTxRunner создаёт TxRunner для пула раздела данных.
func NewTxRunner(pool *pgxpool.Pool, logger *slog.Logger) *TxRunner {
	return &TxRunner{pool: pool, logger: logger}
}

// RunSerializable выполняет fn в транзакции SERIALIZABLE на выделенном
// соединении. При ошибке fn или фиксации транзакция откатывается; ошибка
// отката только логируется и никогда не затемняет исходную. Соединение
// возвращается в пул в любом исходе. Ошибка возвращается после
// трансляции кодов PostgreSQL в доменные ошибки.
func (r *TxRunner) RunSerializable(ctx context.Context, fn func(tx pgx.Tx) error) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return translateDBError(fmt.Errorf("ошибка захвата соединения: %w", err))
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return translateDBError(fmt.Errorf("ошибка начала транзакции: %w", err))
	}

	if err := fn(tx); err != nil {
		r.rollback(ctx, tx)
		return translateDBError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		r.rollback(ctx, tx)
		return translateDBError(fmt.Errorf("ошибка фиксации транзакции: %w", err))
	}
	return nil
}

// rollback откатывает транзакцию; ошибка отката логируется и гасится.
func (r *TxRunner) rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		r.logger.Error("Ошибка отката транзакции", slog.String("error", err.Error()))
	}
}

// translateDBError транслирует ошибки PostgreSQL в доменные ошибки.
// Коды SQLSTATE не выходят за пределы слоя репозиториев. Ошибки,
// уже являющиеся доменными (ErrNotFound из предпроверки), проходят
// без изменений.
func translateDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return fmt.Errorf("%w (%s)", ErrConflict, pgErr.ConstraintName)
		case pgerrcode.ForeignKeyViolation:
			return fmt.Errorf("%w (%s)", ErrInvalidReference, pgErr.ConstraintName)
		case pgerrcode.SerializationFailure:
			return fmt.Errorf("%w: %v", ErrSerialization, pgErr.Message)
		case pgerrcode.QueryCanceled:
			return fmt.Errorf("%w: %v", ErrTimeout, pgErr.Message)
		}
	}
	return err
}
