package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

const (
	sqlStateUniqueViolation     = "23505"
	sqlStateForeignKeyViolation = "23503"
	sqlStateLockNotAvailable    = "55P03"
	sqlStateSerialization       = "40001"
	sqlStateDeadlock            = "40P01"
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlStateUniqueViolation
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlStateForeignKeyViolation
	}
	return false
}

// classifyError переводит ошибку драйвера в таксономию домена.
// Ожидание блокировки, сериализация и deadlock дают ErrStockConflict;
// сетевые сбои, отмена контекста и классы 08/53/57/58 дают ErrPersistence.
// Прочие ответы сервера (синтаксис, данные) остаются внутренними ошибками.
func classifyError(op string, err error) error {
	if err == nil {
		return nil
	}
	if isDomainError(err) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == sqlStateLockNotAvailable,
			pgErr.Code == sqlStateSerialization,
			pgErr.Code == sqlStateDeadlock:
			return fmt.Errorf("%w: %s: %s (%s)", domain.ErrStockConflict, op, pgErr.Message, pgErr.Code)
		case hasSQLStateClass(pgErr.Code, "08", "53", "57", "58"):
			return fmt.Errorf("%w: %s: %s (%s)", domain.ErrPersistence, op, pgErr.Message, pgErr.Code)
		default:
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	return fmt.Errorf("%w: %s: %v", domain.ErrPersistence, op, err)
}

// classifyCommitError различает отказ сервера (исход известен: откат)
// и обрыв связи (исход неизвестен, повторять нельзя).
func classifyCommitError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifyError("commit", err)
	}
	return fmt.Errorf("%w: %w: commit: %v", domain.ErrPersistence, domain.ErrCommitUnknown, err)
}

func isDomainError(err error) bool {
	return errors.Is(err, domain.ErrStockConflict) ||
		errors.Is(err, domain.ErrPersistence) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrInsufficientStock) ||
		errors.Is(err, domain.ErrValidation)
}

func hasSQLStateClass(code string, classes ...string) bool {
	for _, class := range classes {
		if strings.HasPrefix(code, class) {
			return true
		}
	}
	return false
}
