package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation: общий корень ошибок валидации входных данных.
	ErrValidation = errors.New("validation failed")
	// Ошибка отсутствующего идентификатора пользователя.
	ErrUserRequired = fmt.Errorf("%w: user_id is required", ErrValidation)
	// Ошибка отсутствующего идентификатора товара.
	ErrProductIDRequired = fmt.Errorf("%w: product_id is required", ErrValidation)
	// Ошибка отсутствующего идентификатора заказа.
	ErrOrderIDRequired = fmt.Errorf("%w: order_id is required", ErrValidation)
	// Ошибка при некорректном количестве товара (<= 0).
	ErrQuantityInvalid = fmt.Errorf("%w: quantity must be greater than zero", ErrValidation)
	// Ошибка, если цена позиции отрицательная.
	ErrPriceInvalid = fmt.Errorf("%w: price must be non-negative", ErrValidation)
	// Ошибка отрицательного остатка товара.
	ErrStockInvalid = fmt.Errorf("%w: stock must be non-negative", ErrValidation)
	// Ошибка неизвестного статуса заказа.
	ErrStatusInvalid = fmt.Errorf("%w: unknown order status", ErrValidation)
	// Ошибка неизвестного способа оплаты.
	ErrPaymentMethodInvalid = fmt.Errorf("%w: unknown payment method", ErrValidation)
	// ErrDuplicateDemand: один товар встречается в резерве дважды.
	ErrDuplicateDemand = fmt.Errorf("%w: duplicate product in reservation", ErrValidation)

	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrLinesRequired = errors.New("order must contain at least one line")
	// Ошибка отрицательной суммы заказа.
	ErrTotalNegative = errors.New("order total must be non-negative")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrTotalMismatch = errors.New("order total does not match lines sum")

	// ErrEmptyCart: оформление заказа из пустой корзины.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInsufficientStock: корень для InsufficientStockError.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrStockConflict: конкурентный резерв проиграл гонку за товар, операцию можно повторить целиком.
	ErrStockConflict = errors.New("stock reservation conflict")
	// ErrNotFound: корень ошибок отсутствующих сущностей.
	ErrNotFound = errors.New("not found")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = fmt.Errorf("order %w", ErrNotFound)
	// ErrProductNotFound возвращается, если товар отсутствует в каталоге.
	ErrProductNotFound = fmt.Errorf("product %w", ErrNotFound)
	// ErrPersistence: хранилище недоступно или транзакция прервана по инфраструктурной причине.
	ErrPersistence = errors.New("persistence failure")
	// ErrCommitUnknown: исход COMMIT неизвестен (обрыв соединения), повторять нельзя.
	ErrCommitUnknown = errors.New("commit outcome unknown")
	// ErrInvalidTransition: переход статуса запрещён политикой.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrSnapshotInvariant: позиция корзины ссылается на товар вне снимка каталога.
	ErrSnapshotInvariant = errors.New("price snapshot invariant violated")

	// ErrOutboxPublish: ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	// Ошибки idempotency-репозиториев.
	ErrIdempotencyKeyRequired         = fmt.Errorf("%w: idempotency key is required", ErrValidation)
	ErrIdempotencyRequestHashRequired = fmt.Errorf("%w: idempotency request hash is required", ErrValidation)
	ErrIdempotencyKeyAlreadyExists    = errors.New("idempotency key already exists")
	ErrIdempotencyHashMismatch        = errors.New("idempotency key reused with different request")
	ErrIdempotencyKeyNotFound         = errors.New("idempotency key not found")
)

// InsufficientStockError сообщает о первом товаре, которого не хватило при резерве.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// Is позволяет проверять ошибку через errors.Is(err, ErrInsufficientStock).
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// ErrorCode: стабильный код ошибки для клиентов API.
type ErrorCode string

const (
	CodeEmptyCart          ErrorCode = "EMPTY_CART"
	CodeInsufficientStock  ErrorCode = "INSUFFICIENT_STOCK"
	CodeStockConflict      ErrorCode = "STOCK_CONFLICT"
	CodeNotFound           ErrorCode = "NOT_FOUND"
	CodePersistenceFailure ErrorCode = "PERSISTENCE_FAILURE"
	CodeInvalidTransition  ErrorCode = "INVALID_TRANSITION"
	CodeInvalidArgument    ErrorCode = "INVALID_ARGUMENT"
	CodeInternal           ErrorCode = "INTERNAL"
)

// CodeOf сопоставляет ошибку стабильному коду. nil даёт пустую строку.
func CodeOf(err error) ErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyCart):
		return CodeEmptyCart
	case errors.Is(err, ErrInsufficientStock):
		return CodeInsufficientStock
	case errors.Is(err, ErrStockConflict):
		return CodeStockConflict
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrInvalidTransition):
		return CodeInvalidTransition
	case errors.Is(err, ErrValidation):
		return CodeInvalidArgument
	case errors.Is(err, ErrPersistence):
		return CodePersistenceFailure
	default:
		return CodeInternal
	}
}

// IsRetryable сообщает, можно ли безопасно повторить всю операцию оформления.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrCommitUnknown) {
		return false
	}
	return errors.Is(err, ErrStockConflict) || errors.Is(err, ErrPersistence)
}

// InsufficientStockProduct возвращает товар из InsufficientStockError, если он есть в цепочке.
func InsufficientStockProduct(err error) (string, bool) {
	var stockErr *InsufficientStockError
	if errors.As(err, &stockErr) {
		return stockErr.ProductID, true
	}
	return "", false
}

// IsIdempotencyConflict сообщает, что ключ идемпотентности уже занят.
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyAlreadyExists) || errors.Is(err, ErrIdempotencyHashMismatch)
}
