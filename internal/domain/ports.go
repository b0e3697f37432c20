package domain

import (
	"context"
	"time"
)

// TxRunner выполняет fn в одной транзакции хранилища.
// Если fn вернула ошибку, запаниковала или истёк контекст, все изменения откатываются.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx: набор репозиториев, привязанных к одной транзакции.
type Tx interface {
	Catalog() CatalogTx
	Cart() CartTx
	Orders() OrderTx
	Outbox() OutboxWriter
	Timeline() TimelineWriter
}

// CatalogTx: доступ к каталогу внутри транзакции.
type CatalogTx interface {
	// GetProduct читает товар без блокировки.
	GetProduct(ctx context.Context, id string) (Product, error)
	// LockProducts блокирует товары в порядке возрастания id до конца транзакции.
	// Отсутствующие товары в результат не попадают.
	LockProducts(ctx context.Context, ids []string) (map[string]Product, error)
	// DecrementStock уменьшает остаток, не опуская его ниже нуля.
	// При нехватке возвращает *InsufficientStockError.
	DecrementStock(ctx context.Context, cmd ReserveStock) (Product, error)
}

// CartTx: доступ к корзине пользователя внутри транзакции.
type CartTx interface {
	// Lines возвращает строки корзины в порядке добавления и блокирует корзину.
	Lines(ctx context.Context, userID string) ([]CartLine, error)
	// Clear удаляет все строки корзины. Повторный вызов для пустой корзины не ошибка.
	Clear(ctx context.Context, userID string) error
}

// OrderTx: запись заказов внутри транзакции.
type OrderTx interface {
	InsertOrder(ctx context.Context, order Order) error
	InsertLine(ctx context.Context, orderID string, line OrderLine) error
	// LockOrder читает заказ с позициями и блокирует его до конца транзакции.
	LockOrder(ctx context.Context, id string) (Order, error)
	UpdateStatus(ctx context.Context, id string, status OrderStatus, at time.Time) error
	// RecordPayment сохраняет запись об оплате. false означает, что запись уже была.
	RecordPayment(ctx context.Context, payment Payment) (bool, error)
}

// OutboxWriter пишет события в transactional outbox.
type OutboxWriter interface {
	Enqueue(ctx context.Context, msg OutboxMessage) error
}

// TimelineWriter пишет события таймлайна заказа.
type TimelineWriter interface {
	Append(ctx context.Context, event TimelineEvent) error
}

// OrderReader: чтение заказов вне транзакции. limit <= 0 означает «без ограничения».
// Списки отсортированы от новых заказов к старым.
type OrderReader interface {
	Get(ctx context.Context, id string) (Order, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]Order, error)
	ListAll(ctx context.Context, limit int) ([]Order, error)
	ListByStatus(ctx context.Context, status OrderStatus, limit int) ([]Order, error)
}

// CatalogAdmin: минимальный CRUD каталога для наполнения данными.
type CatalogAdmin interface {
	UpsertProduct(ctx context.Context, product Product) (Product, error)
	GetProduct(ctx context.Context, id string) (Product, error)
}

// CartWriter: наполнение корзины. Повторное добавление товара увеличивает количество.
type CartWriter interface {
	AddLine(ctx context.Context, userID string, line CartLine) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(ctx context.Context, event OutboxMessage) error
}

// OutboxRepository отдаёт воркеру накопленные события.
type OutboxRepository interface {
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(ctx context.Context, event TimelineEvent) error
	List(ctx context.Context, orderID string) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	MarkFailed(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	// Release удаляет незавершённый ключ, чтобы клиент мог повторить запрос с ним же.
	Release(ctx context.Context, key string) error
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}
