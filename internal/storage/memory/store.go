package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// DefaultLockTimeout ограничивает ожидание блокировки ключа.
const DefaultLockTimeout = 2 * time.Second

type orderRecord struct {
	order domain.Order
	seq   int64
}

// Store: in-memory хранилище каталога, корзин и заказов для разработки и тестов.
// Конкурентный доступ к товарам сериализуется таблицей блокировок по ключам,
// изменения транзакции применяются только при фиксации.
type Store struct {
	mu       sync.RWMutex
	products map[string]domain.Product
	carts    map[string][]domain.CartLine
	orders   map[string]*orderRecord
	seq      int64

	locks    *lockTable
	outbox   *OutboxRepository
	timeline *TimelineRepository
}

// StoreOption настраивает Store.
type StoreOption func(*Store)

// WithLockTimeout задаёт предельное время ожидания блокировки.
func WithLockTimeout(timeout time.Duration) StoreOption {
	return func(s *Store) {
		if timeout > 0 {
			s.locks.timeout = timeout
		}
	}
}

// NewStore создаёт пустое хранилище.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		products: make(map[string]domain.Product),
		carts:    make(map[string][]domain.CartLine),
		orders:   make(map[string]*orderRecord),
		locks:    newLockTable(DefaultLockTimeout),
		outbox:   NewOutboxRepository(),
		timeline: NewTimelineRepository(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Outbox возвращает outbox, в который пишут транзакции этого хранилища.
func (s *Store) Outbox() *OutboxRepository { return s.outbox }

// Timeline возвращает таймлайн заказов этого хранилища.
func (s *Store) Timeline() *TimelineRepository { return s.timeline }

// Ping всегда успешен: хранилище живёт в памяти процесса.
func (s *Store) Ping(context.Context) error { return nil }

// RunInTx выполняет fn в транзакции. Блокировки снимаются на любом пути выхода.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	tx := newTx(s)
	defer func() {
		if p := recover(); p != nil {
			tx.releaseAll()
			panic(p)
		}
		tx.releaseAll()
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: transaction aborted: %v", domain.ErrPersistence, err)
	}
	tx.commit()
	return nil
}

// UpsertProduct создаёт товар или обновляет его цену, название и остаток.
func (s *Store) UpsertProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	product.ID = strings.TrimSpace(product.ID)
	if err := product.Validate(); err != nil {
		return domain.Product{}, err
	}

	key := productKey(product.ID)
	if err := s.locks.acquire(ctx, key); err != nil {
		return domain.Product{}, err
	}
	defer s.locks.release(key)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[product.ID] = product
	return product, nil
}

// GetProduct возвращает зафиксированное состояние товара.
func (s *Store) GetProduct(_ context.Context, id string) (domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

// AddLine добавляет товар в корзину; повторное добавление суммирует количество.
func (s *Store) AddLine(ctx context.Context, userID string, line domain.CartLine) error {
	if strings.TrimSpace(userID) == "" {
		return domain.ErrUserRequired
	}
	if err := line.Validate(); err != nil {
		return err
	}

	key := cartKey(userID)
	if err := s.locks.acquire(ctx, key); err != nil {
		return err
	}
	defer s.locks.release(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[line.ProductID]; !ok {
		return domain.ErrProductNotFound
	}
	lines := s.carts[userID]
	for i := range lines {
		if lines[i].ProductID == line.ProductID {
			lines[i].Quantity += line.Quantity
			return nil
		}
	}
	s.carts[userID] = append(lines, line)
	return nil
}

// CartLines возвращает копию корзины пользователя.
func (s *Store) CartLines(_ context.Context, userID string) ([]domain.CartLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.CartLine(nil), s.carts[userID]...), nil
}

// Get возвращает заказ с позициями и записью об оплате.
func (s *Store) Get(_ context.Context, id string) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(rec.order), nil
}

// ListByUser возвращает заказы пользователя, новые первыми.
func (s *Store) ListByUser(_ context.Context, userID string, limit int) ([]domain.Order, error) {
	return s.list(limit, func(o domain.Order) bool { return o.UserID == userID }), nil
}

// ListAll возвращает все заказы, новые первыми.
func (s *Store) ListAll(_ context.Context, limit int) ([]domain.Order, error) {
	return s.list(limit, func(domain.Order) bool { return true }), nil
}

// ListByStatus возвращает заказы в указанном статусе, новые первыми.
func (s *Store) ListByStatus(_ context.Context, status domain.OrderStatus, limit int) ([]domain.Order, error) {
	return s.list(limit, func(o domain.Order) bool { return o.Status == status }), nil
}

func (s *Store) list(limit int, match func(domain.Order) bool) []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*orderRecord, 0, len(s.orders))
	for _, rec := range s.orders {
		if match(rec.order) {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.order.CreatedAt.Equal(b.order.CreatedAt) {
			return a.order.CreatedAt.After(b.order.CreatedAt)
		}
		return a.seq > b.seq
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	result := make([]domain.Order, 0, len(records))
	for _, rec := range records {
		result = append(result, cloneOrder(rec.order))
	}
	return result
}

func cloneOrder(src domain.Order) domain.Order {
	dst := src
	dst.Lines = append([]domain.OrderLine(nil), src.Lines...)
	if src.Payment != nil {
		payment := *src.Payment
		dst.Payment = &payment
	}
	return dst
}

var (
	_ domain.TxRunner     = (*Store)(nil)
	_ domain.OrderReader  = (*Store)(nil)
	_ domain.CatalogAdmin = (*Store)(nil)
	_ domain.CartWriter   = (*Store)(nil)
)
