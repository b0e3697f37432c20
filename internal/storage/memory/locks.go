package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// lockTable: таблица блокировок по ключам с ограниченным временем ожидания.
// Ключи разных товаров не блокируют друг друга.
type lockTable struct {
	mu      sync.Mutex
	slots   map[string]chan struct{}
	timeout time.Duration
}

func newLockTable(timeout time.Duration) *lockTable {
	return &lockTable{slots: make(map[string]chan struct{}), timeout: timeout}
}

func (t *lockTable) slot(key string) chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch, ok := t.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		t.slots[key] = ch
	}
	return ch
}

// acquire ждёт ключ не дольше timeout. Истечение ожидания: конфликт резерва.
func (t *lockTable) acquire(ctx context.Context, key string) error {
	ch := t.slot(key)
	select {
	case ch <- struct{}{}:
		return nil
	default:
	}

	timer := time.NewTimer(t.timeout)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: lock %s not acquired within %s", domain.ErrStockConflict, key, t.timeout)
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", domain.ErrPersistence, ctx.Err())
	}
}

func (t *lockTable) release(key string) {
	<-t.slot(key)
}

func productKey(id string) string {
	return "product:" + id
}

func cartKey(userID string) string {
	return "cart:" + userID
}

func orderKey(id string) string {
	return "order:" + id
}
