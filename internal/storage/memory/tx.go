package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

var errOrderExists = errors.New("order already exists")

type statusChange struct {
	status domain.OrderStatus
	at     time.Time
}

// memTx копит изменения и применяет их к Store при фиксации.
// Ключи, которые транзакция изменяет, удерживаются ею до конца, поэтому
// зафиксированное состояние этих ключей можно читать без гонок.
type memTx struct {
	store *Store
	held  map[string]struct{}
	order []string

	stock     map[string]domain.Product
	cleared   map[string]struct{}
	newOrders map[string]*domain.Order
	newSeq    []string
	statuses  map[string]statusChange
	payments  map[string]domain.Payment
	messages  []domain.OutboxMessage
	events    []domain.TimelineEvent
}

func newTx(s *Store) *memTx {
	return &memTx{
		store:     s,
		held:      make(map[string]struct{}),
		stock:     make(map[string]domain.Product),
		cleared:   make(map[string]struct{}),
		newOrders: make(map[string]*domain.Order),
		statuses:  make(map[string]statusChange),
		payments:  make(map[string]domain.Payment),
	}
}

func (t *memTx) lock(ctx context.Context, key string) error {
	if _, ok := t.held[key]; ok {
		return nil
	}
	if err := t.store.locks.acquire(ctx, key); err != nil {
		return err
	}
	t.held[key] = struct{}{}
	t.order = append(t.order, key)
	return nil
}

func (t *memTx) releaseAll() {
	for i := len(t.order) - 1; i >= 0; i-- {
		t.store.locks.release(t.order[i])
	}
	t.order = nil
	t.held = make(map[string]struct{})
}

func (t *memTx) commit() {
	s := t.store
	s.mu.Lock()
	for id, product := range t.stock {
		s.products[id] = product
	}
	for userID := range t.cleared {
		delete(s.carts, userID)
	}
	for _, id := range t.newSeq {
		s.seq++
		s.orders[id] = &orderRecord{order: cloneOrder(*t.newOrders[id]), seq: s.seq}
	}
	for id, change := range t.statuses {
		if rec, ok := s.orders[id]; ok {
			rec.order.Status = change.status
			rec.order.UpdatedAt = change.at
		}
	}
	for id, payment := range t.payments {
		if rec, ok := s.orders[id]; ok && rec.order.Payment == nil {
			p := payment
			rec.order.Payment = &p
		}
	}
	s.mu.Unlock()

	for _, msg := range t.messages {
		s.outbox.add(msg)
	}
	for _, event := range t.events {
		s.timeline.append(event)
	}
}

func (t *memTx) Catalog() domain.CatalogTx {
	return txCatalog{t}
}

func (t *memTx) Cart() domain.CartTx {
	return txCart{t}
}

func (t *memTx) Orders() domain.OrderTx {
	return txOrders{t}
}

func (t *memTx) Outbox() domain.OutboxWriter {
	return txOutbox{t}
}

func (t *memTx) Timeline() domain.TimelineWriter {
	return txTimeline{t}
}

func (t *memTx) product(id string) (domain.Product, bool) {
	if product, ok := t.stock[id]; ok {
		return product, true
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	product, ok := t.store.products[id]
	return product, ok
}

type txCatalog struct{ t *memTx }

func (c txCatalog) GetProduct(_ context.Context, id string) (domain.Product, error) {
	product, ok := c.t.product(id)
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

func (c txCatalog) LockProducts(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	result := make(map[string]domain.Product, len(sorted))
	for _, id := range sorted {
		if err := c.t.lock(ctx, productKey(id)); err != nil {
			return nil, err
		}
		if product, ok := c.t.product(id); ok {
			result[id] = product
		}
	}
	return result, nil
}

func (c txCatalog) DecrementStock(ctx context.Context, cmd domain.ReserveStock) (domain.Product, error) {
	if err := cmd.Validate(); err != nil {
		return domain.Product{}, err
	}
	if err := c.t.lock(ctx, productKey(cmd.ProductID)); err != nil {
		return domain.Product{}, err
	}
	product, ok := c.t.product(cmd.ProductID)
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	if product.Stock < cmd.Amount {
		return domain.Product{}, &domain.InsufficientStockError{
			ProductID: cmd.ProductID,
			Requested: cmd.Amount,
			Available: product.Stock,
		}
	}
	product.Stock -= cmd.Amount
	c.t.stock[cmd.ProductID] = product
	return product, nil
}

type txCart struct{ t *memTx }

func (c txCart) Lines(ctx context.Context, userID string) ([]domain.CartLine, error) {
	if err := c.t.lock(ctx, cartKey(userID)); err != nil {
		return nil, err
	}
	if _, ok := c.t.cleared[userID]; ok {
		return nil, nil
	}
	return c.t.store.CartLines(ctx, userID)
}

func (c txCart) Clear(ctx context.Context, userID string) error {
	if err := c.t.lock(ctx, cartKey(userID)); err != nil {
		return err
	}
	c.t.cleared[userID] = struct{}{}
	return nil
}

type txOrders struct{ t *memTx }

func (o txOrders) InsertOrder(ctx context.Context, order domain.Order) error {
	if err := o.t.lock(ctx, orderKey(order.ID)); err != nil {
		return err
	}
	if _, ok := o.t.newOrders[order.ID]; ok {
		return fmt.Errorf("%w: %s", errOrderExists, order.ID)
	}
	if _, err := o.t.store.Get(ctx, order.ID); err == nil {
		return fmt.Errorf("%w: %s", errOrderExists, order.ID)
	}
	staged := cloneOrder(order)
	staged.Lines = nil
	staged.Payment = nil
	o.t.newOrders[order.ID] = &staged
	o.t.newSeq = append(o.t.newSeq, order.ID)
	return nil
}

func (o txOrders) InsertLine(_ context.Context, orderID string, line domain.OrderLine) error {
	staged, ok := o.t.newOrders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	staged.Lines = append(staged.Lines, line)
	return nil
}

func (o txOrders) LockOrder(ctx context.Context, id string) (domain.Order, error) {
	if err := o.t.lock(ctx, orderKey(id)); err != nil {
		return domain.Order{}, err
	}

	var order domain.Order
	if staged, ok := o.t.newOrders[id]; ok {
		order = cloneOrder(*staged)
	} else {
		committed, err := o.t.store.Get(ctx, id)
		if err != nil {
			return domain.Order{}, err
		}
		order = committed
	}
	if change, ok := o.t.statuses[id]; ok {
		order.Status = change.status
		order.UpdatedAt = change.at
	}
	if payment, ok := o.t.payments[id]; ok && order.Payment == nil {
		order.Payment = &payment
	}
	return order, nil
}

func (o txOrders) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, at time.Time) error {
	if _, err := o.LockOrder(ctx, id); err != nil {
		return err
	}
	if staged, ok := o.t.newOrders[id]; ok {
		staged.Status = status
		staged.UpdatedAt = at
		return nil
	}
	o.t.statuses[id] = statusChange{status: status, at: at}
	return nil
}

func (o txOrders) RecordPayment(ctx context.Context, payment domain.Payment) (bool, error) {
	order, err := o.LockOrder(ctx, payment.OrderID)
	if err != nil {
		return false, err
	}
	if order.Payment != nil {
		return false, nil
	}
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if staged, ok := o.t.newOrders[payment.OrderID]; ok {
		staged.Payment = &payment
		return true, nil
	}
	o.t.payments[payment.OrderID] = payment
	return true, nil
}

type txOutbox struct{ t *memTx }

func (o txOutbox) Enqueue(_ context.Context, msg domain.OutboxMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.Payload = append([]byte(nil), msg.Payload...)
	o.t.messages = append(o.t.messages, msg)
	return nil
}

type txTimeline struct{ t *memTx }

func (tl txTimeline) Append(_ context.Context, event domain.TimelineEvent) error {
	tl.t.events = append(tl.t.events, event)
	return nil
}

var _ domain.Tx = (*memTx)(nil)
