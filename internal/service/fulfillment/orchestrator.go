package fulfillment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/metrics"
)

// DefaultTxTimeout ограничивает одну транзакцию оформления или смены статуса.
const DefaultTxTimeout = 10 * time.Second

// Option настраивает Orchestrator.
type Option func(*Orchestrator)

// WithLogger задаёт logger оркестратора.
func WithLogger(logger *log.Entry) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithMetrics включает метрики. Без опции метрики не пишутся.
func WithMetrics(m *metrics.FulfillmentMetrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithRetryConfig задаёт параметры повторов при конфликте блокировок.
func WithRetryConfig(cfg RetryConfig) Option {
	return func(o *Orchestrator) {
		o.retry = cfg
	}
}

// WithTransitionPolicy задаёт политику смены статусов.
func WithTransitionPolicy(policy domain.TransitionPolicy) Option {
	return func(o *Orchestrator) {
		o.policy = policy
	}
}

// WithTxTimeout задаёт таймаут одной транзакции.
func WithTxTimeout(timeout time.Duration) Option {
	return func(o *Orchestrator) {
		o.txTimeout = timeout
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithIDGenerator подменяет генератор идентификаторов заказов, позиций и событий.
func WithIDGenerator(newID func() string) Option {
	return func(o *Orchestrator) {
		o.newID = newID
	}
}

// Engine: операции движка, которые используют транспортные адаптеры.
type Engine interface {
	CreateOrderFromCart(ctx context.Context, userID string, method *domain.PaymentMethod) (domain.Order, error)
	UpdateOrderStatus(ctx context.Context, cmd domain.TransitionStatus) (domain.Order, error)
	GetOrderByID(ctx context.Context, orderID string) (domain.Order, error)
	GetUserOrders(ctx context.Context, userID string) ([]domain.Order, error)
	GetAllOrders(ctx context.Context) ([]domain.Order, error)
	GetOrdersByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error)
	GetOrderTimeline(ctx context.Context, orderID string) ([]domain.TimelineEvent, error)
}

var _ Engine = (*Orchestrator)(nil)

// Orchestrator является транзакционной точкой входа: корзина → резерв → цены → заказ → очистка корзины.
type Orchestrator struct {
	tx       domain.TxRunner
	orders   domain.OrderReader
	timeline domain.TimelineRepository

	guard   *InventoryGuard
	builder *OrderBuilder
	policy  domain.TransitionPolicy

	retry     RetryConfig
	txTimeout time.Duration
	now       func() time.Time
	newID     func() string

	logger  *log.Entry
	metrics *metrics.FulfillmentMetrics
}

// NewOrchestrator создаёт оркестратор поверх хранилища.
func NewOrchestrator(tx domain.TxRunner, orders domain.OrderReader, timeline domain.TimelineRepository, options ...Option) *Orchestrator {
	o := &Orchestrator{
		tx:        tx,
		orders:    orders,
		timeline:  timeline,
		guard:     NewInventoryGuard(),
		policy:    domain.NewTransitionPolicy(domain.TransitionModePermissive),
		retry:     DefaultRetryConfig(),
		txTimeout: DefaultTxTimeout,
	}
	for _, option := range options {
		option(o)
	}

	if o.logger == nil {
		o.logger = log.WithField("component", "fulfillment")
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.newID == nil {
		o.newID = uuid.NewString
	}
	if o.txTimeout <= 0 {
		o.txTimeout = DefaultTxTimeout
	}
	o.retry = o.retry.normalized()
	o.builder = NewOrderBuilder(o.newID, o.now)
	return o
}

// Policy возвращает действующую политику смены статусов.
func (o *Orchestrator) Policy() domain.TransitionPolicy {
	return o.policy
}

// CreateOrderFromCart оформляет заказ из корзины пользователя.
// Всё, что делается до фиксации, откатывается целиком при любой ошибке.
func (o *Orchestrator) CreateOrderFromCart(ctx context.Context, userID string, method *domain.PaymentMethod) (domain.Order, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Order{}, domain.ErrUserRequired
	}
	if method != nil && !method.Valid() {
		return domain.Order{}, domain.ErrPaymentMethodInvalid
	}

	start := time.Now()
	if o.metrics != nil {
		o.metrics.RecordCheckoutStarted()
	}
	defer func() {
		if o.metrics != nil {
			o.metrics.RecordCheckoutFinished()
			o.metrics.RecordDuration("checkout", time.Since(start))
		}
	}()

	logger := o.logger.WithField("user_id", userID)

	var order domain.Order
	err := o.executeWithRetry(ctx, "checkout", log.Fields{"user_id": userID}, func() error {
		return o.runInTx(ctx, func(txCtx context.Context, tx domain.Tx) error {
			created, err := o.checkout(txCtx, tx, userID, method)
			if err != nil {
				return err
			}
			order = created
			return nil
		})
	})
	if err != nil {
		code := domain.CodeOf(err)
		if o.metrics != nil {
			o.metrics.RecordCheckoutFailed(string(code))
		}
		entry := logger.WithError(err).WithField("error_code", code)
		if code == domain.CodeInternal || code == domain.CodePersistenceFailure {
			entry.Error("checkout failed")
		} else {
			entry.Info("checkout rejected")
		}
		return domain.Order{}, err
	}

	units := 0
	for _, line := range order.Lines {
		units += line.Quantity
	}
	if o.metrics != nil {
		o.metrics.RecordCheckoutCompleted(units)
		o.metrics.RecordOutboxEvent()
		o.metrics.RecordTimelineEvent()
	}
	logger.WithFields(log.Fields{
		"order_id": order.ID,
		"total":    order.Total.StringFixed(2),
		"lines":    len(order.Lines),
	}).Info("order created from cart")
	return order, nil
}

func (o *Orchestrator) checkout(ctx context.Context, tx domain.Tx, userID string, method *domain.PaymentMethod) (domain.Order, error) {
	lines, err := tx.Cart().Lines(ctx, userID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("load cart: %w", err)
	}
	if len(lines) == 0 {
		return domain.Order{}, domain.ErrEmptyCart
	}
	lines = MergeCartLines(lines)

	products, err := o.guard.Reserve(ctx, tx.Catalog(), demandsFor(lines))
	if err != nil {
		return domain.Order{}, err
	}

	snapshots, err := SnapshotPrices(lines, products)
	if err != nil {
		return domain.Order{}, err
	}

	order, err := o.builder.Build(ctx, tx.Orders(), userID, method, snapshots)
	if err != nil {
		return domain.Order{}, err
	}

	if err := tx.Cart().Clear(ctx, userID); err != nil {
		return domain.Order{}, fmt.Errorf("clear cart: %w", err)
	}

	if err := o.enqueue(ctx, tx, order.ID, domain.EventOrderCreated, orderCreatedEvent(order, snapshots)); err != nil {
		return domain.Order{}, err
	}
	if err := tx.Timeline().Append(ctx, domain.TimelineEvent{
		OrderID:  order.ID,
		Type:     domain.TimelineOrderCreated,
		Reason:   fmt.Sprintf("%d line(s), total %s", len(order.Lines), order.Total.StringFixed(2)),
		Occurred: order.CreatedAt,
	}); err != nil {
		return domain.Order{}, fmt.Errorf("append timeline: %w", err)
	}
	return order, nil
}

// UpdateOrderStatus переводит заказ в новый статус по политике переходов.
// Переход в текущий статус ничего не меняет. Первый переход в PAID создаёт запись об оплате.
func (o *Orchestrator) UpdateOrderStatus(ctx context.Context, cmd domain.TransitionStatus) (domain.Order, error) {
	cmd.OrderID = strings.TrimSpace(cmd.OrderID)
	if err := cmd.Validate(); err != nil {
		return domain.Order{}, err
	}

	start := time.Now()
	defer func() {
		if o.metrics != nil {
			o.metrics.RecordDuration("transition", time.Since(start))
		}
	}()

	var (
		order   domain.Order
		from    domain.OrderStatus
		changed bool
		events  int
	)
	err := o.executeWithRetry(ctx, "transition", log.Fields{"order_id": cmd.OrderID}, func() error {
		return o.runInTx(ctx, func(txCtx context.Context, tx domain.Tx) error {
			current, err := tx.Orders().LockOrder(txCtx, cmd.OrderID)
			if err != nil {
				return err
			}
			from = current.Status
			if current.Status == cmd.NewStatus {
				order, changed = current, false
				return nil
			}

			updated, written, err := o.transition(txCtx, tx, current, cmd.NewStatus)
			if err != nil {
				return err
			}
			order, changed, events = updated, true, written
			return nil
		})
	})
	if err != nil {
		o.logger.WithError(err).WithFields(log.Fields{
			"order_id":   cmd.OrderID,
			"to":         cmd.NewStatus,
			"error_code": domain.CodeOf(err),
		}).Warn("status transition failed")
		return domain.Order{}, err
	}

	if !changed {
		return order, nil
	}
	if o.metrics != nil {
		o.metrics.RecordTransition(string(from), string(order.Status))
		o.metrics.RecordOutboxEvent()
		for i := 0; i < events; i++ {
			o.metrics.RecordTimelineEvent()
		}
	}
	o.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"from":     from,
		"to":       order.Status,
	}).Info("order status changed")
	return order, nil
}

// transition пишет смену статуса, событие в outbox и таймлайн. Возвращает число событий таймлайна.
func (o *Orchestrator) transition(ctx context.Context, tx domain.Tx, order domain.Order, to domain.OrderStatus) (domain.Order, int, error) {
	from := order.Status
	if err := o.policy.Check(from, to); err != nil {
		return domain.Order{}, 0, err
	}

	now := o.now().UTC()
	if err := tx.Orders().UpdateStatus(ctx, order.ID, to, now); err != nil {
		return domain.Order{}, 0, fmt.Errorf("update status: %w", err)
	}
	order.Status = to
	order.UpdatedAt = now

	events := []domain.TimelineEvent{{
		OrderID:  order.ID,
		Type:     domain.TimelineStatusChanged,
		Reason:   fmt.Sprintf("%s -> %s", from, to),
		Occurred: now,
	}}

	if to == domain.OrderStatusPaid && order.Payment == nil {
		payment := domain.NewConfirmedPayment(o.newID(), order, now)
		recorded, err := tx.Orders().RecordPayment(ctx, payment)
		if err != nil {
			return domain.Order{}, 0, fmt.Errorf("record payment: %w", err)
		}
		if recorded {
			order.Payment = &payment
			events = append(events, domain.TimelineEvent{
				OrderID:  order.ID,
				Type:     domain.TimelinePaymentNoted,
				Reason:   "amount " + payment.Amount.StringFixed(2),
				Occurred: now,
			})
		}
	}

	if err := o.enqueue(ctx, tx, order.ID, domain.EventOrderStatusChanged, domain.OrderStatusChangedEvent{
		OrderID:   order.ID,
		UserID:    order.UserID,
		From:      from,
		To:        to,
		Total:     order.Total,
		ChangedAt: now,
	}); err != nil {
		return domain.Order{}, 0, err
	}
	for _, event := range events {
		if err := tx.Timeline().Append(ctx, event); err != nil {
			return domain.Order{}, 0, fmt.Errorf("append timeline: %w", err)
		}
	}
	return order, len(events), nil
}

// GetOrderByID возвращает заказ.
func (o *Orchestrator) GetOrderByID(ctx context.Context, orderID string) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, domain.ErrOrderIDRequired
	}
	return o.orders.Get(ctx, orderID)
}

// GetUserOrders возвращает заказы пользователя, новые первыми.
func (o *Orchestrator) GetUserOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrUserRequired
	}
	return o.orders.ListByUser(ctx, userID, 0)
}

// GetAllOrders возвращает все заказы, новые первыми.
func (o *Orchestrator) GetAllOrders(ctx context.Context) ([]domain.Order, error) {
	return o.orders.ListAll(ctx, 0)
}

// GetOrdersByStatus возвращает заказы в статусе status, новые первыми.
func (o *Orchestrator) GetOrdersByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	if !status.Valid() {
		return nil, domain.ErrStatusInvalid
	}
	return o.orders.ListByStatus(ctx, status, 0)
}

// GetOrderTimeline возвращает события жизненного цикла заказа.
func (o *Orchestrator) GetOrderTimeline(ctx context.Context, orderID string) ([]domain.TimelineEvent, error) {
	if _, err := o.GetOrderByID(ctx, orderID); err != nil {
		return nil, err
	}
	if o.timeline == nil {
		return nil, nil
	}
	return o.timeline.List(ctx, strings.TrimSpace(orderID))
}

// runInTx отвязывает транзакцию от отмены вызывающего: начатая транзакция
// либо фиксируется, либо откатывается целиком в пределах txTimeout.
func (o *Orchestrator) runInTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	txCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.txTimeout)
	defer cancel()
	return o.tx.RunInTx(txCtx, fn)
}

func (o *Orchestrator) enqueue(ctx context.Context, tx domain.Tx, orderID, eventType string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}
	if err := tx.Outbox().Enqueue(ctx, domain.OutboxMessage{
		ID:            o.newID(),
		AggregateType: domain.AggregateTypeOrder,
		AggregateID:   orderID,
		EventType:     eventType,
		Payload:       payload,
	}); err != nil {
		return fmt.Errorf("enqueue %s: %w", eventType, err)
	}
	return nil
}

func orderCreatedEvent(order domain.Order, snapshots []PriceSnapshot) domain.OrderCreatedEvent {
	lines := make([]domain.OrderCreatedLine, len(snapshots))
	for i, snapshot := range snapshots {
		lines[i] = domain.OrderCreatedLine{
			ProductID:   snapshot.ProductID,
			ProductName: snapshot.ProductName,
			Quantity:    snapshot.Quantity,
			UnitPrice:   snapshot.UnitPrice,
			StockAfter:  snapshot.StockAfter,
		}
	}
	return domain.OrderCreatedEvent{
		OrderID:       order.ID,
		UserID:        order.UserID,
		Status:        order.Status,
		PaymentMethod: order.PaymentMethod,
		Total:         order.Total,
		Lines:         lines,
		CreatedAt:     order.CreatedAt,
	}
}
