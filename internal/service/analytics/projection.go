// Package analytics строит read-side проекцию по событиям заказов из outbox.
// Проекция ничего не пишет в заказы: она только считает.
package analytics

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/IBM/sarama"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/fulfillment/internal/metrics"
)

const (
	// DefaultLowStockThreshold: остаток, ниже которого товар считается заканчивающимся.
	DefaultLowStockThreshold = 10
	defaultDedupWindow       = 100_000
)

// Результаты обработки события для метрик.
const (
	resultApplied   = "applied"
	resultDuplicate = "duplicate"
	resultIgnored   = "ignored"
)

// Option настраивает Projection.
type Option func(*Projection)

// WithLogger задаёт логгер проекции.
func WithLogger(logger *log.Entry) Option {
	return func(p *Projection) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics включает экспорт проекции в Prometheus.
func WithMetrics(m *metrics.AnalyticsMetrics) Option {
	return func(p *Projection) { p.metrics = m }
}

// WithLowStockThreshold задаёт порог заканчивающегося товара.
func WithLowStockThreshold(threshold int) Option {
	return func(p *Projection) {
		if threshold > 0 {
			p.lowStockThreshold = threshold
		}
	}
}

// WithDedupWindow задаёт число последних id событий, по которым отсекаются повторы.
func WithDedupWindow(size int) Option {
	return func(p *Projection) {
		if size > 0 {
			p.dedupWindow = size
		}
	}
}

type orderState struct {
	status domain.OrderStatus
	total  decimal.Decimal
}

// Snapshot: состояние проекции на момент вызова.
type Snapshot struct {
	OrdersByStatus map[domain.OrderStatus]int
	Revenue        decimal.Decimal
	// LowStock: товары с остатком ниже порога, по возрастанию остатка.
	LowStock []ProductStock
}

// PendingOrders возвращает число заказов, ожидающих оплаты.
func (s Snapshot) PendingOrders() int {
	return s.OrdersByStatus[domain.OrderStatusPending]
}

// ProductStock: остаток товара после последнего резерва.
type ProductStock struct {
	ProductID string
	Name      string
	Stock     int
}

// Projection агрегирует события OrderCreated и OrderStatusChanged.
// Доставка at-least-once, поэтому события дедуплицируются по id конверта.
type Projection struct {
	mu sync.Mutex

	seen      map[string]struct{}
	seenOrder []string

	orders   map[string]orderState
	byStatus map[domain.OrderStatus]int
	revenue  decimal.Decimal
	stock    map[string]ProductStock

	lowStockThreshold int
	dedupWindow       int
	metrics           *metrics.AnalyticsMetrics
	logger            *log.Entry
}

// NewProjection создаёт пустую проекцию.
func NewProjection(options ...Option) *Projection {
	p := &Projection{
		seen:              make(map[string]struct{}),
		orders:            make(map[string]orderState),
		byStatus:          make(map[domain.OrderStatus]int),
		stock:             make(map[string]ProductStock),
		lowStockThreshold: DefaultLowStockThreshold,
		dedupWindow:       defaultDedupWindow,
		logger:            log.WithField("component", "analytics-projection"),
	}
	for _, option := range options {
		option(p)
	}
	return p
}

// Handle: kafka.MessageHandler для consumer group.
func (p *Projection) Handle(_ context.Context, message *sarama.ConsumerMessage) error {
	envelope, err := kafka.ParseEnvelope(message)
	if err != nil {
		return err
	}
	_, err = p.Apply(envelope)
	return err
}

// Apply применяет событие. Возвращает false для повторов и неизвестных типов событий.
func (p *Projection) Apply(envelope kafka.Envelope) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, dup := p.seen[envelope.ID]; dup {
		p.recordEvent(envelope.EventType, resultDuplicate)
		return false, nil
	}

	switch envelope.EventType {
	case domain.EventOrderCreated:
		event, err := envelope.OrderCreated()
		if err != nil {
			return false, err
		}
		p.applyCreated(event)
	case domain.EventOrderStatusChanged:
		event, err := envelope.OrderStatusChanged()
		if err != nil {
			return false, err
		}
		p.applyStatusChanged(event)
	default:
		p.logger.WithField("event_type", envelope.EventType).Debug("ignoring unknown event type")
		p.recordEvent(envelope.EventType, resultIgnored)
		return false, nil
	}

	p.remember(envelope.ID)
	p.recordEvent(envelope.EventType, resultApplied)
	return true, nil
}

// Snapshot возвращает копию текущего состояния.
func (p *Projection) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	byStatus := make(map[domain.OrderStatus]int, len(p.byStatus))
	for status, count := range p.byStatus {
		byStatus[status] = count
	}

	lowStock := make([]ProductStock, 0)
	for _, product := range p.stock {
		if product.Stock < p.lowStockThreshold {
			lowStock = append(lowStock, product)
		}
	}
	sort.Slice(lowStock, func(i, j int) bool {
		if lowStock[i].Stock != lowStock[j].Stock {
			return lowStock[i].Stock < lowStock[j].Stock
		}
		return lowStock[i].ProductID < lowStock[j].ProductID
	})

	return Snapshot{
		OrdersByStatus: byStatus,
		Revenue:        p.revenue,
		LowStock:       lowStock,
	}
}

func (p *Projection) applyCreated(event domain.OrderCreatedEvent) {
	if _, known := p.orders[event.OrderID]; known {
		// Тот же заказ под другим id конверта: считаем один раз.
		return
	}

	status := event.Status
	if status == "" {
		status = domain.OrderStatusPending
	}
	p.orders[event.OrderID] = orderState{status: status, total: event.Total}
	p.setStatusCount(status, p.byStatus[status]+1)
	p.revenue = p.revenue.Add(event.Total)
	if p.metrics != nil {
		p.metrics.SetRevenue(p.revenue.InexactFloat64())
	}

	for _, line := range event.Lines {
		p.setStock(ProductStock{ProductID: line.ProductID, Name: line.ProductName, Stock: line.StockAfter})
	}
}

func (p *Projection) applyStatusChanged(event domain.OrderStatusChangedEvent) {
	state, known := p.orders[event.OrderID]
	if !known {
		// OrderCreated ещё не пришёл или был до старта проекции.
		state = orderState{status: event.From, total: event.Total}
		p.revenue = p.revenue.Add(event.Total)
		if p.metrics != nil {
			p.metrics.SetRevenue(p.revenue.InexactFloat64())
		}
	} else if state.status != event.From {
		p.logger.WithFields(log.Fields{
			"order_id": event.OrderID,
			"known":    state.status,
			"from":     event.From,
		}).Warn("status change does not match projected status")
	}

	if known && p.byStatus[state.status] > 0 {
		p.setStatusCount(state.status, p.byStatus[state.status]-1)
	}
	state.status = event.To
	p.orders[event.OrderID] = state
	p.setStatusCount(event.To, p.byStatus[event.To]+1)
}

func (p *Projection) setStatusCount(status domain.OrderStatus, count int) {
	p.byStatus[status] = count
	if p.metrics != nil {
		p.metrics.SetOrders(string(status), count)
	}
}

func (p *Projection) setStock(product ProductStock) {
	p.stock[product.ProductID] = product
	if p.metrics == nil {
		return
	}
	if product.Stock < p.lowStockThreshold {
		p.metrics.SetLowStock(product.ProductID, product.Stock)
	} else {
		p.metrics.ClearLowStock(product.ProductID)
	}
}

// remember запоминает id события, вытесняя самые старые за пределами окна.
func (p *Projection) remember(id string) {
	p.seen[id] = struct{}{}
	p.seenOrder = append(p.seenOrder, id)
	if len(p.seenOrder) > p.dedupWindow {
		evicted := p.seenOrder[0]
		p.seenOrder = p.seenOrder[1:]
		delete(p.seen, evicted)
	}
}

func (p *Projection) recordEvent(eventType, result string) {
	if p.metrics != nil {
		p.metrics.RecordEvent(eventType, result)
	}
}

// String: краткое описание состояния для логов.
func (s Snapshot) String() string {
	return fmt.Sprintf("pending=%d revenue=%s low_stock=%d", s.PendingOrders(), s.Revenue.StringFixed(2), len(s.LowStock))
}
