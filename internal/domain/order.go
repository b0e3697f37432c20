package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending: заказ создан из корзины, оплата ещё не подтверждена.
	OrderStatusPending OrderStatus = "PENDING"
	// OrderStatusPaid: оплата подтверждена.
	OrderStatusPaid OrderStatus = "PAID"
	// OrderStatusShipped: заказ передан в доставку.
	OrderStatusShipped OrderStatus = "SHIPPED"
	// OrderStatusDelivered: заказ получен покупателем.
	OrderStatusDelivered OrderStatus = "DELIVERED"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered:
		return true
	default:
		return false
	}
}

// ParseOrderStatus разбирает статус без учёта регистра.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	status := OrderStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", ErrStatusInvalid
	}
	return status, nil
}

// PaymentMethod: заявленный при оформлении способ оплаты.
type PaymentMethod string

const (
	PaymentMethodCard PaymentMethod = "CARD"
	PaymentMethodCash PaymentMethod = "CASH"
)

// Valid проверяет, что способ оплаты поддерживается.
func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodCard || m == PaymentMethodCash
}

// ParsePaymentMethod принимает CARD/CASH, а также исторические CARTE/ESPECES.
// Пустая строка означает «способ не указан» и возвращает nil.
func ParsePaymentMethod(raw string) (*PaymentMethod, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	var method PaymentMethod
	switch value {
	case "":
		return nil, nil
	case "CARD", "CARTE":
		method = PaymentMethodCard
	case "CASH", "ESPECES":
		method = PaymentMethodCash
	default:
		return nil, ErrPaymentMethodInvalid
	}
	return &method, nil
}

// OrderLine: позиция заказа. Цена зафиксирована в момент покупки и больше не меняется.
type OrderLine struct {
	ID          string
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// Subtotal возвращает unitPrice * quantity.
func (l OrderLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Order агрегирует заказ и его позиции.
type Order struct {
	ID            string
	UserID        string
	Status        OrderStatus
	PaymentMethod *PaymentMethod
	Total         decimal.Decimal
	Lines         []OrderLine
	Payment       *Payment
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// LinesTotal считает сумму позиций заказа.
func LinesTotal(lines []OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.UserID == "" {
		errs = append(errs, ErrUserRequired)
	}
	if len(o.Lines) == 0 {
		errs = append(errs, ErrLinesRequired)
	}
	if o.Total.IsNegative() {
		errs = append(errs, ErrTotalNegative)
	}
	if !o.Status.Valid() {
		errs = append(errs, ErrStatusInvalid)
	}
	if o.PaymentMethod != nil && !o.PaymentMethod.Valid() {
		errs = append(errs, ErrPaymentMethodInvalid)
	}

	for _, line := range o.Lines {
		if line.Quantity <= 0 {
			errs = append(errs, ErrQuantityInvalid)
		}
		if line.UnitPrice.IsNegative() {
			errs = append(errs, ErrPriceInvalid)
		}
	}
	if !LinesTotal(o.Lines).Equal(o.Total) {
		errs = append(errs, ErrTotalMismatch)
	}

	return errs
}
