package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus описывает состояние записи об оплате.
type PaymentStatus string

const (
	// PaymentStatusConfirmed: заказ переведён в PAID, оплата учтена.
	PaymentStatusConfirmed PaymentStatus = "CONFIRMED"
)

// Payment: учётная запись об оплате заказа. У заказа не больше одной такой записи.
// Списание денег движок не выполняет: запись появляется при переходе заказа в PAID.
type Payment struct {
	ID        string
	OrderID   string
	Amount    decimal.Decimal
	Method    *PaymentMethod
	Status    PaymentStatus
	CreatedAt time.Time
}

// NewConfirmedPayment собирает запись об оплате по заказу.
func NewConfirmedPayment(id string, order Order, at time.Time) Payment {
	return Payment{
		ID:        id,
		OrderID:   order.ID,
		Amount:    order.Total,
		Method:    order.PaymentMethod,
		Status:    PaymentStatusConfirmed,
		CreatedAt: at,
	}
}
