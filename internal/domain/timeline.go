package domain

import "time"

// Типы событий таймлайна заказа.
const (
	TimelineOrderCreated  = "ORDER_CREATED"
	TimelineStatusChanged = "STATUS_CHANGED"
	TimelinePaymentNoted  = "PAYMENT_RECORDED"
)

// TimelineEvent описывает событие в жизненном цикле заказа.
type TimelineEvent struct {
	OrderID  string
	Type     string
	Reason   string
	Occurred time.Time
}
