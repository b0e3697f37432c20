package domain

import "strings"

// ReserveStock: команда уменьшить остаток товара на Amount единиц.
type ReserveStock struct {
	ProductID string
	Amount    int
}

// Validate проверяет команду резерва.
func (c ReserveStock) Validate() error {
	if strings.TrimSpace(c.ProductID) == "" {
		return ErrProductIDRequired
	}
	if c.Amount <= 0 {
		return ErrQuantityInvalid
	}
	return nil
}

// TransitionStatus: команда перевести заказ в новый статус.
type TransitionStatus struct {
	OrderID   string
	NewStatus OrderStatus
}

// Validate проверяет команду перехода.
func (c TransitionStatus) Validate() error {
	if strings.TrimSpace(c.OrderID) == "" {
		return ErrOrderIDRequired
	}
	if !c.NewStatus.Valid() {
		return ErrStatusInvalid
	}
	return nil
}
