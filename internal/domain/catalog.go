package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Product: товар каталога. Движок читает цену и уменьшает остаток, но не владеет товаром.
type Product struct {
	ID        string
	Name      string
	UnitPrice decimal.Decimal
	Stock     int
}

// Validate проверяет поля товара перед записью в каталог.
func (p Product) Validate() error {
	switch {
	case strings.TrimSpace(p.ID) == "":
		return ErrProductIDRequired
	case p.UnitPrice.IsNegative():
		return ErrPriceInvalid
	case p.Stock < 0:
		return ErrStockInvalid
	}
	return nil
}

// CartLine: строка корзины пользователя.
type CartLine struct {
	ProductID string
	Quantity  int
}

// Validate проверяет строку корзины перед записью.
func (l CartLine) Validate() error {
	if strings.TrimSpace(l.ProductID) == "" {
		return ErrProductIDRequired
	}
	if l.Quantity <= 0 {
		return ErrQuantityInvalid
	}
	return nil
}
