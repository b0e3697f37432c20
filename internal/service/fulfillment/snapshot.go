package fulfillment

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// PriceSnapshot: цена и название товара, зафиксированные для одной позиции заказа.
type PriceSnapshot struct {
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	StockAfter  int
}

// SnapshotPrices фиксирует цены по снимку каталога, взятому под блокировкой.
// Позиция без товара в снимке означает нарушенный инвариант и не повторяется.
func SnapshotPrices(lines []domain.CartLine, products map[string]domain.Product) ([]PriceSnapshot, error) {
	snapshots := make([]PriceSnapshot, 0, len(lines))
	for _, line := range lines {
		product, ok := products[line.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: product %s", domain.ErrSnapshotInvariant, line.ProductID)
		}
		snapshots = append(snapshots, PriceSnapshot{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			UnitPrice:   product.UnitPrice.Round(2),
			StockAfter:  product.Stock,
		})
	}
	return snapshots, nil
}
