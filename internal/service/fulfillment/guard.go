package fulfillment

import (
	"context"
	"fmt"
	"sort"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// InventoryGuard резервирует остатки сразу для всех позиций или не резервирует ничего.
// Кроме него остатки в движке не меняет никто.
type InventoryGuard struct{}

// NewInventoryGuard создаёт guard.
func NewInventoryGuard() *InventoryGuard {
	return &InventoryGuard{}
}

// Reserve блокирует товары в порядке возрастания id, проверяет каждое требование
// в порядке входа и только после этого уменьшает остатки.
// Возвращает снимки товаров с остатком после резерва.
func (g *InventoryGuard) Reserve(ctx context.Context, catalog domain.CatalogTx, demands []domain.ReserveStock) (map[string]domain.Product, error) {
	if len(demands) == 0 {
		return nil, fmt.Errorf("%w: nothing to reserve", domain.ErrValidation)
	}

	ids := make([]string, 0, len(demands))
	seen := make(map[string]struct{}, len(demands))
	for _, demand := range demands {
		if err := demand.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[demand.ProductID]; dup {
			return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateDemand, demand.ProductID)
		}
		seen[demand.ProductID] = struct{}{}
		ids = append(ids, demand.ProductID)
	}
	sort.Strings(ids)

	locked, err := catalog.LockProducts(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, demand := range demands {
		product, ok := locked[demand.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, demand.ProductID)
		}
		if product.Stock < demand.Amount {
			return nil, &domain.InsufficientStockError{
				ProductID: demand.ProductID,
				Requested: demand.Amount,
				Available: product.Stock,
			}
		}
	}

	reserved := make(map[string]domain.Product, len(demands))
	for _, demand := range demands {
		product, err := catalog.DecrementStock(ctx, demand)
		if err != nil {
			return nil, fmt.Errorf("reserve %s: %w", demand.ProductID, err)
		}
		reserved[product.ID] = product
	}
	return reserved, nil
}
