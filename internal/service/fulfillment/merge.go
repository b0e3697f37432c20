package fulfillment

import "github.com/vladislavdragonenkov/fulfillment/internal/domain"

// MergeCartLines складывает количества повторяющихся товаров.
// Порядок результата совпадает с порядком первого появления товара в корзине.
func MergeCartLines(lines []domain.CartLine) []domain.CartLine {
	merged := make([]domain.CartLine, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, line := range lines {
		if i, ok := index[line.ProductID]; ok {
			merged[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(merged)
		merged = append(merged, line)
	}
	return merged
}

func demandsFor(lines []domain.CartLine) []domain.ReserveStock {
	demands := make([]domain.ReserveStock, len(lines))
	for i, line := range lines {
		demands[i] = domain.ReserveStock{ProductID: line.ProductID, Amount: line.Quantity}
	}
	return demands
}
