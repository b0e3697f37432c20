package grpcsvc

import (
	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	fulfillmentv1 "github.com/vladislavdragonenkov/fulfillment/pkg/api/fulfillment/v1"
)

func toAPIOrder(order domain.Order) *fulfillmentv1.Order {
	lines := make([]*fulfillmentv1.OrderLine, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, &fulfillmentv1.OrderLine{
			ProductId:   line.ProductID,
			ProductName: line.ProductName,
			Quantity:    int32(line.Quantity), //nolint:gosec // quantities are validated to fit int32 on input.
			UnitPrice:   line.UnitPrice.StringFixed(2),
		})
	}

	result := &fulfillmentv1.Order{
		Id:        order.ID,
		UserId:    order.UserID,
		Total:     order.Total.StringFixed(2),
		Status:    string(order.Status),
		Lines:     lines,
		CreatedAt: order.CreatedAt,
		UpdatedAt: order.UpdatedAt,
	}
	if order.PaymentMethod != nil {
		result.PaymentMethod = string(*order.PaymentMethod)
	}
	if order.Payment != nil {
		payment := &fulfillmentv1.Payment{
			Id:        order.Payment.ID,
			Amount:    order.Payment.Amount.StringFixed(2),
			Status:    string(order.Payment.Status),
			CreatedAt: order.Payment.CreatedAt,
		}
		if order.Payment.Method != nil {
			payment.Method = string(*order.Payment.Method)
		}
		result.Payment = payment
	}
	return result
}

func toAPIOrders(orders []domain.Order) []*fulfillmentv1.Order {
	result := make([]*fulfillmentv1.Order, 0, len(orders))
	for _, order := range orders {
		result = append(result, toAPIOrder(order))
	}
	return result
}

func toAPITimeline(events []domain.TimelineEvent) []*fulfillmentv1.TimelineEvent {
	result := make([]*fulfillmentv1.TimelineEvent, 0, len(events))
	for _, event := range events {
		result = append(result, &fulfillmentv1.TimelineEvent{
			Type:     event.Type,
			Reason:   event.Reason,
			Occurred: event.Occurred,
		})
	}
	return result
}

func toAPIProduct(product domain.Product) *fulfillmentv1.Product {
	return &fulfillmentv1.Product{
		Id:        product.ID,
		Name:      product.Name,
		UnitPrice: product.UnitPrice.StringFixed(2),
		Stock:     int32(product.Stock), //nolint:gosec // stock is validated to fit int32 on input.
	}
}
