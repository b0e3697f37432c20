package rest

import (
	"time"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

type orderLineResponse struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
}

type paymentResponse struct {
	ID        string    `json:"id"`
	Amount    string    `json:"amount"`
	Method    string    `json:"method,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// orderResponse: представление заказа в REST API.
type orderResponse struct {
	ID            string              `json:"id"`
	UserID        string              `json:"user_id"`
	Total         string              `json:"total"`
	Date          time.Time           `json:"date"`
	Status        string              `json:"status"`
	PaymentMethod string              `json:"payment_method,omitempty"`
	Lines         []orderLineResponse `json:"lines"`
	Payment       *paymentResponse    `json:"payment,omitempty"`
}

type timelineEventResponse struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason"`
	Occurred time.Time `json:"occurred"`
}

type productRequest struct {
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"`
	Stock     int    `json:"stock"`
}

type productResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"`
	Stock     int    `json:"stock"`
}

type cartLineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func toOrderResponse(order domain.Order) orderResponse {
	lines := make([]orderLineResponse, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, orderLineResponse{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice.StringFixed(2),
		})
	}

	resp := orderResponse{
		ID:     order.ID,
		UserID: order.UserID,
		Total:  order.Total.StringFixed(2),
		Date:   order.CreatedAt,
		Status: string(order.Status),
		Lines:  lines,
	}
	if order.PaymentMethod != nil {
		resp.PaymentMethod = string(*order.PaymentMethod)
	}
	if order.Payment != nil {
		payment := &paymentResponse{
			ID:        order.Payment.ID,
			Amount:    order.Payment.Amount.StringFixed(2),
			Status:    string(order.Payment.Status),
			CreatedAt: order.Payment.CreatedAt,
		}
		if order.Payment.Method != nil {
			payment.Method = string(*order.Payment.Method)
		}
		resp.Payment = payment
	}
	return resp
}

func toOrderResponses(orders []domain.Order) []orderResponse {
	result := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		result = append(result, toOrderResponse(order))
	}
	return result
}

func toTimelineResponse(events []domain.TimelineEvent) []timelineEventResponse {
	result := make([]timelineEventResponse, 0, len(events))
	for _, event := range events {
		result = append(result, timelineEventResponse{Type: event.Type, Reason: event.Reason, Occurred: event.Occurred})
	}
	return result
}

func toProductResponse(product domain.Product) productResponse {
	return productResponse{
		ID:        product.ID,
		Name:      product.Name,
		UnitPrice: product.UnitPrice.StringFixed(2),
		Stock:     product.Stock,
	}
}
