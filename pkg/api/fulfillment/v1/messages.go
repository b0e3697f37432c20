package fulfillmentv1

import "time"

// Денежные суммы передаются строками с двумя знаками после точки.

type Product struct {
	Id        string `json:"id"`
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"`
	Stock     int32  `json:"stock"`
}

type OrderLine struct {
	ProductId   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int32  `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
}

type Payment struct {
	Id        string    `json:"id"`
	Amount    string    `json:"amount"`
	Method    string    `json:"method,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type Order struct {
	Id            string       `json:"id"`
	UserId        string       `json:"user_id"`
	Total         string       `json:"total"`
	Status        string       `json:"status"`
	PaymentMethod string       `json:"payment_method,omitempty"`
	Lines         []*OrderLine `json:"lines"`
	Payment       *Payment     `json:"payment,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

func (x *Order) GetId() string {
	if x != nil {
		return x.Id
	}
	return ""
}

func (x *Order) GetUserId() string {
	if x != nil {
		return x.UserId
	}
	return ""
}

func (x *Order) GetStatus() string {
	if x != nil {
		return x.Status
	}
	return ""
}

func (x *Order) GetTotal() string {
	if x != nil {
		return x.Total
	}
	return ""
}

func (x *Order) GetLines() []*OrderLine {
	if x != nil {
		return x.Lines
	}
	return nil
}

type TimelineEvent struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason"`
	Occurred time.Time `json:"occurred"`
}

type CreateOrderFromCartRequest struct {
	UserId        string `json:"user_id"`
	PaymentMethod string `json:"payment_method,omitempty"`
}

func (x *CreateOrderFromCartRequest) GetUserId() string {
	if x != nil {
		return x.UserId
	}
	return ""
}

func (x *CreateOrderFromCartRequest) GetPaymentMethod() string {
	if x != nil {
		return x.PaymentMethod
	}
	return ""
}

type CreateOrderFromCartResponse struct {
	Order *Order `json:"order"`
}

func (x *CreateOrderFromCartResponse) GetOrder() *Order {
	if x != nil {
		return x.Order
	}
	return nil
}

type UpdateOrderStatusRequest struct {
	OrderId string `json:"order_id"`
	Status  string `json:"status"`
}

func (x *UpdateOrderStatusRequest) GetOrderId() string {
	if x != nil {
		return x.OrderId
	}
	return ""
}

func (x *UpdateOrderStatusRequest) GetStatus() string {
	if x != nil {
		return x.Status
	}
	return ""
}

type UpdateOrderStatusResponse struct {
	Order *Order `json:"order"`
}

func (x *UpdateOrderStatusResponse) GetOrder() *Order {
	if x != nil {
		return x.Order
	}
	return nil
}

type GetOrderRequest struct {
	OrderId string `json:"order_id"`
}

func (x *GetOrderRequest) GetOrderId() string {
	if x != nil {
		return x.OrderId
	}
	return ""
}

type GetOrderResponse struct {
	Order    *Order           `json:"order"`
	Timeline []*TimelineEvent `json:"timeline"`
}

func (x *GetOrderResponse) GetOrder() *Order {
	if x != nil {
		return x.Order
	}
	return nil
}

type ListUserOrdersRequest struct {
	UserId string `json:"user_id"`
}

func (x *ListUserOrdersRequest) GetUserId() string {
	if x != nil {
		return x.UserId
	}
	return ""
}

type ListAllOrdersRequest struct{}

type ListOrdersByStatusRequest struct {
	Status string `json:"status"`
}

func (x *ListOrdersByStatusRequest) GetStatus() string {
	if x != nil {
		return x.Status
	}
	return ""
}

type ListOrdersResponse struct {
	Orders []*Order `json:"orders"`
}

func (x *ListOrdersResponse) GetOrders() []*Order {
	if x != nil {
		return x.Orders
	}
	return nil
}

type AddCartLineRequest struct {
	UserId    string `json:"user_id"`
	ProductId string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

func (x *AddCartLineRequest) GetUserId() string {
	if x != nil {
		return x.UserId
	}
	return ""
}

type AddCartLineResponse struct{}

type UpsertProductRequest struct {
	Product *Product `json:"product"`
}

func (x *UpsertProductRequest) GetProduct() *Product {
	if x != nil {
		return x.Product
	}
	return nil
}

type UpsertProductResponse struct {
	Product *Product `json:"product"`
}

func (x *UpsertProductResponse) GetProduct() *Product {
	if x != nil {
		return x.Product
	}
	return nil
}
