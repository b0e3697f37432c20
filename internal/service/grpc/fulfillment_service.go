package grpcsvc

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/fulfillment"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/idempotency"
	fulfillmentv1 "github.com/vladislavdragonenkov/fulfillment/pkg/api/fulfillment/v1"
)

// FulfillmentService реализует gRPC API поверх движка оформления заказов.
type FulfillmentService struct {
	fulfillmentv1.UnimplementedFulfillmentServiceServer

	engine  fulfillment.Engine
	catalog domain.CatalogAdmin
	cart    domain.CartWriter
	idem    *idempotency.Executor
	logger  *log.Entry
}

// NewFulfillmentService конструирует сервис с зависимостями.
func NewFulfillmentService(
	engine fulfillment.Engine,
	catalog domain.CatalogAdmin,
	cart domain.CartWriter,
	idem *idempotency.Executor,
	logger *log.Entry,
) *FulfillmentService {
	if logger == nil {
		logger = log.WithField("component", "grpc-fulfillment-service")
	}
	return &FulfillmentService{
		engine:  engine,
		catalog: catalog,
		cart:    cart,
		idem:    idem,
		logger:  logger,
	}
}

// CreateOrderFromCart оформляет заказ из корзины пользователя.
func (s *FulfillmentService) CreateOrderFromCart(ctx context.Context, req *fulfillmentv1.CreateOrderFromCartRequest) (*fulfillmentv1.CreateOrderFromCartResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	userID, err := resolveUser(ctx, req.GetUserId())
	if err != nil {
		return nil, err
	}
	method, err := domain.ParsePaymentMethod(req.GetPaymentMethod())
	if err != nil {
		return nil, toStatusError(err)
	}

	normalized := &fulfillmentv1.CreateOrderFromCartRequest{UserId: userID}
	if method != nil {
		normalized.PaymentMethod = string(*method)
	}

	return withIdempotency(s, ctx, fulfillmentv1.FulfillmentService_CreateOrderFromCart_FullMethodName, normalized,
		func(ctx context.Context) (*fulfillmentv1.CreateOrderFromCartResponse, error) {
			order, err := s.engine.CreateOrderFromCart(ctx, userID, method)
			if err != nil {
				return nil, err
			}
			return &fulfillmentv1.CreateOrderFromCartResponse{Order: toAPIOrder(order)}, nil
		})
}

// UpdateOrderStatus переводит заказ в новый статус. Только для администратора.
func (s *FulfillmentService) UpdateOrderStatus(ctx context.Context, req *fulfillmentv1.UpdateOrderStatusRequest) (*fulfillmentv1.UpdateOrderStatusResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	next, err := domain.ParseOrderStatus(req.GetStatus())
	if err != nil {
		return nil, toStatusError(err)
	}
	cmd := domain.TransitionStatus{OrderID: strings.TrimSpace(req.GetOrderId()), NewStatus: next}
	if err := cmd.Validate(); err != nil {
		return nil, toStatusError(err)
	}

	normalized := &fulfillmentv1.UpdateOrderStatusRequest{OrderId: cmd.OrderID, Status: string(next)}
	return withIdempotency(s, ctx, fulfillmentv1.FulfillmentService_UpdateOrderStatus_FullMethodName, normalized,
		func(ctx context.Context) (*fulfillmentv1.UpdateOrderStatusResponse, error) {
			order, err := s.engine.UpdateOrderStatus(ctx, cmd)
			if err != nil {
				return nil, err
			}
			return &fulfillmentv1.UpdateOrderStatusResponse{Order: toAPIOrder(order)}, nil
		})
}

// GetOrder возвращает заказ вместе с таймлайном.
func (s *FulfillmentService) GetOrder(ctx context.Context, req *fulfillmentv1.GetOrderRequest) (*fulfillmentv1.GetOrderResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	order, err := s.engine.GetOrderByID(ctx, req.GetOrderId())
	if err != nil {
		return nil, toStatusError(err)
	}
	if err := checkOwner(ctx, order.UserID); err != nil {
		return nil, err
	}

	events, err := s.engine.GetOrderTimeline(ctx, order.ID)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to list timeline events")
		events = nil
	}

	return &fulfillmentv1.GetOrderResponse{
		Order:    toAPIOrder(order),
		Timeline: toAPITimeline(events),
	}, nil
}

// ListUserOrders возвращает заказы пользователя от новых к старым.
func (s *FulfillmentService) ListUserOrders(ctx context.Context, req *fulfillmentv1.ListUserOrdersRequest) (*fulfillmentv1.ListOrdersResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	userID, err := resolveUser(ctx, req.GetUserId())
	if err != nil {
		return nil, err
	}
	orders, err := s.engine.GetUserOrders(ctx, userID)
	if err != nil {
		return nil, toStatusError(err)
	}
	return &fulfillmentv1.ListOrdersResponse{Orders: toAPIOrders(orders)}, nil
}

// ListAllOrders возвращает все заказы. Только для администратора.
func (s *FulfillmentService) ListAllOrders(ctx context.Context, _ *fulfillmentv1.ListAllOrdersRequest) (*fulfillmentv1.ListOrdersResponse, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	orders, err := s.engine.GetAllOrders(ctx)
	if err != nil {
		return nil, toStatusError(err)
	}
	return &fulfillmentv1.ListOrdersResponse{Orders: toAPIOrders(orders)}, nil
}

// ListOrdersByStatus возвращает заказы в статусе. Только для администратора.
func (s *FulfillmentService) ListOrdersByStatus(ctx context.Context, req *fulfillmentv1.ListOrdersByStatusRequest) (*fulfillmentv1.ListOrdersResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	orderStatus, err := domain.ParseOrderStatus(req.GetStatus())
	if err != nil {
		return nil, toStatusError(err)
	}
	orders, err := s.engine.GetOrdersByStatus(ctx, orderStatus)
	if err != nil {
		return nil, toStatusError(err)
	}
	return &fulfillmentv1.ListOrdersResponse{Orders: toAPIOrders(orders)}, nil
}

// AddCartLine добавляет товар в корзину пользователя.
func (s *FulfillmentService) AddCartLine(ctx context.Context, req *fulfillmentv1.AddCartLineRequest) (*fulfillmentv1.AddCartLineResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if s.cart == nil {
		return nil, status.Error(codes.Unimplemented, "cart is not configured")
	}

	userID, err := resolveUser(ctx, req.GetUserId())
	if err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, toStatusError(domain.ErrUserRequired)
	}
	line := domain.CartLine{ProductID: strings.TrimSpace(req.ProductId), Quantity: int(req.Quantity)}
	if err := line.Validate(); err != nil {
		return nil, toStatusError(err)
	}

	normalized := &fulfillmentv1.AddCartLineRequest{UserId: userID, ProductId: line.ProductID, Quantity: req.Quantity}
	return withIdempotency(s, ctx, fulfillmentv1.FulfillmentService_AddCartLine_FullMethodName, normalized,
		func(ctx context.Context) (*fulfillmentv1.AddCartLineResponse, error) {
			if err := s.cart.AddLine(ctx, userID, line); err != nil {
				return nil, err
			}
			return &fulfillmentv1.AddCartLineResponse{}, nil
		})
}

// UpsertProduct создаёт или обновляет товар каталога. Только для администратора.
func (s *FulfillmentService) UpsertProduct(ctx context.Context, req *fulfillmentv1.UpsertProductRequest) (*fulfillmentv1.UpsertProductResponse, error) {
	if req.GetProduct() == nil {
		return nil, status.Error(codes.InvalidArgument, "product is required")
	}
	if s.catalog == nil {
		return nil, status.Error(codes.Unimplemented, "catalog is not configured")
	}
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	product, err := productFromAPI(req.GetProduct())
	if err != nil {
		return nil, err
	}

	normalized := &fulfillmentv1.UpsertProductRequest{Product: toAPIProduct(product)}
	return withIdempotency(s, ctx, fulfillmentv1.FulfillmentService_UpsertProduct_FullMethodName, normalized,
		func(ctx context.Context) (*fulfillmentv1.UpsertProductResponse, error) {
			saved, err := s.catalog.UpsertProduct(ctx, product)
			if err != nil {
				return nil, err
			}
			return &fulfillmentv1.UpsertProductResponse{Product: toAPIProduct(saved)}, nil
		})
}

func productFromAPI(in *fulfillmentv1.Product) (domain.Product, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(in.UnitPrice))
	if err != nil {
		return domain.Product{}, status.Errorf(codes.InvalidArgument, "unit_price %q is not a decimal", in.UnitPrice)
	}

	product := domain.Product{
		ID:        strings.TrimSpace(in.Id),
		Name:      strings.TrimSpace(in.Name),
		UnitPrice: price.Round(2),
		Stock:     int(in.Stock),
	}
	if err := product.Validate(); err != nil {
		return domain.Product{}, toStatusError(err)
	}
	return product, nil
}

var _ fulfillmentv1.FulfillmentServiceServer = (*FulfillmentService)(nil)
