package fulfillmentv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName: полное имя gRPC-сервиса.
const ServiceName = "fulfillment.v1.FulfillmentService"

const (
	FulfillmentService_CreateOrderFromCart_FullMethodName = "/" + ServiceName + "/CreateOrderFromCart"
	FulfillmentService_UpdateOrderStatus_FullMethodName   = "/" + ServiceName + "/UpdateOrderStatus"
	FulfillmentService_GetOrder_FullMethodName            = "/" + ServiceName + "/GetOrder"
	FulfillmentService_ListUserOrders_FullMethodName      = "/" + ServiceName + "/ListUserOrders"
	FulfillmentService_ListAllOrders_FullMethodName       = "/" + ServiceName + "/ListAllOrders"
	FulfillmentService_ListOrdersByStatus_FullMethodName  = "/" + ServiceName + "/ListOrdersByStatus"
	FulfillmentService_AddCartLine_FullMethodName         = "/" + ServiceName + "/AddCartLine"
	FulfillmentService_UpsertProduct_FullMethodName       = "/" + ServiceName + "/UpsertProduct"
)

// FulfillmentServiceClient: клиент сервиса оформления заказов.
type FulfillmentServiceClient interface {
	CreateOrderFromCart(ctx context.Context, in *CreateOrderFromCartRequest, opts ...grpc.CallOption) (*CreateOrderFromCartResponse, error)
	UpdateOrderStatus(ctx context.Context, in *UpdateOrderStatusRequest, opts ...grpc.CallOption) (*UpdateOrderStatusResponse, error)
	GetOrder(ctx context.Context, in *GetOrderRequest, opts ...grpc.CallOption) (*GetOrderResponse, error)
	ListUserOrders(ctx context.Context, in *ListUserOrdersRequest, opts ...grpc.CallOption) (*ListOrdersResponse, error)
	ListAllOrders(ctx context.Context, in *ListAllOrdersRequest, opts ...grpc.CallOption) (*ListOrdersResponse, error)
	ListOrdersByStatus(ctx context.Context, in *ListOrdersByStatusRequest, opts ...grpc.CallOption) (*ListOrdersResponse, error)
	AddCartLine(ctx context.Context, in *AddCartLineRequest, opts ...grpc.CallOption) (*AddCartLineResponse, error)
	UpsertProduct(ctx context.Context, in *UpsertProductRequest, opts ...grpc.CallOption) (*UpsertProductResponse, error)
}

type fulfillmentServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewFulfillmentServiceClient создаёт клиента. Вызовы идут через JSON-кодек.
func NewFulfillmentServiceClient(cc grpc.ClientConnInterface) FulfillmentServiceClient {
	return &fulfillmentServiceClient{cc: cc}
}

func (c *fulfillmentServiceClient) CreateOrderFromCart(ctx context.Context, in *CreateOrderFromCartRequest, opts ...grpc.CallOption) (*CreateOrderFromCartResponse, error) {
	out := new(CreateOrderFromCartResponse)
	if err := c.cc.Invoke(ctx, FulfillmentService_CreateOrderFromCart_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fulfillmentServiceClient) UpdateOrderStatus(ctx context.Context, in *UpdateOrderStatusRequest, opts ...grpc.CallOption) (*UpdateOrderStatusResponse, error) {
	out := new(UpdateOrderStatusResponse)
	if err := c.cc.Invoke(ctx, FulfillmentService_UpdateOrderStatus_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fulfillmentServiceClient) GetOrder(ctx context.Context, in *GetOrderRequest, opts ...grpc.CallOption) (*GetOrderResponse, error) {
	out := new(GetOrderResponse)
	if err := c.cc.Invoke(ctx, FulfillmentService_GetOrder_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fulfillmentServiceClient) ListUserOrders(ctx context.Context, in *ListUserOrdersRequest, opts ...grpc.CallOption) (*ListOrdersResponse, error) {
	out := new(ListOrdersResponse)
	if err := c.cc.Invoke(ctx, FulfillmentService_ListUserOrders_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fulfillmentServiceClient) ListAllOrders(ctx context.Context, in *ListAllOrdersRequest, opts ...grpc.CallOption) (*ListOrdersResponse, error) {
	out := new(ListOrdersResponse)
	if err := c.cc.Invoke(ctx, FulfillmentService_ListAllOrders_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fulfillmentServiceClient) ListOrdersByStatus(ctx context.Context, in *ListOrdersByStatusRequest, opts ...grpc.CallOption) (*ListOrdersResponse, error) {
	out := new(ListOrdersResponse)
	if err := c.cc.Invoke(ctx, FulfillmentService_ListOrdersByStatus_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fulfillmentServiceClient) AddCartLine(ctx context.Context, in *AddCartLineRequest, opts ...grpc.CallOption) (*AddCartLineResponse, error) {
	out := new(AddCartLineResponse)
	if err := c.cc.Invoke(ctx, FulfillmentService_AddCartLine_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fulfillmentServiceClient) UpsertProduct(ctx context.Context, in *UpsertProductRequest, opts ...grpc.CallOption) (*UpsertProductResponse, error) {
	out := new(UpsertProductResponse)
	if err := c.cc.Invoke(ctx, FulfillmentService_UpsertProduct_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

// FulfillmentServiceServer: серверная часть сервиса.
type FulfillmentServiceServer interface {
	CreateOrderFromCart(context.Context, *CreateOrderFromCartRequest) (*CreateOrderFromCartResponse, error)
	UpdateOrderStatus(context.Context, *UpdateOrderStatusRequest) (*UpdateOrderStatusResponse, error)
	GetOrder(context.Context, *GetOrderRequest) (*GetOrderResponse, error)
	ListUserOrders(context.Context, *ListUserOrdersRequest) (*ListOrdersResponse, error)
	ListAllOrders(context.Context, *ListAllOrdersRequest) (*ListOrdersResponse, error)
	ListOrdersByStatus(context.Context, *ListOrdersByStatusRequest) (*ListOrdersResponse, error)
	AddCartLine(context.Context, *AddCartLineRequest) (*AddCartLineResponse, error)
	UpsertProduct(context.Context, *UpsertProductRequest) (*UpsertProductResponse, error)
	mustEmbedUnimplementedFulfillmentServiceServer()
}

// UnimplementedFulfillmentServiceServer отвечает Unimplemented на все методы.
type UnimplementedFulfillmentServiceServer struct{}

func (UnimplementedFulfillmentServiceServer) CreateOrderFromCart(context.Context, *CreateOrderFromCartRequest) (*CreateOrderFromCartResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateOrderFromCart not implemented")
}

func (UnimplementedFulfillmentServiceServer) UpdateOrderStatus(context.Context, *UpdateOrderStatusRequest) (*UpdateOrderStatusResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method UpdateOrderStatus not implemented")
}

func (UnimplementedFulfillmentServiceServer) GetOrder(context.Context, *GetOrderRequest) (*GetOrderResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetOrder not implemented")
}

func (UnimplementedFulfillmentServiceServer) ListUserOrders(context.Context, *ListUserOrdersRequest) (*ListOrdersResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListUserOrders not implemented")
}

func (UnimplementedFulfillmentServiceServer) ListAllOrders(context.Context, *ListAllOrdersRequest) (*ListOrdersResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListAllOrders not implemented")
}

func (UnimplementedFulfillmentServiceServer) ListOrdersByStatus(context.Context, *ListOrdersByStatusRequest) (*ListOrdersResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListOrdersByStatus not implemented")
}

func (UnimplementedFulfillmentServiceServer) AddCartLine(context.Context, *AddCartLineRequest) (*AddCartLineResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method AddCartLine not implemented")
}

func (UnimplementedFulfillmentServiceServer) UpsertProduct(context.Context, *UpsertProductRequest) (*UpsertProductResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method UpsertProduct not implemented")
}

func (UnimplementedFulfillmentServiceServer) mustEmbedUnimplementedFulfillmentServiceServer() {}

// RegisterFulfillmentServiceServer регистрирует реализацию на gRPC-сервере.
func RegisterFulfillmentServiceServer(s grpc.ServiceRegistrar, srv FulfillmentServiceServer) {
	s.RegisterService(&FulfillmentService_ServiceDesc, srv)
}

func _FulfillmentService_CreateOrderFromCart_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CreateOrderFromCartRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FulfillmentServiceServer).CreateOrderFromCart(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: FulfillmentService_CreateOrderFromCart_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(FulfillmentServiceServer).CreateOrderFromCart(ctx, req.(*CreateOrderFromCartRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _FulfillmentService_UpdateOrderStatus_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(UpdateOrderStatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FulfillmentServiceServer).UpdateOrderStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: FulfillmentService_UpdateOrderStatus_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(FulfillmentServiceServer).UpdateOrderStatus(ctx, req.(*UpdateOrderStatusRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _FulfillmentService_GetOrder_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetOrderRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FulfillmentServiceServer).GetOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: FulfillmentService_GetOrder_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(FulfillmentServiceServer).GetOrder(ctx, req.(*GetOrderRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _FulfillmentService_ListUserOrders_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListUserOrdersRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FulfillmentServiceServer).ListUserOrders(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: FulfillmentService_ListUserOrders_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(FulfillmentServiceServer).ListUserOrders(ctx, req.(*ListUserOrdersRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _FulfillmentService_ListAllOrders_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListAllOrdersRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FulfillmentServiceServer).ListAllOrders(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: FulfillmentService_ListAllOrders_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(FulfillmentServiceServer).ListAllOrders(ctx, req.(*ListAllOrdersRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _FulfillmentService_ListOrdersByStatus_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListOrdersByStatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FulfillmentServiceServer).ListOrdersByStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: FulfillmentService_ListOrdersByStatus_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(FulfillmentServiceServer).ListOrdersByStatus(ctx, req.(*ListOrdersByStatusRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _FulfillmentService_AddCartLine_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(AddCartLineRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FulfillmentServiceServer).AddCartLine(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: FulfillmentService_AddCartLine_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(FulfillmentServiceServer).AddCartLine(ctx, req.(*AddCartLineRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _FulfillmentService_UpsertProduct_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(UpsertProductRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FulfillmentServiceServer).UpsertProduct(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: FulfillmentService_UpsertProduct_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(FulfillmentServiceServer).UpsertProduct(ctx, req.(*UpsertProductRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// FulfillmentService_ServiceDesc описывает сервис для grpc.ServiceRegistrar.
var FulfillmentService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FulfillmentServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CreateOrderFromCart",
			Handler:    _FulfillmentService_CreateOrderFromCart_Handler,
		},
		{
			MethodName: "UpdateOrderStatus",
			Handler:    _FulfillmentService_UpdateOrderStatus_Handler,
		},
		{
			MethodName: "GetOrder",
			Handler:    _FulfillmentService_GetOrder_Handler,
		},
		{
			MethodName: "ListUserOrders",
			Handler:    _FulfillmentService_ListUserOrders_Handler,
		},
		{
			MethodName: "ListAllOrders",
			Handler:    _FulfillmentService_ListAllOrders_Handler,
		},
		{
			MethodName: "ListOrdersByStatus",
			Handler:    _FulfillmentService_ListOrdersByStatus_Handler,
		},
		{
			MethodName: "AddCartLine",
			Handler:    _FulfillmentService_AddCartLine_Handler,
		},
		{
			MethodName: "UpsertProduct",
			Handler:    _FulfillmentService_UpsertProduct_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "fulfillment/v1/fulfillment_service.json",
}
