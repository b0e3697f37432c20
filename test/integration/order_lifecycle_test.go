package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/vladislavdragonenkov/fulfillment/internal/auth"
	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/analytics"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/fulfillment"
	grpcsvc "github.com/vladislavdragonenkov/fulfillment/internal/service/grpc"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/idempotency"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/outbox"
	"github.com/vladislavdragonenkov/fulfillment/internal/storage/memory"
	fulfillmentv1 "github.com/vladislavdragonenkov/fulfillment/pkg/api/fulfillment/v1"
)

const jwtSecret = "integration-secret"

// capturePublisher складывает опубликованные outbox-события в конверты, как это делает Kafka-паблишер.
type capturePublisher struct {
	mu        sync.Mutex
	envelopes []kafka.Envelope
}

func (p *capturePublisher) Publish(_ context.Context, event domain.OutboxMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.envelopes = append(p.envelopes, kafka.NewEnvelope(event, time.Now()))
	return nil
}

func (p *capturePublisher) drain() []kafka.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.envelopes
	p.envelopes = nil
	return out
}

// FulfillmentLifecycleTestSuite проверяет полный путь заказа через gRPC, outbox и аналитику.
type FulfillmentLifecycleTestSuite struct {
	suite.Suite

	store     *memory.Store
	client    fulfillmentv1.FulfillmentServiceClient
	verifier  *auth.Verifier
	worker    *outbox.Worker
	publisher *capturePublisher
	server    *grpc.Server
	conn      *grpc.ClientConn
	requests  int
}

func (s *FulfillmentLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel)
	logger := baseLogger.WithField("component", "integration-test")

	s.store = memory.NewStore()
	engine := fulfillment.NewOrchestrator(s.store, s.store, s.store.Timeline(), fulfillment.WithLogger(logger))
	executor := idempotency.NewExecutor(memory.NewIdempotencyRepository(), idempotency.WithExecutorLogger(logger))
	service := grpcsvc.NewFulfillmentService(engine, s.store, s.store, executor, logger)

	verifier, err := auth.NewVerifier(jwtSecret)
	s.Require().NoError(err)
	s.verifier = verifier

	s.publisher = &capturePublisher{}
	s.worker = outbox.NewWorker(s.store.Outbox(), s.publisher, outbox.WithLogger(logger))

	lis := bufconn.Listen(1 << 20)
	s.server = grpc.NewServer(grpc.ChainUnaryInterceptor(grpcsvc.AuthUnaryInterceptor(verifier)))
	fulfillmentv1.RegisterFulfillmentServiceServer(s.server, service)
	go func() {
		_ = s.server.Serve(lis)
	}()

	s.conn, err = grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		fulfillmentv1.WithJSONCodec(),
	)
	s.Require().NoError(err)
	s.client = fulfillmentv1.NewFulfillmentServiceClient(s.conn)
}

func (s *FulfillmentLifecycleTestSuite) TearDownTest() {
	_ = s.conn.Close()
	s.server.Stop()
}

func (s *FulfillmentLifecycleTestSuite) as(userID string, role auth.Role, idempotencyKey string) context.Context {
	token, err := s.verifier.Issue(auth.Identity{UserID: userID, Role: role}, time.Hour)
	s.Require().NoError(err)

	ctx := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+token)
	if idempotencyKey != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "idempotency-key", idempotencyKey)
	}
	return ctx
}

// nextKey выдаёт уникальный idempotency-key для служебных вызовов.
func (s *FulfillmentLifecycleTestSuite) nextKey(prefix string) string {
	s.requests++
	return fmt.Sprintf("%s-%d", prefix, s.requests)
}

func (s *FulfillmentLifecycleTestSuite) seed(id, price string, stock int32) {
	_, err := s.client.UpsertProduct(s.as("admin", auth.RoleAdmin, s.nextKey("seed-"+id)), &fulfillmentv1.UpsertProductRequest{
		Product: &fulfillmentv1.Product{Id: id, Name: "product " + id, UnitPrice: price, Stock: stock},
	})
	s.Require().NoError(err)
}

func (s *FulfillmentLifecycleTestSuite) addToCart(userID, productID string, qty int32) {
	_, err := s.client.AddCartLine(s.as(userID, auth.RoleUser, s.nextKey("cart-"+userID)), &fulfillmentv1.AddCartLineRequest{
		UserId: userID, ProductId: productID, Quantity: qty,
	})
	s.Require().NoError(err)
}

func (s *FulfillmentLifecycleTestSuite) TestCheckoutToDelivery() {
	s.seed("laptop", "1999.00", 3)
	s.seed("mouse", "24.50", 10)
	s.addToCart("u-1", "laptop", 1)
	s.addToCart("u-1", "mouse", 1)
	s.addToCart("u-1", "mouse", 1)

	created, err := s.client.CreateOrderFromCart(s.as("u-1", auth.RoleUser, "checkout-1"), &fulfillmentv1.CreateOrderFromCartRequest{
		UserId:        "u-1",
		PaymentMethod: "CARD",
	})
	s.Require().NoError(err)
	order := created.GetOrder()
	s.Equal("2048.00", order.Total)
	s.Equal("PENDING", order.Status)
	s.Len(order.Lines, 2)

	for _, next := range []string{"PAID", "SHIPPED", "DELIVERED"} {
		resp, err := s.client.UpdateOrderStatus(s.as("admin", auth.RoleAdmin, "status-"+next), &fulfillmentv1.UpdateOrderStatusRequest{
			OrderId: order.Id,
			Status:  next,
		})
		s.Require().NoError(err)
		s.Equal(next, resp.GetOrder().Status)
	}

	got, err := s.client.GetOrder(s.as("u-1", auth.RoleUser, ""), &fulfillmentv1.GetOrderRequest{OrderId: order.Id})
	s.Require().NoError(err)
	s.Equal("DELIVERED", got.GetOrder().Status)
	s.GreaterOrEqual(len(got.Timeline), 4)

	laptop, err := s.store.GetProduct(context.Background(), "laptop")
	s.Require().NoError(err)
	s.Equal(2, laptop.Stock)
}

func (s *FulfillmentLifecycleTestSuite) TestCheckoutReplayReturnsSameOrder() {
	s.seed("pen", "1.20", 5)
	s.addToCart("u-2", "pen", 2)

	ctx := s.as("u-2", auth.RoleUser, "checkout-replay")
	first, err := s.client.CreateOrderFromCart(ctx, &fulfillmentv1.CreateOrderFromCartRequest{UserId: "u-2"})
	s.Require().NoError(err)
	second, err := s.client.CreateOrderFromCart(ctx, &fulfillmentv1.CreateOrderFromCartRequest{UserId: "u-2"})
	s.Require().NoError(err)

	s.Equal(first.GetOrder().Id, second.GetOrder().Id)

	pen, err := s.store.GetProduct(context.Background(), "pen")
	s.Require().NoError(err)
	s.Equal(3, pen.Stock, "replay must not reserve stock twice")
}

func (s *FulfillmentLifecycleTestSuite) TestInsufficientStockKeepsCatalogIntact() {
	s.seed("rare", "50.00", 1)
	s.seed("common", "1.00", 100)
	s.addToCart("u-3", "common", 5)
	s.addToCart("u-3", "rare", 2)

	_, err := s.client.CreateOrderFromCart(s.as("u-3", auth.RoleUser, "checkout-rare"), &fulfillmentv1.CreateOrderFromCartRequest{UserId: "u-3"})
	s.Require().Error(err)
	s.Equal(codes.FailedPrecondition, status.Code(err))
	s.Equal("INSUFFICIENT_STOCK", grpcsvc.ErrorReason(err))

	info, ok := grpcsvc.ErrorInfo(err)
	s.Require().True(ok)
	s.Equal("rare", info.GetMetadata()["product_id"])

	common, err := s.store.GetProduct(context.Background(), "common")
	s.Require().NoError(err)
	s.Equal(100, common.Stock)

	orders, err := s.client.ListUserOrders(s.as("u-3", auth.RoleUser, ""), &fulfillmentv1.ListUserOrdersRequest{UserId: "u-3"})
	s.Require().NoError(err)
	s.Empty(orders.GetOrders())
}

func (s *FulfillmentLifecycleTestSuite) TestUserCannotReadForeignOrder() {
	s.seed("book", "12.00", 2)
	s.addToCart("owner", "book", 1)

	created, err := s.client.CreateOrderFromCart(s.as("owner", auth.RoleUser, "checkout-owner"), &fulfillmentv1.CreateOrderFromCartRequest{UserId: "owner"})
	s.Require().NoError(err)

	_, err = s.client.GetOrder(s.as("intruder", auth.RoleUser, ""), &fulfillmentv1.GetOrderRequest{OrderId: created.GetOrder().Id})
	s.Equal(codes.NotFound, status.Code(err))

	_, err = s.client.UpdateOrderStatus(s.as("owner", auth.RoleUser, "self-pay"), &fulfillmentv1.UpdateOrderStatusRequest{
		OrderId: created.GetOrder().Id,
		Status:  "PAID",
	})
	s.Equal(codes.PermissionDenied, status.Code(err))
}

func (s *FulfillmentLifecycleTestSuite) TestOutboxFeedsAnalytics() {
	s.seed("mug", "8.00", 12)
	s.addToCart("u-4", "mug", 3)

	created, err := s.client.CreateOrderFromCart(s.as("u-4", auth.RoleUser, "checkout-mug"), &fulfillmentv1.CreateOrderFromCartRequest{UserId: "u-4"})
	s.Require().NoError(err)
	_, err = s.client.UpdateOrderStatus(s.as("admin", auth.RoleAdmin, "pay-mug"), &fulfillmentv1.UpdateOrderStatusRequest{
		OrderId: created.GetOrder().Id,
		Status:  "PAID",
	})
	s.Require().NoError(err)

	s.worker.ProcessOnce(context.Background())
	envelopes := s.publisher.drain()
	s.Require().Len(envelopes, 2)

	projection := analytics.NewProjection(analytics.WithLowStockThreshold(10))
	for _, envelope := range envelopes {
		applied, err := projection.Apply(envelope)
		s.Require().NoError(err)
		s.True(applied)
	}
	// at-least-once: повторная доставка не меняет агрегаты
	for _, envelope := range envelopes {
		applied, err := projection.Apply(envelope)
		s.Require().NoError(err)
		s.False(applied)
	}

	snapshot := projection.Snapshot()
	s.Equal(0, snapshot.PendingOrders())
	s.Equal(1, snapshot.OrdersByStatus[domain.OrderStatusPaid])
	s.Equal("24.00", snapshot.Revenue.StringFixed(2))
	s.Require().Len(snapshot.LowStock, 1)
	s.Equal("mug", snapshot.LowStock[0].ProductID)
	s.Equal(9, snapshot.LowStock[0].Stock)
}

func (s *FulfillmentLifecycleTestSuite) TestProjectionHandlesKafkaMessages() {
	s.seed("cap", "5.00", 4)
	s.addToCart("u-5", "cap", 1)

	_, err := s.client.CreateOrderFromCart(s.as("u-5", auth.RoleUser, "checkout-cap"), &fulfillmentv1.CreateOrderFromCartRequest{UserId: "u-5"})
	s.Require().NoError(err)

	s.worker.ProcessOnce(context.Background())
	envelopes := s.publisher.drain()
	s.Require().Len(envelopes, 1)

	value, err := json.Marshal(envelopes[0])
	s.Require().NoError(err)

	projection := analytics.NewProjection()
	s.Require().NoError(projection.Handle(context.Background(), &sarama.ConsumerMessage{
		Topic: kafka.TopicFulfillmentEvents,
		Key:   []byte(envelopes[0].Key()),
		Value: value,
	}))
	s.Equal(1, projection.Snapshot().PendingOrders())
}

func TestFulfillmentLifecycleSuite(t *testing.T) {
	suite.Run(t, new(FulfillmentLifecycleTestSuite))
}

func TestConcurrentCheckoutsNeverOversell(t *testing.T) {
	store := memory.NewStore()
	engine := fulfillment.NewOrchestrator(store, store, store.Timeline())
	ctx := context.Background()

	_, err := store.UpsertProduct(ctx, domain.Product{ID: "hot", Name: "Hot", UnitPrice: decimal.RequireFromString("3.00"), Stock: 10})
	require.NoError(t, err)

	const buyers = 25
	for i := 0; i < buyers; i++ {
		require.NoError(t, store.AddLine(ctx, buyerID(i), domain.CartLine{ProductID: "hot", Quantity: 1}))
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := engine.CreateOrderFromCart(ctx, buyerID(i), nil)
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
				return
			}
			if domain.CodeOf(err) != domain.CodeInsufficientStock {
				t.Errorf("unexpected checkout error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	product, err := store.GetProduct(ctx, "hot")
	require.NoError(t, err)
	require.Equal(t, 10, success)
	require.Equal(t, 0, product.Stock)
}

func buyerID(i int) string {
	return fmt.Sprintf("buyer-%02d", i)
}
