package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/fulfillment/internal/auth"
	grpcsvc "github.com/vladislavdragonenkov/fulfillment/internal/service/grpc"
	fulfillmentv1 "github.com/vladislavdragonenkov/fulfillment/pkg/api/fulfillment/v1"
)

const (
	idempotencyHeader   = "idempotency-key"
	authorizationHeader = "authorization"
	adminUserID         = "loadtest-admin"
	tokenTTL            = time.Hour

	reasonInsufficientStock = "INSUFFICIENT_STOCK"
)

type loadMode string

const (
	modeCheckout     loadMode = "checkout"
	modeCheckoutPay  loadMode = "checkout-pay"
	modeCheckoutShip loadMode = "checkout-ship"
)

type config struct {
	addr        string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	connections int
	timeout     time.Duration
	mode        loadMode
	productID   string
	unitPrice   string
	stock       int
	quantity    int
	userTag     string
	jwtSecret   string
	skipSeed    bool
	verify      bool
	outputPath  string
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type methodReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Codes     map[string]int64 `json:"codes"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

// conservationReport сверяет проданные единицы с заведённым остатком.
type conservationReport struct {
	ProductID  string `json:"product_id"`
	Seeded     int64  `json:"seeded"`
	Sold       int64  `json:"sold"`
	SoldOut    int64  `json:"sold_out"`
	OrderUnits int64  `json:"order_units"`
	Verified   bool   `json:"verified"`
	OK         bool   `json:"ok"`
}

type report struct {
	StartedAt         time.Time               `json:"started_at"`
	DurationSeconds   float64                 `json:"duration_seconds"`
	TotalScenarios    int64                   `json:"total_scenarios"`
	SuccessScenarios  int64                   `json:"success_scenarios"`
	FailedScenarios   int64                   `json:"failed_scenarios"`
	ErrorRate         float64                 `json:"error_rate"`
	RPS               float64                 `json:"rps"`
	ScenarioLatencyMs latencySummary          `json:"scenario_latency_ms"`
	Methods           map[string]methodReport `json:"methods"`
	Conservation      *conservationReport     `json:"conservation,omitempty"`
}

type methodStats struct {
	calls     int64
	success   int64
	failed    int64
	codes     map[string]int64
	latencies []float64
}

type collector struct {
	mu      sync.Mutex
	methods map[string]*methodStats
}

func newCollector() *collector {
	return &collector{
		methods: make(map[string]*methodStats),
	}
}

// record учитывает вызов. outcome содержит код gRPC или стабильную причину ошибки, ok означает успех с точки зрения сценария.
func (c *collector) record(method string, latency time.Duration, outcome string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, exists := c.methods[method]
	if !exists {
		stats = &methodStats{
			codes: make(map[string]int64),
		}
		c.methods[method] = stats
	}

	stats.calls++
	if ok {
		stats.success++
	} else {
		stats.failed++
	}
	stats.codes[outcome]++
	stats.latencies = append(stats.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) snapshot(name string) (methodReport, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[name]
	if !ok {
		return methodReport{}, false
	}

	codesCopy := make(map[string]int64, len(stats.codes))
	for code, count := range stats.codes {
		codesCopy[code] = count
	}

	return methodReport{
		Calls:     stats.calls,
		Success:   stats.success,
		Failed:    stats.failed,
		ErrorRate: ratio(stats.failed, stats.calls),
		Codes:     codesCopy,
		LatencyMs: buildLatencySummary(stats.latencies),
	}, true
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Methods:         make(map[string]methodReport, len(c.methods)),
	}

	scenarioStats := c.methods["scenario"]
	if scenarioStats != nil {
		result.TotalScenarios = scenarioStats.calls
		result.SuccessScenarios = scenarioStats.success
		result.FailedScenarios = scenarioStats.failed
		result.ErrorRate = ratio(scenarioStats.failed, scenarioStats.calls)
		result.ScenarioLatencyMs = buildLatencySummary(scenarioStats.latencies)
	}
	if duration > 0 {
		result.RPS = float64(result.TotalScenarios) / duration.Seconds()
	}

	for name, stats := range c.methods {
		codesCopy := make(map[string]int64, len(stats.codes))
		for code, count := range stats.codes {
			codesCopy[code] = count
		}
		result.Methods[name] = methodReport{
			Calls:     stats.calls,
			Success:   stats.success,
			Failed:    stats.failed,
			ErrorRate: ratio(stats.failed, stats.calls),
			Codes:     codesCopy,
			LatencyMs: buildLatencySummary(stats.latencies),
		}
	}

	return result
}

func parseConfig() (config, error) {
	var cfg config
	var modeValue string
	var timeoutValue string
	var durationValue string

	flag.StringVar(&cfg.addr, "addr", "localhost:50051", "gRPC target address")
	flag.IntVar(&cfg.total, "total", 400, "total scenarios to execute in count mode; in duration mode only used when explicitly set")
	flag.StringVar(&durationValue, "duration", "0s", "optional time-based run duration (e.g. 10m, 15m)")
	flag.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	flag.IntVar(&cfg.connections, "connections", 20, "number of gRPC client connections")
	flag.StringVar(&timeoutValue, "timeout", "5s", "per-RPC timeout")
	flag.StringVar(&modeValue, "mode", string(modeCheckout), "load mode: checkout | checkout-pay | checkout-ship")
	flag.StringVar(&cfg.productID, "product", "p-load", "hot product id shared by all scenarios")
	flag.StringVar(&cfg.unitPrice, "unit-price", "9.99", "unit price of the seeded product")
	flag.IntVar(&cfg.stock, "stock", 300, "stock of the seeded product")
	flag.IntVar(&cfg.quantity, "qty", 1, "units per checkout")
	flag.StringVar(&cfg.userTag, "user-tag", "load", "user id prefix")
	flag.StringVar(&cfg.jwtSecret, "jwt-secret", "", "HMAC secret for issuing tokens (fallback: OMS_JWT_SECRET)")
	flag.BoolVar(&cfg.skipSeed, "skip-seed", false, "do not upsert the product before the run")
	flag.BoolVar(&cfg.verify, "verify", true, "verify sold units against orders after the run")
	flag.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	flag.Parse()

	timeout, err := time.ParseDuration(strings.TrimSpace(timeoutValue))
	if err != nil {
		return cfg, fmt.Errorf("parse timeout: %w", err)
	}
	cfg.timeout = timeout

	duration, err := time.ParseDuration(strings.TrimSpace(durationValue))
	if err != nil {
		return cfg, fmt.Errorf("parse duration: %w", err)
	}
	cfg.duration = duration

	flag.CommandLine.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode

	if strings.TrimSpace(cfg.jwtSecret) == "" {
		cfg.jwtSecret = strings.TrimSpace(os.Getenv("OMS_JWT_SECRET"))
	}

	if cfg.duration < 0 {
		return cfg, errors.New("duration must be >= 0")
	}
	if cfg.duration == 0 && cfg.total <= 0 {
		return cfg, errors.New("total must be > 0 when duration is not set")
	}
	if cfg.duration > 0 && cfg.totalSet && cfg.total <= 0 {
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	}
	if cfg.concurrency <= 0 {
		return cfg, errors.New("concurrency must be > 0")
	}
	if cfg.connections <= 0 {
		return cfg, errors.New("connections must be > 0")
	}
	if cfg.timeout <= 0 {
		return cfg, errors.New("timeout must be > 0")
	}
	if cfg.stock < 0 {
		return cfg, errors.New("stock must be >= 0")
	}
	if cfg.quantity <= 0 {
		return cfg, errors.New("qty must be > 0")
	}
	if strings.TrimSpace(cfg.productID) == "" {
		return cfg, errors.New("product is required")
	}
	if strings.TrimSpace(cfg.unitPrice) == "" {
		return cfg, errors.New("unit-price is required")
	}
	if strings.TrimSpace(cfg.userTag) == "" {
		return cfg, errors.New("user-tag is required")
	}

	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch loadMode(strings.TrimSpace(value)) {
	case modeCheckout:
		return modeCheckout, nil
	case modeCheckoutPay:
		return modeCheckoutPay, nil
	case modeCheckoutShip:
		return modeCheckoutShip, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

// tokenIssuer выдаёт bearer-токены. Без секрета вызовы идут без авторизации.
type tokenIssuer struct {
	verifier *auth.Verifier
}

func newTokenIssuer(secret string) (tokenIssuer, error) {
	if strings.TrimSpace(secret) == "" {
		return tokenIssuer{}, nil
	}
	verifier, err := auth.NewVerifier(secret)
	if err != nil {
		return tokenIssuer{}, err
	}
	return tokenIssuer{verifier: verifier}, nil
}

func (i tokenIssuer) outgoing(ctx context.Context, userID string, role auth.Role) (context.Context, error) {
	if i.verifier == nil {
		return ctx, nil
	}
	token, err := i.verifier.Issue(auth.Identity{UserID: userID, Role: role}, tokenTTL)
	if err != nil {
		return ctx, fmt.Errorf("issue token: %w", err)
	}
	return metadata.AppendToOutgoingContext(ctx, authorizationHeader, "Bearer "+token), nil
}

// runner выполняет сценарии против одного или нескольких клиентов.
type runner struct {
	cfg     config
	runID   string
	tokens  tokenIssuer
	col     *collector
	sold    atomic.Int64
	soldOut atomic.Int64
}

func main() {
	cfg, err := parseConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	tokens, err := newTokenIssuer(cfg.jwtSecret)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid jwt secret: %v\n", err)
		os.Exit(1)
	}

	conns := make([]*grpc.ClientConn, 0, cfg.connections)
	clients := make([]fulfillmentv1.FulfillmentServiceClient, 0, cfg.connections)
	for i := 0; i < cfg.connections; i++ {
		conn, dialErr := grpc.NewClient(cfg.addr,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			fulfillmentv1.WithJSONCodec(),
		)
		if dialErr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to create grpc client connection: %v\n", dialErr)
			os.Exit(1)
		}
		conns = append(conns, conn)
		clients = append(clients, fulfillmentv1.NewFulfillmentServiceClient(conn))
	}
	defer func() {
		for _, conn := range conns {
			_ = conn.Close()
		}
	}()

	result, err := execute(cfg, tokens, clients)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "load test failed: %v\n", err)
		os.Exit(1)
	}

	printReport(result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}

	if result.FailedScenarios > 0 || (result.Conservation != nil && !result.Conservation.OK) {
		os.Exit(1)
	}
}

// execute заводит товар, прогоняет сценарии и сверяет остатки.
func execute(cfg config, tokens tokenIssuer, clients []fulfillmentv1.FulfillmentServiceClient) (report, error) {
	if len(clients) == 0 {
		return report{}, errors.New("at least one client is required")
	}

	startedAt := time.Now()
	r := &runner{
		cfg:    cfg,
		runID:  fmt.Sprintf("%d-%d", startedAt.UnixNano(), os.Getpid()),
		tokens: tokens,
		col:    newCollector(),
	}

	if !cfg.skipSeed {
		if err := r.seedProduct(clients[0]); err != nil {
			return report{}, fmt.Errorf("seed product: %w", err)
		}
	}

	jobs := make(chan int, cfg.concurrency*2)
	var failures int64
	var wg sync.WaitGroup

	for workerID := 0; workerID < cfg.concurrency; workerID++ {
		wg.Add(1)
		client := clients[workerID%len(clients)]
		go func(cli fulfillmentv1.FulfillmentServiceClient) {
			defer wg.Done()
			for id := range jobs {
				if runErr := r.runScenario(cli, id); runErr != nil {
					atomic.AddInt64(&failures, 1)
				}
			}
		}(client)
	}

	dispatchJobs(jobs, cfg)
	wg.Wait()

	duration := time.Since(startedAt)
	result := r.col.buildReport(startedAt, duration)
	if result.FailedScenarios == 0 && failures > 0 {
		result.FailedScenarios = failures
		result.ErrorRate = ratio(result.FailedScenarios, result.TotalScenarios)
	}

	conservation, err := r.checkConservation(clients[0])
	if err != nil {
		return result, fmt.Errorf("verify conservation: %w", err)
	}
	result.Conservation = &conservation
	return result, nil
}

func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := 0; i < cfg.total; i++ {
			jobs <- i
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()

	for i := 0; ; i++ {
		if cfg.totalSet && i >= cfg.total {
			return
		}

		select {
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}

func (r *runner) userID(index int) string {
	return fmt.Sprintf("%s-%s-%d", r.cfg.userTag, r.runID, index)
}

func (r *runner) userPrefix() string {
	return fmt.Sprintf("%s-%s-", r.cfg.userTag, r.runID)
}

func (r *runner) seedProduct(client fulfillmentv1.FulfillmentServiceClient) error {
	_, err := r.call("UpsertProduct", adminUserID, auth.RoleAdmin, "lt-seed-"+r.runID, func(ctx context.Context) error {
		_, err := client.UpsertProduct(ctx, &fulfillmentv1.UpsertProductRequest{Product: &fulfillmentv1.Product{
			Id:        r.cfg.productID,
			Name:      "load test product",
			UnitPrice: r.cfg.unitPrice,
			Stock:     int32(r.cfg.stock),
		}})
		return err
	})
	return err
}

// runScenario оформляет один заказ. Исчерпанный остаток: ожидаемый исход, а не ошибка.
func (r *runner) runScenario(client fulfillmentv1.FulfillmentServiceClient, index int) error {
	scenarioStart := time.Now()
	outcome, ok := codes.OK.String(), true
	defer func() {
		r.col.record("scenario", time.Since(scenarioStart), outcome, ok)
	}()

	fail := func(err error) error {
		outcome, ok = callOutcome(err), false
		return err
	}

	userID := r.userID(index)
	cartKey := fmt.Sprintf("lt-cart-%s-%d", r.runID, index)
	if _, err := r.call("AddCartLine", userID, auth.RoleUser, cartKey, func(ctx context.Context) error {
		_, err := client.AddCartLine(ctx, &fulfillmentv1.AddCartLineRequest{
			UserId:    userID,
			ProductId: r.cfg.productID,
			Quantity:  int32(r.cfg.quantity),
		})
		return err
	}); err != nil {
		return fail(err)
	}

	var orderID string
	outcomeCode, err := r.call("CreateOrderFromCart", userID, auth.RoleUser, fmt.Sprintf("lt-checkout-%s-%d", r.runID, index), func(ctx context.Context) error {
		resp, err := client.CreateOrderFromCart(ctx, &fulfillmentv1.CreateOrderFromCartRequest{UserId: userID})
		if err == nil {
			orderID = resp.GetOrder().GetId()
		}
		return err
	})
	if outcomeCode == reasonInsufficientStock {
		r.soldOut.Add(1)
		outcome = reasonInsufficientStock
		return nil
	}
	if err != nil {
		return fail(err)
	}
	if orderID == "" {
		outcome, ok = codes.Internal.String(), false
		return errors.New("create response returned empty order id")
	}
	r.sold.Add(int64(r.cfg.quantity))

	var steps []string
	switch r.cfg.mode {
	case modeCheckoutPay:
		steps = []string{"PAID"}
	case modeCheckoutShip:
		steps = []string{"PAID", "SHIPPED", "DELIVERED"}
	}
	for _, next := range steps {
		key := fmt.Sprintf("lt-%s-%s-%d", strings.ToLower(next), r.runID, index)
		if _, err := r.call("UpdateOrderStatus", adminUserID, auth.RoleAdmin, key, func(ctx context.Context) error {
			_, err := client.UpdateOrderStatus(ctx, &fulfillmentv1.UpdateOrderStatusRequest{OrderId: orderID, Status: next})
			return err
		}); err != nil {
			return fail(err)
		}
	}

	return nil
}

// call выполняет RPC с таймаутом, токеном и idempotency-key и учитывает результат.
func (r *runner) call(method, userID string, role auth.Role, key string, rpc func(ctx context.Context) error) (string, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.timeout)
	defer cancel()

	ctx, err := r.tokens.outgoing(ctx, userID, role)
	if err != nil {
		return codes.Unauthenticated.String(), err
	}
	if key != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, idempotencyHeader, key)
	}

	err = rpc(ctx)
	outcome := callOutcome(err)
	r.col.record(method, time.Since(start), outcome, err == nil || outcome == reasonInsufficientStock)
	return outcome, err
}

// checkConservation проверяет, что продано не больше заведённого остатка
// и что проданные единицы совпадают с позициями созданных заказов.
func (r *runner) checkConservation(client fulfillmentv1.FulfillmentServiceClient) (conservationReport, error) {
	result := conservationReport{
		ProductID: r.cfg.productID,
		Seeded:    int64(r.cfg.stock),
		Sold:      r.sold.Load(),
		SoldOut:   r.soldOut.Load(),
	}
	result.OK = r.cfg.skipSeed || result.Sold <= result.Seeded

	if !r.cfg.verify {
		return result, nil
	}

	var orders []*fulfillmentv1.Order
	if _, err := r.call("ListAllOrders", adminUserID, auth.RoleAdmin, "", func(ctx context.Context) error {
		resp, err := client.ListAllOrders(ctx, &fulfillmentv1.ListAllOrdersRequest{})
		if err == nil {
			orders = resp.GetOrders()
		}
		return err
	}); err != nil {
		return result, err
	}

	result.OrderUnits = unitsOrdered(orders, r.userPrefix(), r.cfg.productID)
	result.Verified = true
	result.OK = result.OK && result.OrderUnits == result.Sold
	return result, nil
}

func unitsOrdered(orders []*fulfillmentv1.Order, userPrefix, productID string) int64 {
	var units int64
	for _, order := range orders {
		if !strings.HasPrefix(order.UserId, userPrefix) {
			continue
		}
		for _, line := range order.Lines {
			if line.ProductId == productID {
				units += int64(line.Quantity)
			}
		}
	}
	return units
}

// callOutcome возвращает стабильную причину ошибки сервиса или код gRPC.
func callOutcome(err error) string {
	if err == nil {
		return codes.OK.String()
	}
	if reason := grpcsvc.ErrorReason(err); reason != "" {
		return reason
	}
	return status.Code(err).String()
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- path is an explicit CLI output parameter for local load-test reports.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(result report, cfg config) {
	fmt.Println("Load test summary")
	fmt.Printf("mode=%s run=%s total=%d success=%d failed=%d error_rate=%.4f\n",
		cfg.mode,
		runTarget(cfg),
		result.TotalScenarios,
		result.SuccessScenarios,
		result.FailedScenarios,
		result.ErrorRate,
	)
	fmt.Printf("duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	if c := result.Conservation; c != nil {
		fmt.Printf("stock product=%s seeded=%d sold=%d sold_out=%d orders_units=%d ok=%t\n",
			c.ProductID, c.Seeded, c.Sold, c.SoldOut, c.OrderUnits, c.OK)
	}
	fmt.Printf("scenario latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		result.ScenarioLatencyMs.Min,
		result.ScenarioLatencyMs.Avg,
		result.ScenarioLatencyMs.P50,
		result.ScenarioLatencyMs.P95,
		result.ScenarioLatencyMs.P99,
		result.ScenarioLatencyMs.Max,
	)

	methodNames := make([]string, 0, len(result.Methods))
	for name := range result.Methods {
		if name == "scenario" {
			continue
		}
		methodNames = append(methodNames, name)
	}
	sort.Strings(methodNames)
	for _, name := range methodNames {
		stats := result.Methods[name]
		fmt.Printf(
			"%s: calls=%d success=%d failed=%d error_rate=%.4f p95=%.2fms\n",
			name,
			stats.Calls,
			stats.Success,
			stats.Failed,
			stats.ErrorRate,
			stats.LatencyMs.P95,
		)
	}
}

func runTarget(cfg config) string {
	if cfg.duration <= 0 {
		return fmt.Sprintf("count:%d", cfg.total)
	}
	if cfg.totalSet {
		return fmt.Sprintf("duration:%s,max-total:%d", cfg.duration, cfg.total)
	}
	return fmt.Sprintf("duration:%s", cfg.duration)
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func ratio(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
