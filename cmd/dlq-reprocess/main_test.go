package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/outbox"
)

var failedAt = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func createdEvent(t *testing.T, outboxID, orderID string) domain.OutboxMessage {
	t.Helper()
	return eventMessage(t, outboxID, orderID, domain.EventOrderCreated, domain.OrderCreatedEvent{
		OrderID: orderID,
		UserID:  "user-1",
		Status:  domain.OrderStatusPending,
		Total:   decimal.RequireFromString("19.90"),
		Lines: []domain.OrderCreatedLine{{
			ProductID:  "sku-book",
			Quantity:   1,
			UnitPrice:  decimal.RequireFromString("19.90"),
			StockAfter: 4,
		}},
		CreatedAt: failedAt,
	})
}

func paidEvent(t *testing.T, outboxID, orderID string) domain.OutboxMessage {
	t.Helper()
	return eventMessage(t, outboxID, orderID, domain.EventOrderStatusChanged, domain.OrderStatusChangedEvent{
		OrderID:   orderID,
		UserID:    "user-1",
		From:      domain.OrderStatusPending,
		To:        domain.OrderStatusPaid,
		Total:     decimal.RequireFromString("19.90"),
		ChangedAt: failedAt,
	})
}

func eventMessage(t *testing.T, outboxID, orderID, eventType string, event any) domain.OutboxMessage {
	t.Helper()
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal %s: %v", eventType, err)
	}
	return domain.OutboxMessage{
		ID:            outboxID,
		AggregateType: domain.AggregateTypeOrder,
		AggregateID:   orderID,
		EventType:     eventType,
		Payload:       payload,
	}
}

// outboxLetter кодирует запись DLQ так, как её публикует outbox-воркер.
func outboxLetter(t *testing.T, event domain.OutboxMessage, reason string) []byte {
	t.Helper()
	letter, err := json.Marshal(outbox.DeadLetter{
		OutboxID:       event.ID,
		AggregateType:  event.AggregateType,
		AggregateID:    event.AggregateID,
		EventType:      event.EventType,
		Payload:        event.Payload,
		Reason:         reason,
		Attempts:       3,
		PublishError:   "broker unavailable",
		DLQPublishedAt: failedAt,
	})
	if err != nil {
		t.Fatalf("marshal dead letter: %v", err)
	}
	wrapped := event
	wrapped.Payload = letter
	raw, err := json.Marshal(kafka.NewEnvelope(wrapped, failedAt))
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return raw
}

// consumerLetter кодирует запись DLQ так, как её публикует consumer проекции.
func consumerLetter(t *testing.T, event domain.OutboxMessage) []byte {
	t.Helper()
	original, err := json.Marshal(kafka.NewEnvelope(event, failedAt))
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	raw, err := json.Marshal(kafka.DeadLetter{
		OriginalTopic: kafka.TopicFulfillmentEvents,
		OriginalKey:   event.AggregateID,
		OriginalValue: string(original),
		ErrorMessage:  "projection unavailable",
		RetryCount:    3,
	})
	if err != nil {
		t.Fatalf("marshal consumer dead letter: %v", err)
	}
	return raw
}

func baseConfig() config {
	return config{
		sourceTopic: kafka.TopicDeadLetterQueue,
		targetTopic: kafka.TopicFulfillmentEvents,
		limit:       100,
		idleTimeout: 20 * time.Millisecond,
	}
}

func TestReadConfig_FromFlags(t *testing.T) {
	withFlagArgs(t, []string{
		"-brokers=broker-1:9092, ,broker-2:9092",
		"-event-type=OrderStatusChanged",
		"-limit=10",
		"-execute=true",
		"-from-newest=true",
		"-idle-timeout=3s",
	}, func() {
		cfg, err := readConfig()
		if err != nil {
			t.Fatalf("readConfig failed: %v", err)
		}
		if strings.Join(cfg.brokers, ",") != "broker-1:9092,broker-2:9092" {
			t.Fatalf("unexpected brokers: %v", cfg.brokers)
		}
		if cfg.sourceTopic != kafka.TopicDeadLetterQueue || cfg.targetTopic != kafka.TopicFulfillmentEvents {
			t.Fatalf("unexpected default topics: %s -> %s", cfg.sourceTopic, cfg.targetTopic)
		}
		if cfg.eventType != domain.EventOrderStatusChanged || cfg.limit != 10 || !cfg.execute || !cfg.fromNewest {
			t.Fatalf("unexpected config: %+v", cfg)
		}
		if cfg.idleTimeout != 3*time.Second {
			t.Fatalf("unexpected idle-timeout: %s", cfg.idleTimeout)
		}
	})
}

func TestReadConfig_BrokersFromEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "kafka:9092")
	withFlagArgs(t, nil, func() {
		cfg, err := readConfig()
		if err != nil {
			t.Fatalf("readConfig failed: %v", err)
		}
		if len(cfg.brokers) != 1 || cfg.brokers[0] != "kafka:9092" {
			t.Fatalf("unexpected brokers: %v", cfg.brokers)
		}
	})
}

func TestReadConfig_Rejects(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")

	cases := map[string]struct {
		args []string
		want string
	}{
		"no brokers":         {args: []string{"-brokers="}, want: "kafka brokers are required"},
		"empty source":       {args: []string{"-brokers=b:9092", "-source-topic="}, want: "source-topic is required"},
		"empty target":       {args: []string{"-brokers=b:9092", "-target-topic="}, want: "target-topic is required"},
		"replay into dlq":    {args: []string{"-brokers=b:9092", "-target-topic=" + kafka.TopicDeadLetterQueue}, want: "must differ"},
		"zero limit":         {args: []string{"-brokers=b:9092", "-limit=0"}, want: "limit must be > 0"},
		"zero idle timeout":  {args: []string{"-brokers=b:9092", "-idle-timeout=0s"}, want: "idle-timeout must be > 0"},
		"unknown event type": {args: []string{"-brokers=b:9092", "-event-type=OrderRefunded"}, want: "unsupported event-type"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			withFlagArgs(t, tc.args, func() {
				_, err := readConfig()
				if err == nil || !strings.Contains(err.Error(), tc.want) {
					t.Fatalf("expected %q, got %v", tc.want, err)
				}
			})
		})
	}
}

func TestDecodeDeadLetter_OutboxLetterRebuildsEnvelope(t *testing.T) {
	event := paidEvent(t, "outbox-1", "order-1")

	replay, err := decodeDeadLetter(outboxLetter(t, event, outbox.ReasonExhausted), kafka.TopicFulfillmentEvents)
	if err != nil {
		t.Fatalf("decodeDeadLetter failed: %v", err)
	}
	if replay.topic != kafka.TopicFulfillmentEvents || replay.key != "order-1" || replay.outboxID != "outbox-1" {
		t.Fatalf("unexpected replay: %+v", replay)
	}

	envelope, err := kafka.ParseEnvelope(&sarama.ConsumerMessage{Value: replay.value})
	if err != nil {
		t.Fatalf("replayed value must be an envelope: %v", err)
	}
	changed, err := envelope.OrderStatusChanged()
	if err != nil {
		t.Fatalf("decode replayed event: %v", err)
	}
	if changed.OrderID != "order-1" || changed.To != domain.OrderStatusPaid {
		t.Fatalf("unexpected replayed event: %+v", changed)
	}
}

func TestDecodeDeadLetter_ConsumerLetterKeepsOriginal(t *testing.T) {
	event := createdEvent(t, "outbox-2", "order-2")
	raw := consumerLetter(t, event)

	replay, err := decodeDeadLetter(raw, "fallback-topic")
	if err != nil {
		t.Fatalf("decodeDeadLetter failed: %v", err)
	}
	if replay.topic != kafka.TopicFulfillmentEvents || replay.key != "order-2" {
		t.Fatalf("consumer letter must go back to its original topic: %+v", replay)
	}
	if replay.eventType != domain.EventOrderCreated || replay.outboxID != "outbox-2" {
		t.Fatalf("unexpected replay: %+v", replay)
	}
}

func TestDecodeDeadLetter_RejectsBrokenEvents(t *testing.T) {
	broken := createdEvent(t, "outbox-3", "order-3")
	broken.Payload = []byte(`"{not json"`)

	mismatched := paidEvent(t, "outbox-4", "order-4")
	mismatched.AggregateID = "order-5"

	refunded := paidEvent(t, "outbox-6", "order-6")
	refunded.EventType = "OrderRefunded"

	cases := map[string][]byte{
		"rejected payload":   outboxLetter(t, broken, outbox.ReasonRejected),
		"foreign aggregate":  outboxLetter(t, mismatched, outbox.ReasonExhausted),
		"unknown event type": consumerLetter(t, refunded),
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := decodeDeadLetter(raw, kafka.TopicFulfillmentEvents); !errors.Is(err, outbox.ErrUndeliverable) {
				t.Fatalf("expected ErrUndeliverable, got %v", err)
			}
		})
	}

	if _, err := decodeDeadLetter([]byte(`{"foo":"bar"}`), kafka.TopicFulfillmentEvents); !errors.Is(err, errUnknownFormat) {
		t.Fatalf("expected errUnknownFormat, got %v", err)
	}
}

func TestRunReplay_DryRunCountsSkips(t *testing.T) {
	created := createdEvent(t, "outbox-10", "order-10")
	broken := createdEvent(t, "outbox-11", "order-11")
	broken.Payload = []byte(`{"order_id":"order-11","lines":[]}`)

	client := &stubOffsetClient{
		partitions: []int32{1, 0},
		offsets: map[int32]offsetRange{
			0: {oldest: 0, newest: 4},
			1: {oldest: 0, newest: 1},
		},
	}
	consumer := &stubPartitionConsumerSource{
		consumers: map[int32]partitionConsumer{
			0: closedPartitionConsumer(0,
				outboxLetter(t, created, outbox.ReasonExhausted),
				consumerLetter(t, created),
				outboxLetter(t, broken, outbox.ReasonRejected),
				[]byte(`plain text`),
			),
			1: closedPartitionConsumer(1, outboxLetter(t, paidEvent(t, "outbox-12", "order-10"), outbox.ReasonExhausted)),
		},
	}

	summary, err := runReplay(context.Background(), baseConfig(), client, consumer, nil)
	if err != nil {
		t.Fatalf("runReplay failed: %v", err)
	}
	if summary.scanned != 5 || summary.replayed != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	want := map[string]int{skipDuplicate: 1, skipInvalidEvent: 1, skipUnknownFormat: 1}
	for reason, count := range want {
		if summary.skipped[reason] != count {
			t.Fatalf("expected %d %s skips, got %v", count, reason, summary.skipped)
		}
	}
	if len(consumer.calls) != 2 || consumer.calls[0].partition != 0 {
		t.Fatalf("partitions must be scanned in order, got %+v", consumer.calls)
	}
}

func TestRunReplay_ExecutePublishesFilteredEvents(t *testing.T) {
	client := &stubOffsetClient{
		partitions: []int32{0},
		offsets:    map[int32]offsetRange{0: {oldest: 0, newest: 2}},
	}
	consumer := &stubPartitionConsumerSource{
		consumers: map[int32]partitionConsumer{
			0: closedPartitionConsumer(0,
				outboxLetter(t, createdEvent(t, "outbox-20", "order-20"), outbox.ReasonExhausted),
				outboxLetter(t, paidEvent(t, "outbox-21", "order-20"), outbox.ReasonExhausted),
			),
		},
	}
	producer := &stubReplayProducer{}

	cfg := baseConfig()
	cfg.execute = true
	cfg.eventType = domain.EventOrderStatusChanged

	summary, err := runReplay(context.Background(), cfg, client, consumer, producer)
	if err != nil {
		t.Fatalf("runReplay failed: %v", err)
	}
	if summary.replayed != 1 || summary.skipped[skipFiltered] != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(producer.sent) != 1 {
		t.Fatalf("expected one published event, got %d", len(producer.sent))
	}

	msg := producer.sent[0]
	if msg.Topic != kafka.TopicFulfillmentEvents {
		t.Fatalf("unexpected topic %s", msg.Topic)
	}
	if key, _ := msg.Key.Encode(); string(key) != "order-20" {
		t.Fatalf("replay must keep the order partition key, got %s", key)
	}
	headers := map[string]string{}
	for _, header := range msg.Headers {
		headers[string(header.Key)] = string(header.Value)
	}
	if headers[kafka.HeaderEventType] != domain.EventOrderStatusChanged || headers[kafka.HeaderOutboxID] != "outbox-21" {
		t.Fatalf("unexpected headers: %v", headers)
	}
}

func TestRunReplay_LimitSpansPartitions(t *testing.T) {
	client := &stubOffsetClient{
		partitions: []int32{2, 0},
		offsets: map[int32]offsetRange{
			0: {oldest: 0, newest: 1},
			2: {oldest: 0, newest: 1},
		},
	}
	consumer := &stubPartitionConsumerSource{
		consumers: map[int32]partitionConsumer{
			0: closedPartitionConsumer(0, outboxLetter(t, createdEvent(t, "outbox-30", "order-30"), outbox.ReasonExhausted)),
			2: closedPartitionConsumer(2, outboxLetter(t, createdEvent(t, "outbox-31", "order-31"), outbox.ReasonExhausted)),
		},
	}

	cfg := baseConfig()
	cfg.limit = 1
	summary, err := runReplay(context.Background(), cfg, client, consumer, nil)
	if err != nil {
		t.Fatalf("runReplay failed: %v", err)
	}
	if summary.scanned != 1 || len(consumer.calls) != 1 || consumer.calls[0].partition != 0 {
		t.Fatalf("limit must stop after the first sorted partition: %+v, calls=%+v", summary, consumer.calls)
	}
}

func TestRunReplay_Errors(t *testing.T) {
	cfg := baseConfig()

	if _, err := runReplay(context.Background(), cfg, nil, nil, nil); err == nil {
		t.Fatal("expected missing dependencies error")
	}

	executeCfg := cfg
	executeCfg.execute = true
	if _, err := runReplay(context.Background(), executeCfg, &stubOffsetClient{}, &stubPartitionConsumerSource{}, nil); err == nil {
		t.Fatal("execute mode must require a producer")
	}

	partitionsErr := &stubOffsetClient{partitionsErr: errors.New("metadata")}
	if _, err := runReplay(context.Background(), cfg, partitionsErr, &stubPartitionConsumerSource{}, nil); err == nil {
		t.Fatal("expected partitions error")
	}

	client := &stubOffsetClient{
		partitions: []int32{0},
		offsets:    map[int32]offsetRange{0: {oldest: 0, newest: 1}},
	}
	consumer := &stubPartitionConsumerSource{
		consumers: map[int32]partitionConsumer{
			0: closedPartitionConsumer(0, outboxLetter(t, createdEvent(t, "outbox-40", "order-40"), outbox.ReasonExhausted)),
		},
	}
	producer := &stubReplayProducer{sendErr: errors.New("not enough replicas")}
	if _, err := runReplay(context.Background(), executeCfg, client, consumer, producer); err == nil || !strings.Contains(err.Error(), "outbox-40") {
		t.Fatalf("expected send error naming the event, got %v", err)
	}
}

func TestScanPartition_FromNewestStartsNearTail(t *testing.T) {
	client := &stubOffsetClient{offsets: map[int32]offsetRange{0: {oldest: 2, newest: 10}}}
	consumer := &stubPartitionConsumerSource{
		consumers: map[int32]partitionConsumer{0: closedPartitionConsumer(0)},
	}

	cfg := baseConfig()
	cfg.fromNewest = true
	if err := scanPartition(context.Background(), client, consumer, cfg, 0, 3, func(*sarama.ConsumerMessage) error { return nil }); err != nil {
		t.Fatalf("scanPartition failed: %v", err)
	}
	if len(consumer.calls) != 1 || consumer.calls[0].offset != 7 {
		t.Fatalf("expected start offset 7, got %+v", consumer.calls)
	}

	consumer.calls = nil
	if err := scanPartition(context.Background(), client, consumer, cfg, 0, 50, func(*sarama.ConsumerMessage) error { return nil }); err != nil {
		t.Fatalf("scanPartition failed: %v", err)
	}
	if consumer.calls[0].offset != 2 {
		t.Fatalf("start offset must not go below oldest, got %d", consumer.calls[0].offset)
	}
}

func TestScanPartition_StopsOnIdleErrorAndCancel(t *testing.T) {
	client := &stubOffsetClient{offsets: map[int32]offsetRange{0: {oldest: 0, newest: 5}}}
	cfg := baseConfig()
	cfg.idleTimeout = 10 * time.Millisecond
	visit := func(*sarama.ConsumerMessage) error { return nil }

	idle := openPartitionConsumer()
	defer idle.closeChannels()
	if err := scanPartition(context.Background(), client, singleConsumer(idle), cfg, 0, 5, visit); err != nil {
		t.Fatalf("idle partition must end the scan quietly, got %v", err)
	}

	failing := openPartitionConsumer()
	failing.errors <- &sarama.ConsumerError{Err: errors.New("offset out of range")}
	defer failing.closeChannels()
	if err := scanPartition(context.Background(), client, singleConsumer(failing), cfg, 0, 5, visit); err == nil {
		t.Fatal("expected consumer error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	canceled := openPartitionConsumer()
	defer canceled.closeChannels()
	cfg.idleTimeout = time.Minute
	if err := scanPartition(ctx, client, singleConsumer(canceled), cfg, 0, 5, visit); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}

	clientErr := &stubOffsetClient{offsetErr: map[int32]error{0: errors.New("leader not available")}}
	if err := scanPartition(context.Background(), clientErr, &stubPartitionConsumerSource{}, cfg, 0, 5, visit); err == nil {
		t.Fatal("expected offset error")
	}
}

func TestRun_ClosesDependencies(t *testing.T) {
	oldDeps := newReplayDependencies
	defer func() { newReplayDependencies = oldDeps }()

	newReplayDependencies = func(config) (offsetClient, partitionConsumerSource, replayProducer, error) {
		return nil, nil, nil, errors.New("brokers unreachable")
	}
	if err := run(context.Background(), baseConfig()); err == nil || !strings.Contains(err.Error(), "brokers unreachable") {
		t.Fatalf("expected dependency error, got %v", err)
	}

	client := &stubOffsetClient{
		partitions: []int32{0},
		offsets:    map[int32]offsetRange{0: {oldest: 0, newest: 1}},
	}
	consumer := &stubPartitionConsumerSource{
		consumers: map[int32]partitionConsumer{
			0: closedPartitionConsumer(0, outboxLetter(t, createdEvent(t, "outbox-50", "order-50"), outbox.ReasonExhausted)),
		},
	}
	producer := &stubReplayProducer{}
	newReplayDependencies = func(config) (offsetClient, partitionConsumerSource, replayProducer, error) {
		return client, consumer, producer, nil
	}

	cfg := baseConfig()
	cfg.execute = true
	if err := run(context.Background(), cfg); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(producer.sent) != 1 {
		t.Fatalf("expected the event to be replayed, got %d", len(producer.sent))
	}
	if !client.closed || !consumer.closed || !producer.closed {
		t.Fatalf("expected all deps to be closed: client=%v consumer=%v producer=%v", client.closed, consumer.closed, producer.closed)
	}
}

func TestMain_DryRunWithStubbedDeps(t *testing.T) {
	oldDeps := newReplayDependencies
	defer func() { newReplayDependencies = oldDeps }()

	client := &stubOffsetClient{
		partitions: []int32{0},
		offsets:    map[int32]offsetRange{0: {oldest: 0, newest: 1}},
	}
	consumer := &stubPartitionConsumerSource{
		consumers: map[int32]partitionConsumer{
			0: closedPartitionConsumer(0, consumerLetter(t, paidEvent(t, "outbox-60", "order-60"))),
		},
	}
	newReplayDependencies = func(config) (offsetClient, partitionConsumerSource, replayProducer, error) {
		return client, consumer, nil, nil
	}

	withFlagArgs(t, []string{"-brokers=broker:9092", "-limit=1", "-idle-timeout=50ms"}, main)

	if !client.closed || !consumer.closed {
		t.Fatal("dry run must close kafka client and consumer")
	}
}

func TestFailExits(t *testing.T) {
	if os.Getenv("DLQ_TEST_FAIL_EXIT") == "1" {
		fail("boom")
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestFailExits")
	cmd.Env = append(os.Environ(), "DLQ_TEST_FAIL_EXIT=1")
	err := cmd.Run()
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode() == 0 {
		t.Fatalf("expected non-zero exit code, got %v", err)
	}
}

func withFlagArgs(t *testing.T, args []string, fn func()) {
	t.Helper()

	oldArgs := os.Args
	oldCommandLine := flag.CommandLine
	defer func() {
		os.Args = oldArgs
		flag.CommandLine = oldCommandLine
	}()

	os.Args = append([]string{"dlq-reprocess"}, args...)
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)

	fn()
}

type offsetRange struct {
	oldest int64
	newest int64
}

type stubOffsetClient struct {
	partitions    []int32
	partitionsErr error
	offsets       map[int32]offsetRange
	offsetErr     map[int32]error
	closed        bool
}

func (s *stubOffsetClient) GetOffset(_ string, partition int32, marker int64) (int64, error) {
	if err, ok := s.offsetErr[partition]; ok {
		return 0, err
	}
	r := s.offsets[partition]
	switch marker {
	case sarama.OffsetOldest:
		return r.oldest, nil
	case sarama.OffsetNewest:
		return r.newest, nil
	default:
		return 0, fmt.Errorf("unsupported marker %d", marker)
	}
}

func (s *stubOffsetClient) Partitions(string) ([]int32, error) {
	if s.partitionsErr != nil {
		return nil, s.partitionsErr
	}
	return append([]int32(nil), s.partitions...), nil
}

func (s *stubOffsetClient) Close() error {
	s.closed = true
	return nil
}

type consumeCall struct {
	partition int32
	offset    int64
}

type stubPartitionConsumerSource struct {
	consumers map[int32]partitionConsumer
	calls     []consumeCall
	closed    bool
}

func singleConsumer(pc partitionConsumer) *stubPartitionConsumerSource {
	return &stubPartitionConsumerSource{consumers: map[int32]partitionConsumer{0: pc}}
}

func (s *stubPartitionConsumerSource) ConsumePartition(_ string, partition int32, offset int64) (partitionConsumer, error) {
	s.calls = append(s.calls, consumeCall{partition: partition, offset: offset})
	pc, ok := s.consumers[partition]
	if !ok {
		return nil, fmt.Errorf("partition %d not configured", partition)
	}
	return pc, nil
}

func (s *stubPartitionConsumerSource) Close() error {
	s.closed = true
	return nil
}

type stubPartitionConsumer struct {
	messages chan *sarama.ConsumerMessage
	errors   chan *sarama.ConsumerError
}

func (s *stubPartitionConsumer) Messages() <-chan *sarama.ConsumerMessage {
	return s.messages
}

func (s *stubPartitionConsumer) Errors() <-chan *sarama.ConsumerError {
	return s.errors
}

func (s *stubPartitionConsumer) Close() error {
	return nil
}

func (s *stubPartitionConsumer) closeChannels() {
	close(s.messages)
	close(s.errors)
}

// closedPartitionConsumer отдаёт values с последовательными offset начиная с 0.
func closedPartitionConsumer(partition int32, values ...[]byte) *stubPartitionConsumer {
	pc := &stubPartitionConsumer{
		messages: make(chan *sarama.ConsumerMessage, len(values)),
		errors:   make(chan *sarama.ConsumerError),
	}
	for i, value := range values {
		pc.messages <- &sarama.ConsumerMessage{
			Topic:     kafka.TopicDeadLetterQueue,
			Partition: partition,
			Offset:    int64(i),
			Value:     value,
		}
	}
	pc.closeChannels()
	return pc
}

func openPartitionConsumer() *stubPartitionConsumer {
	return &stubPartitionConsumer{
		messages: make(chan *sarama.ConsumerMessage),
		errors:   make(chan *sarama.ConsumerError, 1),
	}
}

type stubReplayProducer struct {
	sendErr error
	sent    []*sarama.ProducerMessage
	closed  bool
}

func (s *stubReplayProducer) SendMessage(msg *sarama.ProducerMessage) (int32, int64, error) {
	if s.sendErr != nil {
		return 0, 0, s.sendErr
	}
	s.sent = append(s.sent, msg)
	return 0, int64(len(s.sent)), nil
}

func (s *stubReplayProducer) Close() error {
	s.closed = true
	return nil
}
