// Command dlq-reprocess сканирует DLQ и возвращает события заказов в топик событий.
// По умолчанию работает в режиме dry-run.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/outbox"
)

const (
	defaultReplayLimit = 100
	defaultIdleTimeout = 2 * time.Second
)

// Причины пропуска сообщения DLQ.
const (
	skipUnknownFormat = "unknown_format"
	skipInvalidEvent  = "invalid_event"
	skipFiltered      = "filtered"
	skipDuplicate     = "duplicate"
)

var errUnknownFormat = errors.New("message is neither an outbox nor a consumer dead letter")

type config struct {
	brokers     []string
	sourceTopic string
	targetTopic string
	eventType   string
	limit       int
	execute     bool
	fromNewest  bool
	idleTimeout time.Duration
}

// replayMessage: событие заказа, готовое к повторной публикации.
type replayMessage struct {
	topic     string
	key       string
	value     []byte
	eventType string
	outboxID  string
}

type offsetClient interface {
	GetOffset(topic string, partition int32, time int64) (int64, error)
	Partitions(topic string) ([]int32, error)
	Close() error
}

type partitionConsumer interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

type partitionConsumerSource interface {
	ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error)
	Close() error
}

type replayProducer interface {
	SendMessage(msg *sarama.ProducerMessage) (partition int32, offset int64, err error)
	Close() error
}

type saramaConsumer struct {
	sarama.Consumer
}

func (c saramaConsumer) ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error) {
	return c.Consumer.ConsumePartition(topic, partition, offset)
}

var newReplayDependencies = func(cfg config) (offsetClient, partitionConsumerSource, replayProducer, error) {
	clientConfig := sarama.NewConfig()
	clientConfig.Consumer.Return.Errors = true

	client, err := sarama.NewClient(cfg.brokers, clientConfig)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create kafka client: %w", err)
	}
	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	if !cfg.execute {
		return client, saramaConsumer{consumer}, nil, nil
	}

	producer, err := sarama.NewSyncProducer(cfg.brokers, kafka.NewProducerConfig())
	if err != nil {
		_ = consumer.Close()
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return client, saramaConsumer{consumer}, producer, nil
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	cfg, err := readConfig()
	if err != nil {
		fail("%v", err)
	}

	if err := run(context.Background(), cfg); err != nil {
		fail("dlq replay failed: %v", err)
	}
}

func readConfig() (config, error) {
	var (
		brokersRaw string
		cfg        config
	)

	flag.StringVar(&brokersRaw, "brokers", "", "Kafka brokers as comma-separated list (fallback: KAFKA_BROKERS)")
	flag.StringVar(&cfg.sourceTopic, "source-topic", kafka.TopicDeadLetterQueue, "DLQ source topic")
	flag.StringVar(&cfg.targetTopic, "target-topic", kafka.TopicFulfillmentEvents, "topic for replayed order events")
	flag.StringVar(&cfg.eventType, "event-type", "", "replay only this event type (OrderCreated or OrderStatusChanged)")
	flag.IntVar(&cfg.limit, "limit", defaultReplayLimit, "max number of DLQ messages to scan")
	flag.BoolVar(&cfg.execute, "execute", false, "publish replayed events; default is dry-run")
	flag.BoolVar(&cfg.fromNewest, "from-newest", false, "scan latest messages first (bounded by limit)")
	flag.DurationVar(&cfg.idleTimeout, "idle-timeout", defaultIdleTimeout, "idle timeout per partition")
	flag.Parse()

	if strings.TrimSpace(brokersRaw) == "" {
		brokersRaw = os.Getenv("KAFKA_BROKERS")
	}
	cfg.brokers = parseBrokers(brokersRaw)

	switch {
	case len(cfg.brokers) == 0:
		return config{}, errors.New("kafka brokers are required (-brokers or KAFKA_BROKERS)")
	case strings.TrimSpace(cfg.sourceTopic) == "":
		return config{}, errors.New("source-topic is required")
	case strings.TrimSpace(cfg.targetTopic) == "":
		return config{}, errors.New("target-topic is required")
	case cfg.sourceTopic == cfg.targetTopic:
		return config{}, errors.New("source-topic and target-topic must differ")
	case cfg.limit <= 0:
		return config{}, errors.New("limit must be > 0")
	case cfg.idleTimeout <= 0:
		return config{}, errors.New("idle-timeout must be > 0")
	}

	switch cfg.eventType {
	case "", domain.EventOrderCreated, domain.EventOrderStatusChanged:
	default:
		return config{}, fmt.Errorf("unsupported event-type %q", cfg.eventType)
	}

	return cfg, nil
}

func parseBrokers(raw string) []string {
	var brokers []string
	for _, chunk := range strings.Split(raw, ",") {
		if broker := strings.TrimSpace(chunk); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}

func run(ctx context.Context, cfg config) error {
	logger := log.WithFields(log.Fields{
		"source_topic": cfg.sourceTopic,
		"target_topic": cfg.targetTopic,
		"event_type":   cfg.eventType,
		"execute":      cfg.execute,
	})
	logger.WithField("limit", cfg.limit).Info("starting dlq replay")

	client, consumer, producer, err := newReplayDependencies(cfg)
	if err != nil {
		return err
	}
	defer closeAll(producer, consumer, client)

	summary, err := runReplay(ctx, cfg, client, consumer, producer)
	if err != nil {
		return err
	}

	fields := log.Fields{
		"scanned":  summary.scanned,
		"replayed": summary.replayed,
	}
	for reason, count := range summary.skipped {
		fields["skipped_"+reason] = count
	}
	logger.WithFields(fields).Info("dlq replay finished")
	return nil
}

func closeAll(closers ...interface{ Close() error }) {
	for _, closer := range closers {
		if closer == nil {
			continue
		}
		if err := closer.Close(); err != nil {
			log.WithError(err).Warn("failed to close kafka resource")
		}
	}
}

// replaySummary: итог прохода по DLQ.
type replaySummary struct {
	scanned  int
	replayed int
	skipped  map[string]int
}

// replayer решает судьбу каждого сообщения DLQ и публикует пригодные события.
type replayer struct {
	cfg      config
	producer replayProducer
	seen     map[string]struct{}
	summary  replaySummary
}

func newReplayer(cfg config, producer replayProducer) *replayer {
	return &replayer{
		cfg:      cfg,
		producer: producer,
		seen:     make(map[string]struct{}),
		summary:  replaySummary{skipped: make(map[string]int)},
	}
}

func (r *replayer) handle(msg *sarama.ConsumerMessage) error {
	r.summary.scanned++
	logger := log.WithFields(log.Fields{
		"partition": msg.Partition,
		"offset":    msg.Offset,
	})

	replay, err := decodeDeadLetter(msg.Value, r.cfg.targetTopic)
	if err != nil {
		reason := skipUnknownFormat
		if errors.Is(err, outbox.ErrUndeliverable) {
			reason = skipInvalidEvent
		}
		r.summary.skipped[reason]++
		logger.WithError(err).WithField("reason", reason).Warn("skip dlq message")
		return nil
	}

	logger = logger.WithFields(log.Fields{
		"outbox_id":  replay.outboxID,
		"event_type": replay.eventType,
		"order_id":   replay.key,
	})
	if r.cfg.eventType != "" && replay.eventType != r.cfg.eventType {
		r.summary.skipped[skipFiltered]++
		return nil
	}
	if _, ok := r.seen[replay.outboxID]; ok {
		r.summary.skipped[skipDuplicate]++
		logger.Debug("skip duplicate dead letter")
		return nil
	}
	r.seen[replay.outboxID] = struct{}{}

	if !r.cfg.execute {
		logger.WithField("target_topic", replay.topic).Info("dlq replay candidate")
		r.summary.replayed++
		return nil
	}
	if err := publishReplay(r.producer, replay); err != nil {
		return fmt.Errorf("replay %s: %w", replay.outboxID, err)
	}
	r.summary.replayed++
	return nil
}

func runReplay(ctx context.Context, cfg config, client offsetClient, consumer partitionConsumerSource, producer replayProducer) (replaySummary, error) {
	if client == nil || consumer == nil {
		return replaySummary{}, errors.New("kafka client and consumer are required")
	}
	if cfg.execute && producer == nil {
		return replaySummary{}, errors.New("producer is required in execute mode")
	}

	partitions, err := client.Partitions(cfg.sourceTopic)
	if err != nil {
		return replaySummary{}, fmt.Errorf("get partitions for topic %s: %w", cfg.sourceTopic, err)
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })

	r := newReplayer(cfg, producer)
	for _, partition := range partitions {
		remaining := cfg.limit - r.summary.scanned
		if remaining <= 0 {
			break
		}
		if err := scanPartition(ctx, client, consumer, cfg, partition, remaining, r.handle); err != nil {
			return r.summary, err
		}
	}
	return r.summary, nil
}

// scanPartition читает до limit сообщений, записанных в партицию к моменту старта.
func scanPartition(
	ctx context.Context,
	client offsetClient,
	consumer partitionConsumerSource,
	cfg config,
	partition int32,
	limit int,
	visit func(*sarama.ConsumerMessage) error,
) error {
	oldest, err := client.GetOffset(cfg.sourceTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return fmt.Errorf("get oldest offset for partition %d: %w", partition, err)
	}
	newest, err := client.GetOffset(cfg.sourceTopic, partition, sarama.OffsetNewest)
	if err != nil {
		return fmt.Errorf("get newest offset for partition %d: %w", partition, err)
	}
	if newest <= oldest {
		return nil
	}

	start := oldest
	if cfg.fromNewest {
		start = max(oldest, newest-int64(limit))
	}

	pc, err := consumer.ConsumePartition(cfg.sourceTopic, partition, start)
	if err != nil {
		return fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = pc.Close() }()

	idle := time.NewTimer(cfg.idleTimeout)
	defer idle.Stop()

	for scanned := 0; scanned < limit; {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case consumerErr := <-pc.Errors():
			if consumerErr != nil {
				return fmt.Errorf("partition %d consumer error: %w", partition, consumerErr)
			}
		case msg, ok := <-pc.Messages():
			if !ok || msg == nil || msg.Offset >= newest {
				return nil
			}
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(cfg.idleTimeout)

			scanned++
			if err := visit(msg); err != nil {
				return err
			}
			if msg.Offset+1 >= newest {
				return nil
			}
		case <-idle.C:
			return nil
		}
	}
	return nil
}

// decodeDeadLetter разбирает запись DLQ обоих форматов и проверяет восстановленное событие.
// Ошибка валидации оборачивает outbox.ErrUndeliverable.
func decodeDeadLetter(value []byte, targetTopic string) (replayMessage, error) {
	var consumerLetter kafka.DeadLetter
	if err := json.Unmarshal(value, &consumerLetter); err == nil && consumerLetter.OriginalValue != "" {
		return consumerReplay(consumerLetter, targetTopic)
	}

	var envelope kafka.Envelope
	if err := json.Unmarshal(value, &envelope); err != nil || len(envelope.Payload) == 0 {
		return replayMessage{}, errUnknownFormat
	}
	return outboxReplay(envelope, targetTopic)
}

// consumerReplay: consumer положил в DLQ исходный конверт, он уходит в исходный топик как есть.
func consumerReplay(letter kafka.DeadLetter, targetTopic string) (replayMessage, error) {
	envelope, err := kafka.ParseEnvelope(&sarama.ConsumerMessage{Value: []byte(letter.OriginalValue)})
	if err != nil {
		return replayMessage{}, fmt.Errorf("%w: consumer dead letter: %v", outbox.ErrUndeliverable, err)
	}
	if err := outbox.Validate(envelope.Message()); err != nil {
		return replayMessage{}, err
	}

	topic := strings.TrimSpace(letter.OriginalTopic)
	if topic == "" {
		topic = targetTopic
	}
	key := letter.OriginalKey
	if key == "" {
		key = envelope.Key()
	}
	return replayMessage{
		topic:     topic,
		key:       key,
		value:     []byte(letter.OriginalValue),
		eventType: envelope.EventType,
		outboxID:  envelope.ID,
	}, nil
}

// outboxReplay: outbox-воркер завернул DeadLetter в конверт, событие собирается заново.
func outboxReplay(envelope kafka.Envelope, targetTopic string) (replayMessage, error) {
	var letter outbox.DeadLetter
	if err := json.Unmarshal(envelope.Payload, &letter); err != nil {
		return replayMessage{}, fmt.Errorf("decode outbox dead letter: %w", err)
	}
	if len(letter.Payload) == 0 {
		return replayMessage{}, errors.New("outbox dead letter has no original payload")
	}

	event := letter.Message()
	if event.ID == "" {
		event.ID = envelope.ID
	}
	if event.AggregateType == "" {
		event.AggregateType = envelope.AggregateType
	}
	if event.AggregateID == "" {
		event.AggregateID = envelope.AggregateID
	}
	if event.EventType == "" {
		event.EventType = envelope.EventType
	}
	if err := outbox.Validate(event); err != nil {
		return replayMessage{}, err
	}

	replay := kafka.NewEnvelope(event, time.Now())
	encoded, err := json.Marshal(replay)
	if err != nil {
		return replayMessage{}, fmt.Errorf("encode replay envelope: %w", err)
	}
	return replayMessage{
		topic:     targetTopic,
		key:       replay.Key(),
		value:     encoded,
		eventType: replay.EventType,
		outboxID:  replay.ID,
	}, nil
}

func publishReplay(producer replayProducer, msg replayMessage) error {
	if producer == nil {
		return errors.New("producer is nil")
	}

	_, _, err := producer.SendMessage(&sarama.ProducerMessage{
		Topic: msg.topic,
		Key:   sarama.StringEncoder(msg.key),
		Value: sarama.ByteEncoder(msg.value),
		Headers: []sarama.RecordHeader{
			{Key: []byte(kafka.HeaderEventType), Value: []byte(msg.eventType)},
			{Key: []byte(kafka.HeaderOutboxID), Value: []byte(msg.outboxID)},
		},
		Timestamp: time.Now().UTC(),
	})
	return err
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
