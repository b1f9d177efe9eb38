package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	pkglog "github.com/weiawesome/wes-io-live/live-room-service/pkg/log"
)

// ConfluentProducer implements LiveEventProducer using confluent-kafka-go.
type ConfluentProducer struct {
	producer *kafka.Producer
	topic    string
	doneCh   chan struct{}
}

// NewConfluentProducer creates a new Kafka producer for live events.
func NewConfluentProducer(brokers, topic string, partitions int) (*ConfluentProducer, error) {
	if err := ensureTopic(brokers, topic, partitions); err != nil {
		l := pkglog.L()
		l.Warn().Err(err).Str("topic", topic).Msg("failed to ensure topic, may already exist")
	}

	p, err := kafka.NewProducer(producerConfig(brokers))
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	cp := &ConfluentProducer{
		producer: p,
		topic:    topic,
		doneCh:   make(chan struct{}),
	}

	go cp.deliveryReportHandler()

	return cp, nil
}

// producerConfig favours per-room ordering over throughput: a single in-flight
// request per broker keeps retried live events in order.
func producerConfig(brokers string) *kafka.ConfigMap {
	return &kafka.ConfigMap{
		"bootstrap.servers":                     brokers,
		"client.id":                             "live-room-service",
		"acks":                                  "1",
		"linger.ms":                             5,
		"compression.type":                      "snappy",
		"max.in.flight.requests.per.connection": 1,
	}
}

func ensureTopic(brokers, topic string, partitions int) error {
	admin, err := kafka.NewAdminClient(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer admin.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	results, err := admin.CreateTopics(ctx, []kafka.TopicSpecification{
		{
			Topic:             topic,
			NumPartitions:     partitions,
			ReplicationFactor: 1,
		},
	})
	if err != nil {
		return err
	}

	for _, result := range results {
		if result.Error.Code() != kafka.ErrNoError && result.Error.Code() != kafka.ErrTopicAlreadyExists {
			return fmt.Errorf("failed to create topic %s: %v", result.Topic, result.Error)
		}
	}

	return nil
}

func (cp *ConfluentProducer) deliveryReportHandler() {
	l := pkglog.L()
	for e := range cp.producer.Events() {
		if ev, ok := e.(*kafka.Message); ok && ev.TopicPartition.Error != nil {
			l.Error().Err(ev.TopicPartition.Error).Str(pkglog.FieldRoomID, string(ev.Key)).Msg("kafka delivery failed")
		}
	}
	close(cp.doneCh)
}

// newLiveEventMessage encodes event as JSON keyed by room id, so all events
// of one room land on the same partition in order.
func newLiveEventMessage(topic string, event *LiveEvent, now time.Time) (*kafka.Message, error) {
	if event.RoomID == "" {
		return nil, fmt.Errorf("live event %q has no room id", event.Type)
	}
	if event.Timestamp == 0 {
		event.Timestamp = now.UnixMilli()
	}
	value, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal live event: %w", err)
	}
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: kafka.PartitionAny,
		},
		Key:       []byte(event.RoomID),
		Value:     value,
		Timestamp: time.UnixMilli(event.Timestamp),
		Headers:   []kafka.Header{{Key: "event-type", Value: []byte(event.Type)}},
	}, nil
}

// Produce queues event for delivery. Delivery failures are logged by the
// report handler, not returned here.
func (cp *ConfluentProducer) Produce(ctx context.Context, event *LiveEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := newLiveEventMessage(cp.topic, event, time.Now())
	if err != nil {
		return err
	}
	if err := cp.producer.Produce(msg, nil); err != nil {
		return fmt.Errorf("failed to produce %s for room %s: %w", event.Type, event.RoomID, err)
	}
	return nil
}

// Close flushes pending messages and closes the producer.
func (cp *ConfluentProducer) Close() error {
	cp.producer.Flush(5000)
	cp.producer.Close()
	<-cp.doneCh
	return nil
}
