package record

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/wonny/fwtrader/internal/contracts"
)

// messageWriter is the subset of *kafka.Writer the recorder uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaRecorder publishes cycle records to a topic, keyed by strategy ID
// 같은 전략의 레코드는 같은 파티션 → 순서 유지
type KafkaRecorder struct {
	writer messageWriter
	topic  string
}

// NewKafkaRecorder creates a producer for brokers/topic
func NewKafkaRecorder(brokers []string, topic string) (*KafkaRecorder, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic is required")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Gzip,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		BatchTimeout: 100 * time.Millisecond,
	}
	return &KafkaRecorder{writer: writer, topic: topic}, nil
}

func newKafkaRecorderWithWriter(w messageWriter, topic string) *KafkaRecorder {
	return &KafkaRecorder{writer: w, topic: topic}
}

func (k *KafkaRecorder) Record(ctx context.Context, rec *contracts.CycleRecord) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal cycle record: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(rec.StrategyID),
		Value: value,
		Time:  rec.FinishedAt,
		Headers: []kafka.Header{
			{Key: "cycle_id", Value: []byte(rec.ID)},
			{Key: "status", Value: []byte(rec.Status)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish cycle record to %s: %w", k.topic, err)
	}
	return nil
}

// Close flushes and closes the writer
func (k *KafkaRecorder) Close() error {
	return k.writer.Close()
}
