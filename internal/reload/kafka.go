package reload

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the part of *kafka.Writer we use.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaReloader struct {
	topic  string
	writer messageWriter
}

// NewKafka publishes a sync.completed message, keyed by sheet name, for index
// replicas that consume the topic.
func NewKafka(brokers []string, topic string) Reloader {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: false,
	}
	return &kafkaReloader{topic: topic, writer: w}
}

func (k *kafkaReloader) Name() string { return "kafka" }

type syncCompleted struct {
	Type string `json:"type"`
	Notice
}

func (k *kafkaReloader) Reload(ctx context.Context, n Notice) error {
	b, err := json.Marshal(syncCompleted{Type: "sync.completed", Notice: n})
	if err != nil {
		return fmt.Errorf("reload: marshal: %w", err)
	}
	if err := k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(n.Sheet), Value: b}); err != nil {
		return fmt.Errorf("reload: publish %s: %w", k.topic, err)
	}
	return nil
}

// Close flushes the underlying writer.
func (k *kafkaReloader) Close() error { return k.writer.Close() }
