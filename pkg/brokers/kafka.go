package brokers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Kafka публикует записи в topic. Ключ сообщения - идентификатор запуска,
// поэтому записи одного запуска попадают в одну партицию и сохраняют порядок.
type Kafka struct {
	config Config
	writer *kafka.Writer
}

func NewKafka(cfg Config) (*Kafka, error) {
	switch {
	case cfg.Topic == "":
		return nil, errors.New("topic name is required for Kafka")
	case len(cfg.Brokers) == 0:
		return nil, errors.New("at least one broker address is required for Kafka")
	}
	return &Kafka{config: cfg}, nil
}

// Connect проверяет, что topic существует, и создает синхронный writer
func (k *Kafka) Connect(ctx context.Context) error {
	if err := k.Ping(ctx); err != nil {
		return err
	}
	k.writer = &kafka.Writer{
		Addr:         kafka.TCP(k.config.Brokers...),
		Topic:        k.config.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
	}
	return nil
}

func (k *Kafka) Close() error {
	if k.writer == nil {
		return nil
	}
	err := k.writer.Close()
	k.writer = nil
	if err != nil {
		return fmt.Errorf("failed to close Kafka writer: %w", err)
	}
	return nil
}

func (k *Kafka) Send(ctx context.Context, key string, message []byte) error {
	if k.writer == nil {
		return errors.New("not connected to Kafka")
	}

	err := k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: message,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte(k.config.ContentType)},
			{Key: "producer", Value: []byte("tdtpscrub")},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to write message to topic %s: %w", k.config.Topic, err)
	}
	return nil
}

// Ping - первый брокер доступен и знает topic
func (k *Kafka) Ping(ctx context.Context) error {
	conn, err := kafka.DialContext(ctx, "tcp", k.config.Brokers[0])
	if err != nil {
		return fmt.Errorf("failed to dial Kafka broker %s: %w", k.config.Brokers[0], err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions(k.config.Topic)
	if err != nil {
		return fmt.Errorf("failed to read partitions of %s: %w", k.config.Topic, err)
	}
	if len(partitions) == 0 {
		return fmt.Errorf("topic %s has no partitions", k.config.Topic)
	}
	return nil
}

func (k *Kafka) GetBrokerType() string {
	return "kafka"
}
