package brokers

import (
	"context"
	"fmt"
)

// Publisher - интерфейс отправки сообщений в брокер.
// Используется для публикации записей отчета очистки (JSON).
type Publisher interface {
	// Connect устанавливает соединение с брокером
	Connect(ctx context.Context) error

	// Close закрывает соединение с брокером
	Close() error

	// Send отправляет сообщение; key используется как ключ партиционирования (Kafka)
	// или message-id (RabbitMQ)
	Send(ctx context.Context, key string, message []byte) error

	// Ping проверяет доступность брокера
	Ping(ctx context.Context) error

	// GetBrokerType возвращает тип брокера (rabbitmq, kafka)
	GetBrokerType() string
}

// Config содержит параметры подключения к message broker
type Config struct {
	Type        string   `yaml:"type" validate:"required,oneof=rabbitmq kafka"`
	Host        string   `yaml:"host"`     // RabbitMQ
	Port        int      `yaml:"port"`     // RabbitMQ
	User        string   `yaml:"user"`     // RabbitMQ
	Password    string   `yaml:"password"` // RabbitMQ
	Queue       string   `yaml:"queue"`    // RabbitMQ
	VHost       string   `yaml:"vhost"`    // RabbitMQ, по умолчанию "/"
	UseTLS      bool     `yaml:"tls"`      // amqps://
	Durable     bool     `yaml:"durable"`  // Очередь переживает перезапуск RabbitMQ
	Brokers     []string `yaml:"brokers"`  // Kafka
	Topic       string   `yaml:"topic"`    // Kafka
	ContentType string   `yaml:"content_type"`
}

// New создает Publisher на основе конфигурации
func New(cfg Config) (Publisher, error) {
	if cfg.ContentType == "" {
		cfg.ContentType = "application/json"
	}
	switch cfg.Type {
	case "rabbitmq":
		return NewRabbitMQ(cfg)
	case "kafka":
		return NewKafka(cfg)
	default:
		return nil, fmt.Errorf("unsupported broker type: %s (supported: rabbitmq, kafka)", cfg.Type)
	}
}
