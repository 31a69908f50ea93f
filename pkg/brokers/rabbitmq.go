package brokers

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const rabbitDialTimeout = 10 * time.Second

// RabbitMQ публикует записи в очередь через default exchange
// с подтверждениями публикации (publisher confirms).
type RabbitMQ struct {
	config  Config
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewRabbitMQ проверяет конфигурацию и заполняет значения по умолчанию
func NewRabbitMQ(cfg Config) (*RabbitMQ, error) {
	if cfg.Queue == "" {
		return nil, errors.New("queue name is required for RabbitMQ")
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 5672
		if cfg.UseTLS {
			cfg.Port = 5671
		}
	}
	if cfg.VHost == "" {
		cfg.VHost = "/"
	}
	return &RabbitMQ{config: cfg}, nil
}

// URL - адрес подключения; vhost экранируется ("/" становится %2F)
func (r *RabbitMQ) URL() string {
	u := url.URL{
		Scheme:  "amqp",
		Host:    net.JoinHostPort(r.config.Host, strconv.Itoa(r.config.Port)),
		Path:    "/" + r.config.VHost,
		RawPath: "/" + url.PathEscape(r.config.VHost),
	}
	if r.config.UseTLS {
		u.Scheme = "amqps"
	}
	if r.config.User != "" {
		u.User = url.UserPassword(r.config.User, r.config.Password)
	}
	return u.String()
}

// Connect открывает соединение, канал в режиме confirm и объявляет очередь
func (r *RabbitMQ) Connect(ctx context.Context) error {
	cfg := amqp.Config{
		Heartbeat:  10 * time.Second,
		Dial:       amqp.DefaultDial(rabbitDialTimeout),
		Properties: amqp.Table{"connection_name": "tdtpscrub"},
	}
	if r.config.UseTLS {
		cfg.TLSClientConfig = &tls.Config{ServerName: r.config.Host, MinVersion: tls.VersionTLS12}
	}

	conn, err := amqp.DialConfig(r.URL(), cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err == nil {
		err = ch.Confirm(false)
	}
	if err == nil {
		// параметры должны совпадать с уже объявленной очередью
		_, err = ch.QueueDeclare(r.config.Queue, r.config.Durable, false, false, false, nil)
	}
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to prepare queue %s: %w", r.config.Queue, err)
	}

	r.conn, r.channel = conn, ch
	return nil
}

func (r *RabbitMQ) Close() error {
	var errs []error
	if r.channel != nil {
		errs = append(errs, r.channel.Close())
	}
	if r.conn != nil {
		errs = append(errs, r.conn.Close())
	}
	r.channel, r.conn = nil, nil
	return errors.Join(errs...)
}

// Send публикует сообщение и ждет подтверждения брокера
func (r *RabbitMQ) Send(ctx context.Context, key string, message []byte) error {
	if r.channel == nil {
		return errors.New("not connected to RabbitMQ")
	}

	confirm, err := r.channel.PublishWithDeferredConfirmWithContext(ctx, "", r.config.Queue, false, false, amqp.Publishing{
		ContentType:  r.config.ContentType,
		MessageId:    key,
		Body:         message,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		AppId:        "tdtpscrub",
	})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("waiting for publish confirm: %w", err)
	}
	if !acked {
		return fmt.Errorf("message %s was nacked by RabbitMQ", key)
	}
	return nil
}

// Ping - соединение и канал открыты
func (r *RabbitMQ) Ping(ctx context.Context) error {
	if r.conn == nil || r.conn.IsClosed() || r.channel == nil || r.channel.IsClosed() {
		return errors.New("not connected to RabbitMQ")
	}
	return nil
}

func (r *RabbitMQ) GetBrokerType() string {
	return "rabbitmq"
}
