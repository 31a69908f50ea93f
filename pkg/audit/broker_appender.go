package audit

import (
	"context"
	"fmt"

	"github.com/ruslano69/tdtp-scrubber/pkg/brokers"
	"github.com/ruslano69/tdtp-scrubber/pkg/resilience"
)

// BrokerAppender - публикация записей отчета в брокер сообщений (JSON)
type BrokerAppender struct {
	publisher brokers.Publisher
	level     Level
	breaker   *resilience.CircuitBreaker
}

// NewBrokerAppender - создать broker appender поверх подключенного publisher
func NewBrokerAppender(publisher brokers.Publisher, level Level) *BrokerAppender {
	return &BrokerAppender{publisher: publisher, level: level}
}

// WithBreaker - отправка через circuit breaker: при недоступном брокере
// записи отклоняются сразу, не дожидаясь таймаута каждой отправки
func (ba *BrokerAppender) WithBreaker(cb *resilience.CircuitBreaker) *BrokerAppender {
	ba.breaker = cb
	return ba
}

// Append - отправить запись; ключ сообщения - run id (или id записи)
func (ba *BrokerAppender) Append(ctx context.Context, entry *Entry) error {
	filtered := entry.FilterByLevel(ba.level)

	data, err := filtered.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	key := filtered.RunID
	if key == "" {
		key = filtered.ID
	}

	send := func(ctx context.Context) error {
		return ba.publisher.Send(ctx, key, data)
	}
	if ba.breaker != nil {
		err = ba.breaker.Execute(ctx, send)
	} else {
		err = send(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to publish audit entry to %s: %w", ba.publisher.GetBrokerType(), err)
	}
	return nil
}

// Close - закрыть publisher
func (ba *BrokerAppender) Close() error {
	return ba.publisher.Close()
}
