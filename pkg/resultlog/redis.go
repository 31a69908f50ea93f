package resultlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ruslano69/tdtp-scrubber/pkg/audit"
	"github.com/ruslano69/tdtp-scrubber/pkg/retry"
)

// Статусы запуска
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Config - параметры публикации результата
type Config struct {
	Type     string `yaml:"type" json:"type" validate:"omitempty,oneof=redis"`
	Address  string `yaml:"address" json:"address" validate:"required_with=Type"`
	Password string `yaml:"password" json:"-"`
	DB       int    `yaml:"db" json:"db"`
	Name     string `yaml:"name" json:"name" validate:"required_with=Type"`
	TTL      int    `yaml:"ttl" json:"ttl" validate:"gte=0"` // в секундах, 0 - без срока

	// Retry - повторы публикации и DLQ файл для недоставленных итогов
	Retry retry.Config `yaml:"retry" json:"retry"`
}

// Enabled - настроена ли публикация
func (c Config) Enabled() bool {
	return c.Type != ""
}

// RunResult представляет состояние запуска очистки, публикуемое в Redis
// после завершения (успешного или с ошибкой).
//
// Redis-ключи:
//
//	SET  tdtp:scrub:<name>:state  <JSON>  EX <ttl>  - для GET-запросов оркестратора
//	PUB  tdtp:scrub:<name>                          - для event-driven маршрутизации
type RunResult struct {
	RunID      string        `json:"run_id"`
	ResultName string        `json:"result_name"`
	Input      string        `json:"input,omitempty"`
	Output     string        `json:"output,omitempty"`
	Status     string        `json:"status"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	DurationMs int64         `json:"duration_ms"`
	RowsIn     int           `json:"rows_in"`
	RowsOut    int           `json:"rows_out"`
	Checksum   string        `json:"checksum,omitempty"`
	Summary    audit.Summary `json:"summary"`
	Error      *string       `json:"error,omitempty"`
}

// SetError проставляет статус по ошибке выполнения (nil - успех)
func (r *RunResult) SetError(execErr error) {
	if execErr != nil {
		r.Status = StatusFailed
		errStr := execErr.Error()
		r.Error = &errStr
		return
	}
	r.Status = StatusSuccess
	r.Error = nil
}

// StateKey - ключ последнего состояния
func StateKey(name string) string {
	return fmt.Sprintf("tdtp:scrub:%s:state", name)
}

// Channel - канал событий
func Channel(name string) string {
	return fmt.Sprintf("tdtp:scrub:%s", name)
}

// RedisPublisher публикует результат запуска в Redis
type RedisPublisher struct {
	client *redis.Client
	config Config
}

// NewRedisPublisher создает новый Redis publisher на основе конфигурации
func NewRedisPublisher(config Config) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
	})
	return &RedisPublisher{client: client, config: config}
}

// Publish публикует результат запуска:
//   - SET tdtp:scrub:<name>:state <JSON> EX <ttl>  → для опроса (polling)
//   - PUBLISH tdtp:scrub:<name> <JSON>              → для подписки (pub/sub)
func (p *RedisPublisher) Publish(ctx context.Context, result RunResult) error {
	result.ResultName = p.config.Name

	payload, err := json.Marshal(result)
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to marshal result: %w", err))
	}

	ttl := time.Duration(p.config.TTL) * time.Second

	if err := p.client.Set(ctx, StateKey(p.config.Name), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis SET failed: %w", err)
	}

	if err := p.client.Publish(ctx, Channel(p.config.Name), payload).Err(); err != nil {
		return fmt.Errorf("redis PUBLISH failed: %w", err)
	}

	return nil
}

// Close закрывает соединение с Redis
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
