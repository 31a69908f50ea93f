package retry

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// BackoffStrategy определяет стратегию задержки между повторами
type BackoffStrategy string

const (
	BackoffConstant    BackoffStrategy = "constant"
	BackoffLinear      BackoffStrategy = "linear"
	BackoffExponential BackoffStrategy = "exponential"
)

// Config содержит конфигурацию повторов
type Config struct {
	// MaxAttempts - количество попыток, включая первую. 0 и 1 - без повторов
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts" validate:"gte=0"`

	InitialDelay time.Duration   `yaml:"initial_delay" json:"initial_delay" validate:"gte=0"`
	MaxDelay     time.Duration   `yaml:"max_delay" json:"max_delay" validate:"gte=0"`
	Backoff      BackoffStrategy `yaml:"backoff" json:"backoff" validate:"omitempty,oneof=constant linear exponential"`
	Multiplier   float64         `yaml:"multiplier" json:"multiplier" validate:"gte=0"`

	// Jitter - доля случайного отклонения задержки (0.0 - 1.0)
	Jitter float64 `yaml:"jitter" json:"jitter" validate:"gte=0,lte=1"`

	// DLQPath - файл для данных, которые не удалось доставить. Пусто - без DLQ
	DLQPath    string `yaml:"dlq_path" json:"dlq_path"`
	DLQMaxSize int    `yaml:"dlq_max_size" json:"dlq_max_size" validate:"gte=0"`

	// OnRetry вызывается перед каждой повторной попыткой
	OnRetry func(attempt int, err error, delay time.Duration) `yaml:"-" json:"-"`
}

// DefaultConfig - 3 попытки с экспоненциальной задержкой от 1s до 30s
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Backoff:      BackoffExponential,
		Multiplier:   2.0,
		Jitter:       0.1,
		DLQMaxSize:   10000,
	}
}

// Validate проверяет корректность конфигурации
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid retry config: %w", err)
	}
	if c.MaxDelay > 0 && c.MaxDelay < c.InitialDelay {
		return fmt.Errorf("max_delay (%v) must be >= initial_delay (%v)", c.MaxDelay, c.InitialDelay)
	}
	return nil
}

// SetDefaults заполняет незаданные параметры задержки.
// MaxAttempts не меняется: нулевое значение означает одну попытку.
func (c *Config) SetDefaults() {
	d := DefaultConfig()
	if c.Backoff == "" {
		c.Backoff = d.Backoff
	}
	if c.Multiplier == 0 {
		c.Multiplier = d.Multiplier
	}
	if c.InitialDelay == 0 {
		c.InitialDelay = d.InitialDelay
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.MaxDelay < c.InitialDelay {
		c.MaxDelay = c.InitialDelay
	}
	if c.DLQMaxSize == 0 {
		c.DLQMaxSize = d.DLQMaxSize
	}
}
