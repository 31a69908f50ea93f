// Package resilience - circuit breaker для внешних получателей отчета (брокеры сообщений).
//
// После MaxFailures ошибок подряд breaker открывается и отклоняет вызовы
// в течение Timeout, затем пропускает пробные вызовы (half-open).
// SuccessThreshold успешных пробных вызовов закрывают его снова.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrCircuitOpen - breaker открыт, вызов не выполнялся
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State - состояние breaker
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Config - параметры breaker
type Config struct {
	Name             string        `yaml:"name" json:"name"`
	MaxFailures      int           `yaml:"max_failures" json:"max_failures" validate:"gte=0"`
	Timeout          time.Duration `yaml:"timeout" json:"timeout" validate:"gte=0"`
	SuccessThreshold int           `yaml:"success_threshold" json:"success_threshold" validate:"gte=0"`

	// OnStateChange вызывается синхронно при смене состояния
	OnStateChange func(name string, from, to State) `yaml:"-" json:"-"`
}

// DefaultConfig - 5 ошибок подряд, 30 секунд в открытом состоянии
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MaxFailures:      5,
		Timeout:          30 * time.Second,
		SuccessThreshold: 1,
	}
}

// Validate проверяет параметры
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid circuit breaker config: %w", err)
	}
	return nil
}

// SetDefaults заполняет нулевые значения
func (c *Config) SetDefaults() {
	d := DefaultConfig(c.Name)
	if c.Name == "" {
		c.Name = "circuit-breaker"
	}
	if c.MaxFailures == 0 {
		c.MaxFailures = d.MaxFailures
	}
	if c.Timeout == 0 {
		c.Timeout = d.Timeout
	}
	if c.SuccessThreshold == 0 {
		c.SuccessThreshold = d.SuccessThreshold
	}
}

// Counts - счетчики текущего состояния
type Counts struct {
	Requests             int
	ConsecutiveSuccesses int
	ConsecutiveFailures  int
}

// CircuitBreaker защищает вызовы внешнего получателя
type CircuitBreaker struct {
	mu         sync.Mutex
	config     Config
	state      State
	counts     Counts
	expiry     time.Time
	generation uint64
	now        func() time.Time
}

// New создает breaker в закрытом состоянии
func New(config Config) (*CircuitBreaker, error) {
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &CircuitBreaker{config: config, now: time.Now}, nil
}

// Execute выполняет fn, если breaker не открыт
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	generation, err := cb.before()
	if err != nil {
		return err
	}
	err = fn(ctx)
	cb.after(generation, err == nil)
	return err
}

// State - текущее состояние (с учетом истекшего Timeout)
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.expire()
	return cb.state
}

// Counts - счетчики текущего состояния
func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

// Name - имя breaker
func (cb *CircuitBreaker) Name() string {
	return cb.config.Name
}

func (cb *CircuitBreaker) before() (uint64, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.expire()
	if cb.state == StateOpen {
		return cb.generation, fmt.Errorf("%s: %w", cb.config.Name, ErrCircuitOpen)
	}
	cb.counts.Requests++
	return cb.generation, nil
}

func (cb *CircuitBreaker) after(generation uint64, success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	// Результат вызова, начатого в предыдущем состоянии, не учитывается
	if generation != cb.generation {
		return
	}

	if success {
		cb.counts.ConsecutiveSuccesses++
		cb.counts.ConsecutiveFailures = 0
		if cb.state == StateHalfOpen && cb.counts.ConsecutiveSuccesses >= cb.config.SuccessThreshold {
			cb.setState(StateClosed)
		}
		return
	}

	cb.counts.ConsecutiveFailures++
	cb.counts.ConsecutiveSuccesses = 0
	if cb.state == StateHalfOpen || cb.counts.ConsecutiveFailures >= cb.config.MaxFailures {
		cb.setState(StateOpen)
	}
}

// expire переводит Open в HalfOpen по истечении Timeout. Вызывается под mu.
func (cb *CircuitBreaker) expire() {
	if cb.state == StateOpen && !cb.now().Before(cb.expiry) {
		cb.setState(StateHalfOpen)
	}
}

func (cb *CircuitBreaker) setState(to State) {
	from := cb.state
	cb.state = to
	cb.generation++
	cb.counts = Counts{}
	if to == StateOpen {
		cb.expiry = cb.now().Add(cb.config.Timeout)
	}
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, from, to)
	}
}
