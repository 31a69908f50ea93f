// Package retry - повтор операций доставки (публикация итога запуска)
// с задержкой и сохранением недоставленных данных в DLQ файл.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// permanentError - ошибка, которую бесполезно повторять
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent помечает ошибку как неповторяемую (например, ошибка сериализации)
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent проверяет, помечена ли ошибка через Permanent
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Func - повторяемая операция
type Func func(ctx context.Context) error

// Retryer выполняет операции с повторами
type Retryer struct {
	config Config
	dlq    *DLQ
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRetryer создает Retryer. DLQ открывается, если задан DLQPath.
func NewRetryer(config Config) (*Retryer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.SetDefaults()

	r := &Retryer{config: config, sleep: sleep}
	if config.DLQPath != "" {
		dlq, err := OpenDLQ(config.DLQPath, config.DLQMaxSize)
		if err != nil {
			return nil, fmt.Errorf("failed to open DLQ: %w", err)
		}
		r.dlq = dlq
	}
	return r, nil
}

// Do выполняет fn с повторами
func (r *Retryer) Do(ctx context.Context, fn Func) error {
	return r.DoWithData(ctx, fn, nil)
}

// DoWithData выполняет fn с повторами; при окончательной неудаче data сохраняется в DLQ
func (r *Retryer) DoWithData(ctx context.Context, fn Func, data any) error {
	attempts := 0
	for {
		attempts++
		err := fn(ctx)
		if err == nil {
			return nil
		}

		if IsPermanent(err) {
			return r.deadLetter(data, attempts, "permanent_error", err)
		}
		if attempts >= r.config.MaxAttempts {
			if r.config.MaxAttempts > 1 {
				err = fmt.Errorf("max retry attempts (%d) exceeded: %w", r.config.MaxAttempts, err)
			}
			return r.deadLetter(data, attempts, "max_attempts_exceeded", err)
		}

		delay := r.delay(attempts)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempts, err, delay)
		}
		if sleepErr := r.sleep(ctx, delay); sleepErr != nil {
			return r.deadLetter(data, attempts, "context_cancelled",
				fmt.Errorf("retry interrupted: %w (last error: %v)", sleepErr, err))
		}
	}
}

// DLQ возвращает очередь недоставленных данных (nil, если не настроена)
func (r *Retryer) DLQ() *DLQ {
	return r.dlq
}

func (r *Retryer) deadLetter(data any, attempts int, failureType string, err error) error {
	if r.dlq == nil || data == nil {
		return err
	}
	if dlqErr := r.dlq.Add(Entry{
		Timestamp:   time.Now(),
		Attempts:    attempts,
		LastError:   err.Error(),
		FailureType: failureType,
		Data:        data,
	}); dlqErr != nil {
		return errors.Join(err, dlqErr)
	}
	return err
}

// delay - задержка перед попыткой attempt+1
func (r *Retryer) delay(attempt int) time.Duration {
	var d time.Duration
	switch r.config.Backoff {
	case BackoffLinear:
		d = r.config.InitialDelay * time.Duration(attempt)
	case BackoffExponential:
		d = time.Duration(float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(attempt-1)))
	default:
		d = r.config.InitialDelay
	}

	if d > r.config.MaxDelay {
		d = r.config.MaxDelay
	}
	if r.config.Jitter > 0 {
		d += time.Duration(float64(d) * r.config.Jitter * (rand.Float64()*2 - 1))
		if d < 0 {
			d = r.config.InitialDelay
		}
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
