package retry

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

// newTestRetryer - Retryer без реальных задержек; записывает запрошенные паузы
func newTestRetryer(t *testing.T, config Config) (*Retryer, *[]time.Duration) {
	t.Helper()
	r, err := NewRetryer(config)
	if err != nil {
		t.Fatalf("NewRetryer: %v", err)
	}
	var delays []time.Duration
	r.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return ctx.Err()
	}
	return r, &delays
}

func TestRetryer_SuccessAfterRetries(t *testing.T) {
	r, delays := newTestRetryer(t, Config{MaxAttempts: 5, InitialDelay: 10 * time.Millisecond})

	attempts := 0
	err := r.Do(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	if err != nil {
		t.Errorf("Expected success, got error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	if len(*delays) != 2 {
		t.Errorf("Expected 2 pauses, got %d", len(*delays))
	}
}

func TestRetryer_SingleAttemptByDefault(t *testing.T) {
	r, delays := newTestRetryer(t, Config{})

	attempts := 0
	cause := errors.New("redis unavailable")
	err := r.Do(context.Background(), func(context.Context) error {
		attempts++
		return cause
	})

	if !errors.Is(err, cause) {
		t.Errorf("Expected original error, got %v", err)
	}
	if attempts != 1 || len(*delays) != 0 {
		t.Errorf("Expected one attempt without pauses, got %d attempts, %d pauses", attempts, len(*delays))
	}
}

func TestRetryer_PermanentErrorStops(t *testing.T) {
	r, _ := newTestRetryer(t, Config{MaxAttempts: 5})

	attempts := 0
	cause := errors.New("bad payload")
	err := r.Do(context.Background(), func(context.Context) error {
		attempts++
		return Permanent(cause)
	})

	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
	if !errors.Is(err, cause) || !IsPermanent(err) {
		t.Errorf("Expected permanent error wrapping cause, got %v", err)
	}
}

func TestRetryer_ContextCancelled(t *testing.T) {
	r, _ := newTestRetryer(t, Config{MaxAttempts: 5})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := r.Do(ctx, func(context.Context) error {
		attempts++
		return errors.New("temporary error")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

func TestRetryer_OnRetry(t *testing.T) {
	var calls []int
	r, _ := newTestRetryer(t, Config{
		MaxAttempts: 3,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			calls = append(calls, attempt)
		},
	})

	r.Do(context.Background(), func(context.Context) error { return errors.New("fail") })

	if len(calls) != 2 || calls[0] != 1 || calls[1] != 2 {
		t.Errorf("Expected OnRetry for attempts 1 and 2, got %v", calls)
	}
}

func TestRetryer_Backoff(t *testing.T) {
	tests := []struct {
		name    string
		backoff BackoffStrategy
		want    []time.Duration
	}{
		{"constant", BackoffConstant, []time.Duration{100, 100, 100}},
		{"linear", BackoffLinear, []time.Duration{100, 200, 300}},
		{"exponential", BackoffExponential, []time.Duration{100, 200, 400}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRetryer(t, Config{
				MaxAttempts:  4,
				InitialDelay: 100 * time.Millisecond,
				MaxDelay:     350 * time.Millisecond,
				Backoff:      tt.backoff,
			})
			for i, want := range tt.want {
				want *= time.Millisecond
				if want > 350*time.Millisecond {
					want = 350 * time.Millisecond
				}
				if got := r.delay(i + 1); got != want {
					t.Errorf("attempt %d: expected %v, got %v", i+1, want, got)
				}
			}
		})
	}
}

func TestRetryer_JitterBounds(t *testing.T) {
	r, _ := newTestRetryer(t, Config{
		InitialDelay: 100 * time.Millisecond,
		Backoff:      BackoffConstant,
		Jitter:       0.5,
	})
	for i := 0; i < 50; i++ {
		d := r.delay(1)
		if d < 50*time.Millisecond || d > 150*time.Millisecond {
			t.Fatalf("Delay %v out of jitter bounds", d)
		}
	}
}

func TestRetryer_DeadLetter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dlq", "results.json")
	r, _ := newTestRetryer(t, Config{MaxAttempts: 2, DLQPath: path})

	payload := map[string]string{"run_id": "run-1", "status": "success"}
	err := r.DoWithData(context.Background(), func(context.Context) error {
		return errors.New("redis SET failed")
	}, payload)
	if err == nil {
		t.Fatal("Expected error")
	}

	if r.DLQ().Size() != 1 {
		t.Fatalf("Expected 1 DLQ entry, got %d", r.DLQ().Size())
	}

	// Очередь переживает перезапуск
	reopened, err := OpenDLQ(path, 0)
	if err != nil {
		t.Fatalf("OpenDLQ: %v", err)
	}
	entries := reopened.Entries()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry after reopen, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Attempts != 2 || entry.FailureType != "max_attempts_exceeded" {
		t.Errorf("Unexpected entry: %+v", entry)
	}
	var data map[string]string
	if err := json.Unmarshal(entry.RawData, &data); err != nil {
		t.Fatalf("Unmarshal data: %v", err)
	}
	if data["run_id"] != "run-1" {
		t.Errorf("Expected run-1 in DLQ data, got %v", data)
	}

	removed, err := reopened.Remove(entry.ID)
	if err != nil || !removed {
		t.Fatalf("Remove: %v %v", removed, err)
	}
	if reopened.Size() != 0 {
		t.Errorf("Expected empty DLQ after Remove")
	}
}

func TestDLQ_MaxSize(t *testing.T) {
	dlq, err := OpenDLQ(filepath.Join(t.TempDir(), "dlq.json"), 2)
	if err != nil {
		t.Fatalf("OpenDLQ: %v", err)
	}
	for _, id := range []string{"a", "b", "c"} {
		if err := dlq.Add(Entry{ID: id}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	entries := dlq.Entries()
	if len(entries) != 2 || entries[0].ID != "b" || entries[1].ID != "c" {
		t.Errorf("Expected oldest entry evicted, got %+v", entries)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"zero", Config{}, false},
		{"default", DefaultConfig(), false},
		{"negative attempts", Config{MaxAttempts: -1}, true},
		{"unknown backoff", Config{Backoff: "fibonacci"}, true},
		{"jitter above one", Config{Jitter: 1.5}, true},
		{"max below initial", Config{InitialDelay: time.Second, MaxDelay: time.Millisecond}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
