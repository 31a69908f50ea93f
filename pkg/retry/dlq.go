package retry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry - недоставленные данные
type Entry struct {
	ID          string          `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	Attempts    int             `json:"attempts"`
	LastError   string          `json:"last_error"`
	FailureType string          `json:"failure_type"` // max_attempts_exceeded, permanent_error, context_cancelled
	Data        any             `json:"-"`
	RawData     json.RawMessage `json:"data,omitempty"`
}

// DLQ - файловая очередь недоставленных данных (JSON массив).
// Каждое изменение сразу сохраняется в файл.
type DLQ struct {
	mu      sync.Mutex
	path    string
	maxSize int
	entries []Entry
}

// OpenDLQ открывает очередь, загружая существующий файл
func OpenDLQ(path string, maxSize int) (*DLQ, error) {
	d := &DLQ{path: path, maxSize: maxSize}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return d, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read DLQ file: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &d.entries); err != nil {
			return nil, fmt.Errorf("failed to parse DLQ file %s: %w", path, err)
		}
	}
	return d, nil
}

// Add добавляет запись. При превышении maxSize удаляются самые старые.
func (d *DLQ) Add(entry Entry) error {
	if entry.Data != nil {
		raw, err := json.Marshal(entry.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal DLQ data: %w", err)
		}
		entry.RawData = raw
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.entries = append(d.entries, entry)
	if d.maxSize > 0 && len(d.entries) > d.maxSize {
		d.entries = d.entries[len(d.entries)-d.maxSize:]
	}
	return d.save()
}

// Entries возвращает копию записей
func (d *DLQ) Entries() []Entry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Entry(nil), d.entries...)
}

// Remove удаляет запись по ID (после успешной повторной доставки)
func (d *DLQ) Remove(id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, e := range d.entries {
		if e.ID == id {
			d.entries = append(d.entries[:i], d.entries[i+1:]...)
			return true, d.save()
		}
	}
	return false, nil
}

// Size - количество записей
func (d *DLQ) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// save вызывается под mu
func (d *DLQ) save() error {
	data, err := json.MarshalIndent(d.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ: %w", err)
	}
	if dir := filepath.Dir(d.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create DLQ directory: %w", err)
		}
	}
	if err := os.WriteFile(d.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write DLQ file: %w", err)
	}
	return nil
}
