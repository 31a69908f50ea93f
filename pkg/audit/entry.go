package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ruslano69/tdtp-scrubber/pkg/core/table"
)

// Level - уровень детализации записи в appender
type Level int

const (
	// LevelMinimal - только категория, правило и количество строк
	LevelMinimal Level = iota

	// LevelStandard - плюс идентификаторы строк и метаданные
	LevelStandard

	// LevelFull - плюс значения затронутых строк
	LevelFull
)

// String - строковое представление уровня
func (l Level) String() string {
	switch l {
	case LevelMinimal:
		return "minimal"
	case LevelStandard:
		return "standard"
	case LevelFull:
		return "full"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}

// ParseLevel - разобрать уровень из конфигурации. Пустая строка -> standard.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "minimal":
		return LevelMinimal, nil
	case "", "standard":
		return LevelStandard, nil
	case "full":
		return LevelFull, nil
	default:
		return LevelStandard, fmt.Errorf("unknown audit level: %s", s)
	}
}

// Category - категория изменения
type Category string

const (
	CategoryIgnored  Category = "IGNORED"
	CategoryReplaced Category = "REPLACED"
	CategoryRemoved  Category = "REMOVED"
	CategoryModified Category = "MODIFIED"
	CategoryInserted Category = "INSERTED"
)

// Categories - все категории в порядке вывода
var Categories = []Category{
	CategoryIgnored, CategoryReplaced, CategoryRemoved, CategoryModified, CategoryInserted,
}

// Entry - запись отчета об изменении. После записи в History не изменяется.
type Entry struct {
	// ID - уникальный идентификатор записи
	ID string `json:"id"`

	// Timestamp - время изменения
	Timestamp time.Time `json:"timestamp"`

	// RunID - идентификатор запуска очистки
	RunID string `json:"run_id,omitempty"`

	// RuleType - тип правила (String, Number, ...)
	RuleType string `json:"rule_type"`

	// Field - колонка (пусто для многоколоночных правил)
	Field string `json:"field,omitempty"`

	// Category - категория изменения
	Category Category `json:"category"`

	// Description - описание
	Description string `json:"description"`

	// RecordsAffected - количество затронутых строк
	RecordsAffected int `json:"records_affected"`

	// RowIDs - стабильные идентификаторы затронутых строк
	RowIDs []int `json:"row_ids,omitempty"`

	// Metadata - дополнительные метаданные
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// Data - значения затронутых строк (только для LevelFull)
	Data []map[string]string `json:"data,omitempty"`

	// Affected - снимок затронутых строк
	Affected *table.Table `json:"-"`
}

// NewEntry - создать новую запись
func NewEntry(ruleType, field string, category Category, description string) *Entry {
	return &Entry{
		ID:          uuid.NewString(),
		Timestamp:   time.Now(),
		RuleType:    ruleType,
		Field:       field,
		Category:    category,
		Description: description,
	}
}

// WithAffected - установить снимок затронутых строк
func (e *Entry) WithAffected(affected *table.Table) *Entry {
	e.Affected = affected
	if affected == nil {
		return e
	}
	e.RowIDs = affected.RowIDs()
	e.RecordsAffected = affected.Len()
	e.Data = rowsToMaps(affected)
	return e
}

// WithRunID - установить идентификатор запуска
func (e *Entry) WithRunID(runID string) *Entry {
	e.RunID = runID
	return e
}

// WithTimestamp - установить время
func (e *Entry) WithTimestamp(ts time.Time) *Entry {
	e.Timestamp = ts
	return e
}

// WithMetadata - добавить метаданные
func (e *Entry) WithMetadata(key string, value interface{}) *Entry {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ToJSON - преобразовать в JSON
func (e *Entry) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ToJSONIndent - преобразовать в форматированный JSON
func (e *Entry) ToJSONIndent() ([]byte, error) {
	return json.MarshalIndent(e, "", "  ")
}

// String - строковое представление
func (e *Entry) String() string {
	field := e.Field
	if field == "" {
		field = "-"
	}
	return fmt.Sprintf("[%s] %s %s %s: %s (records=%d)",
		e.Timestamp.Format(time.RFC3339),
		e.Category,
		e.RuleType,
		field,
		e.Description,
		e.RecordsAffected,
	)
}

// Clone - создать копию записи
func (e *Entry) Clone() *Entry {
	clone := *e

	if e.Metadata != nil {
		clone.Metadata = make(map[string]interface{}, len(e.Metadata))
		for k, v := range e.Metadata {
			clone.Metadata[k] = v
		}
	}
	if e.RowIDs != nil {
		clone.RowIDs = append([]int(nil), e.RowIDs...)
	}

	return &clone
}

// FilterByLevel - фильтрация данных по уровню
func (e *Entry) FilterByLevel(level Level) *Entry {
	filtered := e.Clone()

	switch level {
	case LevelMinimal:
		filtered.RowIDs = nil
		filtered.Metadata = nil
		filtered.Data = nil
	case LevelStandard:
		filtered.Data = nil
	case LevelFull:
	}

	return filtered
}

func rowsToMaps(t *table.Table) []map[string]string {
	names := t.ColumnNames()
	out := make([]map[string]string, t.Len())
	for pos := 0; pos < t.Len(); pos++ {
		row := make(map[string]string, len(names))
		for i, v := range t.Row(pos) {
			row[names[i]] = table.Text(v)
		}
		out[pos] = row
	}
	return out
}
