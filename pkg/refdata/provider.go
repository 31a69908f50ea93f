// Package refdata - именованные справочные таблицы для правила Lookup.
//
// Provider отдает таблицу по имени. Memory хранит готовые таблицы,
// Catalog загружает их лениво из файлов или SQL баз и кэширует на время запуска.
package refdata

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ruslano69/tdtp-scrubber/pkg/core/table"
)

// ErrNotFound - справочник с таким именем не объявлен
var ErrNotFound = errors.New("reference table not found")

// Provider - источник справочных таблиц
type Provider interface {
	Table(ctx context.Context, name string) (*table.Table, error)
}

// Memory - справочники в памяти
type Memory struct {
	mu     sync.RWMutex
	tables map[string]*table.Table
}

// NewMemory создает provider из готовых таблиц
func NewMemory(tables map[string]*table.Table) *Memory {
	m := &Memory{tables: make(map[string]*table.Table, len(tables))}
	for name, t := range tables {
		m.tables[name] = t
	}
	return m
}

// Add добавляет или заменяет справочник
func (m *Memory) Add(name string, t *table.Table) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[name] = t
}

// Table возвращает справочник по имени
func (m *Memory) Table(_ context.Context, name string) (*table.Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return t, nil
}

// Names возвращает имена справочников
func (m *Memory) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.tables))
	for name := range m.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
