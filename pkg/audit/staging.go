package audit

import (
	"sync"

	"github.com/ruslano69/tdtp-scrubber/pkg/core/table"
)

type stagedCall struct {
	ruleType, field string
	affected        *table.Table
	category        Category
	description     string
}

// Staging - журнал одного запуска до его завершения. Записи держатся в памяти
// и попадают в основной журнал только через Commit, поэтому отмененный запуск
// не оставляет следов в appenders.
type Staging struct {
	mu    sync.Mutex
	calls []stagedCall
}

func NewStaging() *Staging {
	return &Staging{}
}

func (s *Staging) LogHistory(ruleType, field string, affected *table.Table, category Category, description string) {
	if affected != nil {
		affected = affected.Clone()
	}
	s.mu.Lock()
	s.calls = append(s.calls, stagedCall{ruleType, field, affected, category, description})
	s.mu.Unlock()
}

// Report - записи, накопленные с последнего Commit или ResetReport
func (s *Staging) Report() Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(Report, len(s.calls))
	for i, c := range s.calls {
		out[i] = NewEntry(c.ruleType, c.field, c.category, c.description).WithAffected(c.affected)
	}
	return out
}

func (s *Staging) ResetReport() {
	s.mu.Lock()
	s.calls = nil
	s.mu.Unlock()
}

// Commit переносит записи в dst в порядке поступления и очищает staging
func (s *Staging) Commit(dst Logger) {
	s.mu.Lock()
	calls := s.calls
	s.calls = nil
	s.mu.Unlock()

	for _, c := range calls {
		dst.LogHistory(c.ruleType, c.field, c.affected, c.category, c.description)
	}
}
