// Package scrub - оркестратор очистки: применяет список правил к таблице,
// собирает отчет и связывает загрузку, справочники, аудит и выгрузку в один запуск.
package scrub

import (
	"context"
	"fmt"
	"time"

	"github.com/zeebo/xxh3"
	"go.uber.org/zap"

	"github.com/ruslano69/tdtp-scrubber/pkg/audit"
	"github.com/ruslano69/tdtp-scrubber/pkg/core/schema"
	"github.com/ruslano69/tdtp-scrubber/pkg/core/table"
	"github.com/ruslano69/tdtp-scrubber/pkg/processors"
)

// Result - итог одного вызова Run
type Result struct {
	RowsIn   int
	RowsOut  int
	Rules    int
	Duration time.Duration
	Report   audit.Report
	// Checksum - xxh3 содержимого очищенной таблицы (hex)
	Checksum string
}

// SessionScore - количество корректных строк для правила Session
type SessionScore struct {
	Index int
	Good  int
	Total int
}

// Scrubber выполняет правила последовательно над одной таблицей
type Scrubber struct {
	rules      []RuleSpec
	profile    processors.Profile
	log        audit.Logger
	references processors.ReferenceProvider
	factory    *processors.Factory
	logger     *zap.Logger
	now        func() time.Time
}

// Option настраивает Scrubber
type Option func(*Scrubber)

// WithProfile задает лимиты записей
func WithProfile(p processors.Profile) Option {
	return func(s *Scrubber) { s.profile = p }
}

// WithAuditLog задает журнал изменений
func WithAuditLog(log audit.Logger) Option {
	return func(s *Scrubber) { s.log = log }
}

// WithReferences задает источник справочников для Lookup
func WithReferences(refs processors.ReferenceProvider) Option {
	return func(s *Scrubber) { s.references = refs }
}

// WithFactory задает фабрику правил (дополнительные типы правил)
func WithFactory(f *processors.Factory) Option {
	return func(s *Scrubber) { s.factory = f }
}

// WithLogger задает операционный логгер
func WithLogger(l *zap.Logger) Option {
	return func(s *Scrubber) { s.logger = l }
}

// WithClock задает источник времени (rolling диапазоны дат)
func WithClock(now func() time.Time) Option {
	return func(s *Scrubber) { s.now = now }
}

// New создает Scrubber
func New(rules []RuleSpec, opts ...Option) *Scrubber {
	s := &Scrubber{
		rules:   rules,
		profile: processors.DefaultProfile(),
		log:     audit.NewNullLogger(),
		factory: processors.DefaultFactory,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.profile.SetDefaults()
	return s
}

func (s *Scrubber) deps() processors.Deps {
	return processors.Deps{
		Log:        s.log,
		Profile:    s.profile,
		References: s.references,
		Logger:     s.logger,
		Now:        s.now,
	}
}

// Check строит все правила, не трогая данных. Ошибки конфигурации
// (неизвестный тип, параметры, справочники) возвращаются здесь.
func (s *Scrubber) Check(ctx context.Context) (*processors.Chain, error) {
	return s.factory.Build(ctx, s.rules, s.deps())
}

// Run применяет правила к таблице. Таблица и журнал изменяются только при успехе:
// правила работают над копией и пишут в staging, копия подменяет содержимое t,
// а записи переносятся в журнал после сброса его отчета.
func (s *Scrubber) Run(ctx context.Context, t *table.Table) (*Result, error) {
	start := s.now()
	rowsIn := t.Len()

	if rowsIn > s.profile.MaximumRecords {
		return nil, &TooManyRecordsError{Records: rowsIn, Maximum: s.profile.MaximumRecords}
	}

	staging := audit.NewStaging()
	deps := s.deps()
	deps.Log = staging
	chain, err := s.factory.Build(ctx, s.rules, deps)
	if err != nil {
		return nil, err
	}

	s.logger.Info("scrub started", zap.Int("rows", rowsIn), zap.Int("rules", chain.Len()))

	work := t.Clone()
	if err := chain.Run(ctx, work); err != nil {
		s.logger.Error("scrub failed", zap.Error(err))
		return nil, err
	}
	t.Swap(work)

	s.log.ResetReport()
	staging.Commit(s.log)

	result := &Result{
		RowsIn:   rowsIn,
		RowsOut:  t.Len(),
		Rules:    chain.Len(),
		Duration: s.now().Sub(start),
		Report:   s.log.Report(),
		Checksum: Checksum(t),
	}

	s.logger.Info("scrub finished",
		zap.Int("rows_in", result.RowsIn),
		zap.Int("rows_out", result.RowsOut),
		zap.String("summary", result.Report.Summary().String()),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// SessionScores считает корректные строки для каждого правила Session без изменения таблицы
func (s *Scrubber) SessionScores(ctx context.Context, t *table.Table) ([]SessionScore, error) {
	chain, err := s.Check(ctx)
	if err != nil {
		return nil, err
	}

	var scores []SessionScore
	for i, rule := range chain.Rules() {
		if rule.Type != "Session" {
			continue
		}
		good, err := rule.CountGoodRows(t)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		scores = append(scores, SessionScore{Index: i, Good: good, Total: t.Len()})
	}
	return scores, nil
}

// Checksum - xxh3 по заголовку и значениям таблицы в текстовом виде
func Checksum(t *table.Table) string {
	h := xxh3.New()
	for _, c := range t.Columns() {
		h.WriteString(c.Name)
		h.WriteString("|")
	}
	for pos := 0; pos < t.Len(); pos++ {
		h.WriteString("\n")
		for _, c := range t.Columns() {
			h.WriteString(schema.FormatCell(c.Values[pos], c.Type))
			h.WriteString("|")
		}
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
