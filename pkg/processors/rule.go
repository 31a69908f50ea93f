package processors

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ruslano69/tdtp-scrubber/pkg/audit"
	"github.com/ruslano69/tdtp-scrubber/pkg/core/schema"
	"github.com/ruslano69/tdtp-scrubber/pkg/core/table"
)

// Rule - собранное правило: разрешенные параметры, валидатор и его стадии.
// Создается через Factory.NewRule, выполняется через RunAll.
type Rule struct {
	Type          string
	Field         string
	AppendResults bool
	Params        Params

	Log        audit.Logger
	Profile    Profile
	References ReferenceProvider
	Logger     *zap.Logger
	Now        func() time.Time

	// ReferenceList - различные допустимые значения, которые валидатор
	// оставляет для BestMatch и Lookalike
	ReferenceList []string

	validator Validator
	pre       []Stage
	post      []Stage
	multi     bool

	// строки (по идентификатору), которые стадии уже разрешили окончательно
	settled map[int]bool
}

// MultiColumn сообщает, работает ли правило с таблицей целиком
func (r *Rule) MultiColumn() bool {
	return r.multi
}

// Validator возвращает основной валидатор правила
func (r *Rule) Validator() Validator {
	return r.validator
}

// Stages возвращает имена стадий до и после преобразования
func (r *Rule) Stages() (pre, post []string) {
	for _, s := range r.pre {
		pre = append(pre, s.Name())
	}
	for _, s := range r.post {
		post = append(post, s.Name())
	}
	return pre, post
}

// RunAll применяет правило к таблице
func (r *Rule) RunAll(ctx context.Context, t *table.Table) error {
	r.settled = make(map[int]bool)

	if r.multi {
		return r.validator.Run(ctx, r, t, "", "")
	}

	field, ok := t.ResolveField(r.Field)
	if !ok {
		return r.missingColumn(t)
	}

	for _, s := range r.pre {
		if err := s.Run(ctx, r, t, field, field); err != nil {
			return fmt.Errorf("stage %s: %w", s.Name(), err)
		}
	}

	target := t.UniqueName(field + "_" + strings.ToLower(r.Type))
	if err := r.validator.Run(ctx, r, t, field, target); err != nil {
		return err
	}

	if t.Len() > 0 {
		for _, s := range r.post {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := s.Run(ctx, r, t, target, field); err != nil {
				return fmt.Errorf("stage %s: %w", s.Name(), err)
			}
		}
	}

	if r.AppendResults {
		return nil
	}

	result, _ := t.Column(target)
	original, _ := t.Column(field)
	original.Values = result.Values
	original.Type = result.Type
	return t.DropColumn(target)
}

// missingColumn - поля нет в таблице
func (r *Rule) missingColumn(t *table.Table) error {
	if err := t.AddColumn(table.NewColumn(r.Field, schema.TypeText, make([]any, t.Len()))); err != nil {
		return err
	}

	all := make([]int, t.Len())
	for i := range all {
		all[i] = i
	}

	if r.Params.Bool("skip_blank") {
		r.logRows(t, all, audit.CategoryIgnored, "column missing, added as empty")
		return nil
	}

	r.logRows(t, all, audit.CategoryRemoved, "column missing")
	t.RemoveRows(all)
	return t.DropColumn(r.Field)
}

// logRows пишет одну запись аудита по строкам positions. Пустой набор не логируется.
func (r *Rule) logRows(t *table.Table, positions []int, category audit.Category, description string) {
	if len(positions) == 0 {
		return
	}
	r.Log.LogHistory(r.Type, r.Field, t.Subset(positions), category, description)
}

func (r *Rule) isSettled(t *table.Table, pos int) bool {
	return r.settled[t.RowID(pos)]
}

func (r *Rule) settle(t *table.Table, pos int) {
	r.settled[t.RowID(pos)] = true
}

// unresolved возвращает позиции, где результат пуст и строка не разрешена стадиями
func (r *Rule) unresolved(t *table.Table, column string) []int {
	col, ok := t.Column(column)
	if !ok {
		return nil
	}
	var out []int
	for i, v := range col.Values {
		if v == nil && !r.isSettled(t, i) {
			out = append(out, i)
		}
	}
	return out
}

// addResult добавляет колонку результата валидатора
func addResult(t *table.Table, target string, typ schema.DataType, values []any) error {
	if err := t.AddColumn(table.NewColumn(target, typ, values)); err != nil {
		return fmt.Errorf("failed to add result column: %w", err)
	}
	return nil
}

// distinctTexts собирает различные непустые значения в порядке появления
type distinctTexts struct {
	seen   map[string]bool
	values []string
}

func newDistinctTexts() *distinctTexts {
	return &distinctTexts{seen: make(map[string]bool)}
}

func (d *distinctTexts) add(v any) {
	if v == nil {
		return
	}
	s := table.Text(v)
	if d.seen[s] {
		return
	}
	d.seen[s] = true
	d.values = append(d.values, s)
}

// dedupColumn удаляет повторы непустых значений колонки, оставляя первое вхождение
func (r *Rule) dedupColumn(t *table.Table, column string) {
	col, ok := t.Column(column)
	if !ok {
		return
	}
	seen := make(map[string]bool)
	var dups []int
	for i, v := range col.Values {
		if table.IsBlank(v) {
			continue
		}
		key := table.Key(v)
		if seen[key] {
			dups = append(dups, i)
			continue
		}
		seen[key] = true
	}
	r.logRows(t, dups, audit.CategoryRemoved, "duplicate value")
	t.RemoveRows(dups)
}
