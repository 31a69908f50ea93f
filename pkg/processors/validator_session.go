package processors

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ruslano69/tdtp-scrubber/pkg/audit"
	"github.com/ruslano69/tdtp-scrubber/pkg/core/schema"
	"github.com/ruslano69/tdtp-scrubber/pkg/core/table"
)

const (
	optionIgnore         = "ignore"
	overlapTruncateStart = "truncate_start"
	overlapTruncateEnd   = "truncate_end"
	gapExtendStart       = "extend_start"
	gapExtendEnd         = "extend_end"
	gapInsertNew         = "insert_new"

	// templateNext - новая строка копирует строку после разрыва
	templateNext = "next"
)

// sessionValidator сводит интервалы (start, end) одного ключа:
// перекрытия обрезаются, разрывы закрываются или заполняются новыми строками.
type sessionValidator struct {
	keyField       string
	startField     string
	endField       string
	format         schema.DateFormat
	overlaps       string
	gaps           string
	allowedGap     float64
	allowedOverlap float64
	template       string
	removeZero     bool
}

func newSessionValidator() Validator { return &sessionValidator{} }

func (v *sessionValidator) Fields() []Field {
	return []Field{
		Required("key_field", StringParam()),
		Required("start_field", StringParam()),
		Required("end_field", StringParam()),
		Required("date_format", StringParam()),
		Optional("overlaps_option", optionIgnore, OneOf(optionIgnore, overlapTruncateStart, overlapTruncateEnd)),
		Optional("gaps_option", optionIgnore, OneOf(optionIgnore, gapExtendStart, gapExtendEnd, gapInsertNew)),
		Optional("allowed_gap_seconds", 0.0, FloatAtLeast(0)),
		Optional("allowed_overlap_seconds", 0.0, FloatAtLeast(0)),
		Optional("template_for_new", "", StringParam()),
		Optional("remove_zero_length", true, BoolParam()),
	}
}

func (v *sessionValidator) Bind(_ context.Context, r *Rule) error {
	format, err := schema.NewDateFormat(r.Params.String("date_format"))
	if err != nil {
		return invalidParam(r.Type, "date_format", r.Params.String("date_format"), err)
	}
	v.format = format
	v.keyField = r.Params.String("key_field")
	v.startField = r.Params.String("start_field")
	v.endField = r.Params.String("end_field")
	if v.startField == v.endField {
		return crossError(r.Type, "start_field and end_field must differ")
	}
	v.overlaps = r.Params.String("overlaps_option")
	v.gaps = r.Params.String("gaps_option")
	v.allowedGap = r.Params.Float("allowed_gap_seconds")
	v.allowedOverlap = r.Params.Float("allowed_overlap_seconds")
	v.template = r.Params.String("template_for_new")
	v.removeZero = r.Params.Bool("remove_zero_length")
	return nil
}

// session - интервал одной строки таблицы
type session struct {
	id    int
	pos   int
	key   string
	start time.Time
	end   time.Time
	valid bool

	startChanged bool
	endChanged   bool
}

// sessionPair - соседние интервалы одного ключа со значениями на момент шага
type sessionPair struct {
	a, b   *session
	aEnd   time.Time
	bStart time.Time
}

// sessionChange - значения интервала до шага
type sessionChange struct {
	s          *session
	start, end time.Time
}

type sessionColumns struct {
	key, start, end string
}

func (v *sessionValidator) columns(r *Rule, t *table.Table) (sessionColumns, error) {
	var cols sessionColumns
	refs := []*string{&cols.key, &cols.start, &cols.end}
	for i, ref := range []string{v.keyField, v.startField, v.endField} {
		name, ok := t.ResolveField(ref)
		if !ok {
			return cols, missingField(r.Type, ref)
		}
		*refs[i] = name
	}
	return cols, nil
}

func (v *sessionValidator) load(t *table.Table, cols sessionColumns) []*session {
	rows := make([]*session, t.Len())
	for pos := range rows {
		s := &session{id: t.RowID(pos), pos: pos, key: table.Text(t.Value(cols.key, pos))}
		var okStart, okEnd bool
		s.start, okStart = v.format.Parse(t.Value(cols.start, pos))
		s.end, okEnd = v.format.Parse(t.Value(cols.end, pos))
		s.valid = okStart && okEnd
		rows[pos] = s
	}
	return rows
}

// sortSessions: корректные строки по (key, start, end), затем некорректные в исходном порядке
func sortSessions(rows []*session) []*session {
	sorted := make([]*session, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.valid != b.valid {
			return a.valid
		}
		if !a.valid {
			return false
		}
		if a.key != b.key {
			return a.key < b.key
		}
		if !a.start.Equal(b.start) {
			return a.start.Before(b.start)
		}
		return a.end.Before(b.end)
	})
	return sorted
}

// pairs возвращает соседние интервалы одного ключа
func pairs(sorted []*session) []sessionPair {
	var out []sessionPair
	for i := 0; i+1 < len(sorted); i++ {
		a, b := sorted[i], sorted[i+1]
		if !a.valid || !b.valid || a.key != b.key {
			continue
		}
		out = append(out, sessionPair{a: a, b: b, aEnd: a.end, bStart: b.start})
	}
	return out
}

func (v *sessionValidator) Run(_ context.Context, r *Rule, t *table.Table, _, _ string) error {
	cols, err := v.columns(r, t)
	if err != nil {
		return err
	}

	rows := v.load(t, cols)

	if v.overlaps != optionIgnore {
		var changes []sessionChange
		for _, p := range pairs(sortSessions(rows)) {
			if p.aEnd.Sub(p.bStart).Seconds() <= v.allowedOverlap {
				continue
			}
			if v.overlaps == overlapTruncateEnd {
				changes = append(changes, sessionChange{s: p.a, start: p.a.start, end: p.a.end})
				p.a.end, p.a.endChanged = p.bStart, true
			} else {
				changes = append(changes, sessionChange{s: p.b, start: p.b.start, end: p.b.end})
				p.b.start, p.b.startChanged = p.aEnd, true
			}
		}
		v.logChanges(r, t, cols, changes, "overlap truncated")
	}

	var inserted []*session
	if v.gaps != optionIgnore {
		var changes []sessionChange
		for _, p := range pairs(sortSessions(rows)) {
			if p.bStart.Sub(p.aEnd).Seconds() <= v.allowedGap {
				continue
			}
			switch v.gaps {
			case gapExtendEnd:
				changes = append(changes, sessionChange{s: p.a, start: p.a.start, end: p.a.end})
				p.a.end, p.a.endChanged = p.bStart, true
			case gapExtendStart:
				changes = append(changes, sessionChange{s: p.b, start: p.b.start, end: p.b.end})
				p.b.start, p.b.startChanged = p.aEnd, true
			case gapInsertNew:
				s, err := v.insert(t, cols, p)
				if err != nil {
					return err
				}
				inserted = append(inserted, s)
			}
		}
		v.logChanges(r, t, cols, changes, "gap closed")
	}

	for _, s := range rows {
		if s.startChanged {
			_ = t.Set(cols.start, s.pos, v.cell(t, cols.start, s.pos, s.start))
		}
		if s.endChanged {
			_ = t.Set(cols.end, s.pos, v.cell(t, cols.end, s.pos, s.end))
		}
	}

	if len(inserted) > 0 {
		positions := make([]int, len(inserted))
		for i, s := range inserted {
			positions[i] = s.pos
		}
		r.logRows(t, positions, audit.CategoryInserted, "session inserted into gap")
		rows = append(rows, inserted...)
	}

	byID := make(map[int]*session, len(rows))
	rank := make(map[int]int, len(rows))
	for i, s := range sortSessions(rows) {
		byID[s.id] = s
		rank[s.id] = i
	}
	ids := t.RowIDs()
	t.SortBy(func(a, b int) bool {
		return rank[ids[a]] < rank[ids[b]]
	})

	if v.removeZero {
		var zero []int
		for pos := 0; pos < t.Len(); pos++ {
			if s := byID[t.RowID(pos)]; s != nil && s.valid && s.start.Equal(s.end) {
				zero = append(zero, pos)
			}
		}
		r.logRows(t, zero, audit.CategoryRemoved, "zero length session")
		t.RemoveRows(zero)
	}

	return nil
}

// insert добавляет строку, заполняющую разрыв между p.a и p.b
func (v *sessionValidator) insert(t *table.Table, cols sessionColumns, p sessionPair) (*session, error) {
	var values []any
	switch v.template {
	case "":
		values = t.Row(p.a.pos)
	case templateNext:
		values = t.Row(p.b.pos)
	default:
		values = make([]any, len(t.Columns()))
		for i := range values {
			values[i] = v.template
		}
	}

	values[t.Index(cols.key)] = t.Value(cols.key, p.a.pos)
	values[t.Index(cols.start)] = v.cell(t, cols.start, p.a.pos, p.aEnd)
	values[t.Index(cols.end)] = v.cell(t, cols.end, p.a.pos, p.bStart)

	id, err := t.AppendRow(values)
	if err != nil {
		return nil, fmt.Errorf("failed to insert session: %w", err)
	}
	return &session{
		id:    id,
		pos:   t.Len() - 1,
		key:   p.a.key,
		start: p.aEnd,
		end:   p.bStart,
		valid: true,
	}, nil
}

// cell возвращает значение для записи: time.Time для колонок с time.Time, иначе текст в date_format
func (v *sessionValidator) cell(t *table.Table, column string, like int, ts time.Time) any {
	if _, ok := t.Value(column, like).(time.Time); ok {
		return ts
	}
	return v.format.Format(ts)
}

// logChanges пишет одну запись MODIFIED с колонками до/после
func (v *sessionValidator) logChanges(r *Rule, t *table.Table, cols sessionColumns, changes []sessionChange, description string) {
	if len(changes) == 0 {
		return
	}

	positions := make([]int, len(changes))
	for i, c := range changes {
		positions[i] = c.s.pos
	}
	snapshot := t.Subset(positions)

	extra := []struct {
		name  string
		value func(c sessionChange) time.Time
	}{
		{cols.start + "_before", func(c sessionChange) time.Time { return c.start }},
		{cols.start + "_after", func(c sessionChange) time.Time { return c.s.start }},
		{cols.end + "_before", func(c sessionChange) time.Time { return c.end }},
		{cols.end + "_after", func(c sessionChange) time.Time { return c.s.end }},
	}
	for _, e := range extra {
		values := make([]any, len(changes))
		for i, c := range changes {
			values[i] = v.format.Format(e.value(c))
		}
		_ = snapshot.AddColumn(table.NewColumn(snapshot.UniqueName(e.name), schema.TypeText, values))
	}

	r.Log.LogHistory(r.Type, r.Field, snapshot, audit.CategoryModified, description)
}

// countGoodRows - число корректных строк, которые уже удовлетворяют политикам:
// без соседа того же ключа или со всеми соседями в пределах допусков.
func (v *sessionValidator) countGoodRows(r *Rule, t *table.Table) (int, error) {
	cols, err := v.columns(r, t)
	if err != nil {
		return 0, err
	}

	rows := v.load(t, cols)
	bad := make(map[*session]bool)
	for _, p := range pairs(sortSessions(rows)) {
		gapOK := v.gaps == optionIgnore || p.bStart.Sub(p.aEnd).Seconds() <= v.allowedGap
		overlapOK := v.overlaps == optionIgnore || p.aEnd.Sub(p.bStart).Seconds() <= v.allowedOverlap
		if !gapOK || !overlapOK {
			bad[p.a], bad[p.b] = true, true
		}
	}

	good := 0
	for _, s := range rows {
		if s.valid && !bad[s] {
			good++
		}
	}
	return good, nil
}

// CountGoodRows оценивает таблицу правилом Session без изменений
func (r *Rule) CountGoodRows(t *table.Table) (int, error) {
	v, ok := r.validator.(*sessionValidator)
	if !ok {
		return 0, fmt.Errorf("rule_type %s does not support count_good_rows", r.Type)
	}
	return v.countGoodRows(r, t)
}
