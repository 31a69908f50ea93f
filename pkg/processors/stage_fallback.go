package processors

import (
	"context"
	"sort"
	"strings"

	"github.com/zeebo/xxh3"
	"go.uber.org/zap"

	"github.com/ruslano69/tdtp-scrubber/pkg/audit"
	"github.com/ruslano69/tdtp-scrubber/pkg/core/table"
	"github.com/ruslano69/tdtp-scrubber/pkg/similarity"
)

// Режимы fallback_mode
const (
	FallbackDefault = "use_default_value"
	FallbackInvalid = "use_invalid_data"
	FallbackRemove  = "remove_entry"
)

// skipBlankStage пропускает пустые исходные значения без изменений
type skipBlankStage struct {
	enabled bool
}

func (s *skipBlankStage) Name() string { return "skip_blank" }

func (s *skipBlankStage) Fields() []Field {
	return []Field{Optional("skip_blank", false, BoolParam())}
}

func (s *skipBlankStage) Bind(_ context.Context, r *Rule) error {
	s.enabled = r.Params.Bool("skip_blank")
	return nil
}

func (s *skipBlankStage) Run(_ context.Context, r *Rule, t *table.Table, column, original string) error {
	if !s.enabled {
		return nil
	}
	src, _ := t.Column(original)
	dst, _ := t.Column(column)

	var skipped []int
	for i, v := range src.Values {
		if !table.IsBlank(v) {
			continue
		}
		dst.Values[i] = v
		r.settle(t, i)
		skipped = append(skipped, i)
	}
	r.logRows(t, skipped, audit.CategoryIgnored, "blank value skipped")
	return nil
}

// bestMatchStage подбирает ближайшее допустимое значение по строковому расстоянию
type bestMatchStage struct {
	enabled   bool
	threshold float64
}

func (s *bestMatchStage) Name() string { return "best_match" }

func (s *bestMatchStage) Fields() []Field {
	return []Field{
		Optional("attempt_closest_match", false, BoolParam()),
		Optional("string_distance_threshold", 0.7, FloatRange(0, 1)),
	}
}

func (s *bestMatchStage) Bind(_ context.Context, r *Rule) error {
	s.enabled = r.Params.Bool("attempt_closest_match")
	s.threshold = r.Params.Float("string_distance_threshold")
	return nil
}

func (s *bestMatchStage) Run(_ context.Context, r *Rule, t *table.Table, column, original string) error {
	if !s.enabled || len(r.ReferenceList) == 0 {
		return nil
	}
	src, _ := t.Column(original)
	dst, _ := t.Column(column)

	var candidates []int
	distinct := make(map[string]bool)
	for _, pos := range r.unresolved(t, column) {
		if v := src.Values[pos]; !table.IsBlank(v) {
			candidates = append(candidates, pos)
			distinct[table.Text(v)] = true
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	if len(distinct) > r.Profile.MaximumRecordsClosestMatches {
		r.Logger.Warn("closest match skipped",
			zap.Int("distinct_values", len(distinct)),
			zap.Int("maximum_records_closest_matches", r.Profile.MaximumRecordsClosestMatches))
		return nil
	}

	matcher, err := similarity.NewMatcher(r.ReferenceList, len(distinct))
	if err != nil {
		return err
	}

	var replaced []int
	for _, pos := range candidates {
		if m, ok := matcher.Above(table.Text(src.Values[pos]), s.threshold); ok {
			dst.Values[pos] = m.Value
			replaced = append(replaced, pos)
		}
	}
	r.logRows(t, replaced, audit.CategoryReplaced, "closest match")
	return nil
}

// lookalikeStage берет значение из строки, наиболее похожей по остальным колонкам
type lookalikeStage struct {
	enabled   bool
	threshold float64
}

func (s *lookalikeStage) Name() string { return "lookalike" }

func (s *lookalikeStage) Fields() []Field {
	return []Field{Optional("lookalike_match", false, BoolParam())}
}

func (s *lookalikeStage) Bind(_ context.Context, r *Rule) error {
	s.enabled = r.Params.Bool("lookalike_match")
	s.threshold = r.Params.Float("string_distance_threshold")
	return nil
}

// rowKey - ключ сходства строки: все колонки, кроме обрабатываемой
func rowKey(t *table.Table, pos int, skip map[string]bool) string {
	var parts []string
	for _, c := range t.Columns() {
		if skip[c.Name] {
			continue
		}
		parts = append(parts, table.Text(c.Values[pos]))
	}
	return strings.Join(parts, " ")
}

func (s *lookalikeStage) Run(_ context.Context, r *Rule, t *table.Table, column, original string) error {
	if !s.enabled {
		return nil
	}

	pending := r.unresolved(t, column)
	if len(pending) == 0 {
		return nil
	}
	if len(pending) > r.Profile.MaximumRecordsLookalike || t.Len() > r.Profile.MaximumFileRecordsLookalike {
		r.Logger.Warn("lookalike match skipped",
			zap.Int("unresolved", len(pending)),
			zap.Int("rows", t.Len()),
			zap.Int("maximum_records_lookalike", r.Profile.MaximumRecordsLookalike),
			zap.Int("maximum_file_records_lookalike", r.Profile.MaximumFileRecordsLookalike))
		return nil
	}

	dst, _ := t.Column(column)
	skip := map[string]bool{column: true, original: true}

	type sample struct {
		pos  int
		key  string
		hash uint64
	}
	var resolved []sample
	for pos, v := range dst.Values {
		if table.IsBlank(v) || r.isSettled(t, pos) {
			continue
		}
		key := rowKey(t, pos, skip)
		resolved = append(resolved, sample{pos: pos, key: key, hash: xxh3.HashString(key)})
	}
	if len(resolved) == 0 {
		return nil
	}

	sort.SliceStable(resolved, func(i, j int) bool { return resolved[i].hash < resolved[j].hash })
	if n := r.Profile.LookalikeNumberRecords; n > 0 && len(resolved) > n {
		resolved = resolved[:n]
	}

	keys := make([]string, len(resolved))
	for i, smp := range resolved {
		keys[i] = smp.key
	}
	matcher, err := similarity.NewMatcher(keys, len(pending))
	if err != nil {
		return err
	}

	var replaced []int
	for _, pos := range pending {
		m, ok := matcher.Above(rowKey(t, pos, skip), s.threshold)
		if !ok {
			continue
		}
		dst.Values[pos] = dst.Values[resolved[m.Index].pos]
		replaced = append(replaced, pos)
	}
	r.logRows(t, replaced, audit.CategoryReplaced, "lookalike match")
	return nil
}

// fallbackStage разрешает оставшиеся NULL одной политикой
type fallbackStage struct {
	mode         string
	defaultValue string
}

func (s *fallbackStage) Name() string { return "fallback" }

func (s *fallbackStage) Fields() []Field {
	return []Field{
		Optional("fallback_mode", FallbackInvalid,
			OneOf(FallbackDefault, FallbackInvalid, FallbackRemove).WithAliases(map[string]string{
				"default":       FallbackDefault,
				"keep_invalid":  FallbackInvalid,
				"remove_record": FallbackRemove,
			})),
		Optional("default_value", "", StringParam()),
	}
}

func (s *fallbackStage) Bind(_ context.Context, r *Rule) error {
	s.mode = r.Params.String("fallback_mode")
	s.defaultValue = r.Params.String("default_value")
	return nil
}

func (s *fallbackStage) Run(_ context.Context, r *Rule, t *table.Table, column, original string) error {
	pending := r.unresolved(t, column)
	if len(pending) == 0 {
		return nil
	}
	src, _ := t.Column(original)
	dst, _ := t.Column(column)

	var blank, invalid []int
	for _, pos := range pending {
		if table.IsBlank(src.Values[pos]) {
			blank = append(blank, pos)
		} else {
			invalid = append(invalid, pos)
		}
	}

	groups := []struct {
		positions []int
		what      string
	}{
		{blank, "blank value"},
		{invalid, "invalid value"},
	}

	switch s.mode {
	case FallbackDefault:
		for _, pos := range pending {
			dst.Values[pos] = s.defaultValue
		}
		for _, g := range groups {
			r.logRows(t, g.positions, audit.CategoryReplaced, g.what+" replaced with default")
		}
	case FallbackRemove:
		for _, g := range groups {
			r.logRows(t, g.positions, audit.CategoryRemoved, g.what+" removed")
		}
		t.RemoveRows(pending)
	default:
		for _, pos := range pending {
			dst.Values[pos] = src.Values[pos]
		}
		for _, g := range groups {
			r.logRows(t, g.positions, audit.CategoryIgnored, g.what+" kept")
		}
	}
	return nil
}
