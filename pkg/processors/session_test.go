package processors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruslano69/tdtp-scrubber/pkg/audit"
	"github.com/ruslano69/tdtp-scrubber/pkg/core/table"
)

const sessionFormat = "%Y-%m-%d %H:%M:%S"

func ts(clock string) string {
	return "2024-01-01 " + clock
}

func sessionSpec(params map[string]any) RuleSpec {
	p := map[string]any{
		"key_field":   "K",
		"start_field": "Start",
		"end_field":   "End",
		"date_format": sessionFormat,
	}
	for k, v := range params {
		p[k] = v
	}
	return RuleSpec{RuleType: "Session", Params: p}
}

func sessionTable(t *testing.T, rows ...[]any) *table.Table {
	return textTable(t, []string{"K", "Start", "End", "Note"}, rows...)
}

func TestSession_ExtendEndClosesGapsOnce(t *testing.T) {
	tbl := sessionTable(t,
		[]any{"A", ts("10:00:00"), ts("11:00:00"), "a1"},
		[]any{"A", ts("12:00:00"), ts("13:00:00"), "a3"},
		[]any{"B", ts("09:00:00"), ts("10:00:00"), "b1"},
		[]any{"A", ts("11:00:00"), ts("11:30:00"), "a2"},
		[]any{"A", ts("13:00:30"), ts("14:00:00"), "a4"},
	)

	spec := sessionSpec(map[string]any{
		"gaps_option":         "extend_end",
		"allowed_gap_seconds": 60,
	})
	rule, history := buildRule(t, spec, Deps{})
	require.NoError(t, rule.RunAll(context.Background(), tbl))

	assert.Equal(t, []any{"a1", "a2", "a3", "a4", "b1"}, values(t, tbl, "Note"))
	assert.Equal(t, []any{ts("11:00:00"), ts("12:00:00"), ts("13:00:00"), ts("14:00:00"), ts("10:00:00")}, values(t, tbl, "End"))

	report := history.Report()
	require.Len(t, report, 1)
	entry := report[0]
	assert.Equal(t, audit.CategoryModified, entry.Category)
	assert.Equal(t, 1, entry.RecordsAffected)
	after, ok := entry.Affected.Column("End_after")
	require.True(t, ok)
	assert.Equal(t, []any{ts("12:00:00")}, after.Values)
	before, _ := entry.Affected.Column("End_before")
	assert.Equal(t, []any{ts("11:30:00")}, before.Values)

	history.ResetReport()
	require.NoError(t, rule.RunAll(context.Background(), tbl))
	assert.Empty(t, history.Report())
	assert.Equal(t, []any{ts("11:00:00"), ts("12:00:00"), ts("13:00:00"), ts("14:00:00"), ts("10:00:00")}, values(t, tbl, "End"))
}

func TestSession_ExtendStart(t *testing.T) {
	tbl := sessionTable(t,
		[]any{"A", ts("12:00:00"), ts("13:00:00"), "a2"},
		[]any{"B", ts("08:00:00"), ts("09:00:00"), "b1"},
		[]any{"A", ts("10:00:00"), ts("11:00:00"), "a1"},
	)
	rule, history := buildRule(t, sessionSpec(map[string]any{"gaps_option": "extend_start"}), Deps{})
	require.NoError(t, rule.RunAll(context.Background(), tbl))

	assert.Equal(t, []any{"a1", "a2", "b1"}, values(t, tbl, "Note"))
	assert.Equal(t, []any{ts("10:00:00"), ts("11:00:00"), ts("08:00:00")}, values(t, tbl, "Start"))
	assert.Equal(t, []any{ts("11:00:00"), ts("13:00:00"), ts("09:00:00")}, values(t, tbl, "End"))

	report := history.Report()
	require.Len(t, report, 1)
	assert.Equal(t, audit.CategoryModified, report[0].Category)
	before, ok := report[0].Affected.Column("Start_before")
	require.True(t, ok)
	assert.Equal(t, []any{ts("12:00:00")}, before.Values)
	after, ok := report[0].Affected.Column("Start_after")
	require.True(t, ok)
	assert.Equal(t, []any{ts("11:00:00")}, after.Values)
}

func TestSession_TruncateOverlaps(t *testing.T) {
	tests := []struct {
		option    string
		wantStart []any
		wantEnd   []any
	}{
		{"truncate_end", []any{ts("10:00:00"), ts("11:00:00")}, []any{ts("11:00:00"), ts("13:00:00")}},
		{"truncate_start", []any{ts("10:00:00"), ts("12:00:00")}, []any{ts("12:00:00"), ts("13:00:00")}},
	}

	for _, tt := range tests {
		t.Run(tt.option, func(t *testing.T) {
			tbl := sessionTable(t,
				[]any{"A", ts("11:00:00"), ts("13:00:00"), "second"},
				[]any{"A", ts("10:00:00"), ts("12:00:00"), "first"},
			)
			report := runRule(t, sessionSpec(map[string]any{"overlaps_option": tt.option}), Deps{}, tbl)

			assert.Equal(t, []any{"first", "second"}, values(t, tbl, "Note"))
			assert.Equal(t, tt.wantStart, values(t, tbl, "Start"))
			assert.Equal(t, tt.wantEnd, values(t, tbl, "End"))
			assert.Equal(t, []audit.Category{audit.CategoryModified}, categories(report))
		})
	}
}

func TestSession_AllowedOverlap(t *testing.T) {
	tbl := sessionTable(t,
		[]any{"A", ts("10:00:00"), ts("11:00:30"), "a1"},
		[]any{"A", ts("11:00:00"), ts("12:00:00"), "a2"},
	)
	report := runRule(t, sessionSpec(map[string]any{
		"overlaps_option":         "truncate_end",
		"allowed_overlap_seconds": 30,
	}), Deps{}, tbl)

	assert.Empty(t, report)
	assert.Equal(t, []any{ts("11:00:30"), ts("12:00:00")}, values(t, tbl, "End"))
}

func TestSession_InsertNew(t *testing.T) {
	tests := []struct {
		template string
		wantNote any
	}{
		{"", "a1"},
		{"next", "a2"},
		{"GAP", "GAP"},
	}

	for _, tt := range tests {
		t.Run("template "+tt.template, func(t *testing.T) {
			tbl := sessionTable(t,
				[]any{"A", ts("12:00:00"), ts("13:00:00"), "a2"},
				[]any{"A", ts("10:00:00"), ts("11:00:00"), "a1"},
			)
			report := runRule(t, sessionSpec(map[string]any{
				"gaps_option":      "insert_new",
				"template_for_new": tt.template,
			}), Deps{}, tbl)

			require.Equal(t, 3, tbl.Len())
			assert.Equal(t, []any{"A", "A", "A"}, values(t, tbl, "K"))
			assert.Equal(t, []any{ts("10:00:00"), ts("11:00:00"), ts("12:00:00")}, values(t, tbl, "Start"))
			assert.Equal(t, []any{ts("11:00:00"), ts("12:00:00"), ts("13:00:00")}, values(t, tbl, "End"))
			assert.Equal(t, tt.wantNote, values(t, tbl, "Note")[1])
			assert.Equal(t, 2, tbl.RowID(1), "inserted row gets a new id")

			require.Len(t, report, 1)
			assert.Equal(t, audit.CategoryInserted, report[0].Category)
		})
	}
}

func TestSession_ZeroLengthAndInvalidRows(t *testing.T) {
	tbl := sessionTable(t,
		[]any{"A", "bad", ts("11:00:00"), "invalid"},
		[]any{"A", ts("10:00:00"), ts("10:00:00"), "zero"},
		[]any{"A", ts("09:00:00"), ts("10:00:00"), "ok"},
	)
	report := runRule(t, sessionSpec(nil), Deps{}, tbl)

	assert.Equal(t, []any{"ok", "invalid"}, values(t, tbl, "Note"))
	assert.Equal(t, []any{ts("09:00:00"), "bad"}, values(t, tbl, "Start"))
	require.Len(t, report, 1)
	assert.Equal(t, audit.CategoryRemoved, report[0].Category)
	assert.Equal(t, []int{1}, report[0].RowIDs)
}

func TestSession_KeepZeroLength(t *testing.T) {
	tbl := sessionTable(t, []any{"A", ts("10:00:00"), ts("10:00:00"), "zero"})
	report := runRule(t, sessionSpec(map[string]any{"remove_zero_length": false}), Deps{}, tbl)

	assert.Equal(t, 1, tbl.Len())
	assert.Empty(t, report)
}

func TestSession_CountGoodRows(t *testing.T) {
	rows := [][]any{
		{"A", ts("10:00:00"), ts("11:00:00"), "a1"},
		{"A", ts("12:00:00"), ts("13:00:00"), "a2"},
		{"B", ts("09:00:00"), ts("10:00:00"), "b1"},
		{"C", "bad", ts("10:00:00"), "c1"},
	}

	tests := []struct {
		name   string
		params map[string]any
		want   int
	}{
		{"all ignored", nil, 3},
		{"gap not allowed", map[string]any{"gaps_option": "extend_end"}, 1},
		{"gap within tolerance", map[string]any{"gaps_option": "extend_end", "allowed_gap_seconds": 3600}, 3},
		{"overlap policy only", map[string]any{"overlaps_option": "truncate_end"}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := sessionTable(t, rows...)
			rule, history := buildRule(t, sessionSpec(tt.params), Deps{})

			got, err := rule.CountGoodRows(tbl)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, 4, tbl.Len())
			assert.Equal(t, "a1", tbl.Value("Note", 0))
			assert.Empty(t, history.Report())
		})
	}
}

func TestSession_CountGoodRowsWrongRule(t *testing.T) {
	rule, _ := buildRule(t, stringSpec("x", map[string]any{"minimum_length": 0, "maximum_length": 1}), Deps{})
	_, err := rule.CountGoodRows(sessionTable(t))
	assert.Error(t, err)
}
