package scrub

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ruslano69/tdtp-scrubber/pkg/audit"
	"github.com/ruslano69/tdtp-scrubber/pkg/core/table"
	"github.com/ruslano69/tdtp-scrubber/pkg/processors"
)

func strPtr(s string) *string { return &s }

func names(t *testing.T, rows ...string) *table.Table {
	t.Helper()
	data := make([][]any, len(rows))
	for i, r := range rows {
		data[i] = []any{r}
	}
	tbl, err := table.FromRows([]string{"Name"}, data)
	require.NoError(t, err)
	return tbl
}

func nameRule() RuleSpec {
	return RuleSpec{
		RuleType: "String",
		Field:    strPtr("Name"),
		Params: map[string]any{
			"fallback_mode":  "remove_record",
			"minimum_length": 1,
			"maximum_length": 10,
		},
	}
}

func TestScrubber_RemoveRecordScenario(t *testing.T) {
	tbl := names(t, "OK", "", "a_very_long_name_over_ten_chars")
	history := audit.NewHistory(audit.HistoryConfig{})

	s := New([]RuleSpec{nameRule()}, WithAuditLog(history), WithLogger(zaptest.NewLogger(t)))
	result, err := s.Run(context.Background(), tbl)
	require.NoError(t, err)

	col, _ := tbl.Column("Name")
	assert.Equal(t, []any{"OK"}, col.Values)
	assert.Equal(t, 3, result.RowsIn)
	assert.Equal(t, 1, result.RowsOut)
	assert.Equal(t, 1, result.Rules)

	removed := result.Report.ByCategory(audit.CategoryRemoved)
	assert.Len(t, removed, 2)
	assert.Len(t, result.Report, 2)
	assert.Equal(t, Checksum(tbl), result.Checksum)
}

func TestScrubber_TooManyRecords(t *testing.T) {
	tbl := names(t, "a", "b", "c")
	history := audit.NewHistory(audit.HistoryConfig{})

	profile := processors.DefaultProfile()
	profile.MaximumRecords = 2
	s := New([]RuleSpec{nameRule()}, WithProfile(profile), WithAuditLog(history))

	_, err := s.Run(context.Background(), tbl)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTooManyRecords))

	var tooMany *TooManyRecordsError
	require.True(t, errors.As(err, &tooMany))
	assert.Equal(t, 3, tooMany.Records)
	assert.Equal(t, 2, tooMany.Maximum)

	assert.Equal(t, 3, tbl.Len())
	assert.Empty(t, history.Report())
}

func TestScrubber_FailedRunLeavesTableUntouched(t *testing.T) {
	tbl := names(t, "OK", "", "a_very_long_name_over_ten_chars")
	rules := []RuleSpec{
		nameRule(),
		{RuleType: "Uniqueness", Params: map[string]any{"unique_fields": []any{"Missing"}}},
	}

	_, err := New(rules).Run(context.Background(), tbl)
	require.Error(t, err)
	assert.True(t, errors.Is(err, processors.ErrConfigReference))

	col, _ := tbl.Column("Name")
	assert.Equal(t, []any{"OK", "", "a_very_long_name_over_ten_chars"}, col.Values)
}

func TestScrubber_FailedRunWritesNoAudit(t *testing.T) {
	tbl := names(t, "OK", "", "a_very_long_name_over_ten_chars")
	mem := audit.NewMemoryAppender()
	history := audit.NewHistory(audit.HistoryConfig{}, mem)

	failing := New([]RuleSpec{
		nameRule(),
		{RuleType: "Uniqueness", Params: map[string]any{"unique_fields": []any{"Missing"}}},
	}, WithAuditLog(history))

	_, err := failing.Run(context.Background(), tbl)
	require.Error(t, err)
	assert.Empty(t, mem.Entries())
	assert.Empty(t, history.Report())

	res, err := New([]RuleSpec{nameRule()}, WithAuditLog(history)).Run(context.Background(), tbl)
	require.NoError(t, err)
	assert.Len(t, res.Report, 2)
	assert.Len(t, mem.Entries(), 2)
	for _, e := range mem.Entries() {
		assert.Equal(t, audit.CategoryRemoved, e.Category)
	}
}

func TestScrubber_InvalidRuleFailsBeforeRun(t *testing.T) {
	tbl := names(t, "OK", "")
	rules := []RuleSpec{
		nameRule(),
		{RuleType: "String", Field: strPtr("Name"), Params: map[string]any{"maximum_lenght": 3}},
	}

	s := New(rules)
	_, err := s.Check(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, processors.ErrConfigValidation))

	_, err = s.Run(context.Background(), tbl)
	require.Error(t, err)
	assert.Equal(t, 2, tbl.Len())
}

func TestScrubber_RulesSeeEarlierChanges(t *testing.T) {
	tbl, err := table.FromRows([]string{"Name", "City"}, [][]any{
		{"Anna", "Berlin"},
		{"Anna", "Paris"},
		{"", "Rome"},
	})
	require.NoError(t, err)

	rules := []RuleSpec{
		nameRule(),
		{RuleType: "Uniqueness", Params: map[string]any{"unique_fields": []any{"Name"}}},
	}
	result, err := New(rules).Run(context.Background(), tbl)
	require.NoError(t, err)

	city, _ := tbl.Column("City")
	assert.Equal(t, []any{"Berlin"}, city.Values)
	assert.Equal(t, 1, result.RowsOut)
}

func TestScrubber_SessionScores(t *testing.T) {
	tbl, err := table.FromRows([]string{"K", "Start", "End"}, [][]any{
		{"A", "2024-01-01 10:00:00", "2024-01-01 11:00:00"},
		{"A", "2024-01-01 11:30:00", "2024-01-01 12:00:00"},
		{"B", "2024-01-01 09:00:00", "2024-01-01 10:00:00"},
	})
	require.NoError(t, err)

	rules := []RuleSpec{
		nameRuleFor("K"),
		{RuleType: "Session", Params: map[string]any{
			"key_field":   "K",
			"start_field": "Start",
			"end_field":   "End",
			"date_format": "%Y-%m-%d %H:%M:%S",
			"gaps_option": "extend_end",
		}},
	}

	scores, err := New(rules).SessionScores(context.Background(), tbl)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, SessionScore{Index: 1, Good: 1, Total: 3}, scores[0])
	assert.Equal(t, 3, tbl.Len())
}

func nameRuleFor(field string) RuleSpec {
	spec := nameRule()
	spec.Field = strPtr(field)
	return spec
}

func TestChecksum(t *testing.T) {
	a := names(t, "x", "y")
	b := names(t, "x", "y")
	c := names(t, "y", "x")
	assert.Equal(t, Checksum(a), Checksum(b))
	assert.NotEqual(t, Checksum(a), Checksum(c))
	assert.Len(t, Checksum(a), 16)
}
