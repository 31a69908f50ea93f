package processors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruslano69/tdtp-scrubber/pkg/audit"
	"github.com/ruslano69/tdtp-scrubber/pkg/core/schema"
	"github.com/ruslano69/tdtp-scrubber/pkg/core/table"
)

func stringSpec(field string, params map[string]any) RuleSpec {
	return RuleSpec{RuleType: "String", Field: strPtr(field), Params: params}
}

func TestString_RemoveRecordScenario(t *testing.T) {
	tbl := textTable(t, []string{"Name"},
		[]any{"OK"},
		[]any{""},
		[]any{"a_very_long_name_over_ten_chars"},
	)

	report := runRule(t, stringSpec("Name", map[string]any{
		"minimum_length": 1,
		"maximum_length": 10,
		"fallback_mode":  "remove_record",
	}), Deps{}, tbl)

	require.Equal(t, 1, tbl.Len())
	assert.Equal(t, []any{"OK"}, values(t, tbl, "Name"))
	assert.Equal(t, []string{"Name"}, tbl.ColumnNames())
	assert.Equal(t, []audit.Category{audit.CategoryRemoved, audit.CategoryRemoved}, categories(report))
}

func TestString_Idempotent(t *testing.T) {
	tbl := textTable(t, []string{"Name"}, []any{"alpha"}, []any{"beta"}, []any{"x"})
	before := append([]any(nil), values(t, tbl, "Name")...)

	spec := stringSpec("Name", map[string]any{
		"minimum_length": 2,
		"maximum_length": 10,
		"regex":          "[a-z]+",
	})

	report := runRule(t, spec, Deps{}, tbl)
	assert.Equal(t, before, values(t, tbl, "Name"))
	assert.Equal(t, []audit.Category{audit.CategoryIgnored}, categories(report))

	runRule(t, spec, Deps{}, tbl)
	assert.Equal(t, before, values(t, tbl, "Name"))
}

func TestString_StripAndUnique(t *testing.T) {
	tbl := textTable(t, []string{"Code"}, []any{" a "}, []any{"a"}, []any{"b"}, []any{"b"})

	report := runRule(t, stringSpec("Code", map[string]any{
		"minimum_length": 1,
		"maximum_length": 5,
		"strip":          true,
		"is_unique":      true,
	}), Deps{}, tbl)

	assert.Equal(t, []any{"a", "a", "b"}, values(t, tbl, "Code"))
	require.Len(t, report, 2)
	assert.Equal(t, audit.CategoryRemoved, report[0].Category)
	assert.Equal(t, []int{3}, report[0].RowIDs)
	assert.Equal(t, audit.CategoryModified, report[1].Category)
	assert.Equal(t, []int{0}, report[1].RowIDs)
}

func TestString_RegexIsAnchored(t *testing.T) {
	tbl := textTable(t, []string{"Digits"}, []any{"123"}, []any{"12a"})

	runRule(t, stringSpec("Digits", map[string]any{
		"minimum_length": 1,
		"maximum_length": 5,
		"regex":          "[0-9]+",
		"fallback_mode":  "default",
		"default_value":  "X",
	}), Deps{}, tbl)

	assert.Equal(t, []any{"123", "X"}, values(t, tbl, "Digits"))
}

func TestString_AppendResultsAndPositionalField(t *testing.T) {
	tbl := textTable(t, []string{"ID", "Name"}, []any{"1", "ok"}, []any{"2", "toolong"})

	spec := stringSpec("1", map[string]any{
		"minimum_length": 1,
		"maximum_length": 3,
		"fallback_mode":  FallbackDefault,
	})
	spec.AppendResults = true
	runRule(t, spec, Deps{}, tbl)

	assert.Equal(t, []string{"ID", "Name", "Name_string"}, tbl.ColumnNames())
	assert.Equal(t, []any{"ok", "toolong"}, values(t, tbl, "Name"))
	assert.Equal(t, []any{"ok", ""}, values(t, tbl, "Name_string"))
}

func numberSpec(field string, params map[string]any) RuleSpec {
	return RuleSpec{RuleType: "Number", Field: strPtr(field), Params: params}
}

func TestNumber_FixDecimalPlaces(t *testing.T) {
	tbl := textTable(t, []string{"Amount"}, []any{"3.14159"})

	report := runRule(t, numberSpec("Amount", map[string]any{
		"decimal_places":     2,
		"fix_decimal_places": true,
		"minimum_value":      0,
		"maximum_value":      10,
	}), Deps{}, tbl)

	assert.Equal(t, []any{"3.14"}, values(t, tbl, "Amount"))
	require.Len(t, report, 1)
	assert.Equal(t, audit.CategoryModified, report[0].Category)
	assert.Equal(t, "decimal places fixed", report[0].Description)
}

func TestNumber_TextRejections(t *testing.T) {
	tbl := textTable(t, []string{"Amount"}, []any{"3.14159"}, []any{"2.5"}, []any{"abc"}, []any{"11"})

	report := runRule(t, numberSpec("Amount", map[string]any{
		"decimal_places": 2,
		"minimum_value":  0,
		"maximum_value":  10,
		"fallback_mode":  FallbackDefault,
		"default_value":  "0",
	}), Deps{}, tbl)

	assert.Equal(t, []any{"0", "2.5", "0", "0"}, values(t, tbl, "Amount"))
	require.Len(t, report, 1)
	assert.Equal(t, audit.CategoryReplaced, report[0].Category)
	assert.Equal(t, 3, report[0].RecordsAffected)
}

func TestNumber_NumericColumn(t *testing.T) {
	tbl, err := table.New(table.NewColumn("v", schema.TypeReal, []any{2.345, 7.0, 12.0}))
	require.NoError(t, err)

	runRule(t, numberSpec("v", map[string]any{
		"decimal_places":     2,
		"fix_decimal_places": true,
		"minimum_value":      0,
		"maximum_value":      10,
	}), Deps{}, tbl)

	got := values(t, tbl, "v")
	assert.InDelta(t, 2.35, got[0], 1e-9)
	assert.Equal(t, 7.0, got[1])
	assert.Equal(t, 12.0, got[2], "out of range value kept by use_invalid_data")
	col, _ := tbl.Column("v")
	assert.Equal(t, schema.TypeReal, col.Type)
}

func dateSpec(field string, params map[string]any) RuleSpec {
	return RuleSpec{RuleType: "Date", Field: strPtr(field), Params: params}
}

func TestDate_FixedRange(t *testing.T) {
	tbl := textTable(t, []string{"Day"}, []any{"2024-05-01"}, []any{"2023-12-31"}, []any{"not a date"}, []any{""})

	report := runRule(t, dateSpec("Day", map[string]any{
		"date_format":   "%Y-%m-%d",
		"range_check":   "fixed",
		"range_minimum": "2024-01-01",
		"range_maximum": "2024-12-31",
		"fallback_mode": FallbackDefault,
	}), Deps{}, tbl)

	assert.Equal(t, []any{"2024-05-01", "", "", ""}, values(t, tbl, "Day"))
	require.Len(t, report, 2)
	assert.Equal(t, 1, report[0].RecordsAffected)
	assert.Equal(t, "blank value replaced with default", report[0].Description)
	assert.Equal(t, 2, report[1].RecordsAffected)
}

func TestDate_RollingRange(t *testing.T) {
	now := func() time.Time { return time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC) }
	tbl := textTable(t, []string{"Day"}, []any{"2024-06-14"}, []any{"2024-06-16"}, []any{"2024-06-17"})

	runRule(t, dateSpec("Day", map[string]any{
		"date_format":   "%Y-%m-%d",
		"range_check":   "rolling",
		"range_minimum": "-1",
		"range_maximum": 1,
		"fallback_mode": FallbackRemove,
	}), Deps{Now: now}, tbl)

	assert.Equal(t, []any{"2024-06-14", "2024-06-16"}, values(t, tbl, "Day"))
}

func TestDate_BadRange(t *testing.T) {
	for name, params := range map[string]map[string]any{
		"fixed bound format": {"date_format": "%Y-%m-%d", "range_check": "fixed", "range_minimum": "01/01/2024", "range_maximum": "2024-12-31"},
		"fixed inverted":     {"date_format": "%Y-%m-%d", "range_check": "fixed", "range_minimum": "2025-01-01", "range_maximum": "2024-12-31"},
		"rolling not int":    {"date_format": "%Y-%m-%d", "range_check": "rolling", "range_minimum": "abc", "range_maximum": "1"},
		"unknown directive":  {"date_format": "%Q"},
		"range check option": {"date_format": "%Y", "range_check": "sometimes"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewRule(context.Background(), dateSpec("Day", params), Deps{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfigValidation))
		})
	}
}

func lookupRefs(t *testing.T) memoryRefs {
	return memoryRefs{
		"countries": textTable(t, []string{"name"}, []any{"France"}, []any{"Germany"}, []any{"Spain"}, []any{"Germany"}),
		"banned":    textTable(t, []string{"word"}, []any{"bad"}),
	}
}

func TestLookup_Whitelist(t *testing.T) {
	tbl := textTable(t, []string{"Country"}, []any{"France"}, []any{"Atlantis"}, []any{"Spain"}, []any{""})

	spec := RuleSpec{RuleType: "Lookup", Field: strPtr("Country"), Params: map[string]any{
		"original_reference": "countries",
		"reference_field":    "name",
		"fallback_mode":      FallbackDefault,
		"default_value":      "??",
	}}
	rule, history := buildRule(t, spec, Deps{References: lookupRefs(t)})
	assert.Equal(t, []string{"France", "Germany", "Spain"}, rule.ReferenceList)

	require.NoError(t, rule.RunAll(context.Background(), tbl))
	assert.Equal(t, []any{"France", "??", "Spain", "??"}, values(t, tbl, "Country"))
	assert.Len(t, history.Report(), 2)
}

func TestLookup_WhitelistKeepsColumnType(t *testing.T) {
	codes := table.NewColumn("Code", schema.TypeInteger, []any{int64(100), int64(7), nil, int64(200)})
	tbl, err := table.New(codes)
	require.NoError(t, err)

	refs := memoryRefs{"codes": textTable(t, []string{"code"}, []any{"100"}, []any{"200"})}
	runRule(t, RuleSpec{RuleType: "Lookup", Field: strPtr("Code"), Params: map[string]any{
		"original_reference": "codes",
		"reference_field":    "code",
	}}, Deps{References: refs}, tbl)

	col, ok := tbl.Column("Code")
	require.True(t, ok)
	assert.Equal(t, schema.TypeInteger, col.Type)
	assert.Equal(t, []any{int64(100), int64(7), nil, int64(200)}, col.Values)
}

func TestLookup_Blacklist(t *testing.T) {
	tbl := textTable(t, []string{"Word"}, []any{"good"}, []any{"bad"})

	runRule(t, RuleSpec{RuleType: "Lookup", Field: strPtr("Word"), Params: map[string]any{
		"original_reference": "banned",
		"reference_field":    "0",
		"blacklist":          true,
		"fallback_mode":      FallbackDefault,
	}}, Deps{References: lookupRefs(t)}, tbl)

	assert.Equal(t, []any{"good", ""}, values(t, tbl, "Word"))
}

func TestLookup_MissingReference(t *testing.T) {
	refs := lookupRefs(t)
	for name, params := range map[string]map[string]any{
		"table": {"original_reference": "cities", "reference_field": "name"},
		"field": {"original_reference": "countries", "reference_field": "code"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewRule(context.Background(), RuleSpec{RuleType: "Lookup", Field: strPtr("Country"), Params: params}, Deps{References: refs})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfigReference))
		})
	}
}

func uniquenessTable(t *testing.T) *table.Table {
	return textTable(t, []string{"A", "B", "C"},
		[]any{"1", "x", "a"},
		[]any{"1", "x", "b"},
		[]any{"1", "y", "c"},
		[]any{"2", "x", "d"},
		[]any{"1", "x", "e"},
	)
}

func TestUniqueness(t *testing.T) {
	tests := []struct {
		name    string
		useLast bool
		want    []any
	}{
		{"keep first", false, []any{"a", "c", "d"}},
		{"keep last", true, []any{"c", "d", "e"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := uniquenessTable(t)
			report := runRule(t, RuleSpec{RuleType: "Uniqueness", Params: map[string]any{
				"unique_fields":  []any{"A", "B"},
				"use_last_value": tt.useLast,
			}}, Deps{}, tbl)

			assert.Equal(t, tt.want, values(t, tbl, "C"))
			require.Len(t, report, 1)
			assert.Equal(t, audit.CategoryRemoved, report[0].Category)
			assert.Equal(t, 2, report[0].RecordsAffected)

			seen := map[string]bool{}
			for pos := 0; pos < tbl.Len(); pos++ {
				key := table.Key(tbl.Value("A", pos), tbl.Value("B", pos))
				assert.False(t, seen[key], "duplicate pair at %d", pos)
				seen[key] = true
			}
		})
	}
}

func TestUniqueness_MissingField(t *testing.T) {
	tbl := uniquenessTable(t)
	rule, history := buildRule(t, RuleSpec{RuleType: "Uniqueness", Params: map[string]any{"unique_fields": "A,Z"}}, Deps{})

	err := rule.RunAll(context.Background(), tbl)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfigReference))
	assert.Equal(t, 5, tbl.Len())
	assert.Empty(t, history.Report())
}
