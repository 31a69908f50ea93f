package processors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ruslano69/tdtp-scrubber/pkg/audit"
	"github.com/ruslano69/tdtp-scrubber/pkg/core/table"
)

// memoryRefs - справочники в памяти
type memoryRefs map[string]*table.Table

func (m memoryRefs) Table(_ context.Context, name string) (*table.Table, error) {
	t, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("reference table %s not found", name)
	}
	return t, nil
}

func strPtr(s string) *string { return &s }

func textTable(t *testing.T, header []string, rows ...[]any) *table.Table {
	t.Helper()
	tbl, err := table.FromRows(header, rows)
	require.NoError(t, err)
	return tbl
}

func values(t *testing.T, tbl *table.Table, name string) []any {
	t.Helper()
	col, ok := tbl.Column(name)
	require.True(t, ok, "column %s", name)
	return col.Values
}

// buildRule строит правило с журналом в памяти
func buildRule(t *testing.T, spec RuleSpec, deps Deps) (*Rule, *audit.History) {
	t.Helper()
	history := audit.NewHistory(audit.HistoryConfig{})
	deps.Log = history
	if deps.Logger == nil {
		deps.Logger = zaptest.NewLogger(t)
	}
	rule, err := NewRule(context.Background(), spec, deps)
	require.NoError(t, err)
	return rule, history
}

func runRule(t *testing.T, spec RuleSpec, deps Deps, tbl *table.Table) audit.Report {
	t.Helper()
	rule, history := buildRule(t, spec, deps)
	require.NoError(t, rule.RunAll(context.Background(), tbl))
	return history.Report()
}

func categories(report audit.Report) []audit.Category {
	out := make([]audit.Category, len(report))
	for i, e := range report {
		out[i] = e.Category
	}
	return out
}
