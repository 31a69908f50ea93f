package scrub

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ruslano69/tdtp-scrubber/pkg/export"
	"github.com/ruslano69/tdtp-scrubber/pkg/resultlog"
	"github.com/ruslano69/tdtp-scrubber/pkg/retry"
	"github.com/ruslano69/tdtp-scrubber/pkg/tableio"
)

func writeInput(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "customers.csv")
	data := "ID,Name\n1,OK\n2,\n3,a_very_long_name_over_ten_chars\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))
	return path
}

func pipelineConfig(dir, redisAddr string) *Config {
	cfg := &Config{
		Name:  "customers",
		Rules: []RuleSpec{nameRule()},
		Audit: AuditConfig{
			Database: &DatabaseAuditConfig{
				Driver: "sqlite",
				DSN:    filepath.Join(dir, "audit.db"),
			},
		},
		Output: export.Config{
			Path:   filepath.Join(dir, "out", "customers.csv"),
			Report: filepath.Join(dir, "out", "report.json"),
		},
		ResultLog: resultlog.Config{
			Type:    "redis",
			Address: redisAddr,
			Name:    "customers",
		},
	}
	cfg.SetDefaults()
	return cfg
}

func readState(t *testing.T, mr *miniredis.Miniredis) resultlog.RunResult {
	t.Helper()
	raw, err := mr.Get(resultlog.StateKey("customers"))
	require.NoError(t, err)

	var result resultlog.RunResult
	require.NoError(t, json.Unmarshal([]byte(raw), &result))
	return result
}

func TestPipeline_Execute(t *testing.T) {
	mr := miniredis.RunT(t)
	dir := t.TempDir()
	input := writeInput(t, dir)
	cfg := pipelineConfig(dir, mr.Addr())

	p := NewPipeline(cfg, zaptest.NewLogger(t))
	require.NoError(t, p.Check(context.Background()))
	require.NoError(t, p.Execute(context.Background(), input))

	stats := p.Stats()
	assert.NotEmpty(t, stats.RunID)
	assert.Equal(t, cfg.Output.Path, stats.OutputLocation)
	assert.Equal(t, cfg.Output.Report, stats.ReportLocation)
	require.NotNil(t, stats.Result)
	assert.Equal(t, 3, stats.Result.RowsIn)
	assert.Equal(t, 1, stats.Result.RowsOut)

	// Очищенная таблица
	out, err := tableio.Load(cfg.Output.Path, tableio.Options{})
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())
	assert.Equal(t, "OK", out.Value("Name", 0))

	// Отчет
	reportData, err := os.ReadFile(cfg.Output.Report)
	require.NoError(t, err)
	assert.Contains(t, string(reportData), "REMOVED")

	// Аудит в SQLite
	db, err := sql.Open("sqlite", cfg.Audit.Database.DSN)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow(
		"SELECT COUNT(*) FROM scrub_audit WHERE run_id = ? AND category = ?", stats.RunID, "REMOVED",
	).Scan(&count))
	assert.Equal(t, 2, count)

	// Итог в Redis
	state := readState(t, mr)
	assert.Equal(t, resultlog.StatusSuccess, state.Status)
	assert.Equal(t, stats.RunID, state.RunID)
	assert.Equal(t, "customers", state.ResultName)
	assert.Equal(t, 3, state.RowsIn)
	assert.Equal(t, 1, state.RowsOut)
	assert.Equal(t, stats.Result.Checksum, state.Checksum)
	assert.Nil(t, state.Error)
	assert.True(t, mr.TTL(resultlog.StateKey("customers")) > 0)
}

func TestPipeline_ExecuteFailurePublishesFailedStatus(t *testing.T) {
	mr := miniredis.RunT(t)
	dir := t.TempDir()
	input := writeInput(t, dir)

	cfg := pipelineConfig(dir, mr.Addr())
	cfg.Rules = append(cfg.Rules, RuleSpec{
		RuleType: "Uniqueness",
		Params:   map[string]any{"unique_fields": []any{"Missing"}},
	})

	p := NewPipeline(cfg, zaptest.NewLogger(t))
	err := p.Execute(context.Background(), input)
	require.Error(t, err)

	_, statErr := os.Stat(cfg.Output.Path)
	assert.True(t, os.IsNotExist(statErr))

	state := readState(t, mr)
	assert.Equal(t, resultlog.StatusFailed, state.Status)
	require.NotNil(t, state.Error)
	assert.Contains(t, *state.Error, "Missing")
}

func TestPipeline_UnreachableRedisGoesToDLQ(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	dir := t.TempDir()
	input := writeInput(t, dir)
	cfg := pipelineConfig(dir, addr)
	cfg.ResultLog.Retry = retry.Config{
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
		DLQPath:      filepath.Join(dir, "dlq.json"),
	}

	p := NewPipeline(cfg, zaptest.NewLogger(t))
	require.NoError(t, p.Execute(context.Background(), input))

	var dlq *retry.DLQ
	dlq, err = retry.OpenDLQ(cfg.ResultLog.Retry.DLQPath, 0)
	require.NoError(t, err)
	entries := dlq.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].Attempts)

	var result resultlog.RunResult
	require.NoError(t, json.Unmarshal(entries[0].RawData, &result))
	assert.Equal(t, p.Stats().RunID, result.RunID)
	assert.Equal(t, resultlog.StatusSuccess, result.Status)
}

func TestPipeline_ExecuteMissingInput(t *testing.T) {
	dir := t.TempDir()
	cfg := pipelineConfig(dir, "")
	cfg.ResultLog = resultlog.Config{}

	p := NewPipeline(cfg, nil)
	err := p.Execute(context.Background(), filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}

func TestPipeline_CheckUnknownRule(t *testing.T) {
	cfg := &Config{Rules: []RuleSpec{{RuleType: "Phonetic"}}}
	cfg.SetDefaults()

	err := NewPipeline(cfg, nil).Check(context.Background())
	assert.Error(t, err)
}
