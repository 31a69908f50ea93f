package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruslano69/tdtp-scrubber/pkg/tableio"
)

const testConfig = `
name: people
rules:
  - rule_type: String
    field: Name
    params:
      minimum_length: 1
      maximum_length: 10
      fallback_mode: remove_record
  - rule_type: Session
    params:
      key_field: Name
      start_field: Start
      end_field: End
      date_format: "%Y-%m-%d %H:%M:%S"
      gaps_option: extend_end
`

const testInput = `Name,Start,End
A,2024-01-01 10:00:00,2024-01-01 11:00:00
A,2024-01-01 11:30:00,2024-01-01 12:00:00
B,2024-01-01 09:00:00,2024-01-01 10:00:00
,2024-01-01 09:00:00,2024-01-01 10:00:00
`

func setup(t *testing.T) (dir, configPath, input string) {
	t.Helper()
	dir = t.TempDir()
	configPath = filepath.Join(dir, "scrub.yaml")
	input = filepath.Join(dir, "people.csv")
	require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))
	require.NoError(t, os.WriteFile(input, []byte(testInput), 0644))
	return dir, configPath, input
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommandStructure(t *testing.T) {
	cmd := NewRootCmd()
	assert.Equal(t, "tdtpscrub", cmd.Use)

	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, expected := range []string{"run", "check", "sessions", "version"} {
		assert.True(t, names[expected], "missing command: %s", expected)
	}

	assert.NotNil(t, cmd.PersistentFlags().Lookup("log-level"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("log-format"))
}

func TestRunCommand(t *testing.T) {
	dir, configPath, input := setup(t)
	output := filepath.Join(dir, "clean.csv")
	report := filepath.Join(dir, "report.csv")

	out, err := execute(t, "run", "-c", configPath, "-i", input, "-o", output, "--report", report)
	require.NoError(t, err)
	assert.Contains(t, out, "Scrub: people")
	assert.Contains(t, out, "4 -> 3")

	clean, err := tableio.Load(output, tableio.Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, clean.Len())

	_, err = os.Stat(report)
	assert.NoError(t, err)
}

func TestRunCommand_BadOutputExtension(t *testing.T) {
	dir, configPath, input := setup(t)

	_, err := execute(t, "run", "-c", configPath, "-i", input, "-o", filepath.Join(dir, "clean.txt"))
	assert.Error(t, err)
}

func TestRunCommand_RequiresFlags(t *testing.T) {
	_, err := execute(t, "run")
	assert.Error(t, err)
}

func TestCheckCommand(t *testing.T) {
	dir, configPath, _ := setup(t)

	out, err := execute(t, "check", "-c", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid: 2 rules")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("rules:\n  - rule_type: String\n    field: Name\n"), 0644))
	_, err = execute(t, "check", "-c", bad)
	assert.Error(t, err)
}

func TestSessionsCommand(t *testing.T) {
	_, configPath, input := setup(t)

	out, err := execute(t, "sessions", "-c", configPath, "-i", input)
	require.NoError(t, err)
	assert.Contains(t, out, "rule[1] Session: 2 of 4 rows good")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "tdtpscrub "+Version)
}
