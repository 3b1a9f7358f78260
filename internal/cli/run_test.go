package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const preemptionScenario = `
name: preemption-demo
interrupts:
  - name: low
    priority: 10
    work: 40ms
  - name: high
    priority: 100
    work: 20ms
script:
  - trigger: low
  - sleep: 10ms
  - trigger: high
  - wait: 2s
expect:
  admission_order: [low, high]
  finished: 2
`

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	err := os.WriteFile(path, []byte(content), 0644)
	require.NoError(t, err)
	return path
}

func TestRunScenario(t *testing.T) {
	path := writeScenario(t, preemptionScenario)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "scenario: preemption-demo")
	assert.Contains(t, output, "interrupt timeline")
	assert.Contains(t, output, "high")
	assert.Contains(t, output, "low")
	assert.Contains(t, output, "admitted 2, finished 2")
}

func TestRunScenarioJSON(t *testing.T) {
	path := writeScenario(t, preemptionScenario)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)

	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var result RunResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, "preemption-demo", result.Scenario)
	assert.Equal(t, int64(2), result.Stats.Admitted)
	assert.Equal(t, int64(2), result.Stats.Finished)
	assert.Len(t, result.Events, 4)
}

func TestRunScenarioWithTraceDB(t *testing.T) {
	path := writeScenario(t, preemptionScenario)
	dbPath := filepath.Join(t.TempDir(), "trace.db")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path, "--db", dbPath})

	err := cmd.Execute()
	require.NoError(t, err)

	_, statErr := os.Stat(dbPath)
	require.NoError(t, statErr, "trace database should have been created")
}

func TestRunScenarioWithVectors(t *testing.T) {
	scenario := `
name: vector-demo
interrupts:
  - name: worker
    priority: 10
    work: 10ms
script:
  - trigger: worker
  - trigger: timer
  - wait: 2s
`
	path := writeScenario(t, scenario)
	vectorsDir := writeVectorTable(t, map[string]string{
		"vectors.cue": `
vectors: [
	{name: "timer", priority: 100},
]
`,
	})

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path, "--vectors", vectorsDir})

	err := cmd.Execute()
	require.NoError(t, err)

	// timer comes from the vector table with no handler, so it completes
	// with a skip.
	assert.Contains(t, buf.String(), "skipped 1")
}

func TestRunMissingScenario(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"/nonexistent/scenario.yaml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunExpectationFailure(t *testing.T) {
	scenario := `
name: failing-demo
interrupts:
  - name: solo
    priority: 10
    work: 5ms
script:
  - trigger: solo
  - wait: 2s
expect:
  finished: 5
`
	path := writeScenario(t, scenario)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	// The report still prints before the expectation error.
	assert.Contains(t, buf.String(), "interrupt timeline")
}

func TestRunRejectedTriggersReported(t *testing.T) {
	scenario := `
name: masked-demo
interrupts:
  - name: quiet
    priority: 10
    masked: true
script:
  - trigger: quiet
`
	path := writeScenario(t, scenario)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "rejected triggers: quiet")
}
