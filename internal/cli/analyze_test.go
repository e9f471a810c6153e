package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnalyzeOptions() *AnalyzeOptions {
	return &AnalyzeOptions{RootOptions: &RootOptions{Format: "text"}}
}

func TestAnalyze_SingleVersion(t *testing.T) {
	out, err := execute(t, NewAnalyzeCommand(&RootOptions{Format: "text"}), scriptPath("draft_v1.yaml"))
	require.NoError(t, err)

	assert.Contains(t, out, "Script draft: full analysis (cache miss)")
	assert.Contains(t, out, "Findings (0)")
	assert.Contains(t, out, "  none")
	assert.NotContains(t, out, "Diff draft")
}

func TestAnalyze_IncrementalWithDiff(t *testing.T) {
	out, err := execute(t, NewAnalyzeCommand(&RootOptions{Format: "text"}),
		"--old", scriptPath("draft_v1.yaml"), "--diff", scriptPath("draft_v2.yaml"))
	require.NoError(t, err)

	assert.Contains(t, out, "Script draft: incremental analysis")
	assert.Contains(t, out, "Changes (1):")
	assert.Contains(t, out, "Findings (1)")
	assert.Contains(t, out, "* [medium] dialogue:")
	assert.Contains(t, out, "Scene s2, Line 3")
	assert.Contains(t, out, "Diff draft")
	assert.Contains(t, out, "1 change(s): 0 critical")
}

func TestAnalyze_ScriptIDOverride(t *testing.T) {
	out, err := execute(t, NewAnalyzeCommand(&RootOptions{Format: "text"}),
		"--script-id", "pilot", scriptPath("draft_v1.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "Script pilot: full analysis")
}

func TestAnalyze_ConservativeModeRunsFull(t *testing.T) {
	out, err := execute(t, NewAnalyzeCommand(&RootOptions{Format: "text"}),
		"--mode", "conservative", "--old", scriptPath("draft_v1.yaml"), scriptPath("draft_v2.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "Script draft: full analysis")
	assert.Contains(t, out, "Findings (1)")
}

func TestAnalyze_IdenticalVersionsServedFromCache(t *testing.T) {
	out, err := execute(t, NewAnalyzeCommand(&RootOptions{Format: "text"}),
		"--old", scriptPath("draft_v1.yaml"), scriptPath("draft_v1.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "cached analysis (cache hit)")
	assert.NotContains(t, out, "Changes (")
}

func TestAnalyze_ThresholdFiltersFindings(t *testing.T) {
	out, err := execute(t, NewAnalyzeCommand(&RootOptions{Format: "text"}),
		"--threshold", "high", "--old", scriptPath("draft_v1.yaml"), scriptPath("draft_v2.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "Findings (0)")
}

func TestAnalyze_JSONOutput(t *testing.T) {
	out, err := execute(t, NewAnalyzeCommand(&RootOptions{Format: "json"}),
		"--old", scriptPath("draft_v1.yaml"), "--diff", scriptPath("draft_v2.yaml"))
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			ScriptID string `json:"script_id"`
			Strategy string `json:"strategy"`
			Report   struct {
				Findings []struct {
					Kind     string `json:"kind"`
					Severity string `json:"severity"`
				} `json:"findings"`
			} `json:"report"`
			Diff json.RawMessage `json:"diff"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "draft", resp.Data.ScriptID)
	assert.Equal(t, "incremental", resp.Data.Strategy)
	require.Len(t, resp.Data.Report.Findings, 1)
	assert.Equal(t, "dialogue", resp.Data.Report.Findings[0].Kind)
	assert.Equal(t, "medium", resp.Data.Report.Findings[0].Severity)
	assert.NotEmpty(t, resp.Data.Diff)
}

func TestAnalyze_FailOn(t *testing.T) {
	t.Run("finding reaches threshold", func(t *testing.T) {
		_, err := execute(t, NewAnalyzeCommand(&RootOptions{Format: "text"}),
			"--fail-on", "medium", scriptPath("draft_v2.yaml"))
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, err.Error(), "1 finding(s) at or above medium")
	})

	t.Run("finding below threshold", func(t *testing.T) {
		_, err := execute(t, NewAnalyzeCommand(&RootOptions{Format: "text"}),
			"--fail-on", "high", scriptPath("draft_v2.yaml"))
		assert.NoError(t, err)
	})
}

func TestAnalyze_CommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"diff without old", []string{"--diff", scriptPath("draft_v2.yaml")}, "--diff needs --old"},
		{"bad kind", []string{"--kinds", "grammar", scriptPath("draft_v1.yaml")}, "invalid kind"},
		{"bad threshold", []string{"--threshold", "urgent", scriptPath("draft_v1.yaml")}, "invalid --threshold"},
		{"bad fail-on", []string{"--fail-on", "urgent", scriptPath("draft_v1.yaml")}, "invalid --fail-on"},
		{"bad diff format", []string{"--diff-format", "verbose", scriptPath("draft_v1.yaml")}, "invalid --diff-format"},
		{"negative max", []string{"--max", "-1", scriptPath("draft_v1.yaml")}, "--max must be non-negative"},
		{"bad mode", []string{"--mode", "reckless", scriptPath("draft_v1.yaml")}, "reckless"},
		{"missing script", []string{scriptPath("missing.yaml")}, "failed to load"},
		{"missing old script", []string{"--old", scriptPath("missing.yaml"), scriptPath("draft_v1.yaml")}, "failed to load"},
		{"invalid script", []string{scriptPath("invalid.yaml")}, "duplicate scene id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, NewAnalyzeCommand(&RootOptions{Format: "text"}), tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAnalyzeOptions_Conversion(t *testing.T) {
	opts := newAnalyzeOptions()
	opts.Kinds = []string{" Dialogue", "character"}
	opts.Threshold = "MEDIUM"
	opts.Max = 3
	opts.DiffFormat = "summary"

	out, err := opts.analyzeOptions()
	require.NoError(t, err)
	assert.Len(t, out.CheckKinds, 2)
	assert.EqualValues(t, "dialogue", out.CheckKinds[0])
	assert.EqualValues(t, "medium", out.SeverityThreshold)
	assert.Equal(t, 3, out.MaxFindings)
	assert.EqualValues(t, "summary", out.DiffFormat)
}

func TestParseDiffFormat_DefaultsToDetailed(t *testing.T) {
	f, err := parseDiffFormat("")
	require.NoError(t, err)
	assert.EqualValues(t, "detailed", f)
}
