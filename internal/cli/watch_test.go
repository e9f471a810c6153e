package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scriptdelta/internal/config"
)

// startWatch runs the watch command on a copy of draft_v1 until the test
// cancels it. It returns the watched path, the output buffer, the cancel
// function and a channel carrying the command's error.
func startWatch(t *testing.T, format string) (string, *syncBuffer, context.CancelFunc, <-chan error) {
	t.Helper()
	return startWatchWith(t, &RootOptions{Format: format})
}

func startWatchWith(t *testing.T, rootOpts *RootOptions) (string, *syncBuffer, context.CancelFunc, <-chan error) {
	t.Helper()
	format := rootOpts.Format
	path := filepath.Join(t.TempDir(), "draft.yaml")
	copyFile(t, scriptPath("draft_v1.yaml"), path)

	out := &syncBuffer{}
	cmd := NewWatchCommand(rootOpts)
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--debounce", "50ms", path})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- cmd.ExecuteContext(ctx)
	}()
	t.Cleanup(cancel)

	if format == "text" {
		require.Eventually(t, func() bool {
			return strings.Contains(out.String(), "Watching")
		}, 5*time.Second, 10*time.Millisecond)
	} else {
		require.Eventually(t, func() bool {
			return strings.Contains(out.String(), `"status":"ok"`)
		}, 5*time.Second, 10*time.Millisecond)
		// Give the watcher time to register after the initial report.
		time.Sleep(100 * time.Millisecond)
	}
	return path, out, cancel, done
}

func stopWatch(t *testing.T, cancel context.CancelFunc, done <-chan error) {
	t.Helper()
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancellation")
	}
}

func TestWatch_ReanalyzesOnSave(t *testing.T) {
	path, out, cancel, done := startWatch(t, "text")

	assert.Contains(t, out.String(), "Script draft: full analysis")

	copyFile(t, scriptPath("draft_v2.yaml"), path)
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "incremental analysis")
	}, 5*time.Second, 10*time.Millisecond)

	stopWatch(t, cancel, done)
	assert.Contains(t, out.String(), "[medium] dialogue")
	assert.Contains(t, out.String(), "Diff draft")
}

func TestWatch_ReportsInvalidSaveAndContinues(t *testing.T) {
	path, out, cancel, done := startWatch(t, "text")

	require.NoError(t, os.WriteFile(path, []byte("id: [unterminated\n"), 0644))
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Error [E004]")
	}, 5*time.Second, 10*time.Millisecond)

	copyFile(t, scriptPath("draft_v2.yaml"), path)
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "incremental analysis")
	}, 5*time.Second, 10*time.Millisecond)

	stopWatch(t, cancel, done)
}

func TestWatch_PrintsWithoutWaitingForPreloads(t *testing.T) {
	cfg := config.Default()
	cfg.Analysis.PreloadDelay = config.Duration(time.Hour)
	path, out, cancel, done := startWatchWith(t, &RootOptions{Format: "text", Config: &cfg})

	copyFile(t, scriptPath("draft_v2.yaml"), path)
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "incremental analysis")
	}, 5*time.Second, 10*time.Millisecond)

	stopWatch(t, cancel, done)
}

func TestWatch_JSONOutputKeepsStatusOffStdout(t *testing.T) {
	_, out, cancel, done := startWatch(t, "json")
	stopWatch(t, cancel, done)
	assert.NotContains(t, out.String(), "Watching")
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	path, out, cancel, done := startWatch(t, "text")
	before := out.String()

	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "notes.txt"), []byte("todo"), 0644))
	time.Sleep(200 * time.Millisecond)

	stopWatch(t, cancel, done)
	assert.Equal(t, before, out.String())
}

func TestWatch_CommandErrors(t *testing.T) {
	_, err := execute(t, NewWatchCommand(&RootOptions{Format: "text"}), scriptPath("missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, NewWatchCommand(&RootOptions{Format: "text"}), "--debounce", "-1s", scriptPath("draft_v1.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--debounce must be non-negative")
}
