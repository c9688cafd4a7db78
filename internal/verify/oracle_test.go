package verify

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o755))
}

func TestCommandOraclePass(t *testing.T) {
	t.Parallel()

	o := &CommandOracle{Command: "true"}
	res, err := o.Run(context.Background(), "any code")
	require.NoError(t, err)
	require.True(t, res.Passed)
}

func TestCommandOracleAppliesCandidate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "target.txt"), []byte("BROKEN\n"), 0o644))
	o := &CommandOracle{
		Command:    "grep -q FIXED target.txt",
		WorkingDir: dir,
		TargetFile: "target.txt",
	}

	res, err := o.Run(context.Background(), "BROKEN\n")
	require.NoError(t, err)
	require.False(t, res.Passed)

	res, err = o.Run(context.Background(), "FIXED\n")
	require.NoError(t, err)
	require.True(t, res.Passed, "verdict must reflect the candidate just written")

	onDisk, err := os.ReadFile(filepath.Join(dir, "target.txt"))
	require.NoError(t, err)
	require.Equal(t, "FIXED\n", string(onDisk))
}

func TestCommandOracleFailCapturesOutput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeScript(t, dir, "fail-test.sh", "echo assert add failed\nexit 1\n")
	o := &CommandOracle{Command: "sh fail-test.sh", WorkingDir: dir}

	res, err := o.Run(context.Background(), "code")
	require.NoError(t, err, "a failing command is a failed verification, not an error")
	require.False(t, res.Passed)
	require.Contains(t, res.Diagnostic, "assert add failed")
}

func TestCommandOracleTimeout(t *testing.T) {
	t.Parallel()

	o := &CommandOracle{Command: "sleep 5", Timeout: 50 * time.Millisecond}
	_, err := o.Run(context.Background(), "code")
	require.ErrorIs(t, err, ErrTimeout)
}

func TestCommandOracleEmptyCommand(t *testing.T) {
	t.Parallel()

	o := &CommandOracle{Command: "   "}
	_, err := o.Run(context.Background(), "code")
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrTimeout))
}

func TestSummarizeExtractsFailures(t *testing.T) {
	t.Parallel()

	out := `--- FAIL: TestExample (0.00s)
    example_test.go:10: expected 1 got 2
FAIL    my/pkg   0.123s
`
	summary, failing := Summarize(out)
	require.NotEmpty(t, failing)
	require.Equal(t, "TestExample", failing[0])
	require.Contains(t, summary, "TestExample")
}

func TestSummarizeCleanOutput(t *testing.T) {
	t.Parallel()

	summary, failing := Summarize("ok  my/pkg  0.01s")
	require.Empty(t, summary)
	require.Empty(t, failing)
}
