// Package verify runs the external verification oracle that judges whether
// candidate code is correct.
package verify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Result is the oracle's verdict on the current code.
type Result struct {
	Passed     bool
	Diagnostic string
}

// Oracle judges a candidate. Run must apply code to the verification target
// before judging, so each verdict is a function of the candidate it was
// given. Run must honor ctx.
type Oracle interface {
	Run(ctx context.Context, code string) (Result, error)
}

// CommandOracle writes the candidate to TargetFile, then runs a test command
// against the working directory. Exit code zero means the verification
// passed; anything else fails, with combined stdout/stderr as the
// diagnostic. Partial suite passes are failures.
type CommandOracle struct {
	Command    string
	WorkingDir string
	TargetFile string // candidate destination, relative to WorkingDir unless absolute
	Timeout    time.Duration
}

// ErrTimeout marks a verification run that exceeded its wall-clock bound.
var ErrTimeout = errors.New("verification timed out")

// Run applies the candidate and executes the configured command once.
func (o *CommandOracle) Run(ctx context.Context, code string) (Result, error) {
	parts := strings.Fields(o.Command)
	if len(parts) == 0 {
		return Result{}, fmt.Errorf("verify command is empty")
	}

	if o.TargetFile != "" {
		target := o.TargetFile
		if !filepath.IsAbs(target) {
			target = filepath.Join(o.WorkingDir, target)
		}
		if err := os.WriteFile(target, []byte(code), 0o644); err != nil {
			return Result{}, fmt.Errorf("write candidate to %s: %w", target, err)
		}
	}

	timeout := o.Timeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	if o.WorkingDir != "" {
		cmd.Dir = o.WorkingDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	output := stdout.String()
	if s := stderr.String(); s != "" {
		if output != "" {
			output += "\n"
		}
		output += s
	}

	if ctx.Err() == context.DeadlineExceeded {
		return Result{}, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{Passed: false, Diagnostic: output}, nil
		}
		return Result{}, fmt.Errorf("run verify command: %w", err)
	}

	return Result{Passed: true, Diagnostic: output}, nil
}
