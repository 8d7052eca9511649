package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Policy states how a caller treats a failed command
type Policy int

const (
	// Required commands abort the operation on failure
	Required Policy = iota
	// BestEffort commands are logged on failure and otherwise ignored
	BestEffort
)

func (p Policy) String() string {
	if p == BestEffort {
		return "best-effort"
	}
	return "required"
}

// Result is the typed outcome of one external command
type Result struct {
	Command  []string
	ExitCode int
	Stdout   string
	Stderr   string
	// Err is set when the command could not be started or did not exit normally
	Err      error
	Duration time.Duration
}

// OK reports whether the command ran and exited with status 0
func (r Result) OK() bool {
	return r.Err == nil && r.ExitCode == 0
}

// Failure returns a descriptive error for a failed result, nil otherwise
func (r Result) Failure() error {
	if r.OK() {
		return nil
	}
	cmdline := strings.Join(r.Command, " ")
	stderr := strings.TrimSpace(r.Stderr)
	switch {
	case r.Err != nil && stderr != "":
		return fmt.Errorf("%s: %w (stderr: %s)", cmdline, r.Err, stderr)
	case r.Err != nil:
		return fmt.Errorf("%s: %w", cmdline, r.Err)
	case stderr != "":
		return fmt.Errorf("%s: exit status %d (stderr: %s)", cmdline, r.ExitCode, stderr)
	default:
		return fmt.Errorf("%s: exit status %d", cmdline, r.ExitCode)
	}
}

// Runner executes external commands
type Runner interface {
	Run(ctx context.Context, argv ...string) Result
	// LookPath reports whether a binary is available
	LookPath(name string) (string, error)
}

// ExecRunner runs commands on the host with os/exec.
// It imposes no timeout of its own.
type ExecRunner struct{}

// NewExecRunner creates a host command runner
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes argv and captures its output
func (r *ExecRunner) Run(ctx context.Context, argv ...string) Result {
	start := time.Now()
	res := Result{Command: argv}

	if len(argv) == 0 {
		res.Err = errors.New("no command specified")
		res.ExitCode = -1
		return res
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res.Duration = time.Since(start)
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.Exited() {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = -1
			res.Err = err
		}
	}
	return res
}

// LookPath wraps exec.LookPath
func (r *ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}
