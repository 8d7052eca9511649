package health

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cuemby/quorum-rescue/pkg/command"
)

// DefaultTimeout bounds a single status command
const DefaultTimeout = 10 * time.Second

// ExecChecker performs exec-based health checks by running a command
type ExecChecker struct {
	// Command is the command to execute (e.g., ["corosync-quorumtool", "-s"])
	Command []string

	// Timeout is the command execution timeout (default: 10 seconds)
	Timeout time.Duration

	name   string
	runner command.Runner
}

// NewExecChecker creates a new exec health checker
func NewExecChecker(runner command.Runner, cmd []string) *ExecChecker {
	return &ExecChecker{
		Command: cmd,
		Timeout: DefaultTimeout,
		name:    strings.Join(cmd, " "),
		runner:  runner,
	}
}

// Name returns the command line
func (e *ExecChecker) Name() string {
	return e.name
}

// Check performs the exec health check
func (e *ExecChecker) Check(ctx context.Context) Result {
	start := time.Now()
	res, output := e.run(ctx)

	result := Result{
		Name:      e.name,
		Output:    output,
		CheckedAt: start,
		Duration:  time.Since(start),
	}
	if err := res.Failure(); err != nil {
		result.Message = err.Error()
		return result
	}

	result.Healthy = true
	result.Message = "exit status 0"
	return result
}

func (e *ExecChecker) run(ctx context.Context) (command.Result, string) {
	if len(e.Command) == 0 {
		return command.Result{ExitCode: -1, Err: errors.New("no command specified")}, ""
	}

	execCtx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	res := e.runner.Run(execCtx, e.Command...)
	return res, strings.TrimRight(res.Stdout, "\n")
}

// Type returns the health check type
func (e *ExecChecker) Type() CheckType {
	return CheckTypeExec
}

// WithTimeout sets the execution timeout
func (e *ExecChecker) WithTimeout(timeout time.Duration) *ExecChecker {
	e.Timeout = timeout
	return e
}

// QuorateChecker runs the cluster status tool and requires it to report
// the node as quorate
type QuorateChecker struct {
	exec *ExecChecker
}

// NewQuorateChecker creates a checker around a status command such as
// "pvecm status"
func NewQuorateChecker(runner command.Runner, cmd []string) *QuorateChecker {
	return &QuorateChecker{exec: NewExecChecker(runner, cmd)}
}

// Name returns the command line
func (q *QuorateChecker) Name() string {
	return q.exec.Name()
}

// Check runs the status command and looks for "Quorate: Yes"
func (q *QuorateChecker) Check(ctx context.Context) Result {
	result := q.exec.Check(ctx)
	if !result.Healthy {
		return result
	}

	quorate, found := ParseQuorate(result.Output)
	switch {
	case !found:
		result.Healthy = false
		result.Message = "no Quorate line in output"
	case !quorate:
		result.Healthy = false
		result.Message = "node is not quorate"
	default:
		result.Message = "quorate"
	}
	return result
}

// Type returns the health check type
func (q *QuorateChecker) Type() CheckType {
	return CheckTypeQuorate
}

// ParseQuorate finds the "Quorate:" line in status output
func ParseQuorate(output string) (quorate, found bool) {
	for _, line := range strings.Split(output, "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), "quorate") {
			continue
		}
		return strings.EqualFold(strings.TrimSpace(value), "yes"), true
	}
	return false, false
}

// UnitsChecker asks the service manager whether units are active
type UnitsChecker struct {
	Units []string
	exec  *ExecChecker
}

// NewUnitsChecker creates a checker running "<systemctl> is-active <units...>"
func NewUnitsChecker(runner command.Runner, systemctl []string, units ...string) *UnitsChecker {
	argv := append(append(append([]string{}, systemctl...), "is-active"), units...)
	return &UnitsChecker{Units: units, exec: NewExecChecker(runner, argv)}
}

// Name returns the command line
func (u *UnitsChecker) Name() string {
	return u.exec.Name()
}

// Check reports every unit that is not "active"
func (u *UnitsChecker) Check(ctx context.Context) Result {
	result := u.exec.Check(ctx)

	states := strings.Fields(result.Output)
	var inactive []string
	for i, unit := range u.Units {
		state := "unknown"
		if i < len(states) {
			state = states[i]
		}
		if state != "active" {
			inactive = append(inactive, unit+"="+state)
		}
	}

	switch {
	case len(inactive) > 0:
		result.Healthy = false
		result.Message = "not active: " + strings.Join(inactive, ", ")
	case result.Healthy:
		result.Message = "all units active"
	}
	return result
}

// Type returns the health check type
func (u *UnitsChecker) Type() CheckType {
	return CheckTypeUnits
}
