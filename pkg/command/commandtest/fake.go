// Package commandtest provides a scripted command.Runner for tests.
package commandtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cuemby/quorum-rescue/pkg/command"
)

// Fake records every command and answers from a script keyed by the
// joined command line. Unscripted commands succeed with empty output.
type Fake struct {
	mu      sync.Mutex
	calls   []string
	results map[string]command.Result
	// prefixed answers commands with no exact script, first match wins
	prefixed []prefixResult
	hooks   map[string]func()
	paths   map[string]string
}

type prefixResult struct {
	prefix string
	res    command.Result
}

// NewFake creates an empty scripted runner
func NewFake() *Fake {
	return &Fake{
		results: make(map[string]command.Result),
		hooks:   make(map[string]func()),
		paths:   make(map[string]string),
	}
}

// On scripts the result for a command line
func (f *Fake) On(cmdline string, res command.Result) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[cmdline] = res
	return f
}

// OnPrefix scripts the result for every command line starting with prefix,
// for commands whose trailing arguments are not known in advance
func (f *Fake) OnPrefix(prefix string, res command.Result) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefixed = append(f.prefixed, prefixResult{prefix: prefix, res: res})
	return f
}

// Fail scripts a non-zero exit for a command line
func (f *Fake) Fail(cmdline string, exitCode int, stderr string) *Fake {
	return f.On(cmdline, command.Result{ExitCode: exitCode, Stderr: stderr})
}

// Stdout scripts a successful command with output
func (f *Fake) Stdout(cmdline, stdout string) *Fake {
	return f.On(cmdline, command.Result{Stdout: stdout})
}

// Hook runs fn whenever cmdline is executed, before the result is returned
func (f *Fake) Hook(cmdline string, fn func()) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hooks[cmdline] = fn
	return f
}

// Provide makes LookPath succeed for name
func (f *Fake) Provide(name string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths[name] = "/usr/bin/" + name
	return f
}

// Run implements command.Runner
func (f *Fake) Run(ctx context.Context, argv ...string) command.Result {
	cmdline := strings.Join(argv, " ")

	f.mu.Lock()
	f.calls = append(f.calls, cmdline)
	res, ok := f.results[cmdline]
	if !ok {
		for _, p := range f.prefixed {
			if strings.HasPrefix(cmdline, p.prefix) {
				res, ok = p.res, true
				break
			}
		}
	}
	hook := f.hooks[cmdline]
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if !ok {
		res = command.Result{}
	}
	res.Command = argv
	return res
}

// LookPath implements command.Runner
func (f *Fake) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.paths[name]; ok {
		return p, nil
	}
	return "", fmt.Errorf("%s: executable file not found in $PATH", name)
}

// Calls returns the command lines executed so far
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// Called reports whether cmdline was executed
func (f *Fake) Called(cmdline string) bool {
	for _, c := range f.Calls() {
		if c == cmdline {
			return true
		}
	}
	return false
}
