package corosync

import (
	"context"
	"os"
	"strings"

	"github.com/cuemby/quorum-rescue/pkg/command"
	"github.com/cuemby/quorum-rescue/pkg/errdefs"
	"github.com/cuemby/quorum-rescue/pkg/log"
	"github.com/rs/zerolog"
)

// SyntaxChecker validates a configuration file structurally and, when the
// external validator binary is installed, with that validator as well.
type SyntaxChecker struct {
	runner command.Runner
	// Command is the validator invocation; the file path is appended
	Command []string
	logger  zerolog.Logger
}

// NewSyntaxChecker creates a checker. An empty cmd disables the external step.
func NewSyntaxChecker(runner command.Runner, cmd []string) *SyntaxChecker {
	return &SyntaxChecker{
		runner:  runner,
		Command: cmd,
		logger:  log.WithComponent("syntax-check"),
	}
}

// Check validates the staged file at path
func (c *SyntaxChecker) Check(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errdefs.Wrap(errdefs.KindInvalidGeneratedConfig, err, "cannot read staged configuration", "")
	}
	if err := Validate(string(data)); err != nil {
		return err
	}

	if len(c.Command) == 0 {
		return nil
	}
	if _, err := c.runner.LookPath(c.Command[0]); err != nil {
		c.logger.Debug().Str("validator", c.Command[0]).Msg("external validator not installed, skipping")
		return nil
	}

	argv := append(append([]string{}, c.Command...), path)
	res, err := command.Exec(ctx, c.runner, c.logger, command.Required, argv...)
	if err != nil {
		return errdefs.Wrap(errdefs.KindInvalidGeneratedConfig, err,
			"external validator rejected the generated configuration",
			"run '"+strings.Join(argv, " ")+"' by hand; nothing was installed")
	}
	c.logger.Info().Str("validator", c.Command[0]).Str("output", strings.TrimSpace(res.Stdout)).Msg("external validation passed")
	return nil
}

// CheckFunc adapts Check for fsutil.InstallFile
func (c *SyntaxChecker) CheckFunc(ctx context.Context) func(string) error {
	return func(path string) error {
		return c.Check(ctx, path)
	}
}
