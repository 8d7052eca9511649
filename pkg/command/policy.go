package command

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// Exec runs argv and applies policy to the outcome. A failed BestEffort
// command is logged and yields a nil error; a failed Required command
// returns Result.Failure().
func Exec(ctx context.Context, runner Runner, logger zerolog.Logger, policy Policy, argv ...string) (Result, error) {
	cmdline := strings.Join(argv, " ")
	logger.Debug().Str("command", cmdline).Str("policy", policy.String()).Msg("running command")

	res := runner.Run(ctx, argv...)
	if res.OK() {
		logger.Debug().Str("command", cmdline).Dur("duration", res.Duration).Msg("command succeeded")
		return res, nil
	}

	if policy == BestEffort {
		logger.Warn().
			Str("command", cmdline).
			Int("exit_code", res.ExitCode).
			Str("stderr", strings.TrimSpace(res.Stderr)).
			AnErr("error", res.Err).
			Msg("best-effort command failed, continuing")
		return res, nil
	}

	logger.Error().
		Str("command", cmdline).
		Int("exit_code", res.ExitCode).
		Str("stderr", strings.TrimSpace(res.Stderr)).
		AnErr("error", res.Err).
		Msg("command failed")
	return res, res.Failure()
}
