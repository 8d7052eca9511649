// Package service drives the membership daemon and the clustered-filesystem
// daemon through the recovery lifecycle:
//
//	Normal ──Stop──▶ Stopped ──StartLocal──▶ LocalAuthoritative ──ResumeNormal──▶ Normal
//
// The Controller is the only component that changes the daemons' mode. A
// failed StartLocal leaves the controller in LocalAuthoritative so the
// operator can inspect the mount; it never falls back to Normal on its own.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cuemby/quorum-rescue/pkg/command"
	"github.com/cuemby/quorum-rescue/pkg/config"
	"github.com/cuemby/quorum-rescue/pkg/errdefs"
	"github.com/cuemby/quorum-rescue/pkg/log"
	"github.com/cuemby/quorum-rescue/pkg/metrics"
	"github.com/cuemby/quorum-rescue/pkg/retry"
	"github.com/cuemby/quorum-rescue/pkg/types"
	"github.com/rs/zerolog"
)

// WriteChecker confirms that the configuration path accepts writes
type WriteChecker interface {
	CheckWritable(ctx context.Context, path string, policy retry.Policy) error
}

// Controller owns the service state machine
type Controller struct {
	state  types.ServiceState
	runner command.Runner
	gate   WriteChecker
	cfg    config.ServicesConfig
	poll   retry.Policy
	sleep  func(time.Duration)
	logger zerolog.Logger
}

// NewController creates a controller in the Normal state. poll bounds the
// wait for write access after the local-mode start.
func NewController(runner command.Runner, gate WriteChecker, cfg config.ServicesConfig, poll retry.Policy) *Controller {
	c := &Controller{
		runner: runner,
		gate:   gate,
		cfg:    cfg,
		poll:   poll,
		sleep:  time.Sleep,
		logger: log.WithComponent("service"),
	}
	c.setState(types.ServiceStateNormal)
	return c
}

// State returns the current state
func (c *Controller) State() types.ServiceState {
	return c.state
}

func (c *Controller) setState(s types.ServiceState) {
	if c.state != "" && c.state != s {
		c.logger.Info().Str("from", string(c.state)).Str("to", string(s)).Msg("service state transition")
	}
	c.state = s
	metrics.ServiceState.Set(s.Gauge())
}

func (c *Controller) require(action string, want types.ServiceState) error {
	if c.state != want {
		return errdefs.New(errdefs.KindServiceTransitionFailed,
			fmt.Sprintf("cannot %s in state %s (requires %s)", action, c.state, want), "")
	}
	return nil
}

func (c *Controller) systemctl(args ...string) []string {
	return append(append([]string{}, c.cfg.Systemctl...), args...)
}

// Stop stops the membership and filesystem daemons. Failures are tolerated
// because either may already be down.
func (c *Controller) Stop(ctx context.Context) error {
	if err := c.require("stop services", types.ServiceStateNormal); err != nil {
		return err
	}

	for _, unit := range []string{c.cfg.MembershipUnit, c.cfg.FilesystemUnit} {
		_, _ = command.Exec(ctx, c.runner, c.logger, command.BestEffort, c.systemctl("stop", unit)...)
	}
	c.sleep(c.cfg.StopSettle)

	c.setState(types.ServiceStateStopped)
	return nil
}

// StartLocal starts the filesystem daemon in local mode and waits until path
// is writable. The start command detaches at once, so its exit status is not
// trusted; only the write probe confirms the transition. On timeout the
// controller stays in LocalAuthoritative and the error is fatal.
func (c *Controller) StartLocal(ctx context.Context, path string) error {
	if err := c.require("start local mode", types.ServiceStateStopped); err != nil {
		return err
	}

	_, _ = command.Exec(ctx, c.runner, c.logger, command.BestEffort, c.cfg.LocalModeStart...)
	c.setState(types.ServiceStateLocalAuthoritative)

	c.logger.Info().
		Int("attempts", c.poll.Attempts).
		Dur("interval", c.poll.Interval).
		Msg("waiting for local-mode write access")
	if err := c.gate.CheckWritable(ctx, path, c.poll); err != nil {
		c.logger.Error().Err(err).Msg("local mode never became writable, leaving it running for diagnosis")
		return err
	}
	return nil
}

// ResumeNormal terminates the local-mode instance, waits for the mount to be
// released and starts both daemons through the service manager. The local
// instance was started outside the service manager, so a unit stop would not
// reach it.
func (c *Controller) ResumeNormal(ctx context.Context) error {
	if err := c.require("resume normal operation", types.ServiceStateLocalAuthoritative); err != nil {
		return err
	}

	_, _ = command.Exec(ctx, c.runner, c.logger, command.BestEffort, c.cfg.ForceStop...)
	c.sleep(c.cfg.KillSettle)
	c.setState(types.ServiceStateStopped)

	for _, unit := range []string{c.cfg.FilesystemUnit, c.cfg.MembershipUnit} {
		argv := c.systemctl("start", unit)
		if _, err := command.Exec(ctx, c.runner, c.logger, command.Required, argv...); err != nil {
			return errdefs.Wrap(errdefs.KindServiceTransitionFailed, err,
				"failed to start "+unit,
				fmt.Sprintf("check 'journalctl -u %s' and retry '%s'", unit, strings.Join(argv, " ")))
		}
	}

	c.setState(types.ServiceStateNormal)
	return nil
}

// RestartMembership restarts the membership daemon so it rereads its
// configuration
func (c *Controller) RestartMembership(ctx context.Context) error {
	if err := c.require("restart membership", types.ServiceStateNormal); err != nil {
		return err
	}

	unit := c.cfg.MembershipUnit
	argv := c.systemctl("restart", unit)
	if _, err := command.Exec(ctx, c.runner, c.logger, command.Required, argv...); err != nil {
		return errdefs.Wrap(errdefs.KindServiceTransitionFailed, err,
			"failed to restart "+unit,
			fmt.Sprintf("check 'journalctl -u %s'", unit))
	}
	return nil
}
