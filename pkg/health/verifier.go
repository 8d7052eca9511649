package health

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cuemby/quorum-rescue/pkg/command"
	"github.com/cuemby/quorum-rescue/pkg/config"
	"github.com/cuemby/quorum-rescue/pkg/log"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
)

// Report collects the results of one verification pass
type Report struct {
	Results []Result
	// Err aggregates every failed check, nil when all passed
	Err error
}

// Healthy reports whether every check passed
func (r Report) Healthy() bool {
	return r.Err == nil
}

// Verifier runs read-only status checks after a mutation. It never fails
// the operation; an unhealthy report is printed and logged.
type Verifier struct {
	checkers []Checker
	out      io.Writer
	logger   zerolog.Logger
}

// NewVerifier creates a verifier that prints to out
func NewVerifier(out io.Writer, checkers ...Checker) *Verifier {
	return &Verifier{
		checkers: checkers,
		out:      out,
		logger:   log.WithComponent("verify"),
	}
}

// DefaultCheckers builds the quorum status, cluster status and unit checks
// from configuration. Empty commands are skipped.
func DefaultCheckers(runner command.Runner, cfg *config.Config) []Checker {
	var checkers []Checker
	if len(cfg.Verify.QuorumStatus) > 0 {
		checkers = append(checkers, NewExecChecker(runner, cfg.Verify.QuorumStatus))
	}
	if len(cfg.Verify.ClusterStatus) > 0 {
		checkers = append(checkers, NewQuorateChecker(runner, cfg.Verify.ClusterStatus))
	}
	checkers = append(checkers, NewUnitsChecker(runner, cfg.Services.Systemctl,
		cfg.Services.MembershipUnit, cfg.Services.FilesystemUnit))
	return checkers
}

// Verify runs every checker in order
func (v *Verifier) Verify(ctx context.Context) Report {
	var report Report
	var errs *multierror.Error

	for _, checker := range v.checkers {
		result := checker.Check(ctx)
		report.Results = append(report.Results, result)
		v.print(result)

		event := v.logger.Info()
		if !result.Healthy {
			event = v.logger.Warn()
			errs = multierror.Append(errs, fmt.Errorf("%s: %s", result.Name, result.Message))
		}
		event.Str("check", result.Name).
			Str("type", string(checker.Type())).
			Bool("healthy", result.Healthy).
			Dur("duration", result.Duration).
			Msg(result.Message)
	}

	report.Err = errs.ErrorOrNil()
	if report.Err != nil {
		v.logger.Warn().Err(report.Err).Msg("cluster verification reported problems")
		fmt.Fprintf(v.out, "⚠ Verification found %d problem(s); check 'journalctl -u corosync' and 'pvecm status'\n", errs.Len())
	}
	return report
}

func (v *Verifier) print(r Result) {
	mark := "✓"
	if !r.Healthy {
		mark = "✗"
	}
	fmt.Fprintf(v.out, "%s %s: %s\n", mark, r.Name, r.Message)
	if r.Output == "" {
		return
	}
	for _, line := range strings.Split(r.Output, "\n") {
		fmt.Fprintf(v.out, "    %s\n", line)
	}
}
