package rescue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cuemby/quorum-rescue/pkg/backup"
	"github.com/cuemby/quorum-rescue/pkg/command"
	"github.com/cuemby/quorum-rescue/pkg/config"
	"github.com/cuemby/quorum-rescue/pkg/corosync"
	"github.com/cuemby/quorum-rescue/pkg/errdefs"
	"github.com/cuemby/quorum-rescue/pkg/fsutil"
	"github.com/cuemby/quorum-rescue/pkg/health"
	"github.com/cuemby/quorum-rescue/pkg/identity"
	"github.com/cuemby/quorum-rescue/pkg/journal"
	"github.com/cuemby/quorum-rescue/pkg/log"
	"github.com/cuemby/quorum-rescue/pkg/metrics"
	"github.com/cuemby/quorum-rescue/pkg/preflight"
	"github.com/cuemby/quorum-rescue/pkg/retry"
	"github.com/cuemby/quorum-rescue/pkg/service"
	"github.com/cuemby/quorum-rescue/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultConfigPerm is used when the configuration file does not exist yet
const DefaultConfigPerm fs.FileMode = 0640

// Gate is the preflight gate used by the operations
type Gate interface {
	CheckPrivilege() error
	CheckWritable(ctx context.Context, path string, policy retry.Policy) error
}

// IdentitySource resolves the node identity for a full repair
type IdentitySource interface {
	Discover(existingText string) (types.NodeIdentity, error)
}

// Deps are the collaborators of a Rescuer. Nil fields get host defaults.
type Deps struct {
	Runner   command.Runner
	Gate     Gate
	Services *service.Controller
	Backups  *backup.Manager
	Identity IdentitySource
	Verifier *health.Verifier
	// Journal is optional; nil disables the audit trail
	Journal journal.Store
	// Out receives operator-facing progress and previews
	Out io.Writer
}

// Rescuer sequences the top-level operations
type Rescuer struct {
	cfg      *config.Config
	runner   command.Runner
	gate     Gate
	services *service.Controller
	backups  *backup.Manager
	identity IdentitySource
	checker  *corosync.SyntaxChecker
	verifier *health.Verifier
	journal  journal.Store
	out      io.Writer
	now      func() time.Time
	logger   zerolog.Logger
}

// New creates a Rescuer for cfg
func New(cfg *config.Config, deps Deps) *Rescuer {
	if deps.Runner == nil {
		deps.Runner = command.NewExecRunner()
	}
	if deps.Out == nil {
		deps.Out = os.Stdout
	}
	if deps.Gate == nil {
		deps.Gate = preflight.NewGate(cfg.Preflight.FSType, cfg.Services.FilesystemUnit)
	}
	if deps.Services == nil {
		deps.Services = service.NewController(deps.Runner, deps.Gate, cfg.Services, cfg.Preflight.Poll)
	}
	if deps.Backups == nil {
		deps.Backups = backup.NewManager(cfg.Paths.BackupDir)
	}
	if deps.Identity == nil {
		deps.Identity = identity.NewDiscoverer(cfg.Identity.DefaultClusterName)
	}
	if deps.Verifier == nil {
		deps.Verifier = health.NewVerifier(deps.Out, health.DefaultCheckers(deps.Runner, cfg)...)
	}

	return &Rescuer{
		cfg:      cfg,
		runner:   deps.Runner,
		gate:     deps.Gate,
		services: deps.Services,
		backups:  deps.Backups,
		identity: deps.Identity,
		checker:  corosync.NewSyntaxChecker(deps.Runner, cfg.Services.Validator),
		verifier: deps.Verifier,
		journal:  deps.Journal,
		out:      deps.Out,
		now:      time.Now,
		logger:   log.WithComponent("rescue"),
	}
}

// run carries the state of one journaled operation
type run struct {
	op     types.Operation
	record *journal.Record
	logger zerolog.Logger
}

// step times fn under the operation's step histogram
func (rn *run) step(name string, fn func() error) error {
	timer := metrics.NewTimer()
	err := fn()
	timer.ObserveDurationVec(metrics.StepDuration, string(rn.op), name)
	if err != nil {
		rn.logger.Debug().Str("step", name).Err(err).Msg("step failed")
	}
	return err
}

// execute runs fn as one journaled, metered operation
func (r *Rescuer) execute(ctx context.Context, op types.Operation, fn func(ctx context.Context, rn *run) (string, error)) error {
	rec := &journal.Record{
		ID:        uuid.New().String(),
		Operation: op,
		StartedAt: r.now(),
		Target:    r.cfg.Paths.ClusterConfig,
	}
	rn := &run{op: op, record: rec, logger: log.WithOperation(string(op), rec.ID)}
	rn.logger.Info().Str("target", rec.Target).Msg("operation started")

	result, err := fn(ctx, rn)
	if err != nil {
		result = metrics.ResultFailure
		rec.ErrorKind = errdefs.KindOf(err).String()
		rec.Error = err.Error()
	}
	rec.Result = result
	rec.FinishedAt = r.now()
	rec.FinalState = r.services.State()

	event := rn.logger.Info()
	if err != nil {
		event = rn.logger.Error().Err(err)
	}
	event.Str("result", result).
		Str("final_state", string(rec.FinalState)).
		Dur("duration", rec.Duration()).
		Msg("operation finished")

	metrics.OperationsTotal.WithLabelValues(string(op), result).Inc()
	r.persist(rn)
	return err
}

// persist writes the journal record and the metrics textfile. Neither may
// fail the operation.
func (r *Rescuer) persist(rn *run) {
	if r.journal != nil {
		if err := r.journal.Append(rn.record); err != nil {
			rn.logger.Warn().Err(err).Msg("failed to write journal record")
		}
	}
	if path := r.cfg.Paths.MetricsTextfile; path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			rn.logger.Warn().Err(err).Str("path", path).Msg("failed to write metrics textfile")
		}
	}
}

// readConfig returns the configuration text and its mode. A missing file
// yields exists == false and no error.
func (r *Rescuer) readConfig(path string) (text string, perm fs.FileMode, exists bool, err error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", DefaultConfigPerm, false, nil
	}
	if err == nil {
		var data []byte
		if data, err = os.ReadFile(path); err == nil {
			return string(data), info.Mode().Perm(), true, nil
		}
	}
	dir := filepath.Dir(path)
	return "", 0, false, errdefs.Wrap(errdefs.KindNotMounted, err,
		"failed to read "+path,
		"check 'mount | grep "+dir+"' and 'journalctl -u "+r.cfg.Services.FilesystemUnit+"'")
}

// snapshot backs up path and records the backup on the run
func (r *Rescuer) snapshot(rn *run, path string) (types.Backup, error) {
	var b types.Backup
	err := rn.step("backup", func() error {
		var err error
		b, err = r.backups.Snapshot(path)
		return err
	})
	if err != nil {
		return b, err
	}
	metrics.BackupsTotal.Inc()
	rn.record.BackupPath = b.Path
	fmt.Fprintf(r.out, "✓ Backup written to %s\n", b.Path)
	return b, nil
}

// install stages text next to path, validates it and renames it into place.
// Nothing is written when validation fails.
func (r *Rescuer) install(ctx context.Context, rn *run, path, text string, perm fs.FileMode, backupPath string) error {
	err := rn.step("install", func() error {
		return fsutil.InstallFile(path, []byte(text), perm, r.checker.CheckFunc(ctx))
	})
	if err == nil {
		fmt.Fprintf(r.out, "✓ Installed new configuration at %s\n", path)
		return nil
	}
	if errdefs.KindOf(err) != errdefs.KindUnknown {
		return err
	}
	hint := "check 'mount | grep " + filepath.Dir(path) + "' and 'journalctl -u " + r.cfg.Services.FilesystemUnit + "'"
	if backupPath != "" {
		hint += "; the previous configuration is at " + backupPath
	}
	return errdefs.Wrap(errdefs.KindConfigNotWritable, err, "failed to install "+path, hint)
}

// verify runs the post-mutation checks. The report is informational only.
func (r *Rescuer) verify(ctx context.Context, rn *run) {
	_ = rn.step("verify", func() error {
		report := r.verifier.Verify(ctx)
		return report.Err
	})
}

// localModeHint tells the operator how to leave local mode by hand
func (r *Rescuer) localModeHint() string {
	svc := r.cfg.Services
	return fmt.Sprintf("%s is still running in local mode; to recover run '%s; %s start %s %s'",
		svc.LocalModeStart[0], strings.Join(svc.ForceStop, " "),
		strings.Join(svc.Systemctl, " "), svc.FilesystemUnit, svc.MembershipUnit)
}

// rollbackHint appends the command that undoes an installed change to check
func rollbackHint(check, backupPath string) string {
	if backupPath == "" {
		return check
	}
	return check + "; to roll back run 'quorum-rescue --restore " + backupPath + "'"
}
