package rescue

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/cuemby/quorum-rescue/pkg/command"
	"github.com/cuemby/quorum-rescue/pkg/corosync"
	"github.com/cuemby/quorum-rescue/pkg/errdefs"
	"github.com/cuemby/quorum-rescue/pkg/fsutil"
	"github.com/cuemby/quorum-rescue/pkg/metrics"
	"github.com/cuemby/quorum-rescue/pkg/retry"
	"github.com/cuemby/quorum-rescue/pkg/types"
)

// Apply makes the cluster configuration single-node quorate and restarts
// the membership daemon. A configuration that is already patched is left
// alone: no backup, no write, no restart.
func (r *Rescuer) Apply(ctx context.Context) error {
	return r.execute(ctx, types.OperationApply, func(ctx context.Context, rn *run) (string, error) {
		path := r.cfg.Paths.ClusterConfig

		err := rn.step("preflight", func() error {
			if err := r.gate.CheckPrivilege(); err != nil {
				return err
			}
			return r.gate.CheckWritable(ctx, path, retry.Once)
		})
		if err != nil {
			return "", err
		}
		fmt.Fprintf(r.out, "✓ %s is writable\n", filepath.Dir(path))

		current, perm, exists, err := r.readConfig(path)
		if err != nil {
			return "", err
		}
		if !exists {
			return "", errdefs.New(errdefs.KindConfigNotFound,
				path+" does not exist",
				"this node has never been clustered; preview the quorum block with --dry-run")
		}

		if corosync.IsSingleNodeQuorum(current) {
			fmt.Fprintf(r.out, "✓ Single-node quorum already applied to %s, nothing to do\n", path)
			return metrics.ResultNoop, nil
		}

		var patched string
		err = rn.step("render", func() error {
			var err error
			patched, err = corosync.PatchQuorum(current)
			return err
		})
		if err != nil {
			return "", err
		}

		b, err := r.snapshot(rn, path)
		if err != nil {
			return "", err
		}

		if err := r.install(ctx, rn, path, patched, perm, b.Path); err != nil {
			return "", err
		}

		if len(r.cfg.Services.QuorumOverride) > 0 {
			_ = rn.step("override", func() error {
				_, err := command.Exec(ctx, r.runner, rn.logger, command.BestEffort, r.cfg.Services.QuorumOverride...)
				return err
			})
		}

		if err := rn.step("restart", func() error { return r.services.RestartMembership(ctx) }); err != nil {
			return "", errdefs.Wrap(errdefs.KindServiceTransitionFailed, err,
				"configuration installed but "+r.cfg.Services.MembershipUnit+" did not restart",
				rollbackHint("check 'journalctl -u "+r.cfg.Services.MembershipUnit+"'", b.Path))
		}
		fmt.Fprintf(r.out, "✓ Restarted %s\n", r.cfg.Services.MembershipUnit)

		r.verify(ctx, rn)
		return metrics.ResultSuccess, nil
	})
}

// DryRun prints the current configuration and what Apply would write. It
// needs no privilege and writes nothing, not even the journal. A missing
// configuration still produces a preview of the canonical quorum block.
func (r *Rescuer) DryRun(ctx context.Context) error {
	path := r.cfg.Paths.ClusterConfig
	r.logger.Debug().Str("target", path).Msg("dry run")

	current, _, exists, err := r.readConfig(path)
	if err != nil {
		return err
	}
	if !exists {
		fmt.Fprintf(r.out, "%s does not exist; --apply would need this quorum block:\n\n", path)
		fmt.Fprint(r.out, corosync.CanonicalQuorumBlock())
		return nil
	}

	fmt.Fprintf(r.out, "--- current %s ---\n", path)
	fmt.Fprint(r.out, withNewline(current))

	if corosync.IsSingleNodeQuorum(current) {
		fmt.Fprintln(r.out, "\n✓ Single-node quorum already applied; --apply would change nothing")
		return nil
	}

	patched, err := corosync.PatchQuorum(current)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "\n--- preview %s ---\n", path)
	fmt.Fprint(r.out, withNewline(patched))
	return nil
}

func withNewline(s string) string {
	if s == "" || s[len(s)-1] == '\n' {
		return s
	}
	return s + "\n"
}

// Restore copies backupPath over the cluster configuration and restarts the
// membership daemon. The live configuration is snapshotted first, since a
// restore is itself a mutation.
func (r *Rescuer) Restore(ctx context.Context, backupPath string) error {
	return r.execute(ctx, types.OperationRestore, func(ctx context.Context, rn *run) (string, error) {
		path := r.cfg.Paths.ClusterConfig

		if err := rn.step("preflight", r.gate.CheckPrivilege); err != nil {
			return "", err
		}
		if err := r.backups.Check(backupPath); err != nil {
			return "", err
		}

		exists, err := fsutil.Exists(path)
		if err != nil {
			return "", err
		}
		var previous string
		if exists {
			b, err := r.snapshot(rn, path)
			if err != nil {
				return "", err
			}
			previous = b.Path
		}

		if err := rn.step("restore", func() error { return r.backups.Restore(backupPath, path) }); err != nil {
			return "", err
		}
		fmt.Fprintf(r.out, "✓ Restored %s from %s\n", path, backupPath)

		if err := rn.step("restart", func() error { return r.services.RestartMembership(ctx) }); err != nil {
			return "", errdefs.Wrap(errdefs.KindServiceTransitionFailed, err,
				"configuration restored but "+r.cfg.Services.MembershipUnit+" did not restart",
				rollbackHint("check 'journalctl -u "+r.cfg.Services.MembershipUnit+"'", previous))
		}
		fmt.Fprintf(r.out, "✓ Restarted %s\n", r.cfg.Services.MembershipUnit)

		r.verify(ctx, rn)
		return metrics.ResultSuccess, nil
	})
}

// Repair regains write access through local mode and rewrites totem,
// nodelist and quorum for this node alone. If write access never comes
// back the daemon is left in local mode and nothing is backed up or
// rendered. Any later failure before the services resume also leaves local
// mode running, and its hint says how to leave it by hand.
func (r *Rescuer) Repair(ctx context.Context) error {
	return r.execute(ctx, types.OperationRepair, func(ctx context.Context, rn *run) (string, error) {
		path := r.cfg.Paths.ClusterConfig
		unit := r.cfg.Services.FilesystemUnit

		if err := rn.step("preflight", r.gate.CheckPrivilege); err != nil {
			return "", err
		}

		if err := rn.step("stop", func() error { return r.services.Stop(ctx) }); err != nil {
			return "", err
		}
		fmt.Fprintf(r.out, "✓ Stopped %s and %s\n", r.cfg.Services.MembershipUnit, unit)

		if err := rn.step("local-start", func() error { return r.services.StartLocal(ctx, path) }); err != nil {
			return "", err
		}
		fmt.Fprintf(r.out, "✓ %s writable in local mode\n", filepath.Dir(path))

		backupPath, err := r.rewriteLocal(ctx, rn, path)
		if err != nil {
			return "", errdefs.AppendHint(err, r.localModeHint())
		}

		if err := rn.step("resume", func() error { return r.services.ResumeNormal(ctx) }); err != nil {
			return "", errdefs.Wrap(errdefs.KindServiceTransitionFailed, err,
				"configuration installed but services did not return to normal",
				rollbackHint("check 'journalctl -u "+unit+"' and 'journalctl -u "+r.cfg.Services.MembershipUnit+"'", backupPath))
		}
		fmt.Fprintf(r.out, "✓ Started %s and %s\n", unit, r.cfg.Services.MembershipUnit)

		r.verify(ctx, rn)
		return metrics.ResultSuccess, nil
	})
}

// rewriteLocal renders and installs the single-node configuration while the
// filesystem daemon runs in local mode, and returns the backup it took
func (r *Rescuer) rewriteLocal(ctx context.Context, rn *run, path string) (string, error) {
	current, perm, exists, err := r.readConfig(path)
	if err != nil {
		return "", err
	}

	id, err := r.identity.Discover(current)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(r.out, "✓ Node identity: %s\n", id)

	var rendered string
	err = rn.step("render", func() error {
		var err error
		rendered, err = corosync.RenderRepair(current, id)
		return err
	})
	if err != nil {
		return "", err
	}

	var backupPath string
	if exists {
		b, err := r.snapshot(rn, path)
		if err != nil {
			return "", err
		}
		backupPath = b.Path
	}

	if err := r.install(ctx, rn, path, rendered, perm, backupPath); err != nil {
		return "", err
	}
	r.mirror(rn, rendered)
	return backupPath, nil
}

// mirror copies the repaired configuration to the node-local path read by
// the membership daemon at boot. The filesystem daemon propagates the
// higher config_version on its own, so a failure here is only a warning.
func (r *Rescuer) mirror(rn *run, text string) {
	local := r.cfg.Paths.LocalConfig
	if local == "" || local == r.cfg.Paths.ClusterConfig {
		return
	}
	if err := fsutil.AtomicWriteFile(local, []byte(text), 0644); err != nil {
		rn.logger.Warn().Err(err).Str("path", local).Msg("failed to mirror configuration locally")
		return
	}
	fmt.Fprintf(r.out, "✓ Mirrored configuration to %s\n", local)
}
