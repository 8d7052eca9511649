// Package preflight holds the gate every mutation must pass: the caller is
// privileged, the configuration mount is the clustered filesystem mounted
// read-write, and a real file can be created and removed next to the
// configuration.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cuemby/quorum-rescue/pkg/errdefs"
	"github.com/cuemby/quorum-rescue/pkg/log"
	"github.com/cuemby/quorum-rescue/pkg/retry"
	"github.com/google/uuid"
	"github.com/moby/sys/mountinfo"
	"github.com/rs/zerolog"
)

// ProbePrefix starts the name of every write-test file
const ProbePrefix = ".quorum-rescue-probe-"

// Gate checks privilege, mount state and write access
type Gate struct {
	// FSType is the expected filesystem type of the configuration mount.
	// Empty skips the mount check.
	FSType string
	// Unit is the service named in hints when the mount is unhealthy
	Unit string

	euid   func() int
	mounts func(path string) ([]*mountinfo.Info, error)
	logger zerolog.Logger
}

// NewGate creates a gate for a mount of type fsType served by unit
func NewGate(fsType, unit string) *Gate {
	return &Gate{
		FSType: fsType,
		Unit:   unit,
		euid:   os.Geteuid,
		mounts: func(path string) ([]*mountinfo.Info, error) {
			return mountinfo.GetMounts(mountinfo.ParentsFilter(path))
		},
		logger: log.WithComponent("preflight"),
	}
}

// CheckPrivilege fails with PermissionDenied unless running as root
func (g *Gate) CheckPrivilege() error {
	if euid := g.euid(); euid != 0 {
		return errdefs.New(errdefs.KindPermissionDenied,
			fmt.Sprintf("root privilege required (effective uid %d)", euid),
			"re-run with sudo or as root")
	}
	return nil
}

// CheckMount verifies that the mount backing path has the expected type and
// is mounted read-write
func (g *Gate) CheckMount(path string) error {
	if g.FSType == "" {
		return nil
	}

	dir := filepath.Dir(path)
	infos, err := g.mounts(dir)
	if err != nil {
		return errdefs.Wrap(errdefs.KindNotMounted, err,
			"cannot read mount table", "check 'mount | grep "+dir+"'")
	}

	var best *mountinfo.Info
	for _, info := range infos {
		if best == nil || len(info.Mountpoint) > len(best.Mountpoint) {
			best = info
		}
	}

	if best == nil || best.FSType != g.FSType {
		found := "nothing"
		if best != nil {
			found = fmt.Sprintf("%s on %s", best.FSType, best.Mountpoint)
		}
		return errdefs.New(errdefs.KindNotMounted,
			fmt.Sprintf("%s is not on a %s mount (found %s)", dir, g.FSType, found),
			"run 'systemctl restart "+g.Unit+"' and check 'journalctl -u "+g.Unit+"'")
	}

	if hasOption(best.Options, "ro") || hasOption(best.VFSOptions, "ro") {
		return errdefs.New(errdefs.KindReadOnlyMount,
			fmt.Sprintf("%s is mounted read-only", best.Mountpoint),
			"the cluster has likely lost quorum; check 'pvecm status' or run with --repair")
	}
	return nil
}

func hasOption(opts, want string) bool {
	for _, o := range strings.Split(opts, ",") {
		if o == want {
			return true
		}
	}
	return false
}

// ProbeWrite creates and removes a uniquely named file in dir. Mount flags
// can lag behind the daemon, so only a real write proves access.
func (g *Gate) ProbeWrite(dir string) error {
	probe := filepath.Join(dir, ProbePrefix+uuid.New().String())
	f, err := os.OpenFile(probe, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return errdefs.Wrap(errdefs.KindConfigNotWritable, err,
			dir+" is not writable",
			"check 'pvecm status' for quorum and 'journalctl -u "+g.Unit+"'")
	}
	closeErr := f.Close()
	if err := os.Remove(probe); err != nil {
		return errdefs.Wrap(errdefs.KindConfigNotWritable, err,
			"write probe could not be removed", "remove "+probe+" by hand")
	}
	if closeErr != nil {
		return errdefs.Wrap(errdefs.KindConfigNotWritable, closeErr,
			dir+" is not writable", "check 'journalctl -u "+g.Unit+"'")
	}
	return nil
}

// CheckWritable checks the mount and probes write access next to path,
// retrying per policy. With a single attempt the underlying failure is
// returned as is; an exhausted poll becomes WriteTimeout. Privilege is not
// checked here.
func (g *Gate) CheckWritable(ctx context.Context, path string, policy retry.Policy) error {
	dir := filepath.Dir(path)

	err := retry.Do(ctx, policy, func(attempt int) error {
		if err := g.CheckMount(path); err != nil {
			g.logger.Debug().Int("attempt", attempt).Err(err).Msg("mount not ready")
			return err
		}
		if err := g.ProbeWrite(dir); err != nil {
			g.logger.Debug().Int("attempt", attempt).Err(err).Msg("write probe failed")
			return err
		}
		return nil
	})
	if err == nil {
		g.logger.Debug().Str("dir", dir).Msg("write access confirmed")
		return nil
	}

	if policy.Attempts <= 1 {
		var e *errdefs.Error
		if errors.As(err, &e) {
			return e
		}
		return err
	}
	return errdefs.Wrap(errdefs.KindWriteTimeout, err,
		fmt.Sprintf("%s did not become writable within %s", dir, policy.Timeout()),
		"inspect 'mount | grep "+dir+"' and 'journalctl -u "+g.Unit+"'; the filesystem daemon was left in local mode")
}

// Check runs the privilege check followed by CheckWritable
func (g *Gate) Check(ctx context.Context, path string, policy retry.Policy) error {
	if err := g.CheckPrivilege(); err != nil {
		return err
	}
	return g.CheckWritable(ctx, path, policy)
}
