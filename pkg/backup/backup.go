package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/quorum-rescue/pkg/errdefs"
	"github.com/cuemby/quorum-rescue/pkg/fsutil"
	"github.com/cuemby/quorum-rescue/pkg/log"
	"github.com/cuemby/quorum-rescue/pkg/types"
	"github.com/rs/zerolog"
)

// TimestampFormat is the capture-time part of a backup name
const TimestampFormat = "20060102-150405"

// Manager snapshots and restores the cluster configuration file.
// Backups are plain files found by directory listing; nothing indexes them.
type Manager struct {
	dir    string
	now    func() time.Time
	logger zerolog.Logger
}

// NewManager creates a manager writing backups into dir
func NewManager(dir string) *Manager {
	return &Manager{
		dir:    dir,
		now:    time.Now,
		logger: log.WithComponent("backup"),
	}
}

// Dir returns the backup directory
func (m *Manager) Dir() string {
	return m.dir
}

// PathFor returns the backup name for source captured at t:
// <dir>/<basename>.<YYYYMMDD-HHMMSS>.bak
func (m *Manager) PathFor(source string, t time.Time) string {
	return filepath.Join(m.dir, fmt.Sprintf("%s.%s.bak", filepath.Base(source), t.Format(TimestampFormat)))
}

// Snapshot copies source into the backup directory, preserving mode and
// modification time. A second snapshot within the same second gets a
// numeric suffix instead of overwriting the first.
func (m *Manager) Snapshot(source string) (types.Backup, error) {
	info, err := os.Stat(source)
	if err != nil {
		if os.IsNotExist(err) {
			return types.Backup{}, errdefs.Wrap(errdefs.KindConfigNotFound, err,
				"nothing to back up", "check that "+source+" exists")
		}
		return types.Backup{}, errdefs.Wrap(errdefs.KindConfigNotWritable, err,
			"failed to stat "+source, m.snapshotHint())
	}

	captured := m.now()
	dst := m.PathFor(source, captured)
	for i := 1; ; i++ {
		exists, err := fsutil.Exists(dst)
		if err != nil {
			return types.Backup{}, errdefs.Wrap(errdefs.KindConfigNotWritable, err,
				"failed to stat "+dst, m.snapshotHint())
		}
		if !exists {
			break
		}
		dst = strings.TrimSuffix(m.PathFor(source, captured), ".bak") + fmt.Sprintf("-%d.bak", i)
	}

	if err := fsutil.CopyFile(source, dst); err != nil {
		return types.Backup{}, errdefs.Wrap(errdefs.KindConfigNotWritable, err,
			"failed to snapshot "+source+" to "+dst, m.snapshotHint())
	}

	m.logger.Info().Str("source", source).Str("backup", dst).Msg("configuration snapshot written")
	return types.Backup{Path: dst, Source: source, CapturedAt: captured, Size: info.Size()}, nil
}

func (m *Manager) snapshotHint() string {
	return "check that the backup directory exists and has free space ('ls -ld " + m.dir + "', 'df -h " + m.dir + "')"
}

// Check fails with BackupNotFound unless backupPath is a regular file
func (m *Manager) Check(backupPath string) error {
	info, err := os.Stat(backupPath)
	if err == nil && !info.Mode().IsRegular() {
		err = fmt.Errorf("%s is not a regular file", backupPath)
	}
	if err != nil {
		return errdefs.Wrap(errdefs.KindBackupNotFound, err,
			"backup "+backupPath+" does not exist",
			"list available snapshots with 'quorum-rescue backups' or 'ls "+m.dir+"/*.bak'")
	}
	return nil
}

// Restore copies backupPath over target. It does not check the backup's
// structure; the operator is trusted to pick a good snapshot.
func (m *Manager) Restore(backupPath, target string) error {
	if err := m.Check(backupPath); err != nil {
		return err
	}

	if err := fsutil.CopyFile(backupPath, target); err != nil {
		return errdefs.Wrap(errdefs.KindConfigNotWritable, err,
			"failed to restore "+backupPath+" to "+target,
			"check that "+filepath.Dir(target)+" is mounted read-write ('mount | grep "+filepath.Dir(target)+"')")
	}

	m.logger.Info().Str("backup", backupPath).Str("target", target).Msg("configuration restored")
	return nil
}

// List returns the snapshots of files named like source, newest first
func (m *Manager) List(source string) ([]types.Backup, error) {
	base := filepath.Base(source)
	matches, err := filepath.Glob(filepath.Join(m.dir, base+".*.bak"))
	if err != nil {
		return nil, err
	}

	type entry struct {
		backup types.Backup
		seq    int
	}
	entries := make([]entry, 0, len(matches))
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}

		stamp := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), base+"."), ".bak")
		seq := 0
		if len(stamp) > len(TimestampFormat) && stamp[len(TimestampFormat)] == '-' {
			if seq, err = strconv.Atoi(stamp[len(TimestampFormat)+1:]); err != nil {
				continue
			}
			stamp = stamp[:len(TimestampFormat)]
		}
		captured, err := time.ParseInLocation(TimestampFormat, stamp, time.Local)
		if err != nil {
			continue
		}

		entries = append(entries, entry{
			backup: types.Backup{
				Path:       path,
				Source:     source,
				CapturedAt: captured,
				Size:       info.Size(),
			},
			seq: seq,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.backup.CapturedAt.Equal(b.backup.CapturedAt) {
			return a.seq > b.seq
		}
		return a.backup.CapturedAt.After(b.backup.CapturedAt)
	})

	backups := make([]types.Backup, len(entries))
	for i, e := range entries {
		backups[i] = e.backup
	}
	return backups, nil
}
