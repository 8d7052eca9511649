package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const existingConfig = `totem {
  version: 2
  cluster_name: lab
}

quorum {
  provider: corosync_votequorum
  expected_votes: 2
}
`

// writeToolConfig points every path of the tool at a temp directory
func writeToolConfig(t *testing.T) (cfgPath, clusterConfig, backupDir string) {
	t.Helper()
	dir := t.TempDir()
	clusterConfig = filepath.Join(dir, "corosync.conf")
	backupDir = filepath.Join(dir, "backups")
	require.NoError(t, os.Mkdir(backupDir, 0700))

	cfgPath = filepath.Join(dir, "config.yaml")
	yaml := fmt.Sprintf(`paths:
  cluster_config: %s
  local_config: ""
  backup_dir: %s
  journal: %s
preflight:
  fs_type: ""
`, clusterConfig, backupDir, filepath.Join(dir, "journal.db"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0600))
	return cfgPath, clusterConfig, backupDir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRoot_NoOperation(t *testing.T) {
	out, err := execute(t)
	require.ErrorIs(t, err, errNoOperation)
	assert.Contains(t, out, "Usage:")
}

func TestRoot_RejectsArguments(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"unknown flag", []string{"--bogus"}, "unknown flag: --bogus"},
		{"positional argument", []string{"apply"}, `unknown command "apply"`},
		{"argument after operation", []string{"--dry-run", "extra"}, `unknown command "extra"`},
		{"unknown subcommand flag", []string{"history", "--bogus"}, "unknown flag: --bogus"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Contains(t, out, "Usage:")
		})
	}
}

func TestRoot_OperationsAreExclusive(t *testing.T) {
	_, err := execute(t, "--apply", "--dry-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "none of the others can be")
}

func TestRoot_DryRun(t *testing.T) {
	cfgPath, clusterConfig, backupDir := writeToolConfig(t)
	require.NoError(t, os.WriteFile(clusterConfig, []byte(existingConfig), 0640))

	out, err := execute(t, "--config", cfgPath, "--env-file", "", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "--- current "+clusterConfig)
	assert.Contains(t, out, "--- preview "+clusterConfig)
	assert.Contains(t, out, "expected_votes: 1")

	data, err := os.ReadFile(clusterConfig)
	require.NoError(t, err)
	assert.Equal(t, existingConfig, string(data))

	entries, err := os.ReadDir(backupDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRoot_DryRunWithoutConfig(t *testing.T) {
	cfgPath, _, _ := writeToolConfig(t)

	out, err := execute(t, "--config", cfgPath, "--env-file", "", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "does not exist")
	assert.Contains(t, out, "two_node: 1")
}

func TestRoot_MissingToolConfig(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "--env-file", "", "--dry-run")
	require.Error(t, err)
}

func TestBackups_Empty(t *testing.T) {
	cfgPath, _, _ := writeToolConfig(t)

	out, err := execute(t, "backups", "--config", cfgPath, "--env-file", "")
	require.NoError(t, err)
	assert.Contains(t, out, "No backups")
}

func TestBackups_Lists(t *testing.T) {
	cfgPath, _, backupDir := writeToolConfig(t)
	snapshot := filepath.Join(backupDir, "corosync.conf.20261019-090507.bak")
	require.NoError(t, os.WriteFile(snapshot, []byte(existingConfig), 0640))

	out, err := execute(t, "backups", "--config", cfgPath, "--env-file", "")
	require.NoError(t, err)
	assert.Contains(t, out, "CAPTURED")
	assert.Contains(t, out, snapshot)
}

func TestHistory_Empty(t *testing.T) {
	cfgPath, _, _ := writeToolConfig(t)

	out, err := execute(t, "history", "--config", cfgPath, "--env-file", "")
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded")
}
