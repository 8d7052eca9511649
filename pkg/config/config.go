package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/quorum-rescue/pkg/retry"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultPath is where the tool looks for its configuration file
	DefaultPath = "/etc/quorum-rescue/config.yaml"

	// DefaultEnvFile holds optional QUORUM_RESCUE_* overrides
	DefaultEnvFile = "/etc/default/quorum-rescue"

	envPrefix = "QUORUM_RESCUE_"
)

// Config is the complete tool configuration
type Config struct {
	Paths     PathsConfig     `yaml:"paths"`
	Services  ServicesConfig  `yaml:"services"`
	Preflight PreflightConfig `yaml:"preflight"`
	Identity  IdentityConfig  `yaml:"identity"`
	Verify    VerifyConfig    `yaml:"verify"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// PathsConfig holds file locations
type PathsConfig struct {
	// ClusterConfig is the configuration on the clustered filesystem
	ClusterConfig string `yaml:"cluster_config" validate:"required"`
	// LocalConfig is the node-local copy read by the membership daemon at
	// boot; repair mirrors the new configuration there. Empty disables it.
	LocalConfig string `yaml:"local_config"`
	BackupDir   string `yaml:"backup_dir" validate:"required"`
	// Journal is the run journal database. Empty disables journaling.
	Journal string `yaml:"journal"`
	// MetricsTextfile is a node_exporter textfile target. Empty disables it.
	MetricsTextfile string `yaml:"metrics_textfile"`
}

// ServicesConfig names the external collaborators
type ServicesConfig struct {
	MembershipUnit string        `yaml:"membership_unit" validate:"required"`
	FilesystemUnit string        `yaml:"filesystem_unit" validate:"required"`
	Systemctl      []string      `yaml:"systemctl" validate:"required,min=1"`
	LocalModeStart []string      `yaml:"local_mode_start" validate:"required,min=1"`
	ForceStop      []string      `yaml:"force_stop" validate:"required,min=1"`
	QuorumOverride []string      `yaml:"quorum_override"`
	Validator      []string      `yaml:"validator"`
	StopSettle     time.Duration `yaml:"stop_settle" validate:"gte=0"`
	KillSettle     time.Duration `yaml:"kill_settle" validate:"gte=0"`
}

// PreflightConfig controls the write-access gate
type PreflightConfig struct {
	// FSType is the expected filesystem type of the config mount. Empty skips the mount check.
	FSType string       `yaml:"fs_type"`
	Poll   retry.Policy `yaml:"poll"`
}

// IdentityConfig holds identity discovery defaults
type IdentityConfig struct {
	DefaultClusterName string `yaml:"default_cluster_name" validate:"required,max=64"`
}

// VerifyConfig lists the read-only status commands run after a mutation
type VerifyConfig struct {
	QuorumStatus  []string `yaml:"quorum_status"`
	ClusterStatus []string `yaml:"cluster_status"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	JSON  bool   `yaml:"json"`
}

// Default returns the configuration for a stock node
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			ClusterConfig:   "/etc/pve/corosync.conf",
			LocalConfig:     "/etc/corosync/corosync.conf",
			BackupDir:       "/root",
			Journal:         "/var/lib/quorum-rescue/journal.db",
			MetricsTextfile: "",
		},
		Services: ServicesConfig{
			MembershipUnit: "corosync",
			FilesystemUnit: "pve-cluster",
			Systemctl:      []string{"systemctl"},
			LocalModeStart: []string{"pmxcfs", "-l"},
			ForceStop:      []string{"killall", "-9", "pmxcfs"},
			QuorumOverride: []string{"pvecm", "expected", "1"},
			Validator:      []string{"corosync", "-t", "-c"},
			StopSettle:     time.Second,
			KillSettle:     2 * time.Second,
		},
		Preflight: PreflightConfig{
			FSType: "fuse",
			Poll:   retry.DefaultPoll,
		},
		Identity: IdentityConfig{
			DefaultClusterName: "pve",
		},
		Verify: VerifyConfig{
			QuorumStatus:  []string{"corosync-quorumtool", "-s"},
			ClusterStatus: []string{"pvecm", "status"},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path, then
// the env file, then QUORUM_RESCUE_* variables. A missing file is only an
// error when mustExist is set.
func Load(path, envFile string, mustExist bool) (*Config, error) {
	c := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, c); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist) && !mustExist:
		default:
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

var validate = validator.New()

// Validate checks the configuration against its struct tags
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ---- env helpers ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(envPrefix + key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}

func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("CLUSTER_CONFIG"); ok {
		c.Paths.ClusterConfig = v
	}
	if v, ok := getEnvStr("LOCAL_CONFIG"); ok {
		c.Paths.LocalConfig = v
	}
	if v, ok := getEnvStr("BACKUP_DIR"); ok {
		c.Paths.BackupDir = v
	}
	if v, ok := getEnvStr("JOURNAL"); ok {
		c.Paths.Journal = v
	}
	if v, ok := getEnvStr("METRICS_TEXTFILE"); ok {
		c.Paths.MetricsTextfile = v
	}
	if v, ok := getEnvStr("FS_TYPE"); ok {
		c.Preflight.FSType = v
	}
	if v, ok := getEnvInt("POLL_ATTEMPTS"); ok {
		c.Preflight.Poll.Attempts = v
	}
	if v, ok := getEnvDur("POLL_INTERVAL"); ok {
		c.Preflight.Poll.Interval = v
	}
	if v, ok := getEnvStr("CLUSTER_NAME"); ok {
		c.Identity.DefaultClusterName = v
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Logging.Level = strings.ToLower(v)
	}
	if v, ok := getEnvBool("LOG_JSON"); ok {
		c.Logging.JSON = v
	}
}
