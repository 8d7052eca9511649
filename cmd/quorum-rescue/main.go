package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cuemby/quorum-rescue/pkg/config"
	"github.com/cuemby/quorum-rescue/pkg/errdefs"
	"github.com/cuemby/quorum-rescue/pkg/journal"
	"github.com/cuemby/quorum-rescue/pkg/log"
	"github.com/cuemby/quorum-rescue/pkg/rescue"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// errNoOperation is returned when none of the operation flags is given
var errNoOperation = errors.New("one of --apply, --dry-run, --restore or --repair is required")

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if hint := errdefs.HintOf(err); hint != "" {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
		}
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "quorum-rescue",
		Short: "Recover write access to a cluster node that lost quorum",
		Long: `quorum-rescue recovers a Proxmox VE node whose cluster filesystem went
read-only because corosync cannot reach quorum, and can make the node
permanently single-node quorate.

Operations (exactly one per invocation):
  --dry-run           show the current corosync.conf and the patched preview
  --apply             patch the quorum block for single-node operation
  --restore <backup>  put a previous snapshot back in place
  --repair            regain write access through local mode and rewrite
                      totem, nodelist and quorum for this node alone

Every mutation snapshots corosync.conf to the backup directory first.`,
		Example: `  # Preview the change without touching anything
  quorum-rescue --dry-run

  # Patch the quorum block and restart corosync
  sudo quorum-rescue --apply

  # Undo with a snapshot taken earlier
  sudo quorum-rescue --restore /root/corosync.conf.20261019-090507.bak`,
		Version:       Version,
		Args:          usageOnError(cobra.NoArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoot(cmd, out)
		},
	}

	rootCmd.SetOut(out)
	rootCmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		_ = c.Usage()
		return err
	})
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"quorum-rescue version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("config", config.DefaultPath, "Tool configuration file")
	rootCmd.PersistentFlags().String("env-file", config.DefaultEnvFile, "File with QUORUM_RESCUE_* overrides")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Log in JSON format")

	rootCmd.Flags().Bool("apply", false, "Patch the quorum block for single-node operation")
	rootCmd.Flags().Bool("dry-run", false, "Print the current configuration and the patched preview")
	rootCmd.Flags().String("restore", "", "Restore the configuration from a backup file")
	rootCmd.Flags().Bool("repair", false, "Regain write access via local mode and rewrite the node configuration")
	rootCmd.MarkFlagsMutuallyExclusive("apply", "dry-run", "restore", "repair")

	rootCmd.AddCommand(newBackupsCmd(out))
	rootCmd.AddCommand(newHistoryCmd(out))
	return rootCmd
}

// usageOnError prints usage before returning an argument validation error
func usageOnError(args cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, a []string) error {
		if err := args(cmd, a); err != nil {
			_ = cmd.Usage()
			return err
		}
		return nil
	}
}

func runRoot(cmd *cobra.Command, out io.Writer) error {
	apply, _ := cmd.Flags().GetBool("apply")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	restore, _ := cmd.Flags().GetString("restore")
	repair, _ := cmd.Flags().GetBool("repair")

	if !apply && !dryRun && restore == "" && !repair {
		_ = cmd.Usage()
		return errNoOperation
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// No cancellation: once a mutation starts it runs to completion
	ctx := context.Background()

	if dryRun {
		return rescue.New(cfg, rescue.Deps{Out: out}).DryRun(ctx)
	}

	deps := rescue.Deps{Out: out}
	if store := openJournal(cfg); store != nil {
		defer store.Close()
		deps.Journal = store
	}
	r := rescue.New(cfg, deps)

	switch {
	case apply:
		return r.Apply(ctx)
	case restore != "":
		return r.Restore(ctx, restore)
	default:
		return r.Repair(ctx)
	}
}

// loadConfig reads the tool configuration and initializes logging from it
// and the logging flags
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")

	cfg, err := config.Load(path, envFile, cmd.Flags().Changed("config"))
	if err != nil {
		return nil, err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if cmd.Flags().Changed("log-json") {
		cfg.Logging.JSON, _ = cmd.Flags().GetBool("log-json")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Init(log.Config{
		Level:      log.Level(cfg.Logging.Level),
		JSONOutput: cfg.Logging.JSON,
	})
	log.Debug("configuration loaded")
	return cfg, nil
}

// openJournal opens the run journal. It returns nil, after logging why,
// when journaling is disabled or the database cannot be opened.
func openJournal(cfg *config.Config) *journal.BoltStore {
	if cfg.Paths.Journal == "" {
		return nil
	}
	store, err := journal.Open(cfg.Paths.Journal)
	if err != nil {
		log.Logger.Warn().Err(err).Str("path", cfg.Paths.Journal).Msg("run journal unavailable, continuing without it")
		return nil
	}
	return store
}
