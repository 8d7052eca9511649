package main

import (
	"fmt"
	"io"
	"time"

	"github.com/cuemby/quorum-rescue/pkg/backup"
	"github.com/cuemby/quorum-rescue/pkg/journal"
	"github.com/spf13/cobra"
)

func newBackupsCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "backups",
		Short: "List configuration snapshots, newest first",
		Args:  usageOnError(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			backups, err := backup.NewManager(cfg.Paths.BackupDir).List(cfg.Paths.ClusterConfig)
			if err != nil {
				return fmt.Errorf("failed to list backups: %w", err)
			}
			if len(backups) == 0 {
				fmt.Fprintf(out, "No backups of %s in %s\n", cfg.Paths.ClusterConfig, cfg.Paths.BackupDir)
				return nil
			}

			fmt.Fprintf(out, "%-20s %-8s %s\n", "CAPTURED", "SIZE", "PATH")
			for _, b := range backups {
				fmt.Fprintf(out, "%-20s %-8d %s\n", b.CapturedAt.Format("2006-01-02 15:04:05"), b.Size, b.Path)
			}
			return nil
		},
	}
}

func newHistoryCmd(out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent apply, restore and repair runs",
		Args:  usageOnError(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Paths.Journal == "" {
				return fmt.Errorf("the run journal is disabled (paths.journal is empty)")
			}

			store, err := journal.Open(cfg.Paths.Journal)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.List(limit)
			if err != nil {
				return fmt.Errorf("failed to read journal: %w", err)
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}

			fmt.Fprintf(out, "%-20s %-8s %-8s %-20s %-10s %s\n", "STARTED", "OP", "RESULT", "FINAL STATE", "DURATION", "DETAIL")
			for _, r := range records {
				detail := r.BackupPath
				if r.Error != "" {
					detail = r.Error
				}
				fmt.Fprintf(out, "%-20s %-8s %-8s %-20s %-10s %s\n",
					r.StartedAt.Local().Format("2006-01-02 15:04:05"),
					r.Operation,
					r.Result,
					r.FinalState,
					r.Duration().Round(10*time.Millisecond),
					detail,
				)
			}
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "Number of runs to show (0 for all)")
	return cmd
}
