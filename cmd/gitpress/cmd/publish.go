package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/statictide/gitpress/internal/publisher"
	"github.com/statictide/gitpress/internal/site"
)

var publishCmd = &cobra.Command{
	Use:   "publish [dir]",
	Short: "Commit local changes to the remote branch",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPublish,
}

func init() {
	publishCmd.Flags().StringP("message", "m", "", "commit message (required)")
	publishCmd.Flags().Bool("dry-run", false, "list what would be committed without touching the remote")
	_ = publishCmd.MarkFlagRequired("message")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	message, err := cmd.Flags().GetString("message")
	if err != nil {
		return err
	}
	dryRun, err := cmd.Flags().GetBool("dry-run")
	if err != nil {
		return err
	}

	session, cfg, logger, err := newSession(cmd)
	if err != nil {
		return err
	}

	if err := loadWorkingDir(session, dir); err != nil {
		return err
	}

	changed := session.ChangedPaths()
	if len(changed) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Nothing to publish to %s/%s@%s\n", cfg.Owner, cfg.Repo, cfg.Branch)
		return nil
	}

	if dryRun || cfg.DryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "Would publish %d file(s) to %s/%s@%s:\n", len(changed), cfg.Owner, cfg.Repo, cfg.Branch)
		for _, path := range changed {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", path)
		}
		return nil
	}

	ref, err := session.Publish(cmd.Context(), message)
	if err != nil {
		var nonFF *publisher.NonFastForwardError
		if errors.As(err, &nonFF) {
			session.Acknowledge()
			return fmt.Errorf("branch %s moved since it was read; pull the latest state and retry: %w", cfg.Branch, err)
		}
		if errors.Is(err, site.ErrNothingToPublish) {
			fmt.Fprintf(cmd.OutOrStdout(), "Nothing to publish to %s/%s@%s\n", cfg.Owner, cfg.Repo, cfg.Branch)
			return nil
		}
		return err
	}

	logger.Info("publish complete", "branch", ref.Branch, "commit", ref.HeadCommitID)
	fmt.Fprintf(cmd.OutOrStdout(), "Published %d file(s) as %s on %s\n", len(changed), ref.HeadCommitID, ref.Branch)
	return nil
}
