package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [dir]",
	Short: "List local files with unpublished changes",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	session, cfg, _, err := newSession(cmd)
	if err != nil {
		return err
	}

	if err := loadWorkingDir(session, dir); err != nil {
		return err
	}

	changed := session.ChangedPaths()
	if len(changed) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No changes against %s/%s@%s\n", cfg.Owner, cfg.Repo, cfg.Branch)
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d file(s) changed against %s/%s@%s:\n", len(changed), cfg.Owner, cfg.Repo, cfg.Branch)
	for _, path := range changed {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", path)
	}
	return nil
}
