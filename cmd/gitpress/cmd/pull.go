package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/statictide/gitpress/internal/vtree"
)

var pullCmd = &cobra.Command{
	Use:   "pull [dir]",
	Short: "Mirror the remote branch into a local directory",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPull,
}

func init() {
	rootCmd.AddCommand(pullCmd)
}

func runPull(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	session, cfg, logger, err := newSession(cmd)
	if err != nil {
		return err
	}

	files := 0
	err = session.Tree().Walk(func(entry *vtree.Entry) error {
		target := filepath.Join(dir, filepath.FromSlash(entry.Path))
		if entry.IsDir() {
			return os.MkdirAll(target, 0o755)
		}

		content, err := session.ReadFile(cmd.Context(), entry.Path)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(target, content, 0o644); err != nil {
			return err
		}
		files++
		return nil
	})
	if err != nil {
		return fmt.Errorf("pull %s/%s: %w", cfg.Owner, cfg.Repo, err)
	}

	logger.Info("pulled remote tree", "branch", cfg.Branch, "files", files, "dir", dir)
	return nil
}
