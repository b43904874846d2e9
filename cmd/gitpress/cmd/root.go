package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/statictide/gitpress/internal/app"
	gh "github.com/statictide/gitpress/internal/github"
	"github.com/statictide/gitpress/internal/site"
)

var rootCmd = &cobra.Command{
	Use:   "gitpress",
	Short: "Publish content edits to a GitHub repository without local git",
	Long: "gitpress mirrors a repository branch in memory, tracks which files " +
		"actually changed, and publishes the edits as a single commit through " +
		"the GitHub Git Data API.",
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./gitpress.yaml or ~/.config/gitpress/gitpress.yaml)")
}

// newSession loads configuration, builds the REST client, and returns a synced
// editing session for the configured branch.
func newSession(cmd *cobra.Command) (*site.Site, app.Config, *slog.Logger, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	configFile, err := rootCmd.PersistentFlags().GetString("config")
	if err != nil {
		return nil, app.Config{}, nil, err
	}

	cfg, err := app.LoadConfig(configFile)
	if err != nil {
		return nil, app.Config{}, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := app.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, app.Config{}, nil, fmt.Errorf("create logger: %w", err)
	}

	factory := gh.NewRESTFactory(cfg.GitHubBaseURL, cfg.GitHubUploadURL)
	client, err := factory.New(ctx, cfg.GitHubToken, cfg.Owner, cfg.Repo)
	if err != nil {
		return nil, app.Config{}, nil, fmt.Errorf("create github client: %w", err)
	}

	author := gh.CommitAuthor{Name: cfg.AuthorName, Email: cfg.AuthorEmail}
	session := site.New(client, cfg.Branch, author, cfg.BlobConcurrency, logger)

	if err := session.Sync(ctx); err != nil {
		return nil, app.Config{}, nil, err
	}

	return session, cfg, logger, nil
}

// loadWorkingDir feeds every file under dir into the session as an edit, so
// change detection can compare the local tree against the remote one. Hidden
// directories (.git and friends) are skipped.
func loadWorkingDir(session *site.Site, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || d.Name() == "gitpress.yaml" {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		return session.WriteFile(filepath.ToSlash(rel), content)
	})
}
