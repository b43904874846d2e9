package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	defaultBranch          = "main"
	defaultLogLevel        = "info"
	defaultLogFormat       = "text"
	defaultAuthorName      = "gitpress"
	defaultAuthorEmail     = "no-reply@statictide.dev"
	defaultBlobConcurrency = 8
)

// Config captures runtime options sourced from a config file, GITPRESS_*
// environment variables, or CLI flags bound by the caller.
type Config struct {
	GitHubToken     string
	GitHubBaseURL   string
	GitHubUploadURL string

	Owner  string
	Repo   string
	Branch string

	AuthorName  string
	AuthorEmail string

	LogLevel  string
	LogFormat string

	DryRun          bool
	BlobConcurrency int
}

// LoadConfig layers defaults, an optional YAML config file, and GITPRESS_*
// environment variables, then validates the result. An explicit configFile
// must exist; otherwise gitpress.yaml is searched in the working directory and
// the user config directory.
func LoadConfig(configFile string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GITPRESS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("branch", defaultBranch)
	v.SetDefault("log-level", defaultLogLevel)
	v.SetDefault("log-format", defaultLogFormat)
	v.SetDefault("author-name", defaultAuthorName)
	v.SetDefault("author-email", defaultAuthorEmail)
	v.SetDefault("blob-concurrency", defaultBlobConcurrency)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("gitpress")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(configDir())
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		GitHubToken:     strings.TrimSpace(v.GetString("token")),
		GitHubBaseURL:   strings.TrimSpace(v.GetString("github-base-url")),
		GitHubUploadURL: strings.TrimSpace(v.GetString("github-upload-url")),
		Owner:           strings.TrimSpace(v.GetString("owner")),
		Repo:            strings.TrimSpace(v.GetString("repo")),
		Branch:          strings.TrimSpace(v.GetString("branch")),
		AuthorName:      strings.TrimSpace(v.GetString("author-name")),
		AuthorEmail:     strings.TrimSpace(v.GetString("author-email")),
		LogLevel:        strings.ToLower(strings.TrimSpace(v.GetString("log-level"))),
		LogFormat:       strings.ToLower(strings.TrimSpace(v.GetString("log-format"))),
		DryRun:          v.GetBool("dry-run"),
		BlobConcurrency: v.GetInt("blob-concurrency"),
	}

	if cfg.GitHubToken == "" {
		cfg.GitHubToken = strings.TrimSpace(os.Getenv("GITHUB_TOKEN"))
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	if c.GitHubToken == "" {
		return fmt.Errorf("github token is required (set GITPRESS_TOKEN or GITHUB_TOKEN)")
	}

	if c.Owner == "" || c.Repo == "" {
		return fmt.Errorf("repository owner and name are required")
	}

	if (c.GitHubBaseURL == "") != (c.GitHubUploadURL == "") {
		return fmt.Errorf("github-base-url and github-upload-url must both be set for GitHub Enterprise")
	}

	supportedLevels := map[string]struct{}{"debug": {}, "info": {}, "warn": {}, "warning": {}, "error": {}}
	if _, ok := supportedLevels[c.LogLevel]; !ok {
		return fmt.Errorf("unsupported log level %q", c.LogLevel)
	}

	supportedFormats := map[string]struct{}{"text": {}, "json": {}}
	if _, ok := supportedFormats[c.LogFormat]; !ok {
		return fmt.Errorf("unsupported log format %q", c.LogFormat)
	}

	if c.BlobConcurrency <= 0 {
		return fmt.Errorf("blob-concurrency must be positive")
	}

	return nil
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "gitpress")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "gitpress")
	}
	return ".gitpress"
}
