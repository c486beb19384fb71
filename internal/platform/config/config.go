// Package config provides application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nathantilsley/repo-timeline/api"
	"github.com/nathantilsley/repo-timeline/internal/timeline/domain"
)

// DefaultRepoURLs are charted when neither REPO_URLS nor REPO_LIST_FILE is set.
var DefaultRepoURLs = []string{
	"https://github.com/facebook/react",
	"https://github.com/vuejs/vue",
	"https://github.com/angular/angular",
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	RepoURLs []string

	// Fetching
	Strategy         domain.FetchStrategy
	DateSource       domain.DateSource
	ManifestPath     string
	ActivityWindow   time.Duration
	CommitPageSize   int
	FetchConcurrency int
	RequestTimeout   time.Duration

	// Rendering and output
	Granularity domain.Granularity
	ChartTitle  string // empty selects the renderer default
	OutputPath  string

	// GitHub access. A token takes precedence over App credentials; with
	// neither, requests are unauthenticated.
	GitHubToken          string
	GitHubAppID          int64
	GitHubInstallationID int64
	GitHubPrivateKey     string // PEM file contents
	GitHubAPIURL         string // GitHub Enterprise base URL (optional)

	LogLevel    string
	OTelEnabled bool // OTEL_ENABLED feature flag
}

// Load reads configuration from environment variables, validates it, and
// applies defaults.
func Load() (Config, error) {
	cfg := Config{
		RepoURLs:         DefaultRepoURLs,
		Strategy:         domain.StrategyLatest,
		DateSource:       domain.DateSourceAuthor,
		ManifestPath:     "package.json",
		ActivityWindow:   7 * 24 * time.Hour,
		CommitPageSize:   100,
		FetchConcurrency: 1,
		RequestTimeout:   30 * time.Second,
		OutputPath:       "repo_versions_chart.md",
		LogLevel:         "info",
	}

	if err := loadRepositories(&cfg); err != nil {
		return Config{}, err
	}

	if err := loadFetchConfig(&cfg); err != nil {
		return Config{}, err
	}

	if err := loadChartConfig(&cfg); err != nil {
		return Config{}, err
	}

	if err := loadGitHubConfig(&cfg); err != nil {
		return Config{}, err
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	cfg.OTelEnabled = os.Getenv("OTEL_ENABLED") == "true"

	return cfg, nil
}

// loadRepositories reads REPO_LIST_FILE if set, otherwise REPO_URLS.
func loadRepositories(cfg *Config) error {
	if path := os.Getenv("REPO_LIST_FILE"); path != "" {
		list, err := readRepositoryList(path)
		if err != nil {
			return err
		}
		cfg.RepoURLs = list.URLs()
		if list.Title != "" {
			cfg.ChartTitle = list.Title
		}
		return nil
	}

	if v := os.Getenv("REPO_URLS"); v != "" {
		cfg.RepoURLs = splitList(v)
	}
	return nil
}

func readRepositoryList(path string) (api.RepositoryList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return api.RepositoryList{}, fmt.Errorf("reading REPO_LIST_FILE: %w", err)
	}
	var list api.RepositoryList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return api.RepositoryList{}, fmt.Errorf("parsing REPO_LIST_FILE %s: %w", path, err)
	}
	return list, nil
}

func loadFetchConfig(cfg *Config) error {
	var err error

	if v := os.Getenv("FETCH_STRATEGY"); v != "" {
		if cfg.Strategy, err = domain.ParseFetchStrategy(v); err != nil {
			return fmt.Errorf("invalid FETCH_STRATEGY: %w", err)
		}
	}

	if v := os.Getenv("COMMIT_DATE_SOURCE"); v != "" {
		if cfg.DateSource, err = domain.ParseDateSource(v); err != nil {
			return fmt.Errorf("invalid COMMIT_DATE_SOURCE: %w", err)
		}
	}

	cfg.ManifestPath = getEnvOrDefault("MANIFEST_PATH", cfg.ManifestPath)

	if cfg.ActivityWindow, err = parseDurationOrDefault("ACTIVITY_WINDOW", cfg.ActivityWindow); err != nil {
		return err
	}
	if cfg.RequestTimeout, err = parseDurationOrDefault("REQUEST_TIMEOUT", cfg.RequestTimeout); err != nil {
		return err
	}

	if cfg.CommitPageSize, err = parseIntInRange("COMMIT_PAGE_SIZE", cfg.CommitPageSize, 1, 100); err != nil {
		return err
	}
	if cfg.FetchConcurrency, err = parseIntInRange("FETCH_CONCURRENCY", cfg.FetchConcurrency, 1, 32); err != nil {
		return err
	}

	return nil
}

func loadChartConfig(cfg *Config) error {
	cfg.Granularity = domain.DefaultGranularity(cfg.Strategy)
	if v := os.Getenv("CHART_GRANULARITY"); v != "" {
		g, err := domain.ParseGranularity(v)
		if err != nil {
			return fmt.Errorf("invalid CHART_GRANULARITY: %w", err)
		}
		cfg.Granularity = g
	}

	cfg.ChartTitle = getEnvOrDefault("CHART_TITLE", cfg.ChartTitle)
	cfg.OutputPath = getEnvOrDefault("OUTPUT_PATH", cfg.OutputPath)
	return nil
}

func loadGitHubConfig(cfg *Config) error {
	cfg.GitHubToken = os.Getenv("GITHUB_TOKEN")
	cfg.GitHubAPIURL = os.Getenv("GITHUB_API_URL")

	if os.Getenv("GITHUB_APP_ID") == "" {
		return nil // App authentication is optional
	}

	var err error
	cfg.GitHubAppID, err = parseRequiredInt64("GITHUB_APP_ID")
	if err != nil {
		return err
	}

	cfg.GitHubInstallationID, err = parseRequiredInt64("GITHUB_INSTALLATION_ID")
	if err != nil {
		return err
	}

	cfg.GitHubPrivateKey = os.Getenv("GITHUB_PRIVATE_KEY")
	if cfg.GitHubPrivateKey == "" {
		return errors.New("GITHUB_PRIVATE_KEY is required when GITHUB_APP_ID is set")
	}

	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseRequiredInt64(envKey string) (int64, error) {
	v := os.Getenv(envKey)
	if v == "" {
		return 0, fmt.Errorf("%s is required", envKey)
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, v, err)
	}
	return id, nil
}

func parseIntInRange(envKey string, defaultValue, lo, hi int) (int, error) {
	v := os.Getenv(envKey)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, v, err)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s %d: must be between %d and %d", envKey, n, lo, hi)
	}
	return n, nil
}

func getEnvOrDefault(envKey, defaultValue string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return defaultValue
}

func parseDurationOrDefault(envKey string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(envKey)
	if v == "" {
		return defaultValue, nil
	}
	dur, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, v, err)
	}
	if dur <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", envKey, v)
	}
	return dur, nil
}
