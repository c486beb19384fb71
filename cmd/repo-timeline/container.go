package main

import (
	"fmt"
	"log/slog"

	gogithub "github.com/google/go-github/v68/github"

	"github.com/nathantilsley/repo-timeline/internal/platform/clock"
	"github.com/nathantilsley/repo-timeline/internal/platform/config"
	ghclient "github.com/nathantilsley/repo-timeline/internal/platform/github"
	"github.com/nathantilsley/repo-timeline/internal/platform/telemetry"
	fileout "github.com/nathantilsley/repo-timeline/internal/timeline/adapters/file_out"
	githubmeta "github.com/nathantilsley/repo-timeline/internal/timeline/adapters/github_meta"
	linediff "github.com/nathantilsley/repo-timeline/internal/timeline/adapters/line_diff"
	mermaidgantt "github.com/nathantilsley/repo-timeline/internal/timeline/adapters/mermaid_gantt"
	"github.com/nathantilsley/repo-timeline/internal/timeline/app"
	"github.com/nathantilsley/repo-timeline/internal/timeline/ports"
)

// Container holds all application dependencies.
type Container struct {
	Config          config.Config
	Logger          *slog.Logger
	GitHubClient    *gogithub.Client
	TimelineService ports.TimelineUseCase
}

// NewContainer builds and wires all dependencies.
func NewContainer(cfg config.Config, log *slog.Logger, tel *telemetry.Telemetry) (*Container, error) {
	// Platform dependencies
	githubClient, err := ghclient.NewClient(ghclient.Options{
		Credentials: ghclient.Credentials{
			Token:          cfg.GitHubToken,
			AppID:          cfg.GitHubAppID,
			InstallationID: cfg.GitHubInstallationID,
			PrivateKeyPEM:  cfg.GitHubPrivateKey,
		},
		APIURL:  cfg.GitHubAPIURL,
		Timeout: cfg.RequestTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("creating github client: %w", err)
	}
	if cfg.GitHubToken == "" && cfg.GitHubAppID == 0 {
		log.Warn("no github credentials configured, using unauthenticated requests")
	}

	// Adapters
	metadata := githubmeta.New(githubClient, clock.System{}, githubmeta.Options{
		ManifestPath: cfg.ManifestPath,
		Strategy:     cfg.Strategy,
		DateSource:   cfg.DateSource,
		Window:       cfg.ActivityWindow,
		PageSize:     cfg.CommitPageSize,
	}, log)
	renderer := mermaidgantt.New(cfg.Granularity, cfg.ChartTitle)
	artifact := fileout.New(cfg.OutputPath)
	changes := linediff.New()

	// Domain service
	timelineService, err := app.NewTimelineService(
		metadata,
		renderer,
		artifact,
		changes,
		log,
		tel.Meter,
		tel.Tracer,
		app.Options{
			RepoURLs:       cfg.RepoURLs,
			Concurrency:    cfg.FetchConcurrency,
			RequestTimeout: cfg.RequestTimeout,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("creating timeline service: %w", err)
	}

	return &Container{
		Config:          cfg,
		Logger:          log,
		GitHubClient:    githubClient,
		TimelineService: timelineService,
	}, nil
}
