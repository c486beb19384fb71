// Package githubmeta retrieves repository versions and commit activity from
// the GitHub REST API.
package githubmeta

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/go-github/v68/github"

	"github.com/nathantilsley/repo-timeline/internal/timeline/domain"
	"github.com/nathantilsley/repo-timeline/internal/timeline/ports"
)

const (
	DefaultManifestPath = "package.json"
	DefaultWindow       = 7 * 24 * time.Hour
	DefaultPageSize     = 100
)

// Options controls which data the adapter retrieves.
type Options struct {
	ManifestPath string               // manifest at the repository root, JSON or YAML
	Strategy     domain.FetchStrategy // latest commit or trailing window
	DateSource   domain.DateSource    // author or committer date
	Window       time.Duration        // look-back for StrategyWindowed
	PageSize     int                  // commits requested for StrategyWindowed
}

func (o Options) withDefaults() Options {
	if o.ManifestPath == "" {
		o.ManifestPath = DefaultManifestPath
	}
	if o.Strategy == "" {
		o.Strategy = domain.StrategyLatest
	}
	if o.DateSource == "" {
		o.DateSource = domain.DateSourceAuthor
	}
	if o.Window <= 0 {
		o.Window = DefaultWindow
	}
	if o.PageSize <= 0 || o.PageSize > 100 {
		o.PageSize = DefaultPageSize
	}
	return o
}

// Adapter implements ports.MetadataPort. It never retries: one failed call
// is final for that repository.
type Adapter struct {
	client *github.Client
	clock  ports.Clock
	opts   Options
	logger *slog.Logger
}

// New creates a new GitHub metadata adapter.
func New(client *github.Client, clock ports.Clock, opts Options, logger *slog.Logger) *Adapter {
	return &Adapter{
		client: client,
		clock:  clock,
		opts:   opts.withDefaults(),
		logger: logger,
	}
}

// FetchMetadata reads the manifest version, then the activity timestamp.
func (a *Adapter) FetchMetadata(ctx context.Context, ref domain.RepositoryReference) domain.FetchResult {
	version, err := a.fetchVersion(ctx, ref)
	if err != nil {
		return toResult(err)
	}

	timestamp, err := a.fetchTimestamp(ctx, ref)
	if err != nil {
		return toResult(err)
	}

	a.logger.Debug("fetched repository metadata",
		"repo", ref.Label(),
		"version", version,
		"timestamp", timestamp,
	)
	return domain.Succeeded(version, timestamp)
}

// fetchVersion fetches the manifest and extracts its version field.
func (a *Adapter) fetchVersion(ctx context.Context, ref domain.RepositoryReference) (string, error) {
	path := a.opts.ManifestPath

	file, dir, resp, err := a.client.Repositories.GetContents(ctx, ref.Owner, ref.Name, path, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return "", &fetchError{status: domain.FetchNotFound, reason: path + " not found", err: err}
		}
		return "", transportFailure("fetching "+path, err)
	}

	switch {
	case dir != nil || file == nil:
		return "", &fetchError{status: domain.FetchNotFound, reason: path + " is a directory"}
	case file.GetType() != "file":
		return "", &fetchError{
			status: domain.FetchNotFound,
			reason: fmt.Sprintf("%s is a %s, not a file", path, file.GetType()),
		}
	case file.Content == nil || file.GetEncoding() == "none":
		// Large files are served by download URL rather than inline.
		return "", &fetchError{status: domain.FetchNotFound, reason: path + " has no inline content"}
	}

	content, err := file.GetContent()
	if err != nil {
		return "", &fetchError{status: domain.FetchParseError, reason: "decoding " + path, err: err}
	}

	version, err := parseManifestVersion(path, []byte(content))
	if err != nil {
		return "", &fetchError{status: domain.FetchParseError, reason: "parsing " + path, err: err}
	}
	return version, nil
}

// fetchTimestamp lists commits according to the configured strategy and
// returns the date of the most recent one.
func (a *Adapter) fetchTimestamp(ctx context.Context, ref domain.RepositoryReference) (string, error) {
	opts := &github.CommitsListOptions{ListOptions: github.ListOptions{PerPage: 1}}

	var since time.Time
	if a.opts.Strategy == domain.StrategyWindowed {
		since = a.clock.Now().Add(-a.opts.Window).UTC()
		opts.Since = since
		opts.PerPage = a.opts.PageSize
	}

	commits, resp, err := a.client.Repositories.ListCommits(ctx, ref.Owner, ref.Name, opts)
	if err != nil {
		// GitHub answers 409 Conflict for repositories without any commits.
		if resp != nil && resp.StatusCode == http.StatusConflict {
			return "", &fetchError{status: domain.FetchNoCommits, reason: "repository is empty"}
		}
		return "", transportFailure("listing commits", err)
	}

	if len(commits) == 0 {
		if a.opts.Strategy == domain.StrategyWindowed {
			return "", &fetchError{
				status: domain.FetchNoCommits,
				reason: "no commits since " + since.Format(time.RFC3339),
			}
		}
		return "", &fetchError{status: domain.FetchNoCommits, reason: "repository has no commits"}
	}

	// Commits are returned newest first.
	return commitDate(commits[0], a.opts.DateSource), nil
}

// commitDate returns the selected commit date in RFC 3339 UTC, or
// domain.UnknownTimestamp when the commit has no such date.
func commitDate(c *github.RepositoryCommit, src domain.DateSource) string {
	sig := c.GetCommit().GetAuthor()
	if src == domain.DateSourceCommitter {
		sig = c.GetCommit().GetCommitter()
	}
	if sig == nil || sig.Date == nil || sig.Date.IsZero() {
		return domain.UnknownTimestamp
	}
	return sig.Date.UTC().Format(time.RFC3339)
}
