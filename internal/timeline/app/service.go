package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/nathantilsley/repo-timeline/internal/timeline/domain"
	"github.com/nathantilsley/repo-timeline/internal/timeline/ports"
)

// Options controls which repositories are charted and how they are fetched.
type Options struct {
	RepoURLs       []string
	Concurrency    int           // max repositories fetched at once; 1 is sequential
	RequestTimeout time.Duration // per repository, zero for none
}

// TimelineService implements ports.TimelineUseCase: resolve each configured
// URL, fetch its metadata, render the chart, and persist it.
type TimelineService struct {
	metadata ports.MetadataPort
	renderer ports.ChartRendererPort
	artifact ports.ArtifactPort
	diff     ports.DiffPort // optional, reports how the chart changed
	logger   *slog.Logger
	tracer   trace.Tracer
	fetched  metric.Int64Counter
	duration metric.Float64Histogram
	opts     Options
}

// target is a resolved repository from the configured list.
type target struct {
	ref domain.RepositoryReference
}

// NewTimelineService creates a TimelineService wired with all driven ports.
// diff may be nil.
func NewTimelineService(
	md ports.MetadataPort,
	rn ports.ChartRendererPort,
	ar ports.ArtifactPort,
	diff ports.DiffPort,
	logger *slog.Logger,
	meter metric.Meter,
	tracer trace.Tracer,
	opts Options,
) (*TimelineService, error) {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	fetched, err := meter.Int64Counter("timeline.repositories.fetched",
		metric.WithDescription("Repositories fetched, by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating fetched counter: %w", err)
	}

	duration, err := meter.Float64Histogram("timeline.fetch.duration",
		metric.WithDescription("Time spent fetching one repository"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating fetch duration histogram: %w", err)
	}

	return &TimelineService{
		metadata: md,
		renderer: rn,
		artifact: ar,
		diff:     diff,
		logger:   logger,
		tracer:   tracer,
		fetched:  fetched,
		duration: duration,
		opts:     opts,
	}, nil
}

// Execute runs one pass over the repository list. Per-repository failures
// are logged and skipped; only rendering or writing the chart can fail the
// run, in which case nothing is written.
func (s *TimelineService) Execute(ctx context.Context) error {
	runID := uuid.NewString()
	log := s.logger.With("run", runID)

	ctx, span := s.tracer.Start(ctx, "timeline.execute", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.Int("repositories.configured", len(s.opts.RepoURLs)),
	))
	defer span.End()

	targets := s.resolve(log)
	log.Info("fetching repository metadata",
		"repositories", len(targets),
		"concurrency", s.opts.Concurrency,
	)

	results := s.fetchAll(ctx, log, targets)

	records := make([]domain.ChartRecord, 0, len(targets))
	for i, t := range targets {
		if results[i].OK() {
			records = append(records, domain.NewChartRecord(t.ref, results[i].Metadata))
		}
	}

	doc := []byte(s.renderer.Render(records))
	s.reportChanges(ctx, log, doc)

	if err := s.artifact.Write(ctx, doc); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "writing chart failed")
		return fmt.Errorf("writing chart to %s: %w", s.artifact.Location(), err)
	}

	counts := domain.CountByFetchStatus(results)
	span.SetAttributes(attribute.Int("repositories.charted", len(records)))
	log.Info("chart generated and saved",
		"output", s.artifact.Location(),
		"charted", len(records),
		"skipped", len(s.opts.RepoURLs)-len(records),
		"failed", len(results)-counts[domain.FetchSuccess]-counts[domain.FetchNoCommits],
	)
	return nil
}

// resolve parses the configured URLs, skipping the ones that do not name a
// GitHub repository.
func (s *TimelineService) resolve(log *slog.Logger) []target {
	targets := make([]target, 0, len(s.opts.RepoURLs))
	for _, u := range s.opts.RepoURLs {
		ref, ok := domain.ParseRepositoryURL(u)
		if !ok {
			log.Debug("skipping unrecognized repository url", "url", u)
			continue
		}
		targets = append(targets, target{ref: ref})
	}
	return targets
}

// fetchAll fetches every target with at most opts.Concurrency in flight.
// results[i] always belongs to targets[i], whatever the completion order.
func (s *TimelineService) fetchAll(ctx context.Context, log *slog.Logger, targets []target) []domain.FetchResult {
	results := make([]domain.FetchResult, len(targets))
	sem := make(chan struct{}, s.opts.Concurrency)

	var wg sync.WaitGroup
	for i, t := range targets {
		sem <- struct{}{} // acquire worker slot
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }() // release worker slot
			results[i] = s.fetchOne(ctx, log, t.ref)
		}()
	}
	wg.Wait()

	return results
}

func (s *TimelineService) fetchOne(ctx context.Context, log *slog.Logger, ref domain.RepositoryReference) domain.FetchResult {
	ctx, span := s.tracer.Start(ctx, "timeline.fetch", trace.WithAttributes(
		attribute.String("repo", ref.Label()),
	))
	defer span.End()

	if s.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RequestTimeout)
		defer cancel()
	}

	start := time.Now()
	result := s.metadata.FetchMetadata(ctx, ref)
	elapsed := time.Since(start)

	statusAttr := metric.WithAttributes(attribute.String("status", result.Status.String()))
	s.fetched.Add(ctx, 1, statusAttr)
	s.duration.Record(ctx, elapsed.Seconds(), statusAttr)
	span.SetAttributes(attribute.String("fetch.status", result.Status.String()))

	switch {
	case result.OK():
		log.Info("fetched repository",
			"repo", ref.Label(),
			"version", result.Metadata.Version,
			"timestamp", result.Metadata.Timestamp,
			"duration", elapsed.Round(time.Millisecond),
		)
	case result.IsFailure():
		if result.Err != nil {
			span.RecordError(result.Err)
		}
		span.SetStatus(codes.Error, result.Reason)
		log.Error("failed to fetch repository metadata",
			"repo", ref.Label(),
			"status", result.Status,
			"reason", result.Reason,
			"error", result.Err,
		)
	default:
		log.Info("no recent activity, skipping repository",
			"repo", ref.Label(),
			"reason", result.Reason,
		)
	}

	return result
}

// reportChanges logs how the new document differs from the stored one.
// Problems reading the previous document never block the write.
func (s *TimelineService) reportChanges(ctx context.Context, log *slog.Logger, doc []byte) {
	if s.diff == nil {
		return
	}

	prev, err := s.artifact.Previous(ctx)
	if err != nil {
		log.Warn("failed to read previous chart", "output", s.artifact.Location(), "error", err)
		return
	}
	if prev == nil {
		log.Info("no previous chart found", "output", s.artifact.Location())
		return
	}

	diff := s.diff.ComputeDiff("previous", "current", prev, doc)
	if diff == "" {
		log.Info("chart unchanged since last run", "output", s.artifact.Location())
		return
	}

	added, removed := countChanges(diff)
	log.Info("chart changed since last run", "added", added, "removed", removed)
	log.Debug("chart diff", "diff", diff)
}

// countChanges counts added and removed lines in a unified diff, excluding
// the file headers.
func countChanges(diff string) (added, removed int) {
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			added++
		case strings.HasPrefix(line, "-"):
			removed++
		}
	}
	return added, removed
}
