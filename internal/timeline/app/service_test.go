package app

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	noopmetric "go.opentelemetry.io/otel/metric/noop"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	linediff "github.com/nathantilsley/repo-timeline/internal/timeline/adapters/line_diff"
	mermaidgantt "github.com/nathantilsley/repo-timeline/internal/timeline/adapters/mermaid_gantt"
	"github.com/nathantilsley/repo-timeline/internal/platform/logger"
	"github.com/nathantilsley/repo-timeline/internal/timeline/domain"
	"github.com/nathantilsley/repo-timeline/internal/timeline/ports"
)

// Mock adapters for testing

type mockMetadata struct {
	results map[string]domain.FetchResult // keyed by "owner/name"
	delays  map[string]time.Duration

	mu       sync.Mutex
	calls    []string
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (m *mockMetadata) FetchMetadata(ctx context.Context, ref domain.RepositoryReference) domain.FetchResult {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		cur := m.maxSeen.Load()
		if n <= cur || m.maxSeen.CompareAndSwap(cur, n) {
			break
		}
	}

	m.mu.Lock()
	m.calls = append(m.calls, ref.Label())
	m.mu.Unlock()

	if d := m.delays[ref.Label()]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return domain.Failed(domain.FetchTransportError, "request timed out", ctx.Err())
		}
	}

	if r, ok := m.results[ref.Label()]; ok {
		return r
	}
	return domain.Failed(domain.FetchNotFound, "package.json not found", nil)
}

type memoryArtifact struct {
	previous []byte
	prevErr  error
	writeErr error
	written  []byte
	writes   int
}

func (m *memoryArtifact) Previous(context.Context) ([]byte, error) { return m.previous, m.prevErr }

func (m *memoryArtifact) Write(_ context.Context, doc []byte) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.writes++
	m.written = append([]byte(nil), doc...)
	return nil
}

func (m *memoryArtifact) Location() string { return "memory://chart.md" }

type recordingRenderer struct {
	records []domain.ChartRecord
}

func (r *recordingRenderer) Render(records []domain.ChartRecord) string {
	r.records = append([]domain.ChartRecord(nil), records...)
	return "rendered"
}

func newTestService(
	t *testing.T,
	md ports.MetadataPort,
	rn ports.ChartRendererPort,
	ar ports.ArtifactPort,
	diff ports.DiffPort,
	logBuf *bytes.Buffer,
	opts Options,
) *TimelineService {
	t.Helper()

	log := logger.New("error")
	if logBuf != nil {
		log = logger.NewWithOptions(logBuf, logger.Options{Level: "debug"})
	}

	svc, err := NewTimelineService(md, rn, ar, diff, log,
		noopmetric.NewMeterProvider().Meter("test"),
		nooptrace.NewTracerProvider().Tracer("test"),
		opts,
	)
	if err != nil {
		t.Fatalf("NewTimelineService() error = %v", err)
	}
	return svc
}

// hasLogLine reports whether some log line contains every fragment.
func hasLogLine(logs string, fragments ...string) bool {
	for _, line := range strings.Split(logs, "\n") {
		matched := true
		for _, f := range fragments {
			if !strings.Contains(line, f) {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

func milestoneLines(doc string) []string {
	var lines []string
	for _, l := range strings.Split(doc, "\n") {
		if strings.Contains(l, ": milestone,") {
			lines = append(lines, l)
		}
	}
	return lines
}

func TestService_PartialFailures(t *testing.T) {
	md := &mockMetadata{results: map[string]domain.FetchResult{
		"octo/demo":   domain.Succeeded("1.2.3", "2024-03-05T10:00:00Z"),
		"octo/broken": domain.Failed(domain.FetchTransportError, "listing commits: API returned status 502", errors.New("502 Bad Gateway")),
	}}
	artifact := &memoryArtifact{}

	svc := newTestService(t, md, mermaidgantt.New(domain.GranularityDate, ""), artifact, nil, nil, Options{
		RepoURLs: []string{
			"https://gitlab.com/octo/elsewhere",
			"https://github.com/octo/broken",
			"https://github.com/octo/demo",
		},
	})

	if err := svc.Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	lines := milestoneLines(string(artifact.written))
	if len(lines) != 1 {
		t.Fatalf("milestone lines = %d, want 1:\n%s", len(lines), artifact.written)
	}
	if want := "  octo/demo v1.2.3 : milestone, 2024-03-05, 1d"; lines[0] != want {
		t.Errorf("milestone = %q, want %q", lines[0], want)
	}
	if len(md.calls) != 2 {
		t.Errorf("fetches = %v, unresolvable url must not be fetched", md.calls)
	}
}

func TestService_NoRecentActivity(t *testing.T) {
	md := &mockMetadata{results: map[string]domain.FetchResult{
		"octo/quiet":  domain.Failed(domain.FetchNoCommits, "no commits since 2024-03-05T09:00:00Z", nil),
		"octo/active": domain.Succeeded("2.0.0", "2024-03-11T08:00:00Z"),
	}}
	artifact := &memoryArtifact{}
	var logs bytes.Buffer

	svc := newTestService(t, md, mermaidgantt.New(domain.GranularityDateTime, ""), artifact, nil, &logs, Options{
		RepoURLs: []string{"https://github.com/octo/quiet", "https://github.com/octo/active"},
	})

	if err := svc.Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	doc := string(artifact.written)
	if strings.Contains(doc, "octo/quiet") {
		t.Errorf("quiet repository should be absent:\n%s", doc)
	}
	lines := milestoneLines(doc)
	if len(lines) != 1 || lines[0] != "  octo/active v2.0.0 : milestone, 2024-03-11 08:00:00, 1s" {
		t.Errorf("milestones = %q", lines)
	}

	for _, line := range strings.Split(logs.String(), "\n") {
		if strings.Contains(line, "repo=octo/quiet") {
			if !strings.Contains(line, "INFO") || strings.Contains(line, "ERROR") {
				t.Errorf("quiet repository should be logged at info: %q", line)
			}
		}
	}
}

func TestService_AllFailStillWritesDocument(t *testing.T) {
	md := &mockMetadata{}
	artifact := &memoryArtifact{}

	svc := newTestService(t, md, mermaidgantt.New(domain.GranularityDate, ""), artifact, nil, nil, Options{
		RepoURLs: []string{"https://github.com/a/one", "not-a-url", "https://github.com/b/two"},
	})

	if err := svc.Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if artifact.writes != 1 {
		t.Fatalf("writes = %d, want 1", artifact.writes)
	}
	doc := string(artifact.written)
	if !strings.HasPrefix(doc, "```mermaid\ngantt\n") || !strings.HasSuffix(doc, "\n```\n") {
		t.Errorf("document envelope missing:\n%s", doc)
	}
	if n := len(milestoneLines(doc)); n != 0 {
		t.Errorf("milestone lines = %d, want 0", n)
	}
}

func TestService_PreservesInputOrder(t *testing.T) {
	md := &mockMetadata{
		results: map[string]domain.FetchResult{
			"o/first":  domain.Succeeded("1.0.0", "2024-01-01T00:00:00Z"),
			"o/second": domain.Succeeded("2.0.0", "2024-01-02T00:00:00Z"),
			"o/third":  domain.Succeeded("3.0.0", "2024-01-03T00:00:00Z"),
			"o/fourth": domain.Succeeded("4.0.0", "2024-01-04T00:00:00Z"),
		},
		delays: map[string]time.Duration{
			"o/first":  60 * time.Millisecond,
			"o/second": 40 * time.Millisecond,
			"o/third":  20 * time.Millisecond,
		},
	}
	renderer := &recordingRenderer{}

	svc := newTestService(t, md, renderer, &memoryArtifact{}, nil, nil, Options{
		RepoURLs: []string{
			"https://github.com/o/first",
			"https://github.com/o/second",
			"https://github.com/o/third",
			"https://github.com/o/fourth",
		},
		Concurrency: 4,
	})

	if err := svc.Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	want := []string{"o/first", "o/second", "o/third", "o/fourth"}
	if len(renderer.records) != len(want) {
		t.Fatalf("records = %d, want %d", len(renderer.records), len(want))
	}
	for i, r := range renderer.records {
		if r.Label != want[i] {
			t.Errorf("records[%d] = %q, want %q", i, r.Label, want[i])
		}
	}
}

func TestService_ConcurrencyBound(t *testing.T) {
	tests := []struct {
		name        string
		concurrency int
		wantMax     int32
	}{
		{"sequential by default", 0, 1},
		{"sequential", 1, 1},
		{"bounded", 2, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			urls := make([]string, 6)
			delays := make(map[string]time.Duration)
			for i := range urls {
				name := string(rune('a' + i))
				urls[i] = "https://github.com/o/" + name
				delays["o/"+name] = 15 * time.Millisecond
			}
			md := &mockMetadata{delays: delays}

			svc := newTestService(t, md, &recordingRenderer{}, &memoryArtifact{}, nil, nil, Options{
				RepoURLs:    urls,
				Concurrency: tt.concurrency,
			})
			if err := svc.Execute(context.Background()); err != nil {
				t.Fatalf("Execute() error = %v", err)
			}

			if got := md.maxSeen.Load(); got > tt.wantMax {
				t.Errorf("max in-flight fetches = %d, want <= %d", got, tt.wantMax)
			}
			if len(md.calls) != len(urls) {
				t.Errorf("fetches = %d, want %d", len(md.calls), len(urls))
			}
		})
	}
}

func TestService_SequentialFetchOrder(t *testing.T) {
	md := &mockMetadata{}
	svc := newTestService(t, md, &recordingRenderer{}, &memoryArtifact{}, nil, nil, Options{
		RepoURLs: []string{
			"https://github.com/o/c",
			"https://github.com/o/a",
			"https://github.com/o/b",
		},
	})
	if err := svc.Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	want := []string{"o/c", "o/a", "o/b"}
	for i := range want {
		if md.calls[i] != want[i] {
			t.Fatalf("fetch order = %v, want %v", md.calls, want)
		}
	}
}

func TestService_RequestTimeout(t *testing.T) {
	md := &mockMetadata{
		results: map[string]domain.FetchResult{
			"o/fast": domain.Succeeded("1.0.0", "2024-01-01T00:00:00Z"),
		},
		delays: map[string]time.Duration{"o/slow": 5 * time.Second},
	}
	renderer := &recordingRenderer{}

	svc := newTestService(t, md, renderer, &memoryArtifact{}, nil, nil, Options{
		RepoURLs:       []string{"https://github.com/o/slow", "https://github.com/o/fast"},
		RequestTimeout: 20 * time.Millisecond,
	})

	start := time.Now()
	if err := svc.Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Execute() took %v; per-repository timeout not applied", elapsed)
	}
	if len(renderer.records) != 1 || renderer.records[0].Label != "o/fast" {
		t.Errorf("records = %+v, want only o/fast", renderer.records)
	}
}

func TestService_WriteFailure(t *testing.T) {
	md := &mockMetadata{results: map[string]domain.FetchResult{
		"o/a": domain.Succeeded("1.0.0", "2024-01-01T00:00:00Z"),
	}}
	artifact := &memoryArtifact{writeErr: errors.New("disk full")}

	svc := newTestService(t, md, &recordingRenderer{}, artifact, nil, nil, Options{
		RepoURLs: []string{"https://github.com/o/a"},
	})

	err := svc.Execute(context.Background())
	if err == nil {
		t.Fatal("Execute() expected error when the chart cannot be written")
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("error = %v, want cause", err)
	}
}

func TestService_ReportsChanges(t *testing.T) {
	renderer := mermaidgantt.New(domain.GranularityDate, "")
	previous := renderer.Render([]domain.ChartRecord{
		{Label: "o/a", Version: "1.0.0", Timestamp: "2024-01-01T00:00:00Z"},
	})

	tests := []struct {
		name     string
		artifact *memoryArtifact
		wantLog  []string
	}{
		{
			name:     "first run",
			artifact: &memoryArtifact{},
			wantLog:  []string{"INFO", "no previous chart found"},
		},
		{
			name:     "changed",
			artifact: &memoryArtifact{previous: []byte(previous)},
			wantLog:  []string{"chart changed since last run", "added=1", "removed=1"},
		},
		{
			name:     "previous unreadable",
			artifact: &memoryArtifact{prevErr: errors.New("permission denied")},
			wantLog:  []string{"WARN", "failed to read previous chart", "permission denied"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := &mockMetadata{results: map[string]domain.FetchResult{
				"o/a": domain.Succeeded("1.1.0", "2024-02-01T00:00:00Z"),
			}}
			var logs bytes.Buffer

			svc := newTestService(t, md, renderer, tt.artifact, linediff.New(), &logs, Options{
				RepoURLs: []string{"https://github.com/o/a"},
			})
			if err := svc.Execute(context.Background()); err != nil {
				t.Fatalf("Execute() error = %v", err)
			}

			if !hasLogLine(logs.String(), tt.wantLog...) {
				t.Errorf("no log line with %q:\n%s", tt.wantLog, logs.String())
			}
			if tt.artifact.writes != 1 {
				t.Errorf("writes = %d, want 1", tt.artifact.writes)
			}
		})
	}
}

func TestService_UnchangedChart(t *testing.T) {
	renderer := mermaidgantt.New(domain.GranularityDate, "")
	records := []domain.ChartRecord{{Label: "o/a", Version: "1.0.0", Timestamp: "2024-01-01T00:00:00Z"}}
	artifact := &memoryArtifact{previous: []byte(renderer.Render(records))}
	md := &mockMetadata{results: map[string]domain.FetchResult{
		"o/a": domain.Succeeded("1.0.0", "2024-01-01T00:00:00Z"),
	}}
	var logs bytes.Buffer

	svc := newTestService(t, md, renderer, artifact, linediff.New(), &logs, Options{
		RepoURLs: []string{"https://github.com/o/a"},
	})
	if err := svc.Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !hasLogLine(logs.String(), "INFO", "chart unchanged since last run") {
		t.Errorf("expected unchanged message:\n%s", logs.String())
	}
}

func TestService_LogsFailures(t *testing.T) {
	md := &mockMetadata{results: map[string]domain.FetchResult{
		"o/bad": domain.Failed(domain.FetchParseError, "parsing package.json", errors.New("unexpected end of JSON input")),
	}}
	var logs bytes.Buffer

	svc := newTestService(t, md, &recordingRenderer{}, &memoryArtifact{}, nil, &logs, Options{
		RepoURLs: []string{"https://github.com/o/bad", "ftp://example.com/x"},
	})
	if err := svc.Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	out := logs.String()
	for _, want := range [][]string{
		{"ERROR", "failed to fetch repository metadata", "repo=o/bad", "status=ParseError", "unexpected end of JSON input"},
		{"DEBUG", "skipping unrecognized repository url", "url=ftp://example.com/x"},
		{"chart generated and saved", "output=memory://chart.md", "charted=0", "skipped=2", "failed=1"},
	} {
		if !hasLogLine(out, want...) {
			t.Errorf("no log line with %q:\n%s", want, out)
		}
	}
}

func TestCountChanges(t *testing.T) {
	diff := "--- previous\n+++ current\n@@ -1,2 +1,2 @@\n gantt\n-  a v1\n+  a v2\n+  b v1"
	added, removed := countChanges(diff)
	if added != 2 || removed != 1 {
		t.Errorf("countChanges() = +%d -%d, want +2 -1", added, removed)
	}
}
