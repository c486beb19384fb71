package ports

import (
	"context"
	"time"

	"github.com/nathantilsley/repo-timeline/internal/timeline/domain"
)

// MetadataPort abstracts retrieving version and activity data for one
// repository. Failures are reported through the result, never as a panic.
type MetadataPort interface {
	FetchMetadata(ctx context.Context, ref domain.RepositoryReference) domain.FetchResult
}

// ChartRendererPort turns ordered records into a chart document. It must be
// deterministic: identical input yields byte-identical output.
type ChartRendererPort interface {
	Render(records []domain.ChartRecord) string
}

// ArtifactPort abstracts persisting the rendered document.
type ArtifactPort interface {
	// Previous returns the last written document, or nil if none exists.
	Previous(ctx context.Context) ([]byte, error)
	// Write replaces the stored document.
	Write(ctx context.Context, doc []byte) error
	// Location names where the document is stored, for log messages.
	Location() string
}

// DiffPort abstracts computing a textual diff between two documents.
type DiffPort interface {
	ComputeDiff(baseName, headName string, base, head []byte) string
}

// Clock supplies the current time so windowed queries are testable.
type Clock interface {
	Now() time.Time
}
