package domain

// Granularity selects how milestone timestamps are rendered.
type Granularity string

const (
	GranularityDate     Granularity = "date"     // YYYY-MM-DD, 1d milestones
	GranularityDateTime Granularity = "datetime" // YYYY-MM-DD HH:MM:SS UTC, 1s milestones
)

// ChartRecord is one milestone on the timeline.
type ChartRecord struct {
	Label     string
	Version   string
	Timestamp string
}

// NewChartRecord joins a repository reference with its fetched metadata.
func NewChartRecord(ref RepositoryReference, md RepositoryMetadata) ChartRecord {
	return ChartRecord{
		Label:     ref.Label(),
		Version:   md.Version,
		Timestamp: md.Timestamp,
	}
}
