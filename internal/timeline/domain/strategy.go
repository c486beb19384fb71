package domain

import "fmt"

// FetchStrategy selects which commits supply the activity timestamp.
type FetchStrategy string

const (
	// StrategyLatest uses the single most recent commit.
	StrategyLatest FetchStrategy = "latest"
	// StrategyWindowed uses commits inside a trailing window and reports
	// FetchNoCommits when none qualify.
	StrategyWindowed FetchStrategy = "windowed"
)

// DateSource selects which commit date is reported. Author and committer
// dates differ for rebased or amended commits.
type DateSource string

const (
	DateSourceAuthor    DateSource = "author"
	DateSourceCommitter DateSource = "committer"
)

// ParseFetchStrategy validates a strategy name.
func ParseFetchStrategy(s string) (FetchStrategy, error) {
	switch FetchStrategy(s) {
	case StrategyLatest, StrategyWindowed:
		return FetchStrategy(s), nil
	}
	return "", fmt.Errorf("unknown fetch strategy %q (want %q or %q)", s, StrategyLatest, StrategyWindowed)
}

// ParseDateSource validates a date source name.
func ParseDateSource(s string) (DateSource, error) {
	switch DateSource(s) {
	case DateSourceAuthor, DateSourceCommitter:
		return DateSource(s), nil
	}
	return "", fmt.Errorf("unknown commit date source %q (want %q or %q)", s, DateSourceAuthor, DateSourceCommitter)
}

// ParseGranularity validates a granularity name.
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(s) {
	case GranularityDate, GranularityDateTime:
		return Granularity(s), nil
	}
	return "", fmt.Errorf("unknown chart granularity %q (want %q or %q)", s, GranularityDate, GranularityDateTime)
}

// DefaultGranularity returns the granularity that matches a strategy:
// day-level milestones for the latest commit, seconds for weekly activity.
func DefaultGranularity(s FetchStrategy) Granularity {
	if s == StrategyWindowed {
		return GranularityDateTime
	}
	return GranularityDate
}
