package domain

// UnknownTimestamp is substituted when a commit carries no date for the
// configured date source.
const UnknownTimestamp = "Unknown"

// RepositoryMetadata is the version and activity timestamp of one repository.
type RepositoryMetadata struct {
	Version   string
	Timestamp string // RFC 3339 in UTC, or UnknownTimestamp
}

// FetchStatus represents the outcome of fetching metadata for one repository.
type FetchStatus int

const (
	FetchSuccess        FetchStatus = iota // Metadata is populated
	FetchNotFound                          // Manifest absent or not a regular file
	FetchParseError                        // Manifest could not be decoded or parsed
	FetchTransportError                    // API call failed (network, auth, rate limit, ...)
	FetchNoCommits                         // No commit qualified (empty repo or quiet window)
)

// String returns the string representation of the FetchStatus.
func (s FetchStatus) String() string {
	if s < 0 || int(s) >= len(fetchStatusNames) {
		return "Unknown"
	}
	return fetchStatusNames[s]
}

var fetchStatusNames = [...]string{
	FetchSuccess:        "Success",
	FetchNotFound:       "NotFound",
	FetchParseError:     "ParseError",
	FetchTransportError: "TransportError",
	FetchNoCommits:      "NoCommits",
}

// FetchResult is the discriminated outcome of a metadata fetch.
// Metadata is only meaningful when Status == FetchSuccess.
type FetchResult struct {
	Status   FetchStatus
	Metadata RepositoryMetadata
	Reason   string // human-readable explanation for non-success outcomes
	Err      error  // underlying cause, if any
}

// OK reports whether the fetch produced usable metadata.
func (r FetchResult) OK() bool {
	return r.Status == FetchSuccess
}

// IsFailure reports whether the outcome should be logged as an error.
// FetchNoCommits is informational: the repository was simply quiet.
func (r FetchResult) IsFailure() bool {
	return r.Status != FetchSuccess && r.Status != FetchNoCommits
}

// Succeeded builds a successful FetchResult.
func Succeeded(version, timestamp string) FetchResult {
	return FetchResult{
		Status:   FetchSuccess,
		Metadata: RepositoryMetadata{Version: version, Timestamp: timestamp},
	}
}

// Failed builds a non-success FetchResult.
func Failed(status FetchStatus, reason string, err error) FetchResult {
	return FetchResult{Status: status, Reason: reason, Err: err}
}

// CountByFetchStatus returns the number of results per status.
func CountByFetchStatus(results []FetchResult) map[FetchStatus]int {
	counts := make(map[FetchStatus]int, len(fetchStatusNames))
	for _, r := range results {
		counts[r.Status]++
	}
	return counts
}
