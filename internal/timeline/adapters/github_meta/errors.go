package githubmeta

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/go-github/v68/github"

	"github.com/nathantilsley/repo-timeline/internal/timeline/domain"
)

// fetchError carries the classified outcome of a failed step.
type fetchError struct {
	status domain.FetchStatus
	reason string
	err    error
}

func (e *fetchError) Error() string {
	if e.err == nil {
		return e.reason
	}
	return fmt.Sprintf("%s: %s", e.reason, e.err)
}

func (e *fetchError) Unwrap() error {
	return e.err
}

func transportFailure(action string, err error) *fetchError {
	return &fetchError{
		status: domain.FetchTransportError,
		reason: action + ": " + describeTransportError(err),
		err:    err,
	}
}

// toResult converts a step error into a FetchResult. Unclassified errors are
// treated as transport failures.
func toResult(err error) domain.FetchResult {
	var fe *fetchError
	if errors.As(err, &fe) {
		return domain.Failed(fe.status, fe.reason, fe.err)
	}
	return domain.Failed(domain.FetchTransportError, describeTransportError(err), err)
}

// describeTransportError summarizes why an API call failed.
func describeTransportError(err error) string {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return "rate limit exceeded, resets at " + rateErr.Rate.Reset.UTC().Format(time.RFC3339)
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		if d := abuseErr.GetRetryAfter(); d > 0 {
			return "secondary rate limit exceeded, retry after " + d.String()
		}
		return "secondary rate limit exceeded"
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}
	if errors.Is(err, context.Canceled) {
		return "request canceled"
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch code := respErr.Response.StatusCode; code {
		case http.StatusUnauthorized:
			return "authentication rejected"
		case http.StatusForbidden:
			return "access forbidden"
		case http.StatusNotFound:
			return "repository not found"
		default:
			return fmt.Sprintf("API returned status %d", code)
		}
	}

	return "request failed"
}
