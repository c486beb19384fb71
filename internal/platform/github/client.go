// Package github provides configured GitHub API clients.
package github

import (
	"fmt"
	"net/http"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	gogithub "github.com/google/go-github/v68/github"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Credentials selects how requests are authenticated. Token wins over App
// credentials; when both are empty the client is unauthenticated and subject
// to the anonymous rate limit.
type Credentials struct {
	Token          string
	AppID          int64
	InstallationID int64
	PrivateKeyPEM  string
}

// Options configures NewClient.
type Options struct {
	Credentials Credentials
	APIURL      string        // GitHub Enterprise API base URL, empty for github.com
	Timeout     time.Duration // per HTTP request, zero for none
}

// NewClient creates a GitHub API client. Outbound requests are traced via
// otelhttp and pick up the globally registered tracer provider.
func NewClient(opts Options) (*gogithub.Client, error) {
	var transport http.RoundTripper = otelhttp.NewTransport(http.DefaultTransport)

	creds := opts.Credentials
	if creds.Token == "" && creds.AppID != 0 {
		// Installation transport handles JWT generation and token refresh
		itr, err := ghinstallation.New(transport, creds.AppID, creds.InstallationID, []byte(creds.PrivateKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("creating github installation transport: %w", err)
		}
		transport = itr
	}

	client := gogithub.NewClient(&http.Client{Transport: transport, Timeout: opts.Timeout})
	if creds.Token != "" {
		client = client.WithAuthToken(creds.Token)
	}

	if opts.APIURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(opts.APIURL, opts.APIURL)
		if err != nil {
			return nil, fmt.Errorf("configuring github api url %q: %w", opts.APIURL, err)
		}
	}

	return client, nil
}
