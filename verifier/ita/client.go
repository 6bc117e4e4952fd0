// Package ita implements a verifier.Client for Intel Trust Authority.
package ita

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/go-cvm-attestation/evidence"
	"github.com/google/go-cvm-attestation/verifier"
	"github.com/google/go-cvm-attestation/verifier/internal/transport"
)

const (
	// DefaultURL is the public Intel Trust Authority API.
	DefaultURL = "https://api.trustauthority.intel.com"

	tokenEndpoint = "/appraisal/v1/attest"

	apiKeyHeader = "x-api-key"
)

type client struct {
	inner  *http.Client
	apiURL string
	apiKey string
}

// NewClient returns an ITA client for the API at apiURL (DefaultURL when
// empty). A nil httpClient selects a default client.
func NewClient(apiURL string, apiKey string, httpClient *http.Client) (verifier.Client, error) {
	if apiKey == "" {
		return nil, errors.New("API Key required to initialize ITA connector")
	}
	if apiURL == "" {
		apiURL = DefaultURL
	}
	if httpClient == nil {
		httpClient = transport.NewHTTPClient()
	}
	return &client{
		inner:  httpClient,
		apiURL: strings.TrimSuffix(apiURL, "/"),
		apiKey: apiKey,
	}, nil
}

// Confirm that client implements verifier.Client interface.
var _ verifier.Client = (*client)(nil)

func (c *client) headers() map[string]string {
	return map[string]string{
		apiKeyHeader:                c.apiKey,
		transport.AcceptHeader:      transport.ApplicationJSON,
		transport.ContentTypeHeader: transport.ApplicationJSON,
	}
}

func (c *client) AttestGuest(ctx context.Context, request *evidence.GuestRequest) (string, error) {
	return transport.PostToken(ctx, c.inner, c.apiURL+tokenEndpoint, request, c.headers())
}

func (c *client) AttestPlatform(ctx context.Context, ev *evidence.PlatformEvidence) (string, error) {
	req := tokenRequest{
		Quote:       ev.HardwareEvidence,
		RuntimeData: ev.RuntimeData,
	}
	return transport.PostToken(ctx, c.inner, c.apiURL+tokenEndpoint, req, c.headers())
}
