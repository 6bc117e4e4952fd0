// Package maa implements a verifier.Client for Microsoft Azure Attestation.
package maa

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-cvm-attestation/evidence"
	"github.com/google/go-cvm-attestation/verifier"
	"github.com/google/go-cvm-attestation/verifier/internal/transport"
)

type client struct {
	inner     *http.Client
	endpoint  string
	isolation evidence.IsolationType
}

// NewClient returns an MAA client posting to endpoint, the full attest URL of
// an attestation provider including its api-version query, e.g.
// https://sharedeus2.eus2.attest.azure.net/attest/SevSnpVm?api-version=2022-08-01.
// MAA requires no credentials. A nil httpClient selects a default client.
func NewClient(endpoint string, isolation evidence.IsolationType, httpClient *http.Client) (verifier.Client, error) {
	if endpoint == "" {
		return nil, errors.New("MAA endpoint must not be empty")
	}
	if !isolation.Valid() {
		return nil, fmt.Errorf("unsupported isolation type for MAA: %v", isolation)
	}
	if httpClient == nil {
		httpClient = transport.NewHTTPClient()
	}
	return &client{
		inner:     httpClient,
		endpoint:  endpoint,
		isolation: isolation,
	}, nil
}

// Confirm that client implements verifier.Client interface.
var _ verifier.Client = (*client)(nil)

var headers = map[string]string{
	transport.AcceptHeader:      transport.ApplicationJSON,
	transport.ContentTypeHeader: transport.ApplicationJSON,
}

func (c *client) AttestGuest(ctx context.Context, request *evidence.GuestRequest) (string, error) {
	return transport.PostToken(ctx, c.inner, c.endpoint, request, headers)
}

func (c *client) AttestPlatform(ctx context.Context, ev *evidence.PlatformEvidence) (string, error) {
	runtime := runtimeData{Data: ev.RuntimeData, DataType: "JSON"}
	var req any
	switch c.isolation {
	case evidence.IsolationSEVSNP:
		req = snpRequest{Report: ev.HardwareEvidence, RuntimeData: runtime}
	case evidence.IsolationTDX:
		req = tdxRequest{Quote: ev.HardwareEvidence, RuntimeData: runtime}
	}

	return transport.PostToken(ctx, c.inner, c.endpoint, req, headers)
}
