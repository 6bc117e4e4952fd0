// Package verifier contains clients for the remote attestation services that
// verify confidential VM evidence and issue tokens.
package verifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/go-cvm-attestation/evidence"
)

// Client is a common interface to the supported attestation services. Clients
// perform exactly one HTTP request per call and never retry.
type Client interface {
	// AttestGuest submits guest evidence and returns the raw, still encrypted,
	// service response.
	AttestGuest(ctx context.Context, request *evidence.GuestRequest) (string, error)
	// AttestPlatform submits hardware evidence and returns the service token.
	AttestPlatform(ctx context.Context, ev *evidence.PlatformEvidence) (string, error)
}

// Verifier identifies an attestation service.
type Verifier int

// Supported attestation services.
const (
	Undefined Verifier = iota
	// MAA is Microsoft Azure Attestation.
	MAA
	// ITA is Intel Trust Authority.
	ITA
)

func (v Verifier) String() string {
	switch v {
	case MAA:
		return "MAA"
	case ITA:
		return "ITA"
	default:
		return "UNDEFINED"
	}
}

// Valid reports whether v names a supported attestation service.
func (v Verifier) Valid() bool {
	return v == MAA || v == ITA
}

// ProviderError reports a failed exchange with an attestation service: either
// the request never completed (Err is set) or the service answered with a
// non-success status.
type ProviderError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("attestation service request failed: %v", e.Err)
	}
	return fmt.Sprintf("attestation service returned HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ErrNoToken is the cause of a ProviderError for a success response that
// carries no token.
var ErrNoToken = errors.New("response carries no token")

// TokenResponse is the response body of both services' attest endpoints.
type TokenResponse struct {
	Token string `json:"token"`
}
