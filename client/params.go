package client

import (
	"github.com/google/go-cvm-attestation/evidence"
	"github.com/google/go-cvm-attestation/verifier"
)

// Params is the configuration of a Client. It is copied at construction and
// never modified afterwards.
type Params struct {
	// Endpoint is the attestation service URL. For MAA it is the full attest
	// URL; for ITA it is the API base URL and may be empty.
	Endpoint      string
	Verifier      verifier.Verifier
	IsolationType evidence.IsolationType
	// Claims are bound into the HCL report as user data.
	Claims []byte
	// APIKey is required by ITA and ignored by MAA.
	APIKey string
}
