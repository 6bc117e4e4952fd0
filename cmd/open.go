package cmd

import (
	"fmt"
	"io"

	"github.com/google/go-cvm-attestation/tpm"
)

// ExternalTPM can be set to run tests against a TPM initialized by an
// external package (like the simulator). Setting this value will make all
// cvmattest commands run against it, and will prevent the cmd package from
// closing the TPM. Setting this value and closing the TPM must be managed
// by the external package.
var ExternalTPM io.ReadWriter

var tpmPath string

// extTPMWrapper is designed to wrap the ExternalTPM to provide some overriding
// functions.
type extTPMWrapper struct {
	io.ReadWriter
}

// Close is no-op for extTPMWrapper to prevent it closing the underlying simulator.
func (et extTPMWrapper) Close() error {
	return nil
}

func openTpm() (*tpm.TPM, error) {
	opts := &tpm.Opts{Logger: log}
	if ExternalTPM != nil {
		return tpm.New(extTPMWrapper{ExternalTPM}, opts), nil
	}
	t, err := tpm.Open(tpmPath, opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to TPM: %w", err)
	}
	return t, nil
}
