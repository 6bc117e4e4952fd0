package client

import (
	"context"

	"github.com/google/go-cvm-attestation/evidence"
)

// TPM is the vTPM of the guest. *tpm.TPM implements it.
type TPM interface {
	AIKCert() ([]byte, error)
	AIKPub() ([]byte, error)
	PCRQuote(pcrs []int) (quote []byte, sig []byte, err error)
	PCRValues(pcrs []int) ([][]byte, error)
	EphemeralKey(pcrs []int) (*evidence.EphemeralKey, error)
	DecryptWithEphemeralKey(sealed []byte, pcrs []int) ([]byte, error)
	HCLReport(claims []byte) ([]byte, error)
}

// Metadata is the cloud metadata service. *imds.Client implements it.
type Metadata interface {
	VCEKCertificate(ctx context.Context) ([]byte, error)
	TDQuote(ctx context.Context, encodedReport string) (string, error)
}

// OSInventory describes the guest OS, including the PCRs relevant to it.
type OSInventory interface {
	OSInfo() (evidence.OSInfo, error)
}

// MeasurementLog returns the boot measurement log of the guest.
type MeasurementLog interface {
	MeasurementLog(osType string) ([]byte, error)
}
