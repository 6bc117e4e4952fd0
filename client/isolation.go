package client

import (
	"context"
	"fmt"

	"github.com/google/go-cvm-attestation/evidence"
	"github.com/google/go-cvm-attestation/hcl"
)

// isolationStrategy gathers the isolation specific evidence of a TEE type.
type isolationStrategy interface {
	reportType() hcl.ReportType
	// platformEvidence builds the platform attestation evidence for report.
	platformEvidence(ctx context.Context, md Metadata, report *hcl.Report) (*evidence.PlatformEvidence, error)
	// certChain returns the certificate chain sent with guest evidence.
	certChain(ctx context.Context, md Metadata) ([]byte, error)
}

func newIsolationStrategy(t evidence.IsolationType) (isolationStrategy, error) {
	switch t {
	case evidence.IsolationTDX:
		return tdxStrategy{}, nil
	case evidence.IsolationSEVSNP:
		return snpStrategy{}, nil
	default:
		return nil, fmt.Errorf("unsupported isolation type %v", t)
	}
}

type tdxStrategy struct{}

func (tdxStrategy) reportType() hcl.ReportType { return hcl.ReportTypeTDX }

// The metadata service turns the TDREPORT into a quote signed by the TD
// quoting enclave.
func (tdxStrategy) platformEvidence(ctx context.Context, md Metadata, report *hcl.Report) (*evidence.PlatformEvidence, error) {
	quote, err := md.TDQuote(ctx, evidence.EncodeBase64URL(report.HardwareReport))
	if err != nil {
		return nil, err
	}
	return evidence.NewTDXPlatformEvidence(quote, report.RuntimeData), nil
}

func (tdxStrategy) certChain(context.Context, Metadata) ([]byte, error) { return nil, nil }

type snpStrategy struct{}

func (snpStrategy) reportType() hcl.ReportType { return hcl.ReportTypeSNP }

func (snpStrategy) platformEvidence(ctx context.Context, md Metadata, report *hcl.Report) (*evidence.PlatformEvidence, error) {
	chain, err := md.VCEKCertificate(ctx)
	if err != nil {
		return nil, err
	}
	return evidence.NewSNPPlatformEvidence(report.HardwareReport, chain, report.RuntimeData)
}

func (snpStrategy) certChain(ctx context.Context, md Metadata) ([]byte, error) {
	return md.VCEKCertificate(ctx)
}
