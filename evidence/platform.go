package evidence

import (
	"encoding/json"
	"fmt"
)

// PlatformEvidence is the hardware evidence submitted for platform
// attestation. Both fields are base64url encoded.
type PlatformEvidence struct {
	HardwareEvidence string `json:"hardware_evidence"`
	RuntimeData      string `json:"runtime_data"`
}

type snpEvidence struct {
	SnpReport     string `json:"SnpReport"`
	VcekCertChain string `json:"VcekCertChain"`
}

// NewSNPPlatformEvidence combines an SNP report and its VCEK certificate
// chain into one JSON object and base64url encodes its serialized form. The
// fields of that object are themselves base64url encoded, so the report is
// encoded twice on the wire.
func NewSNPPlatformEvidence(hwReport, certChain, runtimeData []byte) (*PlatformEvidence, error) {
	data, err := json.Marshal(snpEvidence{
		SnpReport:     EncodeBase64URL(hwReport),
		VcekCertChain: EncodeBase64URL(certChain),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize SNP evidence: %w", err)
	}
	return &PlatformEvidence{
		HardwareEvidence: EncodeBase64URL(data),
		RuntimeData:      EncodeBase64URL(runtimeData),
	}, nil
}

// NewTDXPlatformEvidence wraps a TD quote that is already base64url encoded.
func NewTDXPlatformEvidence(encodedQuote string, runtimeData []byte) *PlatformEvidence {
	return &PlatformEvidence{
		HardwareEvidence: encodedQuote,
		RuntimeData:      EncodeBase64URL(runtimeData),
	}
}
