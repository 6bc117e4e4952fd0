package evidence

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ProtocolVersion is the version of the guest attestation protocol spoken
// with the attestation service. A mismatch is rejected by the service.
const ProtocolVersion = "2.0"

// GuestParams is the evidence collected for a guest attestation.
type GuestParams struct {
	OS        OSInfo
	TcgLogs   []byte
	TPM       TPMInfo
	Isolation IsolationInfo
}

type guestParamsJSON struct {
	AttestationProtocolVersion string            `json:"AttestationProtocolVersion"`
	OSType                     string            `json:"OSType"`
	OSDistro                   string            `json:"OSDistro"`
	OSVersionMajor             string            `json:"OSVersionMajor"`
	OSVersionMinor             string            `json:"OSVersionMinor"`
	OSBuild                    string            `json:"OSBuild"`
	TcgLogs                    string            `json:"TcgLogs"`
	ClientPayload              string            `json:"ClientPayload"`
	TpmInfo                    tpmInfoJSON       `json:"TpmInfo"`
	IsolationInfo              isolationInfoJSON `json:"IsolationInfo"`
}

// MarshalJSON serializes the parameters into the service's guest evidence
// format.
func (p *GuestParams) MarshalJSON() ([]byte, error) {
	isolation, err := p.Isolation.wire()
	if err != nil {
		return nil, err
	}
	return json.Marshal(guestParamsJSON{
		AttestationProtocolVersion: ProtocolVersion,
		OSType:                     EncodeBase64([]byte(p.OS.Type)),
		OSDistro:                   EncodeBase64([]byte(p.OS.DistroName)),
		OSVersionMajor:             strconv.Itoa(p.OS.MajorVersion),
		OSVersionMinor:             strconv.Itoa(p.OS.MinorVersion),
		OSBuild:                    EncodeBase64([]byte(p.OS.Build)),
		TcgLogs:                    EncodeBase64(p.TcgLogs),
		ClientPayload:              EncodeBase64(nil),
		TpmInfo:                    p.TPM.wire(),
		IsolationInfo:              isolation,
	})
}

// GuestRequest is the body of a guest attestation request.
type GuestRequest struct {
	// AttestationInfo is the base64url encoded JSON of GuestParams.
	AttestationInfo string `json:"AttestationInfo"`
}

// NewGuestRequest builds the request envelope for the given evidence.
func NewGuestRequest(p *GuestParams) (*GuestRequest, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize guest evidence: %w", err)
	}
	return &GuestRequest{AttestationInfo: EncodeBase64URL(data)}, nil
}
