package evidence

import "fmt"

// IsolationType is the confidential computing technology isolating the guest.
type IsolationType int

// Supported isolation types.
const (
	IsolationUndefined IsolationType = iota
	IsolationTDX
	IsolationSEVSNP
)

func (t IsolationType) String() string {
	switch t {
	case IsolationTDX:
		return "TDX"
	case IsolationSEVSNP:
		return "SEV_SNP"
	default:
		return "UNDEFINED"
	}
}

// Valid reports whether t names a supported isolation technology.
func (t IsolationType) Valid() bool {
	return t == IsolationTDX || t == IsolationSEVSNP
}

// wireName is the name the attestation service uses for t.
func (t IsolationType) wireName() (string, error) {
	switch t {
	case IsolationTDX:
		return "Tdx", nil
	case IsolationSEVSNP:
		return "SevSnp", nil
	default:
		return "", fmt.Errorf("unsupported isolation type: %v", t)
	}
}

// IsolationInfo is the hardware isolation evidence of a guest attestation.
type IsolationInfo struct {
	Type           IsolationType
	HardwareReport []byte
	RuntimeData    []byte
	// CertChain is the VCEK certificate chain. Only set for SEV-SNP.
	CertChain []byte
}

type isolationEvidenceJSON struct {
	Proof       []byte `json:"Proof"`
	RunTimeData []byte `json:"RunTimeData"`
	CertChain   []byte `json:"CertChain,omitempty"`
}

type isolationInfoJSON struct {
	Type     string                `json:"Type"`
	Evidence isolationEvidenceJSON `json:"Evidence"`
}

func (i *IsolationInfo) wire() (isolationInfoJSON, error) {
	name, err := i.Type.wireName()
	if err != nil {
		return isolationInfoJSON{}, err
	}
	return isolationInfoJSON{
		Type: name,
		Evidence: isolationEvidenceJSON{
			Proof:       i.HardwareReport,
			RunTimeData: i.RuntimeData,
			CertChain:   i.CertChain,
		},
	}, nil
}
