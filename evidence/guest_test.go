package evidence

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var testGuestParams = GuestParams{
	OS: OSInfo{
		Type:         OSTypeLinux,
		DistroName:   "Ubuntu",
		MajorVersion: 22,
		MinorVersion: 4,
		Build:        "5.15",
		PCRs:         []int{0, 1, 2, 3, 4, 5, 6, 7},
	},
	TcgLogs: []byte{0x00, 0x01, 0xFF, 0xFE},
	TPM: TPMInfo{
		AIKCert:      []byte("test-aik-cert"),
		AIKPub:       []byte("test-aik-pub"),
		PCRQuote:     []byte("test-quote"),
		PCRSignature: []byte("test-signature"),
		PCRs:         []int{0, 7},
		PCRValues:    [][]byte{{0x00, 0x01}, {0xFF}},
		EphemeralKey: EphemeralKey{
			Public:               []byte("test-ek-pub"),
			CertifyInfo:          []byte("test-certify-info"),
			CertifyInfoSignature: []byte("test-certify-sig"),
		},
	},
	Isolation: IsolationInfo{
		Type:           IsolationSEVSNP,
		HardwareReport: []byte{0xDE, 0xAD, 0xBE, 0xEF},
		RuntimeData:    []byte(`{"keys":[]}`),
		CertChain:      []byte("-----BEGIN CERTIFICATE-----"),
	},
}

func TestGuestParamsFields(t *testing.T) {
	data, err := json.Marshal(&testGuestParams)
	if err != nil {
		t.Fatalf("json.Marshal() failed: %v", err)
	}
	got := map[string]any{}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("json.Unmarshal() failed: %v", err)
	}

	wantStrings := map[string]string{
		"AttestationProtocolVersion": "2.0",
		"OSType":                     base64.StdEncoding.EncodeToString([]byte("Linux")),
		"OSDistro":                   "VWJ1bnR1",
		"OSVersionMajor":             "22",
		"OSVersionMinor":             "4",
		"OSBuild":                    base64.StdEncoding.EncodeToString([]byte("5.15")),
		"TcgLogs":                    base64.StdEncoding.EncodeToString(testGuestParams.TcgLogs),
		"ClientPayload":              "",
	}
	for field, want := range wantStrings {
		if got[field] != want {
			t.Errorf("field %s: got %v, want %q", field, got[field], want)
		}
	}
	for _, field := range []string{"TpmInfo", "IsolationInfo"} {
		if _, ok := got[field].(map[string]any); !ok {
			t.Errorf("field %s: got %T, want a JSON object", field, got[field])
		}
	}
	if len(got) != len(wantStrings)+2 {
		t.Errorf("got %d fields, want %d", len(got), len(wantStrings)+2)
	}
}

func TestGuestParamsNestedEvidence(t *testing.T) {
	data, err := json.Marshal(&testGuestParams)
	if err != nil {
		t.Fatalf("json.Marshal() failed: %v", err)
	}
	var got guestParamsJSON
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("json.Unmarshal() failed: %v", err)
	}
	if diff := cmp.Diff(testGuestParams.TPM.wire(), got.TpmInfo); diff != "" {
		t.Errorf("TpmInfo did not round trip (-want +got):\n%s", diff)
	}
	want := isolationInfoJSON{
		Type: "SevSnp",
		Evidence: isolationEvidenceJSON{
			Proof:       testGuestParams.Isolation.HardwareReport,
			RunTimeData: testGuestParams.Isolation.RuntimeData,
			CertChain:   testGuestParams.Isolation.CertChain,
		},
	}
	if diff := cmp.Diff(want, got.IsolationInfo); diff != "" {
		t.Errorf("IsolationInfo did not round trip (-want +got):\n%s", diff)
	}
}

func TestGuestParamsUndefinedIsolation(t *testing.T) {
	p := testGuestParams
	p.Isolation.Type = IsolationUndefined
	if _, err := json.Marshal(&p); err == nil {
		t.Error("json.Marshal() with undefined isolation type succeeded, want error")
	}
}

func TestNewGuestRequest(t *testing.T) {
	req, err := NewGuestRequest(&testGuestParams)
	if err != nil {
		t.Fatalf("NewGuestRequest() failed: %v", err)
	}
	inner, err := base64.RawURLEncoding.DecodeString(req.AttestationInfo)
	if err != nil {
		t.Fatalf("AttestationInfo is not unpadded base64url: %v", err)
	}
	want, err := json.Marshal(&testGuestParams)
	if err != nil {
		t.Fatalf("json.Marshal() failed: %v", err)
	}
	if diff := cmp.Diff(string(want), string(inner)); diff != "" {
		t.Errorf("AttestationInfo has unexpected contents (-want +got):\n%s", diff)
	}
}
