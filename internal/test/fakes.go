package test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"sync"

	"github.com/google/go-cvm-attestation/evidence"
	"github.com/google/go-tpm/legacy/tpm2"
)

// ErrPCRMismatch is returned by FakeTPM.DecryptWithEphemeralKey once PCRs
// were changed with ExtendPCR.
var ErrPCRMismatch = errors.New("TPM_RC_POLICY_FAIL: PCR values changed")

// FakeTPM is an in-memory vTPM. Its ephemeral key is a software RSA key.
type FakeTPM struct {
	Report []byte
	// Err, when set, is returned by every operation.
	Err error

	mu          sync.Mutex
	key         *rsa.PrivateKey
	pcrsChanged bool
	claims      [][]byte
}

// NewFakeTPM returns a FakeTPM serving hclReport.
func NewFakeTPM(hclReport []byte) *FakeTPM {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	return &FakeTPM{Report: hclReport, key: key}
}

// ExtendPCR makes the ephemeral key unusable, as on a real TPM.
func (f *FakeTPM) ExtendPCR() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pcrsChanged = true
}

// Claims returns the claims passed to HCLReport so far.
func (f *FakeTPM) Claims() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.claims...)
}

func (f *FakeTPM) AIKCert() ([]byte, error) { return AIKCert, f.Err }

func (f *FakeTPM) AIKPub() ([]byte, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return AIKTemplate.Encode()
}

func (f *FakeTPM) PCRQuote(pcrs []int) ([]byte, []byte, error) {
	return []byte("quote"), []byte("signature"), f.Err
}

func (f *FakeTPM) PCRValues(pcrs []int) ([][]byte, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	values := make([][]byte, len(pcrs))
	for i := range values {
		values[i] = make([]byte, sha256.Size)
	}
	return values, nil
}

func (f *FakeTPM) EphemeralKey(pcrs []int) (*evidence.EphemeralKey, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	pub := tpm2.Public{
		Type:       tpm2.AlgRSA,
		NameAlg:    tpm2.AlgSHA256,
		Attributes: tpm2.FlagDecrypt | tpm2.FlagFixedTPM | tpm2.FlagFixedParent | tpm2.FlagSensitiveDataOrigin,
		RSAParameters: &tpm2.RSAParams{
			KeyBits:    2048,
			ModulusRaw: f.key.N.Bytes(),
		},
	}
	encoded, err := pub.Encode()
	if err != nil {
		return nil, err
	}
	return &evidence.EphemeralKey{Public: encoded, CertifyInfo: []byte("certify"), CertifyInfoSignature: []byte("sig")}, nil
}

func (f *FakeTPM) DecryptWithEphemeralKey(sealed []byte, pcrs []int) ([]byte, error) {
	f.mu.Lock()
	changed := f.pcrsChanged
	f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	if changed {
		return nil, ErrPCRMismatch
	}
	return rsa.DecryptOAEP(sha256.New(), nil, f.key, sealed, nil)
}

func (f *FakeTPM) HCLReport(claims []byte) ([]byte, error) {
	f.mu.Lock()
	f.claims = append(f.claims, claims)
	f.mu.Unlock()
	return f.Report, f.Err
}

// FakeMetadata is an in-memory metadata service that records its calls.
type FakeMetadata struct {
	CertChain []byte
	Err       error

	mu        sync.Mutex
	VCEKCalls int
	Reports   []string
}

func (f *FakeMetadata) VCEKCertificate(context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.VCEKCalls++
	return f.CertChain, f.Err
}

// TDQuote returns "quote:" followed by the encoded report.
func (f *FakeMetadata) TDQuote(_ context.Context, encodedReport string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reports = append(f.Reports, encodedReport)
	if f.Err != nil {
		return "", f.Err
	}
	return "quote:" + encodedReport, nil
}

// FakeOS is a fixed OS inventory and measurement log.
type FakeOS struct {
	Info evidence.OSInfo
	Log  []byte
	Err  error
}

// UbuntuOS describes an Ubuntu 22.04 guest.
var UbuntuOS = evidence.OSInfo{
	Type:         evidence.OSTypeLinux,
	DistroName:   "Ubuntu",
	MajorVersion: 22,
	MinorVersion: 4,
	Build:        "5.15",
	PCRs:         []int{0, 1, 2, 3, 4, 5, 6, 7},
}

func (f *FakeOS) OSInfo() (evidence.OSInfo, error) { return f.Info, f.Err }

func (f *FakeOS) MeasurementLog(string) ([]byte, error) { return f.Log, f.Err }
