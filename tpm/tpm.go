// Package tpm implements the vTPM operations an Azure confidential VM guest
// needs for attestation: reading the AIK and the HCL report from NV storage,
// quoting PCRs, and creating and using a PCR-bound ephemeral key.
package tpm

import (
	"fmt"
	"io"

	"github.com/google/go-cvm-attestation/internal/logging"
	"github.com/google/go-tpm/legacy/tpm2"
	"github.com/google/go-tpm/tpmutil"
	"github.com/google/logger"
)

// Well-known handles provisioned by the Azure host compatibility layer.
const (
	// AIKHandle is the persistent handle of the attestation identity key.
	AIKHandle = tpmutil.Handle(0x81000003)
	// AIKCertIndex holds the DER encoded AIK certificate.
	AIKCertIndex = tpmutil.Handle(0x01C101D0)
	// HCLReportIndex holds the HCL report, regenerated whenever
	// ReportDataIndex is written.
	HCLReportIndex = tpmutil.Handle(0x01400001)
	// ReportDataIndex holds the user data bound into the HCL report.
	ReportDataIndex = tpmutil.Handle(0x01400002)
)

// ReportDataSize is the size of ReportDataIndex.
const ReportDataSize = 64

// PCRHashAlg selects the PCR bank used for quotes, values and key policies.
const PCRHashAlg = tpm2.AlgSHA256

// Opts configures a TPM. The zero value selects the Azure handles.
type Opts struct {
	AIKHandle tpmutil.Handle
	Logger    *logger.Logger
}

// TPM is a handle on a vTPM. It is not safe for concurrent use.
type TPM struct {
	rw  io.ReadWriteCloser
	aik tpmutil.Handle
	log *logger.Logger

	// ephemeral remembers the template of keys created by EphemeralKey so
	// decryption recreates the same key, keyed by the PCR selection.
	ephemeral map[string]tpm2.Public
}

// New wraps an open TPM. opts may be nil.
func New(rw io.ReadWriteCloser, opts *Opts) *TPM {
	t := &TPM{rw: rw, aik: AIKHandle, ephemeral: map[string]tpm2.Public{}}
	if opts != nil {
		if opts.AIKHandle != 0 {
			t.aik = opts.AIKHandle
		}
		t.log = opts.Logger
	}
	t.log = logging.OrDiscard(t.log)
	return t
}

// Open opens the TPM at path and wraps it. See openImpl for defaults.
func Open(path string, opts *Opts) (*TPM, error) {
	rw, err := openImpl(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open TPM: %w", err)
	}
	return New(rw, opts), nil
}

// Close closes the underlying TPM.
func (t *TPM) Close() error {
	return t.rw.Close()
}

// AIKCert returns the AIK certificate from NV storage.
func (t *TPM) AIKCert() ([]byte, error) {
	cert, err := tpm2.NVReadEx(t.rw, AIKCertIndex, tpm2.HandleOwner, "", 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read AIK certificate: %w", err)
	}
	return cert, nil
}

// AIKPub returns the TPMT_PUBLIC area of the AIK.
func (t *TPM) AIKPub() ([]byte, error) {
	pub, _, _, err := tpm2.ReadPublic(t.rw, t.aik)
	if err != nil {
		return nil, fmt.Errorf("failed to read AIK public area: %w", err)
	}
	return pub.Encode()
}

// PCRQuote quotes pcrs with the AIK, returning the TPMS_ATTEST structure and
// its TPMT_SIGNATURE.
func (t *TPM) PCRQuote(pcrs []int) ([]byte, []byte, error) {
	sel := tpm2.PCRSelection{Hash: PCRHashAlg, PCRs: pcrs}
	quote, sig, err := tpm2.QuoteRaw(t.rw, t.aik, "", "", nil, sel, tpm2.AlgNull)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to quote PCRs %v: %w", pcrs, err)
	}
	return quote, sig, nil
}

// PCRValues returns the SHA-256 values of pcrs, in the order given.
func (t *TPM) PCRValues(pcrs []int) ([][]byte, error) {
	values, err := readPCRs(t.rw, tpm2.PCRSelection{Hash: PCRHashAlg, PCRs: pcrs})
	if err != nil {
		return nil, fmt.Errorf("failed to read PCRs: %w", err)
	}
	out := make([][]byte, len(pcrs))
	for i, pcr := range pcrs {
		val, ok := values[pcr]
		if !ok {
			return nil, fmt.Errorf("TPM returned no value for PCR %d", pcr)
		}
		out[i] = val
	}
	return out, nil
}

// readPCRs fetches all the PCR values specified in sel, making multiple calls
// to the TPM if necessary.
func readPCRs(rw io.ReadWriter, sel tpm2.PCRSelection) (map[int][]byte, error) {
	pcrs := map[int][]byte{}
	for i := 0; i < len(sel.PCRs); i += 8 {
		end := min(i+8, len(sel.PCRs))
		pcrSel := tpm2.PCRSelection{
			Hash: sel.Hash,
			PCRs: sel.PCRs[i:end],
		}

		pcrMap, err := tpm2.ReadPCRs(rw, pcrSel)
		if err != nil {
			return nil, err
		}
		for pcr, val := range pcrMap {
			pcrs[pcr] = val
		}
	}
	return pcrs, nil
}
