package tpm

import (
	"crypto/sha512"
	"fmt"

	"github.com/google/go-tpm/legacy/tpm2"
	"github.com/google/go-tpm/tpmutil"
)

const reportDataAttributes = tpm2.AttrOwnerWrite | tpm2.AttrOwnerRead | tpm2.AttrAuthWrite | tpm2.AttrAuthRead

// ReportData returns the report data binding claims: their SHA-512 digest, or
// zeros when there are no claims.
func ReportData(claims []byte) []byte {
	if len(claims) == 0 {
		return make([]byte, ReportDataSize)
	}
	digest := sha512.Sum512(claims)
	return digest[:]
}

// HCLReport binds claims into a fresh HCL report and returns the report.
func (t *TPM) HCLReport(claims []byte) ([]byte, error) {
	data := ReportData(claims)

	if err := t.ensureIndex(ReportDataIndex, ReportDataSize); err != nil {
		return nil, err
	}
	if err := tpm2.NVWrite(t.rw, tpm2.HandleOwner, ReportDataIndex, "", data, 0); err != nil {
		return nil, fmt.Errorf("failed to write report data: %w", err)
	}

	report, err := tpm2.NVReadEx(t.rw, HCLReportIndex, tpm2.HandleOwner, "", 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read HCL report: %w", err)
	}
	return report, nil
}

func (t *TPM) ensureIndex(index tpmutil.Handle, size uint16) error {
	if _, err := tpm2.NVReadPublic(t.rw, index); err == nil {
		return nil
	}
	t.log.V(1).Infof("Defining NV index %#x", uint32(index))
	if err := tpm2.NVDefineSpace(t.rw, tpm2.HandleOwner, index, "", "", nil, reportDataAttributes, size); err != nil {
		return fmt.Errorf("failed to define NV index %#x: %w", uint32(index), err)
	}
	return nil
}
