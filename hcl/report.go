// Package hcl extracts attestation evidence from the report produced by the
// host compatibility layer (HCL) of a confidential VM.
//
// The report is a fixed-layout little-endian structure:
//
//	attestation header (32 bytes)
//	hardware report area (1184 bytes, SNP report or TDREPORT + padding)
//	IGVM request data header (20 bytes)
//	variable data (runtime data, JSON)
package hcl

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	sabi "github.com/google/go-sev-guest/abi"
	spb "github.com/google/go-sev-guest/proto/sevsnp"
)

const (
	headerSize            = 32
	hwReportAreaSize      = sabi.ReportSize
	requestDataHeaderSize = 20

	// TdReportSize is the size of a TDX TDREPORT_STRUCT.
	TdReportSize = 1024

	requestDataOffset = headerSize + hwReportAreaSize
	runtimeDataOffset = requestDataOffset + requestDataHeaderSize

	// Offsets into the IGVM request data header.
	reportTypeOffset       = requestDataOffset + 8
	variableDataSizeOffset = requestDataOffset + 16
)

var signature = []byte("HCLA")

// IGVM report type codes.
const (
	igvmReportTypeInvalid  uint32 = 0
	igvmReportTypeReserved uint32 = 1
	igvmReportTypeSNP      uint32 = 2
	igvmReportTypeTVM      uint32 = 3
	igvmReportTypeTDX      uint32 = 4
)

// ReportType identifies the hardware report carried in an HCL report.
type ReportType string

// Recognized report types.
const (
	ReportTypeSNP     ReportType = "snp"
	ReportTypeTDX     ReportType = "tdx"
	ReportTypeUnknown ReportType = "unknown"
)

var (
	// ErrMalformedReport is returned when the HCL report is truncated or its
	// fields are out of range.
	ErrMalformedReport = errors.New("malformed HCL report")
	// ErrUnknownReportType is returned by callers that need a recognized
	// report type and get something else.
	ErrUnknownReportType = errors.New("invalid hardware report type")
)

// Report is the evidence carried by an HCL report.
type Report struct {
	// Type is derived from the report type tag of the IGVM request data.
	Type ReportType
	// RawType is the report type tag as found in the report.
	RawType uint32
	// HardwareReport is the vendor report (SNP attestation report or TDREPORT).
	HardwareReport []byte
	// RuntimeData is the variable data measured into the hardware report.
	RuntimeData []byte
}

func reportType(raw uint32) ReportType {
	switch raw {
	case igvmReportTypeSNP:
		return ReportTypeSNP
	case igvmReportTypeTDX:
		return ReportTypeTDX
	default:
		return ReportTypeUnknown
	}
}

// Extract parses an HCL report. It never modifies raw and the returned slices
// do not alias it. An unrecognized report type is not an error here; it is
// reported through Report.Type and left for the caller to decide on.
func Extract(raw []byte) (*Report, error) {
	if len(raw) < runtimeDataOffset {
		return nil, fmt.Errorf("%w: got %d bytes, need at least %d", ErrMalformedReport, len(raw), runtimeDataOffset)
	}
	if !bytes.Equal(raw[:len(signature)], signature) {
		return nil, fmt.Errorf("%w: bad signature %q", ErrMalformedReport, raw[:len(signature)])
	}

	rawType := binary.LittleEndian.Uint32(raw[reportTypeOffset:])
	varSize := binary.LittleEndian.Uint32(raw[variableDataSizeOffset:])
	if uint64(varSize) > uint64(len(raw)-runtimeDataOffset) {
		return nil, fmt.Errorf("%w: runtime data size %d exceeds report length %d", ErrMalformedReport, varSize, len(raw))
	}

	typ := reportType(rawType)
	hwSize := hwReportAreaSize
	if typ == ReportTypeTDX {
		hwSize = TdReportSize
	}

	return &Report{
		Type:           typ,
		RawType:        rawType,
		HardwareReport: bytes.Clone(raw[headerSize : headerSize+hwSize]),
		RuntimeData:    bytes.Clone(raw[runtimeDataOffset : runtimeDataOffset+int(varSize)]),
	}, nil
}

// SNPReport decodes the hardware report as an AMD SEV-SNP attestation report.
func (r *Report) SNPReport() (*spb.Report, error) {
	if r.Type != ReportTypeSNP {
		return nil, fmt.Errorf("%w: %s report is not an SNP report", ErrUnknownReportType, r.Type)
	}
	return sabi.ReportToProto(r.HardwareReport)
}
