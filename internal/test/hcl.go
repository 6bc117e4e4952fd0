package test

import "encoding/binary"

// IGVM report type tags.
const (
	ReportTypeSNP = uint32(2)
	ReportTypeTDX = uint32(4)
)

// HCL report layout.
const (
	hclHeaderSize     = 32
	hclHWReportSize   = 1184
	hclRequestData    = hclHeaderSize + hclHWReportSize
	hclRequestDataLen = 20
	hclRuntimeData    = hclRequestData + hclRequestDataLen
)

// HCLReport builds an HCL report with the given report type tag, hardware
// report and runtime data.
func HCLReport(reportType uint32, hwReport []byte, runtimeData []byte) []byte {
	out := make([]byte, hclRuntimeData+len(runtimeData))
	copy(out, "HCLA")
	binary.LittleEndian.PutUint32(out[4:], 1)
	copy(out[hclHeaderSize:hclRequestData], hwReport)
	binary.LittleEndian.PutUint32(out[hclRequestData:], uint32(hclRequestDataLen+len(runtimeData)))
	binary.LittleEndian.PutUint32(out[hclRequestData+4:], 1)
	binary.LittleEndian.PutUint32(out[hclRequestData+8:], reportType)
	binary.LittleEndian.PutUint32(out[hclRequestData+16:], uint32(len(runtimeData)))
	copy(out[hclRuntimeData:], runtimeData)
	return out
}

// RuntimeData is sample runtime data as the HCL produces it.
var RuntimeData = []byte(`{"keys":[{"kid":"HCLAkPub","key_ops":["sign"],"kty":"RSA"}],"vm-configuration":{"secure-boot":true,"tpm-enabled":true},"user-data":"00"}`)
