package osinfo

import (
	"fmt"

	"github.com/google/go-attestation/attest"
	"github.com/google/go-cvm-attestation/evidence"
	"golang.org/x/sys/windows"
)

func windowsInfo() (evidence.OSInfo, error) {
	v := windows.RtlGetVersion()
	return evidence.OSInfo{
		Type:         evidence.OSTypeWindows,
		DistroName:   "Windows",
		MajorVersion: int(v.MajorVersion),
		MinorVersion: int(v.MinorVersion),
		Build:        fmt.Sprint(v.BuildNumber),
		PCRs:         append([]int(nil), WindowsPCRs...),
	}, nil
}

// Windows keeps the log behind TBS.
func platformEventLog() ([]byte, error) {
	tpm, err := attest.OpenTPM(&attest.OpenConfig{TPMVersion: attest.TPMVersion20})
	if err != nil {
		return nil, err
	}
	defer tpm.Close()
	return tpm.MeasurementLog()
}

func kernelRelease() string { return "" }
