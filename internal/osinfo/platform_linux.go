package osinfo

import (
	"errors"

	"github.com/google/go-cvm-attestation/evidence"
	"golang.org/x/sys/unix"
)

func windowsInfo() (evidence.OSInfo, error) {
	return evidence.OSInfo{}, errors.New("not running on Windows")
}

func platformEventLog() ([]byte, error) {
	return nil, errors.New("the Windows measurement log is only available on Windows")
}

// kernelRelease returns the running kernel release, e.g. 5.15.0-1052-azure.
func kernelRelease() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return ""
	}
	return unix.ByteSliceToString(uts.Release[:])
}
