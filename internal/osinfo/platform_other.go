//go:build !linux && !windows

package osinfo

import (
	"errors"

	"github.com/google/go-cvm-attestation/evidence"
)

func windowsInfo() (evidence.OSInfo, error) {
	return evidence.OSInfo{}, errors.New("not running on Windows")
}

func platformEventLog() ([]byte, error) {
	return nil, errors.New("failed to get event log: only Linux and Windows supported")
}

func kernelRelease() string { return "" }
