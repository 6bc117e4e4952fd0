// Package osinfo collects the guest operating system description and the
// boot measurement log sent with guest attestation evidence.
package osinfo

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/google/go-attestation/attest"
	"github.com/google/go-cvm-attestation/evidence"
	"github.com/google/go-cvm-attestation/internal/logging"
	"github.com/google/logger"
)

// Default locations of the Linux inputs.
const (
	DefaultOSReleasePath = "/etc/os-release"
	DefaultEventLogPath  = "/sys/kernel/security/tpm0/binary_bios_measurements"
)

// PCRs quoted and bound into the ephemeral key for each OS family.
var (
	LinuxPCRs   = []int{0, 1, 2, 3, 4, 5, 6, 7}
	WindowsPCRs = []int{0, 1, 2, 3, 4, 5, 6, 7, 11, 12, 13, 14}
)

// PCRsFor returns the PCR list of an OS family.
func PCRsFor(osType string) ([]int, error) {
	switch osType {
	case evidence.OSTypeLinux:
		return append([]int(nil), LinuxPCRs...), nil
	case evidence.OSTypeWindows:
		return append([]int(nil), WindowsPCRs...), nil
	default:
		return nil, fmt.Errorf("unsupported OS type %q", osType)
	}
}

// Collector gathers inventory from the running guest. The zero value reads
// the default locations.
type Collector struct {
	OSReleasePath string
	EventLogPath  string
	Logger        *logger.Logger
}

// OSInfo describes the running guest.
func (c *Collector) OSInfo() (evidence.OSInfo, error) {
	if runtime.GOOS == "windows" {
		return windowsInfo()
	}
	path := c.OSReleasePath
	if path == "" {
		path = DefaultOSReleasePath
	}
	f, err := os.Open(path)
	if err != nil {
		return evidence.OSInfo{}, fmt.Errorf("failed to read OS release: %w", err)
	}
	defer f.Close()

	info, err := ParseOSRelease(f)
	if err != nil {
		return evidence.OSInfo{}, err
	}
	info.Build = kernelRelease()
	return info, nil
}

// ParseOSRelease builds a Linux descriptor from an os-release(5) file.
// Build is left empty.
func ParseOSRelease(r io.Reader) (evidence.OSInfo, error) {
	fields := map[string]string{}
	s := bufio.NewScanner(r)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		if unq, err := strconv.Unquote(val); err == nil {
			val = unq
		} else {
			val = strings.Trim(val, `'"`)
		}
		fields[key] = val
	}
	if err := s.Err(); err != nil {
		return evidence.OSInfo{}, fmt.Errorf("failed to parse OS release: %w", err)
	}

	info := evidence.OSInfo{
		Type:       evidence.OSTypeLinux,
		DistroName: fields["NAME"],
		PCRs:       append([]int(nil), LinuxPCRs...),
	}
	if info.DistroName == "" {
		info.DistroName = fields["ID"]
	}
	major, minor, _ := strings.Cut(fields["VERSION_ID"], ".")
	// Rolling releases have no VERSION_ID.
	info.MajorVersion, _ = strconv.Atoi(major)
	minor, _, _ = strings.Cut(minor, ".")
	info.MinorVersion, _ = strconv.Atoi(minor)
	return info, nil
}

// MeasurementLog returns the TCG event log for a guest of type osType.
// A log that go-attestation cannot parse is still returned, since the
// attestation service is the one verifying it.
func (c *Collector) MeasurementLog(osType string) ([]byte, error) {
	var log []byte
	var err error
	switch osType {
	case evidence.OSTypeLinux:
		path := c.EventLogPath
		if path == "" {
			path = DefaultEventLogPath
		}
		log, err = os.ReadFile(path)
	case evidence.OSTypeWindows:
		log, err = platformEventLog()
	default:
		return nil, fmt.Errorf("unsupported OS type %q", osType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read measurement log: %w", err)
	}
	if _, perr := attest.ParseEventLog(log); perr != nil {
		logging.OrDiscard(c.Logger).Warningf("Measurement log did not parse: %v", perr)
	}
	return log, nil
}
