package evidence

// OS families known to the attestation service.
const (
	OSTypeLinux   = "Linux"
	OSTypeWindows = "Windows"
)

// OSInfo describes the guest operating system.
type OSInfo struct {
	Type         string
	DistroName   string
	MajorVersion int
	MinorVersion int
	Build        string
	// PCRs are the PCR indices quoted and sealed to for this OS family.
	PCRs []int
}
