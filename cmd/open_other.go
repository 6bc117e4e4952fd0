//go:build !windows
// +build !windows

package cmd

// On Linux, we have to pass in the TPM path though a flag
func init() {
	RootCmd.PersistentFlags().StringVar(&tpmPath, "tpm-path", "",
		"path to TPM device (defaults to /dev/tpmrm0 then /dev/tpm0)")
}
