package tpm

import (
	"errors"
	"io"

	"github.com/google/go-tpm/legacy/tpm2"
)

// Windows has a single TPM reached through TBS, so path must be empty.
func openImpl(path string) (io.ReadWriteCloser, error) {
	if path != "" {
		return nil, errors.New("a TPM path cannot be given on Windows")
	}
	return tpm2.OpenTPM()
}
