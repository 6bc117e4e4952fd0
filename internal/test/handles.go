package test

import (
	"io"
	"math"
	"testing"

	"github.com/google/go-tpm/legacy/tpm2"
	"github.com/google/go-tpm/tpmutil"
)

// Handles returns all handles of type handleType loaded in the TPM rw.
func Handles(tb testing.TB, rw io.ReadWriter, handleType tpm2.HandleType) []tpmutil.Handle {
	tb.Helper()
	// Handle type is determined by the most-significant octet (MSO) of the property.
	property := uint32(handleType) << 24

	vals, moreData, err := tpm2.GetCapability(rw, tpm2.CapabilityHandles, math.MaxUint32, property)
	if err != nil {
		tb.Fatalf("listing handles: %v", err)
	}
	if moreData {
		tb.Fatal("tpm2.GetCapability() should never return moreData==true for tpm2.CapabilityHandles")
	}
	handles := make([]tpmutil.Handle, len(vals))
	for i, v := range vals {
		handle, ok := v.(tpmutil.Handle)
		if !ok {
			tb.Fatalf("unable to assert type tpmutil.Handle of value %v", v)
		}
		handles[i] = handle
	}
	return handles
}
