// Package test provides simulated and fake vTPMs and test data shared by the
// tests of the attestation packages.
package test

import (
	"io"
	"sync"
	"testing"

	"github.com/google/go-attestation/attest"
	"github.com/google/go-tpm-tools/simulator"
	"github.com/google/go-tpm/legacy/tpm2"
	"github.com/google/go-tpm/tpmutil"
)

// Handles the Azure HCL provisions in the vTPM.
const (
	AIKHandle      = tpmutil.Handle(0x81000003)
	AIKCertIndex   = tpmutil.Handle(0x01C101D0)
	HCLReportIndex = tpmutil.Handle(0x01400001)
)

// NV writes are limited to MAX_NV_BUFFER_SIZE.
const nvWriteChunk = 1024

const nvAttributes = tpm2.AttrOwnerWrite | tpm2.AttrOwnerRead | tpm2.AttrAuthWrite | tpm2.AttrAuthRead

// AIKTemplate is the template of the simulated AIK.
var AIKTemplate = tpm2.Public{
	Type:       tpm2.AlgRSA,
	NameAlg:    tpm2.AlgSHA256,
	Attributes: tpm2.FlagSignerDefault | tpm2.FlagNoDA,
	RSAParameters: &tpm2.RSAParams{
		Sign:    &tpm2.SigScheme{Alg: tpm2.AlgRSASSA, Hash: tpm2.AlgSHA256},
		KeyBits: 2048,
	},
}

// AIKCert is the content of the simulated AIK certificate index.
var AIKCert = []byte("-----BEGIN CERTIFICATE-----\nTUlJQ2Zha2VBSUtDZXJ0\n-----END CERTIFICATE-----\n")

// closeOnce lets both the code under test and the test cleanup close the
// simulator.
type closeOnce struct {
	*simulator.Simulator
	once sync.Once
	err  error
}

func (c *closeOnce) Close() error {
	c.once.Do(func() { c.err = c.Simulator.Close() })
	return c.err
}

// GetVTPM returns a simulator provisioned like an Azure vTPM: a persisted
// AIK, its certificate, and hclReport in the HCL report index. The PCRs
// match the events of eventLog. The simulator is closed at the end of the
// test.
func GetVTPM(tb testing.TB, hclReport []byte, eventLog []byte) io.ReadWriteCloser {
	tb.Helper()
	s, err := simulator.Get()
	if err != nil {
		tb.Fatalf("Simulator initialization failed: %v", err)
	}
	sim := &closeOnce{Simulator: s}
	// Make sure that whatever happens, we close the simulator
	tb.Cleanup(func() {
		if err := sim.Close(); err != nil {
			tb.Errorf("when closing simulator: %v", err)
		}
	})

	handle, _, err := tpm2.CreatePrimary(sim, tpm2.HandleEndorsement, tpm2.PCRSelection{}, "", "", AIKTemplate)
	if err != nil {
		tb.Fatalf("failed to create AIK: %v", err)
	}
	if err := tpm2.EvictControl(sim, "", tpm2.HandleOwner, handle, AIKHandle); err != nil {
		tb.Fatalf("failed to persist AIK: %v", err)
	}
	if err := tpm2.FlushContext(sim, handle); err != nil {
		tb.Fatalf("failed to flush AIK: %v", err)
	}
	WriteNV(tb, sim, AIKCertIndex, AIKCert)
	if hclReport != nil {
		WriteNV(tb, sim, HCLReportIndex, hclReport)
	}
	if eventLog != nil {
		simulateEventLogEvents(tb, sim, eventLog)
	}
	return sim
}

// WriteNV defines index and writes data into it.
func WriteNV(tb testing.TB, rw io.ReadWriter, index tpmutil.Handle, data []byte) {
	tb.Helper()
	if err := tpm2.NVDefineSpace(rw, tpm2.HandleOwner, index, "", "", nil, nvAttributes, uint16(len(data))); err != nil {
		tb.Fatalf("NVDefineSpace(%#x) failed: %v", uint32(index), err)
	}
	for off := 0; off < len(data); off += nvWriteChunk {
		end := min(off+nvWriteChunk, len(data))
		if err := tpm2.NVWrite(rw, tpm2.HandleOwner, index, "", data[off:end], uint16(off)); err != nil {
			tb.Fatalf("NVWrite(%#x) at offset %d failed: %v", uint32(index), off, err)
		}
	}
}

// simulateEventLogEvents parses the log and extends the TPM accordingly.
func simulateEventLogEvents(tb testing.TB, rw io.ReadWriter, eventLog []byte) {
	attestEventLog, err := attest.ParseEventLog(eventLog)
	if err != nil {
		tb.Fatalf("Failed to parse test event log: %v", err)
	}

	hashAlgs := map[tpm2.Algorithm]attest.HashAlg{
		tpm2.AlgSHA1:   attest.HashSHA1,
		tpm2.AlgSHA256: attest.HashSHA256,
	}

	for tpm2Alg, attestAlg := range hashAlgs {
		events := attestEventLog.Events(attestAlg)
		for _, event := range events {
			// EV_NO_ACTION
			if event.Type == 0x03 {
				continue
			}
			extendOnePcr(tb, rw, event.Index, tpm2Alg, event.Digest)
		}
	}
}

func extendOnePcr(tb testing.TB, rw io.ReadWriter, pcr int, hashAlg tpm2.Algorithm, hash []byte) {
	err := tpm2.PCRExtend(rw, tpmutil.Handle(pcr), hashAlg, hash, "")
	if err != nil {
		tb.Fatalf("PCRExtend failed: %v", err)
	}
}
