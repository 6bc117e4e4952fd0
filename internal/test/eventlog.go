package test

import (
	"encoding/binary"
	"unicode/utf16"

	gtpm2 "github.com/google/go-tpm/tpm2"
)

// TCG event types used by CreateEventLog.
const (
	evNoAction      = uint32(0x03)
	evSeparator     = uint32(0x04)
	evSCRTMVersion  = uint32(0x08)
	firmwarePCRs    = 8
	separatorLength = 4
)

// CreateEventLog generates a crypto-agile TCG event log holding a firmware
// version event in PCR 0 and a separator in PCRs 0 to 7.
func CreateEventLog(firmwareVersion string) []byte {
	pcr0 := uint32(0)
	algorithms := []gtpm2.TPMIAlgHash{gtpm2.TPMAlgSHA1, gtpm2.TPMAlgSHA256}
	specEventInfo := []byte{
		'S', 'p', 'e', 'c', ' ', 'I', 'D', ' ', 'E', 'v', 'e', 'n', 't', '0', '3', 0,
		0, 0, 0, 0, // platformClass
		0,                              // specVersionMinor,
		2,                              // specVersionMajor,
		0,                              // specErrata
		2,                              // uintnSize
		byte(len(algorithms)), 0, 0, 0} // NumberOfAlgorithms
	for _, alg := range algorithms {
		var algInfo [4]byte
		algo, _ := alg.Hash()
		binary.LittleEndian.PutUint16(algInfo[0:2], uint16(alg))
		binary.LittleEndian.PutUint16(algInfo[2:4], uint16(algo.Size()))
		specEventInfo = append(specEventInfo, algInfo[:]...)
	}
	vendorInfoSize := byte(0)
	specEventInfo = append(specEventInfo, vendorInfoSize)

	specEventHeader := make([]byte, 32)
	binary.LittleEndian.PutUint32(specEventHeader[0:4], pcr0)
	binary.LittleEndian.PutUint32(specEventHeader[4:8], evNoAction)
	binary.LittleEndian.PutUint32(specEventHeader[28:32], uint32(len(specEventInfo)))
	log := append(specEventHeader, specEventInfo...)

	// After the Spec ID Event, all events must use all the specified digest algorithms.
	extendHashes := func(buffer []byte, info []byte) []byte {
		var numberOfDigests [4]byte
		binary.LittleEndian.PutUint32(numberOfDigests[:], uint32(len(algorithms)))
		buffer = append(buffer, numberOfDigests[:]...)
		for _, alg := range algorithms {
			algo, _ := alg.Hash()
			digest := make([]byte, 2+algo.Size())
			binary.LittleEndian.PutUint16(digest[0:2], uint16(alg))
			h := algo.New()
			h.Write(info)
			copy(digest[2:], h.Sum(nil))
			buffer = append(buffer, digest...)
		}
		return buffer
	}
	writeTpm2Event := func(buffer []byte, pcr uint32, eventType uint32, info []byte) []byte {
		header := make([]byte, 8)
		binary.LittleEndian.PutUint32(header[0:4], pcr)
		binary.LittleEndian.PutUint32(header[4:8], eventType)
		buffer = append(buffer, header...)

		buffer = extendHashes(buffer, info)

		var eventSize [4]byte
		binary.LittleEndian.PutUint32(eventSize[:], uint32(len(info)))
		buffer = append(buffer, eventSize[:]...)

		return append(buffer, info...)
	}

	// The version is a NUL terminated UCS-2 string.
	var versionEventInfo []byte
	for _, r := range utf16.Encode([]rune(firmwareVersion + "\x00")) {
		versionEventInfo = binary.LittleEndian.AppendUint16(versionEventInfo, r)
	}
	log = writeTpm2Event(log, pcr0, evSCRTMVersion, versionEventInfo)

	for pcr := uint32(0); pcr < firmwarePCRs; pcr++ {
		log = writeTpm2Event(log, pcr, evSeparator, make([]byte, separatorLength))
	}
	return log
}
