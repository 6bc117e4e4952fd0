package evidence

// EphemeralKey is the PCR-bound decryption key the service seals the inner
// transport key to, along with the AIK's certification of it.
type EphemeralKey struct {
	// Public is the TPMT_PUBLIC area of the key.
	Public               []byte
	CertifyInfo          []byte
	CertifyInfoSignature []byte
}

// TPMInfo is the vTPM evidence of a single guest attestation.
type TPMInfo struct {
	AIKCert      []byte
	AIKPub       []byte
	PCRQuote     []byte
	PCRSignature []byte
	PCRs         []int
	// PCRValues holds the SHA-256 digests of PCRs, in the same order.
	PCRValues    [][]byte
	EphemeralKey EphemeralKey
}

// encoding/json emits []byte as padded standard base64.
type ephemeralKeyJSON struct {
	Public               []byte `json:"Public"`
	CertifyInfo          []byte `json:"CertifyInfo"`
	CertifyInfoSignature []byte `json:"CertifyInfoSignature"`
}

type tpmInfoJSON struct {
	AikCert       []byte           `json:"AikCert"`
	AikPub        []byte           `json:"AikPub"`
	PcrQuote      []byte           `json:"PcrQuote"`
	PcrSignature  []byte           `json:"PcrSignature"`
	PcrSet        []int            `json:"PcrSet"`
	PcrValues     [][]byte         `json:"PcrValues"`
	EncryptionKey ephemeralKeyJSON `json:"EncryptionKey"`
}

func (t *TPMInfo) wire() tpmInfoJSON {
	return tpmInfoJSON{
		AikCert:      t.AIKCert,
		AikPub:       t.AIKPub,
		PcrQuote:     t.PCRQuote,
		PcrSignature: t.PCRSignature,
		PcrSet:       t.PCRs,
		PcrValues:    t.PCRValues,
		EncryptionKey: ephemeralKeyJSON{
			Public:               t.EphemeralKey.Public,
			CertifyInfo:          t.EphemeralKey.CertifyInfo,
			CertifyInfoSignature: t.EphemeralKey.CertifyInfoSignature,
		},
	}
}
