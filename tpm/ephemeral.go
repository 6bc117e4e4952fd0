package tpm

import (
	"fmt"

	"github.com/google/go-cvm-attestation/evidence"
	"github.com/google/go-tpm/legacy/tpm2"
	"github.com/google/go-tpm/tpmutil"
)

const ephemeralKeyBits = 2048

// The ephemeral key can only be used through a policy session satisfying
// PolicyPCR, so it has no userWithAuth.
const ephemeralKeyAttributes = tpm2.FlagDecrypt | tpm2.FlagFixedTPM | tpm2.FlagFixedParent |
	tpm2.FlagSensitiveDataOrigin | tpm2.FlagNoDA

var oaepScheme = &tpm2.AsymScheme{Alg: tpm2.AlgOAEP, Hash: tpm2.AlgSHA256}

func selectionKey(pcrs []int) string {
	return fmt.Sprint(pcrs)
}

// pcrPolicy computes the PolicyPCR digest of the current values of sel in a
// trial session.
func (t *TPM) pcrPolicy(sel tpm2.PCRSelection) ([]byte, error) {
	session, _, err := tpm2.StartAuthSession(t.rw, tpm2.HandleNull, tpm2.HandleNull,
		make([]byte, 16), nil, tpm2.SessionTrial, tpm2.AlgNull, tpm2.AlgSHA256)
	if err != nil {
		return nil, fmt.Errorf("failed to start trial session: %w", err)
	}
	defer tpm2.FlushContext(t.rw, session)

	if err := tpm2.PolicyPCR(t.rw, session, nil, sel); err != nil {
		return nil, fmt.Errorf("PolicyPCR failed: %w", err)
	}
	return tpm2.PolicyGetDigest(t.rw, session)
}

func ephemeralTemplate(policy []byte) tpm2.Public {
	return tpm2.Public{
		Type:       tpm2.AlgRSA,
		NameAlg:    tpm2.AlgSHA256,
		Attributes: ephemeralKeyAttributes,
		AuthPolicy: policy,
		RSAParameters: &tpm2.RSAParams{
			KeyBits: ephemeralKeyBits,
		},
	}
}

// createEphemeral creates the ephemeral key as a primary key of the null
// hierarchy. The null seed only changes on TPM reset, so the same template
// yields the same key for the lifetime of the boot.
func (t *TPM) createEphemeral(tmpl tpm2.Public) (tpmutil.Handle, []byte, error) {
	handle, public, _, _, _, _, err := tpm2.CreatePrimaryEx(t.rw, tpm2.HandleNull, tpm2.PCRSelection{}, "", "", tmpl)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create ephemeral key: %w", err)
	}
	return handle, public, nil
}

// EphemeralKey creates an RSA decryption key usable only while pcrs hold their
// current values, and certifies it with the AIK.
func (t *TPM) EphemeralKey(pcrs []int) (*evidence.EphemeralKey, error) {
	policy, err := t.pcrPolicy(tpm2.PCRSelection{Hash: PCRHashAlg, PCRs: pcrs})
	if err != nil {
		return nil, err
	}
	tmpl := ephemeralTemplate(policy)
	handle, public, err := t.createEphemeral(tmpl)
	if err != nil {
		return nil, err
	}
	defer tpm2.FlushContext(t.rw, handle)

	certifyInfo, sig, err := tpm2.Certify(t.rw, "", "", handle, t.aik, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to certify ephemeral key: %w", err)
	}
	t.ephemeral[selectionKey(pcrs)] = tmpl
	t.log.V(1).Infof("Created ephemeral key bound to PCRs %v", pcrs)
	return &evidence.EphemeralKey{
		Public:               public,
		CertifyInfo:          certifyInfo,
		CertifyInfoSignature: sig,
	}, nil
}

// DecryptWithEphemeralKey decrypts an RSA-OAEP-SHA256 ciphertext with the
// ephemeral key bound to pcrs. It fails when the PCRs no longer hold the
// values the key was bound to.
func (t *TPM) DecryptWithEphemeralKey(sealed []byte, pcrs []int) ([]byte, error) {
	sel := tpm2.PCRSelection{Hash: PCRHashAlg, PCRs: pcrs}
	tmpl, ok := t.ephemeral[selectionKey(pcrs)]
	if !ok {
		policy, err := t.pcrPolicy(sel)
		if err != nil {
			return nil, err
		}
		tmpl = ephemeralTemplate(policy)
	}
	handle, _, err := t.createEphemeral(tmpl)
	if err != nil {
		return nil, err
	}
	defer tpm2.FlushContext(t.rw, handle)

	session, _, err := tpm2.StartAuthSession(t.rw, tpm2.HandleNull, tpm2.HandleNull,
		make([]byte, 16), nil, tpm2.SessionPolicy, tpm2.AlgNull, tpm2.AlgSHA256)
	if err != nil {
		return nil, fmt.Errorf("failed to start policy session: %w", err)
	}
	defer tpm2.FlushContext(t.rw, session)

	if err := tpm2.PolicyPCR(t.rw, session, nil, sel); err != nil {
		return nil, fmt.Errorf("PolicyPCR failed: %w", err)
	}
	key, err := tpm2.RSADecryptWithSession(t.rw, session, handle, "", sealed, oaepScheme, "")
	if err != nil {
		return nil, fmt.Errorf("ephemeral key refused to decrypt: %w", err)
	}
	return key, nil
}
