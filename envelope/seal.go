package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// SealFunc seals the inner key to the guest's ephemeral key.
type SealFunc func(innerKey []byte) ([]byte, error)

// Seal produces a raw response in the format the attestation service returns.
// It is the inverse of Open and is used by fake backends.
func Seal(token string, innerKey []byte, seal SealFunc) (string, error) {
	block, err := aes.NewCipher(innerKey)
	if err != nil {
		return "", err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	iv := make([]byte, aead.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("failed to generate IV: %w", err)
	}
	sealedKey, err := seal(innerKey)
	if err != nil {
		return "", fmt.Errorf("failed to seal inner key: %w", err)
	}
	return encode(aead.Seal(nil, iv, []byte(token), AssociatedData), iv, sealedKey, aead.Overhead())
}

func encode(sealed, iv, sealedKey []byte, overhead int) (string, error) {
	ciphertext, tag := sealed[:len(sealed)-overhead], sealed[len(sealed)-overhead:]
	std := func(b []byte) *string {
		s := base64.StdEncoding.EncodeToString(b)
		return &s
	}
	data, err := json.Marshal(responseJSON{
		EncryptedInnerKey:  std(sealedKey),
		EncryptionParams:   encryptionParams{Iv: std(iv)},
		AuthenticationData: std(tag),
		Jwt:                std(ciphertext),
	})
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}
