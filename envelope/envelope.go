// Package envelope unwraps the encrypted token returned by the attestation
// service for a guest attestation.
//
// The service encrypts the token with AES-GCM under a fresh inner key and
// seals that key to the ephemeral TPM key sent with the evidence. Only a TPM
// whose PCRs still match the attested state can unseal the inner key.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// AssociatedData is authenticated along with the token ciphertext.
var AssociatedData = []byte("Transport Key")

const (
	nonceSize = 12
	tagSize   = 16
)

var (
	// ErrDecode is returned for responses that are not well-formed.
	ErrDecode = errors.New("malformed attestation response")
	// ErrUnseal is returned when the TPM refuses to release the inner key,
	// typically because the PCRs no longer match the attested state.
	ErrUnseal = errors.New("failed to unseal inner key")
	// ErrAuthentication is returned when the token fails GCM authentication.
	ErrAuthentication = errors.New("token authentication failed")
	// ErrEncoding is returned when an authenticated token is not UTF-8 text.
	ErrEncoding = errors.New("decrypted token is not valid UTF-8")
)

// UnsealFunc recovers the inner key sealed to the ephemeral key bound to pcrs.
type UnsealFunc func(sealedKey []byte, pcrs []int) ([]byte, error)

// Response is a decoded attestation service response.
type Response struct {
	EncryptedInnerKey []byte
	IV                []byte
	// AuthenticationData is the GCM tag of the token ciphertext.
	AuthenticationData []byte
	// Jwt is the token ciphertext, without its tag.
	Jwt []byte
}

type encryptionParams struct {
	Iv *string `json:"Iv"`
}

// responseJSON mirrors the service response. Every field is base64 text and
// must be present; an empty token has an empty, not absent, Jwt.
type responseJSON struct {
	EncryptedInnerKey  *string          `json:"EncryptedInnerKey"`
	EncryptionParams   encryptionParams `json:"EncryptionParams"`
	AuthenticationData *string          `json:"AuthenticationData"`
	Jwt                *string          `json:"Jwt"`
}

// decodeBase64 accepts both padded and unpadded input.
func decodeBase64(enc *base64.Encoding, s string) ([]byte, error) {
	return enc.WithPadding(base64.NoPadding).DecodeString(strings.TrimRight(s, "="))
}

func decodeField(name string, value *string) ([]byte, error) {
	if value == nil {
		return nil, fmt.Errorf("%w: missing %s", ErrDecode, name)
	}
	b, err := decodeBase64(base64.StdEncoding, *value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not base64: %w", ErrDecode, name, err)
	}
	return b, nil
}

// Decode parses a raw service response: base64url text wrapping a JSON object
// whose string fields are base64 in turn.
func Decode(raw string) (*Response, error) {
	data, err := decodeBase64(base64.URLEncoding, strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: response is not base64url: %w", ErrDecode, err)
	}
	var r responseJSON
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: response is not JSON: %w", ErrDecode, err)
	}

	resp := &Response{}
	if resp.EncryptedInnerKey, err = decodeField("EncryptedInnerKey", r.EncryptedInnerKey); err != nil {
		return nil, err
	}
	if resp.IV, err = decodeField("EncryptionParams.Iv", r.EncryptionParams.Iv); err != nil {
		return nil, err
	}
	if resp.AuthenticationData, err = decodeField("AuthenticationData", r.AuthenticationData); err != nil {
		return nil, err
	}
	if resp.Jwt, err = decodeField("Jwt", r.Jwt); err != nil {
		return nil, err
	}

	if len(resp.IV) != nonceSize {
		return nil, fmt.Errorf("%w: IV is %d bytes, want %d", ErrDecode, len(resp.IV), nonceSize)
	}
	if len(resp.AuthenticationData) != tagSize {
		return nil, fmt.Errorf("%w: authentication data is %d bytes, want %d", ErrDecode, len(resp.AuthenticationData), tagSize)
	}
	return resp, nil
}

// Decrypt authenticates and decrypts the token with the unsealed inner key.
// No plaintext is returned unless authentication succeeds.
func (r *Response) Decrypt(innerKey []byte) (string, error) {
	block, err := aes.NewCipher(innerKey)
	if err != nil {
		return "", fmt.Errorf("%w: unusable inner key: %w", ErrAuthentication, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	if len(r.IV) != aead.NonceSize() {
		return "", fmt.Errorf("%w: IV is %d bytes, want %d", ErrDecode, len(r.IV), aead.NonceSize())
	}

	// The tag travels separately; GCM expects it appended to the ciphertext.
	sealed := make([]byte, 0, len(r.Jwt)+len(r.AuthenticationData))
	sealed = append(sealed, r.Jwt...)
	sealed = append(sealed, r.AuthenticationData...)

	plaintext, err := aead.Open(nil, r.IV, sealed, AssociatedData)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	if !utf8.Valid(plaintext) {
		return "", ErrEncoding
	}
	return string(plaintext), nil
}

// Open decodes a raw service response, unseals its inner key and decrypts the
// token.
func Open(raw string, pcrs []int, unseal UnsealFunc) (string, error) {
	resp, err := Decode(raw)
	if err != nil {
		return "", err
	}
	innerKey, err := unseal(resp.EncryptedInnerKey, pcrs)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnseal, err)
	}
	defer clear(innerKey)
	return resp.Decrypt(innerKey)
}
