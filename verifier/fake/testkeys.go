package fake

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
)

var testPrivateKey *rsa.PrivateKey

func init() {
	var err error
	testPrivateKey, err = rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(fmt.Sprintf("failed to generate fake signing key: %v", err))
	}
}

// TestPrivateKey returns the fake private key used for signing.
func TestPrivateKey() crypto.Signer {
	return testPrivateKey
}

// TestPublicKey returns the public key corresponding to the fake private key.
func TestPublicKey() crypto.PublicKey {
	return &testPrivateKey.PublicKey
}
