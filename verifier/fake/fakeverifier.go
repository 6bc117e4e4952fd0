// Package fake is a fake implementation of the verifier.Client interface for
// testing. It mints tokens signed by a test key and, for guest attestation,
// seals them the way the attestation service does.
package fake

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/go-cvm-attestation/envelope"
	"github.com/google/go-cvm-attestation/evidence"
	"github.com/google/go-cvm-attestation/verifier"
	"github.com/google/go-tpm/legacy/tpm2"
)

// Issuer is the issuer of every token minted by the fake.
const Issuer = "https://fake.attest.example.com"

const innerKeySize = 32

// Claims are the claims of a fake attestation token.
type Claims struct {
	jwt.RegisteredClaims
	AttestationType string `json:"x-attestation-type"`
	// RuntimeData echoes the runtime data of a platform attestation.
	RuntimeData string `json:"x-runtime-data,omitempty"`
	OSType      string `json:"x-os-type,omitempty"`
}

// Client is a fake verifier.Client. It records every request it receives.
type Client struct {
	signer crypto.Signer
	seal   func(*evidence.GuestRequest) (envelope.SealFunc, error)

	mu               sync.Mutex
	guestRequests    []*evidence.GuestRequest
	platformRequests []*evidence.PlatformEvidence
	err              error
}

// NewClient constructs a fake client. A nil signer selects TestPrivateKey.
// Inner keys of guest responses are sealed to the ephemeral key carried in
// the request's TPM evidence.
func NewClient(signer crypto.Signer) *Client {
	if signer == nil {
		signer = TestPrivateKey()
	}
	return &Client{signer: signer, seal: sealToEphemeralKey}
}

// WithSealFunc replaces the sealing of inner keys, for callers whose
// evidence carries no real ephemeral key.
func (c *Client) WithSealFunc(seal envelope.SealFunc) *Client {
	c.seal = func(*evidence.GuestRequest) (envelope.SealFunc, error) { return seal, nil }
	return c
}

// FailWith makes every subsequent request fail with err.
func (c *Client) FailWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// GuestRequests returns the guest requests received so far.
func (c *Client) GuestRequests() []*evidence.GuestRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*evidence.GuestRequest(nil), c.guestRequests...)
}

// PlatformRequests returns the platform requests received so far.
func (c *Client) PlatformRequests() []*evidence.PlatformEvidence {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*evidence.PlatformEvidence(nil), c.platformRequests...)
}

// Confirm that Client implements verifier.Client interface.
var _ verifier.Client = (*Client)(nil)

// AttestGuest returns a sealed token whose claims describe the guest.
func (c *Client) AttestGuest(_ context.Context, request *evidence.GuestRequest) (string, error) {
	c.mu.Lock()
	c.guestRequests = append(c.guestRequests, request)
	err := c.err
	c.mu.Unlock()
	if err != nil {
		return "", err
	}

	params, err := decodeGuestParams(request)
	if err != nil {
		return "", &verifier.ProviderError{StatusCode: 400, Body: err.Error()}
	}
	osType, _ := base64.StdEncoding.DecodeString(params.OSType)
	token, err := c.mint(Claims{AttestationType: "azurevm", OSType: string(osType)})
	if err != nil {
		return "", err
	}

	seal, err := c.seal(request)
	if err != nil {
		return "", &verifier.ProviderError{StatusCode: 400, Body: err.Error()}
	}
	innerKey := make([]byte, innerKeySize)
	if _, err := rand.Read(innerKey); err != nil {
		return "", err
	}
	return envelope.Seal(token, innerKey, seal)
}

// AttestPlatform returns a token echoing the request's runtime data.
func (c *Client) AttestPlatform(_ context.Context, ev *evidence.PlatformEvidence) (string, error) {
	c.mu.Lock()
	c.platformRequests = append(c.platformRequests, ev)
	err := c.err
	c.mu.Unlock()
	if err != nil {
		return "", err
	}
	if ev.HardwareEvidence == "" {
		return "", &verifier.ProviderError{StatusCode: 400, Body: "missing hardware evidence"}
	}
	return c.mint(Claims{AttestationType: "sevsnpvm", RuntimeData: ev.RuntimeData})
}

func (c *Client) mint(claims Claims) (string, error) {
	now := jwt.TimeFunc()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		IssuedAt:  &jwt.NumericDate{Time: now},
		NotBefore: &jwt.NumericDate{Time: now},
		ExpiresAt: &jwt.NumericDate{Time: now.Add(time.Hour)},
		Issuer:    Issuer,
	}
	var method jwt.SigningMethod = jwt.SigningMethodRS256
	if _, ok := c.signer.Public().(*rsa.PublicKey); !ok {
		method = jwt.SigningMethodES256
	}
	return jwt.NewWithClaims(method, claims).SignedString(c.signer)
}

type guestParams struct {
	OSType  string `json:"OSType"`
	TpmInfo struct {
		EncryptionKey struct {
			Public []byte `json:"Public"`
		} `json:"EncryptionKey"`
	} `json:"TpmInfo"`
}

func decodeGuestParams(request *evidence.GuestRequest) (*guestParams, error) {
	data, err := base64.RawURLEncoding.DecodeString(request.AttestationInfo)
	if err != nil {
		return nil, fmt.Errorf("AttestationInfo is not base64url: %v", err)
	}
	params := &guestParams{}
	if err := json.Unmarshal(data, params); err != nil {
		return nil, fmt.Errorf("AttestationInfo is not JSON: %v", err)
	}
	return params, nil
}

func sealToEphemeralKey(request *evidence.GuestRequest) (envelope.SealFunc, error) {
	params, err := decodeGuestParams(request)
	if err != nil {
		return nil, err
	}
	pub, err := tpm2.DecodePublic(params.TpmInfo.EncryptionKey.Public)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ephemeral key as TPMT_PUBLIC: %v", err)
	}
	key, err := pub.Key()
	if err != nil {
		return nil, fmt.Errorf("failed to convert TPMT_PUBLIC to crypto.PublicKey: %v", err)
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("ephemeral key is not an RSA key")
	}
	return func(innerKey []byte) ([]byte, error) {
		return rsa.EncryptOAEP(sha256.New(), rand.Reader, rsaKey, innerKey, nil)
	}, nil
}
