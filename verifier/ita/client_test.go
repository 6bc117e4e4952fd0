package ita

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cvm-attestation/evidence"
	"github.com/google/go-cvm-attestation/verifier"
)

const testAPIKey = "test-api-key"

var testPlatformEvidence = &evidence.PlatformEvidence{
	HardwareEvidence: "dGVzdC1xdW90ZQ",
	RuntimeData:      "eyJrZXlzIjpbXX0",
}

func validateHTTPRequest(t *testing.T, r *http.Request, expectedMethod string, expectedHeaders map[string]string, expectedPath string) {
	// Verify HTTP Method.
	if r.Method != expectedMethod {
		t.Errorf("HTTP request does not have expected method: got %v, want %v", r.Method, expectedMethod)
	}

	// Verify HTTP headers.
	for key, val := range expectedHeaders {
		if r.Header.Get(key) != val {
			t.Errorf("HTTP request does not have expected %s header: got %s, want %s", key, r.Header.Get(key), val)
		}
	}

	// Verify requested path.
	if expectedPath != "" && r.URL.Path != expectedPath {
		t.Errorf("HTTP request does not have expected endpoint: got %v, want %v", r.URL.Path, expectedPath)
	}
}

var expectedHeaders = map[string]string{
	apiKeyHeader:   testAPIKey,
	"Accept":       "application/json",
	"Content-Type": "application/json",
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient("", "", nil); err == nil {
		t.Error("NewClient() without API key succeeded, want error")
	}
}

func TestNewClientDefaultURL(t *testing.T) {
	c, err := NewClient("", testAPIKey, nil)
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}
	if got := c.(*client).apiURL; got != DefaultURL {
		t.Errorf("NewClient() apiURL = %q, want %q", got, DefaultURL)
	}
}

func TestAttestPlatform(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		validateHTTPRequest(t, r, http.MethodPost, expectedHeaders, tokenEndpoint)

		// Verify HTTP Request body.
		defer r.Body.Close()
		reqBody, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("Error reading HTTP request body: %s", err)
		}
		req := tokenRequest{}
		if err = json.Unmarshal(reqBody, &req); err != nil {
			t.Fatalf("Error unmarshaling HTTP request body: %s", err)
		}
		want := tokenRequest{Quote: testPlatformEvidence.HardwareEvidence, RuntimeData: testPlatformEvidence.RuntimeData}
		if diff := cmp.Diff(want, req); diff != "" {
			t.Errorf("Incorrect request received by server: %v", diff)
		}

		json.NewEncoder(w).Encode(verifier.TokenResponse{Token: "test-ita-token"})
	}))
	defer ts.Close()

	c, err := NewClient(ts.URL+"/", testAPIKey, http.DefaultClient)
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}
	token, err := c.AttestPlatform(context.Background(), testPlatformEvidence)
	if err != nil {
		t.Fatalf("AttestPlatform() returned error: %v", err)
	}
	if token != "test-ita-token" {
		t.Errorf("AttestPlatform() = %q, want %q", token, "test-ita-token")
	}
}

func TestAttestGuest(t *testing.T) {
	request := &evidence.GuestRequest{AttestationInfo: "eyJBdHRlc3RhdGlvblByb3RvY29sVmVyc2lvbiI6IjIuMCJ9"}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		validateHTTPRequest(t, r, http.MethodPost, expectedHeaders, tokenEndpoint)

		defer r.Body.Close()
		got := evidence.GuestRequest{}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("Error unmarshaling HTTP request body: %s", err)
		}
		if diff := cmp.Diff(*request, got); diff != "" {
			t.Errorf("Incorrect request received by server: %v", diff)
		}

		json.NewEncoder(w).Encode(verifier.TokenResponse{Token: "encrypted-response"})
	}))
	defer ts.Close()

	c, err := NewClient(ts.URL, testAPIKey, http.DefaultClient)
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}
	got, err := c.AttestGuest(context.Background(), request)
	if err != nil {
		t.Fatalf("AttestGuest() returned error: %v", err)
	}
	if got != "encrypted-response" {
		t.Errorf("AttestGuest() = %q, want %q", got, "encrypted-response")
	}
}

func TestAttestPlatformUnauthorized(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer ts.Close()

	c, err := NewClient(ts.URL, "wrong-key", http.DefaultClient)
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}
	_, err = c.AttestPlatform(context.Background(), testPlatformEvidence)
	var perr *verifier.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("AttestPlatform() got err %v, want a *verifier.ProviderError", err)
	}
	if perr.StatusCode != http.StatusUnauthorized {
		t.Errorf("ProviderError.StatusCode = %d, want %d", perr.StatusCode, http.StatusUnauthorized)
	}
	if perr.Body != "invalid api key\n" {
		t.Errorf("ProviderError.Body = %q, want the service's error body", perr.Body)
	}
}

func TestAttestWithoutToken(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		validateHTTPRequest(t, r, http.MethodPost, expectedHeaders, tokenEndpoint)
		w.Write([]byte(`{"error":"policy evaluation pending"}`))
	}))
	defer ts.Close()

	c, err := NewClient(ts.URL, testAPIKey, http.DefaultClient)
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}
	got, err := c.AttestPlatform(context.Background(), testPlatformEvidence)
	var perr *verifier.ProviderError
	if !errors.As(err, &perr) || !errors.Is(err, verifier.ErrNoToken) {
		t.Fatalf("AttestPlatform() = %q, %v, want a *verifier.ProviderError wrapping %v", got, err, verifier.ErrNoToken)
	}
	if perr.StatusCode != http.StatusOK {
		t.Errorf("ProviderError.StatusCode = %d, want %d", perr.StatusCode, http.StatusOK)
	}
	if got, err := c.AttestGuest(context.Background(), &evidence.GuestRequest{AttestationInfo: "e30"}); !errors.Is(err, verifier.ErrNoToken) {
		t.Errorf("AttestGuest() = %q, %v, want error %v", got, err, verifier.ErrNoToken)
	}
}
