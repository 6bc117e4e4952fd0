package imds

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc(vcekEndpoint, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("got method %s, want GET", r.Method)
		}
		if r.Header.Get("Metadata") != "true" {
			http.Error(w, "missing Metadata header", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(vcekResponse{VcekCert: "VCEK\n", CertificateChain: "ASK\nARK\n"})
	})
	mux.HandleFunc(tdQuoteEndpoint, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("got method %s, want POST", r.Method)
		}
		req := tdQuoteRequest{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Report == "" {
			http.Error(w, "empty report", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(tdQuoteResponse{Quote: "quote-for-" + req.Report})
	})
	return httptest.NewServer(mux)
}

func TestVCEKCertificate(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	got, err := NewClient(ts.URL, ts.Client()).VCEKCertificate(context.Background())
	if err != nil {
		t.Fatalf("VCEKCertificate() failed: %v", err)
	}
	if diff := cmp.Diff("VCEK\nASK\nARK\n", string(got)); diff != "" {
		t.Errorf("VCEKCertificate() mismatch (-want +got):\n%s", diff)
	}
}

func TestTDQuote(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	got, err := NewClient(ts.URL+"/", ts.Client()).TDQuote(context.Background(), "cmVwb3J0")
	if err != nil {
		t.Fatalf("TDQuote() failed: %v", err)
	}
	if got != "quote-for-cmVwb3J0" {
		t.Errorf("TDQuote() = %q, want %q", got, "quote-for-cmVwb3J0")
	}
}

func TestTDQuoteStatusError(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	_, err := NewClient(ts.URL, ts.Client()).TDQuote(context.Background(), "")
	var serr *StatusError
	if !errors.As(err, &serr) {
		t.Fatalf("TDQuote() got err %v, want a *StatusError", err)
	}
	if serr.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusError.StatusCode = %d, want %d", serr.StatusCode, http.StatusBadRequest)
	}
}

func TestParseTDQuoteRejectsGarbage(t *testing.T) {
	for _, quote := range []string{"!!!", "AAAA"} {
		if _, err := ParseTDQuote(quote); err == nil {
			t.Errorf("ParseTDQuote(%q) succeeded, want error", quote)
		}
	}
}
