package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cvm-attestation/verifier"
)

type testResponse struct {
	Token string `json:"token"`
}

func TestDo(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Test") != "value" {
			t.Errorf("X-Test header = %q, want %q", r.Header.Get("X-Test"), "value")
		}
		w.Write([]byte(`{"token":"abc"}`))
	}))
	defer ts.Close()

	resp := &testResponse{}
	if err := Do(context.Background(), http.DefaultClient, http.MethodPost, ts.URL, map[string]string{"a": "b"}, map[string]string{"X-Test": "value"}, resp); err != nil {
		t.Fatalf("Do() failed: %v", err)
	}
	if resp.Token != "abc" {
		t.Errorf("Do() token = %q, want %q", resp.Token, "abc")
	}
}

func TestDoErrors(t *testing.T) {
	for _, tc := range []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
	}{
		{
			name:       "server error",
			handler:    func(w http.ResponseWriter, r *http.Request) { http.Error(w, "boom", http.StatusInternalServerError) },
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "bad request",
			handler:    func(w http.ResponseWriter, r *http.Request) { http.Error(w, "bad evidence", http.StatusBadRequest) },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "not JSON",
			handler:    func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("<html>")) },
			wantStatus: http.StatusOK,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ts := httptest.NewServer(tc.handler)
			defer ts.Close()

			err := Do(context.Background(), http.DefaultClient, http.MethodPost, ts.URL, nil, nil, &testResponse{})
			var perr *verifier.ProviderError
			if !errors.As(err, &perr) {
				t.Fatalf("Do() got err %v, want a *verifier.ProviderError", err)
			}
			if perr.StatusCode != tc.wantStatus {
				t.Errorf("ProviderError.StatusCode = %d, want %d", perr.StatusCode, tc.wantStatus)
			}
		})
	}
}

func TestDoUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	err := Do(context.Background(), http.DefaultClient, http.MethodGet, url, nil, nil, &testResponse{})
	var perr *verifier.ProviderError
	if !errors.As(err, &perr) || perr.Err == nil {
		t.Errorf("Do() against a closed server got err %v, want a transport ProviderError", err)
	}
}

func TestPostToken(t *testing.T) {
	for _, tc := range []struct {
		name      string
		body      string
		want      string
		wantNoTok bool
	}{
		{name: "token", body: `{"token":"abc"}`, want: "abc"},
		{name: "error body", body: `{"error":"policy evaluation pending"}`, wantNoTok: true},
		{name: "empty token", body: `{"token":""}`, wantNoTok: true},
		{name: "empty object", body: `{}`, wantNoTok: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("got method %s, want POST", r.Method)
				}
				w.Write([]byte(tc.body))
			}))
			defer ts.Close()

			got, err := PostToken(context.Background(), http.DefaultClient, ts.URL, map[string]string{"a": "b"}, nil)
			if !tc.wantNoTok {
				if err != nil {
					t.Fatalf("PostToken() failed: %v", err)
				}
				if got != tc.want {
					t.Errorf("PostToken() = %q, want %q", got, tc.want)
				}
				return
			}
			if got != "" {
				t.Errorf("PostToken() = %q, want no token", got)
			}
			var perr *verifier.ProviderError
			if !errors.As(err, &perr) || !errors.Is(err, verifier.ErrNoToken) {
				t.Fatalf("PostToken() got err %v, want a *verifier.ProviderError wrapping %v", err, verifier.ErrNoToken)
			}
			if perr.Body != tc.body {
				t.Errorf("ProviderError.Body = %q, want %q", perr.Body, tc.body)
			}
		})
	}
}
