// Package transport performs the JSON over HTTPS exchanges shared by the
// attestation service clients.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/go-cvm-attestation/verifier"
)

// Common header names and values.
const (
	AcceptHeader      = "Accept"
	ContentTypeHeader = "Content-Type"
	ApplicationJSON   = "application/json"
)

// maxErrorBody bounds how much of an error response is kept for diagnostics.
const maxErrorBody = 4096

// NewHTTPClient returns the HTTP client used when the caller provides none.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
			Proxy:           http.ProxyFromEnvironment,
		},
	}
}

// Do sends reqStruct as JSON and unmarshals the JSON response into
// respStruct. Transport failures and non-2xx statuses are returned as
// *verifier.ProviderError.
func Do(ctx context.Context, client *http.Client, method string, url string, reqStruct any, headers map[string]string, respStruct any) error {
	var body io.Reader
	if reqStruct != nil {
		data, err := json.Marshal(reqStruct)
		if err != nil {
			return fmt.Errorf("error marshaling request: %v", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return &verifier.ProviderError{Err: fmt.Errorf("error creating HTTP request: %w", err)}
	}
	for key, val := range headers {
		req.Header.Add(key, val)
	}

	resp, err := client.Do(req)
	if err != nil {
		return &verifier.ProviderError{Err: fmt.Errorf("HTTP request error: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &verifier.ProviderError{StatusCode: resp.StatusCode, Body: string(msg)}
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &verifier.ProviderError{StatusCode: resp.StatusCode, Err: fmt.Errorf("error reading response body: %w", err)}
	}
	if err := json.Unmarshal(respBody, respStruct); err != nil {
		return &verifier.ProviderError{StatusCode: resp.StatusCode, Body: string(respBody), Err: fmt.Errorf("error unmarshaling response: %w", err)}
	}
	return nil
}

// PostToken posts reqStruct to url and returns the token of the response. A
// success response without a token is a *verifier.ProviderError wrapping
// verifier.ErrNoToken.
func PostToken(ctx context.Context, client *http.Client, url string, reqStruct any, headers map[string]string) (string, error) {
	var body json.RawMessage
	if err := Do(ctx, client, http.MethodPost, url, reqStruct, headers, &body); err != nil {
		return "", err
	}
	resp := &verifier.TokenResponse{}
	if err := json.Unmarshal(body, resp); err != nil {
		return "", &verifier.ProviderError{StatusCode: http.StatusOK, Body: truncate(body), Err: fmt.Errorf("error unmarshaling response: %w", err)}
	}
	if resp.Token == "" {
		return "", &verifier.ProviderError{StatusCode: http.StatusOK, Body: truncate(body), Err: verifier.ErrNoToken}
	}
	return resp.Token, nil
}

func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return string(body)
}
