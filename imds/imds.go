// Package imds is a client for the Azure Instance Metadata Service endpoints
// used during attestation: the AMD VCEK certificate cache (THIM) and the TD
// quoting service.
package imds

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tabi "github.com/google/go-tdx-guest/abi"
	"google.golang.org/protobuf/proto"
)

// DefaultURL is the link-local address of the metadata service.
const DefaultURL = "http://169.254.169.254"

const (
	vcekEndpoint    = "/metadata/THIM/amd/certification"
	tdQuoteEndpoint = "/acc/tdquote"

	// The metadata service rejects requests without this header.
	metadataHeader = "Metadata"

	defaultTimeout = 30 * time.Second
	maxErrorBody   = 4096
)

// StatusError is returned when the metadata service answers with a non-2xx
// status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("metadata service returned HTTP %d: %s", e.StatusCode, e.Body)
}

// Client talks to the metadata service.
type Client struct {
	inner   *http.Client
	baseURL string
}

// NewClient returns a client for the metadata service at baseURL (DefaultURL
// when empty). A nil httpClient selects a client with a 30s timeout. The
// metadata service must never be reached through a proxy.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   defaultTimeout,
			Transport: &http.Transport{Proxy: nil},
		}
	}
	return &Client{inner: httpClient, baseURL: strings.TrimSuffix(baseURL, "/")}
}

type vcekResponse struct {
	VcekCert         string `json:"vcekCert"`
	CertificateChain string `json:"certificateChain"`
	TcbM             string `json:"tcbm,omitempty"`
}

type tdQuoteRequest struct {
	Report string `json:"report"`
}

type tdQuoteResponse struct {
	Quote string `json:"quote"`
}

// VCEKCertificate returns the PEM encoded VCEK certificate of the host
// followed by its ASK and ARK chain.
func (c *Client) VCEKCertificate(ctx context.Context) ([]byte, error) {
	resp := vcekResponse{}
	if err := c.do(ctx, http.MethodGet, vcekEndpoint, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch VCEK certificate: %w", err)
	}
	if resp.VcekCert == "" {
		return nil, errors.New("metadata service returned an empty VCEK certificate")
	}
	return []byte(resp.VcekCert + resp.CertificateChain), nil
}

// TDQuote exchanges a base64url encoded TDREPORT for a base64url encoded TD
// quote.
func (c *Client) TDQuote(ctx context.Context, encodedReport string) (string, error) {
	resp := tdQuoteResponse{}
	if err := c.do(ctx, http.MethodPost, tdQuoteEndpoint, tdQuoteRequest{Report: encodedReport}, &resp); err != nil {
		return "", fmt.Errorf("failed to fetch TD quote: %w", err)
	}
	if resp.Quote == "" {
		return "", errors.New("metadata service returned an empty TD quote")
	}
	return resp.Quote, nil
}

// ParseTDQuote decodes a base64url encoded quote as returned by TDQuote into
// its protobuf representation.
func ParseTDQuote(encodedQuote string) (proto.Message, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(encodedQuote, "="))
	if err != nil {
		return nil, fmt.Errorf("quote is not base64url: %v", err)
	}
	quote, err := tabi.QuoteToProto(raw)
	if err != nil {
		return nil, err
	}
	msg, ok := quote.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("unsupported quote type %T", quote)
	}
	return msg, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, reqStruct, respStruct any) error {
	var body io.Reader
	if reqStruct != nil {
		data, err := json.Marshal(reqStruct)
		if err != nil {
			return fmt.Errorf("error marshaling request: %v", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set(metadataHeader, "true")
	if reqStruct != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.inner.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(msg)}
	}
	if err := json.NewDecoder(resp.Body).Decode(respStruct); err != nil {
		return fmt.Errorf("error unmarshaling response: %w", err)
	}
	return nil
}
