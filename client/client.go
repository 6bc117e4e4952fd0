// Package client runs Azure confidential VM attestations against Microsoft
// Azure Attestation or Intel Trust Authority.
//
// Platform attestation sends the hardware report of the HCL report (as a TD
// quote for TDX, or with the VCEK chain for SEV-SNP) and returns the
// service's token. Guest attestation additionally sends vTPM evidence and
// receives a token encrypted to a PCR-bound TPM key, which is decrypted
// locally.
//
// A Client serves one attestation at a time and must not be shared between
// concurrent requests.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-cvm-attestation/envelope"
	"github.com/google/go-cvm-attestation/evidence"
	"github.com/google/go-cvm-attestation/hcl"
	"github.com/google/go-cvm-attestation/imds"
	"github.com/google/go-cvm-attestation/internal/logging"
	"github.com/google/go-cvm-attestation/internal/osinfo"
	"github.com/google/go-cvm-attestation/verifier"
	"github.com/google/go-cvm-attestation/verifier/ita"
	"github.com/google/go-cvm-attestation/verifier/maa"
	"github.com/google/logger"
)

// Deps are the collaborators of a Client. TPM is required; the others
// default to the real implementations.
type Deps struct {
	TPM      TPM
	Metadata Metadata
	OS       OSInventory
	Log      MeasurementLog
	// Provider overrides the attestation service client derived from Params.
	Provider verifier.Client
	// HTTPClient is used for the default Metadata and Provider.
	HTTPClient *http.Client
	Logger     *logger.Logger
}

// Client performs attestations.
type Client struct {
	params    Params
	isolation isolationStrategy
	tpm       TPM
	metadata  Metadata
	os        OSInventory
	log       MeasurementLog
	provider  verifier.Client
	logger    *logger.Logger

	state State
}

func configError(err error) error {
	return &Error{Kind: KindConfiguration, State: StateIdle, Err: err}
}

// New validates params and returns a Client. Invalid configuration is
// reported as KindConfiguration.
func New(params Params, deps Deps) (*Client, error) {
	if !params.IsolationType.Valid() {
		return nil, configError(fmt.Errorf("invalid isolation type %v", params.IsolationType))
	}
	if !params.Verifier.Valid() {
		return nil, configError(fmt.Errorf("invalid verifier %v", params.Verifier))
	}
	if deps.TPM == nil {
		return nil, configError(errors.New("a TPM is required"))
	}
	isolation, err := newIsolationStrategy(params.IsolationType)
	if err != nil {
		return nil, configError(err)
	}

	provider := deps.Provider
	if provider == nil {
		switch params.Verifier {
		case verifier.MAA:
			provider, err = maa.NewClient(params.Endpoint, params.IsolationType, deps.HTTPClient)
		case verifier.ITA:
			provider, err = ita.NewClient(params.Endpoint, params.APIKey, deps.HTTPClient)
		}
		if err != nil {
			return nil, configError(err)
		}
	}

	params.Claims = append([]byte(nil), params.Claims...)
	c := &Client{
		params:    params,
		isolation: isolation,
		tpm:       deps.TPM,
		metadata:  deps.Metadata,
		os:        deps.OS,
		log:       deps.Log,
		provider:  provider,
		logger:    logging.OrDiscard(deps.Logger),
	}
	if c.metadata == nil {
		c.metadata = imds.NewClient("", deps.HTTPClient)
	}
	if c.os == nil || c.log == nil {
		collector := &osinfo.Collector{Logger: deps.Logger}
		if c.os == nil {
			c.os = collector
		}
		if c.log == nil {
			c.log = collector
		}
	}
	return c, nil
}

// State returns the state of the current or most recent attestation.
func (c *Client) State() State {
	return c.state
}

func (c *Client) fail(kind Kind, err error) error {
	cerr := &Error{Kind: kind, State: c.state, Err: err}
	c.state = StateFailed
	c.logger.Errorf("Attestation failed: %v", cerr)
	return cerr
}

// hclReport fetches and parses the HCL report and checks that it carries the
// hardware report of the configured isolation type.
func (c *Client) hclReport() (*hcl.Report, error) {
	raw, err := c.tpm.HCLReport(c.params.Claims)
	if err != nil {
		return nil, c.fail(KindHardwareCollaborator, err)
	}
	report, err := hcl.Extract(raw)
	if err != nil {
		return nil, c.fail(KindEvidenceExtraction, err)
	}
	if report.Type != c.isolation.reportType() {
		return nil, c.fail(KindEvidenceExtraction, fmt.Errorf("%w: report type %q (tag %d) with isolation type %v",
			hcl.ErrUnknownReportType, report.Type, report.RawType, c.params.IsolationType))
	}
	c.logger.Infof("Extracted %v hardware report and %d bytes of runtime data", report.Type, len(report.RuntimeData))
	return report, nil
}

// HardwareEvidence collects the platform evidence without contacting the
// attestation service.
func (c *Client) HardwareEvidence(ctx context.Context) (*evidence.PlatformEvidence, error) {
	c.state = StateCollectingEvidence
	ev, err := c.hardwareEvidence(ctx)
	if err != nil {
		return nil, err
	}
	c.state = StateDone
	return ev, nil
}

func (c *Client) hardwareEvidence(ctx context.Context) (*evidence.PlatformEvidence, error) {
	report, err := c.hclReport()
	if err != nil {
		return nil, err
	}
	ev, err := c.isolation.platformEvidence(ctx, c.metadata, report)
	if err != nil {
		return nil, c.fail(KindHardwareCollaborator, err)
	}
	return ev, nil
}

// AttestPlatform attests the hardware report and returns the service's token
// unmodified.
func (c *Client) AttestPlatform(ctx context.Context) (string, error) {
	c.logger.Info("Attesting platform evidence...")
	c.state = StateCollectingEvidence
	ev, err := c.hardwareEvidence(ctx)
	if err != nil {
		return "", err
	}

	c.state = StateAwaitingProviderResponse
	token, err := c.provider.AttestPlatform(ctx, ev)
	if err != nil {
		return "", c.fail(KindProviderCommunication, err)
	}
	c.state = StateDone
	return token, nil
}

// AttestGuest attests the hardware report together with the vTPM evidence
// and returns the decrypted token.
func (c *Client) AttestGuest(ctx context.Context) (string, error) {
	c.logger.Info("Attesting guest evidence...")
	c.state = StateCollectingEvidence
	params, err := c.guestEvidence(ctx)
	if err != nil {
		return "", err
	}
	request, err := evidence.NewGuestRequest(params)
	if err != nil {
		return "", c.fail(KindEvidenceExtraction, err)
	}

	c.state = StateAwaitingProviderResponse
	raw, err := c.provider.AttestGuest(ctx, request)
	if err != nil {
		return "", c.fail(KindProviderCommunication, err)
	}

	c.state = StateDecodingResponse
	c.logger.Info("Decrypting token...")
	token, err := envelope.Open(raw, params.TPM.PCRs, c.tpm.DecryptWithEphemeralKey)
	if err != nil {
		return "", c.fail(envelopeKind(err), err)
	}
	c.state = StateDone
	c.logger.Info("Decrypted token successfully")
	return token, nil
}

func envelopeKind(err error) Kind {
	switch {
	case errors.Is(err, envelope.ErrUnseal):
		return KindUnseal
	case errors.Is(err, envelope.ErrAuthentication):
		return KindAuthentication
	case errors.Is(err, envelope.ErrEncoding):
		return KindEncodingMismatch
	default:
		return KindEnvelopeDecode
	}
}

func (c *Client) guestEvidence(ctx context.Context) (*evidence.GuestParams, error) {
	report, err := c.hclReport()
	if err != nil {
		return nil, err
	}
	chain, err := c.isolation.certChain(ctx, c.metadata)
	if err != nil {
		return nil, c.fail(KindHardwareCollaborator, err)
	}

	osInfo, err := c.os.OSInfo()
	if err != nil {
		return nil, c.fail(KindHardwareCollaborator, err)
	}
	pcrs := osInfo.PCRs
	if len(pcrs) == 0 {
		if pcrs, err = osinfo.PCRsFor(osInfo.Type); err != nil {
			return nil, c.fail(KindHardwareCollaborator, err)
		}
	}

	tpmInfo, err := c.tpmEvidence(pcrs)
	if err != nil {
		return nil, c.fail(KindHardwareCollaborator, err)
	}
	tcgLogs, err := c.log.MeasurementLog(osInfo.Type)
	if err != nil {
		return nil, c.fail(KindHardwareCollaborator, err)
	}

	return &evidence.GuestParams{
		OS:      osInfo,
		TcgLogs: tcgLogs,
		TPM:     *tpmInfo,
		Isolation: evidence.IsolationInfo{
			Type:           c.params.IsolationType,
			HardwareReport: report.HardwareReport,
			RuntimeData:    report.RuntimeData,
			CertChain:      chain,
		},
	}, nil
}

func (c *Client) tpmEvidence(pcrs []int) (*evidence.TPMInfo, error) {
	info := &evidence.TPMInfo{PCRs: pcrs}
	var err error
	if info.AIKCert, err = c.tpm.AIKCert(); err != nil {
		return nil, err
	}
	if info.AIKPub, err = c.tpm.AIKPub(); err != nil {
		return nil, err
	}
	if info.PCRQuote, info.PCRSignature, err = c.tpm.PCRQuote(pcrs); err != nil {
		return nil, err
	}
	if info.PCRValues, err = c.tpm.PCRValues(pcrs); err != nil {
		return nil, err
	}
	key, err := c.tpm.EphemeralKey(pcrs)
	if err != nil {
		return nil, err
	}
	info.EphemeralKey = *key
	return info, nil
}
