package client

import (
	"errors"
	"fmt"
)

// Kind classifies attestation failures.
type Kind int

// Failure kinds.
const (
	KindUnknown Kind = iota
	// KindConfiguration is an invalid isolation type, verifier or
	// credential. It is only returned by New.
	KindConfiguration
	// KindEvidenceExtraction is a malformed HCL report or one whose hardware
	// report does not match the configured isolation type.
	KindEvidenceExtraction
	// KindHardwareCollaborator is a failure of the TPM, the metadata service
	// or the OS inventory.
	KindHardwareCollaborator
	// KindProviderCommunication is a transport failure or non-2xx status from
	// the attestation service. The cause is a *verifier.ProviderError.
	KindProviderCommunication
	// KindEnvelopeDecode is a response that is not the expected
	// base64url/JSON/base64 structure.
	KindEnvelopeDecode
	// KindUnseal means the TPM refused to release the inner key, typically
	// because the PCRs changed since the evidence was collected.
	KindUnseal
	// KindAuthentication means the token failed AES-GCM authentication.
	KindAuthentication
	// KindEncodingMismatch means the token authenticated but is not UTF-8.
	KindEncodingMismatch
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "ConfigurationError"
	case KindEvidenceExtraction:
		return "EvidenceExtractionError"
	case KindHardwareCollaborator:
		return "HardwareCollaboratorError"
	case KindProviderCommunication:
		return "ProviderCommunicationError"
	case KindEnvelopeDecode:
		return "EnvelopeDecodeError"
	case KindUnseal:
		return "UnsealError"
	case KindAuthentication:
		return "AuthenticationFailure"
	case KindEncodingMismatch:
		return "EncodingMismatchError"
	default:
		return "UnknownError"
	}
}

// Error is returned by every Client operation.
type Error struct {
	Kind Kind
	// State is the state the attestation was in when it failed.
	State State
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v while %v: %v", e.Kind, e.State, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or KindUnknown if err is not an *Error.
func KindOf(err error) Kind {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Kind
	}
	return KindUnknown
}
