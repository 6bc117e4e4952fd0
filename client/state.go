package client

// State is the progress of an attestation.
type State int

// Attestation states. Failed is reachable from every other state except
// Done.
const (
	StateIdle State = iota
	StateCollectingEvidence
	StateAwaitingProviderResponse
	StateDecodingResponse
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateCollectingEvidence:
		return "CollectingEvidence"
	case StateAwaitingProviderResponse:
		return "AwaitingProviderResponse"
	case StateDecodingResponse:
		return "DecodingResponse"
	case StateDone:
		return "Done"
	case StateFailed:
		return "Failed"
	default:
		return "Invalid"
	}
}
