package ita

// tokenRequest carries base64url encoded hardware evidence.
type tokenRequest struct {
	Quote       string `json:"quote"`
	RuntimeData string `json:"runtime_data"`
}
