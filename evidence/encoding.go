package evidence

import "encoding/base64"

// Every byte field that crosses the wire goes through one of these. Standard
// base64 keeps its padding; base64url never carries it.
var (
	stdEncoding = base64.StdEncoding
	urlEncoding = base64.RawURLEncoding
)

// EncodeBase64 returns the padded standard base64 encoding of b.
func EncodeBase64(b []byte) string {
	return stdEncoding.EncodeToString(b)
}

// EncodeBase64URL returns the unpadded base64url encoding of b.
func EncodeBase64URL(b []byte) string {
	return urlEncoding.EncodeToString(b)
}
