package wire

import (
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"strings"
)

// websocketGUID is the fixed key-derivation constant from RFC 6455. The
// accept token must match it byte for byte across implementations.
const websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// ErrMissingKey signals an upgrade request without a Sec-WebSocket-Key header.
var ErrMissingKey = errors.New("wire: missing Sec-WebSocket-Key header")

// Negotiate scans a raw HTTP upgrade request for the client's key and derives
// the accept token for the 101 response.
func Negotiate(rawRequest []byte) (string, error) {
	key := HeaderValue(rawRequest, "Sec-WebSocket-Key")
	if key == "" {
		return "", ErrMissingKey
	}
	return AcceptToken(key), nil
}

// AcceptToken computes base64(SHA-1(key + GUID)) for a client-supplied key.
func AcceptToken(key string) string {
	sum := sha1.Sum([]byte(key + websocketGUID))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// HeaderValue extracts the value of the named header from a raw HTTP request.
// Header names are matched case-insensitively; the request is scanned as
// CRLF-delimited lines. Returns "" when the header is absent.
func HeaderValue(rawRequest []byte, name string) string {
	prefix := strings.ToLower(name) + ":"
	for _, line := range strings.Split(string(rawRequest), "\r\n") {
		if line == "" {
			// End of the header block.
			break
		}
		if len(line) <= len(prefix) {
			continue
		}
		if strings.ToLower(line[:len(prefix)]) == prefix {
			return strings.TrimSpace(line[len(prefix):])
		}
	}
	return ""
}

// HandshakeResponse renders the fixed 101 Switching Protocols response for a
// computed accept token, terminated by an empty line.
func HandshakeResponse(acceptToken string) []byte {
	return []byte("HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + acceptToken + "\r\n" +
		"\r\n")
}
