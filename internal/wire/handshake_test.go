package wire

import (
	"strings"
	"testing"
)

const sampleRequest = "GET /chat HTTP/1.1\r\n" +
	"Host: server.example.com\r\n" +
	"Upgrade: websocket\r\n" +
	"Connection: Upgrade\r\n" +
	"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
	"Origin: http://example.com\r\n" +
	"Sec-WebSocket-Version: 13\r\n" +
	"\r\n"

// TestAcceptToken checks the key derivation against the worked example in
// RFC 6455 section 1.3.
func TestAcceptToken(t *testing.T) {
	got := AcceptToken("dGhlIHNhbXBsZSBub25jZQ==")
	want := "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="
	if got != want {
		t.Errorf("AcceptToken = %q, want %q", got, want)
	}
}

// TestNegotiate verifies key extraction and token derivation from a full
// upgrade request.
func TestNegotiate(t *testing.T) {
	token, err := Negotiate([]byte(sampleRequest))
	if err != nil {
		t.Fatalf("Negotiate failed: %v", err)
	}
	if token != "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=" {
		t.Errorf("Token %q, want the RFC sample accept value", token)
	}
}

// TestNegotiateMissingKey verifies that a request without the key header is
// rejected with ErrMissingKey.
func TestNegotiateMissingKey(t *testing.T) {
	request := "GET /chat HTTP/1.1\r\nHost: server.example.com\r\n\r\n"
	if _, err := Negotiate([]byte(request)); err != ErrMissingKey {
		t.Errorf("Error %v, want ErrMissingKey", err)
	}
}

// TestHeaderValue covers case-insensitive lookup, whitespace trimming, and
// the stop at the blank line ending the header block.
func TestHeaderValue(t *testing.T) {
	if got := HeaderValue([]byte(sampleRequest), "origin"); got != "http://example.com" {
		t.Errorf("Lowercase name lookup = %q, want %q", got, "http://example.com")
	}
	if got := HeaderValue([]byte(sampleRequest), "SEC-WEBSOCKET-VERSION"); got != "13" {
		t.Errorf("Uppercase name lookup = %q, want %q", got, "13")
	}
	if got := HeaderValue([]byte(sampleRequest), "Authorization"); got != "" {
		t.Errorf("Absent header = %q, want empty", got)
	}

	// Anything after the blank line is body, not headers.
	withBody := sampleRequest + "X-Smuggled: yes\r\n"
	if got := HeaderValue([]byte(withBody), "X-Smuggled"); got != "" {
		t.Errorf("Header read past the blank line: %q", got)
	}
}

// TestHandshakeResponse verifies the shape of the 101 response.
func TestHandshakeResponse(t *testing.T) {
	response := string(HandshakeResponse("s3pPLMBiTxaQ9kYGzzhZRbK+xOo="))

	if !strings.HasPrefix(response, "HTTP/1.1 101 Switching Protocols\r\n") {
		t.Errorf("Response does not open with the 101 status line: %q", response)
	}
	if !strings.Contains(response, "Sec-WebSocket-Accept: s3pPLMBiTxaQ9kYGzzhZRbK+xOo=\r\n") {
		t.Errorf("Response missing accept header: %q", response)
	}
	if !strings.HasSuffix(response, "\r\n\r\n") {
		t.Errorf("Response not terminated by an empty line: %q", response)
	}
}
