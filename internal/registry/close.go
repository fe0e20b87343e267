package registry

import "strings"

// IsExpectedCloseError reports whether an error is a normal consequence of a
// socket being torn down, as opposed to a failure worth logging loudly.
func IsExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection reset by peer")
}
