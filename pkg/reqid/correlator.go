// Package reqid correlates requests: every inbound HTTP request either
// carries a caller-supplied identifier or is tagged with a freshly
// generated one, which is echoed back in the response's X-Request-Id
// header. The id is not attached to log output, and the wire protocol
// and WebSocket transports carry no request id.
package reqid

import "github.com/google/uuid"

// Header is the conventional HTTP header carrying a caller-supplied or
// echoed request id.
const Header = "X-Request-Id"

// New generates a fresh identifier for a request that arrived without
// one.
func New() string { return uuid.NewString() }

// Resolve returns supplied if non-empty, otherwise a freshly generated
// id.
func Resolve(supplied string) string {
	if supplied != "" {
		return supplied
	}
	return New()
}
