// Package auth validates optional bearer token, API key, or HTTP Basic
// credentials, compared in constant time to avoid timing oracles,
// shared verbatim across every transport.
package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"strings"
)

// Credential is the transport-agnostic form every adapter normalizes
// its authentication envelope into before calling Verify.
type Credential struct {
	Token    string // non-empty when the caller presented a bearer token or API key
	Username string // non-empty when the caller presented HTTP Basic
	Password string
}

// Validator holds the configured expected credential. A zero-value
// Validator (no token, no username) is inactive: Verify always passes.
type Validator struct {
	token    string
	username string
	password string
}

// New constructs a Validator. Pass token for bearer/API-key auth,
// username+password for HTTP Basic, or leave both empty to disable
// auth entirely.
func New(token, username, password string) *Validator {
	return &Validator{token: token, username: username, password: password}
}

// Active reports whether this validator enforces anything.
func (v *Validator) Active() bool {
	return v != nil && (v.token != "" || v.username != "")
}

// Verify checks cred against the configured credential using
// constant-time comparison throughout.
func (v *Validator) Verify(cred Credential) bool {
	if !v.Active() {
		return true
	}
	if v.token != "" {
		return cred.Token != "" && constantTimeEqual(cred.Token, v.token)
	}
	return cred.Username != "" &&
		constantTimeEqual(cred.Username, v.username) &&
		constantTimeEqual(cred.Password, v.password)
}

func constantTimeEqual(a, b string) bool {
	// subtle.ConstantTimeCompare requires equal-length inputs to stay
	// constant-time; pad the shorter side so the call itself never
	// branches on length before comparing content.
	la, lb := len(a), len(b)
	max := la
	if lb > max {
		max = lb
	}
	pa := make([]byte, max)
	pb := make([]byte, max)
	copy(pa, a)
	copy(pb, b)
	lengthEqual := subtle.ConstantTimeEq(int32(la), int32(lb))
	contentEqual := subtle.ConstantTimeCompare(pa, pb)
	return lengthEqual&contentEqual == 1
}

// ExemptPath reports whether path is exempt from auth enforcement:
// /health, /metrics, and the static UI root.
func ExemptPath(path string) bool {
	switch path {
	case "/health", "/metrics", "/", "/index.html":
		return true
	default:
		return strings.HasPrefix(path, "/ui/")
	}
}

// FromHTTPHeader extracts a Credential from the Authorization / X-API-Key
// headers an HTTP transport received, preferring X-API-Key, then Bearer,
// then HTTP Basic.
func FromHTTPHeader(authorization, apiKey string) Credential {
	if apiKey != "" {
		return Credential{Token: apiKey}
	}
	if strings.HasPrefix(authorization, "Bearer ") {
		return Credential{Token: strings.TrimPrefix(authorization, "Bearer ")}
	}
	if strings.HasPrefix(authorization, "Basic ") {
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(authorization, "Basic "))
		if err == nil {
			if user, pass, ok := strings.Cut(string(decoded), ":"); ok {
				return Credential{Username: user, Password: pass}
			}
		}
	}
	return Credential{}
}
