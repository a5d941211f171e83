package auth

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidator_InactiveWhenUnconfigured(t *testing.T) {
	v := New("", "", "")
	assert.False(t, v.Active())
	assert.True(t, v.Verify(Credential{}))
}

func TestValidator_TokenMode(t *testing.T) {
	v := New("s3cret", "", "")
	assert.True(t, v.Active())
	assert.True(t, v.Verify(Credential{Token: "s3cret"}))
	assert.False(t, v.Verify(Credential{Token: "wrong"}))
	assert.False(t, v.Verify(Credential{}))
}

func TestValidator_BasicMode(t *testing.T) {
	v := New("", "admin", "hunter2")
	assert.True(t, v.Verify(Credential{Username: "admin", Password: "hunter2"}))
	assert.False(t, v.Verify(Credential{Username: "admin", Password: "wrong"}))
	assert.False(t, v.Verify(Credential{Username: "other", Password: "hunter2"}))
}

func TestFromHTTPHeader_PriorityAndForms(t *testing.T) {
	assert.Equal(t, Credential{Token: "apikey"}, FromHTTPHeader("Bearer ignored", "apikey"))
	assert.Equal(t, Credential{Token: "abc"}, FromHTTPHeader("Bearer abc", ""))

	basic := "Basic " + base64.StdEncoding.EncodeToString([]byte("alice:secret"))
	assert.Equal(t, Credential{Username: "alice", Password: "secret"}, FromHTTPHeader(basic, ""))

	assert.Equal(t, Credential{}, FromHTTPHeader("", ""))
}

func TestExemptPath(t *testing.T) {
	assert.True(t, ExemptPath("/health"))
	assert.True(t, ExemptPath("/metrics"))
	assert.True(t, ExemptPath("/ui/index.html"))
	assert.False(t, ExemptPath("/db"))
}

func TestConstantTimeEqual_HandlesMismatchedLengths(t *testing.T) {
	assert.True(t, constantTimeEqual("abc", "abc"))
	assert.False(t, constantTimeEqual("abc", "abcd"))
	assert.False(t, constantTimeEqual("", "a"))
}
