package reqid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve_EchoesSuppliedID(t *testing.T) {
	assert.Equal(t, "caller-id-123", Resolve("caller-id-123"))
}

func TestResolve_GeneratesWhenEmpty(t *testing.T) {
	id := Resolve("")
	assert.NotEmpty(t, id)
	assert.NotEqual(t, id, Resolve(""))
}

func TestNew_ProducesDistinctIDs(t *testing.T) {
	assert.NotEqual(t, New(), New())
}
