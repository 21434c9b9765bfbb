package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	v := Get()
	assert.NotEmpty(t, v)
	// release versions carry a 'v' prefix
	assert.Equal(t, byte('v'), v[0])
	// embedded whitespace never leaks into the reported version
	assert.Equal(t, v, Get())
}
