package pykythe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeVersion(t *testing.T) {
	v1 := computeVersion("stubhash", "")
	v2 := computeVersion("stubhash", "")
	assert.Equal(t, v1, v2, "version is a pure function of its inputs")
	assert.Len(t, v1, 64)

	assert.NotEqual(t, v1, computeVersion("otherhash", ""), "declaration changes roll the version")
	assert.NotEqual(t, v1, computeVersion("stubhash", "py312"), "environment suffix rolls the version")
}
