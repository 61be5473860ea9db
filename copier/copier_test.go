package copier_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-contract-cache/cache/copier"
)

type point struct {
	X, Y int
}

func TestIdentityReturnsSameValue(t *testing.T) {
	var c copier.Identity[*point]
	p := &point{X: 1, Y: 2}

	out, err := c.Copy(p)
	require.NoError(t, err)
	assert.Same(t, p, out, "identity copier must not isolate the pointer")
}

func TestDeepProducesStructurallyIsolatedCopy(t *testing.T) {
	var c copier.Deep[*point]
	p := &point{X: 1, Y: 2}

	out, err := c.Copy(p)
	require.NoError(t, err)
	require.NotSame(t, p, out, "deep copier must not share the original pointer")
	assert.Equal(t, p, out, "deep copy must be structurally equal")

	out.X = 99
	assert.Equal(t, 1, p.X, "mutating the copy must not affect the original")
}

func TestDeepRoundTripsValueTypes(t *testing.T) {
	var c copier.Deep[map[string]int]
	m := map[string]int{"a": 1, "b": 2}

	out, err := c.Copy(m)
	require.NoError(t, err)
	assert.Equal(t, m, out)

	out["a"] = 999
	assert.Equal(t, 1, m["a"])
}

func TestDeepFailsOnUnencodableValue(t *testing.T) {
	var c copier.Deep[chan int]
	_, err := c.Copy(make(chan int))
	assert.Error(t, err)
}
