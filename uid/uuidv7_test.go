package uid

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDV7(t *testing.T) {
	g := NewUUIDV7()

	a, err := g.New()
	require.NoError(t, err)
	b, err := g.New()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)

	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
	assert.Less(t, a, b)
}

func TestFunc(t *testing.T) {
	var g Generator = Func(func() (string, error) { return "fixed", nil })
	id, err := g.New()
	require.NoError(t, err)
	assert.Equal(t, "fixed", id)
}
