package store

import (
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator(t *testing.T) {
	var g UUIDv7Generator

	ids := make([]string, 100)
	for i := range ids {
		ids[i] = g.Generate()
		parsed, err := uuid.Parse(ids[i])
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(7), parsed.Version())
	}

	// Later ids sort after earlier ones.
	assert.True(t, sort.StringsAreSorted(ids))
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("id-1", "id-2")
	assert.Equal(t, "id-1", g.Generate())
	assert.Equal(t, "id-2", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}
