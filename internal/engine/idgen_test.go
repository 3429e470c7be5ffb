package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/offsync/internal/ir"
)

func TestRandomUUID(t *testing.T) {
	id := RandomUUID()
	require.True(t, id.IsString())
	u, err := uuid.Parse(id.String())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), u.Version())
	assert.NotEqual(t, id, RandomUUID())
}

func TestTimeOrderedUUID(t *testing.T) {
	u, err := uuid.Parse(TimeOrderedUUID().String())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), u.Version())
}

func TestULID(t *testing.T) {
	_, err := ulid.ParseStrict(ULID().String())
	require.NoError(t, err)
}

func TestGeneratorByName(t *testing.T) {
	for _, name := range []string{"", GeneratorUUID, GeneratorUUIDv7, GeneratorULID} {
		gen, err := GeneratorByName(name)
		require.NoError(t, err, name)
		assert.True(t, gen().IsString(), name)
	}

	_, err := GeneratorByName("snowflake")
	assert.ErrorContains(t, err, "snowflake")
}

func TestFixedGenerator(t *testing.T) {
	gen := NewFixedGenerator(ir.IntID(1), ir.StringID("b"))
	assert.Equal(t, ir.IntID(1), gen())
	assert.Equal(t, ir.StringID("b"), gen())
	assert.Panics(t, func() { gen() })
}
