package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewDigestDeterminism(t *testing.T) {
	records := []Object{
		{"id": Int(1), "title": String("a"), "tags": Array{String("x")}},
		{"id": String("b"), "done": Bool(true)},
	}

	d1, err := ViewDigest(records)
	require.NoError(t, err)
	d2, err := ViewDigest(records)
	require.NoError(t, err)

	assert.Equal(t, d1, d2, "ViewDigest must be deterministic")
	assert.Len(t, d1, 64, "SHA-256 hex is 64 characters")
}

func TestViewDigestIgnoresKeyInsertionOrder(t *testing.T) {
	a := Object{}
	a["title"] = String("a")
	a["id"] = Int(1)
	b := Object{"id": Int(1), "title": String("a")}

	d1, err := ViewDigest([]Object{a})
	require.NoError(t, err)
	d2, err := ViewDigest([]Object{b})
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
}

func TestViewDigestChangesWithContent(t *testing.T) {
	one := Object{"id": Int(1)}
	two := Object{"id": Int(2)}

	base, err := ViewDigest([]Object{one, two})
	require.NoError(t, err)

	reordered, err := ViewDigest([]Object{two, one})
	require.NoError(t, err)
	assert.NotEqual(t, base, reordered, "order is part of the view")

	changed, err := ViewDigest([]Object{one, {"id": Int(2), "x": Null{}}})
	require.NoError(t, err)
	assert.NotEqual(t, base, changed)

	empty, err := ViewDigest(nil)
	require.NoError(t, err)
	assert.Equal(t, hashWithDomain(DomainView, []byte("[]")), empty)
}

func TestHashWithDomainSeparation(t *testing.T) {
	data := []byte(`[{"id":1}]`)
	assert.NotEqual(t, hashWithDomain("offsync/view/v1", data), hashWithDomain("offsync/view/v2", data))
	// The separator keeps domain and data apart.
	assert.NotEqual(t, hashWithDomain("ab", []byte("c")), hashWithDomain("a", []byte("bc")))
}
