package structure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"projection-generator/internal/schema"
)

func leaf(name, typeName string, nullable bool) Field {
	return Field{Name: name, Type: schema.Basic(typeName), Nullable: nullable}
}

func TestHash_Deterministic(t *testing.T) {
	a := New(nil, "", []Field{leaf("Id", "int64", false), leaf("Name", "string", true)})
	b := New(nil, "", []Field{leaf("Id", "int64", false), leaf("Name", "string", true)})

	assert.Equal(t, a.Hash(), b.Hash())
	assert.Len(t, a.Hash(), HashLen)
}

func TestHash_SensitiveToContent(t *testing.T) {
	base := New(nil, "", []Field{leaf("Id", "int64", false), leaf("Name", "string", true)})

	renamed := New(nil, "", []Field{leaf("Id", "int64", false), leaf("Title", "string", true)})
	assert.NotEqual(t, base.Hash(), renamed.Hash())

	retyped := New(nil, "", []Field{leaf("Id", "int32", false), leaf("Name", "string", true)})
	assert.NotEqual(t, base.Hash(), retyped.Hash())

	flipped := New(nil, "", []Field{leaf("Id", "int64", false), leaf("Name", "string", false)})
	assert.NotEqual(t, base.Hash(), flipped.Hash())

	reordered := New(nil, "", []Field{leaf("Name", "string", true), leaf("Id", "int64", false)})
	assert.NotEqual(t, base.Hash(), reordered.Hash())
}

func TestHash_IgnoresLocationAndTarget(t *testing.T) {
	fields := []Field{leaf("Id", "int64", false)}

	named := New(schema.Basic("SourceA"), "OrderView", fields)
	anon := New(schema.Basic("SourceB"), "", []Field{leaf("Id", "int64", false)})

	// Identity comes from field content only; source type and target name
	// contribute nothing.
	assert.Equal(t, named.Hash(), anon.Hash())
}

func TestHash_NestedContributesByHash(t *testing.T) {
	inner := New(nil, "", []Field{leaf("Name", "string", false)})

	single := New(nil, "", []Field{{Name: "Customer", Nested: inner}})
	collection := New(nil, "", []Field{{Name: "Customer", Nested: inner, IsCollection: true}})

	// A collection of a nested shape differs from a single nested object.
	assert.NotEqual(t, single.Hash(), collection.Hash())

	f := single.Fields[0]
	assert.Equal(t, inner.Hash(), f.TypeKey())
	assert.Equal(t, "[]"+inner.Hash(), collection.Fields[0].TypeKey())
}

func TestIntern_Deduplicates(t *testing.T) {
	in := NewInterner()

	a := New(nil, "", []Field{leaf("Id", "int64", false)})
	b := New(nil, "", []Field{leaf("Id", "int64", false)})

	ca, err := in.Intern(a)
	require.NoError(t, err)

	cb, err := in.Intern(b)
	require.NoError(t, err)

	assert.Same(t, ca, cb)
	assert.Equal(t, 1, in.Len())

	got, ok := in.Lookup(a.Hash())
	require.True(t, ok)
	assert.Same(t, ca, got)
}

func TestIntern_IdentityCollisionIsFatal(t *testing.T) {
	in := NewInterner()

	a := New(nil, "", []Field{leaf("Id", "int64", false)})
	_, err := in.Intern(a)
	require.NoError(t, err)

	// Forge a structurally different shape carrying the same hash. This
	// cannot happen through New; it models the invariant violation.
	b := New(nil, "", []Field{leaf("Id", "int64", false)})
	b.Fields[0].Name = "Forged"

	_, err = in.Intern(b)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIdentityCollision)
}

func TestWalk_VisitsNestedDepthFirst(t *testing.T) {
	inner := New(nil, "", []Field{leaf("Name", "string", false)})
	mid := New(nil, "", []Field{{Name: "Customer", Nested: inner}})
	root := New(nil, "RootView", []Field{{Name: "Mid", Nested: mid}, leaf("Id", "int64", false)})

	var visited []string

	root.Walk(func(s *Structure) {
		visited = append(visited, s.Hash())
	})

	assert.Equal(t, []string{root.Hash(), mid.Hash(), inner.Hash()}, visited)
}
