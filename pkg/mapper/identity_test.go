package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/strata/pkg/core"
	"github.com/aretw0/strata/pkg/document"
	"github.com/aretw0/strata/pkg/schema"
)

func newDoc(t *testing.T, id any) *document.Document {
	t.Helper()
	reg, err := schema.Compile(schema.Type{
		Name:   "Note",
		Fields: []schema.Field{{Name: "title", Type: schema.String}},
	})
	require.NoError(t, err)
	typ, err := reg.Type("Note")
	require.NoError(t, err)
	doc, err := document.Hydrate(typ, core.Record{core.IDField: id})
	require.NoError(t, err)
	return doc
}

func TestIdentityMap_Register(t *testing.T) {
	m := NewIdentityMap()
	a := newDoc(t, "a")

	require.NoError(t, m.Register("a", a))
	require.NoError(t, m.Register("a", a), "registering the same instance is a no-op")
	assert.ErrorIs(t, m.Register("a", newDoc(t, "a")), core.ErrDuplicateIdentity)
	assert.Error(t, m.Register(nil, a))

	got, ok := m.Get("a")
	require.True(t, ok)
	assert.Same(t, a, got)
	assert.Equal(t, 1, m.Len())
}

func TestIdentityMap_KeysAreStringified(t *testing.T) {
	m := NewIdentityMap()
	doc := newDoc(t, 7)
	require.NoError(t, m.Register(7, doc))

	got, ok := m.Get("7")
	require.True(t, ok)
	assert.Same(t, doc, got)
}

func TestIdentityMap_LoadOrRegister(t *testing.T) {
	m := NewIdentityMap()
	first := newDoc(t, "x")
	second := newDoc(t, "x")

	got, loaded := m.LoadOrRegister("x", first)
	assert.False(t, loaded)
	assert.Same(t, first, got)

	got, loaded = m.LoadOrRegister("x", second)
	assert.True(t, loaded)
	assert.Same(t, first, got)
}

func TestIdentityMap_Forget(t *testing.T) {
	m := NewIdentityMap()
	a, b, c := newDoc(t, "a"), newDoc(t, "b"), newDoc(t, "c")
	for _, d := range []*document.Document{a, b, c} {
		require.NoError(t, m.Register(d.ID(), d))
	}

	assert.False(t, m.ForgetIf("a", func(d *document.Document) bool { return d == b }))
	assert.True(t, m.ForgetIf("a", func(d *document.Document) bool { return d == a }))
	assert.False(t, m.ForgetIf("missing", func(*document.Document) bool { return true }))

	m.Forget("b")
	assert.Equal(t, 1, m.Len())

	require.NoError(t, m.Register("a", a))
	n := m.ForgetFunc(func(d *document.Document) bool { return d.Key() == "c" })
	assert.Equal(t, 1, n)

	m.Clear()
	assert.Zero(t, m.Len())
}
