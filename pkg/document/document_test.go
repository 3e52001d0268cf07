package document_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/strata/pkg/core"
	"github.com/aretw0/strata/pkg/document"
	"github.com/aretw0/strata/pkg/schema"
)

const (
	formElement = "model.FormElement"
	textarea    = "model.TextareaFormElement"
	radio       = "model.RadioFormElement"
)

func registry(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := schema.Compile(
		schema.Type{
			Name:  formElement,
			Label: "Element",
			Fields: []schema.Field{
				{Name: "label", Type: schema.String},
				{Name: "default", Type: schema.Raw},
			},
			Hooks: []core.EventKind{core.PreInserting, core.PostInserting},
		},
		schema.Type{
			Name:   textarea,
			Parent: formElement,
			Tag:    "textarea",
			Label:  "Textarea",
			Fields: []schema.Field{{Name: "default", Type: schema.String}},
			Hooks:  []core.EventKind{core.PreInserting, core.PostInserting},
		},
		schema.Type{
			Name:   radio,
			Parent: formElement,
			Tag:    "radio",
			Label:  "Radio",
			Fields: []schema.Field{{Name: "options", Type: schema.Opaque}},
		},
	)
	require.NoError(t, err)
	return reg
}

func create(t *testing.T, reg *schema.Registry, name string, values map[string]any) *document.Document {
	t.Helper()
	typ, err := reg.Type(name)
	require.NoError(t, err)
	doc, err := document.New(typ)
	require.NoError(t, err)
	require.NoError(t, doc.FromMap(values))
	return doc
}

func get(t *testing.T, doc *document.Document, name string) any {
	t.Helper()
	v, err := doc.Get(name)
	require.NoError(t, err)
	return v
}

func serialized(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func TestDocument_Hydrate(t *testing.T) {
	reg := registry(t)

	typ, _ := reg.Type(formElement)
	doc, err := document.Hydrate(typ, core.Record{"_id": "e1", "label": 123, "default": 234})
	require.NoError(t, err)
	assert.Equal(t, "123", get(t, doc, "label"))
	assert.Equal(t, 234, get(t, doc, "default"))
	assert.Equal(t, "e1", doc.ID())
	assert.True(t, doc.IsPersisted())
	assert.Empty(t, doc.Modified(), "hydrated documents start clean")

	typ, _ = reg.Type(textarea)
	doc, err = document.Hydrate(typ, core.Record{"_id": "t1", "type": "textarea", "label": 234, "default": 345})
	require.NoError(t, err)
	assert.Equal(t, "234", get(t, doc, "label"))
	assert.Equal(t, "345", get(t, doc, "default"))

	options := map[string]any{"foobar": "Foo", "barfoo": "Bar"}
	typ, _ = reg.Type(radio)
	doc, err = document.Hydrate(typ, core.Record{
		"_id":     "r1",
		"label":   345,
		"default": "foobar",
		"options": serialized(t, options),
		"legacy":  "ignored",
	})
	require.NoError(t, err)
	assert.Equal(t, "345", get(t, doc, "label"))
	assert.Equal(t, "foobar", get(t, doc, "default"))
	assert.Equal(t, options, get(t, doc, "options"))
	assert.NotContains(t, doc.ToMap(), "legacy")
}

func TestDocument_HydrateMissingFieldsTakeDefaults(t *testing.T) {
	reg, err := schema.Compile(schema.Type{Name: "Note", Fields: []schema.Field{
		{Name: "title", Type: schema.String, Default: "untitled"},
		{Name: "pinned", Type: schema.Boolean, Default: false},
	}})
	require.NoError(t, err)
	typ, _ := reg.Type("Note")

	doc, err := document.Hydrate(typ, core.Record{"_id": 1, "pinned": "true"})
	require.NoError(t, err)
	assert.Equal(t, "untitled", get(t, doc, "title"))
	assert.Equal(t, true, get(t, doc, "pinned"))
	assert.Equal(t, "1", doc.Key())
}

func TestDocument_SetGet(t *testing.T) {
	reg := registry(t)

	doc := create(t, reg, textarea, nil)
	require.NoError(t, doc.Set("label", "foo"))
	require.NoError(t, doc.Set("default", "bar"))
	assert.Equal(t, "foo", get(t, doc, "label"))
	assert.Equal(t, "bar", get(t, doc, "default"))

	options := map[string]any{"foo": "bar"}
	doc = create(t, reg, radio, nil)
	require.NoError(t, doc.Set("label", "foo"))
	require.NoError(t, doc.Set("options", options))
	assert.Equal(t, options, get(t, doc, "options"))

	t.Run("Unknown Field", func(t *testing.T) {
		err := doc.Set("no", "foo")
		assert.ErrorIs(t, err, core.ErrUnknownField)
		_, err = doc.Get("no")
		assert.ErrorIs(t, err, core.ErrUnknownField)
	})

	t.Run("Sibling Field Is Unknown", func(t *testing.T) {
		other := create(t, reg, textarea, nil)
		assert.ErrorIs(t, other.Set("options", options), core.ErrUnknownField)
	})

	t.Run("Mappings Are Not Copied", func(t *testing.T) {
		reg, err := schema.Compile(schema.Type{Name: "Bag", Fields: []schema.Field{{Name: "attrs", Type: schema.Mapping}}})
		require.NoError(t, err)
		bag := create(t, reg, "Bag", map[string]any{"attrs": map[string]any{"a": 1}})
		attrs := get(t, bag, "attrs").(map[string]any)
		attrs["b"] = 2
		assert.Equal(t, map[string]any{"a": 1, "b": 2}, get(t, bag, "attrs"))
	})

	t.Run("Invalid Value", func(t *testing.T) {
		reg, err := schema.Compile(schema.Type{Name: "Counter", Fields: []schema.Field{{Name: "n", Type: schema.Number}}})
		require.NoError(t, err)
		c := create(t, reg, "Counter", nil)
		assert.ErrorIs(t, c.Set("n", "many"), core.ErrInvalidValue)
	})
}

func TestDocument_DirtyTracking(t *testing.T) {
	reg := registry(t)
	typ, _ := reg.Type(formElement)

	fresh := create(t, reg, formElement, nil)
	assert.Equal(t, []string{"label", "default"}, fresh.Modified(), "fresh documents are fully new")

	doc, err := document.Hydrate(typ, core.Record{"_id": "e1", "label": "a", "default": "b"})
	require.NoError(t, err)

	t.Run("Idempotent Set", func(t *testing.T) {
		require.NoError(t, doc.Set("label", "a"))
		assert.False(t, doc.IsModified("label"))
	})

	t.Run("Distinct Values Stay Dirty", func(t *testing.T) {
		require.NoError(t, doc.Set("label", "v1"))
		require.NoError(t, doc.Set("label", "v2"))
		assert.True(t, doc.IsModified("label"))
		require.NoError(t, doc.Set("label", "v2"))
		assert.Equal(t, []string{"label"}, doc.Modified())
	})

	t.Run("Coercion Happens Before Comparison", func(t *testing.T) {
		doc.ClearModified()
		require.NoError(t, doc.Set("label", "7"))
		doc.ClearModified()
		require.NoError(t, doc.Set("label", 7))
		assert.False(t, doc.IsModified("label"))
	})

	t.Run("Revert", func(t *testing.T) {
		doc.ClearModified()
		require.NoError(t, doc.Set("label", "changed"))
		require.NoError(t, doc.Revert("label"))
		assert.Equal(t, "7", get(t, doc, "label"))
		assert.False(t, doc.IsModified("label"))
		assert.ErrorIs(t, doc.Revert("nope"), core.ErrUnknownField)
	})
}

func TestDocument_FromMapToMap(t *testing.T) {
	reg := registry(t)

	doc := create(t, reg, textarea, map[string]any{"label": "foo", "default": "bar"})
	assert.Equal(t, map[string]any{"label": "foo", "default": "bar"}, doc.ToMap())

	options := map[string]any{"foo": "bar"}
	doc = create(t, reg, radio, map[string]any{"label": "foo", "options": options})
	assert.Equal(t, map[string]any{"label": "foo", "options": options}, doc.ToMap())

	t.Run("Round Trip", func(t *testing.T) {
		in := map[string]any{"label": "x", "default": 42, "options": []any{"a", "b"}}
		doc := create(t, reg, radio, in)
		assert.Equal(t, in, doc.ToMap())
	})

	t.Run("Partial Round Trip", func(t *testing.T) {
		for _, in := range []map[string]any{
			{},
			{"label": "foo"},
			{"options": map[string]any{"a": "Foo"}},
			{"label": "foo", "default": "bar"},
		} {
			doc := create(t, reg, radio, in)
			assert.Equal(t, in, doc.ToMap())
		}
	})

	t.Run("Values In Declaration Order", func(t *testing.T) {
		doc := create(t, reg, radio, map[string]any{"options": "o", "label": "l"})
		var names []string
		for name := range doc.Values() {
			names = append(names, name)
		}
		assert.Equal(t, []string{"label", "options"}, names)
	})

	t.Run("Unknown Keys Reject The Whole Map", func(t *testing.T) {
		doc := create(t, reg, textarea, nil)
		err := doc.FromMap(map[string]any{"label": "kept?", "options": "nope"})
		assert.ErrorIs(t, err, core.ErrUnknownField)
		assert.Nil(t, get(t, doc, "label"))
	})
}

func TestDocument_QueryForSave(t *testing.T) {
	reg := registry(t)

	t.Run("Root Type Has No Discriminator", func(t *testing.T) {
		doc := create(t, reg, formElement, map[string]any{"label": 123, "default": 234})
		payload, err := doc.QueryForSave()
		require.NoError(t, err)
		assert.Equal(t, core.Record{"label": "123", "default": 234}, payload)

		doc.MarkPersisted("123")
		payload, err = doc.QueryForSave()
		require.NoError(t, err)
		assert.Empty(t, payload)
	})

	t.Run("Derived Type Carries Its Tag", func(t *testing.T) {
		doc := create(t, reg, textarea, map[string]any{"label": 345, "default": 456})
		payload, err := doc.QueryForSave()
		require.NoError(t, err)
		assert.Equal(t, core.Record{"type": "textarea", "label": "345", "default": "456"}, payload)

		doc.MarkPersisted("123")
		payload, err = doc.QueryForSave()
		require.NoError(t, err)
		assert.Empty(t, payload)
	})

	t.Run("Opaque Values Are Serialized", func(t *testing.T) {
		options := map[string]any{"foobar": "foo", "barfoo": "bar"}
		doc := create(t, reg, radio, map[string]any{"label": 567, "default": 678, "options": options})
		payload, err := doc.QueryForSave()
		require.NoError(t, err)
		assert.Equal(t, core.Record{
			"type":    "radio",
			"label":   "567",
			"default": 678,
			"options": serialized(t, options),
		}, payload)
	})

	t.Run("Radio Scenario", func(t *testing.T) {
		doc := create(t, reg, radio, nil)
		require.NoError(t, doc.Set("label", 345))
		require.NoError(t, doc.Set("default", "foobar"))
		require.NoError(t, doc.Set("options", map[string]any{"a": "Foo"}))

		payload, err := doc.QueryForSave()
		require.NoError(t, err)
		assert.Equal(t, core.Record{
			"type":    "radio",
			"label":   "345",
			"default": "foobar",
			"options": `{"a":"Foo"}`,
		}, payload)
	})

	t.Run("Persisted Documents Send Only Dirty Fields", func(t *testing.T) {
		typ, _ := reg.Type(radio)
		doc, err := document.Hydrate(typ, core.Record{"_id": "r1", "type": "radio", "label": "a", "default": "b"})
		require.NoError(t, err)
		require.NoError(t, doc.Set("label", "z"))

		payload, err := doc.QueryForSave()
		require.NoError(t, err)
		assert.Equal(t, core.Record{"label": "z"}, payload)

		doc.MarkPersisted(nil)
		assert.Equal(t, "r1", doc.ID(), "an existing identifier is never replaced")
		payload, err = doc.QueryForSave()
		require.NoError(t, err)
		assert.Empty(t, payload)
	})
}

func TestDocument_AbstractTypes(t *testing.T) {
	reg, err := schema.Compile(
		schema.Type{Name: "Shape", Abstract: true},
		schema.Type{Name: "Circle", Parent: "Shape", Tag: "circle"},
	)
	require.NoError(t, err)

	shape, _ := reg.Type("Shape")
	_, err = document.New(shape)
	assert.ErrorIs(t, err, core.ErrAbstractType)

	circle, _ := reg.Type("Circle")
	doc, err := document.New(circle)
	require.NoError(t, err)
	payload, err := doc.QueryForSave()
	require.NoError(t, err)
	assert.Equal(t, core.Record{"type": "circle"}, payload)
}
