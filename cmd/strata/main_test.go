package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/aretw0/strata/pkg/core"
)

func TestParseFilter(t *testing.T) {
	criteria, err := parseFilter("")
	require.NoError(t, err)
	assert.Nil(t, criteria)

	oid := primitive.NewObjectID()
	criteria, err = parseFilter(`{"_id": {"$in": [{"$oid": "` + oid.Hex() + `"}]}, "label": {"$ne": "x"}}`)
	require.NoError(t, err)
	assert.Equal(t, core.Criteria{
		"_id":   map[string]any{"$in": []any{oid}},
		"label": map[string]any{"$ne": "x"},
	}, criteria)

	_, err = parseFilter(`{label:`)
	assert.Error(t, err)
}

func TestParseSort(t *testing.T) {
	fields, err := parseSort("label:-1, _id ,type:asc,size:desc")
	require.NoError(t, err)
	assert.Equal(t, []core.SortField{
		{Field: "label", Order: -1},
		{Field: "_id", Order: 1},
		{Field: "type", Order: 1},
		{Field: "size", Order: -1},
	}, fields)

	_, err = parseSort("label:2")
	assert.Error(t, err)
}

const cliSchema = `
types:
  - name: model.FormElement
    label: Element
    fields:
      - {name: label, type: string}
  - name: model.TextareaFormElement
    parent: model.FormElement
    tag: textarea
`

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestCLI_MemoryStore(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "schemas"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schemas", "forms.yaml"), []byte(cliSchema), 0644))
	config := filepath.Join(dir, "strata.yaml")
	require.NoError(t, os.WriteFile(config, []byte("uri: memory://\nschemas:\n  dir: schemas\n"), 0644))
	t.Setenv("STRATA_URI", "")

	out := run(t, "schema", "--config", config)
	assert.Equal(t, "model.FormElement (collection model_formelement, discriminator type)\n  model.TextareaFormElement (tag textarea)\n", out)

	out = run(t, "count", "model.TextareaFormElement", "--config", config, "--filter", `{"label": "x"}`)
	assert.Equal(t, "0\n", out)

	out = run(t, "find", "model.FormElement", "--config", config, "--json")
	assert.Empty(t, out)

	out = run(t, "version")
	assert.Contains(t, out, "strata version ")
}
