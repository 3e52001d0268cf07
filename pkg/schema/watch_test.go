package schema_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/strata/pkg/schema"
)

type outcome struct {
	reg *schema.Registry
	err error
}

func next(t *testing.T, ch <-chan outcome) outcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(5 * time.Second):
		t.Fatal("no schema reload")
		return outcome{}
	}
}

func TestWatch_Reloads(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "root.yaml"), []byte(rootSchema), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := make(chan outcome, 10)
	err := schema.Watch(ctx, dir, "", nil, func(reg *schema.Registry, err error) {
		ch <- outcome{reg, err}
	})
	require.NoError(t, err)

	first := next(t, ch)
	require.NoError(t, first.err)
	assert.Len(t, first.reg.Types(), 1)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "leaves.yml"), []byte(leafSchema), 0644))
	second := next(t, ch)
	require.NoError(t, second.err)
	assert.Len(t, second.reg.Types(), 3)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("types: [{name: x, parent: missing}]\n"), 0644))
	third := next(t, ch)
	assert.Error(t, third.err)
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "root.yaml"), []byte(rootSchema), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := make(chan outcome, 10)
	require.NoError(t, schema.Watch(ctx, dir, "", nil, func(reg *schema.Registry, err error) {
		ch <- outcome{reg, err}
	}))
	next(t, ch)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0644))
	select {
	case <-ch:
		t.Fatal("unexpected reload")
	case <-time.After(3 * schema.DebounceInterval):
	}
}

func TestWatch_MissingDir(t *testing.T) {
	err := schema.Watch(context.Background(), filepath.Join(t.TempDir(), "nope"), "", nil, func(*schema.Registry, error) {})
	assert.Error(t, err)
}
