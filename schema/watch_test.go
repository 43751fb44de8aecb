package schema_test

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/syssam/quarry/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	watchV1 = "entities:\n  User:\n    primary_key: id\n    fields:\n      - {name: id, type: int64}\n"
	watchV2 = watchV1 + "  Post:\n    primary_key: id\n    fields:\n      - {name: id, type: int64}\n"
)

func TestWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(watchV1), 0o600))

	var failures atomic.Int32
	w, err := schema.Watch(context.Background(), path, schema.OnReload(func(_ *schema.Catalog, err error) {
		if err != nil {
			failures.Add(1)
		}
	}))
	require.NoError(t, err)
	defer w.Close()

	assert.True(t, w.HasType("User"))
	assert.False(t, w.HasType("Post"))

	require.NoError(t, os.WriteFile(path, []byte(watchV2), 0o600))
	require.Eventually(t, func() bool { return w.HasType("Post") }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"id"}, w.PrimaryKey("Post"))

	// A broken file keeps the last good catalog.
	require.NoError(t, os.WriteFile(path, []byte("entities: ["), 0o600))
	require.Eventually(t, func() bool { return failures.Load() > 0 }, 5*time.Second, 10*time.Millisecond)
	assert.True(t, w.HasType("Post"))

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}

func TestWatch_MissingFile(t *testing.T) {
	_, err := schema.Watch(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestWatch_ContextCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(watchV1), 0o600))
	ctx, cancel := context.WithCancel(context.Background())
	w, err := schema.Watch(ctx, path)
	require.NoError(t, err)
	cancel()
	assert.NoError(t, w.Close())
	assert.True(t, w.HasType("User"))
}
