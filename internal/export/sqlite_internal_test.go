package export

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithForeignKeys(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "runs.db?_pragma=foreign_keys(1)", withForeignKeys("runs.db"))
	assert.Equal(t, "file:runs.db?mode=rwc&_pragma=foreign_keys(1)", withForeignKeys("file:runs.db?mode=rwc"))
}

func TestOpenStore_ForeignKeysOnEveryConnection(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	store, err := OpenStore(ctx, filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, store.Close()) })

	first, err := store.db.Conn(ctx)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, first.Close()) })

	second, err := store.db.Conn(ctx)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, second.Close()) })

	var enabled int

	require.NoError(t, first.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&enabled))
	assert.Equal(t, 1, enabled)

	require.NoError(t, second.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&enabled))
	assert.Equal(t, 1, enabled)

	_, err = second.ExecContext(ctx, `INSERT INTO defects (run_id, ticket_id, iv, fv, estimated)
		VALUES ('missing', 1, 1, 2, 0)`)
	require.Error(t, err, "a defect without its run is rejected")
}
