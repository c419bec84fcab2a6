package data

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/feishu-realname-sync/internal/biz/domain"
)

func newTestSQLiteRepo(t *testing.T) *SQLiteSnapshotRepo {
	t.Helper()
	r, err := NewSQLiteSnapshotRepo(filepath.Join(t.TempDir(), "nested", "names.db"))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestSQLiteSnapshotRepo_FetchMissing(t *testing.T) {
	r := newTestSQLiteRepo(t)

	_, err := r.Fetch(context.Background())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLiteSnapshotRepo_WriteAndFetch(t *testing.T) {
	r := newTestSQLiteRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Write(ctx, []byte(`{"ou_1":"Alex"}`), ""))

	snap, err := r.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"ou_1":"Alex"}`, string(snap.Content))
	assert.Equal(t, contentVersion([]byte(`{"ou_1":"Alex"}`)), snap.Version)
	assert.Len(t, snap.Version, 64)

	require.NoError(t, r.Write(ctx, []byte(`{"ou_1":"Alexander"}`), snap.Version))

	next, err := r.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"ou_1":"Alexander"}`, string(next.Content))
	assert.NotEqual(t, snap.Version, next.Version)
}

func TestSQLiteSnapshotRepo_StaleVersionConflicts(t *testing.T) {
	r := newTestSQLiteRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Write(ctx, []byte(`{}`), ""))
	stale, err := r.Fetch(ctx)
	require.NoError(t, err)

	// Another writer updates first.
	require.NoError(t, r.Write(ctx, []byte(`{"ou_2":"Bob"}`), stale.Version))

	err = r.Write(ctx, []byte(`{"ou_1":"Alex"}`), stale.Version)
	require.ErrorIs(t, err, domain.ErrConflict)

	current, err := r.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"ou_2":"Bob"}`, string(current.Content))
}

func TestSQLiteSnapshotRepo_CreateRacesConflict(t *testing.T) {
	r := newTestSQLiteRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Write(ctx, []byte(`{"ou_2":"Bob"}`), ""))

	err := r.Write(ctx, []byte(`{"ou_1":"Alex"}`), "")
	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestSQLiteSnapshotRepo_Ping(t *testing.T) {
	r := newTestSQLiteRepo(t)
	assert.NoError(t, r.Ping())
}
