package filestore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	domainauth "github.com/linkstash/authkit/internal/domain/auth"
	apperrors "github.com/linkstash/authkit/internal/errors"
	"github.com/linkstash/authkit/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "auth", "credentials.json"))
	require.NoError(t, err)
	return store
}

func TestNewStore_EmptyPath(t *testing.T) {
	_, err := NewStore("")
	assert.Error(t, err)
}

func TestStore_SaveAndLoad(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := domainauth.Record{
		SchemaVersion: domainauth.RecordSchemaVersion,
		Token:         "token-1",
		RefreshToken:  "refresh-1",
	}

	require.NoError(t, store.Save(ctx, rec))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, rec, loaded)
}

func TestStore_Load_Missing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, ports.ErrNoRecord)
}

func TestStore_Save_EmptyToken(t *testing.T) {
	store := newTestStore(t)

	err := store.Save(context.Background(), domainauth.Record{})
	assert.True(t, apperrors.IsValidation(err))
}

func TestStore_Save_FillsSchemaVersion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domainauth.Record{Token: "abc"}))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, domainauth.RecordSchemaVersion, loaded.SchemaVersion)
}

func TestStore_Clear_Idempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Clearing an empty slot is a no-op.
	require.NoError(t, store.Clear(ctx))

	require.NoError(t, store.Save(ctx, domainauth.Record{Token: "abc"}))
	require.NoError(t, store.Clear(ctx))
	require.NoError(t, store.Clear(ctx))

	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, ports.ErrNoRecord)
}

func TestStore_Load_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.json")
	store, err := NewStore(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err = store.Load(context.Background())
	assert.True(t, apperrors.IsStorage(err))
}

func TestStore_Load_NewerSchemaRefused(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.json")
	store, err := NewStore(path)
	require.NoError(t, err)

	data, err := json.Marshal(domainauth.Record{
		SchemaVersion: domainauth.RecordSchemaVersion + 1,
		Token:         "from-the-future",
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	_, err = store.Load(context.Background())
	assert.True(t, apperrors.IsStorage(err))
}

func TestStore_Load_LegacyUnversionedRecord(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.json")
	store, err := NewStore(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"token":"legacy"}`), 0o600))

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "legacy", loaded.Token)
}

func TestStore_FilePermissions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domainauth.Record{Token: "abc"}))

	info, err := os.Stat(store.path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
