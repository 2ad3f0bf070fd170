package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mastowatch/pkg/logger"
)

func TestFollowerStoreMissingFile(t *testing.T) {
	store := NewFollowerStore(filepath.Join(t.TempDir(), "followers.json"), logger.NewTestLogger())

	snapshot, err := store.LoadFollowers()
	require.NoError(t, err)
	assert.NotNil(t, snapshot)
	assert.Empty(t, snapshot)
}

func TestFollowerStoreCorruptFile(t *testing.T) {
	tests := map[string]string{
		"garbage":    "{not json",
		"wrong type": `["a","b"]`,
		"null":       "null",
		"empty":      "",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "followers.json")
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))

			store := NewFollowerStore(path, logger.NewTestLogger())
			snapshot, err := store.LoadFollowers()
			require.NoError(t, err)
			assert.NotNil(t, snapshot)
			assert.Empty(t, snapshot)
		})
	}
}

func TestFollowerStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "followers.json")
	store := NewFollowerStore(path, logger.NewTestLogger())

	in := map[string]string{"1": "alice@mastodon.social", "2": "bob@other.social"}
	require.NoError(t, store.SaveFollowers(in))

	out, err := store.LoadFollowers()
	require.NoError(t, err)
	assert.Equal(t, in, out)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), "\n  \"1\": \"alice@mastodon.social\""), "snapshot is pretty-printed")

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temporary file is cleaned up")
}

func TestFollowerStoreSavesEmptySnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "followers.json")
	store := NewFollowerStore(path, logger.NewTestLogger())

	require.NoError(t, store.SaveFollowers(map[string]string{"1": "a@x"}))
	require.NoError(t, store.SaveFollowers(nil))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded map[string]string
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.NotNil(t, decoded)
	assert.Empty(t, decoded)
}

func TestFollowerStoreBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "followers.json")
	store := NewFollowerStore(path, logger.NewTestLogger())
	store.KeepBackup(true)

	require.NoError(t, store.SaveFollowers(map[string]string{"1": "a@x"}))
	_, err := os.Stat(path + ".backup")
	assert.True(t, os.IsNotExist(err), "no backup before the first snapshot exists")

	require.NoError(t, store.SaveFollowers(map[string]string{"2": "b@x"}))

	raw, err := os.ReadFile(path + ".backup")
	require.NoError(t, err)
	var previous map[string]string
	require.NoError(t, json.Unmarshal(raw, &previous))
	assert.Equal(t, map[string]string{"1": "a@x"}, previous)
}

func TestFollowerStoreBackupFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "followers.json")
	store := NewFollowerStore(path, logger.NewTestLogger())
	require.NoError(t, store.SaveFollowers(map[string]string{"1": "a@x"}))

	// A directory in the way makes the backup unwritable.
	require.NoError(t, os.Mkdir(path+".backup", 0755))
	store.KeepBackup(true)

	err := store.SaveFollowers(map[string]string{"2": "b@x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backup")

	loaded, err := store.LoadFollowers()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"1": "a@x"}, loaded, "snapshot is untouched when the backup fails")
}

func TestWatermarkStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watermark.json")
	store := NewWatermarkStore(path, logger.NewTestLogger())

	wm, err := store.LoadWatermark()
	require.NoError(t, err)
	assert.Nil(t, wm)

	saved := &Watermark{LastID: "110", AccountID: "42"}
	require.NoError(t, store.SaveWatermark(saved))
	assert.False(t, saved.UpdatedAt.IsZero())

	loaded, err := store.LoadWatermark()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "110", loaded.LastID)
	assert.Equal(t, "42", loaded.AccountID)
	assert.True(t, saved.UpdatedAt.Equal(loaded.UpdatedAt))

	require.NoError(t, store.Delete())
	require.NoError(t, store.Delete(), "deleting twice is fine")
	wm, err = store.LoadWatermark()
	require.NoError(t, err)
	assert.Nil(t, wm)
}

func TestWatermarkStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watermark.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0644))

	log := logger.NewTestLogger()
	store := NewWatermarkStore(path, log)

	wm, err := store.LoadWatermark()
	require.NoError(t, err)
	assert.Nil(t, wm)
	assert.Len(t, log.GetMessagesByLevel("WARN"), 1)
}
