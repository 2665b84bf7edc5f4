package speaker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileMarshalRoundTrip(t *testing.T) {
	profile := &Profile{
		Name:      "test_speaker",
		Embedding: []float32{0.1, 0.2, 0.3, -0.5, 1.0},
	}

	restored, err := UnmarshalProfile(profile.Marshal())
	require.NoError(t, err)

	assert.Equal(t, profile.Name, restored.Name)
	require.Len(t, restored.Embedding, len(profile.Embedding))
	for i := range profile.Embedding {
		assert.InDelta(t, profile.Embedding[i], restored.Embedding[i], 1e-6)
	}
}

func TestUnmarshalRejectsTruncated(t *testing.T) {
	profile := &Profile{Name: "alice", Embedding: []float32{1, 2, 3}}
	data := profile.Marshal()

	for _, cut := range []int{0, 2, 8, len(data) - 1} {
		_, err := UnmarshalProfile(data[:cut])
		assert.Error(t, err, "cut at %d", cut)
	}
}

func TestProfileSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	profile := &Profile{Name: "alice", Embedding: []float32{1, 2, 3}}

	path, err := profile.Save(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "alice.bin"), path)

	loaded, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, "alice", loaded.Name)
	assert.Len(t, loaded.Embedding, 3)
}

func TestLoadAllProfiles(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"bob", "alice"} {
		_, err := (&Profile{Name: name, Embedding: []float32{1}}).Save(dir)
		require.NoError(t, err)
	}

	// Corrupt and unrelated files are skipped.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "junk.bin"), []byte{1, 2}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	profiles, err := LoadAllProfiles(dir)
	require.NoError(t, err)
	assert.Len(t, profiles, 2)

	names, err := ListProfiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, names)
}

func TestLoadAllProfilesMissingDir(t *testing.T) {
	profiles, err := LoadAllProfiles(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, profiles)
}

func TestRemoveProfile(t *testing.T) {
	dir := t.TempDir()
	_, err := (&Profile{Name: "carol", Embedding: []float32{1}}).Save(dir)
	require.NoError(t, err)

	require.NoError(t, RemoveProfile(dir, "carol"))
	assert.Error(t, RemoveProfile(dir, "carol"))
}
