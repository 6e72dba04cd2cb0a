package labels

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patchlabel/internal/models"
)

func TestParseStrategy(t *testing.T) {
	for _, s := range []Strategy{Presence, Threshold, IndexLookup} {
		got, err := ParseStrategy(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	got, err := ParseStrategy("THRESHOLD")
	require.NoError(t, err)
	assert.Equal(t, Threshold, got)

	_, err = ParseStrategy("filename")
	assert.Error(t, err)
	assert.Equal(t, "Strategy(9)", Strategy(9).String())
}

func TestNeedsMask(t *testing.T) {
	assert.True(t, Presence.NeedsMask())
	assert.True(t, Threshold.NeedsMask())
	assert.False(t, IndexLookup.NeedsMask())
}

func TestLabelers(t *testing.T) {
	mask := maskWithCounts(3, 10, 0, 1)

	presence, err := NewLabeler(Presence, 0, nil)
	require.NoError(t, err)
	lv, err := presence.Label("a", &mask)
	require.NoError(t, err)
	assert.Equal(t, models.LabelVector{1, 1, 0}, lv)

	threshold, err := NewLabeler(Threshold, 5, nil)
	require.NoError(t, err)
	lv, err = threshold.Label("a", &mask)
	require.NoError(t, err)
	assert.Equal(t, models.LabelVector{0, 1, 0}, lv)

	_, err = presence.Label("a", nil)
	assert.Error(t, err)
	_, err = threshold.Label("a", nil)
	assert.Error(t, err)

	ix := NewIndex()
	require.NoError(t, ix.Set("a.png", models.LabelVector{0, 0, 1}))
	indexed, err := NewLabeler(IndexLookup, 0, ix)
	require.NoError(t, err)
	assert.Equal(t, IndexLookup, indexed.Strategy())
	lv, err = indexed.Label("a.png", nil)
	require.NoError(t, err)
	assert.Equal(t, models.LabelVector{0, 0, 1}, lv)
	_, err = indexed.Label("missing.png", nil)
	assert.Error(t, err)

	_, err = NewLabeler(IndexLookup, 0, nil)
	assert.Error(t, err)
	_, err = NewLabeler(Threshold, -1, nil)
	assert.True(t, errors.Is(err, ErrInvalidThreshold), "got %v", err)
}

func TestIndexRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "labels.yaml")

	ix := NewIndex()
	require.NoError(t, ix.Set("b.png", models.LabelVector{1, 0, 1}))
	require.NoError(t, ix.Set("a.png", models.LabelVector{0, 1, 0}))
	assert.Error(t, ix.Set("bad.png", models.LabelVector{2, 0, 0}))
	require.NoError(t, SaveIndex(ix, path))

	loaded, err := LoadIndex(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png", "b.png"}, loaded.IDs())
	lv, ok := loaded.Lookup("b.png")
	require.True(t, ok)
	assert.Equal(t, models.LabelVector{1, 0, 1}, lv)
}

func TestLoadIndexRejectsBadEntries(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"nonbinary.yaml": "version: 1\nlabels:\n  a.png: [0, 2, 0]\n",
		"short.yaml":     "version: 1\nlabels:\n  a.png: [0, 1]\n",
		"version.yaml":   "version: 7\nlabels: {}\n",
		"garbage.yaml":   "labels: [",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))
			_, err := LoadIndex(path)
			assert.Error(t, err)
		})
	}

	_, err := LoadIndex(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
