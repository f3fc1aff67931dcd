package dictionary

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDictionary(t *testing.T) *BoltDictionary {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	d, err := Open(filepath.Join(t.TempDir(), "words.db"), 16, log)
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestImportAndLookup(t *testing.T) {
	d := openTestDictionary(t)

	n, err := d.Import(context.Background(), strings.NewReader("Apple\nbanana\n\nnot-a-word\n  cherry  \n"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	count, err := d.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	assert.True(t, d.IsValidWord("apple"))
	assert.True(t, d.IsValidWord("CHERRY"))
	assert.False(t, d.IsValidWord("durian"))
	assert.False(t, d.IsValidWord("not-a-word"))
	assert.False(t, d.IsValidWord(""))
}

func TestImportInvalidatesCachedMiss(t *testing.T) {
	d := openTestDictionary(t)
	assert.False(t, d.IsValidWord("kiwi"))

	_, err := d.Import(context.Background(), strings.NewReader("kiwi\n"))
	require.NoError(t, err)
	assert.True(t, d.IsValidWord("kiwi"))
}

func TestReopenKeepsWords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.db")
	log := logrus.New()
	log.SetOutput(io.Discard)

	d, err := Open(path, 16, log)
	require.NoError(t, err)
	_, err = d.Import(context.Background(), strings.NewReader("mango\n"))
	require.NoError(t, err)
	require.NoError(t, d.Close())

	d, err = Open(path, 16, log)
	require.NoError(t, err)
	defer d.Close()
	assert.True(t, d.IsValidWord("mango"))
}

func TestNormalize(t *testing.T) {
	w, ok := Normalize("  Hello ")
	assert.True(t, ok)
	assert.Equal(t, "hello", w)

	_, ok = Normalize("don't")
	assert.False(t, ok)
}

func TestImportFile(t *testing.T) {
	d := openTestDictionary(t)
	path := filepath.Join(t.TempDir(), "words.txt")
	require.NoError(t, os.WriteFile(path, []byte("sing\nring\n"), 0600))

	n, err := d.ImportFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, d.IsValidWord("ring"))

	_, err = d.ImportFile(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
