package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestScan_Directory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.eml"))
	writeFile(t, filepath.Join(root, "a.EML"))
	writeFile(t, filepath.Join(root, "nested", "archive.mbox"))
	writeFile(t, filepath.Join(root, "notes.txt"))

	inputs, err := NewScanner(root).Scan()
	require.NoError(t, err)

	assert.Equal(t, []Input{
		{Path: filepath.Join(root, "a.EML"), Kind: KindEML},
		{Path: filepath.Join(root, "b.eml"), Kind: KindEML},
		{Path: filepath.Join(root, "nested", "archive.mbox"), Kind: KindMbox},
	}, inputs)
}

func TestScan_FilesAndDuplicates(t *testing.T) {
	root := t.TempDir()
	eml := filepath.Join(root, "one.eml")
	raw := filepath.Join(root, "message.txt")
	writeFile(t, eml)
	writeFile(t, raw)

	inputs, err := NewScanner(eml, raw, root).Scan()
	require.NoError(t, err)

	assert.Equal(t, []Input{
		{Path: eml, Kind: KindEML},
		{Path: raw, Kind: KindEML},
	}, inputs, "explicit files are kept and repeats are dropped")

	n, err := NewScanner(root).Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestScan_MissingPath(t *testing.T) {
	_, err := NewScanner(filepath.Join(t.TempDir(), "nope")).Scan()
	assert.Error(t, err)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "eml", KindEML.String())
	assert.Equal(t, "mbox", KindMbox.String())
}
