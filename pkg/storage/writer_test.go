package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testColumns = []string{"id", "name", "reason"}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestOpenWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "out.csv")

	w, err := Open(path, testColumns)
	require.NoError(t, err)
	require.NoError(t, w.WriteRow([]string{"1", "alice", "cheating"}))
	require.NoError(t, w.Close())

	w, err = Open(path, testColumns)
	require.NoError(t, err)
	require.NoError(t, w.WriteRow([]string{"2", "bob", "toxic"}))
	require.NoError(t, w.Close())

	assert.Equal(t, "id,name,reason\n1,alice,cheating\n2,bob,toxic\n", readFile(t, path))
}

func TestOpenWritesHeaderForEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	w, err := Open(path, testColumns)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, "id,name,reason\n", readFile(t, path))
}

func TestFlushQuotesFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	w, err := Open(path, testColumns)
	require.NoError(t, err)

	require.NoError(t, w.WriteRow([]string{"1", "a, \"b\"", "line1\nline2"}))
	require.NoError(t, w.Flush())
	assert.Equal(t, 1, w.RowsWritten())
	require.NoError(t, w.Close())

	n, err := CountRows(path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestWriteRowRejectsWrongWidth(t *testing.T) {
	w, err := Open(filepath.Join(t.TempDir(), "out.csv"), testColumns)
	require.NoError(t, err)
	defer w.Close()

	assert.Error(t, w.WriteRow([]string{"only-one"}))
}

func TestRowsAreNotVisibleBeforeFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	w, err := Open(path, testColumns)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.WriteRow([]string{"1", "a", "b"}))
	assert.Equal(t, "id,name,reason\n", readFile(t, path))

	require.NoError(t, w.Flush())
	assert.Equal(t, "id,name,reason\n1,a,b\n", readFile(t, path))
}

func TestDiscardDropsBufferedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	w, err := Open(path, testColumns)
	require.NoError(t, err)

	require.NoError(t, w.WriteRow([]string{"1", "a", "b"}))
	require.NoError(t, w.Flush())
	require.NoError(t, w.WriteRow([]string{"2", "c", "d"}))
	w.Discard()
	require.NoError(t, w.WriteRow([]string{"3", "e", "f"}))
	require.NoError(t, w.Close())

	assert.Equal(t, "id,name,reason\n1,a,b\n3,e,f\n", readFile(t, path))
	assert.Equal(t, 2, w.RowsWritten())
}

func TestCloseIsIdempotent(t *testing.T) {
	w, err := Open(filepath.Join(t.TempDir(), "out.csv"), testColumns)
	require.NoError(t, err)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.WriteRow([]string{"1", "2", "3"}), ErrClosed)
	assert.ErrorIs(t, w.Flush(), ErrClosed)
}

// shortFile writes only part of each buffer to the real file, then fails
type shortFile struct {
	*os.File
	limit int
}

func (f *shortFile) Write(p []byte) (int, error) {
	if len(p) > f.limit {
		n, _ := f.File.Write(p[:f.limit])
		return n, errors.New("disk full")
	}
	return f.File.Write(p)
}

func TestFailedFlushTruncatesPartialRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	w, err := Open(path, testColumns)
	require.NoError(t, err)
	require.NoError(t, w.WriteRow([]string{"1", "a", "b"}))
	require.NoError(t, w.Flush())

	w.file = &shortFile{File: w.file.(*os.File), limit: 5}
	require.NoError(t, w.WriteRow([]string{"2", "long name", "long reason"}))
	require.NoError(t, w.WriteRow([]string{"3", "c", "d"}))

	err = w.Flush()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, "id,name,reason\n1,a,b\n", readFile(t, path))
	assert.Equal(t, 1, w.RowsWritten())

	// a later successful flush appends cleanly after the rollback
	w.file = w.file.(*shortFile).File
	require.NoError(t, w.WriteRow([]string{"4", "e", "f"}))
	require.NoError(t, w.Close())
	assert.Equal(t, "id,name,reason\n1,a,b\n4,e,f\n", readFile(t, path))
}
