package archive

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestExtractReturnsMarkdownInOrder(t *testing.T) {
	t.Parallel()

	payload := buildZip(t, []zipEntry{
		{name: "b.md", content: "second"},
		{name: "readme.txt", content: "ignored"},
		{name: "docs/", content: ""},
		{name: "docs/a.md", content: "first in docs"},
		{name: "notes.markdown", content: "long extension"},
	})

	files, err := NewReader(zap.NewNop()).Extract(payload)
	require.NoError(t, err)
	require.Len(t, files, 3)
	require.Equal(t, "b.md", files[0].Path)
	require.Equal(t, "second", string(files[0].Content))
	require.Equal(t, "docs/a.md", files[1].Path)
	require.Equal(t, "notes.markdown", files[2].Path)
}

func TestExtractInvalidArchive(t *testing.T) {
	t.Parallel()

	_, err := NewReader(nil).Extract([]byte("definitely not a zip"))
	require.ErrorIs(t, err, ErrInvalidArchive)
}

func TestExtractPathTraversal(t *testing.T) {
	t.Parallel()

	payload := buildZip(t, []zipEntry{
		{name: "../escape.md", content: "evil"},
	})

	_, err := NewReader(nil).Extract(payload)
	require.ErrorIs(t, err, ErrPathTraversal)
}

func TestExtractEmptyArchive(t *testing.T) {
	t.Parallel()

	payload := buildZip(t, nil)
	files, err := NewReader(nil).Extract(payload)
	require.NoError(t, err)
	require.Empty(t, files)
}

func TestExtractNoMarkdownEntries(t *testing.T) {
	t.Parallel()

	payload := buildZip(t, []zipEntry{
		{name: "image.png", content: "binary"},
		{name: "data.json", content: "{}"},
	})
	files, err := NewReader(nil).Extract(payload)
	require.NoError(t, err)
	require.Empty(t, files)
}

func TestBuildRoundTripPreservesOrder(t *testing.T) {
	t.Parallel()

	data, err := Build([]OutputEntry{
		{Name: "one.md", Content: "alpha"},
		{Name: "two.md", Content: "beta"},
	})
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	require.Equal(t, "one.md", zr.File[0].Name)
	require.Equal(t, "two.md", zr.File[1].Name)
}

func TestBuildEmptyArchiveIsValid(t *testing.T) {
	t.Parallel()

	data, err := Build(nil)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Empty(t, zr.File)
}

type zipEntry struct {
	name    string
	content string
}

func buildZip(t *testing.T, entries []zipEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(e.content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
