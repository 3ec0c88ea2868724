// Package archive handles ZIP extraction and repackaging of Markdown files.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Sentinel errors surfaced to the HTTP boundary.
var (
	// ErrInvalidArchive marks payloads that are not well-formed ZIP data.
	ErrInvalidArchive = errors.New("invalid zip archive")
	// ErrPathTraversal marks archives with entries escaping the extraction root.
	ErrPathTraversal = errors.New("archive entry escapes extraction root")
)

// Markdown extensions accepted by the reader.
var markdownExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
}

// SourceFile is one Markdown entry extracted from the input archive, in
// archive iteration order. Content is immutable once extracted.
type SourceFile struct {
	Path    string
	Content []byte
}

// Reader validates ZIP payloads and extracts their Markdown entries.
type Reader struct {
	logger *zap.Logger
}

// NewReader constructs a Reader.
func NewReader(logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{logger: logger}
}

// Extract validates data as a ZIP archive and returns its Markdown entries in
// archive order. Directory entries are skipped and non-Markdown entries are
// ignored. Zero Markdown entries is not an error. Entries are staged through
// a scoped temporary directory which is removed on every exit path.
func (r *Reader) Extract(data []byte) ([]SourceFile, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}

	root, err := os.MkdirTemp("", "mdbatcher-*")
	if err != nil {
		return nil, fmt.Errorf("create extraction dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(root); rmErr != nil {
			r.logger.Warn("extraction dir cleanup failed", zap.String("dir", root), zap.Error(rmErr))
		}
	}()

	var files []SourceFile
	for _, entry := range zr.File {
		name := path.Clean(strings.ReplaceAll(entry.Name, `\`, "/"))
		if !filepath.IsLocal(filepath.FromSlash(name)) {
			return nil, fmt.Errorf("%w: %q", ErrPathTraversal, entry.Name)
		}
		if entry.FileInfo().IsDir() {
			continue
		}
		if !markdownExtensions[strings.ToLower(path.Ext(name))] {
			continue
		}
		content, err := r.stage(root, name, entry)
		if err != nil {
			return nil, err
		}
		files = append(files, SourceFile{Path: name, Content: content})
	}
	r.logger.Debug("archive extracted",
		zap.Int("entries", len(zr.File)),
		zap.Int("markdown_files", len(files)),
	)
	return files, nil
}

// stage writes one entry under root and reads it back.
func (r *Reader) stage(root, name string, entry *zip.File) ([]byte, error) {
	dest := filepath.Join(root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, fmt.Errorf("stage %s: %w", name, err)
	}
	src, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrInvalidArchive, name, err)
	}
	defer src.Close() //nolint:errcheck // read-only handle

	out, err := os.Create(dest)
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", name, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close() //nolint:errcheck,gosec // write error takes precedence
		return nil, fmt.Errorf("%w: read %s: %v", ErrInvalidArchive, name, err)
	}
	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("stage %s: %w", name, err)
	}
	content, err := os.ReadFile(dest)
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", name, err)
	}
	return content, nil
}
