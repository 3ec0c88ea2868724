package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
)

// OutputEntry is one named blob destined for the output archive.
type OutputEntry struct {
	Name    string
	Content string
}

// Build serializes entries into a single ZIP byte stream, one archive entry
// per element in input order. Building is all-or-nothing: any write error
// discards the buffer so a partial archive is never returned. An empty entry
// list yields a valid empty archive.
func Build(entries []OutputEntry) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, entry := range entries {
		w, err := zw.Create(entry.Name)
		if err != nil {
			zw.Close() //nolint:errcheck,gosec // buffer is discarded
			return nil, fmt.Errorf("create entry %s: %w", entry.Name, err)
		}
		if _, err := w.Write([]byte(entry.Content)); err != nil {
			zw.Close() //nolint:errcheck,gosec // buffer is discarded
			return nil, fmt.Errorf("write entry %s: %w", entry.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}
