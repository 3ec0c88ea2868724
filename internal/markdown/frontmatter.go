// Package markdown normalizes Markdown document content before batching.
package markdown

import (
	"strings"

	"gopkg.in/yaml.v3"
)

const delimiter = "---"

// Meta holds the fields extracted from a document's YAML frontmatter.
// Only fields the merge step cares about are decoded.
type Meta struct {
	Title string `yaml:"title"`
}

// Normalize strips a leading YAML frontmatter block from content and returns
// the remaining document plus any metadata decoded from the block.
//
// A frontmatter block opens with a line consisting solely of "---" as the very
// first line and closes with the next such line. Both delimiter lines and
// everything between them are removed; leading blank lines of the remainder
// are trimmed. An opening delimiter with no matching close is treated as no
// frontmatter and the content passes through untouched. The operation is a
// no-op on already-normalized content.
func Normalize(content string) (string, Meta) {
	block, rest, ok := splitFrontmatter(content)
	if !ok {
		return content, Meta{}
	}
	var meta Meta
	// Undecodable YAML still strips the block; only the metadata is lost.
	if err := yaml.Unmarshal([]byte(block), &meta); err != nil {
		meta = Meta{}
	}
	return strings.TrimLeft(rest, "\n"), meta
}

// splitFrontmatter returns the raw block between the delimiters and the
// content after the closing delimiter. ok is false when no complete block
// opens the document.
func splitFrontmatter(content string) (block, rest string, ok bool) {
	if !isDelimiterLine(firstLine(content)) {
		return "", "", false
	}
	offset := len(firstLine(content))
	if offset < len(content) {
		offset++ // consume the newline after the opening delimiter
	}
	scan := content[offset:]
	for {
		line := firstLine(scan)
		if isDelimiterLine(line) {
			blockEnd := len(content) - len(scan)
			restStart := blockEnd + len(line)
			if restStart < len(content) {
				restStart++ // consume the newline after the closing delimiter
			}
			return content[offset:blockEnd], content[restStart:], true
		}
		if len(line) == len(scan) {
			return "", "", false // ran out of lines without a closing delimiter
		}
		scan = scan[len(line)+1:]
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func isDelimiterLine(line string) bool {
	return strings.TrimRight(line, "\r") == delimiter
}
