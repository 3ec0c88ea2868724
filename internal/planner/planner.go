// Package planner decides how normalized Markdown files map onto output
// archive entries: pass-through below the merge cutoff, fixed-size merged
// batches above it, with oversized batches flagged by word count.
package planner

import (
	"fmt"
	"path"
	"strings"

	"github.com/JakeFAU/md-batcher/internal/markdown"
)

// Fixed batching policy. These are deliberately not configuration.
const (
	// PassThroughMax is the largest file count emitted without merging.
	PassThroughMax = 50
	// MergeBatchSize is the number of files merged per output entry.
	MergeBatchSize = 49
	// WordLimit is the per-batch word count above which a batch is flagged.
	WordLimit = 50000
	// OverLimitSuffix is inserted before the extension of flagged entries.
	OverLimitSuffix = "_OVER50000WORDS"
)

// NormalizedFile is a source file after frontmatter removal.
type NormalizedFile struct {
	Path    string
	Title   string
	Content string
}

// Batch is one output archive entry: a single pass-through file or an ordered
// merge of up to MergeBatchSize files.
type Batch struct {
	Name          string
	Members       []NormalizedFile
	MergedContent string
	WordCount     int
	OverLimit     bool
}

// Merged reports whether the batch holds more than one source file.
func (b Batch) Merged() bool {
	return len(b.Members) > 1
}

// Plan partitions files into ordered batches. With PassThroughMax files or
// fewer each file becomes its own batch named after its base name (flattened,
// de-duplicated); above the cutoff files are merged in original order into
// consecutive groups of MergeBatchSize named merged_part{N}.md. Zero files
// yields zero batches.
func Plan(files []NormalizedFile) []Batch {
	if len(files) == 0 {
		return nil
	}
	if len(files) <= PassThroughMax {
		return planPassThrough(files)
	}
	return planMerged(files)
}

// Classify computes the batch word count and flags batches whose count
// strictly exceeds WordLimit by renaming the output entry. Each batch is
// judged on its own count only.
func Classify(batches []Batch) {
	for i := range batches {
		b := &batches[i]
		b.WordCount = markdown.CountWords(b.MergedContent)
		if b.WordCount > WordLimit {
			b.OverLimit = true
			b.Name = insertSuffix(b.Name, OverLimitSuffix)
		}
	}
}

func planPassThrough(files []NormalizedFile) []Batch {
	batches := make([]Batch, 0, len(files))
	seen := make(map[string]int, len(files))
	for _, f := range files {
		name := uniqueName(path.Base(f.Path), seen)
		batches = append(batches, Batch{
			Name:          name,
			Members:       []NormalizedFile{f},
			MergedContent: f.Content,
		})
	}
	return batches
}

func planMerged(files []NormalizedFile) []Batch {
	batches := make([]Batch, 0, (len(files)+MergeBatchSize-1)/MergeBatchSize)
	for start := 0; start < len(files); start += MergeBatchSize {
		end := start + MergeBatchSize
		if end > len(files) {
			end = len(files)
		}
		members := files[start:end]
		var sb strings.Builder
		for _, m := range members {
			sb.WriteString("## ")
			sb.WriteString(memberLabel(m))
			sb.WriteString("\n\n")
			sb.WriteString(m.Content)
			sb.WriteString("\n\n")
		}
		batches = append(batches, Batch{
			Name:          fmt.Sprintf("merged_part%d.md", len(batches)+1),
			Members:       members,
			MergedContent: sb.String(),
		})
	}
	return batches
}

// memberLabel picks the heading that marks a file boundary inside merged
// content: the frontmatter title when one was present, else the base name.
func memberLabel(f NormalizedFile) string {
	if f.Title != "" {
		return f.Title
	}
	return path.Base(f.Path)
}

// uniqueName disambiguates flattened base names so output entries stay unique
// within the archive.
func uniqueName(base string, seen map[string]int) string {
	n := seen[base]
	seen[base] = n + 1
	if n == 0 {
		return base
	}
	return insertSuffix(base, fmt.Sprintf("_%d", n))
}

func insertSuffix(name, suffix string) string {
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext) + suffix + ext
}
