package planner

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlanZeroFiles(t *testing.T) {
	t.Parallel()

	require.Empty(t, Plan(nil))
}

func TestPlanPassThroughAtCutoff(t *testing.T) {
	t.Parallel()

	files := makeFiles(50)
	batches := Plan(files)
	require.Len(t, batches, 50)
	for i, b := range batches {
		require.Len(t, b.Members, 1)
		require.False(t, b.Merged())
		require.Equal(t, files[i].Content, b.MergedContent, "pass-through content must be verbatim")
	}
}

func TestPlanPassThroughFlattensNestedPaths(t *testing.T) {
	t.Parallel()

	batches := Plan([]NormalizedFile{
		{Path: "deep/nested/tree/doc.md", Content: "x"},
	})
	require.Len(t, batches, 1)
	require.Equal(t, "doc.md", batches[0].Name)
}

func TestPlanPassThroughDeduplicatesNames(t *testing.T) {
	t.Parallel()

	batches := Plan([]NormalizedFile{
		{Path: "a/notes.md", Content: "one"},
		{Path: "b/notes.md", Content: "two"},
		{Path: "c/notes.md", Content: "three"},
	})
	require.Equal(t, "notes.md", batches[0].Name)
	require.Equal(t, "notes_1.md", batches[1].Name)
	require.Equal(t, "notes_2.md", batches[2].Name)
}

func TestPlanMerges150FilesInto49_49_49_3(t *testing.T) {
	t.Parallel()

	batches := Plan(makeFiles(150))
	require.Len(t, batches, 4)
	require.Len(t, batches[0].Members, 49)
	require.Len(t, batches[1].Members, 49)
	require.Len(t, batches[2].Members, 49)
	require.Len(t, batches[3].Members, 3)
	require.Equal(t, "merged_part1.md", batches[0].Name)
	require.Equal(t, "merged_part4.md", batches[3].Name)
}

func TestPlanMergeEvenlyDivisible(t *testing.T) {
	t.Parallel()

	batches := Plan(makeFiles(98))
	require.Len(t, batches, 2)
	require.Len(t, batches[0].Members, 49)
	require.Len(t, batches[1].Members, 49)
}

func TestPlanMergePreservesOrderAndBoundaries(t *testing.T) {
	t.Parallel()

	files := makeFiles(51)
	batches := Plan(files)
	require.Len(t, batches, 2)
	require.True(t, batches[0].Merged())

	merged := batches[0].MergedContent
	first := strings.Index(merged, files[0].Content)
	second := strings.Index(merged, files[1].Content)
	require.GreaterOrEqual(t, first, 0)
	require.Greater(t, second, first)
	require.Contains(t, merged, "## file000.md")
}

func TestPlanMergeUsesFrontmatterTitleAsLabel(t *testing.T) {
	t.Parallel()

	files := makeFiles(51)
	files[0].Title = "Chapter One"
	batches := Plan(files)
	require.Contains(t, batches[0].MergedContent, "## Chapter One")
	require.NotContains(t, batches[0].MergedContent, "## file000.md")
}

func TestClassifyThresholdIsExclusive(t *testing.T) {
	t.Parallel()

	exactly := Batch{Name: "merged_part1.md", MergedContent: words(50000)}
	over := Batch{Name: "merged_part2.md", MergedContent: words(50001)}
	batches := []Batch{exactly, over}
	Classify(batches)

	require.Equal(t, 50000, batches[0].WordCount)
	require.False(t, batches[0].OverLimit)
	require.Equal(t, "merged_part1.md", batches[0].Name)

	require.True(t, batches[1].OverLimit)
	require.Equal(t, "merged_part2_OVER50000WORDS.md", batches[1].Name)
}

// TestClassifyJudgesBatchesIndependently checks the suffix depends only on a
// batch's own word sum, never on the grand total across batches.
func TestClassifyJudgesBatchesIndependently(t *testing.T) {
	t.Parallel()

	batches := []Batch{
		{Name: "merged_part1.md", MergedContent: words(60000)},
		{Name: "merged_part2.md", MergedContent: words(10)},
	}
	Classify(batches)
	require.True(t, batches[0].OverLimit)
	require.False(t, batches[1].OverLimit)
}

func TestClassifyPassThroughBatch(t *testing.T) {
	t.Parallel()

	batches := []Batch{{Name: "huge.md", MergedContent: words(50001)}}
	Classify(batches)
	require.Equal(t, "huge_OVER50000WORDS.md", batches[0].Name)
}

func makeFiles(n int) []NormalizedFile {
	files := make([]NormalizedFile, n)
	for i := range files {
		files[i] = NormalizedFile{
			Path:    fmt.Sprintf("file%03d.md", i),
			Content: fmt.Sprintf("content of file %d", i),
		}
	}
	return files
}

func words(n int) string {
	return strings.Repeat("word ", n)
}
