// Package pipeline runs one upload through extraction, normalization,
// batching, classification, and repackaging, keeping the session progress
// tracker in step with each consumed file.
package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/md-batcher/internal/archive"
	"github.com/JakeFAU/md-batcher/internal/markdown"
	"github.com/JakeFAU/md-batcher/internal/metrics"
	"github.com/JakeFAU/md-batcher/internal/planner"
	"github.com/JakeFAU/md-batcher/internal/session"
)

// Result is the outcome of one processed upload.
type Result struct {
	Archive    []byte
	TotalFiles int
	Batches    int
	Merged     bool
}

// Pipeline executes the upload-to-download flow for one session at a time.
// Concurrent invocations for distinct sessions are independent.
type Pipeline struct {
	reader   *archive.Reader
	sessions *session.Registry
	logger   *zap.Logger
}

// New constructs a Pipeline.
func New(reader *archive.Reader, sessions *session.Registry, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		reader:   reader,
		sessions: sessions,
		logger:   logger,
	}
}

// Process validates payload, registers the session, and runs the pipeline to
// completion. Archive validation happens before the session is created, so a
// rejected payload leaves no session behind. The session is advanced once per
// consumed file and completed when the output archive is final; on an
// internal failure the session is evicted instead, which terminates any
// attached progress streams.
//
// The ctx only gates early abandonment before the session exists; once
// created, the run is carried to a terminal session state.
func (p *Pipeline) Process(ctx context.Context, sessionID string, payload []byte) (*Result, error) {
	files, err := p.reader.Extract(payload)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("upload abandoned: %w", err)
	}
	if err := p.sessions.Create(sessionID, len(files)); err != nil {
		return nil, err
	}
	metrics.ObserveArchiveBytes("in", len(payload))

	normalized := make([]planner.NormalizedFile, 0, len(files))
	for _, f := range files {
		content, meta := markdown.Normalize(string(f.Content))
		normalized = append(normalized, planner.NormalizedFile{
			Path:    f.Path,
			Title:   meta.Title,
			Content: content,
		})
		p.sessions.Advance(sessionID)
	}
	metrics.ObserveFilesProcessed(len(files))

	batches := planner.Plan(normalized)
	planner.Classify(batches)

	entries := make([]archive.OutputEntry, 0, len(batches))
	merged := false
	for _, b := range batches {
		kind := "passthrough"
		if b.Merged() {
			kind = "merged"
			merged = true
		}
		metrics.ObserveBatch(kind, b.OverLimit)
		entries = append(entries, archive.OutputEntry{Name: b.Name, Content: b.MergedContent})
	}

	out, err := archive.Build(entries)
	if err != nil {
		p.sessions.Evict(sessionID)
		return nil, fmt.Errorf("build output archive: %w", err)
	}
	p.sessions.Complete(sessionID)
	metrics.ObserveArchiveBytes("out", len(out))

	p.logger.Info("upload processed",
		zap.String("session_id", sessionID),
		zap.Int("files", len(files)),
		zap.Int("batches", len(batches)),
		zap.Bool("merged", merged),
	)
	return &Result{
		Archive:    out,
		TotalFiles: len(files),
		Batches:    len(batches),
		Merged:     merged,
	}, nil
}
