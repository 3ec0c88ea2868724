package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/md-batcher/internal/archive"
	"github.com/JakeFAU/md-batcher/internal/metrics"
	"github.com/JakeFAU/md-batcher/internal/session"
)

// Error codes carried in the structured error body.
const (
	codeMissingFile      = "missing_file"
	codeNotZip           = "not_zip"
	codeInvalidArchive   = "invalid_archive"
	codePathTraversal    = "path_traversal"
	codeDuplicateSession = "duplicate_session"
	codeInternal         = "internal"
)

// Download names for responses where no upload filename applies.
const (
	mergedDownloadName    = "merged_files.zip"
	processedDownloadName = "processed_files.zip"
)

// uploadArchive handles POST /v1/sessions/{session_id}/archive and
// POST /v1/sessions/archive (server-issued id). The payload is either a
// multipart form with a "file" field or a raw application/zip body. On
// success the processed archive is returned as an attachment; the session id
// is echoed in X-Session-ID either way.
func (s *Server) uploadArchive(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	if sessionID == "" {
		id, err := s.idGen.NewID()
		if err != nil {
			s.logger.Error("session id generation failed", zap.Error(err))
			metrics.ObserveUpload("server_error")
			writeError(w, http.StatusInternalServerError, codeInternal, "failed to issue session id", "")
			return
		}
		sessionID = id
	}

	payload, uploadName, ok := s.readPayload(w, r)
	if !ok {
		metrics.ObserveUpload("client_error")
		return
	}

	res, err := s.pipeline.Process(r.Context(), sessionID, payload)
	if err != nil {
		s.writeProcessError(w, sessionID, err)
		return
	}
	metrics.ObserveUpload("success")

	downloadName := uploadName
	switch {
	case res.Merged:
		downloadName = mergedDownloadName
	case downloadName == "":
		downloadName = processedDownloadName
	}
	w.Header().Set("X-Session-ID", sessionID)
	if digest, err := s.hasher.Hash(res.Archive); err == nil {
		w.Header().Set("X-Archive-SHA256", digest)
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadName))
	if _, err := w.Write(res.Archive); err != nil {
		s.logger.Warn("archive response write failed",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
}

// readPayload extracts the archive bytes from a multipart form or a raw
// body, applying the configured size limit. It writes the client error
// itself and returns ok=false on rejection.
func (s *Server) readPayload(w http.ResponseWriter, r *http.Request) (payload []byte, uploadName string, ok bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(mediaType, "multipart/") {
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, codeMissingFile, "no file part in request", "")
			return nil, "", false
		}
		defer file.Close() //nolint:errcheck // read-only handle
		if header.Filename == "" {
			writeError(w, http.StatusBadRequest, codeMissingFile, "no file selected", "")
			return nil, "", false
		}
		if !strings.HasSuffix(strings.ToLower(header.Filename), ".zip") {
			writeError(w, http.StatusBadRequest, codeNotZip, "only ZIP files are allowed", header.Filename)
			return nil, "", false
		}
		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidArchive, "failed to read upload", "")
			return nil, "", false
		}
		return data, header.Filename, true
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidArchive, "failed to read upload", "")
		return nil, "", false
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, codeMissingFile, "empty request body", "")
		return nil, "", false
	}
	return data, "", true
}

func (s *Server) writeProcessError(w http.ResponseWriter, sessionID string, err error) {
	switch {
	case errors.Is(err, archive.ErrInvalidArchive):
		metrics.ObserveUpload("client_error")
		writeError(w, http.StatusBadRequest, codeInvalidArchive, "invalid ZIP file", "")
	case errors.Is(err, archive.ErrPathTraversal):
		metrics.ObserveUpload("client_error")
		writeError(w, http.StatusBadRequest, codePathTraversal, "archive entry escapes extraction root", "")
	case errors.Is(err, session.ErrDuplicateSession):
		metrics.ObserveUpload("client_error")
		writeError(w, http.StatusConflict, codeDuplicateSession, "session id already active", sessionID)
	default:
		s.logger.Error("upload processing failed",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		metrics.ObserveUpload("server_error")
		writeError(w, http.StatusInternalServerError, codeInternal, "failed to process archive", "")
	}
}

// streamProgress handles GET /v1/sessions/{session_id}/progress as a
// Server-Sent Events stream: one data message per pipeline advancement, the
// final message carries done=true, then the stream closes. An unknown
// session id yields an immediately terminated empty stream. A disconnecting
// client stops the stream only; the pipeline runs to completion regardless.
func (s *Server) streamProgress(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, codeInternal, "streaming unsupported", "")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.sessions.Watch(sessionID)
	metrics.IncActiveStreams()
	defer metrics.DecActiveStreams()

	heartbeat := time.NewTicker(s.cfg.StreamHeartbeat())
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.sessions.Unwatch(sessionID, ch)
			return
		case <-heartbeat.C:
			// Comment line keeps idle connections alive through proxies.
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				s.sessions.Unwatch(sessionID, ch)
				return
			}
			flusher.Flush()
		case snap, open := <-ch:
			if !open {
				return
			}
			if err := writeSSE(w, snap); err != nil {
				s.sessions.Unwatch(sessionID, ch)
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w io.Writer, snap session.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write sse frame: %w", err)
	}
	return nil
}
