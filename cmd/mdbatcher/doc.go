// Package main hosts the markdown batching service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes the archive upload endpoints, the progress
//     event stream, health probes, and Prometheus metrics. Uploads accept either a
//     multipart form or a raw application/zip body and stream the processed archive
//     back as an attachment.
//   - Pipeline: internal/pipeline extracts markdown entries from the uploaded ZIP,
//     strips YAML frontmatter, batches large uploads into merged parts, flags merged
//     parts that exceed the word limit, and repacks everything into the response
//     archive. Each processed file advances the upload's progress session.
//   - Sessions: internal/session keeps per-upload progress in a mutex-guarded
//     registry. Watchers get coalescing buffered channels so a slow SSE client can
//     never stall the pipeline. A janitor goroutine evicts completed sessions after
//     a grace period and abandons stuck ones past the max age.
//   - Configuration & plumbing: Viper populates config from env/files; zap provides
//     structured logging; Prometheus metrics are exported via the metrics middleware
//     and /metrics handler. The service is stateless across requests, suitable for
//     Cloud Run scale-out.
//
// Operational notes:
//   - Concurrency model: each upload is processed synchronously within its request;
//     the session registry fans progress out to any number of stream watchers.
//     Shutdown is coordinated via context cancellation from main.
//   - Observability: zap logs carry session IDs at key transitions; Prometheus
//     counters/histograms track uploads, batches, and stream activity.
//   - Cloud Run: the HTTP server listens on the configured port. Health endpoints
//     (/healthz, /readyz) remain lightweight; the process reacts to SIGTERM for
//     graceful drain.
//
// Quick checklist:
//   - Configure env vars: MDBATCHER_SERVER_PORT, MDBATCHER_UPLOAD_MAX_BYTES,
//     MDBATCHER_SESSION_GRACE_SECONDS, MDBATCHER_STREAM_HEARTBEAT_SECONDS, and
//     MDBATCHER_AUTH_API_KEY when key auth is required.
//   - Run locally: go run ./cmd/mdbatcher -config config.yaml (or rely solely on
//     env overrides).
package main
