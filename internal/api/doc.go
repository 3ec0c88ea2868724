// Package api hosts the HTTP server, middleware, and handlers for the
// batching service. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/sessions/{session_id}/archive for archive uploads.
//   - GET /v1/sessions/{session_id}/progress for the SSE progress stream.
package api
