// Package api hosts the HTTP server, middleware, and REST handlers for operator
// access. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/discover streams a discovery run as NDJSON and saves new leads.
//   - GET /v1/board groups visible leads by workflow status.
//   - /v1/leads/... for reading leads, moving them through the workflow and
//     running a single analysis.
//   - POST /v1/analyze/bulk and GET /v1/jobs/{job_id} for queued analysis.
//   - GET /v1/usage for provider usage against the monthly limits.
package api
