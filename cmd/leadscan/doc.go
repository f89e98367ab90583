// Package main hosts the leadscan service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, discovery, lead workflow and bulk-analysis endpoints.
//     Discovery streams NDJSON while the provider pages, saving each accepted place as a Scraped lead.
//   - Enrichment: internal/enrich resolves canonical contact fields through the Places details endpoint, probes the
//     lead's website (colly fetch plus a separate TLS handshake) and commits the outcome in one transaction.
//   - Dispatcher & queue: bulk requests become jobs recorded in the JobStore and pushed onto a bounded in-memory queue
//     sized by queue.depth; a fixed worker pool sized by queue.workers drains it, and each job fans its leads out with
//     enrich.concurrency in flight.
//   - Persistence & fanout: Postgres (pgx) holds leads, usage counters and jobs when database.dsn is set; otherwise
//     in-memory stores are used. A lead.analyzed notification is published to Pub/Sub when pubsub.project_id is set.
//   - Configuration & plumbing: Viper populates config from env/files; zap provides structured logging; Prometheus
//     metrics are exported via the metrics middleware and /metrics handler.
//
// Operational notes:
//   - Quota: every provider call increments a monthly counter; the counters reset on the first call of a new
//     billing month. GET /v1/usage reports them against places.nearby_monthly_limit/details_monthly_limit.
//   - Rate limiting: rate_limit.* paces provider calls; probe.per_host_rps paces website fetches per host.
//   - Shutdown: SIGINT/SIGTERM drains the HTTP server, cancels workers and closes the queue, pool and publisher.
//
// Quick checklist:
//   - Configure env vars: LEADSCAN_PLACES_API_KEY (or GOOGLE_PLACES_API_KEY), LEADSCAN_DATABASE_DSN (or
//     DATABASE_URL), PORT, LEADSCAN_PUBSUB_PROJECT_ID and LEADSCAN_AUTH_* when needed.
//   - Run locally: go run ./cmd/leadscan -config config.yaml (or rely solely on env overrides).
package main
