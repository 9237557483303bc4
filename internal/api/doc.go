// Package api hosts the HTTP server, middleware, and REST handlers for the
// year-in-review service. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/profiles to request a profile.
//   - GET /v1/profiles/{username}/{year}/status to poll its state.
//   - GET /v1/profiles/{username}/{year} to read the finished profile.
package api
