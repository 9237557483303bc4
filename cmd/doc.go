// Package cmd defines the yearreview command line.
//
// Architecture overview:
//   - HTTP API: internal/api.Server accepts profile requests, validates them, and hands them to the dispatcher.
//     Clients poll the status route until the profile is done, then read it.
//   - Dispatcher & queue: the dispatcher consults the profile store, atomically writes a pending marker for new
//     keys, and pushes one task per accepted key onto a bounded in-memory queue drained by a fixed worker pool.
//     Concurrent submits for the same key start at most one task; the store's insert-if-absent decides the winner.
//   - Worker: fetches the year's contributions from the GitHub GraphQL API with the caller's token, saves the
//     summary as the key's completed context, optionally archives it (memory/local/GCS) and publishes a Pub/Sub
//     notification, then stars the project repository on a best-effort basis.
//   - Persistence: memory, SQLite, Postgres (pgx + goose migrations), or Redis. Pending markers only mean
//     something while the process that wrote them is alive, so serve runs the orphan reconciler before listening.
//   - Configuration & plumbing: Viper populates config from a file and YEARREVIEW_* env vars; zap provides
//     structured logging; Prometheus metrics are exported via the metrics middleware and /metrics.
//
// Operational notes:
//   - A failed fetch leaves the key waiting until the next restart. There is no retry and no failed state.
//   - Cloud Run: the HTTP server listens on PORT when set and drains workers on SIGTERM.
//   - yearreview reconcile runs the orphan sweep on its own, for maintenance against a shared store.
package cmd
