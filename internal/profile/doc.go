// Package profile defines the job keys, records, states, and collaborator
// interfaces shared by the year-in-review store backends, the dispatcher,
// the worker pool, and the HTTP gateway.
package profile
