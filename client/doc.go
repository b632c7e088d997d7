// Package client provides the JSON-over-HTTP client for the Surface API
// and the optimistic mutation layer built on top of it.
//
// Client maps the /api/v1 REST surface onto domain types: wire payloads
// are snake_case JSON and are converted at the boundary so callers only
// handle finding, asset, and audit types. Transient failures (transport
// errors, HTTP 5xx, 429) are retried with doubling backoff; 4xx responses
// are never retried.
//
// Mutator wraps the client's mutations with optimistic local application:
// the finding is updated in memory before the API call, finding-related
// cache entries are invalidated on success, and the exact pre-mutation
// value is restored on failure. Illegal status transitions are rejected
// locally without touching the network.
package client
