// Package client is the Go client for the Wayne HTTP API.
//
// HTTPClient keeps the session in memory: the access token is attached to
// every authenticated call and refreshed once, transparently, when the
// server rejects it. A refresh that itself fails with 401 drops both tokens.
//
// Idempotent requests are retried on network errors and 5xx responses, at
// most three attempts with exponential backoff capped at two seconds.
//
// Failures are reported as *APIError values that match the sentinel errors
// in this package through errors.Is.
package client
