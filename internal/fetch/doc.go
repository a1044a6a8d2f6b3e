// Package fetch downloads prebuilt package artifacts over HTTP(S) with
// checksum verification and bounded retry.
//
// Transient failures (connection errors, timeouts, 5xx responses) are
// retried with exponential backoff up to a configured attempt ceiling.
// Client errors (4xx) and digest mismatches are terminal and never
// retried. Downloads stream into a temporary file that is atomically
// renamed into place only after full verification, so a crash or failed
// attempt never leaves a corrupt artifact at the final staging path.
package fetch
