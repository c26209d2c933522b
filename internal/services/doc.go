// Package services defines shared utilities consumed by the timeline manager
// and the external service clients.
//
// Key responsibilities:
//   - Context helpers that stamp photo IDs, operation names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so callers can tell
//     transient faults (retried by the generative client) from permanent
//     ones with errors.Is.
//   - Message, which turns any failure into the text stored on an entry.
//
// Use these helpers when wiring new client code so error handling and
// observability stay uniform across packages.
package services
