// Package preflight provides readiness checks for the services and
// filesystem paths a workspace depends on.
//
// These checks run in two contexts:
//   - "anniversary serve" runs the directory checks before it listens, so a
//     read-only blob directory fails at start-up instead of on the first upload.
//   - "anniversary doctor" runs RunAll and prints each Result.
//
// Checks for optional features are skipped when the feature is not configured.
package preflight
