// Package observability provides structured logging and in-process metrics
// for the SorobAI backend.
//
// This package implements:
//   - zap logger construction from configuration
//   - request counters, latency and token totals for the status endpoint
package observability
