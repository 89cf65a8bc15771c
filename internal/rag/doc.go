// Package rag turns a raw similarity search into the context set handed to the
// generation step.
//
// This package provides:
//   - Query intent classification (language, code, concepts, error help, full token contract)
//   - Fragment metadata classification at ingest time
//   - Markdown chunking that keeps code fences intact where possible
//   - Re-ranking of search candidates with the canonical-example override
//
// Everything here is pure CPU work over one request's data; I/O lives in
// services/retrieval and services/ingest.
package rag
