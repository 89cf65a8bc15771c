// Package sqlite provides a single-file store for fragments and request logs.
//
// Embeddings are kept as little-endian float32 BLOBs and searched with a
// brute-force cosine scan, which is adequate for a documentation corpus of a
// few thousand fragments. Use the postgres package when pgvector is available.
package sqlite
