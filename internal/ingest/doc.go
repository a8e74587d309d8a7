// Package ingest turns one paper into graph store state: resolve its text, chunk it, embed
// the chunks and write paper, chunks, authors and citations in a single store transaction.
//
// Concurrent requests for the same paper share one in-flight execution. Re-ingesting a paper
// converges on the same final state.
package ingest
