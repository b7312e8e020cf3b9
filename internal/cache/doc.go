// Package cache memoizes ingested tables.
//
// Entries are keyed by the SHA-256 of the uploaded bytes plus the fingerprint
// of the ingest options, so the same file uploaded with the same settings is
// parsed once. The cache is bounded by the total size of the source files it
// represents and evicts the least recently used table first. Concurrent loads
// of the same key are collapsed into one.
package cache
