// Package cache holds query results keyed by fingerprint: an in-process LRU
// with per-entry TTL, a Redis tier for sharing results between processes, and
// a two-level combination of both.
package cache
