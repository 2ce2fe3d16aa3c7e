// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying storage mechanism from the
// scheduling core, keeping the review orchestrator independent of the
// specific database technology.
package store
