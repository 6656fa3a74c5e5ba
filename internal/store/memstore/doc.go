// Package memstore provides mutex-guarded in-memory implementations of the
// store interfaces. They honour the same contracts as the postgres stores
// (upsert by key, compare-and-set on active tasks) and are injected by tests
// and by single-process tooling.
package memstore
