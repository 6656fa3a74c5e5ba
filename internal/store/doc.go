// Package store defines the persistence ports used by the call cache, the
// task reconciler and the song pipeline, along with the sentinel errors every
// backend wraps. Postgres implementations live in platform/postgres and
// in-memory ones in store/memstore.
package store
