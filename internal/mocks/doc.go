// Package mocks provides shared test doubles.
//
// MockCompleter and MockEmbedder are hand-written fakes with overridable
// function fields and call recording. MockMusicClient is generated by
// mockgen from reconcile.MusicClient.
package mocks
