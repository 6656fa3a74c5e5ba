// Package domain defines the core entities shared by the caching layer, the
// task reconciler and the song pipeline: cached external calls, rate-limit
// counters, generation tasks, commits, songs and their stored audio files.
package domain
