// Package embedding splits text into bounded chunks, embeds them and stores
// the vectors in a named collection for nearest-neighbour retrieval.
//
// Chunk ids are "<sourceID>#<index>", so indexing the same source twice
// overwrites its vectors instead of duplicating them.
package embedding
