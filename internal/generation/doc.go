// Package generation defines the boundary between the song pipeline and
// language-model providers: chat-style completion and text embedding.
// Providers live under internal/platform; the pipeline only sees the
// Completer and Embedder interfaces and the sentinel errors below.
package generation
