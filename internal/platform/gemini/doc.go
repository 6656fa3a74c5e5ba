// Package gemini implements generation.Completer and generation.Embedder
// on Google's Gemini API.
//
// Every request is fingerprinted and served through callcache.Cache, so an
// identical prompt or embedding batch is answered from the call store
// without another API call. Live calls are retried with exponential backoff
// and jitter; safety blocks and malformed responses are permanent and
// returned immediately.
package gemini
