// Package llm routes completions to a language-model provider through a
// model registry and fits each prompt into the model's context window.
//
// The registry maps a model identifier to its provider, endpoint,
// credential source and token limits. It is loaded once at startup from
// YAML (an embedded default ships with the binary). Before a prompt is
// sent, Assembler.Fit trims it to contextWindow - maxOutputTokens using a
// characters-per-token estimate.
package llm
