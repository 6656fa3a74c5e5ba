// Package config handles configuration loading, parsing, and validation
// from various sources (environment variables, files). It provides type-safe
// access to settings for the server, the external-call cache, and each
// upstream collaborator (source control, language model, music generation,
// artifact storage) while keeping configuration details separate from
// business logic.
package config
