// Package app wires configuration, persistence and the external service
// clients into the song pipeline. Both the HTTP server and the CLI build
// their dependencies through New.
package app
