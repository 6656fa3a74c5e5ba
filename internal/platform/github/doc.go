// Package github reads commit history from the GitHub REST API.
//
// Calls go through a gateway.Client for the "github" service, so commit
// listings and commit details are cached and counted like every other
// external call. Authentication uses an oauth2 static token transport.
package github
