// Package callcache deduplicates calls to external services.
//
// Every logical request is identified by a Fingerprint derived from its
// service, method, endpoint and canonicalised parameters. Cache.FetchOrCall
// serves a fresh successful record when one exists and otherwise performs the
// live call, recording the outcome (success or failure) and accounting the
// call against the service's rate-limit counter. Failed calls are recorded but
// never served and never counted.
package callcache
