// Package gateway performs JSON calls against external HTTP services.
//
// Every call goes through callcache.Cache, so repeated identical requests
// are served from the call store and live calls are counted against the
// service's rate limit. One Client exists per service.
package gateway
