// Package ratelimit provides per-client rate limiting for the API path space
// with background eviction of idle clients.
//
// Each client gets a fixed window that opens on its first request and holds
// Max requests. Pacing does not help: request Max+1 inside the window is
// refused until the window ends and a new one starts. The limiter is in-memory and per instance; it is not shared between
// replicas.
package ratelimit
