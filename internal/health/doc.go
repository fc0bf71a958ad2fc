// Package health provides composable probes and the HTTP handlers behind the
// ops listener's /-/healthy and /-/ready endpoints.
//
// Probes combine with [All] and [Fixed] builds static ones.
// [Ping] wraps a database handle with a timeout; the handle is looked up on
// every check so readiness can flip once the background connect finishes.
//
// [ShutdownGate] fails readiness during drain so the load balancer stops
// sending traffic before the listener is closed.
package health
