// Package server implements the HTTP API of the gallery backend. It wires
// the chi routes, the session gate and the middleware chain around the
// gallery services, and provides lifecycle helpers used by tests and the
// production binary.
package server
