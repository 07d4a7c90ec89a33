// Package httpapi is the reference HTTP surface over the session engine.
//
// Every response is a {code, msg, data} envelope whose code equals the HTTP
// status. Routes are mounted under a base path; the ones that need a caller
// identity are wrapped in middleware.Require and rely on the authentication
// gate running in front of the mux.
package httpapi
