// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing domain fixtures (game setups with
// hand-picked endowments, matched transaction request pairs). These helpers
// are intentionally minimal and are not intended for production usage.
package testutil
