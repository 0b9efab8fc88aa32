// Package router contains concrete implementations of the core.Router.
//
// The canonical Router interface lives in the core package. Implementations
// here provide the message fabric agents and the controller communicate
// over: in-process channels for tests and single-process runs, with the
// interface leaving room for networked backends.
package router
