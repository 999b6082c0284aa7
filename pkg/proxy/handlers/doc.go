// Package handlers implements the inbound HTTP surface (§6): the core
// Claude-compatible endpoints and the admin surface that manages the
// Provider Manager at runtime.
package handlers
