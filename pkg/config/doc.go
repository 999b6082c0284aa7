// Package config loads and validates the provider manager configuration:
// a single JSON document describing the upstream providers, their model
// rotation lists, and the fallback/circuit-breaker policy that governs
// selection among them.
//
// A legacy bootstrap path synthesizes an equivalent single-provider
// configuration from environment variables when no JSON document is
// present, preserving compatibility with deployments that predate the
// multi-provider config file.
package config
