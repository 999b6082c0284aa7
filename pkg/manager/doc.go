// Package manager implements the Provider Manager: a prioritized,
// failure-aware pool of upstream providers with per-provider model
// rotation, circuit breaking, and a background health sweeper. It maps
// an inbound Claude model name to a size class (the Model Manager's
// single responsibility) and selects which provider and model serve a
// given request.
package manager
