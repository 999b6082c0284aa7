// Package fallback implements the Fallback Controller (§4.6): the
// request-time algorithm that glues the Model Manager, Provider Manager,
// the two translators, and the Upstream Client into one request
// lifecycle with in-provider model rotation and cross-provider
// escalation.
package fallback
