package manager

import (
	"time"

	"ccproxy/pkg/config"
	"ccproxy/pkg/providers"
)

// Status is a ProviderState's runtime health.
type Status string

const (
	StatusHealthy     Status = "healthy"
	StatusUnhealthy   Status = "unhealthy"
	StatusCircuitOpen Status = "circuit_open"
	// StatusDisabled is outside the three the spec's Selection step reasons
	// about; it exists so toggling a provider off doesn't corrupt
	// failure_count/circuit-breaker bookkeeping (§9 Open Questions).
	StatusDisabled Status = "disabled"
)

// ProviderState is the runtime counterpart to one ProviderConfig. Its
// mutable fields are written only while the Manager's lock is held.
type ProviderState struct {
	Config config.ProviderConfig
	Client *providers.Client

	Status          Status
	FailureCount    int
	LastFailureTime time.Time
	LastSuccessTime time.Time

	// preToggleStatus captures Status at the moment of toggle-off, so
	// toggle-on can restore it (round-trip property, §8).
	preToggleStatus Status

	// nextIndex is the per-size-class rotation cursor.
	nextIndex map[string]int
}

func newProviderState(cfg config.ProviderConfig, client *providers.Client) *ProviderState {
	return &ProviderState{
		Config:    cfg,
		Client:    client,
		Status:    StatusHealthy,
		nextIndex: map[string]int{config.SizeBig: 0, config.SizeMiddle: 0, config.SizeSmall: 0},
	}
}

// Snapshot is the read-only view of a ProviderState exposed by /health and
// the admin surface.
type Snapshot struct {
	Name            string    `json:"name"`
	Status          string    `json:"status"`
	Priority        int       `json:"priority"`
	FailureCount    int       `json:"failure_count"`
	LastFailureTime time.Time `json:"last_failure_time,omitempty"`
	LastSuccessTime time.Time `json:"last_success_time,omitempty"`
}

func (s *ProviderState) snapshot() Snapshot {
	return Snapshot{
		Name:            s.Config.Name,
		Status:          string(s.Status),
		Priority:        s.Config.Priority,
		FailureCount:    s.FailureCount,
		LastFailureTime: s.LastFailureTime,
		LastSuccessTime: s.LastSuccessTime,
	}
}
