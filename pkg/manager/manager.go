package manager

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"ccproxy/pkg/config"
	"ccproxy/pkg/providers"
	"ccproxy/pkg/telemetry/metrics"
)

// Manager is the Provider Manager (§4.2): the prioritized, failure-aware
// pool of upstream providers. A single coarse lock guards all
// ProviderState mutations, per the concurrency model's "coarse lock"
// design note.
type Manager struct {
	mu     sync.RWMutex
	states map[string]*ProviderState
	order  []string // provider names in config order, for tie-breaking

	strategy            string
	circuitBreaker       config.CircuitBreakerConfig
	healthCheckInterval time.Duration
	legacy              bool

	metrics *metrics.Metrics
	logger  *slog.Logger

	sweeperOnce sync.Once
	cron        *cron.Cron
}

// New constructs ProviderStates for every enabled provider in cfg. Env
// substitution and missing-var validation already happened during config
// load/validate; New assumes cfg is valid.
func New(cfg *config.ProviderManagerConfig, m *metrics.Metrics, logger *slog.Logger) *Manager {
	mgr := &Manager{
		states:              make(map[string]*ProviderState),
		strategy:            cfg.FallbackStrategy,
		circuitBreaker:      cfg.CircuitBreaker,
		healthCheckInterval: time.Duration(cfg.HealthCheckInterval) * time.Second,
		legacy:              cfg.Legacy,
		metrics:             m,
		logger:              logger,
	}
	if mgr.strategy == "" {
		mgr.strategy = config.StrategyPriority
	}

	for _, pc := range cfg.Providers {
		if !pc.Enabled {
			continue
		}
		client := providers.NewClient(providers.ClientConfig{
			Name:          pc.Name,
			BaseURL:       pc.BaseURL,
			APIKey:        pc.APIKey,
			APIVersion:    pc.APIVersion,
			TimeoutSecs:   pc.TimeoutSecs,
			MaxRetries:    pc.MaxRetries,
			CustomHeaders: pc.CustomHeaders,
		})
		mgr.states[pc.Name] = newProviderState(pc, client)
		mgr.order = append(mgr.order, pc.Name)
		if mgr.metrics != nil {
			mgr.metrics.UpdateHealth(pc.Name, true)
		}
	}
	return mgr
}

// Pick selects a (provider, model) pair for sizeClass, honoring the
// configured fallback_strategy, excluding the named provider if given.
// It starts the Health Sweeper on first call.
func (m *Manager) Pick(sizeClass, exclude string) (*ProviderState, string, bool) {
	m.startSweeperOnce()

	m.mu.Lock()
	defer m.mu.Unlock()

	candidates := m.healthyCandidates(sizeClass, exclude)
	if len(candidates) == 0 {
		return nil, "", false
	}
	m.orderCandidates(candidates)

	state := candidates[0]
	model := m.advance(state, sizeClass)
	return state, model, true
}

// PickNextIn rotates within provider name's model list for sizeClass,
// ignoring priority/strategy (§4.2).
func (m *Manager) PickNextIn(name, sizeClass string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[name]
	if !ok || state.Status != StatusHealthy {
		return "", false
	}
	if len(state.Config.Models.ForClass(sizeClass)) == 0 {
		return "", false
	}
	return m.advance(state, sizeClass), true
}

// advance returns the model at the current cursor and moves the cursor
// forward cyclically. Caller must hold m.mu.
func (m *Manager) advance(state *ProviderState, sizeClass string) string {
	models := state.Config.Models.ForClass(sizeClass)
	idx := state.nextIndex[sizeClass] % len(models)
	model := models[idx]
	state.nextIndex[sizeClass] = (idx + 1) % len(models)
	return model
}

func (m *Manager) healthyCandidates(sizeClass, exclude string) []*ProviderState {
	var out []*ProviderState
	for _, name := range m.order {
		if name == exclude {
			continue
		}
		state := m.states[name]
		if state.Status != StatusHealthy {
			continue
		}
		if len(state.Config.Models.ForClass(sizeClass)) == 0 {
			continue
		}
		out = append(out, state)
	}
	return out
}

func (m *Manager) orderCandidates(candidates []*ProviderState) {
	switch m.strategy {
	case config.StrategyRoundRobin, config.StrategyRandom:
		rand.Shuffle(len(candidates), func(i, j int) {
			candidates[i], candidates[j] = candidates[j], candidates[i]
		})
	default: // priority
		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].Config.Priority != candidates[j].Config.Priority {
				return candidates[i].Config.Priority < candidates[j].Config.Priority
			}
			return candidates[i].Config.Name < candidates[j].Config.Name
		})
	}
}

// MarkFailure records a failed upstream call against name (§4.2).
func (m *Manager) MarkFailure(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[name]
	if !ok {
		return
	}
	state.FailureCount++
	state.LastFailureTime = time.Now()
	opened := state.FailureCount >= m.circuitBreaker.FailureThreshold
	if opened {
		state.Status = StatusCircuitOpen
	} else {
		state.Status = StatusUnhealthy
	}

	if m.metrics != nil {
		m.metrics.UpdateHealth(name, false)
		m.metrics.SetCircuitBreakerState(name, opened)
	}
}

// MarkSuccess records a successful upstream call against name (§4.2).
func (m *Manager) MarkSuccess(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[name]
	if !ok {
		return
	}
	state.FailureCount = 0
	state.LastSuccessTime = time.Now()
	state.Status = StatusHealthy

	if m.metrics != nil {
		m.metrics.UpdateHealth(name, true)
		m.metrics.SetCircuitBreakerState(name, false)
	}
}

// Toggle flips a provider's in-memory enabled state. Disabling captures
// the prior status so a later enable can restore it exactly (§8 round
// trip property).
func (m *Manager) Toggle(name string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[name]
	if !ok {
		return fmt.Errorf("no such provider: %s", name)
	}

	if !enabled {
		if state.Status != StatusDisabled {
			state.preToggleStatus = state.Status
			state.Status = StatusDisabled
		}
		if m.metrics != nil {
			m.metrics.UpdateHealth(name, false)
		}
		return nil
	}

	if state.Status == StatusDisabled {
		state.Status = state.preToggleStatus
		if state.Status == "" {
			state.Status = StatusHealthy
		}
	}
	if m.metrics != nil {
		m.metrics.UpdateHealth(name, state.Status == StatusHealthy)
	}
	return nil
}

// Get returns the named ProviderState, or nil if unknown.
func (m *Manager) Get(name string) *ProviderState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.states[name]
}

// IsLegacy reports whether this Manager was built from the legacy
// single-provider bootstrap config (§4.3), which enables the model-name
// passthrough rule in the Fallback Controller.
func (m *Manager) IsLegacy() bool {
	return m.legacy
}

// Snapshots returns a point-in-time view of every provider, in config
// order, for /health and the admin surface.
func (m *Manager) Snapshots() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Snapshot, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.states[name].snapshot())
	}
	return out
}

// startSweeperOnce lazily starts the Health Sweeper on first selection, so
// no sweep goroutine exists until the first request arrives (§4.2).
func (m *Manager) startSweeperOnce() {
	m.sweeperOnce.Do(func() {
		if m.healthCheckInterval <= 0 {
			return
		}
		c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
		_, err := c.AddJob(fmt.Sprintf("@every %s", m.healthCheckInterval), cron.FuncJob(m.sweep))
		if err != nil {
			m.logger.Error("failed to schedule health sweeper", "error", err)
			return
		}
		c.Start()
		m.cron = c
	})
}

// sweep transitions circuit_open providers back to healthy once
// recovery_timeout has elapsed since their last failure (§4.2).
func (m *Manager) sweep() {
	recovery := time.Duration(m.circuitBreaker.RecoveryTimeout) * time.Second

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for _, name := range m.order {
		state := m.states[name]
		if state.Status != StatusCircuitOpen {
			continue
		}
		if now.Sub(state.LastFailureTime) >= recovery {
			state.Status = StatusHealthy
			state.FailureCount = 0
			if m.metrics != nil {
				m.metrics.UpdateHealth(name, true)
				m.metrics.SetCircuitBreakerState(name, false)
			}
			m.logger.Info("provider recovered", "provider", name)
		}
	}
}

// Close stops the Health Sweeper and waits for any in-flight sweep to
// finish, then releases each provider's pooled connections.
func (m *Manager) Close(ctx context.Context) error {
	if m.cron != nil {
		stopCtx := m.cron.Stop()
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, state := range m.states {
		state.Client.Close()
	}
	return nil
}
