package connectivity

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/illmade-knight/go-cardlog/pkg/types"
)

// ManagerConfig holds the retry policy for the connectivity state machine.
type ManagerConfig struct {
	// RetryInterval is the minimum spacing between connect attempts,
	// measured from the start of the previous attempt.
	RetryInterval time.Duration
	// AttemptTimeout bounds how long a single attempt may sit in the
	// connecting state before it is written off as failed.
	AttemptTimeout time.Duration
	// Now is the time source, for tests. Nil means time.Now.
	Now func() time.Time
}

// DefaultManagerConfig provides sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		RetryInterval:  10 * time.Second,
		AttemptTimeout: 30 * time.Second,
	}
}

// Manager tracks the wireless link through the NoCredentials /
// Disconnected / Connecting / Connected states. It is advanced by Tick,
// called once per control-loop iteration, and never blocks: connect
// attempts are fire-and-forget and their results are observed on
// subsequent ticks. State transitions are logged once per edge, not
// repeated every tick.
type Manager struct {
	link   Link
	config ManagerConfig
	logger zerolog.Logger
	now    func() time.Time

	state       types.LinkState
	lastAttempt time.Time
}

// NewManager creates a Manager for the given link. The initial state is
// NoCredentials when the link is unconfigured, Disconnected otherwise.
func NewManager(link Link, config ManagerConfig, logger zerolog.Logger) *Manager {
	defaults := DefaultManagerConfig()
	if config.RetryInterval <= 0 {
		logger.Warn().Dur("default", defaults.RetryInterval).Msg("RetryInterval was zero or negative, applying default value.")
		config.RetryInterval = defaults.RetryInterval
	}
	if config.AttemptTimeout <= 0 {
		logger.Warn().Dur("default", defaults.AttemptTimeout).Msg("AttemptTimeout was zero or negative, applying default value.")
		config.AttemptTimeout = defaults.AttemptTimeout
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}

	m := &Manager{
		link:   link,
		config: config,
		logger: logger.With().Str("component", "Connectivity").Logger(),
		now:    now,
		state:  types.StateNoCredentials,
	}
	if link.Configured() {
		m.state = types.StateDisconnected
	}
	return m
}

// Tick advances the state machine by one step. It inspects the link,
// issues at most one connect attempt per retry interval, and returns the
// state that now holds.
func (m *Manager) Tick() types.LinkState {
	switch m.state {
	case types.StateNoCredentials:
		// Re-evaluated every tick so a configuration change takes
		// effect without a restart. Side-effect free until then.
		if m.link.Configured() {
			m.transition(types.StateDisconnected)
		}

	case types.StateDisconnected:
		if m.link.Connected() {
			m.transition(types.StateConnected)
			break
		}
		if m.now().Sub(m.lastAttempt) < m.config.RetryInterval {
			break
		}
		m.lastAttempt = m.now()
		if err := m.link.StartConnect(); err != nil {
			m.logger.Error().Err(err).Msg("Failed to start connect attempt.")
			break
		}
		m.transition(types.StateConnecting)

	case types.StateConnecting:
		if m.link.Connected() {
			m.transition(types.StateConnected)
			break
		}
		done, err := m.link.AttemptDone()
		if done {
			if err != nil {
				m.logger.Warn().Err(err).Msg("Connect attempt failed.")
			}
			m.transition(types.StateDisconnected)
			break
		}
		if m.now().Sub(m.lastAttempt) >= m.config.AttemptTimeout {
			m.logger.Warn().Dur("timeout", m.config.AttemptTimeout).Msg("Connect attempt timed out.")
			m.transition(types.StateDisconnected)
		}

	case types.StateConnected:
		if !m.link.Connected() {
			m.transition(types.StateDisconnected)
		}
	}

	return m.state
}

// IsReady reports whether the link is established. The upload engine
// treats every other state as not ready.
func (m *Manager) IsReady() bool {
	return m.state == types.StateConnected
}

// State returns the state that currently holds.
func (m *Manager) State() types.LinkState {
	return m.state
}

func (m *Manager) transition(to types.LinkState) {
	m.logger.Info().
		Str("from", m.state.String()).
		Str("to", to.String()).
		Msg("Link state transition")
	m.state = to
}
