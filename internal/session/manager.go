// Package session owns an engine instance's connection to the broker gateway:
// connect with retry and identity rotation, contract qualification, reconnect and
// graceful shutdown.
package session

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eyalcarmi01-ux/trading-bot/internal/gateway"
	"github.com/eyalcarmi01-ux/trading-bot/internal/logger"
	"github.com/eyalcarmi01-ux/trading-bot/internal/retry"
	"github.com/eyalcarmi01-ux/trading-bot/internal/types"
	"github.com/eyalcarmi01-ux/trading-bot/pkg/errors"
)

// State is the connection state of a session.
type State string

const (
	StateDisconnected State = "DISCONNECTED"
	StateConnecting   State = "CONNECTING"
	StateConnected    State = "CONNECTED"
	StateReconnecting State = "RECONNECTING"
)

// Config holds the session tunables.
type Config struct {
	// ClientID is the identity requested on every fresh connect and reconnect.
	ClientID int
	Retry    retry.Policy
	// ConnectTimeout bounds a single gateway connect call.
	ConnectTimeout time.Duration
	// CallTimeout bounds qualification, cancel and flatten calls.
	CallTimeout    time.Duration
	ReconnectDelay time.Duration
}

// DefaultConnectPolicy retries five times with a 2-3s delay and rotates the identity
// after two consecutive timeouts or as soon as the gateway reports it in use.
func DefaultConnectPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: 5,
		BaseDelay:   2 * time.Second,
		Jitter:      time.Second,
		Counts:      errors.IsTimeout,
		Escalate: func(consecutiveFailures int, err error) bool {
			return consecutiveFailures >= 2 || errors.HasCode(err, errors.ErrCodeClientIDInUse)
		},
	}
}

// DefaultConfig returns the session defaults for clientID.
func DefaultConfig(clientID int) Config {
	return Config{
		ClientID:       clientID,
		Retry:          DefaultConnectPolicy(),
		ConnectTimeout: 10 * time.Second,
		CallTimeout:    10 * time.Second,
		ReconnectDelay: 2 * time.Second,
	}
}

// Manager is the Session Manager of one engine instance.
type Manager struct {
	cfg      Config
	factory  gateway.Factory
	registry *ProcessRegistry
	log      *logger.Logger
	rng      *rand.Rand
	sleep    func(ctx context.Context, d time.Duration) error
	observer func(State)

	mu          sync.Mutex
	gw          gateway.Gateway
	state       State
	currentID   int
	effectiveID int
	attempts    int
	instrument  optionalInstrument
	contract    types.ContractHandle

	shutdownOnce sync.Once
}

type optionalInstrument struct {
	set   bool
	value types.InstrumentDescriptor
}

// Option configures a Manager.
type Option func(*Manager)

// WithSleep replaces the wait between attempts and before reconnecting.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(m *Manager) { m.sleep = sleep }
}

// WithStateObserver is called on every state change, outside the lock.
func WithStateObserver(fn func(State)) Option {
	return func(m *Manager) { m.observer = fn }
}

// WithRandom seeds the retry jitter.
func WithRandom(rng *rand.Rand) Option {
	return func(m *Manager) { m.rng = rng }
}

// NewManager creates a disconnected session. factory is called once now and again
// whenever the connection object must be recreated.
func NewManager(cfg Config, factory gateway.Factory, registry *ProcessRegistry, log *logger.Logger, opts ...Option) (*Manager, error) {
	if factory == nil {
		return nil, errors.New(errors.ErrCodeMissingParameter, "gateway factory is required")
	}

	if registry == nil {
		return nil, errors.New(errors.ErrCodeMissingParameter, "process registry is required")
	}

	if cfg.ClientID <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "client id must be positive, got %d", cfg.ClientID)
	}

	gw, err := factory()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConnectionFailed, "failed to create gateway", err)
	}

	//nolint:exhaustruct // connection state starts empty
	m := &Manager{
		cfg:      cfg,
		factory:  factory,
		registry: registry,
		log:      log,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // jitter
		sleep:    retry.SleepContext,
		gw:       gw,
		state:    StateDisconnected,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// Connect opens the session, retrying under the configured policy. On exhaustion the
// session stays disconnected and the error is returned; callers keep running degraded.
func (m *Manager) Connect(ctx context.Context) error {
	return m.connect(ctx, StateConnecting)
}

func (m *Manager) connect(ctx context.Context, via State) error {
	m.setState(via)

	id := m.cfg.ClientID
	if !m.registry.Acquire(id) {
		fresh, err := m.registry.Generate()
		if err != nil {
			m.setState(StateDisconnected)

			return err
		}

		m.log.Warn("Requested client id unavailable, using a generated one",
			zap.Int("requested_client_id", id),
			zap.Int("client_id", fresh),
		)

		id = fresh
	}

	m.mu.Lock()
	m.currentID = id
	m.attempts = 0
	m.mu.Unlock()

	runner := retry.Runner{
		Policy: m.cfg.Retry,
		Rand:   m.rng,
		Sleep:  m.sleep,
		OnFailure: func(a retry.Attempt) {
			m.log.Warn("Connect attempt failed",
				zap.Int("attempt", a.Number),
				zap.Int("max_attempts", m.cfg.Retry.Attempts()),
				zap.Int("client_id", m.CurrentID()),
				zap.Duration("next_wait", a.NextWait),
				zap.Error(a.Err),
			)

			if a.Escalate {
				m.rotate()
			}
		},
	}

	err := runner.Do(ctx, m.attempt)
	if err != nil {
		m.mu.Lock()
		failedID := m.currentID
		m.currentID = 0
		m.mu.Unlock()

		if errors.IsTimeout(err) || errors.HasCode(err, errors.ErrCodeClientIDInUse) {
			m.registry.MarkFailed(failedID)
		} else {
			m.registry.Release(failedID)
		}

		m.setState(StateDisconnected)

		m.log.Error("Giving up on gateway connection, continuing without trading",
			zap.Int("attempts", m.cfg.Retry.Attempts()),
			zap.Error(err),
		)

		return errors.Wrap(errors.ErrCodeConnectionFailed, "connect attempts exhausted", err)
	}

	m.setState(StateConnected)

	m.log.Info("Connected to gateway",
		zap.Int("requested_client_id", m.cfg.ClientID),
		zap.Int("client_id", m.EffectiveID()),
	)

	return nil
}

// attempt performs one gateway connect under the current identity.
func (m *Manager) attempt(ctx context.Context, _ int) error {
	m.mu.Lock()
	gw := m.gw
	id := m.currentID
	m.attempts++
	m.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()

	effective, err := gw.Connect(callCtx, id)
	if err != nil {
		if callCtx.Err() != nil && !errors.IsTimeout(err) {
			return errors.Wrap(errors.ErrCodeConnectionTimeout, "gateway connect timed out", err)
		}

		return err
	}

	if effective != id {
		if !m.registry.Acquire(effective) {
			_ = gw.Disconnect()

			return errors.Newf(errors.ErrCodeClientIDInUse, "gateway assigned client id %d held by another session", effective)
		}

		m.registry.Release(id)
	}

	m.mu.Lock()
	m.currentID = effective
	m.effectiveID = effective
	m.mu.Unlock()

	return nil
}

// rotate switches to a freshly generated identity and recreates the gateway connection object.
func (m *Manager) rotate() {
	fresh, err := m.registry.Generate()
	if err != nil {
		m.log.Error("Cannot rotate client id", zap.Error(err))

		return
	}

	gw, err := m.factory()
	if err != nil {
		m.registry.Release(fresh)
		m.log.Error("Cannot recreate gateway connection", zap.Error(err))

		return
	}

	m.mu.Lock()
	old := m.currentID
	oldGW := m.gw
	m.currentID = fresh
	m.gw = gw
	m.mu.Unlock()

	_ = oldGW.Disconnect()
	m.registry.MarkFailed(old)

	m.log.Warn("Rotated client id after repeated failures",
		zap.Int("old_client_id", old),
		zap.Int("client_id", fresh),
	)
}

// QualifyContract resolves the descriptor, falling back to an unqualified handle.
func (m *Manager) QualifyContract(ctx context.Context, instrument types.InstrumentDescriptor) types.ContractHandle {
	m.mu.Lock()
	m.instrument = optionalInstrument{set: true, value: instrument}
	gw := m.gw
	m.mu.Unlock()

	handle := types.UnqualifiedHandle(instrument)

	if gw.IsConnected() {
		callCtx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
		qualified, err := gw.Qualify(callCtx, instrument)

		cancel()

		if err == nil {
			handle = qualified
		} else {
			m.log.Warn("Contract qualification failed, using unqualified contract",
				zap.String("instrument", instrument.String()),
				zap.Error(err),
			)
		}
	} else {
		m.log.Warn("Not connected, using unqualified contract", zap.String("instrument", instrument.String()))
	}

	m.mu.Lock()
	m.contract = handle
	m.mu.Unlock()

	return handle
}

// Reconnect drops the connection, waits briefly, connects again with the originally
// requested identity and re-qualifies the contract.
func (m *Manager) Reconnect(ctx context.Context) error {
	m.setState(StateReconnecting)

	m.mu.Lock()
	gw := m.gw
	held := m.currentID
	m.currentID = 0
	m.effectiveID = 0
	m.mu.Unlock()

	_ = gw.Disconnect()

	if held != 0 {
		m.registry.Release(held)
	}

	if err := m.sleep(ctx, m.cfg.ReconnectDelay); err != nil {
		m.setState(StateDisconnected)

		return err
	}

	if err := m.connect(ctx, StateReconnecting); err != nil {
		return err
	}

	m.mu.Lock()
	instrument := m.instrument
	m.mu.Unlock()

	if instrument.set {
		m.QualifyContract(ctx, instrument.value)
	}

	return nil
}

// GracefulShutdown cancels open orders, flattens the instrument's position, disconnects
// and releases the identity. Only the first call does anything. Every gateway call is
// bounded by the call timeout, so it is safe to call from a signal path.
func (m *Manager) GracefulShutdown(ctx context.Context, reason string) {
	m.shutdownOnce.Do(func() {
		m.log.Info("Graceful shutdown", zap.String("reason", reason))

		m.mu.Lock()
		gw := m.gw
		contract := m.contract
		held := m.currentID
		m.mu.Unlock()

		if gw.IsConnected() {
			cancelCtx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
			if err := gateway.CancelAll(cancelCtx, gw); err != nil {
				m.log.Warn("Failed to cancel open orders during shutdown", zap.Error(err))
			}

			cancel()

			if contract.Instrument.Symbol != "" {
				flattenCtx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
				closed, err := gateway.Flatten(flattenCtx, gw, contract)

				cancel()

				if err != nil {
					m.log.Warn("Failed to flatten positions during shutdown", zap.Error(err))
				}

				for _, o := range closed {
					m.log.Info("Flattened position",
						zap.String("symbol", o.Symbol),
						zap.String("side", string(o.Side)),
						zap.Int("quantity", o.Quantity),
					)
				}
			}
		}

		if err := gw.Disconnect(); err != nil {
			m.log.Warn("Disconnect failed", zap.Error(err))
		}

		if held != 0 {
			m.registry.Release(held)
		}

		m.mu.Lock()
		m.currentID = 0
		m.effectiveID = 0
		m.mu.Unlock()

		m.setState(StateDisconnected)
	})
}

// Gateway returns the current connection object. It changes when the identity rotates.
func (m *Manager) Gateway() gateway.Gateway {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.gw
}

// Contract returns the last qualified (or fallback) contract handle.
func (m *Manager) Contract() types.ContractHandle {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.contract
}

// IsConnected reports whether the session is connected and the gateway agrees.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	state := m.state
	gw := m.gw
	m.mu.Unlock()

	return state == StateConnected && gw.IsConnected()
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// EffectiveID is the identity the gateway assigned, zero when disconnected.
func (m *Manager) EffectiveID() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.effectiveID
}

// CurrentID is the identity being used or attempted.
func (m *Manager) CurrentID() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.currentID
}

// RequestedID is the configured identity.
func (m *Manager) RequestedID() int {
	return m.cfg.ClientID
}

// Attempts returns the number of connect calls made by the last Connect.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.attempts
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	changed := m.state != s
	m.state = s
	m.mu.Unlock()

	if changed && m.observer != nil {
		m.observer(s)
	}
}
