// Package conn owns the duplex channel to the backend: opening it, writing
// outbound frames, decoding inbound ones, and replacing the channel after
// unclean closes with bounded fixed-delay retries.
package conn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/tchat/internal/bus"
	"github.com/matheus3301/tchat/internal/session"
	"github.com/matheus3301/tchat/internal/status"
	"github.com/matheus3301/tchat/internal/wire"
	"go.uber.org/zap"
)

// ErrNotConnected is returned by Send when the channel is not open.
// Outbound messages are never queued; the caller re-issues after reconnect.
var ErrNotConnected = errors.New("not connected")

// RetryPolicy bounds automatic reconnection after unclean closes. The
// delay is fixed, not exponential. Clean closes never trigger a retry and
// never count against MaxAttempts.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Options configures a Manager.
type Options struct {
	// URL is the backend WebSocket base URL, e.g. "ws://localhost:8000".
	URL     string
	Policy  RetryPolicy
	Dialer  Dialer
	Bus     *bus.Bus
	Machine *status.Machine
	Logger  *zap.Logger
}

// Manager owns exactly one logical channel at a time. All state lives
// behind one mutex; the read loop and retry timer check a generation
// counter so callbacks from a torn-down channel never reach the rest of
// the system.
type Manager struct {
	url     string
	policy  RetryPolicy
	dialer  Dialer
	bus     *bus.Bus
	machine *status.Machine
	logger  *zap.Logger

	mu         sync.Mutex
	identity   session.Identity
	ch         Channel
	gen        int
	attempt    int
	retry      *time.Timer
	dialCancel context.CancelFunc
}

// New creates a manager. The machine starts (and stays) in Idle until Open.
func New(opts Options) *Manager {
	if opts.Dialer == nil {
		opts.Dialer = WSDialer{}
	}
	if opts.Policy.MaxAttempts == 0 {
		opts.Policy.MaxAttempts = 5
	}
	if opts.Policy.BaseDelay == 0 {
		opts.Policy.BaseDelay = 3 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Manager{
		url:     opts.URL,
		policy:  opts.Policy,
		dialer:  opts.Dialer,
		bus:     opts.Bus,
		machine: opts.Machine,
		logger:  opts.Logger,
	}
}

// Open establishes a channel for the given identity. Any existing channel
// is torn down first so only one can ever emit into the system. The dial
// itself runs asynchronously; progress is observable through the machine.
func (m *Manager) Open(identity session.Identity) error {
	if !identity.Valid() {
		return fmt.Errorf("open: identity not set")
	}

	m.mu.Lock()
	m.identity = identity
	m.teardownLocked()
	m.attempt = 0
	gen := m.gen
	if err := m.machine.Transition(status.Status{Phase: status.Connecting}); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("open: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.dialCancel = cancel
	url := m.channelURLLocked()
	m.mu.Unlock()

	go m.dial(ctx, gen, url)
	return nil
}

// Send writes the payload verbatim to the open channel. There is no local
// echo; the backend streams the persisted message back over the channel.
func (m *Manager) Send(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.machine.Current().Phase != status.Open || m.ch == nil {
		return ErrNotConnected
	}
	if err := m.ch.Write([]byte(text)); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Close tears the channel down for good: the retry timer is cancelled, the
// read loop is detached, and no reconnection is ever attempted. Safe to
// call multiple times and from any phase.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.teardownLocked()

	switch m.machine.Current().Phase {
	case status.Connecting, status.Open, status.Failed:
		_ = m.machine.Transition(status.Status{Phase: status.Closing})
		_ = m.machine.Transition(status.Status{Phase: status.Closed, Reason: status.ReasonRequested})
		m.bus.Publish(bus.New(bus.KindConnClosed, status.ReasonRequested))
	}
}

// teardownLocked invalidates the current channel generation: it stops the
// retry timer, aborts an in-flight dial, and closes the channel. Stale
// read loops and timers see the bumped generation and return silently.
func (m *Manager) teardownLocked() {
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
	if m.dialCancel != nil {
		m.dialCancel()
		m.dialCancel = nil
	}
	m.gen++
	if m.ch != nil {
		_ = m.ch.Close()
		m.ch = nil
	}
}

// channelURLLocked builds the per-session channel address. The user id is
// part of the handshake.
func (m *Manager) channelURLLocked() string {
	return fmt.Sprintf("%s/ws?user_id=%d", m.url, m.identity.UserID)
}

func (m *Manager) dial(ctx context.Context, gen int, url string) {
	connID := uuid.NewString()[:8]
	ch, err := m.dialer.Dial(ctx, url)

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		if err == nil {
			_ = ch.Close()
		}
		return
	}
	if err != nil {
		m.logger.Warn("dial failed",
			zap.Error(err), zap.String("conn_id", connID))
		m.scheduleRetryLocked()
		m.mu.Unlock()
		return
	}

	m.ch = ch
	m.attempt = 0
	_ = m.machine.Transition(status.Status{Phase: status.Open})
	m.logger.Info("channel open",
		zap.String("conn_id", connID), zap.Int64("user_id", m.identity.UserID))
	m.bus.Publish(bus.New(bus.KindConnOpen, connID))
	m.mu.Unlock()

	go m.readLoop(ch, gen, connID)
}

// readLoop pumps inbound frames until the channel dies. Frames that fail
// to decode are dropped without closing the channel.
func (m *Manager) readLoop(ch Channel, gen int, connID string) {
	for {
		data, err := ch.Read()
		if err != nil {
			m.handleClosed(gen, connID, err)
			return
		}

		msg, derr := wire.DecodeFrame(data)
		if derr != nil {
			m.logger.Warn("dropping undecodable frame",
				zap.Error(derr), zap.String("conn_id", connID))
			m.bus.Publish(bus.New(bus.KindChatDropped, derr.Error()))
			continue
		}

		m.mu.Lock()
		stale := gen != m.gen
		m.mu.Unlock()
		if stale {
			return
		}
		m.bus.Publish(bus.New(bus.KindChatMessage, &msg))
	}
}

func (m *Manager) handleClosed(gen int, connID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		// Teardown already handled this channel.
		return
	}
	m.ch = nil

	var ce *CloseError
	if errors.As(err, &ce) && ce.Clean {
		m.logger.Info("channel closed cleanly",
			zap.Int("code", ce.Code), zap.String("conn_id", connID))
		_ = m.machine.Transition(status.Status{Phase: status.Closed, Reason: status.ReasonRemote})
		m.bus.Publish(bus.New(bus.KindConnClosed, status.ReasonRemote))
		return
	}

	m.logger.Warn("channel closed uncleanly",
		zap.Error(err), zap.String("conn_id", connID))
	m.scheduleRetryLocked()
}

// scheduleRetryLocked arms the single retry timer, replacing any pending
// one. Past MaxAttempts the manager surfaces the terminal Disconnected
// state and stops; recovery from there needs an explicit Open.
func (m *Manager) scheduleRetryLocked() {
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
	if m.attempt >= m.policy.MaxAttempts {
		m.logger.Warn("reconnect attempts exhausted",
			zap.Int("max_attempts", m.policy.MaxAttempts))
		_ = m.machine.Transition(status.Status{Phase: status.Disconnected})
		m.bus.Publish(bus.New(bus.KindConnClosed, "exhausted"))
		return
	}

	m.attempt++
	at := time.Now().Add(m.policy.BaseDelay)
	_ = m.machine.Transition(status.Status{
		Phase:       status.Failed,
		Attempt:     m.attempt,
		NextRetryAt: at,
	})
	m.logger.Info("reconnect scheduled",
		zap.Int("attempt", m.attempt), zap.Time("at", at))

	gen := m.gen
	m.retry = time.AfterFunc(m.policy.BaseDelay, func() { m.redial(gen) })
}

func (m *Manager) redial(gen int) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.retry = nil
	m.gen++
	next := m.gen
	_ = m.machine.Transition(status.Status{Phase: status.Connecting})
	if m.dialCancel != nil {
		m.dialCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.dialCancel = cancel
	url := m.channelURLLocked()
	m.mu.Unlock()

	go m.dial(ctx, next, url)
}
