package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/tchat/internal/bus"
)

// Phase is the connection lifecycle phase.
type Phase string

const (
	Idle       Phase = "IDLE"
	Connecting Phase = "CONNECTING"
	Open       Phase = "OPEN"
	Closing    Phase = "CLOSING"
	Closed     Phase = "CLOSED"
	// Failed means an unclean close happened and a retry is scheduled.
	Failed Phase = "FAILED"
	// Disconnected is terminal: retries are exhausted and only an explicit
	// reopen can leave it.
	Disconnected Phase = "DISCONNECTED"
)

// CloseReason records why a channel reached Closed.
type CloseReason string

const (
	ReasonNone      CloseReason = ""
	ReasonRequested CloseReason = "requested"
	ReasonRemote    CloseReason = "remote"
)

// Status is the full connection state: the phase plus the data its
// variant carries. Closed carries Reason; Failed carries Attempt and
// NextRetryAt.
type Status struct {
	Phase       Phase
	Reason      CloseReason
	Attempt     int
	NextRetryAt time.Time
}

// Display projects the status to the three values the UI cares about.
func (s Status) Display() string {
	switch s.Phase {
	case Open:
		return "connected"
	case Connecting, Failed:
		return "connecting"
	default:
		return "disconnected"
	}
}

// validTransitions defines allowed phase transitions.
var validTransitions = map[Phase][]Phase{
	Idle:         {Connecting},
	Connecting:   {Connecting, Open, Failed, Closing, Disconnected},
	Open:         {Connecting, Failed, Closing, Closed},
	Closing:      {Closed},
	Closed:       {Connecting},
	Failed:       {Connecting, Failed, Closing, Disconnected},
	Disconnected: {Connecting},
}

// Machine tracks and enforces connection state transitions. The current
// status is owned here; everything else reads it through Current or the
// conn.status_changed bus events.
type Machine struct {
	mu      sync.RWMutex
	current Status
	bus     *bus.Bus
}

// NewMachine creates a machine starting in Idle.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Status{Phase: Idle},
		bus:     b,
	}
}

// Current returns a copy of the current status.
func (m *Machine) Current() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new status. Returns an error if the
// phase transition is invalid.
func (m *Machine) Transition(to Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current.Phase]
	if !slices.Contains(allowed, to.Phase) {
		return fmt.Errorf("invalid transition from %s to %s", m.current.Phase, to.Phase)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.New(bus.KindConnStatus, Change{From: from, To: to}))
	}
	return nil
}

// Change is the payload for conn.status_changed events.
type Change struct {
	From Status
	To   Status
}
