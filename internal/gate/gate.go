// Package gate is the single entry point for sending a message. It derives
// "can the user send right now" from the connection state so callers never
// look at the state machine's internals.
package gate

import (
	"errors"
	"strings"

	"github.com/matheus3301/tchat/internal/conn"
	"github.com/matheus3301/tchat/internal/status"
)

// ErrEmpty is returned by Submit for blank input. Never retried; the
// caller surfaces it as local feedback.
var ErrEmpty = errors.New("message is empty")

// Sender writes one outbound payload. Satisfied by *conn.Manager.
type Sender interface {
	Send(text string) error
}

// Gate gates user input on connection health.
type Gate struct {
	machine *status.Machine
	sender  Sender
}

// New creates a gate over the given machine and sender.
func New(machine *status.Machine, sender Sender) *Gate {
	return &Gate{machine: machine, sender: sender}
}

// CanSend reports whether the channel is currently open.
func (g *Gate) CanSend() bool {
	return g.machine.Current().Phase == status.Open
}

// Submit validates and sends the text. Blank input fails with ErrEmpty,
// a closed gate with conn.ErrNotConnected; neither reaches the transport.
// The payload itself is sent verbatim, untrimmed.
func (g *Gate) Submit(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmpty
	}
	if !g.CanSend() {
		return conn.ErrNotConnected
	}
	return g.sender.Send(text)
}
