package status

import (
	"testing"
	"time"

	"github.com/matheus3301/tchat/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current().Phase != Idle {
		t.Errorf("initial phase = %s, want IDLE", m.Current().Phase)
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from Phase
		to   Phase
	}{
		{Idle, Connecting},
		{Connecting, Open},
		{Connecting, Failed},
		{Connecting, Closing},
		{Open, Failed},
		{Open, Closed},
		{Open, Closing},
		{Open, Connecting},
		{Closing, Closed},
		{Closed, Connecting},
		{Failed, Connecting},
		{Failed, Failed},
		{Failed, Disconnected},
		{Disconnected, Connecting},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(Status{Phase: tt.to}); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if m.Current().Phase != tt.to {
				t.Errorf("phase = %s, want %s", m.Current().Phase, tt.to)
			}
		})
	}
}

func TestInvalidTransitions(t *testing.T) {
	tests := []struct {
		from Phase
		to   Phase
	}{
		{Idle, Open},
		{Idle, Failed},
		{Closed, Open},
		{Closing, Connecting},
		{Disconnected, Failed},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(Status{Phase: tt.to}); err == nil {
				t.Errorf("Transition(%s -> %s) should fail", tt.from, tt.to)
			}
			if m.Current().Phase != tt.from {
				t.Errorf("phase = %s, want %s (should not have changed)", m.Current().Phase, tt.from)
			}
		})
	}
}

func TestTransitionCarriesVariantData(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Connecting)

	at := time.Now().Add(time.Second)
	if err := m.Transition(Status{Phase: Failed, Attempt: 2, NextRetryAt: at}); err != nil {
		t.Fatal(err)
	}
	got := m.Current()
	if got.Attempt != 2 || !got.NextRetryAt.Equal(at) {
		t.Errorf("status = %+v, want attempt 2 at %v", got, at)
	}

	steps := []Status{{Phase: Closing}, {Phase: Closed, Reason: ReasonRequested}}
	for _, s := range steps {
		if err := m.Transition(s); err != nil {
			t.Fatal(err)
		}
	}
	if m.Current().Reason != ReasonRequested {
		t.Errorf("reason = %q, want %q", m.Current().Reason, ReasonRequested)
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.NewBus()
	ch, unsub := b.Subscribe("conn.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(Status{Phase: Connecting}); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != bus.KindConnStatus {
		t.Errorf("event kind = %q, want %q", evt.Kind, bus.KindConnStatus)
	}
	change, ok := evt.Payload.(Change)
	if !ok {
		t.Fatalf("payload type = %T, want Change", evt.Payload)
	}
	if change.From.Phase != Idle || change.To.Phase != Connecting {
		t.Errorf("change = %s -> %s, want IDLE -> CONNECTING", change.From.Phase, change.To.Phase)
	}
}

func TestDisplayProjection(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{Status{Phase: Idle}, "disconnected"},
		{Status{Phase: Connecting}, "connecting"},
		{Status{Phase: Open}, "connected"},
		{Status{Phase: Closing}, "disconnected"},
		{Status{Phase: Closed, Reason: ReasonRequested}, "disconnected"},
		{Status{Phase: Failed, Attempt: 1}, "connecting"},
		{Status{Phase: Disconnected}, "disconnected"},
	}
	for _, tt := range tests {
		if got := tt.status.Display(); got != tt.want {
			t.Errorf("Display(%s) = %q, want %q", tt.status.Phase, got, tt.want)
		}
	}
}

// TestReconnectLifecycle walks the full unclean-close loop:
// IDLE → CONNECTING → OPEN → FAILED → CONNECTING → OPEN
func TestReconnectLifecycle(t *testing.T) {
	m := NewMachine(nil)

	steps := []Phase{Connecting, Open, Failed, Connecting, Open}
	for _, p := range steps {
		if err := m.Transition(Status{Phase: p}); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", p, err, m.Current().Phase)
		}
	}
	if m.Current().Phase != Open {
		t.Errorf("final phase = %s, want OPEN", m.Current().Phase)
	}
}

// walkTo is a helper that transitions the machine to a target phase.
func walkTo(t *testing.T, m *Machine, target Phase) {
	t.Helper()
	paths := map[Phase][]Phase{
		Idle:         {},
		Connecting:   {Connecting},
		Open:         {Connecting, Open},
		Closing:      {Connecting, Open, Closing},
		Closed:       {Connecting, Open, Closing, Closed},
		Failed:       {Connecting, Failed},
		Disconnected: {Connecting, Failed, Disconnected},
	}
	for _, p := range paths[target] {
		if err := m.Transition(Status{Phase: p}); err != nil {
			t.Fatalf("walkTo(%s): %v", target, err)
		}
	}
}
