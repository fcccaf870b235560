package core

import (
	"errors"
	"fmt"
)

// HandshakePhase tracks where a link handshake is in its lifecycle.
type HandshakePhase string

const (
	PhaseStarted       HandshakePhase = "started"
	PhaseAwaitingToken HandshakePhase = "awaiting_token"
	PhaseVerifying     HandshakePhase = "verifying"
	PhaseCompleted     HandshakePhase = "completed"
	PhaseFailed        HandshakePhase = "failed"
	PhaseExpired       HandshakePhase = "expired"
)

var phaseForward = map[HandshakePhase]HandshakePhase{
	PhaseStarted:       PhaseAwaitingToken,
	PhaseAwaitingToken: PhaseVerifying,
	PhaseVerifying:     PhaseCompleted,
}

func (p HandshakePhase) Terminal() bool {
	switch p {
	case PhaseCompleted, PhaseFailed, PhaseExpired:
		return true
	default:
		return false
	}
}

// CanTransitionPhase reports whether a handshake may move from one phase to
// the next. Failure phases are reachable from any non-terminal phase.
func CanTransitionPhase(from, to HandshakePhase) bool {
	if from.Terminal() {
		return false
	}
	if _, known := phaseForward[from]; !known {
		return false
	}
	if to == PhaseFailed || to == PhaseExpired {
		return true
	}
	return phaseForward[from] == to
}

var ErrInvalidPhaseTransition = errors.New("core: invalid handshake phase transition")

// phaseTracker follows one handshake through its phases and mirrors the
// current phase into the observed log fields.
type phaseTracker struct {
	current HandshakePhase
	fields  map[string]any
}

func newPhaseTracker(start HandshakePhase, fields map[string]any) *phaseTracker {
	fields["phase"] = string(start)
	return &phaseTracker{current: start, fields: fields}
}

// advance moves to the next phase, refusing moves CanTransitionPhase does
// not allow. The current phase is left unchanged on refusal.
func (t *phaseTracker) advance(to HandshakePhase) error {
	if !CanTransitionPhase(t.current, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidPhaseTransition, t.current, to)
	}
	t.current = to
	t.fields["phase"] = string(to)
	return nil
}

// end moves to a failure phase. A tracker that already ended keeps its phase.
func (t *phaseTracker) end(to HandshakePhase) HandshakePhase {
	_ = t.advance(to)
	return t.current
}
