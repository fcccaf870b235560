package core

import (
	"errors"
	"testing"
)

func TestCanTransitionPhase(t *testing.T) {
	cases := []struct {
		from, to HandshakePhase
		want     bool
	}{
		{PhaseStarted, PhaseAwaitingToken, true},
		{PhaseAwaitingToken, PhaseVerifying, true},
		{PhaseVerifying, PhaseCompleted, true},
		{PhaseStarted, PhaseVerifying, false},
		{PhaseAwaitingToken, PhaseCompleted, false},
		{PhaseStarted, PhaseFailed, true},
		{PhaseAwaitingToken, PhaseExpired, true},
		{PhaseVerifying, PhaseFailed, true},
		{PhaseCompleted, PhaseFailed, false},
		{PhaseExpired, PhaseAwaitingToken, false},
		{PhaseFailed, PhaseExpired, false},
	}
	for _, tc := range cases {
		if got := CanTransitionPhase(tc.from, tc.to); got != tc.want {
			t.Fatalf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.want, got)
		}
	}
}

func TestPhaseTracker_FollowsAllowedMoves(t *testing.T) {
	fields := map[string]any{}
	tracker := newPhaseTracker(PhaseAwaitingToken, fields)
	if fields["phase"] != string(PhaseAwaitingToken) {
		t.Fatalf("expected starting phase in fields, got %v", fields["phase"])
	}

	if err := tracker.advance(PhaseCompleted); !errors.Is(err, ErrInvalidPhaseTransition) {
		t.Fatalf("expected skipped phase to be refused, got %v", err)
	}
	if tracker.current != PhaseAwaitingToken || fields["phase"] != string(PhaseAwaitingToken) {
		t.Fatalf("expected refused move to leave phase unchanged, got %s", tracker.current)
	}

	for _, next := range []HandshakePhase{PhaseVerifying, PhaseCompleted} {
		if err := tracker.advance(next); err != nil {
			t.Fatalf("advance to %s: %v", next, err)
		}
	}
	if got := tracker.end(PhaseFailed); got != PhaseCompleted {
		t.Fatalf("expected completed handshake to stay completed, got %s", got)
	}
	if fields["phase"] != string(PhaseCompleted) {
		t.Fatalf("expected completed phase in fields, got %v", fields["phase"])
	}
}

func TestPhaseTracker_EndFromOpenPhase(t *testing.T) {
	fields := map[string]any{}
	tracker := newPhaseTracker(PhaseStarted, fields)
	if got := tracker.end(PhaseExpired); got != PhaseExpired || fields["phase"] != string(PhaseExpired) {
		t.Fatalf("expected expired phase, got %s / %v", got, fields["phase"])
	}
}
