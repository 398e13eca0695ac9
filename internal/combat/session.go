package combat

import (
	"time"

	"github.com/google/uuid"

	"github.com/cory-johannsen/autocombat/internal/combat/script"
)

// State is the turn state machine's position.
type State int

const (
	StateAwaitingDeclaredTurn State = iota
	StateReconcilingTurn
	StateExecutingTurnBody
	StateTurnEnding
	StateRetreated
	StateTerminated
)

var stateNames = [...]string{
	"awaiting_declared_turn",
	"reconciling_turn",
	"executing_turn_body",
	"turn_ending",
	"retreated",
	"terminated",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Session is the mutable state of one battle. It is owned by a single Runner
// goroutine for the duration of Run and discarded afterwards.
type Session struct {
	ID uuid.UUID
	// CurrentTurn is the game's turn as inferred from observed progression. Never decreases.
	CurrentTurn int
	// TargetTurn is the turn declared by the most recent turn marker.
	TargetTurn int
	Auto       script.AutoMode
	Retreated  bool
	StartTime  time.Time
	// ManualAttackAndReload replaces the auto end loop with manual attacks.
	ManualAttackAndReload bool
	State                 State

	// skipEnd is set once a chained attack has closed the current block's turn.
	skipEnd bool
	// attackButton is the reference point for positional taps.
	attackButton Location
}

func newSession(now time.Time) *Session {
	return &Session{
		ID:          uuid.New(),
		CurrentTurn: 1,
		TargetTurn:  1,
		StartTime:   now,
		State:       StateAwaitingDeclaredTurn,
	}
}

// InBlock reports whether the declared turn block is the current turn.
func (s *Session) InBlock() bool { return s.CurrentTurn == s.TargetTurn }

func (s *Session) advance() { s.CurrentTurn++ }
