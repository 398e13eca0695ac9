package combat

import (
	"time"

	"github.com/google/uuid"
)

// Signal is the battle-end classification of one poll.
type Signal int

const (
	// SignalNone means combat continues.
	SignalNone Signal = iota
	SignalTimeExceeded
	SignalNoLoot
	SignalBattleConcluded
	SignalExpGained
	SignalLootCollected
)

// String returns the snake_case signal name.
func (s Signal) String() string {
	switch s {
	case SignalTimeExceeded:
		return "time_exceeded"
	case SignalNoLoot:
		return "no_loot"
	case SignalBattleConcluded:
		return "battle_concluded"
	case SignalExpGained:
		return "exp_gained"
	case SignalLootCollected:
		return "loot_collected"
	default:
		return "none"
	}
}

// Terminal reports whether the signal ends the session.
func (s Signal) Terminal() bool { return s != SignalNone }

// Outcome maps a terminal signal to the session outcome.
// SignalNone maps to OutcomeFailure: the battle was never seen to conclude.
func (s Signal) Outcome() Outcome {
	switch s {
	case SignalBattleConcluded, SignalExpGained, SignalLootCollected:
		return OutcomeSuccess
	default:
		return OutcomeFailure
	}
}

// Outcome is the terminal result of a combat session.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
	OutcomeAborted
)

// String returns "success", "failure" or "aborted".
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeAborted:
		return "aborted"
	default:
		return "failure"
	}
}

// Result is returned exactly once per combat session.
type Result struct {
	SessionID uuid.UUID
	Outcome   Outcome
	// Signal is the battle-end signal that terminated the session, if any.
	Signal Signal
	// Turn is the turn counter when the session ended.
	Turn      int
	Elapsed   time.Duration
	Retreated bool
	// Reason describes failures and aborts that have no Signal.
	Reason string
}
