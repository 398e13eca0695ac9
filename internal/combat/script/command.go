// Package script parses combat scripts into an ordered Program of typed
// Commands. Parsing is lossless with respect to command order: every
// non-comment line is classified, unrecognized text becomes KindUnknown.
package script

import (
	"math"
	"time"
)

// Kind identifies the variant of a Command.
// The zero value (KindUnknown) holds unrecognized script text.
type Kind int

const (
	KindUnknown Kind = iota
	KindComment
	KindTurnMarker
	KindCharacterSkill
	KindSummon
	KindQuickSummon
	KindHealingItem
	KindEnableAuto
	KindTargetEnemy
	KindAttack
	KindAttackBack
	KindBack
	KindReload
	KindWait
	KindRequestBackup
	KindTweetBackup
	KindRepeatManualAttackAndReload
	KindEnd
	KindExit
)

var kindNames = map[Kind]string{
	KindUnknown:                     "unknown",
	KindComment:                     "comment",
	KindTurnMarker:                  "turn",
	KindCharacterSkill:              "character_skill",
	KindSummon:                      "summon",
	KindQuickSummon:                 "quick_summon",
	KindHealingItem:                 "healing_item",
	KindEnableAuto:                  "enable_auto",
	KindTargetEnemy:                 "target_enemy",
	KindAttack:                      "attack",
	KindAttackBack:                  "attack_back",
	KindBack:                        "back",
	KindReload:                      "reload",
	KindWait:                        "wait",
	KindRequestBackup:               "request_backup",
	KindTweetBackup:                 "tweet_backup",
	KindRepeatManualAttackAndReload: "repeat_manual_attack_and_reload",
	KindEnd:                         "end",
	KindExit:                        "exit",
}

// String returns the snake_case name of the Kind, used as a log and metric label.
func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// AutoMode is the game's automatic combat mode.
type AutoMode int

const (
	AutoNone AutoMode = iota
	AutoSemi
	AutoFull
)

// String returns "none", "semi" or "full".
func (m AutoMode) String() string {
	switch m {
	case AutoSemi:
		return "semi"
	case AutoFull:
		return "full"
	default:
		return "none"
	}
}

// HealingItem is a consumable usable from the in-battle heal menu.
type HealingItem int

const (
	ItemNone HealingItem = iota
	ItemGreenPotion
	ItemBluePotion
	ItemFullElixir
	ItemSupportPotion
	ItemClarityHerb
	ItemRevivalPotion
)

var itemTokens = map[HealingItem]string{
	ItemGreenPotion:   "usegreenpotion",
	ItemBluePotion:    "usebluepotion",
	ItemFullElixir:    "usefullelixir",
	ItemSupportPotion: "usesupportpotion",
	ItemClarityHerb:   "useclarityherb",
	ItemRevivalPotion: "userevivalpotion",
}

// Token returns the script token for the item, which doubles as its button id.
func (h HealingItem) Token() string { return itemTokens[h] }

// NeedsTarget reports whether the item is applied to a single character.
func (h HealingItem) NeedsTarget() bool {
	return h == ItemGreenPotion || h == ItemClarityHerb
}

// FallbackWait is used wherever a wait(n) argument cannot be parsed.
const FallbackWait = time.Second

// Wait is a parsed wait(n) argument.
type Wait struct {
	// Seconds is the parsed duration; meaningful only when Valid.
	Seconds float64
	// Valid is false when the argument was not a finite, non-negative number.
	Valid bool
	// Arg is the argument text as written, kept for formatting invalid waits.
	Arg string
}

// Duration returns the wait as a time.Duration, or FallbackWait when invalid.
//
// Postcondition: Returns a non-negative duration.
func (w Wait) Duration() time.Duration {
	if !w.Valid {
		return FallbackWait
	}
	return time.Duration(w.Seconds * float64(time.Second))
}

func newWait(arg string, seconds float64, err error) Wait {
	w := Wait{Arg: arg}
	if err == nil && !math.IsNaN(seconds) && !math.IsInf(seconds, 0) && seconds >= 0 {
		w.Seconds = seconds
		w.Valid = true
	}
	return w
}

// Chain holds the modifiers appended to a summon, quick summon or attack.
type Chain struct {
	// Wait is non-nil when a wait(n) modifier was present.
	Wait *Wait
	// Attack is true when an attack modifier ends the turn after the action.
	Attack bool
}

// StepKind identifies one subcommand of a character skill command.
type StepKind int

const (
	StepInvalid StepKind = iota
	StepSkill
	StepTarget
	StepWait
	StepAttack
)

// Step is one dot-separated subcommand following characterN.
type Step struct {
	Kind StepKind
	// N is the skill slot (1..4) for StepSkill or the character slot (1..6) for StepTarget.
	N    int
	Wait Wait
	// Raw is the token as written.
	Raw string
}

// Command is one parsed script instruction. Only the fields relevant to
// Kind are populated; a Command is never mutated after parsing.
type Command struct {
	Kind Kind
	// Line is the 1-based source line the command came from.
	Line int
	// Raw is the normalized (lower-cased, comment-stripped) source text.
	Raw string

	Turn      int
	Character int
	Steps     []Step
	Summon    int
	Chain     Chain
	Item      HealingItem
	Target    int
	Mode      AutoMode
	Enemy     int
	Wait      Wait
}

// Program is the ordered command sequence of one combat script.
type Program []Command

// Turns returns the turn numbers declared by the program, in order.
func (p Program) Turns() []int {
	var turns []int
	for _, c := range p {
		if c.Kind == KindTurnMarker {
			turns = append(turns, c.Turn)
		}
	}
	return turns
}
