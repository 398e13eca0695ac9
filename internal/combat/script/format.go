package script

import (
	"fmt"
	"strings"
)

// String renders the command in canonical script syntax.
// Parsing the result yields an equivalent command.
func (c Command) String() string {
	switch c.Kind {
	case KindTurnMarker:
		return fmt.Sprintf("turn %d:", c.Turn)
	case KindCharacterSkill:
		parts := []string{fmt.Sprintf("character%d", c.Character)}
		for _, s := range c.Steps {
			parts = append(parts, s.Raw)
		}
		return strings.Join(parts, ".")
	case KindSummon:
		return fmt.Sprintf("summon(%d)", c.Summon) + c.Chain.String()
	case KindQuickSummon:
		return "quicksummon" + c.Chain.String()
	case KindAttack:
		return "attack" + c.Chain.String()
	case KindHealingItem:
		if c.Target > 0 {
			return fmt.Sprintf("%s.target(%d)", c.Item.Token(), c.Target)
		}
		return c.Item.Token()
	case KindEnableAuto:
		if c.Mode == AutoFull {
			return "enablefullauto"
		}
		return "enablesemiauto"
	case KindTargetEnemy:
		return fmt.Sprintf("targetenemy(%d)", c.Enemy)
	case KindWait:
		return c.Wait.String()
	case KindComment:
		return "// " + c.Raw
	}
	for tok, kind := range literalKinds {
		if kind == c.Kind {
			return tok
		}
	}
	return c.Raw
}

// String renders the wait as wait(arg).
func (w Wait) String() string {
	return "wait(" + w.Arg + ")"
}

// String renders the chain modifiers with their leading dots.
func (ch Chain) String() string {
	var b strings.Builder
	if ch.Wait != nil {
		b.WriteString("." + ch.Wait.String())
	}
	if ch.Attack {
		b.WriteString(".attack")
	}
	return b.String()
}

// Format renders a program as script lines, one command per line.
func Format(p Program) []string {
	lines := make([]string, 0, len(p))
	for _, c := range p {
		if c.Kind == KindComment {
			continue
		}
		lines = append(lines, c.String())
	}
	return lines
}

// Equivalent reports whether two programs contain the same commands in the
// same order, ignoring line numbers and source formatting.
func Equivalent(a, b Program) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Kind != b[i].Kind || a[i].String() != b[i].String() {
			return false
		}
	}
	return true
}
