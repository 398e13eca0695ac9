package script

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func kinds(p Program) []Kind {
	out := make([]Kind, len(p))
	for i, c := range p {
		out[i] = c.Kind
	}
	return out
}

func TestParse_ExampleProgram(t *testing.T) {
	prog, err := Parse([]string{
		"turn 1: character1.useskill(1).character3.useskill(2).target(2)",
		"end",
		"turn 2:",
		"summon(1).attack",
	})
	require.NoError(t, err)
	assert.Equal(t, []Kind{
		KindTurnMarker, KindCharacterSkill, KindCharacterSkill, KindEnd,
		KindTurnMarker, KindSummon,
	}, kinds(prog))

	assert.Equal(t, 1, prog[0].Turn)
	assert.Equal(t, 1, prog[1].Character)
	assert.Equal(t, []Step{{Kind: StepSkill, N: 1, Raw: "useskill(1)"}}, prog[1].Steps)
	assert.Equal(t, 3, prog[2].Character)
	assert.Equal(t, []Step{
		{Kind: StepSkill, N: 2, Raw: "useskill(2)"},
		{Kind: StepTarget, N: 2, Raw: "target(2)"},
	}, prog[2].Steps)
	assert.Equal(t, 2, prog[4].Turn)
	assert.Equal(t, 1, prog[5].Summon)
	assert.True(t, prog[5].Chain.Attack)
	assert.Equal(t, []int{1, 2}, prog.Turns())
}

func TestParse_Comments(t *testing.T) {
	prog, err := Parse([]string{
		"// full line comment",
		"# another",
		"",
		"attack // inline",
		"reload # inline",
		"   ",
	})
	require.NoError(t, err)
	assert.Equal(t, []Kind{KindAttack, KindReload}, kinds(prog))
	assert.Equal(t, 4, prog[0].Line)
}

func TestParse_Lowercases(t *testing.T) {
	prog, err := Parse([]string{"TURN 1:", "Character2.UseSkill(3)", "EnableFullAuto"})
	require.NoError(t, err)
	require.Len(t, prog, 3)
	assert.Equal(t, 2, prog[1].Character)
	assert.Equal(t, AutoFull, prog[2].Mode)
}

func TestParse_MalformedTurnIsFatal(t *testing.T) {
	for _, line := range []string{"turn x:", "turn:", "turn 0:", "turn -2:"} {
		_, err := Parse([]string{"attack", line})
		var perr *ParseError
		require.True(t, errors.As(err, &perr), "line %q", line)
		assert.Equal(t, 2, perr.Line)
		assert.Equal(t, line, perr.Text)
	}
}

func TestParse_UnknownIsKept(t *testing.T) {
	prog, err := Parse([]string{"dance", "summon(7)", "targetenemy(4)", "back.attack"})
	require.NoError(t, err)
	assert.Equal(t, []Kind{KindUnknown, KindUnknown, KindUnknown, KindUnknown}, kinds(prog))
	assert.Equal(t, "summon(7)", prog[1].Raw)
}

func TestParse_Waits(t *testing.T) {
	prog, err := Parse([]string{"wait(1.5)", "wait(abc)", "wait(-1)", "character1.wait(0.25).useskill(1)"})
	require.NoError(t, err)
	require.Len(t, prog, 4)
	assert.Equal(t, 1500*time.Millisecond, prog[0].Wait.Duration())
	assert.False(t, prog[1].Wait.Valid)
	assert.Equal(t, FallbackWait, prog[1].Wait.Duration())
	assert.Equal(t, FallbackWait, prog[2].Wait.Duration())
	require.Len(t, prog[3].Steps, 2)
	assert.Equal(t, StepWait, prog[3].Steps[0].Kind)
	assert.Equal(t, 250*time.Millisecond, prog[3].Steps[0].Wait.Duration())
}

func TestParse_ChainModifiers(t *testing.T) {
	prog, err := Parse([]string{"summon(2).wait(3).attack", "quicksummon.wait(2)", "attack.wait(4)"})
	require.NoError(t, err)
	require.Len(t, prog, 3)
	require.NotNil(t, prog[0].Chain.Wait)
	assert.Equal(t, 3*time.Second, prog[0].Chain.Wait.Duration())
	assert.True(t, prog[0].Chain.Attack)
	assert.Equal(t, KindQuickSummon, prog[1].Kind)
	assert.False(t, prog[1].Chain.Attack)
	assert.Equal(t, KindAttack, prog[2].Kind)
	require.NotNil(t, prog[2].Chain.Wait)
}

func TestParse_HealingItems(t *testing.T) {
	prog, err := Parse([]string{
		"usegreenpotion.target(3)",
		"usebluepotion",
		"useclarityherb",
		"usefullelixir.target(1)",
	})
	require.NoError(t, err)
	require.Len(t, prog, 4)
	assert.Equal(t, ItemGreenPotion, prog[0].Item)
	assert.Equal(t, 3, prog[0].Target)
	assert.Equal(t, ItemBluePotion, prog[1].Item)
	assert.Equal(t, 0, prog[2].Target)
	assert.Equal(t, KindUnknown, prog[3].Kind)
}

func TestParse_CharacterSteps(t *testing.T) {
	prog, err := Parse([]string{"character4.useskill(2).target(6).bogus.attack"})
	require.NoError(t, err)
	require.Len(t, prog, 1)
	steps := prog[0].Steps
	require.Len(t, steps, 4)
	assert.Equal(t, StepSkill, steps[0].Kind)
	assert.Equal(t, StepTarget, steps[1].Kind)
	assert.Equal(t, 6, steps[1].N)
	assert.Equal(t, StepInvalid, steps[2].Kind)
	assert.Equal(t, StepAttack, steps[3].Kind)
}

func TestFormat_RoundTrip(t *testing.T) {
	src := []string{
		"turn 1: character1.useskill(1).character3.useskill(2).target(2)",
		"usegreenpotion.target(2)",
		"summon(3).wait(1.5).attack",
		"wait(nope)",
		"TargetEnemy(2)",
		"enablesemiauto",
		"repeatmanualattackandreload",
		"mystery.command",
	}
	prog, err := Parse(src)
	require.NoError(t, err)
	again, err := Parse(Format(prog))
	require.NoError(t, err)
	assert.True(t, Equivalent(prog, again), "%v\n%v", Format(prog), Format(again))
}

var bodyLines = []string{
	"attack", "attack.wait(2)", "attackback", "back", "reload", "end", "exit",
	"requestbackup", "tweetbackup", "repeatmanualattackandreload",
	"enablesemiauto", "enablefullauto", "quicksummon", "quicksummon.attack",
	"usebluepotion", "usefullelixir", "usesupportpotion", "userevivalpotion",
	"useclarityherb.target(4)", "usegreenpotion.target(1)",
}

func genLine(t *rapid.T, label string) string {
	switch rapid.IntRange(0, 7).Draw(t, label+"_kind") {
	case 0:
		return fmt.Sprintf("turn %d:", rapid.IntRange(1, 50).Draw(t, label+"_turn"))
	case 1:
		return fmt.Sprintf("character%d.useskill(%d)", rapid.IntRange(1, 4).Draw(t, label+"_c"), rapid.IntRange(1, 4).Draw(t, label+"_s"))
	case 2:
		return fmt.Sprintf("summon(%d)", rapid.IntRange(1, 6).Draw(t, label+"_summon"))
	case 3:
		return fmt.Sprintf("targetenemy(%d)", rapid.IntRange(1, 3).Draw(t, label+"_enemy"))
	case 4:
		return fmt.Sprintf("wait(%d.%d)", rapid.IntRange(0, 9).Draw(t, label+"_w"), rapid.IntRange(0, 9).Draw(t, label+"_f"))
	case 5:
		return "// " + rapid.StringMatching(`[a-z ]{0,12}`).Draw(t, label+"_comment")
	case 6:
		return rapid.StringMatching(`zz[a-s]{1,8}`).Draw(t, label+"_unknown")
	default:
		return rapid.SampledFrom(bodyLines).Draw(t, label+"_body")
	}
}

func TestPropertyParsePreservesOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 30).Draw(t, "n")
		lines := make([]string, n)
		var expected []string
		for i := range lines {
			lines[i] = genLine(t, fmt.Sprintf("line%d", i))
			if !strings.HasPrefix(lines[i], "//") {
				expected = append(expected, lines[i])
			}
		}
		prog, err := Parse(lines)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(prog) != len(expected) {
			t.Fatalf("got %d commands, want %d", len(prog), len(expected))
		}
		for i, c := range prog {
			single, err := ParseLine(1, expected[i])
			if err != nil || len(single) != 1 {
				t.Fatalf("reparse %q: %v", expected[i], err)
			}
			if single[0].Kind != c.Kind {
				t.Fatalf("command %d: kind %v, want %v", i, c.Kind, single[0].Kind)
			}
		}
	})
}

func TestPropertyFormatRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 30).Draw(t, "n")
		lines := make([]string, n)
		for i := range lines {
			lines[i] = genLine(t, fmt.Sprintf("line%d", i))
		}
		prog, err := Parse(lines)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		again, err := Parse(Format(prog))
		if err != nil {
			t.Fatalf("reparse: %v", err)
		}
		if !Equivalent(prog, again) {
			t.Fatalf("round trip mismatch:\n%v\n%v", Format(prog), Format(again))
		}
	})
}
