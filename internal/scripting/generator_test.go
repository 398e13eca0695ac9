package scripting

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"
)

func TestRender_BuildsCommands(t *testing.T) {
	lines, err := Render(`
		combat.turn(1)
		combat.emit(combat.skill(1, 2), combat.skill(3, 1, 4))
		combat.emit(combat.summon(2, combat.wait(1.5), "attack"))
		for t = 2, 3 do
			combat.turn(t)
			combat.emit(combat.chain("character2", "useskill(1)"), "end")
		end
		combat.emit("enablefullauto")
	`, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"turn 1:",
		"character1.useskill(2)",
		"character3.useskill(1).target(4)",
		"summon(2).wait(1.5).attack",
		"turn 2:",
		"character2.useskill(1)",
		"end",
		"turn 3:",
		"character2.useskill(1)",
		"end",
		"enablefullauto",
	}, lines)
}

func TestRender_RejectsBadArguments(t *testing.T) {
	for _, src := range []string{
		`combat.turn(0)`,
		`combat.turn(1.5)`,
		`combat.skill("one", 2)`,
		`combat.emit("attack\nend")`,
	} {
		_, err := Render(src, 0)
		assert.Error(t, err, src)
		assert.False(t, errors.Is(err, ErrInstructionLimit), src)
	}
}

func TestRender_InstructionLimit(t *testing.T) {
	_, err := Render(`while true do combat.turn(1) end`, 1000)
	assert.ErrorIs(t, err, ErrInstructionLimit)
}

func TestRender_SandboxHidesFilesystem(t *testing.T) {
	_, err := Render(`io.open("/etc/passwd")`, 0)
	assert.Error(t, err)
}

func TestRenderFile_Directory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.lua"), []byte(`combat.turn(2) combat.emit(prefix .. "end")`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.lua"), []byte(`prefix = "" combat.turn(1)`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(`ignored`), 0644))

	lines, err := RenderFile(dir, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"turn 1:", "turn 2:", "end"}, lines)
}

func TestRenderFile_Missing(t *testing.T) {
	_, err := RenderFile(filepath.Join(t.TempDir(), "missing.lua"), 0)
	assert.Error(t, err)
}

func TestGenerator_Log(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	g := NewGenerator(0, zap.New(core))
	_, err := g.Render(`combat.turn(1) combat.log("rotation ready")`)
	require.NoError(t, err)
	require.Equal(t, 1, logs.FilterMessage("rotation ready").Len())
	assert.Equal(t, int64(1), logs.FilterMessage("rotation ready").All()[0].ContextMap()["lines"])
}

func TestPropertyTurnLoopEmitsEveryTurn(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 40).Draw(t, "n")
		lines, err := Render(`for i = 1, `+strconv.Itoa(n)+` do combat.turn(i) combat.emit("attack") end`, 0)
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		if len(lines) != 2*n {
			t.Fatalf("got %d lines, want %d", len(lines), 2*n)
		}
	})
}

