package combat

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/autocombat/internal/combat/script"
	"github.com/cory-johannsen/autocombat/internal/config"
	"github.com/cory-johannsen/autocombat/internal/observability"
)

func mustParse(t testing.TB, lines ...string) script.Program {
	t.Helper()
	prog, err := script.Parse(lines)
	require.NoError(t, err)
	return prog
}

// expAfterFullAuto ends the battle as soon as full auto is engaged.
func expAfterFullAuto() *fakeGame {
	g := newFakeGame(btnAttack, btnFullAuto)
	g.onTap[btnFullAuto] = func() { g.show(scrExpGained) }
	return g
}

func TestRun_AttackThenEndAdvancesTurn(t *testing.T) {
	g := expAfterFullAuto()
	r := newTestRunner(g, questSettings())

	res := r.Run(context.Background(), mustParse(t, "turn 1:", "attack", "end"))

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, SignalExpGained, res.Signal)
	assert.Equal(t, 2, res.Turn)
	assert.Equal(t, 2, g.tapped(btnAttack))
	assert.Equal(t, 1, g.tapped(btnFullAuto))
}

func TestRun_ReconcilesToDeclaredTurn(t *testing.T) {
	g := expAfterFullAuto()
	r := newTestRunner(g, questSettings())

	res := r.Run(context.Background(), mustParse(t, "turn 3:", "end"))

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, 4, res.Turn)
	// Two filler attacks then the block's end.
	assert.Equal(t, 3, g.tapped(btnAttack))
}

func TestRun_NoLootStopsImmediately(t *testing.T) {
	g := newFakeGame(btnAttack, btnSummon)
	g.onTap[btnAttack] = func() { g.show(scrNoLoot) }
	r := newTestRunner(g, questSettings())

	res := r.Run(context.Background(), mustParse(t, "turn 1:", "attack", "summon(1).attack", "end"))

	assert.Equal(t, OutcomeFailure, res.Outcome)
	assert.Equal(t, SignalNoLoot, res.Signal)
	assert.Equal(t, 1, res.Turn)
	assert.Zero(t, g.tapped(btnSummon))
	assert.Equal(t, 1, g.tapped(btnAttack))
}

func TestRun_TimeExceededInRaid(t *testing.T) {
	g := newFakeGame(btnAttack)
	s := questSettings()
	s.FarmingMode = "Raid"
	s.Mission = "Lvl 100 Proto Bahamut"
	s.AutoExitRaid = true
	s.RaidTimeLimit = time.Minute
	r := newTestRunner(g, s)

	res := r.Run(context.Background(), mustParse(t, "turn 1:", "wait(90)"))

	assert.Equal(t, OutcomeFailure, res.Outcome)
	assert.Equal(t, SignalTimeExceeded, res.Signal)
}

func TestRun_RaidAlreadyConcluded(t *testing.T) {
	g := newFakeGame(btnAttack, btnNext)
	s := questSettings()
	s.FarmingMode = "Raid"
	r := newTestRunner(g, s)

	res := r.Run(context.Background(), mustParse(t, "turn 1:"))

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, SignalNone, res.Signal)
	assert.Equal(t, 1, g.tapped(btnNext))
}

func TestRun_ExitAborts(t *testing.T) {
	g := newFakeGame(btnAttack)
	r := newTestRunner(g, questSettings())

	res := r.Run(context.Background(), mustParse(t, "turn 1:", "exit", "attack"))

	assert.Equal(t, OutcomeAborted, res.Outcome)
	assert.Equal(t, 1, g.home)
	assert.Zero(t, g.tapped(btnAttack))
}

func TestRun_AutoSkipsManualCommands(t *testing.T) {
	g := newFakeGame(btnAttack, btnFullAuto, btnSummon)
	g.onSleep = func() {
		if g.tapped(btnFullAuto) > 0 {
			g.show(scrExpGained)
		}
	}
	r := newTestRunner(g, questSettings())

	res := r.Run(context.Background(), mustParse(t, "turn 1:", "enablefullauto", "attack", "summon(1)", "end"))

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, 1, res.Turn)
	assert.Zero(t, g.tapped(btnAttack))
	assert.Zero(t, g.tapped(btnSummon))
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	g := newFakeGame(btnAttack)
	r := newTestRunner(g, questSettings())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := r.Run(ctx, mustParse(t, "turn 1:", "attack"))

	assert.Equal(t, OutcomeAborted, res.Outcome)
	assert.Empty(t, g.taps)
}

func TestRun_CancelledDuringWait(t *testing.T) {
	g := newFakeGame(btnAttack)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g.onSleep = cancel
	r := newTestRunner(g, questSettings())

	res := r.Run(ctx, mustParse(t, "turn 1:", "wait(2)", "attack"))

	assert.Equal(t, OutcomeAborted, res.Outcome)
	assert.Zero(t, g.tapped(btnAttack))
}

func TestRun_MissingAttackButtonFails(t *testing.T) {
	g := newFakeGame()
	r := newTestRunner(g, questSettings())

	res := r.Run(context.Background(), mustParse(t, "turn 1:", "attack"))

	assert.Equal(t, OutcomeFailure, res.Outcome)
	assert.Equal(t, "attack button not found", res.Reason)
}

func TestRunScript_MalformedTurnIsFatal(t *testing.T) {
	g := newFakeGame(btnAttack)
	r := newTestRunner(g, questSettings())

	res, err := r.RunScript(context.Background(), []string{"turn 1:", "attack", "turn two:"})

	var perr *script.ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 3, perr.Line)
	assert.Equal(t, OutcomeFailure, res.Outcome)
	assert.Empty(t, g.taps)
}

func TestRun_DeclaredTurnBehindIsClamped(t *testing.T) {
	g := expAfterFullAuto()
	core, logs := observer.New(zap.WarnLevel)
	r := NewRunner(g.device(), testLayout(), questSettings(), zap.New(core))

	res := r.Run(context.Background(), mustParse(t, "turn 1:", "end", "turn 1:", "attack"))

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, 2, res.Turn)
	assert.Equal(t, 2, g.tapped(btnAttack))
	assert.Equal(t, 1, logs.FilterMessage("declared turn is behind the current turn, running its block now").Len())
}

func TestRun_CommandsAfterEndWaitForNextBlock(t *testing.T) {
	g := expAfterFullAuto()
	g.show(btnSummon)
	r := newTestRunner(g, questSettings())

	res := r.Run(context.Background(), mustParse(t, "turn 1:", "end", "summon(1)", "turn 2:", "attack"))

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Zero(t, g.tapped(btnSummon))
	assert.Equal(t, 2, g.tapped(btnAttack))
}

func TestRun_ManualEndLoop(t *testing.T) {
	g := newFakeGame(btnAttack, btnFullAuto)
	g.onTap[btnAttack] = func() {
		if g.tapped(btnAttack) == 3 {
			g.show(scrLootCollected)
		}
	}
	r := newTestRunner(g, questSettings())

	res := r.Run(context.Background(), mustParse(t, "turn 1:", "repeatmanualattackandreload"))

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, SignalLootCollected, res.Signal)
	assert.Zero(t, g.tapped(btnFullAuto))
}

func TestRun_EndLoopLimit(t *testing.T) {
	g := newFakeGame(btnAttack, btnFullAuto)
	r := newTestRunner(g, questSettings())

	res := r.Run(context.Background(), mustParse(t, "turn 1:"))

	assert.Equal(t, OutcomeFailure, res.Outcome)
	assert.Equal(t, "end loop limit reached", res.Reason)
}

func TestRun_FallsBackToManualWhenAutoUnavailable(t *testing.T) {
	g := newFakeGame(btnAttack)
	g.onTap[btnAttack] = func() {
		if g.tapped(btnAttack) == 4 {
			g.show(scrBattleConcluded, btnReload)
		}
	}
	r := newTestRunner(g, questSettings())

	res := r.Run(context.Background(), mustParse(t, "turn 1:"))

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, SignalBattleConcluded, res.Signal)
	assert.Equal(t, 1, g.tapped(btnReload))
}

// reloadingAutoGame hides Attack once full auto first engages and ends the
// battle when full auto is engaged again after a reload.
func reloadingAutoGame() *fakeGame {
	g := newFakeGame(btnAttack, btnFullAuto, btnReload)
	g.onTap[btnFullAuto] = func() {
		if g.tapped(btnFullAuto) == 1 {
			g.hide(btnAttack)
			return
		}
		g.show(scrExpGained)
	}
	g.onTap[btnReload] = func() { g.show(btnAttack) }
	return g
}

func TestRun_ForcedReloadReengagesFullAuto(t *testing.T) {
	g := reloadingAutoGame()
	s := questSettings()
	s.FarmingMode = "Generic"
	s.Mission = ""
	s.RefreshDuringCombat = true
	s.ForceReload = true
	r := newTestRunner(g, s)

	res := r.Run(context.Background(), mustParse(t, "turn 1:"))

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, SignalExpGained, res.Signal)
	assert.Equal(t, []string{btnFullAuto, btnReload, btnFullAuto}, g.taps)
}

func TestRun_RaidReloadRestartsFullAuto(t *testing.T) {
	g := reloadingAutoGame()
	s := questSettings()
	s.FarmingMode = "Raid"
	s.Mission = "Lvl 100 Proto Bahamut"
	s.RefreshDuringCombat = true
	r := newTestRunner(g, s)

	res := r.Run(context.Background(), mustParse(t, "turn 1:"))

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, SignalExpGained, res.Signal)
	assert.Equal(t, []string{btnFullAuto, btnReload, btnFullAuto}, g.taps)
}

func TestRun_RecordsMetricsAndElapsed(t *testing.T) {
	g := expAfterFullAuto()
	reg := prometheus.NewRegistry()
	stats := config.NewStats()
	r := newTestRunner(g, questSettings(), WithMetrics(observability.NewMetrics(reg)), WithElapsedRecorder(stats))

	res := r.Run(context.Background(), mustParse(t, "turn 1:", "attack", "end"))
	require.Equal(t, OutcomeSuccess, res.Outcome)

	_, ok := stats.CombatElapsed("Angel Halo")
	assert.True(t, ok)
	n, err := testutil.GatherAndCount(reg, "autocombat_commands_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = testutil.GatherAndCount(reg, "autocombat_battle_end_signals_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRun_FailureDoesNotRecordElapsed(t *testing.T) {
	g := newFakeGame(btnAttack)
	g.onTap[btnAttack] = func() { g.show(scrNoLoot) }
	stats := config.NewStats()
	r := newTestRunner(g, questSettings(), WithElapsedRecorder(stats))

	res := r.Run(context.Background(), mustParse(t, "turn 1:", "attack", "end"))

	assert.Equal(t, OutcomeFailure, res.Outcome)
	_, ok := stats.CombatElapsed("Angel Halo")
	assert.False(t, ok)
}

func TestReconcile_ReloadBeforeDeclaredTurnInRaid(t *testing.T) {
	g := newFakeGame(btnAttack, btnReload)
	s := questSettings()
	s.FarmingMode = "Raid"
	s.RefreshDuringCombat = true
	d := NewDispatcher(g.device(), testLayout(), s, zap.NewNop())
	sess := newTestSession(g)
	sess.Auto = script.AutoFull
	sess.TargetTurn = 2

	sig, err := d.turns.reconcile(context.Background(), sess)

	require.NoError(t, err)
	assert.Equal(t, SignalNone, sig)
	assert.Equal(t, 2, sess.CurrentTurn)
	assert.Equal(t, script.AutoNone, sess.Auto)
	assert.Equal(t, 1, g.tapped(btnReload))
}

var runnerLines = []string{
	"attack", "end", "back", "attackback", "reload", "wait(1)", "wait(x)",
	"enablefullauto", "enablesemiauto", "summon(2).attack", "quicksummon",
	"character1.useskill(2).target(1)", "targetenemy(3)", "usegreenpotion.target(2)",
	"requestbackup", "tweetbackup", "repeatmanualattackandreload", "bogus",
}

func TestPropertyRunIsDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 12).Draw(t, "n")
		lines := make([]string, 0, n)
		for i := 0; i < n; i++ {
			if rapid.IntRange(0, 4).Draw(t, fmt.Sprintf("marker%d", i)) == 0 {
				lines = append(lines, fmt.Sprintf("turn %d:", rapid.IntRange(1, 4).Draw(t, fmt.Sprintf("turn%d", i))))
				continue
			}
			lines = append(lines, rapid.SampledFrom(runnerLines).Draw(t, fmt.Sprintf("line%d", i)))
		}
		prog, err := script.Parse(lines)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}

		run := func() (Result, []string) {
			g := newFakeGame(btnAttack, btnFullAuto, btnSemiAuto, btnSummon, btnOK, btnCancel)
			s := questSettings()
			s.EndLoopLimit = 3
			s.AttackTries = 2
			return newTestRunner(g, s).Run(context.Background(), prog), g.taps
		}
		a, tapsA := run()
		b, tapsB := run()
		if a.Outcome != b.Outcome || a.Turn != b.Turn || a.Signal != b.Signal || a.Elapsed != b.Elapsed {
			t.Fatalf("runs differ: %+v vs %+v", a, b)
		}
		if fmt.Sprint(tapsA) != fmt.Sprint(tapsB) {
			t.Fatalf("taps differ:\n%v\n%v", tapsA, tapsB)
		}
		if a.Turn < 1 {
			t.Fatalf("turn %d below 1", a.Turn)
		}
	})
}
