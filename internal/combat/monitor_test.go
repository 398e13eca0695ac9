package combat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"
)

func raidSettings() Settings {
	s := questSettings()
	s.FarmingMode = "Raid"
	s.Mission = "Lvl 100 Proto Bahamut"
	s.AutoExitRaid = true
	s.RaidTimeLimit = time.Minute
	return s
}

func TestClassify_Precedence(t *testing.T) {
	m := NewMonitor(newFakeGame().device(), raidSettings(), zap.NewNop())
	all := Observation{Retreated: true, NoLoot: true, BattleConcluded: true, ExpGained: true, LootCollected: true}

	tests := []struct {
		name    string
		obs     Observation
		elapsed time.Duration
		want    Signal
	}{
		{"time limit beats everything", all, 2 * time.Minute, SignalTimeExceeded},
		{"retreat counts as no loot", Observation{Retreated: true, ExpGained: true}, 0, SignalNoLoot},
		{"no loot beats concluded", Observation{NoLoot: true, BattleConcluded: true}, 0, SignalNoLoot},
		{"concluded beats exp", Observation{BattleConcluded: true, ExpGained: true}, 0, SignalBattleConcluded},
		{"exp beats loot", Observation{ExpGained: true, LootCollected: true}, 0, SignalExpGained},
		{"loot alone", Observation{LootCollected: true}, 0, SignalLootCollected},
		{"nothing", Observation{}, 59 * time.Second, SignalNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Classify(tt.obs, tt.elapsed))
		})
	}
}

func TestClassify_TimeLimitOnlyForRaidLike(t *testing.T) {
	s := raidSettings()
	s.FarmingMode = "Quest"
	s.Mission = "Angel Halo"
	m := NewMonitor(newFakeGame().device(), s, zap.NewNop())
	assert.Equal(t, SignalNone, m.Classify(Observation{}, time.Hour))

	s = raidSettings()
	s.AutoExitRaid = false
	m = NewMonitor(newFakeGame().device(), s, zap.NewNop())
	assert.Equal(t, SignalNone, m.Classify(Observation{}, time.Hour))
}

func TestSignalOutcomes(t *testing.T) {
	assert.Equal(t, OutcomeSuccess, SignalBattleConcluded.Outcome())
	assert.Equal(t, OutcomeSuccess, SignalExpGained.Outcome())
	assert.Equal(t, OutcomeSuccess, SignalLootCollected.Outcome())
	assert.Equal(t, OutcomeFailure, SignalNoLoot.Outcome())
	assert.Equal(t, OutcomeFailure, SignalTimeExceeded.Outcome())
	assert.False(t, SignalNone.Terminal())
	assert.Equal(t, "battle_concluded", SignalBattleConcluded.String())
	assert.Equal(t, "aborted", OutcomeAborted.String())
}

func TestPoll_StopsAtFirstMatch(t *testing.T) {
	g := newFakeGame(scrNoLoot, scrExpGained)
	m := NewMonitor(g.device(), questSettings(), zap.NewNop())

	sig := m.Poll(context.Background(), newTestSession(g))

	assert.Equal(t, SignalNoLoot, sig)
	assert.Equal(t, []string{scrNoLoot}, g.confirms)
}

func TestPoll_SkipsIndicatorsWhenRetreated(t *testing.T) {
	g := newFakeGame(scrExpGained)
	m := NewMonitor(g.device(), questSettings(), zap.NewNop())
	s := newTestSession(g)
	s.Retreated = true

	assert.Equal(t, SignalNoLoot, m.Poll(context.Background(), s))
	assert.Empty(t, g.confirms)
}

func TestPoll_ConcludedBattleReloads(t *testing.T) {
	g := newFakeGame(scrBattleConcluded, btnReload)
	m := NewMonitor(g.device(), questSettings(), zap.NewNop())

	assert.Equal(t, SignalBattleConcluded, m.Poll(context.Background(), newTestSession(g)))
	assert.Equal(t, []string{btnReload}, g.taps)
}

func TestPoll_TimeExceeded(t *testing.T) {
	g := newFakeGame()
	m := NewMonitor(g.device(), raidSettings(), zap.NewNop())
	s := newTestSession(g)
	g.now = g.now.Add(61 * time.Second)

	assert.Equal(t, SignalTimeExceeded, m.Poll(context.Background(), s))
	assert.Empty(t, g.confirms)
}

func TestCheckWipe_NoWipe(t *testing.T) {
	g := newFakeGame(btnAttack)
	m := NewMonitor(g.device(), questSettings(), zap.NewNop())
	s := newTestSession(g)

	require.NoError(t, m.CheckWipe(context.Background(), s))
	assert.False(t, s.Retreated)
	assert.Empty(t, g.taps)
}

func TestCheckWipe_Retreats(t *testing.T) {
	g := newFakeGame(btnWipeIndicator, btnCancel, btnRetreatConfirm)
	m := NewMonitor(g.device(), questSettings(), zap.NewNop())
	s := newTestSession(g)

	require.NoError(t, m.CheckWipe(context.Background(), s))

	assert.True(t, s.Retreated)
	assert.Equal(t, StateRetreated, s.State)
	assert.Equal(t, []string{btnWipeIndicator, btnCancel, btnRetreatConfirm}, g.taps)
	assert.Zero(t, g.home)
}

func TestCheckWipe_RaidBacksOut(t *testing.T) {
	g := newFakeGame(btnWipeIndicator, btnCancel, btnRetreatConfirm)
	m := NewMonitor(g.device(), raidSettings(), zap.NewNop())
	s := newTestSession(g)

	require.NoError(t, m.CheckWipe(context.Background(), s))

	assert.True(t, s.Retreated)
	assert.Equal(t, 1, g.home)
	assert.Empty(t, g.taps)
}

func TestCheckWipe_CoopLeavesRoom(t *testing.T) {
	g := newFakeGame(scrSaluteParticipants, btnSalute, btnOK, btnCancel, btnLeave)
	s := questSettings()
	s.FarmingMode = "Coop"
	m := NewMonitor(g.device(), s, zap.NewNop())
	sess := newTestSession(g)

	require.NoError(t, m.CheckWipe(context.Background(), sess))

	assert.True(t, sess.Retreated)
	assert.Equal(t, []string{btnSalute, btnOK, btnCancel, btnLeave}, g.taps)
}

func TestCheckDialog(t *testing.T) {
	g := newFakeGame(btnDialogVyrn)
	m := NewMonitor(g.device(), questSettings(), zap.NewNop())

	m.CheckDialog(context.Background())

	assert.Equal(t, []string{btnDialogVyrn}, g.taps)
}

func TestPropertyClassifyFollowsPrecedence(t *testing.T) {
	m := NewMonitor(newFakeGame().device(), raidSettings(), zap.NewNop())
	rapid.Check(t, func(t *rapid.T) {
		obs := Observation{
			Retreated:       rapid.Bool().Draw(t, "retreated"),
			NoLoot:          rapid.Bool().Draw(t, "no_loot"),
			BattleConcluded: rapid.Bool().Draw(t, "concluded"),
			ExpGained:       rapid.Bool().Draw(t, "exp"),
			LootCollected:   rapid.Bool().Draw(t, "loot"),
		}
		elapsed := time.Duration(rapid.Int64Range(0, int64(2*time.Minute)).Draw(t, "elapsed"))

		got := m.Classify(obs, elapsed)
		if again := m.Classify(obs, elapsed); again != got {
			t.Fatalf("classification not deterministic: %v then %v", got, again)
		}

		var want Signal
		switch {
		case elapsed >= time.Minute:
			want = SignalTimeExceeded
		case obs.Retreated || obs.NoLoot:
			want = SignalNoLoot
		case obs.BattleConcluded:
			want = SignalBattleConcluded
		case obs.ExpGained:
			want = SignalExpGained
		case obs.LootCollected:
			want = SignalLootCollected
		}
		if got != want {
			t.Fatalf("classify(%+v, %v) = %v, want %v", obs, elapsed, got, want)
		}
	})
}
