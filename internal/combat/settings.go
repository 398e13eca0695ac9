package combat

import (
	"slices"
	"strings"
	"time"

	"github.com/cory-johannsen/autocombat/internal/config"
)

// Settings is the read-only configuration a Runner consults.
type Settings struct {
	FarmingMode string
	Mission     string

	AutoExitRaid  bool
	RaidTimeLimit time.Duration

	RefreshDuringCombat bool
	ForceReload         bool
	AutoQuickSummon     bool

	// ReloadWait is the pause after an automatic reload.
	ReloadWait time.Duration
	// AttackTries bounds the poll cycles spent waiting for an attack to resolve.
	AttackTries int
	// EndLoopLimit bounds the cycles of the loop run after the script is exhausted.
	EndLoopLimit int
}

const (
	defaultReloadWait   = 3 * time.Second
	defaultAttackTries  = 100
	defaultEndLoopLimit = 7200
)

// SettingsFromConfig derives Settings from the application configuration.
// Timing adjustments apply only when combat.adjustment.enabled is set.
func SettingsFromConfig(cfg config.Config) Settings {
	s := Settings{
		FarmingMode:         cfg.Bot.FarmingMode,
		Mission:             cfg.Bot.Mission,
		AutoExitRaid:        cfg.Raid.AutoExit,
		RaidTimeLimit:       cfg.Raid.TimeLimit,
		RefreshDuringCombat: cfg.Combat.RefreshDuringCombat,
		ForceReload:         cfg.Combat.ForceReload,
		AutoQuickSummon:     cfg.Combat.AutoQuickSummon,
		ReloadWait:          defaultReloadWait,
		AttackTries:         defaultAttackTries,
		EndLoopLimit:        cfg.Combat.EndLoopLimit,
	}
	if cfg.Combat.Adjustment.Enabled {
		s.ReloadWait = cfg.Combat.Adjustment.ReloadWait
		s.AttackTries = cfg.Combat.Adjustment.AttackTries
	}
	return s.withDefaults()
}

func (s Settings) withDefaults() Settings {
	if s.AttackTries < 1 {
		s.AttackTries = defaultAttackTries
	}
	if s.EndLoopLimit < 1 {
		s.EndLoopLimit = defaultEndLoopLimit
	}
	return s
}

var (
	eventRaids         = []string{"VH Event Raid", "EX Event Raid", "IM Event Raid"}
	rotbRaids          = []string{"EX Zhuque", "EX Xuanwu", "EX Baihu", "EX Qinglong", "Lvl 100 Shenxian"}
	dreadBarrageRaids  = []string{"1 Star", "2 Star", "3 Star", "4 Star", "5 Star"}
	provingGroundRaids = []string{"Extreme", "Extreme+"}
	guildWarsRaids     = []string{"Very Hard", "Extreme", "Extreme+", "NM90", "NM95", "NM100", "NM150"}
	xenoClashRaids     = []string{"Xeno Clash Raid"}
)

// RaidLike reports whether the battle behaves like a raid: shared progress
// that benefits from reloading and an optional time limit.
func (s Settings) RaidLike() bool {
	switch s.FarmingMode {
	case "Raid", "Arcarum", "Arcarum Sandbox":
		return true
	case "Proving Grounds":
		return slices.Contains(provingGroundRaids, s.Mission)
	case "Guild Wars":
		return slices.Contains(guildWarsRaids, s.Mission)
	}
	return slices.Contains(eventRaids, s.Mission) ||
		slices.Contains(rotbRaids, s.Mission) ||
		slices.Contains(dreadBarrageRaids, s.Mission) ||
		slices.Contains(xenoClashRaids, s.Mission)
}

// backsOutOnWipe reports whether a party wipe is handled by leaving the
// battle without retreating.
func (s Settings) backsOutOnWipe() bool {
	switch s.FarmingMode {
	case "Raid", "Dread Barrage", "Guild Wars":
		return true
	}
	return strings.Contains(s.Mission, "Raid")
}

// reloadsAfterAttack reports whether attacks are followed by a page reload.
func (s Settings) reloadsAfterAttack(override bool) bool {
	if !s.RefreshDuringCombat {
		return false
	}
	return override || s.RaidLike() || (s.FarmingMode == "Generic" && s.ForceReload)
}
