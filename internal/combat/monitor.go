package combat

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Observation holds the battle-end indicators seen during one poll.
type Observation struct {
	Retreated       bool
	NoLoot          bool
	BattleConcluded bool
	ExpGained       bool
	LootCollected   bool
}

// Monitor classifies battle-end screens and handles party wipes and dialogs.
type Monitor struct {
	scr      screen
	settings Settings
	logger   *zap.Logger
}

// NewMonitor returns a Monitor bound to dev.
func NewMonitor(dev Device, settings Settings, logger *zap.Logger) *Monitor {
	logger = logger.Named("monitor")
	return &Monitor{scr: screen{dev: dev, logger: logger}, settings: settings.withDefaults(), logger: logger}
}

// Classify maps an observation and elapsed time to a signal. The first
// matching rule wins: time exceeded, no loot (or retreated), battle
// concluded, exp gained, loot collected.
//
// Postcondition: The result depends only on obs, elapsed and the Monitor's settings.
func (m *Monitor) Classify(obs Observation, elapsed time.Duration) Signal {
	switch {
	case m.settings.AutoExitRaid && m.settings.RaidLike() && elapsed >= m.settings.RaidTimeLimit:
		return SignalTimeExceeded
	case obs.Retreated || obs.NoLoot:
		return SignalNoLoot
	case obs.BattleConcluded:
		return SignalBattleConcluded
	case obs.ExpGained:
		return SignalExpGained
	case obs.LootCollected:
		return SignalLootCollected
	default:
		return SignalNone
	}
}

// Poll observes the screen and classifies it. Indicators are checked lazily
// in precedence order and checking stops at the first match. A concluded
// battle is reloaded before the signal is returned.
func (m *Monitor) Poll(ctx context.Context, s *Session) Signal {
	elapsed := m.scr.now().Sub(s.StartTime)
	obs := Observation{Retreated: s.Retreated}
	sig := m.Classify(obs, elapsed)

	indicators := []struct {
		id  string
		set func(*Observation)
	}{
		{scrNoLoot, func(o *Observation) { o.NoLoot = true }},
		{scrBattleConcluded, func(o *Observation) { o.BattleConcluded = true }},
		{scrExpGained, func(o *Observation) { o.ExpGained = true }},
		{scrLootCollected, func(o *Observation) { o.LootCollected = true }},
	}
	for _, p := range indicators {
		if sig != SignalNone {
			break
		}
		if m.scr.confirm(ctx, p.id, 1) {
			p.set(&obs)
			sig = m.Classify(obs, elapsed)
		}
	}

	if sig == SignalBattleConcluded {
		m.logger.Info("battle concluded suddenly, reloading")
		m.scr.click(ctx, btnReload, DefaultTries)
	}
	if sig != SignalNone {
		m.logger.Info("battle ended",
			zap.Stringer("signal", sig),
			zap.Int("turn", s.CurrentTurn),
			zap.Duration("elapsed", elapsed),
		)
	} else {
		m.logger.Debug("battle continues", zap.Int("turn", s.CurrentTurn))
	}
	return sig
}

// CheckWipe handles a wiped party. Coop rooms are left after saluting the
// participants, raid-like battles are abandoned by going home, and every
// other battle is retreated from. Each path marks the session retreated.
func (m *Monitor) CheckWipe(ctx context.Context, s *Session) error {
	indicator, wiped := m.scr.find(ctx, btnWipeIndicator, 1)
	salute := m.scr.confirm(ctx, scrSaluteParticipants, 1)
	if !wiped && !salute {
		m.logger.Debug("party has not wiped")
		return nil
	}

	switch {
	case m.settings.FarmingMode == "Coop" && salute:
		m.logger.Warn("party wiped in coop, leaving the room", zap.Int("turn", s.CurrentTurn))
		m.scr.click(ctx, btnSalute, DefaultTries)
		if err := m.scr.wait(ctx, time.Second); err != nil {
			return err
		}
		m.scr.click(ctx, btnOK, DefaultTries)
		m.scr.click(ctx, btnCancel, DefaultTries)
		if err := m.scr.wait(ctx, time.Second); err != nil {
			return err
		}
		m.scr.click(ctx, btnLeave, DefaultTries)
	case m.settings.backsOutOnWipe():
		m.logger.Warn("party wiped in raid, backing out without retreating", zap.Int("turn", s.CurrentTurn))
		if err := m.scr.dev.Navigator.GoBackHome(ctx); err != nil {
			m.logger.Warn("going home after wipe", zap.Error(err))
		}
	default:
		m.logger.Warn("party wiped, retreating", zap.Int("turn", s.CurrentTurn))
		if wiped {
			m.scr.tap(ctx, indicator, btnWipeIndicator)
		}
		m.scr.click(ctx, btnCancel, DefaultTries)
		if err := m.scr.wait(ctx, time.Second); err != nil {
			return err
		}
		m.scr.click(ctx, btnRetreatConfirm, DefaultTries)
	}
	s.Retreated = true
	s.State = StateRetreated
	return nil
}

// CheckDialog dismisses a companion dialog popup covering the battle screen.
func (m *Monitor) CheckDialog(ctx context.Context) {
	for _, id := range []string{btnDialogLyria, btnDialogVyrn} {
		if loc, ok := m.scr.find(ctx, id, 2); ok {
			m.logger.Debug("dismissing dialog", zap.String("dialog", id))
			m.scr.tap(ctx, loc, id)
			return
		}
	}
}
