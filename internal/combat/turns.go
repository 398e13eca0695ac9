package combat

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/autocombat/internal/combat/script"
)

// turns advances the game's turn: ending a turn, waiting for the attack to
// resolve and reloading when the battle calls for it.
type turns struct {
	scr      screen
	monitor  *Monitor
	auto     *AutoController
	settings Settings
	logger   *zap.Logger
}

// reload is the result of the automatic reload policy.
type reload struct {
	Reloaded bool
	// Prev is the auto mode engaged before the reload cleared it.
	Prev   script.AutoMode
	Signal Signal
}

// nextWave taps the "Next" button between waves.
func (t *turns) nextWave(ctx context.Context, tries int) (bool, error) {
	if !t.scr.click(ctx, btnNext, tries) {
		return false, nil
	}
	t.logger.Info("moving to the next wave")
	return true, t.scr.wait(ctx, 3*time.Second)
}

// endTurn taps Attack, or lets auto mode attack, and waits for the attack
// animation to start resolving.
func (t *turns) endTurn(ctx context.Context, s *Session) (Signal, error) {
	t.logger.Info("ending turn", zap.Int("turn", s.CurrentTurn))
	s.State = StateTurnEnding

	if s.Auto != script.AutoNone {
		for i := 0; i < t.settings.AttackTries && t.scr.visible(ctx, btnAttack); i++ {
			if err := t.scr.wait(ctx, time.Second); err != nil {
				return SignalNone, err
			}
			if sig := t.monitor.Poll(ctx, s); sig.Terminal() {
				return sig, nil
			}
		}
	} else {
		t.scr.click(ctx, btnAttack, 10)
		if _, ok := t.scr.find(ctx, btnCombatCancel, 10); ok {
			for i := 0; i < t.settings.AttackTries && !t.scr.dev.Vision.WaitVanish(ctx, btnCombatCancel, 5*time.Second); i++ {
				t.logger.Debug("cancel button has not vanished yet")
				if err := t.scr.wait(ctx, time.Second); err != nil {
					return SignalNone, err
				}
			}
		}
	}

	if sig := t.monitor.Poll(ctx, s); sig.Terminal() {
		return sig, nil
	}
	_, err := t.nextWave(ctx, 3)
	return SignalNone, err
}

// finish closes the current turn: attack, optional reload, wait for the
// attack to resolve, then advance the turn counter.
func (t *turns) finish(ctx context.Context, s *Session) (Signal, error) {
	if sig, err := t.endTurn(ctx, s); sig.Terminal() || err != nil {
		return sig, err
	}
	r, err := t.reloadAfterAttack(ctx, s, false)
	if r.Signal.Terminal() || err != nil {
		return r.Signal, err
	}
	if sig, err := t.waitForAttack(ctx, s); sig.Terminal() || err != nil {
		return sig, err
	}
	t.logger.Info("turn ended", zap.Int("turn", s.CurrentTurn))
	s.advance()
	return SignalNone, nil
}

// waitForAttack polls until Attack or Next shows again, the party retreats,
// the battle ends or AttackTries cycles pass.
func (t *turns) waitForAttack(ctx context.Context, s *Session) (Signal, error) {
	t.logger.Debug("waiting for attack to end", zap.Int("turn", s.CurrentTurn))
	for tries := t.settings.AttackTries; tries > 0 && !s.Retreated; tries-- {
		if err := ctx.Err(); err != nil {
			return SignalNone, err
		}
		if t.scr.visible(ctx, btnAttack) || t.scr.visible(ctx, btnNext) {
			break
		}
		t.monitor.CheckDialog(ctx)
		if err := t.monitor.CheckWipe(ctx, s); err != nil {
			return SignalNone, err
		}
		if sig := t.monitor.Poll(ctx, s); sig.Terminal() {
			return sig, nil
		}
	}
	t.logger.Debug("attack ended", zap.Int("turn", s.CurrentTurn))
	return SignalNone, nil
}

// reloadAfterAttack reloads the page while an attack resolves, when the
// battle type and settings call for it. A reload clears the auto indicators,
// so s.Auto is reset and the previous mode reported for re-engagement.
func (t *turns) reloadAfterAttack(ctx context.Context, s *Session, override bool) (reload, error) {
	if !t.settings.reloadsAfterAttack(override) {
		return reload{}, nil
	}
	if sig := t.monitor.Poll(ctx, s); sig.Terminal() {
		return reload{Signal: sig}, nil
	}
	t.logger.Info("reloading", zap.Int("turn", s.CurrentTurn))
	t.scr.click(ctx, btnReload, DefaultTries)
	prev := s.Auto
	s.Auto = script.AutoNone
	return reload{Reloaded: true, Prev: prev}, t.scr.wait(ctx, t.settings.ReloadWait)
}

// reconcile performs one filler attack cycle toward s.TargetTurn. Auto is
// disengaged when the next turn is the declared one so the block's commands
// run manually.
func (t *turns) reconcile(ctx context.Context, s *Session) (Signal, error) {
	t.monitor.CheckDialog(ctx)
	t.logger.Info("attacking to reach declared turn",
		zap.Int("turn", s.CurrentTurn),
		zap.Int("target_turn", s.TargetTurn),
	)

	busy := btnAttack
	if s.Auto == script.AutoNone {
		t.scr.click(ctx, btnAttack, 30)
		busy = btnCancel
	}
	for i := 0; i < t.settings.AttackTries && t.scr.visible(ctx, busy); i++ {
		if err := t.scr.wait(ctx, time.Second); err != nil {
			return SignalNone, err
		}
		if sig := t.monitor.Poll(ctx, s); sig.Terminal() {
			return sig, nil
		}
	}

	reloaded := false
	if s.CurrentTurn+1 == s.TargetTurn {
		r, err := t.reloadAfterAttack(ctx, s, false)
		if r.Signal.Terminal() || err != nil {
			return r.Signal, err
		}
		reloaded = r.Reloaded
		if !reloaded {
			t.auto.Disengage(ctx, s)
		}
	}

	if err := t.scr.wait(ctx, time.Second); err != nil {
		return SignalNone, err
	}

	if !reloaded {
		r, err := t.reloadAfterAttack(ctx, s, false)
		if r.Signal.Terminal() || err != nil {
			return r.Signal, err
		}
		if r.Reloaded {
			t.auto.Reengage(ctx, s, r.Prev)
		}
	}

	if sig, err := t.waitForAttack(ctx, s); sig.Terminal() || err != nil {
		return sig, err
	}
	if _, err := t.nextWave(ctx, 3); err != nil {
		return SignalNone, err
	}
	t.logger.Info("turn ended", zap.Int("turn", s.CurrentTurn))
	s.advance()
	return SignalNone, nil
}
