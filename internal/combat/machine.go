package combat

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/autocombat/internal/combat/layout"
	"github.com/cory-johannsen/autocombat/internal/combat/script"
	"github.com/cory-johannsen/autocombat/internal/observability"
)

// ElapsedRecorder receives the elapsed time of a successful battle.
type ElapsedRecorder interface {
	SetCombatElapsed(mission string, d time.Duration)
}

// Option configures a Runner.
type Option func(*Runner)

// WithMetrics records session, command and signal metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithElapsedRecorder writes back the elapsed combat time on success.
func WithElapsedRecorder(rec ElapsedRecorder) Option {
	return func(r *Runner) { r.elapsed = rec }
}

// Runner executes combat programs, one session per call to Run.
type Runner struct {
	scr        screen
	settings   Settings
	dispatcher *Dispatcher
	monitor    *Monitor
	auto       *AutoController
	turns      *turns
	logger     *zap.Logger
	metrics    *observability.Metrics
	elapsed    ElapsedRecorder
}

// NewRunner wires a Runner to dev.
//
// Precondition: dev's collaborators are non-nil; logger is non-nil.
func NewRunner(dev Device, geo layout.Layout, settings Settings, logger *zap.Logger, opts ...Option) *Runner {
	settings = settings.withDefaults()
	d := NewDispatcher(dev, geo, settings, logger)
	logger = logger.Named("combat")
	r := &Runner{
		scr:        screen{dev: dev, logger: logger},
		settings:   settings,
		dispatcher: d,
		monitor:    d.monitor,
		auto:       d.auto,
		turns:      d.turns,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunScript parses lines and runs the resulting program.
//
// Postcondition: A malformed turn marker returns a *script.ParseError and a
// Failure result without touching the device.
func (r *Runner) RunScript(ctx context.Context, lines []string) (Result, error) {
	prog, err := script.Parse(lines)
	if err != nil {
		r.logger.Error("combat script rejected", zap.Error(err))
		return Result{Outcome: OutcomeFailure, Turn: 1, Reason: err.Error()}, fmt.Errorf("parsing combat script: %w", err)
	}
	return r.Run(ctx, prog), nil
}

// Run plays one battle with prog and returns its outcome.
//
// Postcondition: Exactly one Result is returned. Context cancellation yields
// OutcomeAborted; a missing attack button yields OutcomeFailure.
func (r *Runner) Run(ctx context.Context, prog script.Program) Result {
	s := newSession(r.scr.now())
	log := r.logger.With(zap.String("session_id", s.ID.String()))
	log.Info("starting combat", zap.Int("commands", len(prog)))

	if ctx.Err() != nil {
		return r.finish(s, SignalNone, OutcomeAborted, "cancelled before start")
	}
	if r.settings.FarmingMode == "Arcarum" {
		r.scr.click(ctx, btnArcarumStageEffect, 10)
	}
	loc, ok := r.scr.find(ctx, btnAttack, 50)
	if !ok {
		log.Error("cannot find the attack button, the battle may have just ended")
		return r.finish(s, SignalNone, OutcomeFailure, "attack button not found")
	}
	s.attackButton = loc

	sig, exit, err := r.runProgram(ctx, prog, s)
	switch {
	case err != nil:
		return r.finish(s, SignalNone, OutcomeAborted, err.Error())
	case exit:
		return r.finish(s, SignalNone, OutcomeAborted, "script exit")
	case sig.Terminal():
		return r.finish(s, sig, sig.Outcome(), "")
	}

	// A raid may end as the bot loads in, leaving only the Next button.
	if r.settings.FarmingMode == "Raid" && r.scr.click(ctx, btnNext, 3) {
		log.Info("raid already concluded")
		return r.finish(s, SignalNone, OutcomeSuccess, "raid concluded on arrival")
	}

	log.Info("script exhausted, attacking until the battle ends", zap.Int("turn", s.CurrentTurn))
	sig, err = r.endLoop(ctx, s)
	switch {
	case err != nil:
		return r.finish(s, SignalNone, OutcomeAborted, err.Error())
	case sig.Terminal():
		return r.finish(s, sig, sig.Outcome(), "")
	}
	return r.finish(s, SignalNone, OutcomeFailure, "end loop limit reached")
}

// allowedUnderAuto lists the commands still dispatched inside a turn block
// while auto mode drives the battle.
func allowedUnderAuto(k script.Kind) bool {
	switch k {
	case script.KindEnableAuto, script.KindRepeatManualAttackAndReload, script.KindReload, script.KindExit:
		return true
	}
	return false
}

func (r *Runner) runProgram(ctx context.Context, prog script.Program, s *Session) (Signal, bool, error) {
	for _, cmd := range prog {
		if err := ctx.Err(); err != nil {
			return SignalNone, false, err
		}
		if s.Retreated {
			return r.monitor.Poll(ctx, s), false, nil
		}
		log := r.logger.With(zap.String("command", cmd.Raw), zap.Int("line", cmd.Line))

		if cmd.Kind == script.KindTurnMarker {
			if sig, err := r.startTurn(ctx, s, cmd.Turn); sig.Terminal() || err != nil {
				return sig, false, err
			}
			continue
		}

		if !s.InBlock() {
			if err := r.outsideBlock(ctx, cmd, s); err != nil {
				return SignalNone, false, err
			}
			continue
		}

		if sig := r.monitor.Poll(ctx, s); sig.Terminal() {
			return sig, false, nil
		}
		if s.Auto != script.AutoNone && !allowedUnderAuto(cmd.Kind) {
			log.Debug("auto engaged, command skipped", zap.Stringer("auto", s.Auto))
			continue
		}
		s.State = StateExecutingTurnBody
		res, err := r.dispatcher.Execute(ctx, cmd, s)
		if r.metrics != nil {
			r.metrics.CommandDispatched(cmd.Kind.String())
		}
		if err != nil {
			return SignalNone, false, err
		}
		if res.Signal.Terminal() || res.Exit {
			return res.Signal, res.Exit, nil
		}
		if res.ChainsEnd {
			s.skipEnd = true
		}
	}
	return SignalNone, false, nil
}

// outsideBlock handles commands that follow a turn already ended: only
// auto toggles, the manual end loop flag and waits apply there.
func (r *Runner) outsideBlock(ctx context.Context, cmd script.Command, s *Session) error {
	switch cmd.Kind {
	case script.KindEnableAuto:
		if s.Auto == script.AutoNone {
			_, err := r.dispatcher.Execute(ctx, cmd, s)
			return err
		}
	case script.KindRepeatManualAttackAndReload, script.KindWait:
		_, err := r.dispatcher.Execute(ctx, cmd, s)
		return err
	default:
		r.logger.Debug("command outside the current turn skipped",
			zap.String("command", cmd.Raw),
			zap.Int("turn", s.CurrentTurn),
			zap.Int("target_turn", s.TargetTurn),
		)
	}
	return nil
}

// startTurn declares turn n and attacks until the game reaches it. A turn
// behind the current one is treated as the current turn.
func (r *Runner) startTurn(ctx context.Context, s *Session, n int) (Signal, error) {
	r.monitor.CheckDialog(ctx)
	s.skipEnd = false
	if n < s.CurrentTurn {
		r.logger.Warn("declared turn is behind the current turn, running its block now",
			zap.Int("declared_turn", n),
			zap.Int("turn", s.CurrentTurn),
		)
		n = s.CurrentTurn
	}
	s.TargetTurn = n

	if !s.Retreated && s.CurrentTurn < s.TargetTurn {
		s.State = StateReconcilingTurn
		r.logger.Info("reconciling turn", zap.Int("turn", s.CurrentTurn), zap.Int("target_turn", s.TargetTurn))
		for s.CurrentTurn < s.TargetTurn {
			sig, err := r.turns.reconcile(ctx, s)
			if sig.Terminal() || err != nil {
				return sig, err
			}
			if s.Retreated {
				return r.monitor.Poll(ctx, s), nil
			}
		}
	}
	s.State = StateExecutingTurnBody
	r.logger.Info("starting turn", zap.Int("turn", s.CurrentTurn))
	return SignalNone, nil
}

// endLoop drives the battle after the script is exhausted: auto mode unless
// the script asked for manual attacks, manual attacks when auto cannot be
// engaged.
func (r *Runner) endLoop(ctx context.Context, s *Session) (Signal, error) {
	if s.ManualAttackAndReload {
		return r.loopManual(ctx, s, r.settings.EndLoopLimit)
	}
	if s.Auto == script.AutoNone {
		r.auto.EnableFull(ctx, s)
	}
	if ok, err := r.turns.nextWave(ctx, 1); err != nil {
		return SignalNone, err
	} else if ok {
		if sig := r.monitor.Poll(ctx, s); sig.Terminal() {
			return sig, nil
		}
	}
	return r.loopAuto(ctx, s)
}

func (r *Runner) loopAuto(ctx context.Context, s *Session) (Signal, error) {
	raid := r.settings.RaidLike()
	for cycle := 1; cycle <= r.settings.EndLoopLimit; cycle++ {
		if err := ctx.Err(); err != nil {
			return SignalNone, err
		}
		if s.Auto == script.AutoNone {
			r.logger.Warn("auto is not engaged, attacking manually")
			return r.loopManual(ctx, s, r.settings.EndLoopLimit-cycle+1)
		}
		if sig := r.monitor.Poll(ctx, s); sig.Terminal() {
			return sig, nil
		}
		if _, err := r.turns.nextWave(ctx, 1); err != nil {
			return SignalNone, err
		}
		if err := r.monitor.CheckWipe(ctx, s); err != nil {
			return SignalNone, err
		}
		if s.Retreated {
			return r.monitor.Poll(ctx, s), nil
		}

		idle := func() bool { return !r.scr.visible(ctx, btnAttack) && !r.scr.visible(ctx, btnNext) }
		switch {
		case raid:
			sig, err := r.restartRaidAuto(ctx, s, idle)
			if sig.Terminal() || err != nil {
				return sig, err
			}
		case idle():
			r.logger.Debug("attack and next buttons vanished, considering a reload")
			rl, err := r.turns.reloadAfterAttack(ctx, s, false)
			if rl.Signal.Terminal() || err != nil {
				return rl.Signal, err
			}
			if rl.Reloaded {
				r.auto.Reengage(ctx, s, rl.Prev)
			}
		}

		if err := r.scr.wait(ctx, time.Second); err != nil {
			return SignalNone, err
		}
		// Keep the device from locking itself while auto plays.
		if cycle%60 == 0 {
			r.logger.Debug("swiping to keep the device awake")
			r.scr.swipe(ctx, 500, 1000, 500, 900, 100*time.Millisecond)
			r.scr.swipe(ctx, 500, 900, 500, 1000, 100*time.Millisecond)
		}
	}
	return SignalNone, nil
}

// restartRaidAuto re-enables auto after a new wave or a reload in raid-like
// battles, where waves and reloads both drop the auto indicators.
func (r *Runner) restartRaidAuto(ctx context.Context, s *Session, idle func() bool) (Signal, error) {
	moved, err := r.turns.nextWave(ctx, 1)
	if err != nil {
		return SignalNone, err
	}
	if !moved {
		if !idle() {
			return SignalNone, nil
		}
		if sig := r.monitor.Poll(ctx, s); sig.Terminal() {
			return sig, nil
		}
		if err := r.scr.wait(ctx, time.Second); err != nil {
			return SignalNone, err
		}
		rl, err := r.turns.reloadAfterAttack(ctx, s, true)
		if rl.Signal.Terminal() || err != nil {
			return rl.Signal, err
		}
		if sig, err := r.turns.waitForAttack(ctx, s); sig.Terminal() || err != nil {
			return sig, err
		}
	}
	if sig := r.monitor.Poll(ctx, s); sig.Terminal() {
		return sig, nil
	}
	_, err = r.auto.Restart(ctx, s)
	return SignalNone, err
}

func (r *Runner) loopManual(ctx context.Context, s *Session, cycles int) (Signal, error) {
	for i := 0; i < cycles; i++ {
		if err := ctx.Err(); err != nil {
			return SignalNone, err
		}
		if sig := r.monitor.Poll(ctx, s); sig.Terminal() {
			return sig, nil
		}
		if ok, err := r.turns.nextWave(ctx, 1); err != nil {
			return SignalNone, err
		} else if ok {
			if sig := r.monitor.Poll(ctx, s); sig.Terminal() {
				return sig, nil
			}
		}
		r.scr.click(ctx, btnAttack, 10)
		rl, err := r.turns.reloadAfterAttack(ctx, s, false)
		if rl.Signal.Terminal() || err != nil {
			return rl.Signal, err
		}
		if sig, err := r.turns.waitForAttack(ctx, s); sig.Terminal() || err != nil {
			return sig, err
		}
		if s.Retreated {
			return r.monitor.Poll(ctx, s), nil
		}
	}
	return SignalNone, nil
}

func (r *Runner) finish(s *Session, sig Signal, outcome Outcome, reason string) Result {
	elapsed := r.scr.now().Sub(s.StartTime)
	s.State = StateTerminated
	res := Result{
		SessionID: s.ID,
		Outcome:   outcome,
		Signal:    sig,
		Turn:      s.CurrentTurn,
		Elapsed:   elapsed,
		Retreated: s.Retreated,
		Reason:    reason,
	}
	fields := []zap.Field{
		zap.String("session_id", s.ID.String()),
		zap.Stringer("outcome", outcome),
		zap.Stringer("signal", sig),
		zap.Int("turn", s.CurrentTurn),
		zap.Duration("elapsed", elapsed),
	}
	if reason != "" {
		fields = append(fields, zap.String("reason", reason))
	}
	r.logger.Info("combat ended", fields...)

	if outcome == OutcomeSuccess && r.elapsed != nil {
		r.elapsed.SetCombatElapsed(r.settings.Mission, elapsed)
	}
	if r.metrics != nil {
		if sig.Terminal() {
			r.metrics.SignalObserved(sig.String())
		}
		r.metrics.SessionFinished(outcome.String(), s.CurrentTurn, elapsed)
	}
	return res
}
