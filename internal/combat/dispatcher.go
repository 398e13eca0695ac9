package combat

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/autocombat/internal/combat/layout"
	"github.com/cory-johannsen/autocombat/internal/combat/script"
)

// Dispatch is the effect of executing one command.
type Dispatch struct {
	// ChainsEnd is true when the command ended the current turn.
	ChainsEnd bool
	// Exit is true when the script asked to leave the battle.
	Exit bool
	// Signal is a terminal battle-end signal observed while executing.
	Signal Signal
}

// Dispatcher executes single commands against the battle screen.
type Dispatcher struct {
	scr      screen
	layout   layout.Layout
	monitor  *Monitor
	auto     *AutoController
	turns    *turns
	settings Settings
	logger   *zap.Logger
}

// NewDispatcher returns a Dispatcher bound to dev.
func NewDispatcher(dev Device, geo layout.Layout, settings Settings, logger *zap.Logger) *Dispatcher {
	settings = settings.withDefaults()
	monitor := NewMonitor(dev, settings, logger)
	auto := NewAutoController(dev, settings, logger)
	logger = logger.Named("dispatcher")
	scr := screen{dev: dev, logger: logger}
	return &Dispatcher{
		scr:      scr,
		layout:   geo,
		monitor:  monitor,
		auto:     auto,
		turns:    &turns{scr: scr, monitor: monitor, auto: auto, settings: settings, logger: logger.Named("turns")},
		settings: settings,
		logger:   logger,
	}
}

// Execute runs cmd. Unavailable actions (sealed skills, restricted summons,
// missing items, backup on cooldown) are logged and skipped.
//
// Precondition: s has a recorded attack button location.
// Postcondition: error is non-nil only when ctx is done.
func (d *Dispatcher) Execute(ctx context.Context, cmd script.Command, s *Session) (Dispatch, error) {
	log := d.logger.With(zap.String("command", cmd.Raw), zap.Int("turn", s.CurrentTurn))
	log.Info("executing command", zap.Stringer("kind", cmd.Kind))

	switch cmd.Kind {
	case script.KindCharacterSkill:
		return d.useCharacterSkill(ctx, cmd, s)
	case script.KindSummon:
		return d.useSummon(ctx, cmd, s)
	case script.KindQuickSummon:
		return d.useQuickSummon(ctx, cmd, s)
	case script.KindHealingItem:
		return Dispatch{}, d.useHealingItem(ctx, cmd, s)
	case script.KindEnableAuto:
		if cmd.Mode == script.AutoFull {
			d.auto.EnableFull(ctx, s)
		} else {
			d.auto.EnableSemi(ctx, s)
		}
		return Dispatch{}, nil
	case script.KindTargetEnemy:
		off, err := d.layout.Enemy(cmd.Enemy)
		if d.scr.tapOffset(ctx, s.attackButton, off, err, "enemy") {
			d.scr.click(ctx, btnSetTarget, DefaultTries)
			log.Info("targeted enemy", zap.Int("enemy", cmd.Enemy))
		}
		return Dispatch{}, nil
	case script.KindAttack:
		if d.scr.click(ctx, btnAttack, 30) {
			log.Info("executed manual attack")
		} else {
			log.Info("manual attack resolved instantly")
		}
		if cmd.Chain.Wait != nil {
			return Dispatch{}, d.wait(ctx, *cmd.Chain.Wait)
		}
		return Dispatch{}, nil
	case script.KindAttackBack:
		return d.attackBack(ctx, s)
	case script.KindBack:
		return d.back(ctx, s, true)
	case script.KindReload:
		return Dispatch{}, d.reload(ctx, s)
	case script.KindWait:
		return Dispatch{}, d.wait(ctx, cmd.Wait)
	case script.KindRequestBackup:
		return Dispatch{}, d.requestBackup(ctx, s)
	case script.KindTweetBackup:
		return Dispatch{}, d.tweetBackup(ctx)
	case script.KindRepeatManualAttackAndReload:
		log.Info("manual attack and reload enabled until the battle ends")
		s.ManualAttackAndReload = true
		return Dispatch{}, nil
	case script.KindEnd:
		if s.Auto != script.AutoNone || s.skipEnd {
			log.Debug("end skipped", zap.Stringer("auto", s.Auto), zap.Bool("turn_already_ended", s.skipEnd))
			return Dispatch{}, nil
		}
		sig, err := d.turns.finish(ctx, s)
		return Dispatch{ChainsEnd: true, Signal: sig}, err
	case script.KindExit:
		log.Info("leaving the battle without retreating")
		if err := d.scr.dev.Navigator.GoBackHome(ctx); err != nil {
			log.Warn("going home", zap.Error(err))
		}
		return Dispatch{Exit: true}, nil
	default:
		log.Warn("unrecognized command skipped", zap.Stringer("kind", cmd.Kind))
		return Dispatch{}, nil
	}
}

func (d *Dispatcher) wait(ctx context.Context, w script.Wait) error {
	if !w.Valid {
		d.logger.Warn("unparseable wait, using fallback", zap.String("arg", w.Arg), zap.Duration("wait", script.FallbackWait))
	}
	d.logger.Debug("waiting", zap.Duration("wait", w.Duration()))
	return d.scr.wait(ctx, w.Duration())
}

// chain applies the wait and attack modifiers after a successful summon.
func (d *Dispatcher) chain(ctx context.Context, ch script.Chain, s *Session) (Dispatch, error) {
	if ch.Wait != nil {
		if err := d.wait(ctx, *ch.Wait); err != nil {
			return Dispatch{}, err
		}
	}
	if !ch.Attack {
		return Dispatch{}, nil
	}
	sig, err := d.turns.finish(ctx, s)
	return Dispatch{ChainsEnd: true, Signal: sig}, err
}

func (d *Dispatcher) attackBack(ctx context.Context, s *Session) (Dispatch, error) {
	if !d.scr.click(ctx, btnAttack, DefaultTries) {
		d.logger.Warn("attackback: attack button not found")
		return Dispatch{}, nil
	}
	if d.scr.dev.Vision.WaitVanish(ctx, btnCancel, 10*time.Second) {
		d.logger.Info("attacked, pressing back")
		if res, err := d.back(ctx, s, false); res.Signal.Terminal() || err != nil {
			return res, err
		}
	}
	s.advance()
	return Dispatch{}, nil
}

func (d *Dispatcher) back(ctx context.Context, s *Session, advance bool) (Dispatch, error) {
	if !d.scr.click(ctx, btnHomeBack, DefaultTries) {
		d.logger.Warn("back button not found")
		return Dispatch{}, nil
	}
	sig, err := d.turns.waitForAttack(ctx, s)
	if sig.Terminal() || err != nil {
		return Dispatch{Signal: sig}, err
	}
	if advance {
		s.advance()
	}
	return Dispatch{}, nil
}

// reload attacks, waits for the attack to start and reloads the page. The
// reload clears the auto indicators, handing control back to the script.
func (d *Dispatcher) reload(ctx context.Context, s *Session) error {
	d.logger.Info("reloading manually")
	if !d.scr.click(ctx, btnAttack, DefaultTries) {
		return nil
	}
	if !d.scr.dev.Vision.WaitVanish(ctx, btnCombatCancel, 10*time.Second) {
		d.logger.Debug("cancel button did not vanish, reloading anyway")
	}
	d.scr.click(ctx, btnReload, DefaultTries)
	if s.Auto != script.AutoNone {
		d.logger.Info("auto is off after the scripted reload, the script must enable it again",
			zap.Stringer("mode", s.Auto), zap.Int("turn", s.CurrentTurn))
	}
	s.Auto = script.AutoNone
	return d.scr.wait(ctx, 3*time.Second)
}
