package combat

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/autocombat/internal/combat/script"
)

// selectCharacter taps a party portrait twice; the second tap lands if a
// raid participant popup swallowed the first.
func (d *Dispatcher) selectCharacter(ctx context.Context, s *Session, n int) {
	off, err := d.layout.Character(n)
	if d.scr.tapOffset(ctx, s.attackButton, off, err, "character") {
		d.scr.tapOffset(ctx, s.attackButton, off, nil, "character")
	}
}

// useCharacterSkill selects the character and consumes its steps left to
// right.
func (d *Dispatcher) useCharacterSkill(ctx context.Context, cmd script.Command, s *Session) (Dispatch, error) {
	log := d.logger.With(zap.Int("character", cmd.Character), zap.Int("turn", s.CurrentTurn))
	d.selectCharacter(ctx, s, cmd.Character)

	steps := cmd.Steps
	for i := 0; i < len(steps); i++ {
		if d.scr.visible(ctx, btnNext) {
			log.Info("next button showing, abandoning skill commands")
			return Dispatch{}, nil
		}
		step := steps[i]
		switch step.Kind {
		case script.StepWait:
			if err := d.wait(ctx, step.Wait); err != nil {
				return Dispatch{}, err
			}
		case script.StepAttack:
			sig, err := d.turns.finish(ctx, s)
			return Dispatch{ChainsEnd: true, Signal: sig}, err
		case script.StepSkill:
			var target *script.Step
			if i+1 < len(steps) && steps[i+1].Kind == script.StepTarget {
				target = &steps[i+1]
				i++
			}
			if err := d.useSkill(ctx, s, cmd.Character, step.N, target); err != nil {
				return Dispatch{}, err
			}
		case script.StepTarget:
			log.Warn("target without a preceding skill ignored", zap.String("step", step.Raw))
		default:
			log.Warn("invalid skill command ignored", zap.String("step", step.Raw))
		}
	}

	d.scr.click(ctx, btnBack, DefaultTries)
	return Dispatch{}, nil
}

// useSkill taps skill slot n and resolves the follow-up prompt: a sealed
// skill is cancelled, a target prompt gets target or character 1.
func (d *Dispatcher) useSkill(ctx context.Context, s *Session, character, n int, target *script.Step) error {
	log := d.logger.With(zap.Int("character", character), zap.Int("skill", n))
	off, err := d.layout.Skill(n)
	if err := d.scr.wait(ctx, 500*time.Millisecond); err != nil {
		return err
	}
	if !d.scr.tapOffset(ctx, s.attackButton, off, err, "skill") {
		return nil
	}
	log.Info("using skill")
	if err := d.scr.wait(ctx, time.Second); err != nil {
		return err
	}

	if d.scr.confirm(ctx, scrSkillUnusable, 1) {
		log.Warn("character is skill-sealed, skill cancelled")
		d.scr.click(ctx, btnCancel, DefaultTries)
		return nil
	}

	prompt, ok := d.scr.find(ctx, btnSelectCharacter, 2)
	if !ok {
		if target != nil {
			log.Warn("skill did not ask for a target", zap.String("step", target.Raw))
		}
		return nil
	}
	who := 1
	if target != nil {
		who = target.N
	} else {
		log.Warn("skill requires a target, defaulting to character 1")
	}
	if err := d.scr.wait(ctx, 500*time.Millisecond); err != nil {
		return err
	}
	toff, terr := d.layout.SkillTarget(who)
	if d.scr.tapOffset(ctx, prompt, toff, terr, "skill target") {
		log.Info("targeted character for skill", zap.Int("target", who))
	}
	return nil
}
