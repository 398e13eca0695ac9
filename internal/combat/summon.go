package combat

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/autocombat/internal/combat/script"
)

// summonTapTries defeats popups from other raid participants absorbing a tap.
const summonTapTries = 3

// useSummon invokes summon slot cmd.Summon. The chain only runs once the
// summon detail screen confirmed the summon; a restricted or unconfirmed
// summon falls through without ending the turn.
func (d *Dispatcher) useSummon(ctx context.Context, cmd script.Command, s *Session) (Dispatch, error) {
	log := d.logger.With(zap.Int("summon", cmd.Summon), zap.Int("turn", s.CurrentTurn))
	log.Info("invoking summon")
	d.scr.click(ctx, btnSummon, DefaultTries)
	if err := d.scr.wait(ctx, time.Second); err != nil {
		return Dispatch{}, err
	}

	off, err := d.layout.Summon(cmd.Summon)
	if err != nil {
		log.Warn("no geometry for summon", zap.Error(err))
		return Dispatch{}, nil
	}

	invoked := false
	for tries := summonTapTries; tries > 0; tries-- {
		d.scr.tapOffset(ctx, s.attackButton, off, nil, "summon")
		if err := d.scr.wait(ctx, time.Second); err != nil {
			return Dispatch{}, err
		}
		if !d.scr.confirm(ctx, scrSummonDetails, DefaultTries) {
			continue
		}
		if ok, found := d.scr.find(ctx, btnOK, DefaultTries); found {
			d.scr.tap(ctx, ok, btnOK)
			invoked = true
			if err := d.scr.wait(ctx, 7*time.Second); err != nil {
				return Dispatch{}, err
			}
		} else {
			log.Warn("summon cannot be invoked due to current restrictions")
			d.scr.click(ctx, btnCancel, DefaultTries)
			d.scr.click(ctx, btnBack, DefaultTries)
		}
		break
	}

	if !invoked {
		log.Warn("summon not invoked, continuing without chain")
		return Dispatch{}, nil
	}
	return d.chain(ctx, cmd.Chain, s)
}

// useQuickSummon is best effort: an unready quick summon is skipped.
func (d *Dispatcher) useQuickSummon(ctx context.Context, cmd script.Command, s *Session) (Dispatch, error) {
	if !quickSummon(ctx, d.scr) {
		d.logger.Info("quick summon unavailable this turn", zap.Int("turn", s.CurrentTurn))
		return Dispatch{}, nil
	}
	d.logger.Info("quick summoned", zap.Int("turn", s.CurrentTurn))
	return d.chain(ctx, cmd.Chain, s)
}
