package combat

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/autocombat/internal/combat/script"
)

// useHealingItem opens the heal menu and applies the item. Blue and support
// potions share a template and are told apart by position.
func (d *Dispatcher) useHealingItem(ctx context.Context, cmd script.Command, s *Session) error {
	item := cmd.Item
	log := d.logger.With(zap.String("item", item.Token()), zap.Int("turn", s.CurrentTurn))
	d.scr.click(ctx, btnHeal, DefaultTries)

	switch item {
	case script.ItemBluePotion, script.ItemSupportPotion:
		idx := 0
		if item == script.ItemSupportPotion {
			idx = 1
		}
		if locs := d.scr.dev.Vision.FindAll(ctx, item.Token()); len(locs) > idx {
			d.scr.tap(ctx, locs[idx], item.Token())
		}
	default:
		d.scr.click(ctx, item.Token(), DefaultTries)
	}

	if !d.scr.dev.Vision.WaitVanish(ctx, scrTapItemToUse, 5*time.Second) {
		log.Warn("item unavailable for this mission or out of stock")
		d.scr.click(ctx, btnCancel, DefaultTries)
		return nil
	}

	switch item {
	case script.ItemGreenPotion, script.ItemClarityHerb:
		target := cmd.Target
		if target == 0 {
			target = 1
		}
		log.Info("using item on character", zap.Int("target", target))
		d.selectCharacter(ctx, s, target)
	case script.ItemBluePotion:
		log.Info("using item on the party")
		d.scr.click(ctx, btnUse, DefaultTries)
	default:
		log.Info("using item")
		d.scr.click(ctx, btnOK, DefaultTries)
	}

	if err := d.scr.wait(ctx, time.Second); err != nil {
		return err
	}
	if d.scr.confirm(ctx, scrUseItem, 1) {
		log.Warn("healing item was not used")
	} else {
		log.Info("healing item used")
	}
	return nil
}

// openBackupMenu scrolls the request backup button into view and taps it.
func (d *Dispatcher) openBackupMenu(ctx context.Context) error {
	d.scr.swipe(ctx, 500, 1000, 500, 400, 0)
	d.scr.click(ctx, btnRequestBackup, DefaultTries)
	return d.scr.wait(ctx, time.Second)
}

func (d *Dispatcher) closeBackupMenu(ctx context.Context, successID string) {
	if d.scr.confirm(ctx, successID, 1) {
		d.logger.Info("backup requested")
		d.scr.click(ctx, btnOK, DefaultTries)
	} else {
		d.logger.Warn("unable to request backup, possibly on cooldown")
		d.scr.click(ctx, btnCancel, DefaultTries)
	}
	d.scr.swipe(ctx, 500, 400, 500, 1000, 0)
}

// requestBackup asks the raid's followers for help. The toggle's look
// changes often, so it is tapped relative to the Cancel button.
func (d *Dispatcher) requestBackup(ctx context.Context, s *Session) error {
	d.logger.Info("requesting backup", zap.Int("turn", s.CurrentTurn))
	if err := d.openBackupMenu(ctx); err != nil {
		return err
	}
	if cancel, ok := d.scr.find(ctx, btnCancel, DefaultTries); ok {
		d.scr.tap(ctx, cancel.Add(d.layout.BackupRequest()), btnRequestBackup)
	}
	if err := d.scr.wait(ctx, time.Second); err != nil {
		return err
	}
	d.closeBackupMenu(ctx, scrBackupSuccess)
	return nil
}

func (d *Dispatcher) tweetBackup(ctx context.Context) error {
	d.logger.Info("requesting backup by tweet")
	if err := d.openBackupMenu(ctx); err != nil {
		return err
	}
	d.scr.click(ctx, btnRequestBackupTweet, DefaultTries)
	if err := d.scr.wait(ctx, time.Second); err != nil {
		return err
	}
	d.scr.click(ctx, btnOK, DefaultTries)
	if err := d.scr.wait(ctx, time.Second); err != nil {
		return err
	}
	d.closeBackupMenu(ctx, scrBackupTweetSuccess)
	return nil
}
