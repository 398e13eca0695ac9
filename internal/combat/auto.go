package combat

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/autocombat/internal/combat/script"
)

// AutoController engages and disengages the game's auto modes. The engaged
// mode is the single Session.Auto field, so Full and Semi are never both on.
type AutoController struct {
	scr      screen
	settings Settings
	logger   *zap.Logger
}

// NewAutoController returns an AutoController bound to dev.
func NewAutoController(dev Device, settings Settings, logger *zap.Logger) *AutoController {
	logger = logger.Named("auto")
	return &AutoController{scr: screen{dev: dev, logger: logger}, settings: settings.withDefaults(), logger: logger}
}

// EnableFull engages full auto, falling back to semi auto.
//
// Postcondition: Returns true iff s.Auto is Full or Semi.
func (a *AutoController) EnableFull(ctx context.Context, s *Session) bool {
	a.logger.Info("enabling full auto", zap.Int("turn", s.CurrentTurn))
	if s.Auto == script.AutoFull {
		return true
	}
	if s.Auto == script.AutoSemi {
		a.Disengage(ctx, s)
	}
	if a.scr.click(ctx, btnFullAuto, DefaultTries) {
		s.Auto = script.AutoFull
		a.logger.Info("full auto enabled")
		return true
	}
	a.logger.Warn("full auto button not found, falling back to semi auto")
	return a.enableSemi(ctx, s, false)
}

// EnableSemi engages semi auto, falling back to full auto.
//
// Postcondition: Returns true iff s.Auto is Full or Semi.
func (a *AutoController) EnableSemi(ctx context.Context, s *Session) bool {
	a.logger.Info("enabling semi auto", zap.Int("turn", s.CurrentTurn))
	if s.Auto == script.AutoSemi {
		return true
	}
	if s.Auto == script.AutoFull {
		a.Disengage(ctx, s)
	}
	return a.enableSemi(ctx, s, true)
}

func (a *AutoController) enableSemi(ctx context.Context, s *Session, fallbackFull bool) bool {
	if a.scr.visible(ctx, btnSemiAutoEnabled) {
		s.Auto = script.AutoSemi
		return true
	}
	// The semi auto button only appears once the party has attacked.
	a.scr.click(ctx, btnAttack, DefaultTries)
	if a.scr.click(ctx, btnSemiAuto, DefaultTries) {
		s.Auto = script.AutoSemi
		a.logger.Info("semi auto enabled")
		return true
	}
	if fallbackFull {
		a.logger.Warn("semi auto button not found, falling back to full auto")
		if a.scr.click(ctx, btnFullAuto, DefaultTries) {
			s.Auto = script.AutoFull
			a.logger.Info("full auto enabled")
			return true
		}
	}
	a.logger.Warn("failed to enable auto")
	s.Auto = script.AutoNone
	return false
}

// Disengage turns the engaged mode off.
//
// Postcondition: s.Auto is AutoNone.
func (a *AutoController) Disengage(ctx context.Context, s *Session) {
	switch s.Auto {
	case script.AutoFull:
		a.scr.click(ctx, btnFullAutoEnabled, 10)
	case script.AutoSemi:
		a.scr.click(ctx, btnSemiAutoEnabled, 10)
	default:
		return
	}
	a.logger.Info("auto disengaged", zap.Stringer("mode", s.Auto), zap.Int("turn", s.CurrentTurn))
	s.Auto = script.AutoNone
}

// Reengage re-enables prev after a reload cleared the auto indicators.
func (a *AutoController) Reengage(ctx context.Context, s *Session, prev script.AutoMode) bool {
	switch prev {
	case script.AutoFull:
		return a.EnableFull(ctx, s)
	case script.AutoSemi:
		return a.EnableSemi(ctx, s)
	}
	return false
}

// Restart engages auto after a new wave or reload in a raid-like battle,
// optionally quick summoning first.
//
// Postcondition: Returns true iff s.Auto is Full or Semi.
func (a *AutoController) Restart(ctx context.Context, s *Session) (bool, error) {
	if a.settings.RefreshDuringCombat && a.settings.AutoQuickSummon {
		a.logger.Info("attempting automatic quick summon")
		quickSummon(ctx, a.scr)
	}
	s.Auto = script.AutoNone
	if a.scr.click(ctx, btnFullAuto, DefaultTries) || a.scr.click(ctx, btnFullAutoEnabled, DefaultTries) {
		s.Auto = script.AutoFull
		a.logger.Info("full auto restarted")
		return true, nil
	}
	a.logger.Warn("full auto button not found, falling back to semi auto")
	if a.scr.visible(ctx, btnSemiAutoEnabled) {
		s.Auto = script.AutoSemi
		return true, nil
	}
	a.scr.click(ctx, btnAttack, DefaultTries)
	if err := a.scr.wait(ctx, 2*time.Second); err != nil {
		return false, err
	}
	if a.scr.click(ctx, btnSemiAuto, 10) {
		s.Auto = script.AutoSemi
		a.logger.Info("semi auto restarted")
		return true, nil
	}
	return false, nil
}

// quickSummon taps whichever quick summon button is showing.
func quickSummon(ctx context.Context, scr screen) bool {
	if scr.visible(ctx, btnQuickSummonWait) {
		return false
	}
	return scr.click(ctx, btnQuickSummon1, DefaultTries) || scr.click(ctx, btnQuickSummon2, DefaultTries)
}
