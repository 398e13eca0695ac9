package combat

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/autocombat/internal/combat/layout"
)

// screen wraps a Device with the find-then-tap idioms every component uses.
type screen struct {
	dev    Device
	logger *zap.Logger
}

// find looks for id with the given number of tries, without error logging.
func (s screen) find(ctx context.Context, id string, tries int) (Location, bool) {
	return s.dev.Vision.FindButton(ctx, id, FindOptions{Tries: tries, SuppressError: true})
}

// visible is a single quiet recognition attempt.
func (s screen) visible(ctx context.Context, id string) bool {
	_, ok := s.find(ctx, id, 1)
	return ok
}

func (s screen) confirm(ctx context.Context, id string, tries int) bool {
	return s.dev.Vision.ConfirmLocation(ctx, id, FindOptions{Tries: tries, SuppressError: true})
}

// click finds id and taps it.
//
// Postcondition: Returns true only if id was found and the tap succeeded.
func (s screen) click(ctx context.Context, id string, tries int) bool {
	loc, ok := s.find(ctx, id, tries)
	if !ok {
		return false
	}
	return s.tap(ctx, loc, id)
}

func (s screen) tap(ctx context.Context, loc Location, what string) bool {
	if err := s.dev.Actuator.Tap(ctx, loc.X, loc.Y); err != nil {
		s.logger.Warn("tap failed", zap.String("target", what), zap.Error(err))
		return false
	}
	return true
}

// tapOffset taps ref displaced by the offset returned from lookup.
func (s screen) tapOffset(ctx context.Context, ref Location, off layout.Offset, err error, what string) bool {
	if err != nil {
		s.logger.Warn("no geometry for target", zap.String("target", what), zap.Error(err))
		return false
	}
	return s.tap(ctx, ref.Add(off), what)
}

func (s screen) swipe(ctx context.Context, x1, y1, x2, y2 float64, d time.Duration) {
	if err := s.dev.Actuator.Swipe(ctx, x1, y1, x2, y2, d); err != nil {
		s.logger.Warn("swipe failed", zap.Error(err))
	}
}

func (s screen) wait(ctx context.Context, d time.Duration) error {
	return s.dev.Clock.Sleep(ctx, d)
}

func (s screen) now() time.Time { return s.dev.Clock.Now() }
