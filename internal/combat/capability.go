// Package combat runs combat scripts against a device: it reconciles the
// declared turn blocks with the game's turn counter, dispatches commands,
// manages the game's auto modes and classifies battle-end screens.
package combat

import (
	"context"
	"time"

	"github.com/cory-johannsen/autocombat/internal/combat/layout"
)

// Location is a point on the device screen.
type Location struct {
	X float64
	Y float64
}

// Add returns l displaced by o.
func (l Location) Add(o layout.Offset) Location {
	return Location{X: l.X + o.X, Y: l.Y + o.Y}
}

// DefaultTries is the recognition attempt count used when none is given.
const DefaultTries = 5

// FindOptions tunes a recognition call.
type FindOptions struct {
	// Tries is the number of recognition attempts; zero means DefaultTries.
	Tries int
	// Timeout bounds the call; zero means the implementation default.
	Timeout time.Duration
	// SuppressError silences the implementation's "not found" logging.
	SuppressError bool
}

// Vision locates buttons and screens by template id.
type Vision interface {
	FindButton(ctx context.Context, id string, opts FindOptions) (Location, bool)
	ConfirmLocation(ctx context.Context, id string, opts FindOptions) bool
	FindAll(ctx context.Context, id string) []Location
	// WaitVanish reports whether id disappeared within timeout.
	WaitVanish(ctx context.Context, id string, timeout time.Duration) bool
}

// Actuator simulates touch input.
type Actuator interface {
	Tap(ctx context.Context, x, y float64) error
	Swipe(ctx context.Context, x1, y1, x2, y2 float64, d time.Duration) error
	LongPress(ctx context.Context, x, y float64) error
}

// Navigator leaves the battle screen.
type Navigator interface {
	GoBackHome(ctx context.Context) error
}

// Clock supplies time and cancellable suspension.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// Device bundles the collaborators a Runner drives.
type Device struct {
	Vision    Vision
	Actuator  Actuator
	Navigator Navigator
	Clock     Clock
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// Sleep waits for d or until ctx is done.
func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
