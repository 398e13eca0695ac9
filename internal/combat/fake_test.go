package combat

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/autocombat/internal/combat/layout"
)

// fakeGame is a scripted battle screen. Buttons sit at fixed, distinct
// locations so taps can be mapped back to template ids; positional taps are
// recorded by coordinates.
type fakeGame struct {
	now     time.Time
	visible map[string]bool
	// vanish overrides WaitVanish per id; the default is "not visible".
	vanish  map[string]bool
	findAll map[string][]Location
	onTap   map[string]func()
	// onSleep runs after every clock advance.
	onSleep func()

	ids      []string
	taps     []string
	confirms []string
	swipes   int
	home     int
	slept    time.Duration
}

func newFakeGame(visible ...string) *fakeGame {
	g := &fakeGame{
		now:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		visible: map[string]bool{},
		vanish:  map[string]bool{},
		findAll: map[string][]Location{},
		onTap:   map[string]func(){},
	}
	g.show(visible...)
	return g
}

func (g *fakeGame) show(ids ...string) {
	for _, id := range ids {
		g.visible[id] = true
	}
}

func (g *fakeGame) hide(ids ...string) {
	for _, id := range ids {
		delete(g.visible, id)
	}
}

// loc returns the fixed location of id. Half-pixel coordinates keep button
// locations from colliding with attack-relative offsets.
func (g *fakeGame) loc(id string) Location {
	for i, known := range g.ids {
		if known == id {
			return Location{X: 5000.5 + float64(1000*i), Y: 7000.5}
		}
	}
	g.ids = append(g.ids, id)
	return g.loc(id)
}

func (g *fakeGame) idAt(x, y float64) (string, bool) {
	for _, id := range g.ids {
		if l := g.loc(id); l.X == x && l.Y == y {
			return id, true
		}
	}
	return "", false
}

func (g *fakeGame) device() Device {
	return Device{Vision: g, Actuator: g, Navigator: g, Clock: g}
}

func (g *fakeGame) tapped(id string) int {
	n := 0
	for _, t := range g.taps {
		if t == id {
			n++
		}
	}
	return n
}

func (g *fakeGame) FindButton(_ context.Context, id string, _ FindOptions) (Location, bool) {
	if !g.visible[id] {
		return Location{}, false
	}
	return g.loc(id), true
}

func (g *fakeGame) ConfirmLocation(_ context.Context, id string, _ FindOptions) bool {
	g.confirms = append(g.confirms, id)
	return g.visible[id]
}

func (g *fakeGame) FindAll(_ context.Context, id string) []Location {
	return g.findAll[id]
}

func (g *fakeGame) WaitVanish(_ context.Context, id string, _ time.Duration) bool {
	if v, ok := g.vanish[id]; ok {
		return v
	}
	return !g.visible[id]
}

func (g *fakeGame) Tap(_ context.Context, x, y float64) error {
	id, ok := g.idAt(x, y)
	if !ok {
		id = fmt.Sprintf("(%g,%g)", x, y)
	}
	g.taps = append(g.taps, id)
	if hook := g.onTap[id]; hook != nil {
		hook()
	}
	return nil
}

func (g *fakeGame) Swipe(context.Context, float64, float64, float64, float64, time.Duration) error {
	g.swipes++
	return nil
}

func (g *fakeGame) LongPress(_ context.Context, x, y float64) error {
	return g.Tap(context.Background(), x, y)
}

func (g *fakeGame) GoBackHome(context.Context) error {
	g.home++
	return nil
}

func (g *fakeGame) Now() time.Time { return g.now }

func (g *fakeGame) Sleep(ctx context.Context, d time.Duration) error {
	g.now = g.now.Add(d)
	g.slept += d
	if g.onSleep != nil {
		g.onSleep()
	}
	return ctx.Err()
}

func testLayout() layout.Layout {
	geo, err := layout.Default("phone-1080p")
	if err != nil {
		panic(err)
	}
	return geo
}

func questSettings() Settings {
	return Settings{
		FarmingMode:   "Quest",
		Mission:       "Angel Halo",
		RaidTimeLimit: 30 * time.Minute,
		ReloadWait:    3 * time.Second,
		AttackTries:   5,
		EndLoopLimit:  20,
	}
}

func newTestRunner(g *fakeGame, settings Settings, opts ...Option) *Runner {
	return NewRunner(g.device(), testLayout(), settings, zap.NewNop(), opts...)
}

func newTestSession(g *fakeGame) *Session {
	s := newSession(g.now)
	s.attackButton = g.loc(btnAttack)
	return s
}
