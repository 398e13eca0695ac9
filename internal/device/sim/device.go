package sim

import (
	"context"
	"math"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/autocombat/internal/combat"
	"github.com/cory-johannsen/autocombat/internal/combat/layout"
	"github.com/cory-johannsen/autocombat/internal/combat/script"
)

type popup int

const (
	popNone popup = iota
	popCharacter
	popSealed
	popSkillTarget
	popSummonMenu
	popSummonDetails
	popHeal
	popHealItem
	popHealTarget
	popBackup
)

// retryStep is the virtual time between WaitVanish checks.
const retryStep = 500 * time.Millisecond

// State is a snapshot of the simulated battle.
type State struct {
	Turn           int
	Auto           script.AutoMode
	Ended          bool
	Home           bool
	Retreated      bool
	Skills         int
	Summons        int
	Items          int
	BackupRequests int
	Reloads        int
	Taps           int
	Elapsed        time.Duration
}

// Device is a simulated battle screen. It is safe for concurrent use.
type Device struct {
	mu     sync.Mutex
	sc     Scenario
	geo    layout.Layout
	logger *zap.Logger

	start time.Time
	now   time.Time
	ids   []string

	turn         int
	auto         script.AutoMode
	attacking    bool
	attackEnds   time.Time
	nextAutoTurn time.Time
	ended        bool
	home         bool
	retreated    bool
	pop          popup
	summonSlot   int
	item         string
	quickUsed    bool
	requested    bool

	stats State
}

// New builds a Device for sc.
//
// Precondition: sc passes Validate; logger must be non-nil.
func New(sc Scenario, logger *zap.Logger) (*Device, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	geo, err := layout.Default(sc.Profile)
	if err != nil {
		return nil, err
	}
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &Device{
		sc:     sc,
		geo:    geo,
		logger: logger.Named("sim").With(zap.String("scenario", sc.Name)),
		start:  start,
		now:    start,
		turn:   1,
	}, nil
}

// Combat bundles d as the capabilities a combat.Runner drives.
func (d *Device) Combat() combat.Device {
	return combat.Device{Vision: d, Actuator: d, Navigator: d, Clock: d}
}

// Layout returns the geometry the simulator decodes taps with.
func (d *Device) Layout() layout.Layout { return d.geo }

// Snapshot returns the current battle state.
func (d *Device) Snapshot() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := d.stats
	st.Turn = d.turn
	st.Auto = d.auto
	st.Ended = d.ended
	st.Home = d.home
	st.Retreated = d.retreated
	st.Elapsed = d.now.Sub(d.start)
	return st
}

func (d *Device) inBattle() bool { return !d.home && !d.ended }

func (d *Device) wiped() bool {
	return d.sc.WipeAtTurn > 0 && d.turn >= d.sc.WipeAtTurn && d.inBattle() && !d.retreated
}

// progress resolves attacks and auto turns whose time has come.
func (d *Device) progress() {
	if !d.inBattle() || d.wiped() {
		return
	}
	if d.attacking && !d.now.Before(d.attackEnds) {
		d.attacking = false
		d.resolveTurn()
	}
	for d.auto != script.AutoNone && d.inBattle() && !d.wiped() && !d.now.Before(d.nextAutoTurn) {
		d.resolveTurn()
		d.nextAutoTurn = d.nextAutoTurn.Add(d.sc.AutoTurnTime)
	}
}

func (d *Device) resolveTurn() {
	d.turn++
	d.logger.Debug("turn resolved", zap.Int("turn", d.turn))
	if d.turn > d.sc.Turns {
		d.ended = true
		d.auto = script.AutoNone
		d.pop = popNone
		d.logger.Info("battle ended", zap.String("screen", d.sc.EndScreen))
	}
}

func (d *Device) restricted() bool {
	return slices.Contains(d.sc.RestrictedSummons, d.summonSlot)
}

// visible decides whether template id is on screen.
func (d *Device) visible(id string) bool {
	battle := d.inBattle()
	idle := battle && !d.attacking && d.pop == popNone && !d.wiped()
	switch id {
	case "attack":
		return idle && d.auto == script.AutoNone
	case "reload", "home_back":
		return !d.home
	case "combat_cancel":
		return battle && d.attacking
	case "cancel":
		return battle && (d.attacking || d.wiped() || d.pop == popSealed || d.pop == popSummonDetails || d.pop == popHeal || d.pop == popBackup)
	case "ok":
		return (d.pop == popSummonDetails && !d.restricted()) || d.pop == popHealItem || d.pop == popBackup
	case "use":
		return d.pop == popHealItem && d.item == script.ItemBluePotion.Token()
	case "back":
		return d.pop == popCharacter || d.pop == popSummonMenu || d.pop == popSummonDetails
	case "heal", "summon", "set_target":
		return idle
	case "summon_details":
		return d.pop == popSummonDetails
	case "full_auto":
		return battle && d.sc.FullAuto && d.auto != script.AutoFull
	case "full_auto_enabled":
		return battle && d.auto == script.AutoFull
	case "semi_auto":
		return battle && d.sc.SemiAuto && d.auto != script.AutoSemi
	case "semi_auto_enabled":
		return battle && d.auto == script.AutoSemi
	case "quick_summon1":
		return idle && d.sc.QuickSummon && !d.quickUsed
	case "quick_summon_not_ready":
		return battle && d.sc.QuickSummon && d.quickUsed
	case "request_backup":
		return idle && d.sc.Backup
	case "request_backup_tweet":
		return d.pop == popBackup
	case "request_backup_success", "request_backup_tweet_success":
		return d.pop == popBackup && d.requested
	case "party_wipe_indicator", "retreat_confirmation":
		return d.wiped()
	case "select_a_character":
		return d.pop == popSkillTarget
	case "skill_unusable":
		return d.pop == popSealed
	case "tap_the_item_to_use":
		return d.pop == popHeal
	}
	if d.pop == popHeal && slices.Contains(d.sc.Items, id) {
		return true
	}
	return d.ended && !d.home && id == d.sc.EndScreen
}

// loc returns the fixed location of template id. The attack button sits far
// from every other button so attack-relative taps never land on one.
func (d *Device) loc(id string) combat.Location {
	if id == "attack" {
		return combat.Location{X: 2000, Y: 2000}
	}
	for i, known := range d.ids {
		if known == id {
			return combat.Location{X: float64(10000 + 100*i), Y: 10000}
		}
	}
	d.ids = append(d.ids, id)
	return d.loc(id)
}

func (d *Device) idAt(x, y float64) (string, bool) {
	if l := d.loc("attack"); l.X == x && l.Y == y {
		return "attack", true
	}
	for _, id := range d.ids {
		if l := d.loc(id); l.X == x && l.Y == y {
			return id, true
		}
	}
	return "", false
}

func (d *Device) tries(opts combat.FindOptions) int {
	if opts.Tries > 0 {
		return opts.Tries
	}
	return combat.DefaultTries
}

// FindButton looks for id; every failed attempt costs TryCost.
func (d *Device) FindButton(_ context.Context, id string, opts combat.FindOptions) (combat.Location, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := d.tries(opts); i > 0; i-- {
		d.progress()
		if d.visible(id) {
			return d.loc(id), true
		}
		d.now = d.now.Add(d.sc.TryCost)
	}
	if !opts.SuppressError {
		d.logger.Debug("button not found", zap.String("id", id))
	}
	return combat.Location{}, false
}

// ConfirmLocation reports whether screen id is showing.
func (d *Device) ConfirmLocation(ctx context.Context, id string, opts combat.FindOptions) bool {
	_, ok := d.FindButton(ctx, id, opts)
	return ok
}

// FindAll returns every match of id. Items are listed in both the stock and
// quick-use rows, so a visible item matches twice.
func (d *Device) FindAll(_ context.Context, id string) []combat.Location {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.progress()
	if !d.visible(id) {
		return nil
	}
	return []combat.Location{d.loc(id), d.loc(id)}
}

// WaitVanish polls id every half second of virtual time until it disappears
// or timeout passes.
func (d *Device) WaitVanish(_ context.Context, id string, timeout time.Duration) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	deadline := d.now.Add(timeout)
	for {
		d.progress()
		if !d.visible(id) {
			return true
		}
		if !d.now.Before(deadline) {
			return false
		}
		d.now = d.now.Add(retryStep)
	}
}

// Tap presses a button or a position relative to the screen's reference points.
func (d *Device) Tap(_ context.Context, x, y float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.progress()
	d.stats.Taps++
	if id, ok := d.idAt(x, y); ok {
		if d.visible(id) {
			d.press(id)
		} else {
			d.logger.Debug("tapped hidden button", zap.String("id", id))
		}
		return nil
	}
	d.tapAt(x, y)
	return nil
}

// press applies a tap on a visible button.
func (d *Device) press(id string) {
	d.logger.Debug("pressed", zap.String("id", id), zap.Int("turn", d.turn))
	switch id {
	case "attack":
		d.pop = popNone
		d.attacking = true
		d.attackEnds = d.now.Add(d.sc.AttackTime)
	case "reload":
		d.stats.Reloads++
		d.auto = script.AutoNone
		d.pop = popNone
		if d.attacking {
			d.attacking = false
			d.resolveTurn()
		}
	case "home_back":
		d.pop = popNone
		if d.attacking {
			d.attacking = false
			d.resolveTurn()
		}
	case "full_auto":
		d.auto = script.AutoFull
		d.nextAutoTurn = d.now.Add(d.sc.AutoTurnTime)
	case "semi_auto":
		d.auto = script.AutoSemi
		d.nextAutoTurn = d.now.Add(d.sc.AutoTurnTime)
	case "full_auto_enabled", "semi_auto_enabled":
		d.auto = script.AutoNone
	case "summon":
		d.pop = popSummonMenu
	case "heal":
		d.pop = popHeal
	case "request_backup":
		d.pop = popBackup
		d.requested = false
	case "request_backup_tweet":
		d.requested = true
		d.stats.BackupRequests++
	case "quick_summon1":
		d.quickUsed = true
		d.stats.Summons++
	case "retreat_confirmation":
		d.retreated = true
		d.home = true
		d.auto = script.AutoNone
	case "ok", "use":
		switch d.pop {
		case popSummonDetails:
			d.stats.Summons++
		case popHealItem:
			d.stats.Items++
		}
		d.pop = popNone
	case "cancel":
		switch d.pop {
		case popSealed:
			d.pop = popCharacter
		case popSummonDetails:
			d.pop = popSummonMenu
		case popHeal, popBackup:
			d.pop = popNone
		}
	case "back":
		d.pop = popNone
	default:
		if d.pop == popHeal && slices.Contains(d.sc.Items, id) {
			d.item = id
			d.pop = popHealItem
		}
	}
}

// slot returns the 1-based index of the row entry at (dx, dy), or 0.
func slot(row layout.Row, dx, dy float64) int {
	if math.Abs(dy-row.Y) > 0.5 {
		return 0
	}
	for i, x := range row.X {
		if math.Abs(dx-x) <= 0.5 {
			return i + 1
		}
	}
	return 0
}

// tapAt decodes a positional tap against the layout rows the open popup uses.
func (d *Device) tapAt(x, y float64) {
	ref := d.loc("attack")
	dx, dy := x-ref.X, y-ref.Y
	switch d.pop {
	case popNone:
		if n := slot(d.geo.CharacterRow, dx, dy); n > 0 && d.inBattle() {
			d.pop = popCharacter
			return
		}
		if n := slot(d.geo.EnemyRow, dx, dy); n > 0 {
			d.logger.Debug("enemy targeted", zap.Int("enemy", n))
			return
		}
	case popCharacter:
		if slot(d.geo.CharacterRow, dx, dy) > 0 {
			return
		}
		if n := slot(d.geo.SkillRow, dx, dy); n > 0 {
			switch {
			case d.sc.SealedSkills:
				d.pop = popSealed
			case slices.Contains(d.sc.TargetSkills, n):
				d.pop = popSkillTarget
			default:
				d.stats.Skills++
			}
			return
		}
	case popSkillTarget:
		prompt := d.loc("select_a_character")
		for _, row := range d.geo.SkillTargetRow {
			if slot(row, x-prompt.X, y-prompt.Y) > 0 {
				d.stats.Skills++
				d.pop = popCharacter
				return
			}
		}
	case popSummonMenu:
		if n := slot(d.geo.SummonRow, dx, dy); n > 0 {
			d.summonSlot = n
			d.pop = popSummonDetails
			return
		}
	case popHealItem:
		if slot(d.geo.CharacterRow, dx, dy) > 0 {
			d.pop = popHealTarget
			return
		}
	case popHealTarget:
		if slot(d.geo.CharacterRow, dx, dy) > 0 {
			d.stats.Items++
			d.pop = popNone
			return
		}
	case popBackup:
		cancel := d.loc("cancel")
		if slot(d.geo.BackupRow, x-cancel.X, y-cancel.Y) > 0 {
			d.requested = true
			d.stats.BackupRequests++
			return
		}
	}
	d.logger.Debug("tap hit nothing", zap.Float64("x", x), zap.Float64("y", y))
}

// Swipe scrolls the page; the simulated page does not scroll.
func (d *Device) Swipe(_ context.Context, x1, y1, x2, y2 float64, dur time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.now = d.now.Add(dur)
	d.progress()
	return nil
}

// LongPress behaves as a tap.
func (d *Device) LongPress(ctx context.Context, x, y float64) error {
	return d.Tap(ctx, x, y)
}

// GoBackHome leaves the battle.
func (d *Device) GoBackHome(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.home = true
	d.auto = script.AutoNone
	d.logger.Info("left the battle", zap.Int("turn", d.turn))
	return nil
}

// Now returns the virtual time.
func (d *Device) Now() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.now
}

// Sleep advances the virtual clock by dur without blocking.
func (d *Device) Sleep(ctx context.Context, dur time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if dur > 0 {
		d.now = d.now.Add(dur)
	}
	d.progress()
	return nil
}

// SetLayout replaces the geometry positional taps are decoded with, for
// runners driven by a custom layout file.
func (d *Device) SetLayout(geo layout.Layout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.geo = geo
}
