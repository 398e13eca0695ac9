// Package layout maps logical combat targets (character, skill, summon and
// enemy slots) to tap offsets for each supported device profile.
package layout

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed profiles.yaml
var builtin []byte

// ErrUnknownProfile is returned when a profile name has no geometry table.
var ErrUnknownProfile = errors.New("unknown device profile")

// ErrSlotOutOfRange is returned for a slot index outside the table.
var ErrSlotOutOfRange = errors.New("slot out of range")

// Offset is a displacement from a reference point on screen.
type Offset struct {
	X float64
	Y float64
}

// Row is a horizontal line of tap targets sharing one Y offset.
type Row struct {
	X []float64 `yaml:"x"`
	Y float64   `yaml:"y"`
}

func (r Row) at(i int) (Offset, error) {
	if i < 1 || i > len(r.X) {
		return Offset{}, fmt.Errorf("%w: %d of %d", ErrSlotOutOfRange, i, len(r.X))
	}
	return Offset{X: r.X[i-1], Y: r.Y}, nil
}

// Layout is the geometry table of one device profile.
type Layout struct {
	Profile        string `yaml:"-"`
	CharacterRow   Row    `yaml:"character"`
	SkillRow       Row    `yaml:"skill"`
	SkillTargetRow []Row  `yaml:"skill_target"`
	SummonRow      Row    `yaml:"summon"`
	EnemyRow       Row    `yaml:"enemy"`
	BackupRow      Row    `yaml:"backup_request"`
}

// Character returns the offset of party portrait n (1..4) from the attack button.
func (l Layout) Character(n int) (Offset, error) { return l.CharacterRow.at(n) }

// Skill returns the offset of skill slot n (1..4) from the attack button.
func (l Layout) Skill(n int) (Offset, error) { return l.SkillRow.at(n) }

// Summon returns the offset of summon slot n (1..6) from the attack button.
func (l Layout) Summon(n int) (Offset, error) { return l.SummonRow.at(n) }

// Enemy returns the offset of enemy n (1..3) from the attack button.
func (l Layout) Enemy(n int) (Offset, error) { return l.EnemyRow.at(n) }

// SkillTarget returns the offset of character n (1..6) in the
// select-a-character prompt. Characters 1-3 are the top row, 4-6 the bottom.
func (l Layout) SkillTarget(n int) (Offset, error) {
	if n < 1 || len(l.SkillTargetRow) == 0 {
		return Offset{}, fmt.Errorf("%w: target %d", ErrSlotOutOfRange, n)
	}
	perRow := len(l.SkillTargetRow[0].X)
	row := (n - 1) / perRow
	if row >= len(l.SkillTargetRow) {
		return Offset{}, fmt.Errorf("%w: target %d", ErrSlotOutOfRange, n)
	}
	return l.SkillTargetRow[row].at((n-1)%perRow + 1)
}

// BackupRequest returns the offset of the backup request toggle from the
// cancel button.
func (l Layout) BackupRequest() Offset {
	o, _ := l.BackupRow.at(1)
	return o
}

// Validate checks that every row has the expected number of slots.
//
// Postcondition: Returns nil or an error naming every malformed row.
func (l Layout) Validate() error {
	var errs []error
	check := func(name string, r Row, want int) {
		if len(r.X) != want {
			errs = append(errs, fmt.Errorf("%s: %s has %d slots, want %d", l.Profile, name, len(r.X), want))
		}
	}
	check("character", l.CharacterRow, 4)
	check("skill", l.SkillRow, 4)
	check("summon", l.SummonRow, 6)
	check("enemy", l.EnemyRow, 3)
	check("backup_request", l.BackupRow, 1)
	if len(l.SkillTargetRow) != 2 {
		errs = append(errs, fmt.Errorf("%s: skill_target has %d rows, want 2", l.Profile, len(l.SkillTargetRow)))
	}
	for i, r := range l.SkillTargetRow {
		check(fmt.Sprintf("skill_target[%d]", i), r, 3)
	}
	return errors.Join(errs...)
}

func parse(data []byte) (map[string]Layout, error) {
	var set map[string]Layout
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&set); err != nil {
		return nil, err
	}
	for name, l := range set {
		l.Profile = name
		if err := l.Validate(); err != nil {
			return nil, err
		}
		set[name] = l
	}
	return set, nil
}

// Profiles returns the names of the built-in profiles, sorted.
func Profiles() []string {
	set, err := parse(builtin)
	if err != nil {
		panic(fmt.Sprintf("layout: built-in profiles: %v", err))
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default returns the built-in layout for profile.
//
// Postcondition: Returns a validated Layout, or an error wrapping ErrUnknownProfile.
func Default(profile string) (Layout, error) {
	set, err := parse(builtin)
	if err != nil {
		return Layout{}, fmt.Errorf("parsing built-in profiles: %w", err)
	}
	l, ok := set[profile]
	if !ok {
		return Layout{}, fmt.Errorf("%w: %q", ErrUnknownProfile, profile)
	}
	return l, nil
}

// Load reads a YAML file of profiles and returns the one named profile.
//
// Precondition: path is a readable YAML file in the built-in table's format.
// Postcondition: Returns a validated Layout or a non-nil error.
func Load(path, profile string) (Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, fmt.Errorf("reading layout %q: %w", path, err)
	}
	set, err := parse(data)
	if err != nil {
		return Layout{}, fmt.Errorf("parsing layout %q: %w", path, err)
	}
	l, ok := set[profile]
	if !ok {
		return Layout{}, fmt.Errorf("%w: %q in %s", ErrUnknownProfile, profile, path)
	}
	return l, nil
}
