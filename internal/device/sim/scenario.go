// Package sim is a deterministic battle screen for dry runs. It implements
// the combat Vision, Actuator, Navigator and Clock capabilities over a
// virtual clock, driven by a YAML scenario.
package sim

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/autocombat/internal/config"
)

// End screens a scenario may finish on.
var EndScreens = []string{"exp_gained", "loot_collected", "no_loot", "battle_concluded"}

// Scenario describes the simulated battle.
type Scenario struct {
	Name string `yaml:"name"`
	// Profile selects the tap geometry used to decode positional taps.
	Profile string `yaml:"profile"`
	// Turns is the number of turns after which the battle ends.
	Turns     int    `yaml:"turns"`
	EndScreen string `yaml:"end_screen"`

	AttackTime   time.Duration `yaml:"attack_time"`
	AutoTurnTime time.Duration `yaml:"auto_turn_time"`
	// TryCost is the virtual time spent by each failed recognition attempt.
	TryCost time.Duration `yaml:"try_cost"`

	FullAuto bool `yaml:"full_auto"`
	SemiAuto bool `yaml:"semi_auto"`

	RestrictedSummons []int `yaml:"restricted_summons"`
	SealedSkills      bool  `yaml:"sealed_skills"`
	// TargetSkills lists the skill slots that prompt for a target.
	TargetSkills []int    `yaml:"target_skills"`
	QuickSummon  bool     `yaml:"quick_summon"`
	Items        []string `yaml:"items"`
	Backup       bool     `yaml:"backup"`
	// WipeAtTurn wipes the party when this turn is reached; 0 never wipes.
	WipeAtTurn int `yaml:"wipe_at_turn"`
}

// DefaultScenario is a three turn battle with both auto modes available.
func DefaultScenario() Scenario {
	return Scenario{
		Name:         "default",
		Profile:      "phone-1080p",
		Turns:        3,
		EndScreen:    "exp_gained",
		AttackTime:   3 * time.Second,
		AutoTurnTime: 10 * time.Second,
		TryCost:      100 * time.Millisecond,
		FullAuto:     true,
		SemiAuto:     true,
		QuickSummon:  true,
		Items:        []string{"usegreenpotion", "usebluepotion", "usefullelixir"},
		Backup:       true,
	}
}

// Validate reports every invalid field.
func (s Scenario) Validate() error {
	var errs []error
	if s.Turns < 1 {
		errs = append(errs, fmt.Errorf("turns must be >= 1, got %d", s.Turns))
	}
	if !slices.Contains(EndScreens, s.EndScreen) {
		errs = append(errs, fmt.Errorf("end_screen must be one of %v, got %q", EndScreens, s.EndScreen))
	}
	if !slices.Contains(config.DeviceProfiles, s.Profile) {
		errs = append(errs, fmt.Errorf("profile must be one of %v, got %q", config.DeviceProfiles, s.Profile))
	}
	if s.AttackTime <= 0 || s.AutoTurnTime <= 0 {
		errs = append(errs, errors.New("attack_time and auto_turn_time must be positive"))
	}
	if s.TryCost < 0 {
		errs = append(errs, errors.New("try_cost must not be negative"))
	}
	if s.WipeAtTurn < 0 {
		errs = append(errs, fmt.Errorf("wipe_at_turn must be >= 0, got %d", s.WipeAtTurn))
	}
	return errors.Join(errs...)
}

// ParseScenario decodes YAML over DefaultScenario. Unknown fields are rejected.
func ParseScenario(data []byte) (Scenario, error) {
	sc := DefaultScenario()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil && !errors.Is(err, io.EOF) {
		return Scenario{}, fmt.Errorf("decoding scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return Scenario{}, fmt.Errorf("invalid scenario %q: %w", sc.Name, err)
	}
	return sc, nil
}

// LoadScenario reads a scenario file. An empty path yields DefaultScenario.
func LoadScenario(path string) (Scenario, error) {
	if path == "" {
		return DefaultScenario(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("reading scenario %q: %w", path, err)
	}
	return ParseScenario(data)
}

func contains[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
