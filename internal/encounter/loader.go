package encounter

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lawnchairsociety/tunnelfight/internal/battlefield"
	"github.com/lawnchairsociety/tunnelfight/internal/dice"
	"github.com/lawnchairsociety/tunnelfight/internal/rules"
)

// HitPointsYAML accepts either an integer or dice text such as "2d8+2".
type HitPointsYAML struct {
	dice.HitPoints
	set bool
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (h *HitPointsYAML) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: hp must be a number or dice text", value.Line)
	}
	h.set = true
	if value.Tag == "!!int" {
		var n int
		if err := value.Decode(&n); err != nil {
			return err
		}
		h.HitPoints = dice.FixedHitPoints(n)
		return nil
	}
	h.HitPoints = dice.DiceHitPoints(value.Value)
	return nil
}

// ActorDefinition is one roster entry as written in an encounter file.
type ActorDefinition struct {
	Name               string        `yaml:"name"`
	HP                 HitPointsYAML `yaml:"hp"`
	AC                 *int          `yaml:"ac"`
	AttackBonus        *int          `yaml:"attack_bonus"`
	Damage             string        `yaml:"damage"`              // Dice text, e.g. "1d8+3"
	Speed              *int          `yaml:"speed"`               // Zones per move (default 1)
	Range              string        `yaml:"range"`               // melee, reach or ranged (default melee)
	StartZone          string        `yaml:"start_zone"`          // ranged, reach or melee on own side (default ranged)
	InitiativeModifier int           `yaml:"initiative_modifier"` // Added to individual initiative rolls
	APL                []rules.Text  `yaml:"apl"`                 // Rule program, evaluated top to bottom
}

// CapacityDefinition sets zone capacities; a null or missing ranged value
// means unlimited.
type CapacityDefinition struct {
	Ranged *int `yaml:"ranged"`
	Reach  *int `yaml:"reach"`
	Melee  *int `yaml:"melee"`
}

// InitiativeDefinition selects turn ordering.
type InitiativeDefinition struct {
	Type   string   `yaml:"type"`   // side, individual, side_phases, individual_phases
	Dice   string   `yaml:"dice"`   // Initiative dice for individual modes (default 1d20)
	Phases []string `yaml:"phases"` // Phase order for phased modes
}

// EncounterDefinition is the top-level structure of an encounter file.
type EncounterDefinition struct {
	Name         string                `yaml:"name"`
	Iterations   *int                  `yaml:"iterations"`
	ZoneCapacity *CapacityDefinition   `yaml:"zone_capacity"`
	Initiative   *InitiativeDefinition `yaml:"initiative"`
	Side1        []ActorDefinition     `yaml:"side1"`
	Side2        []ActorDefinition     `yaml:"side2"`
}

// Load reads and parses an encounter file.
func Load(filename string) (*Encounter, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read encounter file: %w", err)
	}
	return Parse(data)
}

// Parse decodes an encounter document and fills in defaults.
//
// Malformed damage dice, missing required fields and unknown initiative or
// range names are errors. Malformed initiative dice fall back to 1d20 and
// unrecognized rule text falls back to its default; both are recorded in
// Encounter.Warnings.
func Parse(data []byte) (*Encounter, error) {
	var def EncounterDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncounter, err)
	}
	return def.Build()
}

// Build converts the definition into an Encounter.
func (def *EncounterDefinition) Build() (*Encounter, error) {
	enc := &Encounter{
		Name:       strings.TrimSpace(def.Name),
		Iterations: DefaultIterations,
		Capacities: battlefield.DefaultCapacities(),
		Initiative: DefaultInitiative(),
	}

	if def.Iterations != nil {
		if *def.Iterations <= 0 {
			return nil, fmt.Errorf("%w: iterations must be positive", ErrInvalidEncounter)
		}
		enc.Iterations = *def.Iterations
	}

	if c := def.ZoneCapacity; c != nil {
		for _, limit := range []*int{c.Ranged, c.Reach, c.Melee} {
			if limit != nil && *limit < 0 {
				return nil, fmt.Errorf("%w: zone capacity must not be negative", ErrInvalidEncounter)
			}
		}
		if c.Ranged != nil {
			enc.Capacities.Ranged = *c.Ranged
		}
		if c.Reach != nil {
			enc.Capacities.Reach = *c.Reach
		}
		if c.Melee != nil {
			enc.Capacities.Melee = *c.Melee
		}
	}

	if in := def.Initiative; in != nil {
		if in.Type != "" {
			mode, err := ParseInitiativeMode(in.Type)
			if err != nil {
				return nil, err
			}
			enc.Initiative.Mode = mode
		}
		if in.Dice != "" {
			expr, err := dice.Parse(in.Dice)
			if err != nil {
				enc.Warnings = append(enc.Warnings, fmt.Sprintf("initiative dice: %v; using 1d20", err))
			} else {
				enc.Initiative.Dice = expr
			}
		}
		if in.Phases != nil {
			phases := make([]Phase, 0, len(in.Phases))
			for _, name := range in.Phases {
				p, err := ParsePhase(name)
				if err != nil {
					return nil, err
				}
				phases = append(phases, p)
			}
			enc.Initiative.Phases = phases
		}
	}

	var err error
	if enc.Side1, err = buildRoster(enc, battlefield.Side1, def.Side1); err != nil {
		return nil, err
	}
	if enc.Side2, err = buildRoster(enc, battlefield.Side2, def.Side2); err != nil {
		return nil, err
	}

	return enc, nil
}

func buildRoster(enc *Encounter, side battlefield.Side, defs []ActorDefinition) ([]ActorTemplate, error) {
	roster := make([]ActorTemplate, 0, len(defs))
	for i, d := range defs {
		t, err := d.build()
		if err != nil {
			return nil, fmt.Errorf("%w: %s actor %d: %w", ErrInvalidEncounter, side.Key(), i+1, err)
		}

		if err := t.HP.Validate(); err != nil {
			enc.Warnings = append(enc.Warnings, fmt.Sprintf("%s %q hp: %v; using 1", side.Key(), t.Name, err))
		}

		prog, diags := rules.Compile(d.APL)
		t.Program = prog
		for _, diag := range diags {
			enc.Warnings = append(enc.Warnings, fmt.Sprintf("%s %q %s; using default", side.Key(), t.Name, diag))
		}

		roster = append(roster, t)
	}
	return roster, nil
}

func (d *ActorDefinition) build() (ActorTemplate, error) {
	name := strings.TrimSpace(d.Name)
	switch {
	case name == "":
		return ActorTemplate{}, fmt.Errorf("name is required")
	case !d.HP.set:
		return ActorTemplate{}, fmt.Errorf("%s: hp is required", name)
	case d.AC == nil:
		return ActorTemplate{}, fmt.Errorf("%s: ac is required", name)
	case d.AttackBonus == nil:
		return ActorTemplate{}, fmt.Errorf("%s: attack_bonus is required", name)
	case d.Damage == "":
		return ActorTemplate{}, fmt.Errorf("%s: damage is required", name)
	}

	damage, err := dice.Parse(d.Damage)
	if err != nil {
		return ActorTemplate{}, fmt.Errorf("%s: damage: %w", name, err)
	}

	t := ActorTemplate{
		Name:               name,
		HP:                 d.HP.HitPoints,
		AC:                 *d.AC,
		AttackBonus:        *d.AttackBonus,
		Damage:             damage,
		Speed:              1,
		InitiativeModifier: d.InitiativeModifier,
	}

	if d.Speed != nil {
		if *d.Speed < 0 {
			return ActorTemplate{}, fmt.Errorf("%s: speed must not be negative", name)
		}
		t.Speed = *d.Speed
	}
	if d.Range != "" {
		if t.Range, err = battlefield.ParseWeaponRange(d.Range); err != nil {
			return ActorTemplate{}, fmt.Errorf("%s: %w", name, err)
		}
	}
	if d.StartZone != "" {
		if t.Start, err = battlefield.ParseStartingZone(d.StartZone); err != nil {
			return ActorTemplate{}, fmt.Errorf("%s: %w", name, err)
		}
	}

	return t, nil
}
