// Package encounter holds the description of a battle: two rosters of actor
// templates and the rules of engagement shared by every simulated run.
package encounter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lawnchairsociety/tunnelfight/internal/battlefield"
	"github.com/lawnchairsociety/tunnelfight/internal/dice"
	"github.com/lawnchairsociety/tunnelfight/internal/rules"
)

// DefaultIterations is the number of battles simulated when an encounter
// does not say otherwise.
const DefaultIterations = 30000

// ErrInvalidEncounter is wrapped by every error Parse returns.
var ErrInvalidEncounter = errors.New("invalid encounter")

// InitiativeMode selects the turn ordering algorithm.
type InitiativeMode int

const (
	// InitiativeSide lets a random side act first, each side in shuffled order.
	InitiativeSide InitiativeMode = iota
	// InitiativeIndividual orders every actor by an initiative roll.
	InitiativeIndividual
	// InitiativeSidePhases is InitiativeSide split into phases.
	InitiativeSidePhases
	// InitiativeIndividualPhases is InitiativeIndividual split into phases.
	InitiativeIndividualPhases
)

var initiativeNames = map[string]InitiativeMode{
	"side":              InitiativeSide,
	"individual":        InitiativeIndividual,
	"side_phases":       InitiativeSidePhases,
	"individual_phases": InitiativeIndividualPhases,
}

func (m InitiativeMode) String() string {
	switch m {
	case InitiativeSide:
		return "side"
	case InitiativeIndividual:
		return "individual"
	case InitiativeSidePhases:
		return "side_phases"
	case InitiativeIndividualPhases:
		return "individual_phases"
	}
	return fmt.Sprintf("InitiativeMode(%d)", int(m))
}

// Phased reports whether rounds are split into phases. Phased modes also
// forbid moving into a zone held by a living enemy.
func (m InitiativeMode) Phased() bool {
	return m == InitiativeSidePhases || m == InitiativeIndividualPhases
}

// ParseInitiativeMode parses one of "side", "individual", "side_phases" or
// "individual_phases".
func ParseInitiativeMode(s string) (InitiativeMode, error) {
	mode, ok := initiativeNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return InitiativeSide, fmt.Errorf("%w: unknown initiative type %q", ErrInvalidEncounter, s)
	}
	return mode, nil
}

// Phase is one stage of a phased round.
type Phase int

const (
	PhaseMovement Phase = iota
	PhaseRanged
	PhaseReach
	PhaseMelee
)

// DefaultPhases is the canonical phase order.
var DefaultPhases = []Phase{PhaseMovement, PhaseRanged, PhaseReach, PhaseMelee}

func (p Phase) String() string {
	switch p {
	case PhaseMovement:
		return "movement"
	case PhaseRanged:
		return "ranged"
	case PhaseReach:
		return "reach"
	case PhaseMelee:
		return "melee"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// WeaponRange returns the weapon range that attacks during an attack phase.
// ok is false for the movement phase.
func (p Phase) WeaponRange() (battlefield.WeaponRange, bool) {
	switch p {
	case PhaseRanged:
		return battlefield.Ranged, true
	case PhaseReach:
		return battlefield.Reach, true
	case PhaseMelee:
		return battlefield.Melee, true
	}
	return battlefield.Melee, false
}

// ParsePhase parses a phase name.
func ParsePhase(s string) (Phase, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "movement":
		return PhaseMovement, nil
	case "ranged":
		return PhaseRanged, nil
	case "reach":
		return PhaseReach, nil
	case "melee":
		return PhaseMelee, nil
	}
	return PhaseMovement, fmt.Errorf("%w: unknown phase %q", ErrInvalidEncounter, s)
}

// Initiative configures turn ordering.
type Initiative struct {
	Mode InitiativeMode
	// Dice is rolled per actor in individual modes.
	Dice   dice.Expression
	Phases []Phase
}

// DefaultInitiative is side initiative with 1d20 and all four phases.
func DefaultInitiative() Initiative {
	return Initiative{
		Mode:   InitiativeSide,
		Dice:   dice.D20,
		Phases: append([]Phase(nil), DefaultPhases...),
	}
}

// ActorTemplate is the immutable definition an actor is built from at the
// start of every battle.
type ActorTemplate struct {
	Name               string
	HP                 dice.HitPoints
	AC                 int
	AttackBonus        int
	Damage             dice.Expression
	Speed              int
	Range              battlefield.WeaponRange
	Start              battlefield.StartingZone
	InitiativeModifier int
	Program            rules.Program
}

// Encounter is a fully populated battle description.
type Encounter struct {
	Name       string
	Side1      []ActorTemplate
	Side2      []ActorTemplate
	Iterations int
	Capacities battlefield.Capacities
	Initiative Initiative

	// Warnings lists text that was replaced by a default while loading.
	Warnings []string
}

// Roster returns the templates for side.
func (e *Encounter) Roster(side battlefield.Side) []ActorTemplate {
	if side == battlefield.Side2 {
		return e.Side2
	}
	return e.Side1
}

// ExpectedHP sums the expected hit points of a side, truncating each
// actor's expectation to a whole number.
func (e *Encounter) ExpectedHP(side battlefield.Side) int {
	total := 0
	for _, t := range e.Roster(side) {
		total += int(t.HP.Expected())
	}
	return total
}

// DisplayName returns the encounter name, or a placeholder.
func (e *Encounter) DisplayName() string {
	if e.Name == "" {
		return "unnamed encounter"
	}
	return e.Name
}
