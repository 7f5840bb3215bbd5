package combat

import (
	"iter"
	"math/rand/v2"
	"slices"

	"github.com/lawnchairsociety/tunnelfight/internal/battlefield"
	"github.com/lawnchairsociety/tunnelfight/internal/dice"
	"github.com/lawnchairsociety/tunnelfight/internal/encounter"
)

// StepKind is the portion of a turn a step executes.
type StepKind int

const (
	// StepFull moves, re-evaluates, then attacks.
	StepFull StepKind = iota
	// StepMove only moves.
	StepMove
	// StepAttack only attacks.
	StepAttack
)

// Step is one scheduled action.
type Step struct {
	Actor int
	Kind  StepKind
}

// Scheduler produces the order actors act in during one round.
//
// The sequence is lazy: each step is computed after the previous one has
// been executed, so orders drawn mid-round (the second side's shuffle, for
// example) see who has died so far. Randomness is drawn from r in the same
// order steps are produced.
type Scheduler interface {
	Round(b *Battle, r *rand.Rand) iter.Seq[Step]
}

// NewScheduler returns the scheduler for an initiative configuration.
func NewScheduler(in encounter.Initiative) Scheduler {
	switch in.Mode {
	case encounter.InitiativeIndividual:
		return individualScheduler{dice: in.Dice}
	case encounter.InitiativeSidePhases:
		return sidePhaseScheduler{phases: in.Phases}
	case encounter.InitiativeIndividualPhases:
		return individualPhaseScheduler{dice: in.Dice, phases: in.Phases}
	default:
		return sideScheduler{}
	}
}

func coinFlipSide(r *rand.Rand) battlefield.Side {
	if r.IntN(2) == 0 {
		return battlefield.Side1
	}
	return battlefield.Side2
}

// shuffledSide returns the living actors of side in a fresh random order.
func shuffledSide(b *Battle, side battlefield.Side, r *rand.Rand) []int {
	var order []int
	for i := range b.actors {
		if b.actors[i].Side == side && b.actors[i].Alive() {
			order = append(order, i)
		}
	}
	r.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
	return order
}

// initiativeOrder rolls for every living actor in id order and sorts
// highest first. Equal rolls are settled by a coin flip per comparison.
func initiativeOrder(b *Battle, d dice.Expression, r *rand.Rand) []int {
	type roll struct {
		id    int
		value int
	}

	var rolls []roll
	for i := range b.actors {
		a := &b.actors[i]
		if a.Alive() {
			rolls = append(rolls, roll{id: a.ID, value: d.Roll(r) + a.InitiativeModifier})
		}
	}

	slices.SortStableFunc(rolls, func(x, y roll) int {
		if x.value != y.value {
			return y.value - x.value
		}
		if r.IntN(2) == 0 {
			return -1
		}
		return 1
	})

	order := make([]int, len(rolls))
	for i, ro := range rolls {
		order[i] = ro.id
	}
	return order
}

// phaseStep returns the step an actor takes in phase, or false if the
// phase does not apply to it.
func phaseStep(a *Actor, phase encounter.Phase) (StepKind, bool) {
	weapon, attacks := phase.WeaponRange()
	if !attacks {
		return StepMove, true
	}
	if a.Range != weapon {
		return StepAttack, false
	}
	return StepAttack, true
}

type sideScheduler struct{}

func (sideScheduler) Round(b *Battle, r *rand.Rand) iter.Seq[Step] {
	return func(yield func(Step) bool) {
		first := coinFlipSide(r)
		for _, side := range []battlefield.Side{first, first.Opposite()} {
			for _, id := range shuffledSide(b, side, r) {
				if !yield(Step{Actor: id, Kind: StepFull}) {
					return
				}
			}
		}
	}
}

type individualScheduler struct {
	dice dice.Expression
}

func (s individualScheduler) Round(b *Battle, r *rand.Rand) iter.Seq[Step] {
	return func(yield func(Step) bool) {
		for _, id := range initiativeOrder(b, s.dice, r) {
			if !b.actors[id].Alive() {
				continue
			}
			if !yield(Step{Actor: id, Kind: StepFull}) {
				return
			}
		}
	}
}

type sidePhaseScheduler struct {
	phases []encounter.Phase
}

func (s sidePhaseScheduler) Round(b *Battle, r *rand.Rand) iter.Seq[Step] {
	return func(yield func(Step) bool) {
		first := coinFlipSide(r)
		for _, phase := range s.phases {
			for _, side := range []battlefield.Side{first, first.Opposite()} {
				for _, id := range shuffledSide(b, side, r) {
					kind, ok := phaseStep(&b.actors[id], phase)
					if !ok {
						continue
					}
					if !yield(Step{Actor: id, Kind: kind}) {
						return
					}
				}
			}
		}
	}
}

type individualPhaseScheduler struct {
	dice   dice.Expression
	phases []encounter.Phase
}

func (s individualPhaseScheduler) Round(b *Battle, r *rand.Rand) iter.Seq[Step] {
	return func(yield func(Step) bool) {
		order := initiativeOrder(b, s.dice, r)
		for _, phase := range s.phases {
			for _, id := range order {
				if !b.actors[id].Alive() {
					continue
				}
				kind, ok := phaseStep(&b.actors[id], phase)
				if !ok {
					continue
				}
				if !yield(Step{Actor: id, Kind: kind}) {
					return
				}
			}
		}
	}
}
