// Package combat resolves a single battle between two rosters.
//
// An Engine is built once per battle from an encounter and a random source.
// Run plays rounds until one side has no living actors or the round cap is
// reached, and returns the immutable Result. The engine is single-threaded
// and draws every random number from the *rand.Rand it is given, so the same
// seed always reproduces the same battle.
package combat

import (
	"math/rand/v2"

	"github.com/lawnchairsociety/tunnelfight/internal/encounter"
)

// DefaultMaxRounds bounds battles where neither side can finish the other.
const DefaultMaxRounds = 100

// Engine runs one battle.
type Engine struct {
	battle    *Battle
	scheduler Scheduler
	maxRounds int
}

// New sets up a battle, rolling each actor's hit points from r. A
// non-positive maxRounds means DefaultMaxRounds.
func New(enc *encounter.Encounter, maxRounds int, r *rand.Rand) *Engine {
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	return &Engine{
		battle:    NewBattle(enc, r),
		scheduler: NewScheduler(enc.Initiative),
		maxRounds: maxRounds,
	}
}

// Battle exposes the underlying battle state.
func (e *Engine) Battle() *Battle {
	return e.battle
}

// Run plays the battle to completion. It must be called once.
func (e *Engine) Run(r *rand.Rand) Result {
	b := e.battle
	for !b.Over() && b.round < e.maxRounds {
		b.round++
		for step := range e.scheduler.Round(b, r) {
			e.execute(step, r)
			if b.Over() {
				break
			}
		}
	}

	return Result{
		Winner: b.Winner(),
		Rounds: b.round,
		Events: b.events,
		Final:  b.snapshot(),
	}
}

func (e *Engine) execute(step Step, r *rand.Rand) {
	switch step.Kind {
	case StepMove:
		e.battle.moveTurn(step.Actor, r)
	case StepAttack:
		e.battle.attackTurn(step.Actor, r)
	default:
		e.battle.fullTurn(step.Actor, r)
	}
}

// Simulate builds an engine and runs it, drawing setup and battle
// randomness from the same stream.
func Simulate(enc *encounter.Encounter, maxRounds int, r *rand.Rand) Result {
	return New(enc, maxRounds, r).Run(r)
}
