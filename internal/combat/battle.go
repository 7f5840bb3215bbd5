package combat

import (
	"math/rand/v2"

	"github.com/lawnchairsociety/tunnelfight/internal/battlefield"
	"github.com/lawnchairsociety/tunnelfight/internal/dice"
	"github.com/lawnchairsociety/tunnelfight/internal/encounter"
	"github.com/lawnchairsociety/tunnelfight/internal/rules"
)

// MovementRule decides which zones an actor may step into.
type MovementRule int

const (
	// CapacityOnly allows entry whenever the zone has room.
	CapacityOnly MovementRule = iota
	// CapacityUncontested also refuses zones held by a living enemy.
	CapacityUncontested
)

// MovementRuleFor returns the rule used by an initiative mode. Phased modes
// forbid walking through contested zones; the others only check capacity.
func MovementRuleFor(mode encounter.InitiativeMode) MovementRule {
	if mode.Phased() {
		return CapacityUncontested
	}
	return CapacityOnly
}

// Actor is the runtime state of one combatant for the length of a battle.
type Actor struct {
	ID                 int
	Name               string
	Side               battlefield.Side
	MaxHP              int
	HP                 int
	AC                 int
	AttackBonus        int
	Damage             dice.Expression
	Speed              int
	Range              battlefield.WeaponRange
	Zone               battlefield.Zone
	InitiativeModifier int
	Program            rules.Program
}

// NewActor builds an actor from its template, rolling hit points.
func NewActor(id int, t *encounter.ActorTemplate, side battlefield.Side, r *rand.Rand) Actor {
	hp := t.HP.Roll(r)
	return Actor{
		ID:                 id,
		Name:               t.Name,
		Side:               side,
		MaxHP:              hp,
		HP:                 hp,
		AC:                 t.AC,
		AttackBonus:        t.AttackBonus,
		Damage:             t.Damage,
		Speed:              t.Speed,
		Range:              t.Range,
		Zone:               t.Start.ZoneFor(side),
		InitiativeModifier: t.InitiativeModifier,
		Program:            t.Program,
	}
}

// Alive reports whether the actor has hit points left.
func (a *Actor) Alive() bool {
	return a.HP > 0
}

// CanAttack reports whether target is within the actor's weapon range.
func (a *Actor) CanAttack(target *Actor) bool {
	return a.Zone.Distance(target.Zone) <= a.Range.MaxDistance()
}

// Battle owns the roster and the event log. Actors are addressed by id,
// which is also their index. Everything outside this file reads the roster
// through Actor/Combatant and changes it through move and attack.
type Battle struct {
	actors     []Actor
	events     []Event
	round      int
	capacities battlefield.Capacities
	movement   MovementRule
}

// NewBattle builds side 1 then side 2 from the encounter, rolling hit points
// in roster order.
func NewBattle(enc *encounter.Encounter, r *rand.Rand) *Battle {
	b := &Battle{
		actors:     make([]Actor, 0, len(enc.Side1)+len(enc.Side2)),
		capacities: enc.Capacities,
		movement:   MovementRuleFor(enc.Initiative.Mode),
	}
	for _, side := range []battlefield.Side{battlefield.Side1, battlefield.Side2} {
		roster := enc.Roster(side)
		for i := range roster {
			b.actors = append(b.actors, NewActor(len(b.actors), &roster[i], side, r))
		}
	}
	return b
}

// Len implements rules.View.
func (b *Battle) Len() int {
	return len(b.actors)
}

// Combatant implements rules.View.
func (b *Battle) Combatant(id int) rules.Combatant {
	a := &b.actors[id]
	return rules.Combatant{
		ID:    a.ID,
		Side:  a.Side,
		Zone:  a.Zone,
		HP:    a.HP,
		MaxHP: a.MaxHP,
		Range: a.Range,
	}
}

// Actor returns a copy of the actor with the given id.
func (b *Battle) Actor(id int) Actor {
	return b.actors[id]
}

// Round returns the current round number.
func (b *Battle) Round() int {
	return b.round
}

// Events returns the log so far. The slice must not be modified.
func (b *Battle) Events() []Event {
	return b.events
}

// SetMovementRule overrides the rule chosen from the initiative mode.
func (b *Battle) SetMovementRule(rule MovementRule) {
	b.movement = rule
}

func (b *Battle) aliveOn(side battlefield.Side) bool {
	for i := range b.actors {
		if b.actors[i].Side == side && b.actors[i].Alive() {
			return true
		}
	}
	return false
}

// Over reports whether either side has no living actors.
func (b *Battle) Over() bool {
	return !b.aliveOn(battlefield.Side1) || !b.aliveOn(battlefield.Side2)
}

// Winner returns the only side with living actors, or NoSide.
func (b *Battle) Winner() battlefield.Side {
	s1, s2 := b.aliveOn(battlefield.Side1), b.aliveOn(battlefield.Side2)
	switch {
	case s1 && !s2:
		return battlefield.Side1
	case s2 && !s1:
		return battlefield.Side2
	default:
		return battlefield.NoSide
	}
}

// canEnter checks whether mover may step into zone under the battle's
// movement rule. The mover never counts toward occupancy.
func (b *Battle) canEnter(zone battlefield.Zone, mover *Actor) bool {
	occupants := 0
	for i := range b.actors {
		a := &b.actors[i]
		if a.Zone != zone || !a.Alive() || a.ID == mover.ID {
			continue
		}
		if b.movement == CapacityUncontested && a.Side != mover.Side {
			return false
		}
		occupants++
	}
	return b.capacities.Admits(zone, occupants)
}

// move walks the actor up to Speed steps toward dest, stopping at the first
// zone it may not enter. A Move event is logged only if the zone changed.
func (b *Battle) move(id int, dest battlefield.Zone) {
	a := &b.actors[id]
	from := a.Zone
	current := from

	for step := 0; step < a.Speed; step++ {
		next, ok := current.Toward(dest)
		if !ok || !b.canEnter(next, a) {
			break
		}
		current = next
	}

	if current == from {
		return
	}
	a.Zone = current
	b.events = append(b.events, Event{
		Round:     b.round,
		ActorID:   a.ID,
		ActorName: a.Name,
		Kind:      EventMove,
		Move:      &MoveEvent{From: from, To: current},
	})
}

// attack resolves one attack. Range is checked again here; an attack on a
// target out of reach is dropped without an event.
func (b *Battle) attack(attackerID, targetID int, r *rand.Rand) {
	attacker := &b.actors[attackerID]
	target := &b.actors[targetID]

	if !attacker.CanAttack(target) {
		return
	}

	roll := dice.D20.Roll(r) + attacker.AttackBonus
	hit := roll >= target.AC
	damage := 0
	if hit {
		damage = attacker.Damage.Roll(r)
	}

	b.events = append(b.events, Event{
		Round:     b.round,
		ActorID:   attacker.ID,
		ActorName: attacker.Name,
		Kind:      EventAttack,
		Attack: &AttackEvent{
			TargetID:   target.ID,
			TargetName: target.Name,
			Roll:       roll,
			TargetAC:   target.AC,
			Hit:        hit,
			Damage:     damage,
		},
	})

	if !hit {
		return
	}
	wasAlive := target.Alive()
	target.HP -= damage
	if wasAlive && !target.Alive() {
		killer := attacker.ID
		b.events = append(b.events, Event{
			Round:     b.round,
			ActorID:   target.ID,
			ActorName: target.Name,
			Kind:      EventDeath,
			Death:     &DeathEvent{KillerID: &killer},
		})
	}
}

func (b *Battle) decide(id int, r *rand.Rand) rules.Decision {
	return rules.Decide(b.Combatant(id), b, b.actors[id].Program, r)
}

// fullTurn decides and moves, then decides again from the new position and
// attacks.
func (b *Battle) fullTurn(id int, r *rand.Rand) {
	if !b.actors[id].Alive() {
		return
	}
	if d := b.decide(id, r); d.Move {
		b.move(id, d.Destination)
	}
	if d := b.decide(id, r); d.Attack {
		b.attack(id, d.AttackTarget, r)
	}
}

func (b *Battle) moveTurn(id int, r *rand.Rand) {
	if !b.actors[id].Alive() {
		return
	}
	if d := b.decide(id, r); d.Move {
		b.move(id, d.Destination)
	}
}

func (b *Battle) attackTurn(id int, r *rand.Rand) {
	if !b.actors[id].Alive() {
		return
	}
	if d := b.decide(id, r); d.Attack {
		b.attack(id, d.AttackTarget, r)
	}
}

// snapshot returns the final state of every actor in id order.
func (b *Battle) snapshot() []ActorState {
	states := make([]ActorState, len(b.actors))
	for i := range b.actors {
		a := &b.actors[i]
		states[i] = ActorState{
			ID:      a.ID,
			Name:    a.Name,
			Side:    a.Side,
			MaxHP:   a.MaxHP,
			FinalHP: a.HP,
			Alive:   a.Alive(),
			Zone:    a.Zone,
		}
	}
	return states
}
