package rules

import (
	"math/rand/v2"

	"github.com/lawnchairsociety/tunnelfight/internal/battlefield"
)

// Combatant is the read-only slice of actor state rule evaluation needs.
type Combatant struct {
	ID    int
	Side  battlefield.Side
	Zone  battlefield.Zone
	HP    int
	MaxHP int
	Range battlefield.WeaponRange
}

// Alive reports whether the combatant has hit points left.
func (c Combatant) Alive() bool {
	return c.HP > 0
}

// InRange reports whether other is within c's weapon range.
func (c Combatant) InRange(other Combatant) bool {
	return c.Zone.Distance(other.Zone) <= c.Range.MaxDistance()
}

// View exposes the current battle roster, indexed by actor id. It must
// reflect live state: rules are never evaluated against a cached copy.
type View interface {
	Len() int
	Combatant(id int) Combatant
}

// Decision is what an actor intends to do this turn.
type Decision struct {
	// Move is set when the actor wants to move toward Destination.
	Move        bool
	Destination battlefield.Zone
	// MoveTarget is the actor being approached, or -1 for fixed zones.
	MoveTarget int

	// Attack is set when the actor wants to attack AttackTarget.
	Attack       bool
	AttackTarget int
}

// scope answers the questions conditions and targets ask about one actor.
type scope struct {
	self Combatant
	view View
}

func (s scope) isEnemy(c Combatant) bool {
	return c.Side != s.self.Side && c.Alive()
}

func (s scope) enemyCount() int {
	n := 0
	for id := 0; id < s.view.Len(); id++ {
		if s.isEnemy(s.view.Combatant(id)) {
			n++
		}
	}
	return n
}

func (s scope) allyCount() int {
	n := 0
	for id := 0; id < s.view.Len(); id++ {
		c := s.view.Combatant(id)
		if c.Side == s.self.Side && c.Alive() && c.ID != s.self.ID {
			n++
		}
	}
	return n
}

func (s scope) hasEnemyInRange() bool {
	for id := 0; id < s.view.Len(); id++ {
		c := s.view.Combatant(id)
		if s.isEnemy(c) && s.self.InRange(c) {
			return true
		}
	}
	return false
}

// pick resolves a target among living enemies, optionally restricted to
// those in weapon range. Ties go to the first enemy in roster order.
func (s scope) pick(kind TargetKind, inRange bool, r *rand.Rand) (Combatant, bool) {
	var best Combatant
	found := false
	candidates := 0

	for id := 0; id < s.view.Len(); id++ {
		c := s.view.Combatant(id)
		if !s.isEnemy(c) || (inRange && !s.self.InRange(c)) {
			continue
		}
		candidates++
		switch {
		case !found:
			best, found = c, true
		case kind == TargetLowestHP:
			if c.HP < best.HP {
				best = c
			}
		case kind != TargetRandom:
			if s.self.Zone.Distance(c.Zone) < s.self.Zone.Distance(best.Zone) {
				best = c
			}
		}
	}

	if kind != TargetRandom || candidates == 0 {
		return best, found
	}

	n := r.IntN(candidates)
	for id := 0; id < s.view.Len(); id++ {
		c := s.view.Combatant(id)
		if !s.isEnemy(c) || (inRange && !s.self.InRange(c)) {
			continue
		}
		if n == 0 {
			return c, true
		}
		n--
	}
	return best, found
}

func (s scope) holds(cond Condition) bool {
	switch cond.Kind {
	case CondNever:
		return false
	case CondEnemyInRange:
		return s.hasEnemyInRange()
	case CondNoEnemyInRange:
		return !s.hasEnemyInRange()
	case CondLess:
		return s.attribute(cond.Attribute) < cond.Value
	case CondGreater:
		return s.attribute(cond.Attribute) > cond.Value
	default:
		return true
	}
}

func (s scope) attribute(attr Attribute) float64 {
	switch attr {
	case AttrHealthPercent:
		if s.self.MaxHP == 0 {
			return 0
		}
		return float64(s.self.HP) / float64(s.self.MaxHP) * 100
	case AttrHealth:
		return float64(s.self.HP)
	case AttrEnemyCount:
		return float64(s.enemyCount())
	default:
		return float64(s.allyCount())
	}
}

// Decide scans the program in order and returns the first move and the first
// attack whose conditions hold. An empty program means DefaultProgram.
// Attacks only fire when an enemy is in range and always target an enemy in
// range; moves may head toward any living enemy.
func Decide(self Combatant, view View, prog Program, r *rand.Rand) Decision {
	if len(prog) == 0 {
		prog = DefaultProgram
	}

	s := scope{self: self, view: view}
	d := Decision{MoveTarget: -1, AttackTarget: -1}

	for _, e := range prog {
		if !s.holds(e.Condition) {
			continue
		}

		switch e.Action {
		case ActionAttack:
			if d.Attack || !s.hasEnemyInRange() {
				break
			}
			if target, ok := s.pick(e.Target.Kind, true, r); ok {
				d.Attack, d.AttackTarget = true, target.ID
			}

		case ActionMove:
			if d.Move {
				break
			}
			switch e.Target.Kind {
			case TargetForward:
				d.Move, d.Destination = true, battlefield.RangedZone(self.Side.Opposite())
			case TargetBackward:
				d.Move, d.Destination = true, battlefield.RangedZone(self.Side)
			case TargetZone:
				d.Move, d.Destination = true, e.Target.Zone
			default:
				if target, ok := s.pick(e.Target.Kind, false, r); ok {
					d.Move, d.Destination, d.MoveTarget = true, target.Zone, target.ID
				}
			}
		}

		if d.Move && d.Attack {
			break
		}
	}

	return d
}
